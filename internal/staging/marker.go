// Package staging implements the annotation-to-prompt compositor: point
// markers and freehand polygons placed on a room photo are validated,
// rasterized into a layout-guide image and serialized into per-marker
// metadata for the image-generation API.
package staging

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/google/uuid"
)

// MaxMarkers is the hard cap on markers per image.
const MaxMarkers = 6

// minPolygonPoints is the smallest point count that forms an enclosing area.
const minPolygonPoints = 3

var (
	ErrMarkerLimitReached = errors.New("marker limit reached")
	ErrMarkerNotFound     = errors.New("marker not found")
	ErrPolygonTooSmall    = errors.New("polygon needs at least 3 points")
	ErrPolygonOpen        = errors.New("polygon does not enclose its marker")
	ErrNoActivePolygon    = errors.New("no polygon capture in progress")
)

// markerPalette is the fixed set of colors assigned to markers. Colors are
// handed out in order while unused ones remain, then picked at random.
var markerPalette = []string{
	"#FF3B30", // red
	"#007AFF", // blue
	"#34C759", // green
	"#FF9500", // orange
	"#AF52DE", // purple
	"#FF2D55", // pink
	"#5AC8FA", // teal
	"#FFCC00", // yellow
	"#A2845E", // brown
}

// Point is a position expressed as percentages of the image bounds, 0..100.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Marker is one user-placed annotation on a room photo.
type Marker struct {
	ID          string  `json:"id"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Color       string  `json:"color"`
	Instruction string  `json:"instruction,omitempty"`
	// ReferenceImage holds the raw bytes of an optional reference photo for
	// this marker. Size is validated at attach time, compression happens when
	// the generation payload is built.
	ReferenceImage []byte `json:"-"`
	// RadiusPoints is an optional closed polygon around the marker. When set
	// it has passed the containment check against the marker's own center.
	RadiusPoints []Point `json:"radiusPoints,omitempty"`
}

// MarkerSet holds the markers for one image and the in-progress polygon
// capture, mirroring the interactions on the annotation canvas.
type MarkerSet struct {
	markers []*Marker
	// drawingID is the marker armed for polygon capture, empty when idle.
	drawingID string
}

// NewMarkerSet returns an empty marker set.
func NewMarkerSet() *MarkerSet {
	return &MarkerSet{}
}

// Markers returns the current markers in placement order.
func (s *MarkerSet) Markers() []*Marker {
	return s.markers
}

// Len returns the number of placed markers.
func (s *MarkerSet) Len() int {
	return len(s.markers)
}

// Place adds a marker at the given percentage position. It fails once the
// marker cap is reached; the cap keeps the layout guide legible and the
// generation prompt bounded.
func (s *MarkerSet) Place(x, y float64) (*Marker, error) {
	if len(s.markers) >= MaxMarkers {
		return nil, fmt.Errorf("%w: at most %d markers per image", ErrMarkerLimitReached, MaxMarkers)
	}
	m := &Marker{
		ID:    uuid.NewString(),
		X:     clampPercent(x),
		Y:     clampPercent(y),
		Color: s.nextColor(),
	}
	s.markers = append(s.markers, m)
	return m, nil
}

// Move updates a marker's position, clamping to the image bounds.
func (s *MarkerSet) Move(id string, x, y float64) error {
	m := s.find(id)
	if m == nil {
		return fmt.Errorf("%w: %s", ErrMarkerNotFound, id)
	}
	m.X = clampPercent(x)
	m.Y = clampPercent(y)
	return nil
}

// Remove deletes a marker, freeing its palette color for reuse.
func (s *MarkerSet) Remove(id string) error {
	for i, m := range s.markers {
		if m.ID == id {
			s.markers = append(s.markers[:i], s.markers[i+1:]...)
			if s.drawingID == id {
				s.drawingID = ""
			}
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrMarkerNotFound, id)
}

// SetInstruction attaches free-text placement instructions to a marker.
func (s *MarkerSet) SetInstruction(id, instruction string) error {
	m := s.find(id)
	if m == nil {
		return fmt.Errorf("%w: %s", ErrMarkerNotFound, id)
	}
	m.Instruction = instruction
	return nil
}

// AttachReference stores a reference image on a marker. Images over the size
// ceiling are rejected and the marker's reference slot is left untouched.
func (s *MarkerSet) AttachReference(id string, data []byte) error {
	m := s.find(id)
	if m == nil {
		return fmt.Errorf("%w: %s", ErrMarkerNotFound, id)
	}
	if int64(len(data)) > MaxReferenceImageBytes {
		return fmt.Errorf("%w: %d bytes", ErrReferenceTooLarge, len(data))
	}
	m.ReferenceImage = data
	return nil
}

// BeginRadius starts a polygon capture for a marker, discarding any previous
// polygon on that marker. The first point is recorded immediately.
func (s *MarkerSet) BeginRadius(id string, x, y float64) error {
	m := s.find(id)
	if m == nil {
		return fmt.Errorf("%w: %s", ErrMarkerNotFound, id)
	}
	s.drawingID = id
	m.RadiusPoints = []Point{{X: clampPercent(x), Y: clampPercent(y)}}
	return nil
}

// AppendRadiusPoint extends the in-progress polygon. Points are recorded at
// pointer-event frequency without decimation.
func (s *MarkerSet) AppendRadiusPoint(x, y float64) error {
	if s.drawingID == "" {
		return ErrNoActivePolygon
	}
	m := s.find(s.drawingID)
	if m == nil {
		s.drawingID = ""
		return ErrNoActivePolygon
	}
	m.RadiusPoints = append(m.RadiusPoints, Point{X: clampPercent(x), Y: clampPercent(y)})
	return nil
}

// EndRadius finishes the polygon capture and validates the result. A polygon
// with fewer than three points, or one that does not enclose its own marker's
// center, is discarded and the corresponding error returned so the caller can
// surface a transient notice.
func (s *MarkerSet) EndRadius() error {
	if s.drawingID == "" {
		return ErrNoActivePolygon
	}
	m := s.find(s.drawingID)
	s.drawingID = ""
	if m == nil {
		return ErrNoActivePolygon
	}
	if len(m.RadiusPoints) < minPolygonPoints {
		m.RadiusPoints = nil
		return ErrPolygonTooSmall
	}
	if !PointInPolygon(Point{X: m.X, Y: m.Y}, m.RadiusPoints) {
		m.RadiusPoints = nil
		return ErrPolygonOpen
	}
	return nil
}

func (s *MarkerSet) find(id string) *Marker {
	for _, m := range s.markers {
		if m.ID == id {
			return m
		}
	}
	return nil
}

// nextColor returns the first palette color not already in use, falling back
// to a random palette color once all nine are taken.
func (s *MarkerSet) nextColor() string {
	used := make(map[string]bool, len(s.markers))
	for _, m := range s.markers {
		used[m.Color] = true
	}
	for _, c := range markerPalette {
		if !used[c] {
			return c
		}
	}
	return markerPalette[rand.Intn(len(markerPalette))]
}

// PointInPolygon reports whether p lies inside the polygon vs using the
// ray-casting test over edges (vs[i], vs[j]) with j trailing i.
func PointInPolygon(p Point, vs []Point) bool {
	inside := false
	j := len(vs) - 1
	for i := 0; i < len(vs); i, j = i+1, i {
		xi, yi := vs[i].X, vs[i].Y
		xj, yj := vs[j].X, vs[j].Y
		intersect := (yi > p.Y) != (yj > p.Y) &&
			p.X < (xj-xi)*(p.Y-yi)/(yj-yi)+xi
		if intersect {
			inside = !inside
		}
	}
	return inside
}

func clampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
