package staging

import (
	"bytes"
	"fmt"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
)

const (
	// maxGuideWidth bounds the layout-guide payload; wider photos are
	// downscaled preserving aspect ratio.
	maxGuideWidth = 2048
	// referenceWidth is the canvas width at which the base stroke and glyph
	// sizes below apply; everything scales linearly from it.
	referenceWidth = 1024.0

	baseLineWidth    = 4.0
	baseMarkerRadius = 12.0
	guideJPEGQuality = 85
)

// RenderLayoutGuide rasterizes the markers and their polygons onto a copy of
// the original photo and returns it as JPEG bytes. The untouched original is
// always sent alongside; the guide only carries positioning cues.
func RenderLayoutGuide(original []byte, markers []*Marker) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(original), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode original image: %w", err)
	}
	if img.Bounds().Dx() > maxGuideWidth {
		img = imaging.Resize(img, maxGuideWidth, 0, imaging.Lanczos)
	}

	w := float64(img.Bounds().Dx())
	h := float64(img.Bounds().Dy())
	scale := w / referenceWidth

	dc := gg.NewContextForImage(img)

	// Polygons first so marker glyphs stay on top.
	for _, m := range markers {
		if len(m.RadiusPoints) < minPolygonPoints {
			continue
		}
		dc.SetHexColor(m.Color)
		dc.SetLineWidth(baseLineWidth * scale)
		first := m.RadiusPoints[0]
		dc.MoveTo(first.X/100*w, first.Y/100*h)
		for _, p := range m.RadiusPoints[1:] {
			dc.LineTo(p.X/100*w, p.Y/100*h)
		}
		dc.ClosePath()
		dc.Stroke()
	}

	// A filled disc per marker with a black cross glyph on top so the mark
	// stays legible against any furniture or wall color.
	for _, m := range markers {
		cx := m.X / 100 * w
		cy := m.Y / 100 * h
		r := baseMarkerRadius * scale

		dc.SetHexColor(m.Color)
		dc.DrawCircle(cx, cy, r)
		dc.Fill()

		dc.SetRGB(0, 0, 0)
		dc.SetLineWidth(baseLineWidth * scale / 2)
		dc.DrawLine(cx-r/2, cy, cx+r/2, cy)
		dc.Stroke()
		dc.DrawLine(cx, cy-r/2, cx, cy+r/2)
		dc.Stroke()
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, dc.Image(), imaging.JPEG, imaging.JPEGQuality(guideJPEGQuality)); err != nil {
		return nil, fmt.Errorf("encode layout guide: %w", err)
	}
	return buf.Bytes(), nil
}
