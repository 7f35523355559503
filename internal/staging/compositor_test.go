package staging

import (
	"bytes"
	"image/color"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// encodeTestJPEG renders a flat-color image of the given size as JPEG bytes.
func encodeTestJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := imaging.New(w, h, color.NRGBA{R: 220, G: 220, B: 220, A: 255})
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, img, imaging.JPEG))
	return buf.Bytes()
}

func decodeDims(t *testing.T, data []byte) (int, int) {
	t.Helper()
	img, err := imaging.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	return img.Bounds().Dx(), img.Bounds().Dy()
}

func TestRenderLayoutGuide(t *testing.T) {
	original := encodeTestJPEG(t, 640, 480)
	markers := []*Marker{
		{ID: "m1", X: 25, Y: 25, Color: "#FF3B30"},
		{
			ID: "m2", X: 70, Y: 70, Color: "#007AFF",
			RadiusPoints: []Point{{X: 60, Y: 60}, {X: 80, Y: 60}, {X: 80, Y: 80}, {X: 60, Y: 80}},
		},
	}

	guide, err := RenderLayoutGuide(original, markers)
	require.NoError(t, err)
	require.NotEmpty(t, guide)

	w, h := decodeDims(t, guide)
	assert.Equal(t, 640, w)
	assert.Equal(t, 480, h)

	// The guide must differ from the plain original: the marks were drawn.
	assert.NotEqual(t, original, guide)
}

func TestRenderLayoutGuideDownscalesWidePhotos(t *testing.T) {
	original := encodeTestJPEG(t, 3000, 300)
	guide, err := RenderLayoutGuide(original, []*Marker{{ID: "m1", X: 50, Y: 50, Color: "#34C759"}})
	require.NoError(t, err)

	w, h := decodeDims(t, guide)
	assert.Equal(t, 2048, w)
	assert.Equal(t, 204, h) // aspect ratio preserved: 300 * 2048/3000
}

func TestRenderLayoutGuideSkipsDegeneratePolygons(t *testing.T) {
	original := encodeTestJPEG(t, 320, 240)
	markers := []*Marker{
		{ID: "m1", X: 50, Y: 50, Color: "#FF9500", RadiusPoints: []Point{{X: 40, Y: 40}, {X: 60, Y: 60}}},
	}
	_, err := RenderLayoutGuide(original, markers)
	assert.NoError(t, err)
}

func TestRenderLayoutGuideRejectsGarbage(t *testing.T) {
	_, err := RenderLayoutGuide([]byte("definitely not an image"), nil)
	assert.Error(t, err)
}
