package staging

import (
	"bytes"
	"encoding/base64"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompressReferenceImageShrinksWideImages(t *testing.T) {
	original := encodeTestJPEG(t, 1600, 1200)

	encoded := CompressReferenceImage(original)
	data, err := base64.StdEncoding.DecodeString(encoded)
	require.NoError(t, err)

	img, err := imaging.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 800, img.Bounds().Dx())
	assert.Equal(t, 600, img.Bounds().Dy())
}

func TestCompressReferenceImageKeepsSmallImages(t *testing.T) {
	original := encodeTestJPEG(t, 400, 300)

	encoded := CompressReferenceImage(original)
	data, err := base64.StdEncoding.DecodeString(encoded)
	require.NoError(t, err)

	img, err := imaging.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 400, img.Bounds().Dx())
}

func TestCompressReferenceImagePassesThroughUndecodableBytes(t *testing.T) {
	raw := []byte("not an image at all")
	encoded := CompressReferenceImage(raw)

	data, err := base64.StdEncoding.DecodeString(encoded)
	require.NoError(t, err)
	assert.Equal(t, raw, data)
}
