package staging

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDataURL(t *testing.T) {
	payload := []byte{0xff, 0xd8, 0xff, 0xe0, 0x01, 0x02}
	encoded := base64.StdEncoding.EncodeToString(payload)

	t.Run("full data URL", func(t *testing.T) {
		mime, data, err := ParseDataURL("data:image/png;base64," + encoded)
		require.NoError(t, err)
		assert.Equal(t, "image/png", mime)
		assert.Equal(t, payload, data)
	})

	t.Run("bare base64 assumes JPEG", func(t *testing.T) {
		mime, data, err := ParseDataURL(encoded)
		require.NoError(t, err)
		assert.Equal(t, "image/jpeg", mime)
		assert.Equal(t, payload, data)
	})

	t.Run("missing mime falls back to JPEG", func(t *testing.T) {
		mime, _, err := ParseDataURL("data:;base64," + encoded)
		require.NoError(t, err)
		assert.Equal(t, "image/jpeg", mime)
	})

	t.Run("empty input", func(t *testing.T) {
		_, _, err := ParseDataURL("")
		assert.ErrorIs(t, err, ErrInvalidDataURL)
	})

	t.Run("non-base64 data URL", func(t *testing.T) {
		_, _, err := ParseDataURL("data:image/png,rawpayload")
		assert.ErrorIs(t, err, ErrInvalidDataURL)
	})

	t.Run("invalid base64 payload", func(t *testing.T) {
		_, _, err := ParseDataURL("data:image/png;base64,!!!not-base64!!!")
		assert.ErrorIs(t, err, ErrInvalidDataURL)
	})
}

func TestFormatDataURLRoundTrip(t *testing.T) {
	payload := []byte("image bytes")
	url := FormatDataURL("image/jpeg", payload)

	mime, data, err := ParseDataURL(url)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", mime)
	assert.Equal(t, payload, data)
}
