package staging

import (
	"bytes"
	"encoding/base64"
	"errors"

	"github.com/disintegration/imaging"
)

// MaxReferenceImageBytes is the ceiling for a marker's reference image,
// enforced before any compression happens.
const MaxReferenceImageBytes int64 = 4 << 20 // 4 MiB

const (
	refMaxWidth    = 800
	refJPEGQuality = 80
)

// ErrReferenceTooLarge is returned when a reference image exceeds the ceiling.
var ErrReferenceTooLarge = errors.New("reference image exceeds size limit")

// CompressReferenceImage shrinks a marker's reference photo to a bounded
// JPEG and base64-encodes it for the generation payload. If the bytes cannot
// be decoded as an image the original bytes are encoded as-is: a reference
// the model might still use beats a silently dropped one.
func CompressReferenceImage(data []byte) string {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return base64.StdEncoding.EncodeToString(data)
	}
	if img.Bounds().Dx() > refMaxWidth {
		img = imaging.Resize(img, refMaxWidth, 0, imaging.Lanczos)
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(refJPEGQuality)); err != nil {
		return base64.StdEncoding.EncodeToString(data)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}
