package staging

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidDataURL is returned for payloads that are not base64 data URLs.
var ErrInvalidDataURL = errors.New("invalid data URL")

// ParseDataURL decodes a "data:<mime>;base64,<payload>" string. Bare base64
// without the data: prefix is accepted and assumed to be JPEG, matching what
// older clients send.
func ParseDataURL(s string) (mime string, data []byte, err error) {
	if s == "" {
		return "", nil, ErrInvalidDataURL
	}
	if !strings.HasPrefix(s, "data:") {
		decoded, decErr := base64.StdEncoding.DecodeString(s)
		if decErr != nil {
			return "", nil, fmt.Errorf("%w: %v", ErrInvalidDataURL, decErr)
		}
		return "image/jpeg", decoded, nil
	}

	rest := strings.TrimPrefix(s, "data:")
	sep := strings.Index(rest, ",")
	if sep < 0 {
		return "", nil, ErrInvalidDataURL
	}
	meta := rest[:sep]
	payload := rest[sep+1:]
	if !strings.HasSuffix(meta, ";base64") {
		return "", nil, fmt.Errorf("%w: only base64 data URLs are supported", ErrInvalidDataURL)
	}
	mime = strings.TrimSuffix(meta, ";base64")
	if mime == "" {
		mime = "image/jpeg"
	}
	data, err = base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidDataURL, err)
	}
	return mime, data, nil
}

// FormatDataURL encodes bytes as a base64 data URL.
func FormatDataURL(mime string, data []byte) string {
	if mime == "" {
		mime = "image/png"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}
