// Package storage persists original and staged room photos to Cloud Storage.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	gcs "cloud.google.com/go/storage"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrNotConfigured is returned when no bucket was configured at startup.
var ErrNotConfigured = errors.New("storage bucket not configured")

// ImageStore writes image bytes to a Cloud Storage bucket and returns a
// public download URL for each object.
type ImageStore struct {
	bucket     *gcs.BucketHandle
	bucketName string
	logger     *zap.Logger
}

// NewImageStore creates an ImageStore. A nil bucket is allowed; Save then
// returns ErrNotConfigured and callers degrade to inline-only responses.
func NewImageStore(bucket *gcs.BucketHandle, bucketName string, logger *zap.Logger) *ImageStore {
	return &ImageStore{bucket: bucket, bucketName: bucketName, logger: logger}
}

// Save writes data under the given prefix with a generated object name and
// returns the public URL. The object name embeds a UUID so concurrent saves
// for the same user never collide.
func (s *ImageStore) Save(ctx context.Context, prefix, extension, contentType string, data []byte) (string, error) {
	if s == nil || s.bucket == nil {
		return "", ErrNotConfigured
	}

	objectName := fmt.Sprintf("%s/%d-%s.%s", prefix, time.Now().UTC().Unix(), uuid.NewString(), extension)
	w := s.bucket.Object(objectName).NewWriter(ctx)
	w.ContentType = contentType
	w.CacheControl = "public, max-age=86400"

	if _, err := w.Write(data); err != nil {
		w.Close()
		return "", fmt.Errorf("write object '%s': %w", objectName, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close object '%s': %w", objectName, err)
	}

	url := fmt.Sprintf("https://storage.googleapis.com/%s/%s", s.bucketName, objectName)
	if s.logger != nil {
		s.logger.Debug("image persisted", zap.String("object", objectName), zap.Int("bytes", len(data)))
	}
	return url, nil
}
