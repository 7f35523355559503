package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"stagevision-backend-go/internal/models"
	"stagevision-backend-go/internal/queue"
)

type completeCall struct {
	UserID, RecordID, OriginalURL, StagedURL string
}

type stubUploadRepo struct {
	completeErr error
	calls       []completeCall
}

func (r *stubUploadRepo) EnsureInitialized(context.Context, string) error { return nil }

func (r *stubUploadRepo) ListCompletedSince(context.Context, string, time.Time) ([]models.UploadRecord, error) {
	return nil, nil
}

func (r *stubUploadRepo) ListAll(context.Context, string) ([]models.UploadRecord, error) {
	return nil, nil
}

func (r *stubUploadRepo) Reserve(context.Context, string, []models.QuotaWindow, *models.UploadRecord) (string, error) {
	return "", nil
}

func (r *stubUploadRepo) Complete(_ context.Context, userID, recordID, originalURL, stagedURL string) error {
	r.calls = append(r.calls, completeCall{userID, recordID, originalURL, stagedURL})
	return r.completeErr
}

func (r *stubUploadRepo) Fail(context.Context, string, string) error { return nil }

func persistTask(t *testing.T, payload queue.PersistUploadPayload) *asynq.Task {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return asynq.NewTask(queue.PersistUploadTask, data)
}

func TestHandlePersistUpload(t *testing.T) {
	repo := &stubUploadRepo{}
	p := NewProcessor(repo, zap.NewNop())

	task := persistTask(t, queue.PersistUploadPayload{
		UserID:      "u1",
		RecordID:    "rec-1",
		OriginalURL: "https://storage.example.com/o.jpg",
		StagedURL:   "https://storage.example.com/s.jpg",
	})
	require.NoError(t, p.handlePersistUpload(context.Background(), task))

	require.Len(t, repo.calls, 1)
	assert.Equal(t, completeCall{
		UserID:      "u1",
		RecordID:    "rec-1",
		OriginalURL: "https://storage.example.com/o.jpg",
		StagedURL:   "https://storage.example.com/s.jpg",
	}, repo.calls[0])
}

func TestHandlePersistUploadRetriesOnError(t *testing.T) {
	repo := &stubUploadRepo{completeErr: errors.New("still down")}
	p := NewProcessor(repo, zap.NewNop())

	task := persistTask(t, queue.PersistUploadPayload{UserID: "u1", RecordID: "rec-1"})
	// A returned error is what makes asynq schedule the next attempt.
	assert.Error(t, p.handlePersistUpload(context.Background(), task))
}

func TestHandlePersistUploadBadPayload(t *testing.T) {
	p := NewProcessor(&stubUploadRepo{}, zap.NewNop())
	task := asynq.NewTask(queue.PersistUploadTask, []byte("{not json"))
	assert.Error(t, p.handlePersistUpload(context.Background(), task))
}
