// Package worker consumes background tasks from asynq.
package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"stagevision-backend-go/internal/db"
	"stagevision-backend-go/internal/queue"
)

// Processor is plugged into the asynq worker loop.
type Processor struct {
	uploadRepo db.UploadRepository
	logger     *zap.Logger
}

// NewProcessor constructs a worker processor.
func NewProcessor(uploadRepo db.UploadRepository, logger *zap.Logger) *Processor {
	return &Processor{uploadRepo: uploadRepo, logger: logger}
}

// Handler registers the task handlers.
func (p *Processor) Handler() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.PersistUploadTask, p.handlePersistUpload)
	return mux
}

// handlePersistUpload retries the record finalization that failed inline.
// Returning an error makes asynq retry with backoff up to the task's limit.
func (p *Processor) handlePersistUpload(ctx context.Context, task *asynq.Task) error {
	var payload queue.PersistUploadPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}

	err := p.uploadRepo.Complete(ctx, payload.UserID, payload.RecordID, payload.OriginalURL, payload.StagedURL)
	if err != nil {
		p.logger.Warn("persist retry failed",
			zap.String("user_id", payload.UserID),
			zap.String("record_id", payload.RecordID),
			zap.Error(err),
		)
		return err
	}

	p.logger.Info("upload record finalized by worker",
		zap.String("user_id", payload.UserID),
		zap.String("record_id", payload.RecordID),
	)
	return nil
}
