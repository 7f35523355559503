// Package queue defines the background tasks the server enqueues on asynq
// and the worker consumes.
package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

const (
	// PersistUploadTask finalizes an upload record whose synchronous
	// persistence failed after a successful generation. The staged image was
	// already delivered to the user; the record flip to "completed" is retried
	// here until it lands.
	PersistUploadTask = "upload:persist"
)

// PersistUploadPayload identifies the reservation to finalize and the image
// URLs to attach to it.
type PersistUploadPayload struct {
	UserID      string `json:"user_id"`
	RecordID    string `json:"record_id"`
	OriginalURL string `json:"original_url,omitempty"`
	StagedURL   string `json:"staged_url,omitempty"`
}

// Client wraps an asynq client so core services depend on a narrow enqueue
// surface instead of the asynq API.
type Client struct {
	inner *asynq.Client
}

// NewClient builds a queue client against the given Redis address. Returns
// nil when addr is empty, in which case enqueueing is disabled and callers
// fall back to logging the loss.
func NewClient(addr string) *Client {
	if addr == "" {
		return nil
	}
	return &Client{inner: asynq.NewClient(asynq.RedisClientOpt{Addr: addr})}
}

// EnqueuePersist schedules a persistence retry with bounded attempts.
func (c *Client) EnqueuePersist(ctx context.Context, payload PersistUploadPayload) error {
	if c == nil || c.inner == nil {
		return fmt.Errorf("persistence queue not configured")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	task := asynq.NewTask(PersistUploadTask, data)
	if _, err := c.inner.EnqueueContext(ctx, task, asynq.MaxRetry(10)); err != nil {
		return fmt.Errorf("enqueue persist task: %w", err)
	}
	return nil
}

// Close releases the underlying asynq client.
func (c *Client) Close() error {
	if c == nil || c.inner == nil {
		return nil
	}
	return c.inner.Close()
}
