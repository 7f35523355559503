// Package imagegen wraps the Gemini image-generation API behind a small
// client the staging service can call with raw image bytes and a prompt.
package imagegen

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

const defaultModel = "gemini-2.5-flash-image-preview"

var (
	// ErrNoImage is returned when the model answered without an image part.
	ErrNoImage = errors.New("no staged image generated")
	// ErrUpstreamQuota is returned when the provider rejected the call for
	// quota or rate-limit reasons.
	ErrUpstreamQuota = errors.New("image generation quota exceeded")
	// ErrUpstream covers every other provider-side failure.
	ErrUpstream = errors.New("image generation failed")
)

// Request carries everything one generation call needs. LayoutGuide and
// ReferenceImages are optional; when present they ride along as extra inline
// image parts after the prompt and the clean original.
type Request struct {
	Prompt          string
	OriginalImage   []byte
	OriginalMIME    string
	LayoutGuide     []byte
	ReferenceImages [][]byte
}

// Result is one generated staging.
type Result struct {
	ImageData   []byte
	MIMEType    string
	Description string
}

// Client is a thin wrapper around the genai SDK bound to one model.
type Client struct {
	client  *genai.Client
	model   string
	timeout time.Duration
	logger  *zap.Logger
}

// NewClient builds a Gemini client from an API key. An empty model falls back
// to the default image-capable model.
func NewClient(ctx context.Context, apiKey, model string, timeout time.Duration, logger *zap.Logger) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("imagegen: API key is required")
	}
	if model == "" {
		model = defaultModel
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("imagegen: create genai client: %w", err)
	}
	return &Client{client: gc, model: model, timeout: timeout, logger: logger}, nil
}

// StageImage sends the prompt and images to the model and extracts the first
// returned image plus any accompanying description text.
func (c *Client) StageImage(ctx context.Context, req Request) (*Result, error) {
	if len(req.OriginalImage) == 0 {
		return nil, fmt.Errorf("%w: empty original image", ErrUpstream)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	mime := req.OriginalMIME
	if mime == "" {
		mime = "image/jpeg"
	}

	parts := []*genai.Part{
		genai.NewPartFromText(req.Prompt),
		genai.NewPartFromBytes(req.OriginalImage, mime),
	}
	if len(req.LayoutGuide) > 0 {
		parts = append(parts, genai.NewPartFromBytes(req.LayoutGuide, "image/jpeg"))
	}
	for _, ref := range req.ReferenceImages {
		if len(ref) > 0 {
			parts = append(parts, genai.NewPartFromBytes(ref, "image/jpeg"))
		}
	}

	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, nil)
	if err != nil {
		return nil, classifyError(err)
	}

	result := &Result{}
	if len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			if part.InlineData != nil && len(part.InlineData.Data) > 0 && result.ImageData == nil {
				result.ImageData = part.InlineData.Data
				result.MIMEType = part.InlineData.MIMEType
			}
			if part.Text != "" {
				result.Description += part.Text
			}
		}
	}
	if result.ImageData == nil {
		return nil, ErrNoImage
	}
	if result.MIMEType == "" {
		result.MIMEType = "image/png"
	}

	if c.logger != nil {
		c.logger.Info("staged image generated",
			zap.String("model", c.model),
			zap.Int("image_bytes", len(result.ImageData)),
			zap.Bool("has_description", result.Description != ""),
		)
	}
	return result, nil
}

// classifyError maps provider errors onto the package sentinels so handlers
// can pick 429 vs 503 without string-matching themselves.
func classifyError(err error) error {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "quota") || strings.Contains(msg, "resource_exhausted") || strings.Contains(msg, "rate limit") {
		return fmt.Errorf("%w: %v", ErrUpstreamQuota, err)
	}
	return fmt.Errorf("%w: %v", ErrUpstream, err)
}
