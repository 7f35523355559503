package api

import "stagevision-backend-go/internal/models"

// ErrorResponse is a generic structure for returning errors via API.
type ErrorResponse struct {
	Error   string `json:"error"`             // A high-level error message or code
	Details string `json:"details,omitempty"` // More specific details about the error, if available
}

// SuccessResponse is a generic structure for simple success messages.
type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// StageImageResponse is the body returned by POST /api/stage-image. The
// staged image travels inline as a data URL so the client can render it
// without waiting for storage.
type StageImageResponse struct {
	Success       bool   `json:"success"`
	StagedImage   string `json:"stagedImage"`
	AIDescription string `json:"aiDescription,omitempty"`
	Message       string `json:"message,omitempty"`
	Style         string `json:"style"`
	RoomType      string `json:"roomType"`
	OriginalURL   string `json:"originalUrl,omitempty"`
	StagedURL     string `json:"stagedUrl,omitempty"`
	// PendingSave signals that the image was generated but its history record
	// is still being finalized in the background.
	PendingSave bool `json:"pendingSave,omitempty"`
}

// CheckoutSessionResponse returns the Stripe session to redirect to.
type CheckoutSessionResponse struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
}

// GuestLimitResponse is the body of GET /api/guest/check-limit.
type GuestLimitResponse struct {
	LimitReached bool `json:"limitReached"`
	Count        int  `json:"count"`
}

// UploadHistoryResponse wraps the user's upload history.
type UploadHistoryResponse struct {
	Uploads []models.UploadRecord `json:"uploads"`
	Count   int                   `json:"count"`
}
