package core

import (
	"context"

	"stagevision-backend-go/internal/models"
)

// UserService defines the interface for user-related operations.
type UserService interface {
	// GetOrCreate retrieves a user by ID. If the user doesn't exist, it creates a new one with default values.
	GetOrCreate(ctx context.Context, userID, email, displayName, photoURL string) (*models.User, bool, error)
	GetByID(ctx context.Context, userID string) (*models.User, error)
}

// QuotaStatus is the per-user quota snapshot served to clients. Remaining
// counts are never negative; paid tiers report the no-daily-cap sentinel.
type QuotaStatus struct {
	Tier             models.PlanTier `json:"tier"`
	DailyLimit       int             `json:"dailyLimit"`
	DailyRemaining   int             `json:"dailyRemaining"`
	MonthlyLimit     int             `json:"monthlyLimit"`
	MonthlyRemaining int             `json:"monthlyRemaining"`
	CanUpload        bool            `json:"canUpload"`
}

// QuotaService answers quota questions for authenticated users. Its read
// methods fail open: any storage error degrades to free-tier defaults with
// uploads allowed, because the authoritative check happens transactionally
// at reservation time, not here.
type QuotaService interface {
	GetUserTier(ctx context.Context, userID string) models.PlanTier
	GetUserUploadsToday(ctx context.Context, userID string) (int, error)
	GetUserUploadsThisMonth(ctx context.Context, userID string) (int, error)
	GetRemainingUploadsDaily(ctx context.Context, userID string) int
	GetRemainingUploadsMonthly(ctx context.Context, userID string) int
	CanUserUpload(ctx context.Context, userID string) bool
	GetQuotaStatus(ctx context.Context, userID string) *QuotaStatus
}

// StagingResult is what a successful generation hands back to the handler.
type StagingResult struct {
	// StagedImage is the generated image as a base64 data URL, ready to
	// display without a second fetch.
	StagedImage string
	Description string
	OriginalURL string
	StagedURL   string
	// PendingSave is true when the image was generated but the upload record
	// could not be finalized; a background retry owns it now.
	PendingSave bool
}

// StagingService runs the full generation pipeline for both authenticated
// users and guests.
type StagingService interface {
	StageForUser(ctx context.Context, userID string, req models.StageImageRequest) (*StagingResult, error)
	StageForGuest(ctx context.Context, ip string, req models.StageImageRequest) (*StagingResult, error)
	// GuestLimitReached reports whether an IP has exhausted the guest
	// allowance, plus the current count.
	GuestLimitReached(ctx context.Context, ip string) (bool, int, error)
}

// BillingService defines the interface for Stripe billing operations.
type BillingService interface {
	// CreateCheckoutSession returns the Stripe session ID and hosted URL.
	CreateCheckoutSession(ctx context.Context, req models.CreateCheckoutSessionRequest) (sessionID, url string, err error)
	HandleStripeWebhook(ctx context.Context, payload []byte, signature string) error
}

// AuditService defines the interface for audit logging operations.
type AuditService interface {
	CreateAuditLog(ctx context.Context, logEntry models.AuditLog) error
}
