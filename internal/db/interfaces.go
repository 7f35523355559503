package db

import (
	"context"
	"time"

	"stagevision-backend-go/internal/models"
)

// UserRepository defines the interface for user data storage operations.
type UserRepository interface {
	GetByID(ctx context.Context, userID string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	// FindByEmail scans the users collection for a matching email. Used by the
	// billing webhook when a payment-link event carries no user metadata.
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	// UpdatePlan writes only the plan and subscription-status fields.
	UpdatePlan(ctx context.Context, userID, plan, subscriptionStatus string) error
}

// UploadRepository defines the interface for upload-record storage under
// users/{uid}/uploads.
type UploadRepository interface {
	// EnsureInitialized writes the per-user initialization sentinel so the
	// subcollection exists before the first real record. Idempotent.
	EnsureInitialized(ctx context.Context, userID string) error
	// ListCompletedSince returns completed records with uploadedAt >= since
	// (zero time means all records), the sentinel filtered out.
	ListCompletedSince(ctx context.Context, userID string, since time.Time) ([]models.UploadRecord, error)
	// ListAll returns the user's upload history newest-first, sentinel excluded.
	ListAll(ctx context.Context, userID string) ([]models.UploadRecord, error)
	// Reserve atomically re-counts in-flight and completed records against the
	// given windows and creates a "processing" reservation. Returns the new
	// record ID, or ErrLimitExceeded when any window is exhausted.
	Reserve(ctx context.Context, userID string, windows []models.QuotaWindow, record *models.UploadRecord) (string, error)
	// Complete finalizes a reservation with the persisted image URLs.
	Complete(ctx context.Context, userID, recordID, originalURL, stagedURL string) error
	// Fail marks a reservation failed so it stops consuming quota.
	Fail(ctx context.Context, userID, recordID string) error
}

// GuestUploadRepository defines storage for the guest_uploads collection,
// which doubles as the per-IP lifetime rate limit for anonymous visitors.
type GuestUploadRepository interface {
	// CountByIP returns how many guest uploads exist for an IP address.
	CountByIP(ctx context.Context, ip string) (int, error)
	// SaveIfFirst creates the record only if no record exists for the IP yet,
	// inside a transaction. Returns ErrLimitExceeded otherwise.
	SaveIfFirst(ctx context.Context, record *models.GuestUpload) (string, error)
}

// SubscriptionRepository defines storage for Stripe customer links and
// mirrored subscription state.
type SubscriptionRepository interface {
	GetCustomer(ctx context.Context, userID string) (*models.Customer, error)
	SaveCustomer(ctx context.Context, customer *models.Customer) error
	GetSubscription(ctx context.Context, subscriptionID string) (*models.Subscription, error)
	SaveSubscription(ctx context.Context, subscription *models.Subscription) error
	// UpdateSubscription merges the given fields into an existing record.
	UpdateSubscription(ctx context.Context, subscriptionID string, updates map[string]interface{}) error
}

// AuditRepository defines the interface for audit log data storage operations.
type AuditRepository interface {
	Create(ctx context.Context, logEntry models.AuditLog) error
}
