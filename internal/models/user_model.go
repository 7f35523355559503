package models

import "time"

// User represents a user in the system.
type User struct {
	ID                   string    `json:"id" firestore:"-"` // Firebase Auth UID, will be the document ID
	Email                string    `json:"email" firestore:"email"`
	DisplayName          string    `json:"displayName,omitempty" firestore:"displayName,omitempty"`
	PhotoURL             string    `json:"photoURL,omitempty" firestore:"photoURL,omitempty"`
	Plan                 string    `json:"plan" firestore:"plan"` // "free", "basic" or "pro"; parsed with ParsePlanTier
	StripeCustomerID     string    `json:"stripeCustomerId,omitempty" firestore:"stripeCustomerId,omitempty"`
	StripeSubscriptionID string    `json:"stripeSubscriptionId,omitempty" firestore:"stripeSubscriptionId,omitempty"`
	SubscriptionStatus   string    `json:"subscriptionStatus,omitempty" firestore:"subscriptionStatus,omitempty"` // e.g., "active", "canceled"
	CreatedAt            time.Time `json:"createdAt" firestore:"createdAt,serverTimestamp"`
	UpdatedAt            time.Time `json:"updatedAt" firestore:"updatedAt,serverTimestamp"`
}
