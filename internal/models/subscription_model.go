package models

import "time"

// Customer links an application user to a Stripe customer. Stored in the
// customers collection keyed by the user ID so checkout-session creation can
// reuse an existing Stripe customer instead of minting a new one per attempt.
type Customer struct {
	UserID     string    `json:"userId" firestore:"userId"`
	CustomerID string    `json:"customerId" firestore:"customerId"`
	Email      string    `json:"email" firestore:"email"`
	Name       string    `json:"name,omitempty" firestore:"name,omitempty"`
	CreatedAt  time.Time `json:"createdAt" firestore:"createdAt,serverTimestamp"`
	UpdatedAt  time.Time `json:"updatedAt" firestore:"updatedAt,serverTimestamp"`
}

// Subscription mirrors the Stripe subscription state the webhook cares about.
// Stored in the subscriptions collection keyed by the Stripe subscription ID.
type Subscription struct {
	ID                 string    `json:"subscriptionId" firestore:"subscriptionId"`
	UserID             string    `json:"userId" firestore:"userId"`
	CustomerID         string    `json:"customerId" firestore:"customerId"`
	Plan               string    `json:"plan" firestore:"plan"` // "basic" or "pro"
	Status             string    `json:"status" firestore:"status"` // e.g., "active", "past_due", "canceled"
	CurrentPeriodStart time.Time `json:"currentPeriodStart" firestore:"currentPeriodStart"`
	CurrentPeriodEnd   time.Time `json:"currentPeriodEnd" firestore:"currentPeriodEnd"`
	CancelAtPeriodEnd  bool      `json:"cancelAtPeriodEnd" firestore:"cancelAtPeriodEnd"`
	CreatedAt          time.Time `json:"createdAt" firestore:"createdAt,serverTimestamp"`
	UpdatedAt          time.Time `json:"updatedAt" firestore:"updatedAt,serverTimestamp"`
}
