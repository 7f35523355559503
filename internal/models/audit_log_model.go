package models

import "time"

// AuditLog represents an audit trail event.
type AuditLog struct {
	ID        string                 `json:"id" firestore:"-"`
	Timestamp time.Time              `json:"timestamp" firestore:"timestamp,serverTimestamp"`
	UserID    string                 `json:"userId" firestore:"userId"` // Who performed the action; "guest" for anonymous visitors
	Action    string                 `json:"action" firestore:"action"` // e.g., "IMAGE_STAGED", "PLAN_UPDATED", "GUEST_STAGED"
	TargetID  string                 `json:"targetId,omitempty" firestore:"targetId,omitempty"`
	IPAddress string                 `json:"ipAddress,omitempty" firestore:"ipAddress,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty" firestore:"details,omitempty"`
}
