package models

import "time"

// UploadStatus is the lifecycle state of an upload record.
type UploadStatus string

const (
	// UploadStatusProcessing marks a quota reservation whose staged image has
	// not been durably persisted yet.
	UploadStatusProcessing UploadStatus = "processing"
	UploadStatusCompleted  UploadStatus = "completed"
	UploadStatusFailed     UploadStatus = "failed"
)

// UploadRecord represents one staged-image generation, stored under
// users/{uid}/uploads. Only records with status "completed" that are not the
// initialization sentinel count toward quota.
type UploadRecord struct {
	ID               string       `json:"id,omitempty" firestore:"-"`
	UserID           string       `json:"userId" firestore:"userId"`
	UploadedAt       time.Time    `json:"uploadedAt" firestore:"uploadedAt"`
	ImageSize        int64        `json:"imageSize" firestore:"imageSize"`
	ImageName        string       `json:"imageName" firestore:"imageName"`
	Style            string       `json:"style" firestore:"style"`
	RoomType         string       `json:"roomType" firestore:"roomType"`
	Status           UploadStatus `json:"status" firestore:"status"`
	OriginalImageURL string       `json:"originalImageUrl,omitempty" firestore:"originalImageUrl,omitempty"`
	StagedImageURL   string       `json:"stagedImageUrl,omitempty" firestore:"stagedImageUrl,omitempty"`
	// IsInitialDocument flags the sentinel written once per user to force the
	// uploads subcollection into existence. It must be excluded everywhere.
	IsInitialDocument bool `json:"isInitialDocument,omitempty" firestore:"isInitialDocument,omitempty"`
}

// CountsTowardQuota reports whether the record consumes quota in a window
// starting at windowStart (zero time means unbounded, i.e. lifetime).
func (r UploadRecord) CountsTowardQuota(windowStart time.Time) bool {
	if r.IsInitialDocument || r.Status != UploadStatusCompleted {
		return false
	}
	if windowStart.IsZero() {
		return true
	}
	return !r.UploadedAt.Before(windowStart)
}

// GuestUpload is a record in the guest_uploads collection. One document per
// staged image generated by an unauthenticated visitor; the ipAddress field
// doubles as the lifetime rate-limit key.
type GuestUpload struct {
	ID               string    `json:"id,omitempty" firestore:"-"`
	SessionID        string    `json:"sessionId,omitempty" firestore:"sessionId,omitempty"`
	IPAddress        string    `json:"ipAddress" firestore:"ipAddress"`
	OriginalImageURL string    `json:"originalImageUrl,omitempty" firestore:"originalImageUrl,omitempty"`
	StagedImageURL   string    `json:"stagedImageUrl,omitempty" firestore:"stagedImageUrl,omitempty"`
	Style            string    `json:"style" firestore:"style"`
	RoomType         string    `json:"roomType" firestore:"roomType"`
	UploadedAt       time.Time `json:"uploadedAt" firestore:"uploadedAt"`
	IsGuest          bool      `json:"isGuest" firestore:"isGuest"`
	Claimed          bool      `json:"claimed" firestore:"claimed"`
}
