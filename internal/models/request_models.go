package models

// MarkerPoint is a polygon vertex in percent coordinates, 0..100.
type MarkerPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// MarkerPayload is the per-marker metadata sent alongside a generation
// request. RefImage is a base64-encoded, recompressed reference photo.
// X, Y and RadiusPoints let the server re-render the layout guide when the
// client did not send a pre-composited maskedImage.
type MarkerPayload struct {
	ID           string        `json:"id"`
	Color        string        `json:"color"`
	X            float64       `json:"x,omitempty"`
	Y            float64       `json:"y,omitempty"`
	RadiusPoints []MarkerPoint `json:"radiusPoints,omitempty"`
	Instruction  string        `json:"instruction,omitempty"`
	RefImage     string        `json:"refImage,omitempty"`
}

// StageImageRequest is the body of POST /api/stage-image. OriginalImage and
// MaskedImage are data URLs; MaskedImage is present only when markers exist.
type StageImageRequest struct {
	OriginalImage    string          `json:"originalImage" binding:"required"`
	MaskedImage      string          `json:"maskedImage,omitempty"`
	Markers          []MarkerPayload `json:"markers,omitempty"`
	Style            string          `json:"style" binding:"required"`
	RoomType         string          `json:"roomType" binding:"required"`
	AdditionalPrompt string          `json:"additionalPrompt,omitempty"`
	ImageName        string          `json:"imageName,omitempty"`
	SessionID        string          `json:"sessionId,omitempty"` // guest browser session, for later claim
}

// CreateCheckoutSessionRequest is the body of POST /api/create-checkout-session.
// The authenticated UID overrides UserID; PriceID falls back to the price
// configured for the plan.
type CreateCheckoutSessionRequest struct {
	UserID     string `json:"userId,omitempty"`
	PlanType   string `json:"planType" binding:"required"`
	PriceID    string `json:"priceId,omitempty"`
	SuccessURL string `json:"successUrl,omitempty"`
	CancelURL  string `json:"cancelUrl,omitempty"`
}
