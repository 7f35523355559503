package api

import (
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"stagevision-backend-go/internal/core"
	"stagevision-backend-go/internal/models"
)

// BillingHandler handles billing-related API endpoints.
type BillingHandler struct {
	billingService core.BillingService
}

// NewBillingHandler creates a new BillingHandler.
func NewBillingHandler(bs core.BillingService) *BillingHandler {
	return &BillingHandler{billingService: bs}
}

// mapBillingErrorToStatus maps errors from core.BillingService to HTTP status codes and ErrorResponse.
func mapBillingErrorToStatus(c *gin.Context, err error) {
	var statusCode int
	var errResponse ErrorResponse

	switch {
	case errors.Is(err, core.ErrPlanNotFound):
		statusCode = http.StatusNotFound
		errResponse = ErrorResponse{Error: "Plan or Price not found", Details: err.Error()}
	case errors.Is(err, core.ErrStripeClient):
		statusCode = http.StatusServiceUnavailable
		errResponse = ErrorResponse{Error: "Payment provider error", Details: "Could not complete the operation with the payment provider."}
		log.Printf("Stripe Client Error: %v", err)
	case errors.Is(err, core.ErrWebhookSignature):
		statusCode = http.StatusBadRequest
		errResponse = ErrorResponse{Error: "Webhook signature verification failed"}
	case errors.Is(err, core.ErrWebhookProcessing):
		statusCode = http.StatusBadRequest
		errResponse = ErrorResponse{Error: "Webhook processing error", Details: err.Error()}
	case errors.Is(err, core.ErrUserStripeNotLinked):
		statusCode = http.StatusBadRequest
		errResponse = ErrorResponse{Error: "User not linked to payment provider", Details: err.Error()}
	case errors.Is(err, core.ErrUserNotFound):
		statusCode = http.StatusNotFound
		errResponse = ErrorResponse{Error: "User not found", Details: err.Error()}
	default:
		log.Printf("Internal Server Error in BillingHandler: %v", err)
		statusCode = http.StatusInternalServerError
		errResponse = ErrorResponse{Error: "An unexpected internal server error occurred."}
	}
	c.JSON(statusCode, errResponse)
}

// CreateCheckoutSession handles POST /api/create-checkout-session. The
// authenticated UID always wins over whatever userId the body carries.
func (h *BillingHandler) CreateCheckoutSession(c *gin.Context) {
	rawUserID, exists := c.Get("userID")
	if !exists {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "User ID not found in context"})
		return
	}

	var req models.CreateCheckoutSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request payload", Details: err.Error()})
		return
	}
	req.UserID = rawUserID.(string)

	sessionID, url, err := h.billingService.CreateCheckoutSession(c.Request.Context(), req)
	if err != nil {
		mapBillingErrorToStatus(c, err)
		return
	}

	c.JSON(http.StatusOK, CheckoutSessionResponse{SessionID: sessionID, URL: url})
}

// HandleStripeWebhook handles POST /api/stripe-webhook.
// This endpoint is public and does not require JWT authentication.
// Stripe authenticates webhooks using the 'Stripe-Signature' header.
func (h *BillingHandler) HandleStripeWebhook(c *gin.Context) {
	signature := c.GetHeader("Stripe-Signature")
	if signature == "" {
		log.Println("Stripe Webhook: Missing Stripe-Signature header.")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Missing Stripe-Signature header"})
		return
	}

	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		log.Printf("Stripe Webhook: Error reading request body: %v", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to read webhook payload", Details: err.Error()})
		return
	}

	if err := h.billingService.HandleStripeWebhook(c.Request.Context(), payload, signature); err != nil {
		log.Printf("Stripe Webhook: Error handling webhook: %v", err)
		mapBillingErrorToStatus(c, err)
		return
	}

	// Stripe expects a 2xx response to acknowledge receipt of the webhook.
	c.JSON(http.StatusOK, SuccessResponse{Message: "Webhook received successfully"})
}
