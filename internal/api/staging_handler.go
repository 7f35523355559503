package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"stagevision-backend-go/internal/core"
	"stagevision-backend-go/internal/models"
)

// StagingHandler handles the image staging endpoint for both authenticated
// users and guests.
type StagingHandler struct {
	stagingService core.StagingService
}

// NewStagingHandler creates a new StagingHandler.
func NewStagingHandler(ss core.StagingService) *StagingHandler {
	return &StagingHandler{stagingService: ss}
}

// mapStagingErrorToStatus maps errors from core.StagingService to HTTP status codes.
func mapStagingErrorToStatus(c *gin.Context, err error) {
	switch {
	case errors.Is(err, core.ErrQuotaExceeded):
		c.JSON(http.StatusTooManyRequests, ErrorResponse{
			Error:   "Upload limit reached",
			Details: "You have used all staged images included in your plan. Upgrade to continue.",
		})
	case errors.Is(err, core.ErrGuestLimitReached):
		c.JSON(http.StatusTooManyRequests, ErrorResponse{
			Error:   "Free staging already used",
			Details: "Sign up to keep staging rooms.",
		})
	case errors.Is(err, core.ErrInvalidImage):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid image payload", Details: err.Error()})
	case errors.Is(err, core.ErrGenerationQuota):
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error:   "Staging temporarily unavailable",
			Details: "The image service is busy. Please try again in a moment.",
		})
	case errors.Is(err, core.ErrGenerationFailed):
		log.Printf("StageImage: generation failed: %v", err)
		c.JSON(http.StatusBadGateway, ErrorResponse{Error: "Image generation failed", Details: "Please try again."})
	default:
		log.Printf("Internal Server Error in StagingHandler: %v", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "An unexpected internal server error occurred."})
	}
}

// StageImage handles POST /api/stage-image. The route sits behind optional
// authentication: a valid token routes through the quota-metered user
// pipeline, no token routes through the one-shot guest pipeline keyed by IP.
func (h *StagingHandler) StageImage(c *gin.Context) {
	var req models.StageImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request payload", Details: err.Error()})
		return
	}
	if len(req.Markers) > 6 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "At most 6 markers are allowed"})
		return
	}

	var result *core.StagingResult
	var err error
	if rawUserID, exists := c.Get("userID"); exists {
		userID, ok := rawUserID.(string)
		if !ok || userID == "" {
			c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "Invalid user ID in context"})
			return
		}
		result, err = h.stagingService.StageForUser(c.Request.Context(), userID, req)
	} else {
		result, err = h.stagingService.StageForGuest(c.Request.Context(), c.ClientIP(), req)
	}
	if err != nil {
		mapStagingErrorToStatus(c, err)
		return
	}

	resp := StageImageResponse{
		Success:       true,
		StagedImage:   result.StagedImage,
		AIDescription: result.Description,
		Style:         req.Style,
		RoomType:      req.RoomType,
		OriginalURL:   result.OriginalURL,
		StagedURL:     result.StagedURL,
		PendingSave:   result.PendingSave,
	}
	if result.PendingSave {
		resp.Message = "Image generated. Your history entry is still saving."
	}
	c.JSON(http.StatusOK, resp)
}

// CheckGuestLimit handles GET /api/guest/check-limit, letting the landing
// page disable the upload widget before the visitor wastes a generation.
func (h *StagingHandler) CheckGuestLimit(c *gin.Context) {
	reached, count, err := h.stagingService.GuestLimitReached(c.Request.Context(), c.ClientIP())
	if err != nil {
		log.Printf("CheckGuestLimit: %v", err)
		// Fail open so a storage hiccup does not block the landing page.
		c.JSON(http.StatusOK, GuestLimitResponse{LimitReached: false, Count: 0})
		return
	}
	c.JSON(http.StatusOK, GuestLimitResponse{LimitReached: reached, Count: count})
}
