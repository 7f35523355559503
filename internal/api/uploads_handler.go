package api

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"stagevision-backend-go/internal/core"
	"stagevision-backend-go/internal/db"
)

// UploadsHandler serves the authenticated user's upload history and quota.
type UploadsHandler struct {
	uploadRepo   db.UploadRepository
	quotaService core.QuotaService
}

// NewUploadsHandler creates a new UploadsHandler.
func NewUploadsHandler(uploadRepo db.UploadRepository, qs core.QuotaService) *UploadsHandler {
	return &UploadsHandler{uploadRepo: uploadRepo, quotaService: qs}
}

// userIDFromContext pulls the authenticated UID set by the auth middleware.
func userIDFromContext(c *gin.Context) (string, bool) {
	rawUserID, exists := c.Get("userID")
	if !exists {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "Authentication error: User ID not found in context"})
		return "", false
	}
	userID, ok := rawUserID.(string)
	if !ok || userID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid user ID format in context"})
		return "", false
	}
	return userID, true
}

// ListUploads handles GET /api/uploads, newest first.
func (h *UploadsHandler) ListUploads(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		return
	}

	uploads, err := h.uploadRepo.ListAll(c.Request.Context(), userID)
	if err != nil {
		log.Printf("ListUploads Error: failed for userID %s: %v", userID, err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to retrieve upload history"})
		return
	}
	c.JSON(http.StatusOK, UploadHistoryResponse{Uploads: uploads, Count: len(uploads)})
}

// GetQuota handles GET /api/quota. The quota service fails open, so this
// endpoint never errors.
func (h *UploadsHandler) GetQuota(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.quotaService.GetQuotaStatus(c.Request.Context(), userID))
}
