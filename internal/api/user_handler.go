package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"stagevision-backend-go/internal/core"
)

// UserHandler handles user-profile related API endpoints.
type UserHandler struct {
	userService core.UserService
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(us core.UserService) *UserHandler {
	return &UserHandler{userService: us}
}

// GetCurrentUserProfile handles the GET /api/users/me endpoint.
// It retrieves the profile of the currently authenticated user.
func (h *UserHandler) GetCurrentUserProfile(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		return
	}

	user, err := h.userService.GetByID(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, core.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "User profile not found"})
			return
		}
		log.Printf("GetCurrentUserProfile Error: userService.GetByID failed for userID %s: %v", userID, err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to retrieve user profile", Details: err.Error()})
		return
	}

	c.JSON(http.StatusOK, user)
}
