package middleware

import (
	"log"
	"net/http"
	"strings"

	"firebase.google.com/go/v4/auth"
	"github.com/gin-gonic/gin"
	// To avoid potential import cycles with internal/api, ErrorResponse is defined locally.
)

// ErrorResponse is a local definition for sending standardized error messages.
// It mirrors the one in internal/api/dto_models.go to avoid import cycles.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// AuthMiddleware provides Gin middleware for Firebase token authentication.
type AuthMiddleware struct {
	firebaseAuthClient *auth.Client
}

// NewAuthMiddleware creates a new AuthMiddleware instance.
// It panics if the firebaseAuthClient is nil, as this is a critical setup dependency.
func NewAuthMiddleware(fbAuthClient *auth.Client) *AuthMiddleware {
	if fbAuthClient == nil {
		log.Fatal("CRITICAL_ERROR: Firebase Auth client is not initialized for AuthMiddleware. Ensure db.InitFirebase() and db.GetFirebaseAuthClient() are called and succeed before initializing middleware.")
		panic("Firebase Auth client is not initialized for AuthMiddleware")
	}
	return &AuthMiddleware{firebaseAuthClient: fbAuthClient}
}

// VerifyToken is a Gin middleware handler function that verifies a Firebase ID token
// from the Authorization header. If valid, it sets user information in the Gin context.
func (m *AuthMiddleware) VerifyToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "Authorization header is required"})
			return
		}

		idToken, ok := bearerToken(authHeader)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "Authorization header format must be 'Bearer {token}'"})
			return
		}

		token, err := m.firebaseAuthClient.VerifyIDToken(c.Request.Context(), idToken)
		if err != nil {
			log.Printf("AuthMiddleware: Error verifying Firebase ID token: %v", err)
			// Specific error details are logged server-side only.
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "Invalid or expired authentication token"})
			return
		}

		setUserContext(c, token)
		c.Next()
	}
}

// OptionalVerifyToken verifies a Firebase ID token when one is present but
// lets anonymous requests through untouched. A header that is present but
// invalid is still rejected, so a stale token cannot demote a user to the
// guest path silently.
func (m *AuthMiddleware) OptionalVerifyToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.Next()
			return
		}

		idToken, ok := bearerToken(authHeader)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "Authorization header format must be 'Bearer {token}'"})
			return
		}

		token, err := m.firebaseAuthClient.VerifyIDToken(c.Request.Context(), idToken)
		if err != nil {
			log.Printf("AuthMiddleware: Error verifying Firebase ID token: %v", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "Invalid or expired authentication token"})
			return
		}

		setUserContext(c, token)
		c.Next()
	}
}

// bearerToken extracts the token from a "Bearer {token}" header value.
func bearerToken(header string) (string, bool) {
	parts := strings.Split(header, " ")
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}

// setUserContext sets the verified user's identity claims for downstream handlers.
func setUserContext(c *gin.Context, token *auth.Token) {
	c.Set("userID", token.UID)

	if email, ok := token.Claims["email"].(string); ok {
		c.Set("userEmail", email)
	}
	// 'name' is a common claim for display name in Firebase ID tokens.
	if name, ok := token.Claims["name"].(string); ok {
		c.Set("userDisplayName", name)
	}
	// 'picture' is a common claim for photo URL.
	if picture, ok := token.Claims["picture"].(string); ok {
		c.Set("userPhotoURL", picture)
	}
}
