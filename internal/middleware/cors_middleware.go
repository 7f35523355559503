package middleware

import (
	"log"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"stagevision-backend-go/internal/config"
)

// CORSMiddleware configures Cross-Origin Resource Sharing (CORS) for the application.
// It allows requests from the CLIENT_URL specified in the application configuration
// and defines common HTTP methods and headers. CLIENT_URL may be a
// comma-separated list when the frontend is served from more than one origin.
func CORSMiddleware(appConfig *config.Config) gin.HandlerFunc {
	if appConfig == nil || appConfig.ClientURL == "" {
		log.Fatal("CRITICAL_ERROR: appConfig or appConfig.ClientURL is not configured for CORSMiddleware. CORS will likely fail or be too permissive.")
		panic("ClientURL for CORS is not configured")
	}

	origins := strings.Split(appConfig.ClientURL, ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}

	return cors.New(cors.Config{
		AllowOrigins: origins,
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		// "Authorization" is crucial for token-based auth.
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}
