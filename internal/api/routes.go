package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"stagevision-backend-go/internal/config"
	"stagevision-backend-go/internal/core"
	"stagevision-backend-go/internal/db"
	"stagevision-backend-go/internal/middleware"
)

// SetupRoutes configures all the application routes with their handlers and middleware.
// It's expected that global middleware (Logging, Recovery, CORS) are applied to the `router`
// instance *before* this function is called, typically in `main.go`.
func SetupRoutes(
	router *gin.Engine,
	appConfig *config.Config,
	logger *zap.Logger,
	userService core.UserService,
	stagingService core.StagingService,
	quotaService core.QuotaService,
	billingService core.BillingService,
	uploadRepo db.UploadRepository,
) {
	// Get Firebase Auth client. This must be available after db.InitFirebase().
	firebaseAuthClient := db.GetFirebaseAuthClient()
	if firebaseAuthClient == nil {
		logger.Fatal("CRITICAL_SETUP_ERROR: Firebase Auth client is not initialized. AuthMiddleware cannot be created, and routes will not be set up.")
		panic("Firebase Auth client is nil during route setup. Ensure db.InitFirebase() was called and succeeded.")
	}
	authMW := middleware.NewAuthMiddleware(firebaseAuthClient)

	authHandler := NewAuthHandler(userService)
	userHandler := NewUserHandler(userService)
	stagingHandler := NewStagingHandler(stagingService)
	uploadsHandler := NewUploadsHandler(uploadRepo, quotaService)
	billingHandler := NewBillingHandler(billingService)

	apiGroup := router.Group("/api")
	{
		// Staging sits behind optional authentication: a valid token routes to
		// the quota-metered pipeline, no token to the guest pipeline.
		apiGroup.POST("/stage-image", authMW.OptionalVerifyToken(), stagingHandler.StageImage)

		// Guest limit probe for the landing page. Keyed by client IP, no auth.
		apiGroup.GET("/guest/check-limit", stagingHandler.CheckGuestLimit)

		usersGroup := apiGroup.Group("/users")
		{
			// POST /api/users/initialize - called after client-side Firebase
			// login/signup to ensure the backend profile exists.
			usersGroup.POST("/initialize", authMW.VerifyToken(), authHandler.InitializeUserProfile)
			usersGroup.GET("/me", authMW.VerifyToken(), userHandler.GetCurrentUserProfile)
		}

		apiGroup.GET("/uploads", authMW.VerifyToken(), uploadsHandler.ListUploads)
		apiGroup.GET("/quota", authMW.VerifyToken(), uploadsHandler.GetQuota)

		apiGroup.POST("/create-checkout-session", authMW.VerifyToken(), billingHandler.CreateCheckoutSession)

		// Public webhook endpoint for Stripe (NO authMW.VerifyToken() middleware here).
		// Stripe authenticates webhooks via signature, handled by the service.
		apiGroup.POST("/stripe-webhook", billingHandler.HandleStripeWebhook)
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "UP", "message": "StageVision backend is healthy."})
	})

	logger.Info("API routes configured successfully under /api and /health.")
}
