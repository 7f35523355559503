package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"stagevision-backend-go/internal/api"
	"stagevision-backend-go/internal/config"
	"stagevision-backend-go/internal/core"
	"stagevision-backend-go/internal/db"
	"stagevision-backend-go/internal/imagegen"
	"stagevision-backend-go/internal/middleware"
	"stagevision-backend-go/internal/queue"
	"stagevision-backend-go/internal/storage"
)

func main() {
	// --- 1. Initialize Logger (Zap) ---
	zapLogger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("CRITICAL_ERROR: Failed to initialize Zap logger: %v", err)
	}
	defer zapLogger.Sync()
	zapLogger.Info("Zap logger initialized successfully.")

	// --- 2. Load Application Configuration ---
	appConfig, err := config.LoadConfig()
	if err != nil {
		zapLogger.Fatal("CRITICAL_ERROR: Failed to load application configuration", zap.Error(err))
	}
	zapLogger.Info("Application configuration loaded successfully.")

	// --- 3. Initialize Firebase Admin SDK (Firestore, Auth, Storage) ---
	initCtx, cancelInitCtx := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelInitCtx()
	if err := db.InitFirebase(initCtx, appConfig); err != nil {
		zapLogger.Fatal("CRITICAL_ERROR: Failed to initialize Firebase Admin SDK", zap.Error(err))
	}
	zapLogger.Info("Firebase Admin SDK (Firestore, Auth) initialized successfully.")

	firestoreClient := db.GetFirestoreClient()
	firebaseAuthClient := db.GetFirebaseAuthClient()
	if firestoreClient == nil {
		zapLogger.Fatal("CRITICAL_ERROR: Firestore client is nil after initialization. Application cannot start.")
	}
	if firebaseAuthClient == nil {
		zapLogger.Fatal("CRITICAL_ERROR: Firebase Auth client is nil after initialization. Application cannot start.")
	}

	// --- 4. Initialize Repositories ---
	userRepo := db.NewFirestoreUserRepository(firestoreClient)
	uploadRepo := db.NewFirestoreUploadRepository(firestoreClient)
	guestRepo := db.NewFirestoreGuestUploadRepository(firestoreClient)
	subscriptionRepo := db.NewFirestoreSubscriptionRepository(firestoreClient)
	auditRepo := db.NewFirestoreAuditRepository(firestoreClient)
	zapLogger.Info("Repositories initialized successfully.")

	// --- 5. Initialize Image Generation and Storage ---
	generator, err := imagegen.NewClient(initCtx, appConfig.GeminiAPIKey, appConfig.GeminiModel, 0, zapLogger)
	if err != nil {
		zapLogger.Fatal("CRITICAL_ERROR: Failed to initialize Gemini client", zap.Error(err))
	}

	// The image store tolerates a nil bucket; staged images are then served
	// inline only.
	imageStore := storage.NewImageStore(db.GetStorageBucket(), appConfig.StorageBucket, zapLogger)

	// The persistence queue is optional; without Redis, a failed history write
	// is logged and surfaced to the client as pendingSave.
	persistQueue := queue.NewClient(appConfig.RedisAddr)
	defer persistQueue.Close()
	if appConfig.RedisAddr == "" {
		zapLogger.Warn("REDIS_ADDR not set; background persistence retries are disabled.")
	}

	// --- 6. Initialize Services ---
	auditService := core.NewAuditService(auditRepo)
	userService := core.NewUserService(userRepo, uploadRepo, zapLogger)
	quotaService := core.NewQuotaService(userRepo, uploadRepo, zapLogger)
	stagingService := core.NewStagingService(userRepo, uploadRepo, guestRepo, generator, imageStore, persistQueue, auditService, zapLogger)
	billingService := core.NewBillingService(userRepo, subscriptionRepo, auditService, core.BillingConfig{
		SecretKey:     appConfig.StripeSecretKey,
		WebhookSecret: appConfig.StripeWebhookSecret,
		BasicPriceID:  appConfig.StripeBasicPriceID,
		ProPriceID:    appConfig.StripeProPriceID,
		ClientURL:     appConfig.ClientURL,
	}, zapLogger)
	zapLogger.Info("Core services initialized successfully.")

	// --- 7. Setup Gin HTTP Engine ---
	if strings.ToLower(appConfig.GinMode) == "release" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}
	router := gin.New()

	// --- 8. Apply Global Middleware (Order is important) ---
	router.Use(middleware.RequestLogger(zapLogger))
	router.Use(middleware.RecoveryMiddleware(zapLogger))
	router.Use(middleware.CORSMiddleware(appConfig))

	// --- 9. Setup API Routes ---
	api.SetupRoutes(
		router,
		appConfig,
		zapLogger,
		userService,
		stagingService,
		quotaService,
		billingService,
		uploadRepo,
	)

	// --- 10. Configure and Start HTTP Server ---
	serverAddr := fmt.Sprintf(":%s", appConfig.Port)
	httpServer := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	zapLogger.Info("Starting HTTP server...", zap.String("address", serverAddr), zap.String("ginMode", gin.Mode()))

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	// --- 11. Graceful Shutdown Handling ---
	quitChannel := make(chan os.Signal, 1)
	signal.Notify(quitChannel, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quitChannel
	zapLogger.Info("Received shutdown signal", zap.String("signal", sig.String()))

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	zapLogger.Info("Attempting graceful shutdown of HTTP server...")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zapLogger.Fatal("Server forced to shutdown due to error during graceful shutdown", zap.Error(err))
	}

	zapLogger.Info("Server exiting gracefully.")
}
