package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"stagevision-backend-go/internal/config"
	"stagevision-backend-go/internal/db"
	"stagevision-backend-go/internal/worker"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	zapLogger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("CRITICAL_ERROR: Failed to initialize Zap logger: %v", err)
	}
	defer zapLogger.Sync()

	appConfig, err := config.LoadConfig()
	if err != nil {
		zapLogger.Fatal("CRITICAL_ERROR: Failed to load application configuration", zap.Error(err))
	}
	if appConfig.RedisAddr == "" {
		zapLogger.Fatal("CRITICAL_ERROR: REDIS_ADDR is required for the worker.")
	}

	initCtx, cancelInitCtx := context.WithTimeout(ctx, 15*time.Second)
	defer cancelInitCtx()
	if err := db.InitFirebase(initCtx, appConfig); err != nil {
		zapLogger.Fatal("CRITICAL_ERROR: Failed to initialize Firebase Admin SDK", zap.Error(err))
	}

	firestoreClient := db.GetFirestoreClient()
	if firestoreClient == nil {
		zapLogger.Fatal("CRITICAL_ERROR: Firestore client is nil after initialization.")
	}
	uploadRepo := db.NewFirestoreUploadRepository(firestoreClient)

	server := asynq.NewServer(asynq.RedisClientOpt{
		Addr: appConfig.RedisAddr,
	}, asynq.Config{
		Concurrency: 5,
	})
	processor := worker.NewProcessor(uploadRepo, zapLogger)
	mux := processor.Handler()

	go func() {
		<-ctx.Done()
		server.Shutdown()
	}()

	zapLogger.Info("Persistence worker starting", zap.String("redis", appConfig.RedisAddr))
	if err := server.Run(mux); err != nil {
		zapLogger.Error("worker stopped", zap.Error(err))
		os.Exit(1)
	}
}
