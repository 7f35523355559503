package db

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"os"

	gcs "cloud.google.com/go/storage"
	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/option"

	"stagevision-backend-go/internal/config"
)

var (
	// fsClient is the global Firestore client instance.
	fsClient *firestore.Client
	// fbAuthClient is the global Firebase Auth client instance.
	fbAuthClient *auth.Client
	// storageBucket is the bucket staged and original images are written to.
	storageBucket *gcs.BucketHandle
)

// InitFirebase initializes the Firebase Admin SDK and sets up the Firestore,
// Auth and Storage clients. It uses credentials and project ID from the
// provided appConfig.
func InitFirebase(ctx context.Context, appConfig *config.Config) error {
	if appConfig == nil {
		return fmt.Errorf("InitFirebase: appConfig cannot be nil")
	}

	var credsOption option.ClientOption

	// Determine Firebase credentials: a service-account file path, inline
	// base64-encoded JSON, or Application Default Credentials.
	if appConfig.GoogleApplicationCredentials != "" {
		log.Printf("Initializing Firebase with credentials file: %s", appConfig.GoogleApplicationCredentials)
		if _, err := os.Stat(appConfig.GoogleApplicationCredentials); os.IsNotExist(err) {
			log.Printf("Warning: Credentials file specified in GOOGLE_APPLICATION_CREDENTIALS does not exist: %s", appConfig.GoogleApplicationCredentials)
		}
		credsOption = option.WithCredentialsFile(appConfig.GoogleApplicationCredentials)
	} else if appConfig.FirebaseServiceAccountJSONBase64 != "" {
		log.Println("Initializing Firebase with Base64 encoded service account JSON.")
		decodedJSON, err := base64.StdEncoding.DecodeString(appConfig.FirebaseServiceAccountJSONBase64)
		if err != nil {
			return fmt.Errorf("failed to decode FirebaseServiceAccountJSONBase64: %w", err)
		}
		credsOption = option.WithCredentialsJSON(decodedJSON)
	} else {
		log.Println("Initializing Firebase using Application Default Credentials (ADC).")
	}

	firebaseAppConfig := &firebase.Config{
		ProjectID:     appConfig.FirebaseProjectID,
		StorageBucket: appConfig.StorageBucket,
	}

	var app *firebase.App
	var err error
	if credsOption != nil {
		app, err = firebase.NewApp(ctx, firebaseAppConfig, credsOption)
	} else {
		app, err = firebase.NewApp(ctx, firebaseAppConfig)
	}
	if err != nil {
		return fmt.Errorf("firebase.NewApp: %w", err)
	}

	client, err := app.Firestore(ctx)
	if err != nil {
		return fmt.Errorf("app.Firestore: %w", err)
	}
	fsClient = client
	log.Println("Firestore client initialized successfully.")

	authCl, err := app.Auth(ctx)
	if err != nil {
		if fsClient != nil {
			fsClient.Close() // Best effort close
		}
		return fmt.Errorf("app.Auth: %w", err)
	}
	fbAuthClient = authCl
	log.Println("Firebase Auth client initialized successfully.")

	// Storage is optional: without a configured bucket the service still runs,
	// staged images are just returned inline and never persisted.
	if appConfig.StorageBucket != "" {
		storageCl, err := app.Storage(ctx)
		if err != nil {
			return fmt.Errorf("app.Storage: %w", err)
		}
		bucket, err := storageCl.DefaultBucket()
		if err != nil {
			return fmt.Errorf("storage.DefaultBucket: %w", err)
		}
		storageBucket = bucket
		log.Printf("Cloud Storage bucket initialized: %s", appConfig.StorageBucket)
	} else {
		log.Println("Warning: STORAGE_BUCKET not configured; staged images will not be persisted.")
	}

	return nil
}

// GetFirestoreClient returns the global Firestore client.
// Callers should check if the client is nil, implying InitFirebase hasn't been called or failed.
func GetFirestoreClient() *firestore.Client {
	if fsClient == nil {
		log.Println("Warning: GetFirestoreClient called before InitFirebase or InitFirebase failed.")
	}
	return fsClient
}

// GetFirebaseAuthClient returns the global Firebase Auth client.
// Callers should check if the client is nil.
func GetFirebaseAuthClient() *auth.Client {
	if fbAuthClient == nil {
		log.Println("Warning: GetFirebaseAuthClient called before InitFirebase or InitFirebase failed.")
	}
	return fbAuthClient
}

// GetStorageBucket returns the configured Cloud Storage bucket handle, or nil
// when no bucket was configured.
func GetStorageBucket() *gcs.BucketHandle {
	return storageBucket
}
