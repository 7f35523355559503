package db

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"stagevision-backend-go/internal/models"
)

const (
	uploadsSubcollection = "uploads"
	// initialDocumentID is the fixed ID of the per-user sentinel document.
	initialDocumentID = "initialization"
)

// ErrLimitExceeded is returned by Reserve and SaveIfFirst when a quota window
// or the guest lifetime limit is already exhausted.
var ErrLimitExceeded = errors.New("upload limit exceeded")

// firestoreUploadRepository implements UploadRepository on the
// users/{uid}/uploads subcollections.
type firestoreUploadRepository struct {
	client *firestore.Client
}

// NewFirestoreUploadRepository creates a new instance of firestoreUploadRepository.
func NewFirestoreUploadRepository(client *firestore.Client) UploadRepository {
	if client == nil {
		log.Fatal("Firestore client is not initialized for UploadRepository.")
	}
	return &firestoreUploadRepository{client: client}
}

func (r *firestoreUploadRepository) uploads(userID string) *firestore.CollectionRef {
	return r.client.Collection(usersCollection).Doc(userID).Collection(uploadsSubcollection)
}

// EnsureInitialized writes the sentinel document that forces the uploads
// subcollection into existence. The sentinel carries isInitialDocument so
// every reader can filter it out of quota counts.
func (r *firestoreUploadRepository) EnsureInitialized(ctx context.Context, userID string) error {
	if userID == "" {
		return errors.New("userID cannot be empty for EnsureInitialized operation")
	}
	sentinel := models.UploadRecord{
		UserID:            userID,
		UploadedAt:        time.Now().UTC(),
		Status:            models.UploadStatusCompleted,
		IsInitialDocument: true,
	}
	_, err := r.uploads(userID).Doc(initialDocumentID).Create(ctx, sentinel)
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return nil
		}
		return fmt.Errorf("failed to write initialization sentinel for user '%s': %w", userID, err)
	}
	return nil
}

// ListCompletedSince returns completed records with uploadedAt >= since.
// The sentinel is filtered in code rather than in the query, matching the
// composite-index-free query shape the collection was designed around.
func (r *firestoreUploadRepository) ListCompletedSince(ctx context.Context, userID string, since time.Time) ([]models.UploadRecord, error) {
	if userID == "" {
		return nil, errors.New("userID cannot be empty for ListCompletedSince operation")
	}

	query := r.uploads(userID).Where("status", "==", string(models.UploadStatusCompleted))
	if !since.IsZero() {
		query = query.Where("uploadedAt", ">=", since)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var records []models.UploadRecord
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate uploads for user '%s': %w", userID, err)
		}

		var record models.UploadRecord
		if err := doc.DataTo(&record); err != nil {
			log.Printf("Error decoding upload record (ID: %s) for user '%s': %v. Skipping.", doc.Ref.ID, userID, err)
			continue
		}
		if record.IsInitialDocument {
			continue
		}
		record.ID = doc.Ref.ID
		records = append(records, record)
	}
	return records, nil
}

// ListAll returns the user's full upload history, newest first.
func (r *firestoreUploadRepository) ListAll(ctx context.Context, userID string) ([]models.UploadRecord, error) {
	if userID == "" {
		return nil, errors.New("userID cannot be empty for ListAll operation")
	}

	iter := r.uploads(userID).OrderBy("uploadedAt", firestore.Desc).Documents(ctx)
	defer iter.Stop()

	var records []models.UploadRecord
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate uploads for user '%s': %w", userID, err)
		}

		var record models.UploadRecord
		if err := doc.DataTo(&record); err != nil {
			log.Printf("Error decoding upload record (ID: %s) for user '%s': %v. Skipping.", doc.Ref.ID, userID, err)
			continue
		}
		if record.IsInitialDocument {
			continue
		}
		record.ID = doc.Ref.ID
		records = append(records, record)
	}
	return records, nil
}

// Reserve counts in-window records and creates the reservation in one
// read-write transaction, so two concurrent generation requests cannot both
// pass the quota check before either write lands. In-flight "processing"
// reservations count against the windows here even though only "completed"
// records count in the read paths.
func (r *firestoreUploadRepository) Reserve(ctx context.Context, userID string, windows []models.QuotaWindow, record *models.UploadRecord) (string, error) {
	if userID == "" {
		return "", errors.New("userID cannot be empty for Reserve operation")
	}
	if record == nil {
		return "", errors.New("record cannot be nil for Reserve operation")
	}

	now := time.Now().UTC()
	docRef := r.uploads(userID).NewDoc()

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		query := r.uploads(userID).Where("status", "in", []interface{}{
			string(models.UploadStatusProcessing),
			string(models.UploadStatusCompleted),
		})
		iter := tx.Documents(query)
		defer iter.Stop()

		var active []models.UploadRecord
		for {
			doc, err := iter.Next()
			if err == iterator.Done {
				break
			}
			if err != nil {
				return fmt.Errorf("failed to count uploads: %w", err)
			}
			var rec models.UploadRecord
			if err := doc.DataTo(&rec); err != nil {
				continue
			}
			if rec.IsInitialDocument {
				continue
			}
			active = append(active, rec)
		}

		for _, window := range windows {
			start := window.Start(now)
			count := 0
			for _, rec := range active {
				if start.IsZero() || !rec.UploadedAt.Before(start) {
					count++
				}
			}
			if count >= window.Limit {
				return fmt.Errorf("%w: %s window allows %d, have %d", ErrLimitExceeded, window.Kind, window.Limit, count)
			}
		}

		return tx.Create(docRef, record)
	})
	if err != nil {
		return "", err
	}
	return docRef.ID, nil
}

// Complete finalizes a reservation: status flips to completed and the
// persisted image URLs are attached.
func (r *firestoreUploadRepository) Complete(ctx context.Context, userID, recordID, originalURL, stagedURL string) error {
	if userID == "" || recordID == "" {
		return errors.New("userID and recordID cannot be empty for Complete operation")
	}
	updates := []firestore.Update{
		{Path: "status", Value: string(models.UploadStatusCompleted)},
	}
	if originalURL != "" {
		updates = append(updates, firestore.Update{Path: "originalImageUrl", Value: originalURL})
	}
	if stagedURL != "" {
		updates = append(updates, firestore.Update{Path: "stagedImageUrl", Value: stagedURL})
	}
	_, err := r.uploads(userID).Doc(recordID).Update(ctx, updates)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return fmt.Errorf("upload record '%s' not found: %w", recordID, ErrNotFound)
		}
		return fmt.Errorf("failed to complete upload record '%s': %w", recordID, err)
	}
	return nil
}

// Fail marks a reservation failed. Failed records never count toward quota,
// so an aborted generation immediately returns the slot to the user.
func (r *firestoreUploadRepository) Fail(ctx context.Context, userID, recordID string) error {
	if userID == "" || recordID == "" {
		return errors.New("userID and recordID cannot be empty for Fail operation")
	}
	_, err := r.uploads(userID).Doc(recordID).Update(ctx, []firestore.Update{
		{Path: "status", Value: string(models.UploadStatusFailed)},
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return fmt.Errorf("upload record '%s' not found: %w", recordID, ErrNotFound)
		}
		return fmt.Errorf("failed to mark upload record '%s' failed: %w", recordID, err)
	}
	return nil
}
