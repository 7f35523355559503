package db

import (
	"context"
	"errors"
	"fmt"
	"log"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"stagevision-backend-go/internal/models"
)

const guestUploadsCollection = "guest_uploads"

// firestoreGuestUploadRepository implements GuestUploadRepository on the
// top-level guest_uploads collection.
type firestoreGuestUploadRepository struct {
	client *firestore.Client
}

// NewFirestoreGuestUploadRepository creates a new instance of firestoreGuestUploadRepository.
func NewFirestoreGuestUploadRepository(client *firestore.Client) GuestUploadRepository {
	if client == nil {
		log.Fatal("Firestore client is not initialized for GuestUploadRepository.")
	}
	return &firestoreGuestUploadRepository{client: client}
}

// CountByIP returns how many guest uploads already exist for an IP address.
// One or more means the lifetime limit is reached.
func (r *firestoreGuestUploadRepository) CountByIP(ctx context.Context, ip string) (int, error) {
	if ip == "" {
		return 0, errors.New("ip cannot be empty for CountByIP operation")
	}

	iter := r.client.Collection(guestUploadsCollection).Where("ipAddress", "==", ip).Documents(ctx)
	defer iter.Stop()

	count := 0
	for {
		_, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("failed to count guest uploads for IP '%s': %w", ip, err)
		}
		count++
	}
	return count, nil
}

// SaveIfFirst re-checks the IP existence and creates the record inside a
// single transaction, so two concurrent guest requests from the same address
// cannot both claim the one lifetime image.
func (r *firestoreGuestUploadRepository) SaveIfFirst(ctx context.Context, record *models.GuestUpload) (string, error) {
	if record == nil || record.IPAddress == "" {
		return "", errors.New("record with IP address is required for SaveIfFirst operation")
	}

	docRef := r.client.Collection(guestUploadsCollection).NewDoc()
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		query := r.client.Collection(guestUploadsCollection).
			Where("ipAddress", "==", record.IPAddress).
			Limit(1)
		iter := tx.Documents(query)
		defer iter.Stop()

		_, err := iter.Next()
		if err == nil {
			return fmt.Errorf("%w: IP '%s' already generated its free image", ErrLimitExceeded, record.IPAddress)
		}
		if err != iterator.Done {
			return fmt.Errorf("failed to check guest limit for IP '%s': %w", record.IPAddress, err)
		}

		return tx.Create(docRef, record)
	})
	if err != nil {
		return "", err
	}
	return docRef.ID, nil
}
