package db

import (
	"context"
	"errors"
	"fmt"
	"log"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"stagevision-backend-go/internal/models"
)

const usersCollection = "users"

// ErrNotFound is a common error for when a document is not found in Firestore.
var ErrNotFound = errors.New("document not found")

// firestoreUserRepository implements the UserRepository interface using Firestore.
type firestoreUserRepository struct {
	client *firestore.Client
}

// NewFirestoreUserRepository creates a new instance of firestoreUserRepository.
func NewFirestoreUserRepository(client *firestore.Client) UserRepository {
	if client == nil {
		log.Fatal("Firestore client is not initialized for UserRepository.")
	}
	return &firestoreUserRepository{client: client}
}

// Create adds a new user document to Firestore. The user.ID (Firebase Auth
// UID) is used as the Firestore document ID; CreatedAt/UpdatedAt are filled
// server-side via the serverTimestamp tags.
func (r *firestoreUserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		return errors.New("user ID cannot be empty for Create operation")
	}
	_, err := r.client.Collection(usersCollection).Doc(user.ID).Create(ctx, user)
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return fmt.Errorf("user with ID '%s' already exists: %w", user.ID, err)
		}
		return fmt.Errorf("failed to create user with ID '%s': %w", user.ID, err)
	}
	return nil
}

// GetByID retrieves a user document from Firestore by its ID (Firebase Auth UID).
func (r *firestoreUserRepository) GetByID(ctx context.Context, userID string) (*models.User, error) {
	if userID == "" {
		return nil, errors.New("userID cannot be empty for GetByID operation")
	}
	docSnap, err := r.client.Collection(usersCollection).Doc(userID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("user with ID '%s' not found: %w", userID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user with ID '%s': %w", userID, err)
	}

	var user models.User
	if err := docSnap.DataTo(&user); err != nil {
		return nil, fmt.Errorf("failed to decode user data for ID '%s': %w", userID, err)
	}
	user.ID = docSnap.Ref.ID

	return &user, nil
}

// Update modifies an existing user document in Firestore using Set with
// MergeAll, so partial User structs only touch the fields they carry.
func (r *firestoreUserRepository) Update(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		return errors.New("user ID cannot be empty for Update operation")
	}
	_, err := r.client.Collection(usersCollection).Doc(user.ID).Set(ctx, user, firestore.MergeAll)
	if err != nil {
		return fmt.Errorf("failed to update user with ID '%s': %w", user.ID, err)
	}
	return nil
}

// FindByEmail scans the users collection for the first document with a
// matching email field. Billing webhooks from payment links identify the
// buyer only by email, so this is their last-resort user resolution.
func (r *firestoreUserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if email == "" {
		return nil, errors.New("email cannot be empty for FindByEmail operation")
	}

	iter := r.client.Collection(usersCollection).Where("email", "==", email).Limit(1).Documents(ctx)
	defer iter.Stop()

	doc, err := iter.Next()
	if err == iterator.Done {
		return nil, fmt.Errorf("no user with email '%s': %w", email, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user by email '%s': %w", email, err)
	}

	var user models.User
	if err := doc.DataTo(&user); err != nil {
		return nil, fmt.Errorf("failed to decode user data for email '%s': %w", email, err)
	}
	user.ID = doc.Ref.ID
	return &user, nil
}

// UpdatePlan writes only the plan and subscription-status fields of a user
// document, leaving the rest of the profile untouched.
func (r *firestoreUserRepository) UpdatePlan(ctx context.Context, userID, plan, subscriptionStatus string) error {
	if userID == "" {
		return errors.New("userID cannot be empty for UpdatePlan operation")
	}
	updates := []firestore.Update{
		{Path: "plan", Value: plan},
		{Path: "updatedAt", Value: firestore.ServerTimestamp},
	}
	if subscriptionStatus != "" {
		updates = append(updates, firestore.Update{Path: "subscriptionStatus", Value: subscriptionStatus})
	}
	_, err := r.client.Collection(usersCollection).Doc(userID).Update(ctx, updates)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return fmt.Errorf("user with ID '%s' not found: %w", userID, ErrNotFound)
		}
		return fmt.Errorf("failed to update plan for user '%s': %w", userID, err)
	}
	return nil
}
