package db

import (
	"context"
	"errors"
	"fmt"
	"log"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"stagevision-backend-go/internal/models"
)

const (
	customersCollection     = "customers"
	subscriptionsCollection = "subscriptions"
)

// firestoreSubscriptionRepository implements SubscriptionRepository using the
// customers (keyed by user ID) and subscriptions (keyed by Stripe
// subscription ID) collections.
type firestoreSubscriptionRepository struct {
	client *firestore.Client
}

// NewFirestoreSubscriptionRepository creates a new instance of firestoreSubscriptionRepository.
func NewFirestoreSubscriptionRepository(client *firestore.Client) SubscriptionRepository {
	if client == nil {
		log.Fatal("Firestore client is not initialized for SubscriptionRepository.")
	}
	return &firestoreSubscriptionRepository{client: client}
}

// GetCustomer retrieves the Stripe customer link for a user.
func (r *firestoreSubscriptionRepository) GetCustomer(ctx context.Context, userID string) (*models.Customer, error) {
	if userID == "" {
		return nil, errors.New("userID cannot be empty for GetCustomer operation")
	}
	docSnap, err := r.client.Collection(customersCollection).Doc(userID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("customer record for user '%s' not found: %w", userID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get customer record for user '%s': %w", userID, err)
	}

	var customer models.Customer
	if err := docSnap.DataTo(&customer); err != nil {
		return nil, fmt.Errorf("failed to decode customer record for user '%s': %w", userID, err)
	}
	return &customer, nil
}

// SaveCustomer writes the Stripe customer link, overwriting any previous one.
func (r *firestoreSubscriptionRepository) SaveCustomer(ctx context.Context, customer *models.Customer) error {
	if customer == nil || customer.UserID == "" {
		return errors.New("customer with userID is required for SaveCustomer operation")
	}
	_, err := r.client.Collection(customersCollection).Doc(customer.UserID).Set(ctx, customer)
	if err != nil {
		return fmt.Errorf("failed to save customer record for user '%s': %w", customer.UserID, err)
	}
	return nil
}

// GetSubscription retrieves a mirrored subscription by Stripe subscription ID.
func (r *firestoreSubscriptionRepository) GetSubscription(ctx context.Context, subscriptionID string) (*models.Subscription, error) {
	if subscriptionID == "" {
		return nil, errors.New("subscriptionID cannot be empty for GetSubscription operation")
	}
	docSnap, err := r.client.Collection(subscriptionsCollection).Doc(subscriptionID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("subscription '%s' not found: %w", subscriptionID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get subscription '%s': %w", subscriptionID, err)
	}

	var sub models.Subscription
	if err := docSnap.DataTo(&sub); err != nil {
		return nil, fmt.Errorf("failed to decode subscription '%s': %w", subscriptionID, err)
	}
	sub.ID = docSnap.Ref.ID
	return &sub, nil
}

// SaveSubscription writes the full mirrored subscription state.
func (r *firestoreSubscriptionRepository) SaveSubscription(ctx context.Context, subscription *models.Subscription) error {
	if subscription == nil || subscription.ID == "" {
		return errors.New("subscription with ID is required for SaveSubscription operation")
	}
	_, err := r.client.Collection(subscriptionsCollection).Doc(subscription.ID).Set(ctx, subscription)
	if err != nil {
		return fmt.Errorf("failed to save subscription '%s': %w", subscription.ID, err)
	}
	return nil
}

// UpdateSubscription merges the given field updates into an existing record
// and bumps updatedAt.
func (r *firestoreSubscriptionRepository) UpdateSubscription(ctx context.Context, subscriptionID string, updates map[string]interface{}) error {
	if subscriptionID == "" {
		return errors.New("subscriptionID cannot be empty for UpdateSubscription operation")
	}
	fieldUpdates := make([]firestore.Update, 0, len(updates)+1)
	for path, value := range updates {
		fieldUpdates = append(fieldUpdates, firestore.Update{Path: path, Value: value})
	}
	fieldUpdates = append(fieldUpdates, firestore.Update{Path: "updatedAt", Value: firestore.ServerTimestamp})

	_, err := r.client.Collection(subscriptionsCollection).Doc(subscriptionID).Update(ctx, fieldUpdates)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return fmt.Errorf("subscription '%s' not found: %w", subscriptionID, ErrNotFound)
		}
		return fmt.Errorf("failed to update subscription '%s': %w", subscriptionID, err)
	}
	return nil
}
