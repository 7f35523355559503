package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"stagevision-backend-go/internal/db"
	"stagevision-backend-go/internal/models"
)

// ErrUserNotFound is returned when a user is not found.
var ErrUserNotFound = errors.New("user not found")

// userService implements the UserService interface.
type userService struct {
	userRepo   db.UserRepository
	uploadRepo db.UploadRepository
	logger     *zap.Logger
}

// NewUserService creates a new UserService instance.
func NewUserService(userRepo db.UserRepository, uploadRepo db.UploadRepository, logger *zap.Logger) UserService {
	return &userService{
		userRepo:   userRepo,
		uploadRepo: uploadRepo,
		logger:     logger,
	}
}

// GetOrCreate retrieves a user by ID. If the user doesn't exist, it creates a
// new one on the free plan and seeds the uploads subcollection.
// Returns the user, a boolean indicating if the user was created, and an error if any.
func (s *userService) GetOrCreate(ctx context.Context, userID, email, displayName, photoURL string) (*models.User, bool, error) {
	if s.userRepo == nil {
		return nil, false, errors.New("UserRepository not initialized in UserService")
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			newUser := &models.User{
				ID:          userID, // Firebase Auth UID is the document ID
				Email:       email,
				DisplayName: displayName,
				PhotoURL:    photoURL,
				Plan:        string(models.TierFree),
				CreatedAt:   time.Now().UTC(),
				UpdatedAt:   time.Now().UTC(),
			}
			if createErr := s.userRepo.Create(ctx, newUser); createErr != nil {
				return nil, false, fmt.Errorf("failed to create user (id: %s) after not found: %w", userID, createErr)
			}
			// Seed the subcollection so the first real upload does not race its
			// own parent-document creation.
			if initErr := s.uploadRepo.EnsureInitialized(ctx, userID); initErr != nil {
				s.logger.Warn("failed to seed uploads subcollection",
					zap.String("userId", userID), zap.Error(initErr))
			}
			return newUser, true, nil
		}
		return nil, false, fmt.Errorf("failed to get user by ID '%s' from repository: %w", userID, err)
	}

	if user == nil {
		return nil, false, fmt.Errorf("repository returned (nil, nil) for user ID '%s', expected error if not found or user object if found", userID)
	}
	return user, false, nil
}

// GetByID retrieves a user by their ID.
func (s *userService) GetByID(ctx context.Context, userID string) (*models.User, error) {
	if s.userRepo == nil {
		return nil, errors.New("UserRepository not initialized in UserService")
	}
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("%w: user with ID '%s'", ErrUserNotFound, userID)
		}
		return nil, fmt.Errorf("failed to get user by ID '%s' from repository: %w", userID, err)
	}
	if user == nil {
		return nil, fmt.Errorf("%w: user with ID '%s' (repository returned nil user and nil error)", ErrUserNotFound, userID)
	}
	return user, nil
}
