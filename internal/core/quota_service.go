package core

import (
	"context"
	"time"

	"go.uber.org/zap"

	"stagevision-backend-go/internal/db"
	"stagevision-backend-go/internal/models"
)

// quotaService implements the QuotaService interface on top of the user and
// upload repositories.
type quotaService struct {
	userRepo   db.UserRepository
	uploadRepo db.UploadRepository
	logger     *zap.Logger
	now        func() time.Time
}

// NewQuotaService creates a new QuotaService instance.
func NewQuotaService(userRepo db.UserRepository, uploadRepo db.UploadRepository, logger *zap.Logger) QuotaService {
	return &quotaService{
		userRepo:   userRepo,
		uploadRepo: uploadRepo,
		logger:     logger,
		now:        time.Now,
	}
}

// GetUserTier resolves the user's plan tier. Any failure, including a missing
// profile document, resolves to the free tier so a read error can never grant
// a paid quota.
func (s *quotaService) GetUserTier(ctx context.Context, userID string) models.PlanTier {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil || user == nil {
		if err != nil && s.logger != nil {
			s.logger.Warn("tier lookup failed, defaulting to free",
				zap.String("userId", userID), zap.Error(err))
		}
		return models.TierFree
	}
	return models.ParsePlanTier(user.Plan)
}

// GetUserUploadsToday counts completed generations in the trailing 24 hours.
func (s *quotaService) GetUserUploadsToday(ctx context.Context, userID string) (int, error) {
	since := s.now().Add(-24 * time.Hour)
	records, err := s.uploadRepo.ListCompletedSince(ctx, userID, since)
	if err != nil {
		return 0, err
	}
	return len(records), nil
}

// GetUserUploadsThisMonth counts completed generations since the first of the
// current calendar month.
func (s *quotaService) GetUserUploadsThisMonth(ctx context.Context, userID string) (int, error) {
	now := s.now()
	y, m, _ := now.Date()
	since := time.Date(y, m, 1, 0, 0, 0, 0, now.Location())
	records, err := s.uploadRepo.ListCompletedSince(ctx, userID, since)
	if err != nil {
		return 0, err
	}
	return len(records), nil
}

// countInWindow counts completed generations inside one quota window.
func (s *quotaService) countInWindow(ctx context.Context, userID string, w models.QuotaWindow) (int, error) {
	records, err := s.uploadRepo.ListCompletedSince(ctx, userID, w.Start(s.now()))
	if err != nil {
		return 0, err
	}
	return len(records), nil
}

// GetRemainingUploadsDaily returns how many more generations the user may run
// today. Read errors degrade to the free-tier default of 1 rather than
// blocking the user; the transactional reservation is the real gate.
func (s *quotaService) GetRemainingUploadsDaily(ctx context.Context, userID string) int {
	tier := s.GetUserTier(ctx, userID)
	limit := models.DailyLimit(tier)
	for _, w := range models.TierWindows(tier) {
		if w.Kind != models.WindowRolling24h {
			continue
		}
		used, err := s.countInWindow(ctx, userID, w)
		if err != nil {
			if s.logger != nil {
				s.logger.Warn("daily quota count failed, degrading to defaults",
					zap.String("userId", userID), zap.Error(err))
			}
			return models.DailyLimit(models.TierFree)
		}
		if remaining := w.Limit - used; remaining > 0 {
			return remaining
		}
		return 0
	}
	return limit
}

// GetRemainingUploadsMonthly returns how many more generations the user may
// run in the current monthly (or, for free users, lifetime) window. Read
// errors degrade to the free-tier default of 30.
func (s *quotaService) GetRemainingUploadsMonthly(ctx context.Context, userID string) int {
	tier := s.GetUserTier(ctx, userID)
	for _, w := range models.TierWindows(tier) {
		if w.Kind != models.WindowCalendarMonth && w.Kind != models.WindowLifetime {
			continue
		}
		used, err := s.countInWindow(ctx, userID, w)
		if err != nil {
			if s.logger != nil {
				s.logger.Warn("monthly quota count failed, degrading to defaults",
					zap.String("userId", userID), zap.Error(err))
			}
			return models.MonthlyLimit(models.TierFree)
		}
		if remaining := w.Limit - used; remaining > 0 {
			return remaining
		}
		return 0
	}
	return models.MonthlyLimit(tier)
}

// CanUserUpload is the cheap pre-check handlers run before the transactional
// reservation. Free users need headroom in every window; paid users only in
// the monthly one.
func (s *quotaService) CanUserUpload(ctx context.Context, userID string) bool {
	tier := s.GetUserTier(ctx, userID)
	if tier == models.TierFree {
		return s.GetRemainingUploadsDaily(ctx, userID) > 0 &&
			s.GetRemainingUploadsMonthly(ctx, userID) > 0
	}
	return s.GetRemainingUploadsMonthly(ctx, userID) > 0
}

// GetQuotaStatus assembles the snapshot served by the quota endpoint.
func (s *quotaService) GetQuotaStatus(ctx context.Context, userID string) *QuotaStatus {
	tier := s.GetUserTier(ctx, userID)
	status := &QuotaStatus{
		Tier:             tier,
		DailyLimit:       models.DailyLimit(tier),
		DailyRemaining:   s.GetRemainingUploadsDaily(ctx, userID),
		MonthlyLimit:     models.MonthlyLimit(tier),
		MonthlyRemaining: s.GetRemainingUploadsMonthly(ctx, userID),
	}
	if tier == models.TierFree {
		status.CanUpload = status.DailyRemaining > 0 && status.MonthlyRemaining > 0
	} else {
		status.CanUpload = status.MonthlyRemaining > 0
	}
	return status
}
