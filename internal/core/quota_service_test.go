package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"stagevision-backend-go/internal/models"
)

var quotaNow = time.Date(2025, time.March, 15, 12, 0, 0, 0, time.UTC)

func newQuotaServiceForTest(userRepo *fakeUserRepo, uploadRepo *fakeUploadRepo) *quotaService {
	return &quotaService{
		userRepo:   userRepo,
		uploadRepo: uploadRepo,
		logger:     zap.NewNop(),
		now:        func() time.Time { return quotaNow },
	}
}

func completedUpload(at time.Time) models.UploadRecord {
	return models.UploadRecord{Status: models.UploadStatusCompleted, UploadedAt: at}
}

func TestGetUserTierFailSafe(t *testing.T) {
	ctx := context.Background()

	t.Run("missing user is free", func(t *testing.T) {
		s := newQuotaServiceForTest(newFakeUserRepo(), &fakeUploadRepo{})
		assert.Equal(t, models.TierFree, s.GetUserTier(ctx, "nobody"))
	})

	t.Run("repo error is free", func(t *testing.T) {
		userRepo := newFakeUserRepo()
		userRepo.getErr = errors.New("firestore unavailable")
		s := newQuotaServiceForTest(userRepo, &fakeUploadRepo{})
		assert.Equal(t, models.TierFree, s.GetUserTier(ctx, "u1"))
	})

	t.Run("unknown stored plan is free", func(t *testing.T) {
		s := newQuotaServiceForTest(newFakeUserRepo(&models.User{ID: "u1", Plan: "platinum"}), &fakeUploadRepo{})
		assert.Equal(t, models.TierFree, s.GetUserTier(ctx, "u1"))
	})

	t.Run("paid plan resolves", func(t *testing.T) {
		s := newQuotaServiceForTest(newFakeUserRepo(&models.User{ID: "u1", Plan: "pro"}), &fakeUploadRepo{})
		assert.Equal(t, models.TierPro, s.GetUserTier(ctx, "u1"))
	})
}

func TestFreeUserDailyWindow(t *testing.T) {
	ctx := context.Background()
	userRepo := newFakeUserRepo(&models.User{ID: "u1", Plan: "free"})

	t.Run("fresh user can upload", func(t *testing.T) {
		s := newQuotaServiceForTest(userRepo, &fakeUploadRepo{})
		assert.Equal(t, 1, s.GetRemainingUploadsDaily(ctx, "u1"))
		assert.True(t, s.CanUserUpload(ctx, "u1"))
	})

	t.Run("one upload in the last 24h exhausts the day", func(t *testing.T) {
		uploadRepo := &fakeUploadRepo{records: []models.UploadRecord{
			completedUpload(quotaNow.Add(-2 * time.Hour)),
		}}
		s := newQuotaServiceForTest(userRepo, uploadRepo)
		assert.Equal(t, 0, s.GetRemainingUploadsDaily(ctx, "u1"))
		assert.False(t, s.CanUserUpload(ctx, "u1"))
	})

	t.Run("an upload older than 24h does not count daily", func(t *testing.T) {
		uploadRepo := &fakeUploadRepo{records: []models.UploadRecord{
			completedUpload(quotaNow.Add(-25 * time.Hour)),
		}}
		s := newQuotaServiceForTest(userRepo, uploadRepo)
		assert.Equal(t, 1, s.GetRemainingUploadsDaily(ctx, "u1"))
		assert.True(t, s.CanUserUpload(ctx, "u1"))
	})

	t.Run("lifetime cap blocks even with a fresh day", func(t *testing.T) {
		records := make([]models.UploadRecord, 30)
		for i := range records {
			records[i] = completedUpload(quotaNow.Add(-time.Duration(i+48) * time.Hour))
		}
		s := newQuotaServiceForTest(userRepo, &fakeUploadRepo{records: records})
		assert.Equal(t, 1, s.GetRemainingUploadsDaily(ctx, "u1"))
		assert.Equal(t, 0, s.GetRemainingUploadsMonthly(ctx, "u1"))
		assert.False(t, s.CanUserUpload(ctx, "u1"))
	})
}

func TestPaidUserMonthlyWindow(t *testing.T) {
	ctx := context.Background()
	userRepo := newFakeUserRepo(&models.User{ID: "u1", Plan: "basic"})

	t.Run("19 of 20 leaves one", func(t *testing.T) {
		records := make([]models.UploadRecord, 19)
		for i := range records {
			records[i] = completedUpload(quotaNow.Add(-time.Duration(i+1) * time.Hour))
		}
		s := newQuotaServiceForTest(userRepo, &fakeUploadRepo{records: records})
		assert.Equal(t, 1, s.GetRemainingUploadsMonthly(ctx, "u1"))
		assert.True(t, s.CanUserUpload(ctx, "u1"))
		// Paid tiers have no daily cap.
		assert.Equal(t, 999, s.GetRemainingUploadsDaily(ctx, "u1"))
	})

	t.Run("20 of 20 blocks", func(t *testing.T) {
		records := make([]models.UploadRecord, 20)
		for i := range records {
			records[i] = completedUpload(quotaNow.Add(-time.Duration(i+1) * time.Hour))
		}
		s := newQuotaServiceForTest(userRepo, &fakeUploadRepo{records: records})
		assert.Equal(t, 0, s.GetRemainingUploadsMonthly(ctx, "u1"))
		assert.False(t, s.CanUserUpload(ctx, "u1"))
	})

	t.Run("last month's uploads do not count", func(t *testing.T) {
		records := make([]models.UploadRecord, 20)
		for i := range records {
			records[i] = completedUpload(quotaNow.AddDate(0, -1, 0))
		}
		s := newQuotaServiceForTest(userRepo, &fakeUploadRepo{records: records})
		assert.Equal(t, 20, s.GetRemainingUploadsMonthly(ctx, "u1"))
		assert.True(t, s.CanUserUpload(ctx, "u1"))
	})
}

func TestQuotaDegradesOpenOnReadErrors(t *testing.T) {
	ctx := context.Background()
	userRepo := newFakeUserRepo(&models.User{ID: "u1", Plan: "free"})
	uploadRepo := &fakeUploadRepo{listErr: errors.New("firestore unavailable")}
	s := newQuotaServiceForTest(userRepo, uploadRepo)

	assert.Equal(t, 1, s.GetRemainingUploadsDaily(ctx, "u1"))
	assert.Equal(t, 30, s.GetRemainingUploadsMonthly(ctx, "u1"))
	assert.True(t, s.CanUserUpload(ctx, "u1"))
}

func TestGetQuotaStatus(t *testing.T) {
	ctx := context.Background()
	userRepo := newFakeUserRepo(&models.User{ID: "u1", Plan: "pro"})
	records := make([]models.UploadRecord, 10)
	for i := range records {
		records[i] = completedUpload(quotaNow.Add(-time.Duration(i+1) * time.Hour))
	}
	s := newQuotaServiceForTest(userRepo, &fakeUploadRepo{records: records})

	status := s.GetQuotaStatus(ctx, "u1")
	assert.Equal(t, models.TierPro, status.Tier)
	assert.Equal(t, 999, status.DailyLimit)
	assert.Equal(t, 50, status.MonthlyLimit)
	assert.Equal(t, 40, status.MonthlyRemaining)
	assert.True(t, status.CanUpload)
}
