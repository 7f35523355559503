package core

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"stagevision-backend-go/internal/db"
	"stagevision-backend-go/internal/imagegen"
	"stagevision-backend-go/internal/models"
)

func testStageRequest() models.StageImageRequest {
	original := base64.StdEncoding.EncodeToString([]byte("original-jpeg-bytes"))
	return models.StageImageRequest{
		OriginalImage: "data:image/jpeg;base64," + original,
		Style:         "modern",
		RoomType:      "living-room",
	}
}

func newStagingServiceForTest(
	userRepo *fakeUserRepo,
	uploadRepo *fakeUploadRepo,
	guestRepo *fakeGuestRepo,
	generator *fakeGenerator,
	store *fakeStore,
	persistQ *fakeQueue,
) *stagingService {
	s := &stagingService{
		userRepo:   userRepo,
		uploadRepo: uploadRepo,
		guestRepo:  guestRepo,
		generator:  generator,
		logger:     zap.NewNop(),
		now:        time.Now,
	}
	if store != nil {
		s.store = store
	}
	if persistQ != nil {
		s.queue = persistQ
	}
	return s
}

func stagedGenerator() *fakeGenerator {
	return &fakeGenerator{result: &imagegen.Result{
		ImageData:   []byte("staged-png-bytes"),
		MIMEType:    "image/png",
		Description: "A staged living room.",
	}}
}

func TestStageForUserSuccess(t *testing.T) {
	ctx := context.Background()
	userRepo := newFakeUserRepo(&models.User{ID: "u1", Plan: "free"})
	uploadRepo := &fakeUploadRepo{}
	generator := stagedGenerator()
	store := &fakeStore{}

	s := newStagingServiceForTest(userRepo, uploadRepo, &fakeGuestRepo{}, generator, store, nil)
	result, err := s.StageForUser(ctx, "u1", testStageRequest())
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(result.StagedImage, "data:image/png;base64,"))
	assert.Equal(t, "A staged living room.", result.Description)
	assert.False(t, result.PendingSave)
	assert.NotEmpty(t, result.OriginalURL)
	assert.NotEmpty(t, result.StagedURL)

	// The reservation ran against the free tier's windows.
	require.Len(t, uploadRepo.reserveCalls, 2)
	assert.Equal(t, models.WindowRolling24h, uploadRepo.reserveCalls[0].Kind)
	assert.Equal(t, 1, uploadRepo.completeCalls)
	assert.Equal(t, 0, uploadRepo.failCalls)

	// The prompt reached the generator without a layout guide.
	require.Len(t, generator.requests, 1)
	assert.Nil(t, generator.requests[0].LayoutGuide)
	assert.Contains(t, generator.requests[0].Prompt, "living-room")
}

func TestStageForUserQuotaExceeded(t *testing.T) {
	ctx := context.Background()
	userRepo := newFakeUserRepo(&models.User{ID: "u1", Plan: "free"})
	uploadRepo := &fakeUploadRepo{reserveErr: db.ErrLimitExceeded}
	generator := stagedGenerator()

	s := newStagingServiceForTest(userRepo, uploadRepo, &fakeGuestRepo{}, generator, nil, nil)
	_, err := s.StageForUser(ctx, "u1", testStageRequest())
	assert.ErrorIs(t, err, ErrQuotaExceeded)
	// No generation was attempted or paid for.
	assert.Empty(t, generator.requests)
}

func TestStageForUserInvalidImage(t *testing.T) {
	ctx := context.Background()
	s := newStagingServiceForTest(newFakeUserRepo(), &fakeUploadRepo{}, &fakeGuestRepo{}, stagedGenerator(), nil, nil)

	req := testStageRequest()
	req.OriginalImage = "data:image/jpeg;base64,???not-base64???"
	_, err := s.StageForUser(ctx, "u1", req)
	assert.ErrorIs(t, err, ErrInvalidImage)
}

func TestStageForUserGenerationFailureReleasesReservation(t *testing.T) {
	ctx := context.Background()
	userRepo := newFakeUserRepo(&models.User{ID: "u1", Plan: "basic"})

	t.Run("upstream quota", func(t *testing.T) {
		uploadRepo := &fakeUploadRepo{}
		generator := &fakeGenerator{err: imagegen.ErrUpstreamQuota}
		s := newStagingServiceForTest(userRepo, uploadRepo, &fakeGuestRepo{}, generator, nil, nil)

		_, err := s.StageForUser(ctx, "u1", testStageRequest())
		assert.ErrorIs(t, err, ErrGenerationQuota)
		assert.Equal(t, 1, uploadRepo.failCalls)
		assert.Equal(t, 0, uploadRepo.completeCalls)
	})

	t.Run("generic upstream error", func(t *testing.T) {
		uploadRepo := &fakeUploadRepo{}
		generator := &fakeGenerator{err: errors.New("model exploded")}
		s := newStagingServiceForTest(userRepo, uploadRepo, &fakeGuestRepo{}, generator, nil, nil)

		_, err := s.StageForUser(ctx, "u1", testStageRequest())
		assert.ErrorIs(t, err, ErrGenerationFailed)
		assert.Equal(t, 1, uploadRepo.failCalls)
	})
}

func TestStageForUserPendingSave(t *testing.T) {
	ctx := context.Background()
	userRepo := newFakeUserRepo(&models.User{ID: "u1", Plan: "pro"})
	uploadRepo := &fakeUploadRepo{completeErr: errors.New("firestore write failed")}
	persistQ := &fakeQueue{}

	s := newStagingServiceForTest(userRepo, uploadRepo, &fakeGuestRepo{}, stagedGenerator(), &fakeStore{}, persistQ)
	result, err := s.StageForUser(ctx, "u1", testStageRequest())
	require.NoError(t, err)

	// The image still reaches the user; the record flip is retried in the
	// background.
	assert.True(t, result.PendingSave)
	assert.NotEmpty(t, result.StagedImage)
	require.Len(t, persistQ.payloads, 1)
	assert.Equal(t, "u1", persistQ.payloads[0].UserID)
	assert.Equal(t, "rec-1", persistQ.payloads[0].RecordID)
}

func TestStageForUserRendersLayoutGuideFromMarkers(t *testing.T) {
	ctx := context.Background()
	userRepo := newFakeUserRepo(&models.User{ID: "u1", Plan: "free"})
	generator := stagedGenerator()
	s := newStagingServiceForTest(userRepo, &fakeUploadRepo{}, &fakeGuestRepo{}, generator, nil, nil)

	// The masked image is provided by the client already composited.
	guide := base64.StdEncoding.EncodeToString([]byte("composited-guide"))
	req := testStageRequest()
	req.MaskedImage = "data:image/jpeg;base64," + guide
	req.Markers = []models.MarkerPayload{{ID: "m1", Color: "#FF3B30", Instruction: "sofa here"}}

	_, err := s.StageForUser(ctx, "u1", req)
	require.NoError(t, err)

	require.Len(t, generator.requests, 1)
	assert.Equal(t, []byte("composited-guide"), generator.requests[0].LayoutGuide)
	assert.Contains(t, generator.requests[0].Prompt, "sofa here")
}

func TestStageForUserAttachesReferenceImages(t *testing.T) {
	ctx := context.Background()
	userRepo := newFakeUserRepo(&models.User{ID: "u1", Plan: "free"})
	generator := stagedGenerator()
	s := newStagingServiceForTest(userRepo, &fakeUploadRepo{}, &fakeGuestRepo{}, generator, nil, nil)

	guide := base64.StdEncoding.EncodeToString([]byte("guide"))
	refImage := base64.StdEncoding.EncodeToString([]byte("reference-photo"))
	req := testStageRequest()
	req.MaskedImage = "data:image/jpeg;base64," + guide
	req.Markers = []models.MarkerPayload{
		{ID: "m1", Color: "#FF3B30", RefImage: refImage},
		{ID: "m2", Color: "#007AFF", RefImage: "%%%broken%%%"},
	}

	_, err := s.StageForUser(ctx, "u1", req)
	require.NoError(t, err)

	// The valid reference rides along; the broken one is dropped.
	require.Len(t, generator.requests, 1)
	require.Len(t, generator.requests[0].ReferenceImages, 1)
	assert.Equal(t, []byte("reference-photo"), generator.requests[0].ReferenceImages[0])
}

func TestStageForGuest(t *testing.T) {
	ctx := context.Background()

	t.Run("first visit succeeds and is recorded", func(t *testing.T) {
		guestRepo := &fakeGuestRepo{count: 0}
		s := newStagingServiceForTest(newFakeUserRepo(), &fakeUploadRepo{}, guestRepo, stagedGenerator(), nil, nil)

		result, err := s.StageForGuest(ctx, "203.0.113.7", testStageRequest())
		require.NoError(t, err)
		assert.NotEmpty(t, result.StagedImage)

		require.Len(t, guestRepo.saved, 1)
		assert.Equal(t, "203.0.113.7", guestRepo.saved[0].IPAddress)
		assert.True(t, guestRepo.saved[0].IsGuest)
	})

	t.Run("second visit is rejected before generating", func(t *testing.T) {
		guestRepo := &fakeGuestRepo{count: 1}
		generator := stagedGenerator()
		s := newStagingServiceForTest(newFakeUserRepo(), &fakeUploadRepo{}, guestRepo, generator, nil, nil)

		_, err := s.StageForGuest(ctx, "203.0.113.7", testStageRequest())
		assert.ErrorIs(t, err, ErrGuestLimitReached)
		assert.Empty(t, generator.requests)
	})

	t.Run("losing the save race maps to the limit error", func(t *testing.T) {
		guestRepo := &fakeGuestRepo{count: 0, saveErr: db.ErrLimitExceeded}
		s := newStagingServiceForTest(newFakeUserRepo(), &fakeUploadRepo{}, guestRepo, stagedGenerator(), nil, nil)

		_, err := s.StageForGuest(ctx, "203.0.113.7", testStageRequest())
		assert.ErrorIs(t, err, ErrGuestLimitReached)
	})
}

func TestGuestLimitReached(t *testing.T) {
	ctx := context.Background()

	s := newStagingServiceForTest(newFakeUserRepo(), &fakeUploadRepo{}, &fakeGuestRepo{count: 1}, stagedGenerator(), nil, nil)
	reached, count, err := s.GuestLimitReached(ctx, "203.0.113.7")
	require.NoError(t, err)
	assert.True(t, reached)
	assert.Equal(t, 1, count)

	s = newStagingServiceForTest(newFakeUserRepo(), &fakeUploadRepo{}, &fakeGuestRepo{count: 0}, stagedGenerator(), nil, nil)
	reached, count, err = s.GuestLimitReached(ctx, "203.0.113.7")
	require.NoError(t, err)
	assert.False(t, reached)
	assert.Equal(t, 0, count)
}
