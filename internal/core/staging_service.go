package core

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"stagevision-backend-go/internal/db"
	"stagevision-backend-go/internal/imagegen"
	"stagevision-backend-go/internal/models"
	"stagevision-backend-go/internal/queue"
	"stagevision-backend-go/internal/staging"
	"stagevision-backend-go/internal/storage"
)

var (
	// ErrQuotaExceeded is returned when the user has no quota headroom left.
	ErrQuotaExceeded = errors.New("upload quota exceeded")
	// ErrGuestLimitReached is returned when an IP has used its guest staging.
	ErrGuestLimitReached = errors.New("guest staging limit reached")
	// ErrInvalidImage is returned for payloads that do not decode to an image.
	ErrInvalidImage = errors.New("invalid image payload")
	// ErrGenerationQuota is returned when the upstream image model rejects the
	// request for rate or quota reasons.
	ErrGenerationQuota = errors.New("image generation temporarily unavailable")
	// ErrGenerationFailed is returned for any other upstream generation error.
	ErrGenerationFailed = errors.New("image generation failed")
)

// guestLifetimeLimit is how many stagings one IP may run without an account.
const guestLifetimeLimit = 1

// imageGenerator is the slice of the Gemini client the pipeline needs.
type imageGenerator interface {
	StageImage(ctx context.Context, req imagegen.Request) (*imagegen.Result, error)
}

// imageStore persists image bytes and returns a public URL.
type imageStore interface {
	Save(ctx context.Context, prefix, extension, contentType string, data []byte) (string, error)
}

// persistQueue schedules a finalize retry for a generated-but-unsaved record.
type persistQueue interface {
	EnqueuePersist(ctx context.Context, payload queue.PersistUploadPayload) error
}

// stagingService implements StagingService.
type stagingService struct {
	userRepo   db.UserRepository
	uploadRepo db.UploadRepository
	guestRepo  db.GuestUploadRepository
	generator  imageGenerator
	store      imageStore
	queue      persistQueue
	audit      AuditService
	logger     *zap.Logger
	now        func() time.Time
}

// NewStagingService creates a new StagingService instance. store, queue and
// audit may be nil; the pipeline degrades gracefully without them.
func NewStagingService(
	userRepo db.UserRepository,
	uploadRepo db.UploadRepository,
	guestRepo db.GuestUploadRepository,
	generator imageGenerator,
	store *storage.ImageStore,
	persistQ *queue.Client,
	audit AuditService,
	logger *zap.Logger,
) StagingService {
	s := &stagingService{
		userRepo:   userRepo,
		uploadRepo: uploadRepo,
		guestRepo:  guestRepo,
		generator:  generator,
		audit:      audit,
		logger:     logger,
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

// StageForUser reserves quota, runs a generation and finalizes the upload
// record. The reservation is transactional so two concurrent requests cannot
// both squeeze through one remaining slot.
func (s *stagingService) StageForUser(ctx context.Context, userID string, req models.StageImageRequest) (*StagingResult, error) {
	originalMIME, originalBytes, err := staging.ParseDataURL(req.OriginalImage)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	tier := models.TierFree
	if user, uerr := s.userRepo.GetByID(ctx, userID); uerr == nil && user != nil {
		tier = models.ParsePlanTier(user.Plan)
	} else if uerr != nil {
		s.logger.Warn("tier lookup failed, reserving against free windows",
			zap.String("userId", userID), zap.Error(uerr))
	}

	record := &models.UploadRecord{
		UserID:     userID,
		UploadedAt: s.now().UTC(),
		ImageSize:  int64(len(originalBytes)),
		ImageName:  imageNameOrDefault(req.ImageName),
		Style:      req.Style,
		RoomType:   req.RoomType,
		Status:     models.UploadStatusProcessing,
	}
	recordID, err := s.uploadRepo.Reserve(ctx, userID, models.TierWindows(tier), record)
	if err != nil {
		if errors.Is(err, db.ErrLimitExceeded) {
			return nil, ErrQuotaExceeded
		}
		return nil, fmt.Errorf("failed to reserve upload slot for user '%s': %w", userID, err)
	}

	result, genErr := s.generate(ctx, originalMIME, originalBytes, req)
	if genErr != nil {
		if failErr := s.uploadRepo.Fail(ctx, userID, recordID); failErr != nil {
			s.logger.Error("failed to release reservation after generation error",
				zap.String("userId", userID), zap.String("recordId", recordID), zap.Error(failErr))
		}
		return nil, genErr
	}

	originalURL := s.saveImage(ctx, "uploads/"+userID, originalMIME, originalBytes)
	stagedURL := s.saveImage(ctx, "staged/"+userID, result.MIMEType, result.ImageData)

	out := &StagingResult{
		StagedImage: staging.FormatDataURL(result.MIMEType, result.ImageData),
		Description: result.Description,
		OriginalURL: originalURL,
		StagedURL:   stagedURL,
	}

	if err := s.uploadRepo.Complete(ctx, userID, recordID, originalURL, stagedURL); err != nil {
		// The image exists but the record is stuck in "processing". Hand the
		// finalize to the background worker instead of losing the upload.
		s.logger.Error("failed to finalize upload record, scheduling retry",
			zap.String("userId", userID), zap.String("recordId", recordID), zap.Error(err))
		out.PendingSave = true
		if s.queue != nil {
			if qErr := s.queue.EnqueuePersist(ctx, queue.PersistUploadPayload{
				UserID:      userID,
				RecordID:    recordID,
				OriginalURL: originalURL,
				StagedURL:   stagedURL,
			}); qErr != nil {
				s.logger.Error("failed to enqueue persistence retry",
					zap.String("recordId", recordID), zap.Error(qErr))
			}
		}
	}

	s.writeAudit(ctx, models.AuditLog{
		UserID:   userID,
		Action:   "IMAGE_STAGED",
		TargetID: recordID,
		Details: map[string]interface{}{
			"style":    req.Style,
			"roomType": req.RoomType,
			"markers":  len(req.Markers),
		},
	})
	return out, nil
}

// StageForGuest runs a generation for an anonymous visitor. The lifetime
// record is written only after a successful generation, inside a transaction
// that loses to any concurrent first upload from the same IP.
func (s *stagingService) StageForGuest(ctx context.Context, ip string, req models.StageImageRequest) (*StagingResult, error) {
	count, err := s.guestRepo.CountByIP(ctx, ip)
	if err != nil {
		return nil, fmt.Errorf("failed to check guest limit for %s: %w", ip, err)
	}
	if count >= guestLifetimeLimit {
		return nil, ErrGuestLimitReached
	}

	originalMIME, originalBytes, err := staging.ParseDataURL(req.OriginalImage)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	result, genErr := s.generate(ctx, originalMIME, originalBytes, req)
	if genErr != nil {
		return nil, genErr
	}

	originalURL := s.saveImage(ctx, "guests/original", originalMIME, originalBytes)
	stagedURL := s.saveImage(ctx, "guests/staged", result.MIMEType, result.ImageData)

	if _, err := s.guestRepo.SaveIfFirst(ctx, &models.GuestUpload{
		SessionID:        req.SessionID,
		IPAddress:        ip,
		OriginalImageURL: originalURL,
		StagedImageURL:   stagedURL,
		Style:            req.Style,
		RoomType:         req.RoomType,
		UploadedAt:       s.now().UTC(),
		IsGuest:          true,
	}); err != nil {
		if errors.Is(err, db.ErrLimitExceeded) {
			return nil, ErrGuestLimitReached
		}
		return nil, fmt.Errorf("failed to record guest upload: %w", err)
	}

	s.writeAudit(ctx, models.AuditLog{
		UserID:    "guest",
		Action:    "GUEST_STAGED",
		IPAddress: ip,
		Details: map[string]interface{}{
			"style":    req.Style,
			"roomType": req.RoomType,
		},
	})
	return &StagingResult{
		StagedImage: staging.FormatDataURL(result.MIMEType, result.ImageData),
		Description: result.Description,
		OriginalURL: originalURL,
		StagedURL:   stagedURL,
	}, nil
}

// GuestLimitReached reports whether an IP has exhausted its guest allowance.
func (s *stagingService) GuestLimitReached(ctx context.Context, ip string) (bool, int, error) {
	count, err := s.guestRepo.CountByIP(ctx, ip)
	if err != nil {
		return false, 0, fmt.Errorf("failed to count guest uploads for %s: %w", ip, err)
	}
	return count >= guestLifetimeLimit, count, nil
}

// generate assembles the prompt and image parts and calls the model. Failures
// building the layout guide degrade to an unannotated request rather than
// failing the staging.
func (s *stagingService) generate(ctx context.Context, originalMIME string, originalBytes []byte, req models.StageImageRequest) (*imagegen.Result, error) {
	guide, withMarkers := s.layoutGuide(originalBytes, req)
	prompt := staging.BuildPrompt(req.Style, req.RoomType, req.AdditionalPrompt, req.Markers, withMarkers)

	genReq := imagegen.Request{
		Prompt:        prompt,
		OriginalImage: originalBytes,
		OriginalMIME:  originalMIME,
		LayoutGuide:   guide,
	}
	for _, m := range req.Markers {
		if m.RefImage == "" {
			continue
		}
		if data, decErr := base64.StdEncoding.DecodeString(m.RefImage); decErr == nil {
			genReq.ReferenceImages = append(genReq.ReferenceImages, data)
		} else {
			s.logger.Warn("dropping undecodable reference image", zap.String("markerId", m.ID))
		}
	}

	result, err := s.generator.StageImage(ctx, genReq)
	if err != nil {
		if errors.Is(err, imagegen.ErrUpstreamQuota) {
			return nil, fmt.Errorf("%w: %v", ErrGenerationQuota, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	return result, nil
}

// layoutGuide resolves the annotated image sent to the model. A client-side
// composite wins; otherwise markers with coordinates are rendered onto the
// original. Returns nil and false when there is nothing to annotate or the
// guide cannot be built.
func (s *stagingService) layoutGuide(originalBytes []byte, req models.StageImageRequest) ([]byte, bool) {
	if len(req.Markers) == 0 {
		return nil, false
	}
	if req.MaskedImage != "" {
		if _, data, err := staging.ParseDataURL(req.MaskedImage); err == nil {
			return data, true
		}
		s.logger.Warn("masked image did not decode, re-rendering layout guide server-side")
	}

	markers := make([]*staging.Marker, 0, len(req.Markers))
	for _, p := range req.Markers {
		if p.X == 0 && p.Y == 0 {
			continue
		}
		m := &staging.Marker{
			ID:          p.ID,
			X:           p.X,
			Y:           p.Y,
			Color:       p.Color,
			Instruction: p.Instruction,
		}
		for _, pt := range p.RadiusPoints {
			m.RadiusPoints = append(m.RadiusPoints, staging.Point{X: pt.X, Y: pt.Y})
		}
		markers = append(markers, m)
	}
	if len(markers) == 0 {
		return nil, false
	}

	guide, err := staging.RenderLayoutGuide(originalBytes, markers)
	if err != nil {
		// Annotations are hints; losing them is better than losing the upload.
		s.logger.Warn("layout guide rendering failed, staging without annotations", zap.Error(err))
		return nil, false
	}
	return guide, true
}

// saveImage persists bytes to the image store, returning "" when storage is
// not configured or the write fails. Image persistence is best effort; the
// generated image still reaches the client inline.
func (s *stagingService) saveImage(ctx context.Context, prefix, mime string, data []byte) string {
	if s.store == nil || len(data) == 0 {
		return ""
	}
	url, err := s.store.Save(ctx, prefix, extensionForMIME(mime), mime, data)
	if err != nil {
		if !errors.Is(err, storage.ErrNotConfigured) {
			s.logger.Error("failed to persist image", zap.String("prefix", prefix), zap.Error(err))
		}
		return ""
	}
	return url
}

func (s *stagingService) writeAudit(ctx context.Context, entry models.AuditLog) {
	if s.audit == nil {
		return
	}
	if err := s.audit.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("failed to write audit log", zap.String("action", entry.Action), zap.Error(err))
	}
}

func imageNameOrDefault(name string) string {
	if name != "" {
		return name
	}
	return "room.jpg"
}

func extensionForMIME(mime string) string {
	switch mime {
	case "image/png":
		return "png"
	case "image/webp":
		return "webp"
	default:
		return "jpg"
	}
}
