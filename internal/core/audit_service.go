package core

import (
	"context"
	"fmt"

	"stagevision-backend-go/internal/db"
	"stagevision-backend-go/internal/models"
)

// auditService implements the AuditService interface.
type auditService struct {
	auditRepo db.AuditRepository
}

// NewAuditService creates a new AuditService instance.
// It takes an AuditRepository (from the db package) as a dependency.
func NewAuditService(auditRepo db.AuditRepository) AuditService {
	return &auditService{
		auditRepo: auditRepo,
	}
}

// CreateAuditLog creates a new audit log entry.
// It delegates the actual storage to the AuditRepository.
func (s *auditService) CreateAuditLog(ctx context.Context, logEntry models.AuditLog) error {
	if s.auditRepo == nil {
		return fmt.Errorf("AuditRepository not initialized in AuditService")
	}

	err := s.auditRepo.Create(ctx, logEntry)
	if err != nil {
		return fmt.Errorf("failed to create audit log via repository: %w", err)
	}

	return nil
}
