package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/certilog/certilog-api/internal/models"
	appErrors "github.com/certilog/certilog-api/pkg/errors"
)

type auditReader interface {
	ListByCertificate(ctx context.Context, certificateID string, limit, offset int) ([]models.AuditEvent, error)
}

type certificateFinder interface {
	GetByID(ctx context.Context, id string) (*models.Certificate, error)
}

// AuditService serves certificate timelines. The event stream is read-only
// from here; only mutations append to it.
type AuditService struct {
	audits       auditReader
	certificates certificateFinder
	logger       *zap.Logger
}

// NewAuditService constructs AuditService.
func NewAuditService(audits auditReader, certificates certificateFinder, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{audits: audits, certificates: certificates, logger: logger}
}

// Timeline returns a certificate's events newest first.
func (s *AuditService) Timeline(ctx context.Context, certificateID string, limit, offset int) ([]models.AuditEvent, error) {
	if _, err := s.certificates.GetByID(ctx, certificateID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "certificate not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load certificate")
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	events, err := s.audits.ListByCertificate(ctx, certificateID, limit, offset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "list audit events")
	}
	return events, nil
}
