package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/certilog/certilog-api/internal/dto"
	"github.com/certilog/certilog-api/internal/models"
	appErrors "github.com/certilog/certilog-api/pkg/errors"
)

type certificateRepo interface {
	Create(ctx context.Context, cert *models.Certificate) error
	GetByID(ctx context.Context, id string) (*models.Certificate, error)
	List(ctx context.Context, filter models.CertificateFilter) ([]models.Certificate, int, error)
	Update(ctx context.Context, cert *models.Certificate) error
}

type statusReader interface {
	FindByName(ctx context.Context, name string) (*models.StatusDefinition, error)
	RequirementsFor(ctx context.Context, statusName string) ([]models.ValidationRequirement, error)
}

type auditAppender interface {
	Append(ctx context.Context, event *models.AuditEvent) error
}

// CertificateService orchestrates single-certificate reads and mutations.
// Every mutation flows through Mutate so the transition rules and the audit
// diff apply uniformly to direct updates and bulk items alike.
type CertificateService struct {
	certificates certificateRepo
	statuses     statusReader
	audits       auditAppender
	metrics      *MetricsService
	validator    *validator.Validate
	logger       *zap.Logger
}

// NewCertificateService constructs CertificateService. metrics may be nil;
// the observer methods tolerate a nil receiver.
func NewCertificateService(certificates certificateRepo, statuses statusReader, audits auditAppender, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *CertificateService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CertificateService{
		certificates: certificates,
		statuses:     statuses,
		audits:       audits,
		metrics:      metrics,
		validator:    validate,
		logger:       logger,
	}
}

// Create registers a new certificate after checking the initial status
// exists. Creation is not a transition, so no validation requirements apply.
func (s *CertificateService) Create(ctx context.Context, req dto.CreateCertificateRequest, actor models.Actor) (*models.Certificate, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	if _, err := s.statuses.FindByName(ctx, req.Status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown status "+req.Status)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load status")
	}

	now := time.Now().UTC()
	cert := &models.Certificate{
		ID:             uuid.NewString(),
		Number:         req.Number,
		Title:          req.Title,
		Cost:           req.Cost,
		AdditionalCost: req.AdditionalCost,
		OrderNumber:    req.OrderNumber,
		PaymentDate:    req.PaymentDate,
		PaymentTypeID:  req.PaymentTypeID,
		Priority:       req.Priority,
		Notes:          req.Notes,
		Tags:           req.Tags,
		Status:         req.Status,
		CreatedBy:      actor.ID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.certificates.Create(ctx, cert); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "create certificate")
	}

	s.emitAudit(ctx, cert.ID, actor, models.AuditEventCreated, ChangeSet{
		"status": {Kind: ChangeKindScalar, Before: nil, After: cert.Status},
	}, nil)
	return cert, nil
}

// Get fetches a single certificate by id.
func (s *CertificateService) Get(ctx context.Context, id string) (*models.Certificate, error) {
	cert, err := s.certificates.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "certificate not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load certificate")
	}
	return cert, nil
}

// List returns a page of certificates plus the unpaged total.
func (s *CertificateService) List(ctx context.Context, filter models.CertificateFilter) ([]models.Certificate, int, error) {
	certs, total, err := s.certificates.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "list certificates")
	}
	return certs, total, nil
}

// Update applies a patch and optional status transition to one certificate.
// A non-applied outcome is returned as a value with a nil certificate, not
// as an error: rejections are part of the contract, not failures.
func (s *CertificateService) Update(ctx context.Context, id string, req dto.UpdateCertificateRequest, actor models.Actor) (*dto.MutationResponse, error) {
	cert, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	treq := models.TransitionRequest{
		CertificateID:    id,
		TargetStatus:     req.TargetStatus,
		Patch:            req.CertificatePatch.Model(),
		Confirmed:        req.Confirmed,
		ConfirmationText: req.ConfirmationText,
	}
	outcome, updated, err := s.Mutate(ctx, cert, treq, actor, nil)
	if err != nil {
		return nil, err
	}
	return &dto.MutationResponse{Outcome: outcome, Certificate: updated}, nil
}

// Mutate evaluates a transition request against the current rule catalog and,
// when allowed, persists the merged record and records the audit diff. The
// returned certificate is nil unless the outcome was applied. An applied
// outcome with an empty diff is a no-op: nothing is written and no event is
// appended, so replaying the same mutation is idempotent.
func (s *CertificateService) Mutate(ctx context.Context, cert *models.Certificate, req models.TransitionRequest, actor models.Actor, comment *string) (models.TransitionOutcome, *models.Certificate, error) {
	current, err := s.statuses.FindByName(ctx, cert.Status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.TransitionOutcome{}, nil, appErrors.Clone(appErrors.ErrInternal, "certificate references unknown status "+cert.Status)
		}
		return models.TransitionOutcome{}, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load current status")
	}

	var requirements []models.ValidationRequirement
	if req.StatusChangeRequested(cert.Status) {
		target := *req.TargetStatus
		if _, err := s.statuses.FindByName(ctx, target); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return models.TransitionOutcome{}, nil, appErrors.Clone(appErrors.ErrValidation, "unknown status "+target)
			}
			return models.TransitionOutcome{}, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load target status")
		}
		requirements, err = s.statuses.RequirementsFor(ctx, target)
		if err != nil {
			return models.TransitionOutcome{}, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load validation requirements")
		}
	}

	outcome := EvaluateTransition(cert, current, requirements, req)
	s.metrics.ObserveTransition(string(outcome.Decision))
	if !outcome.Applied() {
		return outcome, nil, nil
	}

	updated := cert.Clone()
	req.Patch.ApplyTo(updated)
	if req.StatusChangeRequested(cert.Status) {
		updated.Status = *req.TargetStatus
	}

	changes := DiffCertificates(cert, updated)
	if changes.Empty() {
		// Nothing actually changed; report applied without touching storage.
		return outcome, cert, nil
	}

	updated.UpdatedAt = time.Now().UTC()
	if err := s.certificates.Update(ctx, updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.TransitionOutcome{}, nil, appErrors.Clone(appErrors.ErrNotFound, "certificate not found")
		}
		return models.TransitionOutcome{}, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "update certificate")
	}

	s.emitAudit(ctx, updated.ID, actor, eventTypeFor(changes), changes, comment)
	return outcome, updated, nil
}

// eventTypeFor picks the audit event type from the shape of the diff: a
// status change wins, a tags-only diff is a tag event, anything else is a
// plain update.
func eventTypeFor(changes ChangeSet) string {
	if _, ok := changes["status"]; ok {
		return models.AuditEventStatusChanged
	}
	if len(changes) == 1 {
		if _, ok := changes["tags"]; ok {
			return models.AuditEventTagsUpdated
		}
	}
	return models.AuditEventUpdated
}

// emitAudit appends an event best-effort. A failed append never rolls back
// the mutation; it is logged and the timeline carries a gap.
func (s *CertificateService) emitAudit(ctx context.Context, certificateID string, actor models.Actor, eventType string, changes ChangeSet, comment *string) {
	event := &models.AuditEvent{
		ID:            uuid.NewString(),
		CertificateID: certificateID,
		ActorID:       actor.ID,
		ActorRole:     actor.Role,
		EventType:     eventType,
		Changes:       changes.Marshal(),
		Comment:       comment,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.audits.Append(ctx, event); err != nil {
		s.logger.Warn("append audit event",
			zap.String("certificate_id", certificateID),
			zap.String("event_type", eventType),
			zap.Error(err))
		return
	}
	s.metrics.ObserveAuditEvent(eventType)
}
