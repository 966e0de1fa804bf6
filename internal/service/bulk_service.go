package service

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/certilog/certilog-api/internal/dto"
	"github.com/certilog/certilog-api/internal/models"
	appErrors "github.com/certilog/certilog-api/pkg/errors"
)

type certificateBatchReader interface {
	ListByIDs(ctx context.Context, ids []string) ([]models.Certificate, error)
}

type certificateMutator interface {
	Mutate(ctx context.Context, cert *models.Certificate, req models.TransitionRequest, actor models.Actor, comment *string) (models.TransitionOutcome, *models.Certificate, error)
}

type bulkMetrics interface {
	ObserveBulk(applied, blocked, failed int)
}

// BulkService runs best-effort batch mutations. Each record is evaluated and
// written independently in request order; one record's failure never touches
// another's outcome, and there is no batch-level transaction to roll back.
type BulkService struct {
	certificates certificateBatchReader
	mutator      certificateMutator
	metrics      bulkMetrics
	maxBatchSize int
	validator    *validator.Validate
	logger       *zap.Logger
}

// NewBulkService constructs BulkService. metrics may be nil.
func NewBulkService(certificates certificateBatchReader, mutator certificateMutator, metrics bulkMetrics, maxBatchSize int, validate *validator.Validate, logger *zap.Logger) *BulkService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxBatchSize <= 0 {
		maxBatchSize = 200
	}
	return &BulkService{
		certificates: certificates,
		mutator:      mutator,
		metrics:      metrics,
		maxBatchSize: maxBatchSize,
		validator:    validate,
		logger:       logger,
	}
}

// Apply processes the batch and partitions every requested id into exactly
// one of applied, blocked or failed. Rule rejections land in failed with the
// rejection reason; blocked is reserved for records whose current status
// forbids edits. A canceled context stops processing and files the remaining
// ids under failed.
func (s *BulkService) Apply(ctx context.Context, req dto.BulkUpdateRequest, actor models.Actor) (*dto.BulkResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	if len(req.IDs) > s.maxBatchSize {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("batch of %d exceeds the limit of %d", len(req.IDs), s.maxBatchSize))
	}
	if err := validateFieldKeys(req.ApplyToAll); err != nil {
		return nil, err
	}

	certs, err := s.certificates.ListByIDs(ctx, req.IDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load batch")
	}
	byID := make(map[string]*models.Certificate, len(certs))
	for i := range certs {
		byID[certs[i].ID] = &certs[i]
	}

	var comment *string
	if req.Comment != "" {
		comment = &req.Comment
	}

	result := &dto.BulkResult{
		Applied: []dto.BulkRecordOutcome{},
		Blocked: []dto.BulkRecordOutcome{},
		Failed:  []dto.BulkRecordOutcome{},
	}
	canceled := false
	for _, id := range req.IDs {
		if canceled || ctx.Err() != nil {
			canceled = true
			result.Failed = append(result.Failed, dto.BulkRecordOutcome{ID: id, Reason: "bulk job canceled"})
			continue
		}

		cert, ok := byID[id]
		if !ok {
			result.Failed = append(result.Failed, dto.BulkRecordOutcome{ID: id, Reason: "certificate not found"})
			continue
		}

		patch := effectivePatch(req, id, cert)
		treq := models.TransitionRequest{
			CertificateID:    id,
			TargetStatus:     req.TargetStatus,
			Patch:            patch,
			Confirmed:        req.Confirmed,
			ConfirmationText: req.ConfirmationText,
		}
		outcome, updated, err := s.mutator.Mutate(ctx, cert, treq, actor, comment)
		switch {
		case err != nil:
			s.logger.Warn("bulk record mutation failed", zap.String("certificate_id", id), zap.Error(err))
			result.Failed = append(result.Failed, dto.BulkRecordOutcome{ID: id, Number: cert.Number, Reason: appErrors.FromError(err).Message})
		case outcome.Decision == models.DecisionBlocked:
			result.Blocked = append(result.Blocked, dto.BulkRecordOutcome{ID: id, Number: cert.Number, Reason: RejectionReason(outcome)})
		case !outcome.Applied():
			result.Failed = append(result.Failed, dto.BulkRecordOutcome{ID: id, Number: cert.Number, Reason: RejectionReason(outcome)})
		default:
			result.Applied = append(result.Applied, dto.BulkRecordOutcome{ID: id, Number: updated.Number})
		}
	}

	result.AppliedCount = len(result.Applied)
	result.BlockedCount = len(result.Blocked)
	result.FailedCount = len(result.Failed)
	if s.metrics != nil {
		s.metrics.ObserveBulk(result.AppliedCount, result.BlockedCount, result.FailedCount)
	}
	s.logger.Info("bulk update finished",
		zap.Int("requested", len(req.IDs)),
		zap.Int("applied", result.AppliedCount),
		zap.Int("blocked", result.BlockedCount),
		zap.Int("failed", result.FailedCount))
	return result, nil
}

// effectivePatch resolves one record's patch: for each field key in
// ApplyToAll the Global value wins, otherwise the record's PerRecord patch
// provides it. Note and AddTags are layered on top of whatever that resolved.
func effectivePatch(req dto.BulkUpdateRequest, id string, cert *models.Certificate) models.CertificatePatch {
	global := make(map[string]struct{}, len(req.ApplyToAll))
	for _, field := range req.ApplyToAll {
		global[field] = struct{}{}
	}
	per := req.PerRecord[id].Model()
	all := req.Global.Model()

	patch := per
	if _, ok := global[dto.BulkFieldTitle]; ok {
		patch.Title = all.Title
	}
	if _, ok := global[dto.BulkFieldCost]; ok {
		patch.Cost = all.Cost
	}
	if _, ok := global[dto.BulkFieldAdditionalCost]; ok {
		patch.AdditionalCost = all.AdditionalCost
	}
	if _, ok := global[dto.BulkFieldOrderNumber]; ok {
		patch.OrderNumber = all.OrderNumber
	}
	if _, ok := global[dto.BulkFieldPaymentDate]; ok {
		patch.PaymentDate = all.PaymentDate
	}
	if _, ok := global[dto.BulkFieldPaymentType]; ok {
		patch.PaymentTypeID = all.PaymentTypeID
	}
	if _, ok := global[dto.BulkFieldPriority]; ok {
		patch.Priority = all.Priority
	}
	if _, ok := global[dto.BulkFieldNotes]; ok {
		patch.Notes = all.Notes
	}
	if _, ok := global[dto.BulkFieldTags]; ok {
		patch.Tags = all.Tags
	}

	if req.Note != nil {
		patch.Notes = req.Note
	}
	if len(req.AddTags) > 0 {
		base := []string(cert.Tags)
		if patch.Tags != nil {
			base = *patch.Tags
		}
		merged := unionTags(base, req.AddTags)
		patch.Tags = &merged
	}
	return patch
}

// unionTags appends the additions that are not already present, preserving
// the base order.
func unionTags(base, additions []string) []string {
	seen := make(map[string]struct{}, len(base))
	merged := make([]string, 0, len(base)+len(additions))
	for _, tag := range base {
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		merged = append(merged, tag)
	}
	for _, tag := range additions {
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		merged = append(merged, tag)
	}
	return merged
}

func validateFieldKeys(keys []string) error {
	known := make(map[string]struct{})
	for _, field := range dto.BulkOverridableFields() {
		known[field] = struct{}{}
	}
	for _, key := range keys {
		if _, ok := known[key]; !ok {
			return appErrors.Clone(appErrors.ErrValidation, "unknown bulk field "+key)
		}
	}
	return nil
}
