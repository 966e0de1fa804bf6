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

type paymentTypeStore interface {
	List(ctx context.Context, activeOnly bool) ([]models.PaymentType, error)
	FindByID(ctx context.Context, id string) (*models.PaymentType, error)
	Create(ctx context.Context, pt *models.PaymentType) error
	Update(ctx context.Context, id string, name *string, active *bool) error
	Delete(ctx context.Context, id string) error
}

type tagStore interface {
	List(ctx context.Context) ([]models.Tag, error)
	Create(ctx context.Context, tag *models.Tag) error
	Delete(ctx context.Context, id string) error
}

// CatalogService administers the supporting catalogs: payment types and
// tags. Both are flat reference tables; no caching is worth it at their
// read rates.
type CatalogService struct {
	paymentTypes paymentTypeStore
	tags         tagStore
	validator    *validator.Validate
	logger       *zap.Logger
}

// NewCatalogService constructs CatalogService.
func NewCatalogService(paymentTypes paymentTypeStore, tags tagStore, validate *validator.Validate, logger *zap.Logger) *CatalogService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogService{paymentTypes: paymentTypes, tags: tags, validator: validate, logger: logger}
}

// ListPaymentTypes returns the payment type catalog.
func (s *CatalogService) ListPaymentTypes(ctx context.Context, activeOnly bool) ([]models.PaymentType, error) {
	types, err := s.paymentTypes.List(ctx, activeOnly)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "list payment types")
	}
	return types, nil
}

// CreatePaymentType registers a payment type.
func (s *CatalogService) CreatePaymentType(ctx context.Context, req dto.CreatePaymentTypeRequest) (*models.PaymentType, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	now := time.Now().UTC()
	pt := &models.PaymentType{
		ID:        uuid.NewString(),
		Name:      req.Name,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if req.Active != nil {
		pt.Active = *req.Active
	}
	if err := s.paymentTypes.Create(ctx, pt); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "create payment type")
	}
	return pt, nil
}

// UpdatePaymentType mutates a payment type.
func (s *CatalogService) UpdatePaymentType(ctx context.Context, id string, req dto.UpdatePaymentTypeRequest) (*models.PaymentType, error) {
	if err := s.paymentTypes.Update(ctx, id, req.Name, req.Active); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment type not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "update payment type")
	}
	pt, err := s.paymentTypes.FindByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load payment type")
	}
	return pt, nil
}

// DeletePaymentType removes a payment type. Certificates keep their stored
// payment_type_id; resolution simply fails soft on display.
func (s *CatalogService) DeletePaymentType(ctx context.Context, id string) error {
	if err := s.paymentTypes.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "payment type not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "delete payment type")
	}
	return nil
}

// ListTags returns all known tags.
func (s *CatalogService) ListTags(ctx context.Context) ([]models.Tag, error) {
	tags, err := s.tags.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "list tags")
	}
	return tags, nil
}

// CreateTag registers a tag.
func (s *CatalogService) CreateTag(ctx context.Context, req dto.CreateTagRequest) (*models.Tag, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	tag := &models.Tag{
		ID:        uuid.NewString(),
		Name:      req.Name,
		Color:     req.Color,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.tags.Create(ctx, tag); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "create tag")
	}
	return tag, nil
}

// DeleteTag removes a tag from the catalog. Labels already attached to
// certificates are untouched.
func (s *CatalogService) DeleteTag(ctx context.Context, id string) error {
	if err := s.tags.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "tag not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "delete tag")
	}
	return nil
}
