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
	"github.com/certilog/certilog-api/internal/repository"
	appErrors "github.com/certilog/certilog-api/pkg/errors"
)

const (
	statusListCacheKey       = "certilog:statuses"
	statusListActiveCacheKey = "certilog:statuses:active"
)

type statusStore interface {
	List(ctx context.Context, activeOnly bool) ([]models.StatusDefinition, error)
	FindByName(ctx context.Context, name string) (*models.StatusDefinition, error)
	Create(ctx context.Context, status *models.StatusDefinition) error
	Update(ctx context.Context, name string, params repository.UpdateStatusParams) error
	RequirementsFor(ctx context.Context, statusName string) ([]models.ValidationRequirement, error)
	CreateValidation(ctx context.Context, req *models.ValidationRequirement) error
	DeleteValidation(ctx context.Context, id string) error
}

type catalogCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// StatusService administers the status catalog and its validation
// requirements. Listings are cache-aside over Redis since every mutation in
// the system consults the catalog; writes invalidate both list keys.
type StatusService struct {
	statuses  statusStore
	cache     catalogCache
	cacheTTL  time.Duration
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStatusService constructs StatusService. cache may be nil for uncached
// operation.
func NewStatusService(statuses statusStore, cache catalogCache, cacheTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *StatusService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &StatusService{
		statuses:  statuses,
		cache:     cache,
		cacheTTL:  cacheTTL,
		validator: validate,
		logger:    logger,
	}
}

// List returns the catalog ordered by display order, served from cache when
// warm.
func (s *StatusService) List(ctx context.Context, activeOnly bool) ([]models.StatusDefinition, error) {
	key := statusListCacheKey
	if activeOnly {
		key = statusListActiveCacheKey
	}
	if s.cache != nil {
		var cached []models.StatusDefinition
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return cached, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("status cache read", zap.Error(err))
		}
	}

	statuses, err := s.statuses.List(ctx, activeOnly)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "list statuses")
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, statuses, s.cacheTTL); err != nil {
			s.logger.Warn("status cache write", zap.Error(err))
		}
	}
	return statuses, nil
}

// Get fetches one status definition by name.
func (s *StatusService) Get(ctx context.Context, name string) (*models.StatusDefinition, error) {
	status, err := s.statuses.FindByName(ctx, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "status not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load status")
	}
	return status, nil
}

// Create registers a new status definition. Names are unique; a duplicate
// surfaces as a conflict.
func (s *StatusService) Create(ctx context.Context, req dto.CreateStatusRequest) (*models.StatusDefinition, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	if existing, err := s.statuses.FindByName(ctx, req.Name); err == nil && existing != nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "status "+req.Name+" already exists")
	} else if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "check status name")
	}

	now := time.Now().UTC()
	status := &models.StatusDefinition{
		Name:         req.Name,
		DisplayName:  req.DisplayName,
		Color:        req.Color,
		DisplayOrder: req.DisplayOrder,
		Active:       true,
		CanEdit:      true,
		IsFinal:      req.IsFinal,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if req.Active != nil {
		status.Active = *req.Active
	}
	if req.CanEdit != nil {
		status.CanEdit = *req.CanEdit
	}
	if err := s.statuses.Create(ctx, status); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "create status")
	}
	s.invalidate(ctx)
	return status, nil
}

// Update mutates a status definition. The name is immutable.
func (s *StatusService) Update(ctx context.Context, name string, req dto.UpdateStatusRequest) (*models.StatusDefinition, error) {
	params := repository.UpdateStatusParams{
		DisplayName:  req.DisplayName,
		Color:        req.Color,
		DisplayOrder: req.DisplayOrder,
		Active:       req.Active,
		CanEdit:      req.CanEdit,
		IsFinal:      req.IsFinal,
	}
	if err := s.statuses.Update(ctx, name, params); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "status not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "update status")
	}
	s.invalidate(ctx)
	return s.Get(ctx, name)
}

// Requirements lists the validation requirements attached to a status.
func (s *StatusService) Requirements(ctx context.Context, statusName string) ([]models.ValidationRequirement, error) {
	if _, err := s.Get(ctx, statusName); err != nil {
		return nil, err
	}
	requirements, err := s.statuses.RequirementsFor(ctx, statusName)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "list requirements")
	}
	return requirements, nil
}

// AddRequirement attaches a requirement to a status. The required field, when
// set, must belong to the closed enumeration.
func (s *StatusService) AddRequirement(ctx context.Context, statusName string, req dto.CreateValidationRequest) (*models.ValidationRequirement, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	if _, err := s.Get(ctx, statusName); err != nil {
		return nil, err
	}

	var field *models.RequiredField
	if req.RequiredField != nil && *req.RequiredField != "" {
		f := models.RequiredField(*req.RequiredField)
		if !f.Valid() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown required field "+*req.RequiredField)
		}
		field = &f
	}
	if field == nil && (req.ConfirmationStatement == nil || *req.ConfirmationStatement == "") {
		return nil, appErrors.Clone(appErrors.ErrValidation, "requirement needs a required field or a confirmation statement")
	}

	requirement := &models.ValidationRequirement{
		ID:                    uuid.NewString(),
		StatusName:            statusName,
		Name:                  req.Name,
		RequiredField:         field,
		ConfirmationStatement: req.ConfirmationStatement,
		CreatedAt:             time.Now().UTC(),
	}
	if err := s.statuses.CreateValidation(ctx, requirement); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "create requirement")
	}
	return requirement, nil
}

// RemoveRequirement detaches a requirement by id.
func (s *StatusService) RemoveRequirement(ctx context.Context, id string) error {
	if err := s.statuses.DeleteValidation(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "requirement not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "delete requirement")
	}
	return nil
}

func (s *StatusService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	for _, key := range []string{statusListCacheKey, statusListActiveCacheKey} {
		if err := s.cache.Delete(ctx, key); err != nil {
			s.logger.Warn("status cache invalidate", zap.String("key", key), zap.Error(err))
		}
	}
}
