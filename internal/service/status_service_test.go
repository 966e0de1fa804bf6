package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/certilog/certilog-api/internal/dto"
	"github.com/certilog/certilog-api/internal/models"
	"github.com/certilog/certilog-api/internal/repository"
	appErrors "github.com/certilog/certilog-api/pkg/errors"
)

type stubStatusStore struct {
	statuses     map[string]*models.StatusDefinition
	requirements map[string][]models.ValidationRequirement
	listCalls    int
}

func (s *stubStatusStore) List(ctx context.Context, activeOnly bool) ([]models.StatusDefinition, error) {
	s.listCalls++
	result := make([]models.StatusDefinition, 0, len(s.statuses))
	for _, status := range s.statuses {
		if activeOnly && !status.Active {
			continue
		}
		result = append(result, *status)
	}
	return result, nil
}

func (s *stubStatusStore) FindByName(ctx context.Context, name string) (*models.StatusDefinition, error) {
	status, ok := s.statuses[name]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return status, nil
}

func (s *stubStatusStore) Create(ctx context.Context, status *models.StatusDefinition) error {
	if s.statuses == nil {
		s.statuses = make(map[string]*models.StatusDefinition)
	}
	s.statuses[status.Name] = status
	return nil
}

func (s *stubStatusStore) Update(ctx context.Context, name string, params repository.UpdateStatusParams) error {
	status, ok := s.statuses[name]
	if !ok {
		return sql.ErrNoRows
	}
	if params.DisplayName != nil {
		status.DisplayName = *params.DisplayName
	}
	if params.CanEdit != nil {
		status.CanEdit = *params.CanEdit
	}
	if params.IsFinal != nil {
		status.IsFinal = *params.IsFinal
	}
	return nil
}

func (s *stubStatusStore) RequirementsFor(ctx context.Context, statusName string) ([]models.ValidationRequirement, error) {
	return s.requirements[statusName], nil
}

func (s *stubStatusStore) CreateValidation(ctx context.Context, req *models.ValidationRequirement) error {
	if s.requirements == nil {
		s.requirements = make(map[string][]models.ValidationRequirement)
	}
	s.requirements[req.StatusName] = append(s.requirements[req.StatusName], *req)
	return nil
}

func (s *stubStatusStore) DeleteValidation(ctx context.Context, id string) error {
	for status, reqs := range s.requirements {
		for i, req := range reqs {
			if req.ID == id {
				s.requirements[status] = append(reqs[:i], reqs[i+1:]...)
				return nil
			}
		}
	}
	return sql.ErrNoRows
}

type stubCache struct {
	values  map[string][]byte
	deletes []string
	sets    int
}

func (c *stubCache) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := c.values[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (c *stubCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if c.values == nil {
		c.values = make(map[string][]byte)
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.values[key] = raw
	c.sets++
	return nil
}

func (c *stubCache) Delete(ctx context.Context, key string) error {
	delete(c.values, key)
	c.deletes = append(c.deletes, key)
	return nil
}

func newStatusFixture() (*StatusService, *stubStatusStore, *stubCache) {
	store := &stubStatusStore{
		statuses: map[string]*models.StatusDefinition{
			"draft": {Name: "draft", DisplayName: "Draft", Active: true, CanEdit: true},
			"paid":  {Name: "paid", DisplayName: "Paid", Active: true, CanEdit: true},
		},
	}
	cache := &stubCache{}
	svc := NewStatusService(store, cache, time.Minute, nil, nil)
	return svc, store, cache
}

func TestStatusServiceListCacheAside(t *testing.T) {
	svc, store, cache := newStatusFixture()

	first, err := svc.List(context.Background(), false)
	require.NoError(t, err)
	assert.Len(t, first, 2)
	assert.Equal(t, 1, store.listCalls)
	assert.Equal(t, 1, cache.sets)

	second, err := svc.List(context.Background(), false)
	require.NoError(t, err)
	assert.Len(t, second, 2)
	// Second read served from cache.
	assert.Equal(t, 1, store.listCalls)
}

func TestStatusServiceCreateInvalidatesCache(t *testing.T) {
	svc, _, cache := newStatusFixture()

	_, err := svc.List(context.Background(), false)
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), dto.CreateStatusRequest{
		Name:        "archived",
		DisplayName: "Archived",
		IsFinal:     true,
	})
	require.NoError(t, err)

	assert.Contains(t, cache.deletes, statusListCacheKey)
	assert.Contains(t, cache.deletes, statusListActiveCacheKey)
}

func TestStatusServiceCreateDuplicate(t *testing.T) {
	svc, _, _ := newStatusFixture()

	_, err := svc.Create(context.Background(), dto.CreateStatusRequest{
		Name:        "draft",
		DisplayName: "Draft again",
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestStatusServiceAddRequirementValidatesField(t *testing.T) {
	svc, _, _ := newStatusFixture()

	_, err := svc.AddRequirement(context.Background(), "paid", dto.CreateValidationRequest{
		Name:          "bad field",
		RequiredField: strPtr("serial-number"),
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown required field")
}

func TestStatusServiceAddRequirementNeedsSubstance(t *testing.T) {
	svc, _, _ := newStatusFixture()

	_, err := svc.AddRequirement(context.Background(), "paid", dto.CreateValidationRequest{
		Name: "empty requirement",
	})

	require.Error(t, err)
}

func TestStatusServiceAddAndRemoveRequirement(t *testing.T) {
	svc, store, _ := newStatusFixture()

	created, err := svc.AddRequirement(context.Background(), "paid", dto.CreateValidationRequest{
		Name:          "cost present",
		RequiredField: strPtr("cost"),
	})
	require.NoError(t, err)
	require.NotNil(t, created.RequiredField)
	assert.Equal(t, models.FieldCost, *created.RequiredField)
	assert.Len(t, store.requirements["paid"], 1)

	require.NoError(t, svc.RemoveRequirement(context.Background(), created.ID))
	assert.Empty(t, store.requirements["paid"])
}

func TestStatusServiceUpdateUnknown(t *testing.T) {
	svc, _, _ := newStatusFixture()

	_, err := svc.Update(context.Background(), "ghost", dto.UpdateStatusRequest{DisplayName: strPtr("Ghost")})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "status not found")
}
