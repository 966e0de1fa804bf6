package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/certilog/certilog-api/internal/dto"
	"github.com/certilog/certilog-api/internal/models"
)

type stubCertificateRepo struct {
	certs     map[string]*models.Certificate
	updateErr error
	updated   []*models.Certificate
}

func (s *stubCertificateRepo) Create(ctx context.Context, cert *models.Certificate) error {
	if s.certs == nil {
		s.certs = make(map[string]*models.Certificate)
	}
	s.certs[cert.ID] = cert.Clone()
	return nil
}

func (s *stubCertificateRepo) GetByID(ctx context.Context, id string) (*models.Certificate, error) {
	cert, ok := s.certs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return cert.Clone(), nil
}

func (s *stubCertificateRepo) List(ctx context.Context, filter models.CertificateFilter) ([]models.Certificate, int, error) {
	result := make([]models.Certificate, 0, len(s.certs))
	for _, cert := range s.certs {
		result = append(result, *cert)
	}
	return result, len(result), nil
}

func (s *stubCertificateRepo) ListByIDs(ctx context.Context, ids []string) ([]models.Certificate, error) {
	result := make([]models.Certificate, 0, len(ids))
	for _, id := range ids {
		if cert, ok := s.certs[id]; ok {
			result = append(result, *cert.Clone())
		}
	}
	return result, nil
}

func (s *stubCertificateRepo) Update(ctx context.Context, cert *models.Certificate) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	if _, ok := s.certs[cert.ID]; !ok {
		return sql.ErrNoRows
	}
	s.certs[cert.ID] = cert.Clone()
	s.updated = append(s.updated, cert.Clone())
	return nil
}

type stubStatusReader struct {
	statuses     map[string]*models.StatusDefinition
	requirements map[string][]models.ValidationRequirement
}

func (s *stubStatusReader) FindByName(ctx context.Context, name string) (*models.StatusDefinition, error) {
	status, ok := s.statuses[name]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return status, nil
}

func (s *stubStatusReader) RequirementsFor(ctx context.Context, statusName string) ([]models.ValidationRequirement, error) {
	return s.requirements[statusName], nil
}

type stubAuditRepo struct {
	events    []*models.AuditEvent
	appendErr error
}

func (s *stubAuditRepo) Append(ctx context.Context, event *models.AuditEvent) error {
	if s.appendErr != nil {
		return s.appendErr
	}
	s.events = append(s.events, event)
	return nil
}

func newTestCertificateService(certs *stubCertificateRepo, statuses *stubStatusReader, audits *stubAuditRepo) *CertificateService {
	return NewCertificateService(certs, statuses, audits, nil, nil, nil)
}

func defaultStatuses() *stubStatusReader {
	return &stubStatusReader{
		statuses: map[string]*models.StatusDefinition{
			"draft":    {Name: "draft", CanEdit: true},
			"paid":     {Name: "paid", CanEdit: true},
			"archived": {Name: "archived", CanEdit: false, IsFinal: true},
		},
		requirements: map[string][]models.ValidationRequirement{},
	}
}

func TestCertificateServiceCreateRecordsAudit(t *testing.T) {
	certs := &stubCertificateRepo{}
	audits := &stubAuditRepo{}
	svc := newTestCertificateService(certs, defaultStatuses(), audits)

	cert, err := svc.Create(context.Background(), dto.CreateCertificateRequest{
		Number: "C-100",
		Title:  "Crane operation",
		Status: "draft",
	}, models.Actor{ID: "user-1", Role: "MANAGER"})

	require.NoError(t, err)
	assert.NotEmpty(t, cert.ID)
	require.Len(t, audits.events, 1)
	assert.Equal(t, models.AuditEventCreated, audits.events[0].EventType)
	assert.Equal(t, "user-1", audits.events[0].ActorID)
}

func TestCertificateServiceCreateUnknownStatus(t *testing.T) {
	svc := newTestCertificateService(&stubCertificateRepo{}, defaultStatuses(), &stubAuditRepo{})

	_, err := svc.Create(context.Background(), dto.CreateCertificateRequest{
		Number: "C-100",
		Title:  "Crane operation",
		Status: "nonexistent",
	}, models.Actor{ID: "user-1"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown status")
}

func TestCertificateServiceUpdateAppliesPatchAndAudits(t *testing.T) {
	certs := &stubCertificateRepo{}
	audits := &stubAuditRepo{}
	svc := newTestCertificateService(certs, defaultStatuses(), audits)

	seed := baseCertificate()
	require.NoError(t, certs.Create(context.Background(), seed))

	result, err := svc.Update(context.Background(), seed.ID, dto.UpdateCertificateRequest{
		CertificatePatch: dto.CertificatePatch{Title: strPtr("Renamed")},
	}, models.Actor{ID: "user-1", Role: "MANAGER"})

	require.NoError(t, err)
	assert.Equal(t, models.DecisionApply, result.Outcome.Decision)
	require.NotNil(t, result.Certificate)
	assert.Equal(t, "Renamed", result.Certificate.Title)

	require.Len(t, audits.events, 1)
	assert.Equal(t, models.AuditEventUpdated, audits.events[0].EventType)

	var changes map[string]map[string]interface{}
	require.NoError(t, json.Unmarshal(audits.events[0].Changes, &changes))
	assert.Equal(t, "Forklift operator", changes["title"]["before"])
	assert.Equal(t, "Renamed", changes["title"]["after"])
}

func TestCertificateServiceUpdateStatusChangeEvent(t *testing.T) {
	certs := &stubCertificateRepo{}
	audits := &stubAuditRepo{}
	svc := newTestCertificateService(certs, defaultStatuses(), audits)

	seed := baseCertificate()
	require.NoError(t, certs.Create(context.Background(), seed))

	result, err := svc.Update(context.Background(), seed.ID, dto.UpdateCertificateRequest{
		TargetStatus: strPtr("paid"),
	}, models.Actor{ID: "user-1"})

	require.NoError(t, err)
	require.True(t, result.Outcome.Applied())
	assert.Equal(t, "paid", result.Certificate.Status)
	require.Len(t, audits.events, 1)
	assert.Equal(t, models.AuditEventStatusChanged, audits.events[0].EventType)
}

func TestCertificateServiceUpdateTagsOnlyEvent(t *testing.T) {
	certs := &stubCertificateRepo{}
	audits := &stubAuditRepo{}
	svc := newTestCertificateService(certs, defaultStatuses(), audits)

	seed := baseCertificate()
	require.NoError(t, certs.Create(context.Background(), seed))

	tags := []string{"safety"}
	result, err := svc.Update(context.Background(), seed.ID, dto.UpdateCertificateRequest{
		CertificatePatch: dto.CertificatePatch{Tags: &tags},
	}, models.Actor{ID: "user-1"})

	require.NoError(t, err)
	require.True(t, result.Outcome.Applied())
	require.Len(t, audits.events, 1)
	assert.Equal(t, models.AuditEventTagsUpdated, audits.events[0].EventType)
}

func TestCertificateServiceUpdateEmptyDiffIsNoOp(t *testing.T) {
	certs := &stubCertificateRepo{}
	audits := &stubAuditRepo{}
	svc := newTestCertificateService(certs, defaultStatuses(), audits)

	seed := baseCertificate()
	require.NoError(t, certs.Create(context.Background(), seed))

	result, err := svc.Update(context.Background(), seed.ID, dto.UpdateCertificateRequest{
		CertificatePatch: dto.CertificatePatch{Title: strPtr(seed.Title)},
	}, models.Actor{ID: "user-1"})

	require.NoError(t, err)
	assert.True(t, result.Outcome.Applied())
	assert.Empty(t, certs.updated)
	assert.Empty(t, audits.events)
}

func TestCertificateServiceUpdateRejectedReturnsOutcomeValue(t *testing.T) {
	certs := &stubCertificateRepo{}
	statuses := defaultStatuses()
	cost := models.FieldCost
	statuses.requirements["paid"] = []models.ValidationRequirement{
		{ID: "r1", StatusName: "paid", Name: "cost required", RequiredField: &cost},
	}
	audits := &stubAuditRepo{}
	svc := newTestCertificateService(certs, statuses, audits)

	seed := baseCertificate()
	require.NoError(t, certs.Create(context.Background(), seed))

	result, err := svc.Update(context.Background(), seed.ID, dto.UpdateCertificateRequest{
		TargetStatus:     strPtr("paid"),
		Confirmed:        true,
		ConfirmationText: DefaultConfirmationStatement,
	}, models.Actor{ID: "user-1"})

	require.NoError(t, err)
	assert.Equal(t, models.DecisionRejected, result.Outcome.Decision)
	assert.Nil(t, result.Certificate)
	assert.Empty(t, certs.updated)
	assert.Empty(t, audits.events)
}

func TestCertificateServiceMutateBlockedWritesNothing(t *testing.T) {
	certs := &stubCertificateRepo{}
	audits := &stubAuditRepo{}
	svc := newTestCertificateService(certs, defaultStatuses(), audits)

	seed := baseCertificate()
	seed.Status = "archived"
	require.NoError(t, certs.Create(context.Background(), seed))

	outcome, updated, err := svc.Mutate(context.Background(), seed, models.TransitionRequest{
		CertificateID: seed.ID,
		Patch:         models.CertificatePatch{Title: strPtr("should not land")},
	}, models.Actor{ID: "user-1"}, nil)

	require.NoError(t, err)
	assert.Equal(t, models.DecisionBlocked, outcome.Decision)
	assert.Nil(t, updated)
	assert.Empty(t, certs.updated)
}

func TestCertificateServiceMutateAuditFailureDoesNotRollBack(t *testing.T) {
	certs := &stubCertificateRepo{}
	audits := &stubAuditRepo{appendErr: errors.New("audit store down")}
	svc := newTestCertificateService(certs, defaultStatuses(), audits)

	seed := baseCertificate()
	require.NoError(t, certs.Create(context.Background(), seed))

	outcome, updated, err := svc.Mutate(context.Background(), seed, models.TransitionRequest{
		CertificateID: seed.ID,
		Patch:         models.CertificatePatch{Title: strPtr("persisted anyway")},
	}, models.Actor{ID: "user-1"}, nil)

	require.NoError(t, err)
	assert.True(t, outcome.Applied())
	require.NotNil(t, updated)
	assert.Equal(t, "persisted anyway", updated.Title)
	require.Len(t, certs.updated, 1)
}

func TestCertificateServiceMutateObservesMetrics(t *testing.T) {
	certs := &stubCertificateRepo{}
	audits := &stubAuditRepo{}
	metrics := NewMetricsService()
	svc := NewCertificateService(certs, defaultStatuses(), audits, metrics, nil, nil)

	seed := baseCertificate()
	require.NoError(t, certs.Create(context.Background(), seed))

	_, _, err := svc.Mutate(context.Background(), seed, models.TransitionRequest{
		CertificateID: seed.ID,
		Patch:         models.CertificatePatch{Title: strPtr("Renamed")},
	}, models.Actor{ID: "user-1"}, nil)
	require.NoError(t, err)

	locked := baseCertificate()
	locked.ID = "cert-2"
	locked.Status = "archived"
	require.NoError(t, certs.Create(context.Background(), locked))

	outcome, _, err := svc.Mutate(context.Background(), locked, models.TransitionRequest{
		CertificateID: locked.ID,
		Patch:         models.CertificatePatch{Title: strPtr("nope")},
	}, models.Actor{ID: "user-1"}, nil)
	require.NoError(t, err)
	require.Equal(t, models.DecisionBlocked, outcome.Decision)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.transitionTotal.WithLabelValues("apply")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.transitionTotal.WithLabelValues("blocked")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.auditEvents.WithLabelValues(models.AuditEventUpdated)))
}

func TestCertificateServiceMutateStampsComment(t *testing.T) {
	certs := &stubCertificateRepo{}
	audits := &stubAuditRepo{}
	svc := newTestCertificateService(certs, defaultStatuses(), audits)

	seed := baseCertificate()
	require.NoError(t, certs.Create(context.Background(), seed))

	comment := "quarterly cleanup"
	_, _, err := svc.Mutate(context.Background(), seed, models.TransitionRequest{
		CertificateID: seed.ID,
		Patch:         models.CertificatePatch{Notes: strPtr("done")},
	}, models.Actor{ID: "user-1"}, &comment)

	require.NoError(t, err)
	require.Len(t, audits.events, 1)
	require.NotNil(t, audits.events[0].Comment)
	assert.Equal(t, "quarterly cleanup", *audits.events[0].Comment)
}
