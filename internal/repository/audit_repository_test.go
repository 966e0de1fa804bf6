package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/certilog/certilog-api/internal/models"
)

func newAuditRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

var auditTestColumns = []string{
	"id", "certificate_id", "actor_id", "actor_role", "event_type", "changes", "comment", "created_at",
}

func TestAuditRepositoryAppend(t *testing.T) {
	db, mock, cleanup := newAuditRepoMock(t)
	defer cleanup()

	repo := NewAuditRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO certificate_events")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	event := &models.AuditEvent{
		CertificateID: "cert-1",
		ActorID:       "user-1",
		ActorRole:     "MANAGER",
		EventType:     models.AuditEventStatusChanged,
		Changes:       []byte(`{"status":{"before":"draft","after":"paid"}}`),
	}
	require.NoError(t, repo.Append(context.Background(), event))
	require.NotEmpty(t, event.ID, "append assigns an id")
	require.False(t, event.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepositoryListByCertificate(t *testing.T) {
	db, mock, cleanup := newAuditRepoMock(t)
	defer cleanup()

	repo := NewAuditRepository(db)
	rows := sqlmock.NewRows(auditTestColumns).
		AddRow("evt-2", "cert-1", "user-1", "MANAGER", "status_changed", []byte(`{}`), nil, time.Now()).
		AddRow("evt-1", "cert-1", "user-1", "MANAGER", "created", []byte(`{}`), nil, time.Now().Add(-time.Hour))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE certificate_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3")).
		WithArgs("cert-1", 10, 0).
		WillReturnRows(rows)

	events, err := repo.ListByCertificate(context.Background(), "cert-1", 10, 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, "evt-2", events[0].ID, "newest event first")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepositoryListByCertificateClampsLimit(t *testing.T) {
	db, mock, cleanup := newAuditRepoMock(t)
	defer cleanup()

	repo := NewAuditRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE certificate_id = $1")).
		WithArgs("cert-1", 50, 0).
		WillReturnRows(sqlmock.NewRows(auditTestColumns))

	events, err := repo.ListByCertificate(context.Background(), "cert-1", 100000, -5)
	require.NoError(t, err)
	require.Empty(t, events)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepositoryListAll(t *testing.T) {
	db, mock, cleanup := newAuditRepoMock(t)
	defer cleanup()

	repo := NewAuditRepository(db)
	rows := sqlmock.NewRows(auditTestColumns).
		AddRow("evt-1", "cert-1", "user-1", "ADMIN", "created", []byte(`{}`), nil, time.Now().Add(-time.Hour)).
		AddRow("evt-2", "cert-2", "user-2", "MANAGER", "updated", []byte(`{}`), "note", time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM certificate_events ORDER BY created_at ASC LIMIT $1")).
		WithArgs(10000).
		WillReturnRows(rows)

	events, err := repo.ListAll(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, "evt-1", events[0].ID, "oldest event first for exports")
	require.NotNil(t, events[1].Comment)
	require.NoError(t, mock.ExpectationsWereMet())
}
