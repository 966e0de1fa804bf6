package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/certilog/certilog-api/internal/models"
)

func newCertificateRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

var certificateTestColumns = []string{
	"id", "number", "title", "cost", "additional_cost", "order_number", "payment_date",
	"payment_type_id", "priority", "notes", "tags", "status", "created_by", "created_at", "updated_at",
}

func certificateRow(id, number, title, status string) []driver.Value {
	now := time.Now()
	return []driver.Value{id, number, title, nil, nil, nil, nil, nil, 0, nil, "{}", status, "user-1", now, now}
}

func TestCertificateRepositoryCreateAndGet(t *testing.T) {
	db, mock, cleanup := newCertificateRepoMock(t)
	defer cleanup()

	repo := NewCertificateRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO certificates")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	cert := &models.Certificate{
		Number:    "C-0001",
		Title:     "Forklift operator",
		Status:    "draft",
		CreatedBy: "user-1",
	}
	require.NoError(t, repo.Create(context.Background(), cert))
	require.NotEmpty(t, cert.ID, "create assigns an id")
	require.NotNil(t, cert.Tags, "nil tags normalize to an empty array")

	rows := sqlmock.NewRows(certificateTestColumns).
		AddRow(certificateRow(cert.ID, cert.Number, cert.Title, cert.Status)...)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, number, title")).
		WithArgs(cert.ID).
		WillReturnRows(rows)

	found, err := repo.GetByID(context.Background(), cert.ID)
	require.NoError(t, err)
	require.Equal(t, cert.Number, found.Number)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCertificateRepositoryGetByIDMissing(t *testing.T) {
	db, mock, cleanup := newCertificateRepoMock(t)
	defer cleanup()

	repo := NewCertificateRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, number, title")).
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows(certificateTestColumns))

	_, err := repo.GetByID(context.Background(), "nope")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCertificateRepositoryListByIDs(t *testing.T) {
	db, mock, cleanup := newCertificateRepoMock(t)
	defer cleanup()

	repo := NewCertificateRepository(db)
	rows := sqlmock.NewRows(certificateTestColumns).
		AddRow(certificateRow("cert-1", "C-0001", "Forklift operator", "draft")...).
		AddRow(certificateRow("cert-2", "C-0002", "First aid", "paid")...)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE id = ANY($1)")).
		WithArgs(pq.Array([]string{"cert-1", "cert-2", "cert-missing"})).
		WillReturnRows(rows)

	certs, err := repo.ListByIDs(context.Background(), []string{"cert-1", "cert-2", "cert-missing"})
	require.NoError(t, err)
	require.Len(t, certs, 2, "missing ids are absent, not errors")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCertificateRepositoryListByIDsEmpty(t *testing.T) {
	db, mock, cleanup := newCertificateRepoMock(t)
	defer cleanup()

	repo := NewCertificateRepository(db)
	certs, err := repo.ListByIDs(context.Background(), nil)
	require.NoError(t, err)
	require.Nil(t, certs)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCertificateRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newCertificateRepoMock(t)
	defer cleanup()

	repo := NewCertificateRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM certificates WHERE")).
		WithArgs("%forklift%", "draft", "safety").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	rows := sqlmock.NewRows(certificateTestColumns).
		AddRow(certificateRow("cert-1", "C-0001", "Forklift operator", "draft")...)
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY title ASC LIMIT 20 OFFSET 0")).
		WithArgs("%forklift%", "draft", "safety").
		WillReturnRows(rows)

	certs, total, err := repo.List(context.Background(), models.CertificateFilter{
		Search:    "Forklift",
		Status:    "draft",
		Tag:       "safety",
		SortBy:    "title",
		SortOrder: "asc",
	})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Len(t, certs, 1)
	require.Equal(t, "cert-1", certs[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCertificateRepositoryListDefaultsSort(t *testing.T) {
	db, mock, cleanup := newCertificateRepoMock(t)
	defer cleanup()

	repo := NewCertificateRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM certificates")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	// Unknown sort columns fall back to created_at so the column name can
	// never be attacker supplied.
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY created_at DESC LIMIT 20 OFFSET 20")).
		WillReturnRows(sqlmock.NewRows(certificateTestColumns))

	_, _, err := repo.List(context.Background(), models.CertificateFilter{
		SortBy: "id; DROP TABLE certificates",
		Page:   2,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCertificateRepositoryUpdate(t *testing.T) {
	db, mock, cleanup := newCertificateRepoMock(t)
	defer cleanup()

	repo := NewCertificateRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE certificates SET")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	cert := &models.Certificate{ID: "cert-1", Title: "Renamed", Status: "draft"}
	require.NoError(t, repo.Update(context.Background(), cert))
	require.False(t, cert.UpdatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCertificateRepositoryUpdateMissing(t *testing.T) {
	db, mock, cleanup := newCertificateRepoMock(t)
	defer cleanup()

	repo := NewCertificateRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE certificates SET")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Update(context.Background(), &models.Certificate{ID: "gone"})
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}
