package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/certilog/certilog-api/internal/models"
)

func newStatusRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

var statusTestColumns = []string{
	"name", "display_name", "color", "display_order", "active", "can_edit", "is_final", "created_at", "updated_at",
}

func TestStatusRepositoryListActiveOnly(t *testing.T) {
	db, mock, cleanup := newStatusRepoMock(t)
	defer cleanup()

	repo := NewStatusRepository(db)
	rows := sqlmock.NewRows(statusTestColumns).
		AddRow("draft", "Draft", "#9ca3af", 1, true, true, false, time.Now(), time.Now()).
		AddRow("paid", "Paid", "#22c55e", 2, true, true, false, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("WHERE active = TRUE ORDER BY display_order ASC, name ASC")).
		WillReturnRows(rows)

	statuses, err := repo.List(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, statuses, 2)
	require.Equal(t, "draft", statuses[0].Name)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStatusRepositoryFindByName(t *testing.T) {
	db, mock, cleanup := newStatusRepoMock(t)
	defer cleanup()

	repo := NewStatusRepository(db)
	rows := sqlmock.NewRows(statusTestColumns).
		AddRow("archived", "Archived", "#6b7280", 9, true, false, true, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM certificate_statuses WHERE name = $1")).
		WithArgs("archived").
		WillReturnRows(rows)

	status, err := repo.FindByName(context.Background(), "archived")
	require.NoError(t, err)
	require.True(t, status.Locked())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStatusRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newStatusRepoMock(t)
	defer cleanup()

	repo := NewStatusRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO certificate_statuses")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	status := &models.StatusDefinition{Name: "in_review", DisplayName: "In review", Active: true, CanEdit: true}
	require.NoError(t, repo.Create(context.Background(), status))
	require.False(t, status.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStatusRepositoryUpdatePartial(t *testing.T) {
	db, mock, cleanup := newStatusRepoMock(t)
	defer cleanup()

	repo := NewStatusRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE certificate_statuses SET display_name = ")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	display := "Paid out"
	err := repo.Update(context.Background(), "paid", UpdateStatusParams{DisplayName: &display})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStatusRepositoryUpdateNoFields(t *testing.T) {
	db, mock, cleanup := newStatusRepoMock(t)
	defer cleanup()

	repo := NewStatusRepository(db)
	// Nothing to set means no statement at all.
	require.NoError(t, repo.Update(context.Background(), "paid", UpdateStatusParams{}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStatusRepositoryUpdateMissing(t *testing.T) {
	db, mock, cleanup := newStatusRepoMock(t)
	defer cleanup()

	repo := NewStatusRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE certificate_statuses SET")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	active := false
	err := repo.Update(context.Background(), "ghost", UpdateStatusParams{Active: &active})
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStatusRepositoryRequirementsFor(t *testing.T) {
	db, mock, cleanup := newStatusRepoMock(t)
	defer cleanup()

	repo := NewStatusRepository(db)
	rows := sqlmock.NewRows([]string{"id", "status_name", "name", "required_field", "confirmation_statement", "created_at"}).
		AddRow("val-1", "paid", "cost present", "cost", nil, time.Now()).
		AddRow("val-2", "paid", "confirm payment", nil, "I confirm this status change", time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM status_validations WHERE status_name = $1 ORDER BY created_at ASC")).
		WithArgs("paid").
		WillReturnRows(rows)

	reqs, err := repo.RequirementsFor(context.Background(), "paid")
	require.NoError(t, err)
	require.Len(t, reqs, 2)
	require.Equal(t, models.FieldCost, *reqs[0].RequiredField)
	require.Nil(t, reqs[0].ConfirmationStatement)
	require.Equal(t, "I confirm this status change", *reqs[1].ConfirmationStatement)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStatusRepositoryRequirementsForEmpty(t *testing.T) {
	db, mock, cleanup := newStatusRepoMock(t)
	defer cleanup()

	repo := NewStatusRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("FROM status_validations WHERE status_name = $1")).
		WithArgs("draft").
		WillReturnRows(sqlmock.NewRows([]string{"id", "status_name", "name", "required_field", "confirmation_statement", "created_at"}))

	reqs, err := repo.RequirementsFor(context.Background(), "draft")
	require.NoError(t, err)
	require.Empty(t, reqs)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStatusRepositoryValidationLifecycle(t *testing.T) {
	db, mock, cleanup := newStatusRepoMock(t)
	defer cleanup()

	repo := NewStatusRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO status_validations")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM status_validations WHERE id = $1")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	field := models.FieldOrderNumber
	req := &models.ValidationRequirement{StatusName: "paid", Name: "order on file", RequiredField: &field}
	require.NoError(t, repo.CreateValidation(context.Background(), req))
	require.NotEmpty(t, req.ID)

	require.NoError(t, repo.DeleteValidation(context.Background(), req.ID))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStatusRepositoryDeleteValidationMissing(t *testing.T) {
	db, mock, cleanup := newStatusRepoMock(t)
	defer cleanup()

	repo := NewStatusRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM status_validations WHERE id = $1")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.DeleteValidation(context.Background(), "ghost")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}
