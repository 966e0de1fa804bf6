package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/certilog/certilog-api/internal/models"
)

// PaymentTypeRepository persists the payment type catalog.
type PaymentTypeRepository struct {
	db *sqlx.DB
}

// NewPaymentTypeRepository constructs the repository.
func NewPaymentTypeRepository(db *sqlx.DB) *PaymentTypeRepository {
	return &PaymentTypeRepository{db: db}
}

// List returns payment types ordered by name.
func (r *PaymentTypeRepository) List(ctx context.Context, activeOnly bool) ([]models.PaymentType, error) {
	query := `SELECT id, name, active, created_at, updated_at FROM payment_types`
	if activeOnly {
		query += ` WHERE active = TRUE`
	}
	query += ` ORDER BY name ASC`
	var types []models.PaymentType
	if err := r.db.SelectContext(ctx, &types, query); err != nil {
		return nil, fmt.Errorf("list payment types: %w", err)
	}
	return types, nil
}

// FindByID fetches a payment type.
func (r *PaymentTypeRepository) FindByID(ctx context.Context, id string) (*models.PaymentType, error) {
	const query = `SELECT id, name, active, created_at, updated_at FROM payment_types WHERE id = $1`
	var pt models.PaymentType
	if err := r.db.GetContext(ctx, &pt, query, id); err != nil {
		return nil, err
	}
	return &pt, nil
}

// Create inserts a payment type.
func (r *PaymentTypeRepository) Create(ctx context.Context, pt *models.PaymentType) error {
	if pt.ID == "" {
		pt.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	pt.CreatedAt = now
	pt.UpdatedAt = now
	const query = `INSERT INTO payment_types (id, name, active, created_at, updated_at)
	VALUES (:id, :name, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, pt); err != nil {
		return fmt.Errorf("create payment type: %w", err)
	}
	return nil
}

// Update mutates name and active flag.
func (r *PaymentTypeRepository) Update(ctx context.Context, id string, name *string, active *bool) error {
	pt, err := r.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if name != nil {
		pt.Name = *name
	}
	if active != nil {
		pt.Active = *active
	}
	pt.UpdatedAt = time.Now().UTC()
	const query = `UPDATE payment_types SET name = :name, active = :active, updated_at = :updated_at WHERE id = :id`
	result, err := r.db.NamedExecContext(ctx, query, pt)
	if err != nil {
		return fmt.Errorf("update payment type: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check payment type update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a payment type.
func (r *PaymentTypeRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM payment_types WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete payment type: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check payment type delete rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
