package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/certilog/certilog-api/internal/models"
)

// StatusRepository persists status definitions and their validation
// requirements. It doubles as the rule store: RequirementsFor is the pure
// lookup the transition evaluator consumes.
type StatusRepository struct {
	db *sqlx.DB
}

// NewStatusRepository constructs the repository.
func NewStatusRepository(db *sqlx.DB) *StatusRepository {
	return &StatusRepository{db: db}
}

// List returns every status definition ordered for display.
func (r *StatusRepository) List(ctx context.Context, activeOnly bool) ([]models.StatusDefinition, error) {
	query := `SELECT name, display_name, color, display_order, active, can_edit, is_final, created_at, updated_at
	FROM certificate_statuses`
	if activeOnly {
		query += ` WHERE active = TRUE`
	}
	query += ` ORDER BY display_order ASC, name ASC`

	var statuses []models.StatusDefinition
	if err := r.db.SelectContext(ctx, &statuses, query); err != nil {
		return nil, fmt.Errorf("list statuses: %w", err)
	}
	return statuses, nil
}

// FindByName fetches one status definition.
func (r *StatusRepository) FindByName(ctx context.Context, name string) (*models.StatusDefinition, error) {
	const query = `SELECT name, display_name, color, display_order, active, can_edit, is_final, created_at, updated_at
	FROM certificate_statuses WHERE name = $1`
	var status models.StatusDefinition
	if err := r.db.GetContext(ctx, &status, query, name); err != nil {
		return nil, err
	}
	return &status, nil
}

// Create inserts a new status definition.
func (r *StatusRepository) Create(ctx context.Context, status *models.StatusDefinition) error {
	now := time.Now().UTC()
	if status.CreatedAt.IsZero() {
		status.CreatedAt = now
	}
	status.UpdatedAt = now
	const query = `INSERT INTO certificate_statuses
	(name, display_name, color, display_order, active, can_edit, is_final, created_at, updated_at)
	VALUES (:name, :display_name, :color, :display_order, :active, :can_edit, :is_final, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, status); err != nil {
		return fmt.Errorf("create status: %w", err)
	}
	return nil
}

// UpdateStatusParams groups the mutable columns of a status definition.
type UpdateStatusParams struct {
	DisplayName  *string
	Color        *string
	DisplayOrder *int
	Active       *bool
	CanEdit      *bool
	IsFinal      *bool
}

// Update mutates a status definition in place. The name is immutable.
func (r *StatusRepository) Update(ctx context.Context, name string, params UpdateStatusParams) error {
	setParts := make([]string, 0, 7)
	args := map[string]interface{}{"name": name, "updated_at": time.Now().UTC()}

	if params.DisplayName != nil {
		setParts = append(setParts, "display_name = :display_name")
		args["display_name"] = *params.DisplayName
	}
	if params.Color != nil {
		setParts = append(setParts, "color = :color")
		args["color"] = *params.Color
	}
	if params.DisplayOrder != nil {
		setParts = append(setParts, "display_order = :display_order")
		args["display_order"] = *params.DisplayOrder
	}
	if params.Active != nil {
		setParts = append(setParts, "active = :active")
		args["active"] = *params.Active
	}
	if params.CanEdit != nil {
		setParts = append(setParts, "can_edit = :can_edit")
		args["can_edit"] = *params.CanEdit
	}
	if params.IsFinal != nil {
		setParts = append(setParts, "is_final = :is_final")
		args["is_final"] = *params.IsFinal
	}
	if len(setParts) == 0 {
		return nil
	}
	setParts = append(setParts, "updated_at = :updated_at")

	query := fmt.Sprintf("UPDATE certificate_statuses SET %s WHERE name = :name", strings.Join(setParts, ", "))
	result, err := r.db.NamedExecContext(ctx, query, args)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check status update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// RequirementsFor returns the validation requirements attached to a status.
// An empty result is a normal answer, not an error.
func (r *StatusRepository) RequirementsFor(ctx context.Context, statusName string) ([]models.ValidationRequirement, error) {
	const query = `SELECT id, status_name, name, required_field, confirmation_statement, created_at
	FROM status_validations WHERE status_name = $1 ORDER BY created_at ASC`
	requirements := make([]models.ValidationRequirement, 0, 4)
	if err := r.db.SelectContext(ctx, &requirements, query, statusName); err != nil {
		return nil, fmt.Errorf("list requirements for %s: %w", statusName, err)
	}
	return requirements, nil
}

// CreateValidation attaches a requirement to a status.
func (r *StatusRepository) CreateValidation(ctx context.Context, req *models.ValidationRequirement) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO status_validations
	(id, status_name, name, required_field, confirmation_statement, created_at)
	VALUES (:id, :status_name, :name, :required_field, :confirmation_statement, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, req); err != nil {
		return fmt.Errorf("create status validation: %w", err)
	}
	return nil
}

// DeleteValidation removes a requirement.
func (r *StatusRepository) DeleteValidation(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM status_validations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete status validation: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check validation delete rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
