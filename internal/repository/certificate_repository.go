package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/certilog/certilog-api/internal/models"
)

const certificateColumns = `id, number, title, cost, additional_cost, order_number, payment_date,
       payment_type_id, priority, notes, tags, status, created_by, created_at, updated_at`

// CertificateRepository persists certificate records.
type CertificateRepository struct {
	db *sqlx.DB
}

// NewCertificateRepository constructs the repository.
func NewCertificateRepository(db *sqlx.DB) *CertificateRepository {
	return &CertificateRepository{db: db}
}

// Create inserts a new certificate row.
func (r *CertificateRepository) Create(ctx context.Context, cert *models.Certificate) error {
	if cert.ID == "" {
		cert.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if cert.CreatedAt.IsZero() {
		cert.CreatedAt = now
	}
	cert.UpdatedAt = now
	if cert.Tags == nil {
		cert.Tags = pq.StringArray{}
	}
	const query = `INSERT INTO certificates
	(id, number, title, cost, additional_cost, order_number, payment_date, payment_type_id, priority, notes, tags, status, created_by, created_at, updated_at)
	VALUES (:id, :number, :title, :cost, :additional_cost, :order_number, :payment_date, :payment_type_id, :priority, :notes, :tags, :status, :created_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, cert); err != nil {
		return fmt.Errorf("create certificate: %w", err)
	}
	return nil
}

// GetByID fetches a certificate by identifier.
func (r *CertificateRepository) GetByID(ctx context.Context, id string) (*models.Certificate, error) {
	query := `SELECT ` + certificateColumns + ` FROM certificates WHERE id = $1`
	var cert models.Certificate
	if err := r.db.GetContext(ctx, &cert, query, id); err != nil {
		return nil, err
	}
	return &cert, nil
}

// ListByIDs fetches the given certificates in one round trip. Missing IDs are
// simply absent from the result; callers decide what that means.
func (r *CertificateRepository) ListByIDs(ctx context.Context, ids []string) ([]models.Certificate, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT ` + certificateColumns + ` FROM certificates WHERE id = ANY($1)`
	var certs []models.Certificate
	if err := r.db.SelectContext(ctx, &certs, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("list certificates by ids: %w", err)
	}
	return certs, nil
}

// List returns certificates matching the filter together with the total count.
func (r *CertificateRepository) List(ctx context.Context, filter models.CertificateFilter) ([]models.Certificate, int, error) {
	conditions := make([]string, 0, 3)
	args := make([]interface{}, 0, 3)

	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		conditions = append(conditions, fmt.Sprintf("(LOWER(number) LIKE $%d OR LOWER(title) LIKE $%d)", len(args), len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Tag != "" {
		args = append(args, filter.Tag)
		conditions = append(conditions, fmt.Sprintf("$%d = ANY(tags)", len(args)))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM certificates"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count certificates: %w", err)
	}

	sortBy := "created_at"
	switch filter.SortBy {
	case "number", "title", "priority", "status", "updated_at":
		sortBy = filter.SortBy
	}
	order := "DESC"
	if strings.EqualFold(filter.SortOrder, "asc") {
		order = "ASC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 200 {
		pageSize = 20
	}

	query := fmt.Sprintf("SELECT %s FROM certificates%s ORDER BY %s %s LIMIT %d OFFSET %d",
		certificateColumns, where, sortBy, order, pageSize, (page-1)*pageSize)

	var certs []models.Certificate
	if err := r.db.SelectContext(ctx, &certs, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list certificates: %w", err)
	}
	return certs, total, nil
}

// Update writes every mutable column of the certificate. The caller supplies
// the fully merged record; read-modify-write stays sequential per record.
func (r *CertificateRepository) Update(ctx context.Context, cert *models.Certificate) error {
	cert.UpdatedAt = time.Now().UTC()
	if cert.Tags == nil {
		cert.Tags = pq.StringArray{}
	}
	const query = `UPDATE certificates SET
		title = :title,
		cost = :cost,
		additional_cost = :additional_cost,
		order_number = :order_number,
		payment_date = :payment_date,
		payment_type_id = :payment_type_id,
		priority = :priority,
		notes = :notes,
		tags = :tags,
		status = :status,
		updated_at = :updated_at
	WHERE id = :id`
	result, err := r.db.NamedExecContext(ctx, query, cert)
	if err != nil {
		return fmt.Errorf("update certificate: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check certificate update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
