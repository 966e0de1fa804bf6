package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/certilog/certilog-api/internal/models"
)

// AuditRepository appends and reads certificate audit events. The table is
// append-only; there is deliberately no update or delete here.
type AuditRepository struct {
	db *sqlx.DB
}

// NewAuditRepository constructs the repository.
func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Append inserts one immutable audit event.
func (r *AuditRepository) Append(ctx context.Context, event *models.AuditEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO certificate_events
	(id, certificate_id, actor_id, actor_role, event_type, changes, comment, created_at)
	VALUES (:id, :certificate_id, :actor_id, :actor_role, :event_type, :changes, :comment, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, event); err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

// ListByCertificate returns a certificate's event timeline, newest first.
func (r *AuditRepository) ListByCertificate(ctx context.Context, certificateID string, limit, offset int) ([]models.AuditEvent, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	const query = `SELECT id, certificate_id, actor_id, actor_role, event_type, changes, comment, created_at
	FROM certificate_events WHERE certificate_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	events := make([]models.AuditEvent, 0, limit)
	if err := r.db.SelectContext(ctx, &events, query, certificateID, limit, offset); err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	return events, nil
}

// ListAll returns events across certificates for export, oldest first.
func (r *AuditRepository) ListAll(ctx context.Context, limit int) ([]models.AuditEvent, error) {
	if limit <= 0 {
		limit = 10000
	}
	const query = `SELECT id, certificate_id, actor_id, actor_role, event_type, changes, comment, created_at
	FROM certificate_events ORDER BY created_at ASC LIMIT $1`
	var events []models.AuditEvent
	if err := r.db.SelectContext(ctx, &events, query, limit); err != nil {
		return nil, fmt.Errorf("list all audit events: %w", err)
	}
	return events, nil
}
