package models

import (
	"encoding/json"
	"time"
)

// AuditEventType constants classify certificate audit events.
const (
	AuditEventCreated       = "created"
	AuditEventUpdated       = "updated"
	AuditEventStatusChanged = "status_changed"
	AuditEventTagsUpdated   = "tags_updated"
)

// AuditEvent is an append-only record of a certificate mutation. Once
// written it is never updated or deleted; the event stream is the only
// source of historical truth for a certificate's timeline.
type AuditEvent struct {
	ID            string `db:"id" json:"id"`
	CertificateID string `db:"certificate_id" json:"certificate_id"`
	ActorID       string `db:"actor_id" json:"actor_id"`
	ActorRole     string `db:"actor_role" json:"actor_role"`
	EventType     string `db:"event_type" json:"event_type"`
	// Changes holds the serialized field diff. json.RawMessage keeps it a
	// real JSON object on the API instead of a base64 blob.
	Changes   json.RawMessage `db:"changes" json:"changes,omitempty"`
	Comment   *string         `db:"comment" json:"comment,omitempty"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

// Actor identifies who performed a mutation. The core treats it as opaque
// audit metadata; authorization happens upstream.
type Actor struct {
	ID   string
	Role string
}
