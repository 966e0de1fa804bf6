package dto

import (
	"time"

	"github.com/certilog/certilog-api/internal/models"
)

// CreateCertificateRequest registers a new certificate. The initial status is
// whatever the caller supplies; there is no implicit default.
type CreateCertificateRequest struct {
	Number         string     `json:"number" validate:"required"`
	Title          string     `json:"title" validate:"required"`
	Status         string     `json:"status" validate:"required"`
	Cost           *int64     `json:"cost,omitempty"`
	AdditionalCost *int64     `json:"additional_cost,omitempty"`
	OrderNumber    *string    `json:"order_number,omitempty"`
	PaymentDate    *time.Time `json:"payment_date,omitempty"`
	PaymentTypeID  *string    `json:"payment_type_id,omitempty"`
	Priority       int        `json:"priority"`
	Notes          *string    `json:"notes,omitempty"`
	Tags           []string   `json:"tags,omitempty"`
}

// CertificatePatch is the wire form of a partial certificate overlay. Absent
// fields stay unchanged.
type CertificatePatch struct {
	Title          *string    `json:"title,omitempty"`
	Cost           *int64     `json:"cost,omitempty"`
	AdditionalCost *int64     `json:"additional_cost,omitempty"`
	OrderNumber    *string    `json:"order_number,omitempty"`
	PaymentDate    *time.Time `json:"payment_date,omitempty"`
	PaymentTypeID  *string    `json:"payment_type_id,omitempty"`
	Priority       *int       `json:"priority,omitempty"`
	Notes          *string    `json:"notes,omitempty"`
	Tags           *[]string  `json:"tags,omitempty"`
}

// Model converts the wire patch into the domain overlay.
func (p CertificatePatch) Model() models.CertificatePatch {
	return models.CertificatePatch{
		Title:          p.Title,
		Cost:           p.Cost,
		AdditionalCost: p.AdditionalCost,
		OrderNumber:    p.OrderNumber,
		PaymentDate:    p.PaymentDate,
		PaymentTypeID:  p.PaymentTypeID,
		Priority:       p.Priority,
		Notes:          p.Notes,
		Tags:           p.Tags,
	}
}

// UpdateCertificateRequest mutates a single certificate, optionally moving it
// to a new status. Confirmation fields matter only when the target status
// carries validation requirements.
type UpdateCertificateRequest struct {
	CertificatePatch
	TargetStatus     *string `json:"target_status,omitempty"`
	Confirmed        bool    `json:"confirmed"`
	ConfirmationText string  `json:"confirmation_text"`
}

// MutationResponse reports a single-record mutation result. Certificate is
// set only when the outcome was applied.
type MutationResponse struct {
	Outcome     models.TransitionOutcome `json:"outcome"`
	Certificate *models.Certificate      `json:"certificate,omitempty"`
}
