package models

import (
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
)

// Certificate represents a lifecycle record managed by the system. Monetary
// fields hold integer minor currency units; a stored 0 is a real value,
// absence is expressed by nil.
type Certificate struct {
	ID             string         `db:"id" json:"id"`
	Number         string         `db:"number" json:"number"`
	Title          string         `db:"title" json:"title"`
	Cost           *int64         `db:"cost" json:"cost,omitempty"`
	AdditionalCost *int64         `db:"additional_cost" json:"additional_cost,omitempty"`
	OrderNumber    *string        `db:"order_number" json:"order_number,omitempty"`
	PaymentDate    *time.Time     `db:"payment_date" json:"payment_date,omitempty"`
	PaymentTypeID  *string        `db:"payment_type_id" json:"payment_type_id,omitempty"`
	Priority       int            `db:"priority" json:"priority"`
	Notes          *string        `db:"notes" json:"notes,omitempty"`
	Tags           pq.StringArray `db:"tags" json:"tags"`
	Status         string         `db:"status" json:"status"`
	CreatedBy      string         `db:"created_by" json:"created_by"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updated_at"`
}

// Clone returns a deep copy, used to snapshot a record before mutation.
func (c *Certificate) Clone() *Certificate {
	if c == nil {
		return nil
	}
	clone := *c
	clone.Cost = cloneInt64(c.Cost)
	clone.AdditionalCost = cloneInt64(c.AdditionalCost)
	clone.OrderNumber = cloneString(c.OrderNumber)
	clone.PaymentTypeID = cloneString(c.PaymentTypeID)
	clone.Notes = cloneString(c.Notes)
	if c.PaymentDate != nil {
		d := *c.PaymentDate
		clone.PaymentDate = &d
	}
	clone.Tags = append(pq.StringArray(nil), c.Tags...)
	return &clone
}

// CertificatePatch carries a partial overlay of mutable certificate fields.
// Nil means "leave unchanged"; a non-nil pointer to a zero value is a real
// write.
type CertificatePatch struct {
	Title          *string
	Cost           *int64
	AdditionalCost *int64
	OrderNumber    *string
	PaymentDate    *time.Time
	PaymentTypeID  *string
	Priority       *int
	Notes          *string
	Tags           *[]string
}

// Empty reports whether the patch changes nothing.
func (p CertificatePatch) Empty() bool {
	return p.Title == nil && p.Cost == nil && p.AdditionalCost == nil &&
		p.OrderNumber == nil && p.PaymentDate == nil && p.PaymentTypeID == nil &&
		p.Priority == nil && p.Notes == nil && p.Tags == nil
}

// ApplyTo overlays the non-nil patch fields onto the certificate in place.
func (p CertificatePatch) ApplyTo(c *Certificate) {
	if p.Title != nil {
		c.Title = *p.Title
	}
	if p.Cost != nil {
		c.Cost = cloneInt64(p.Cost)
	}
	if p.AdditionalCost != nil {
		c.AdditionalCost = cloneInt64(p.AdditionalCost)
	}
	if p.OrderNumber != nil {
		c.OrderNumber = cloneString(p.OrderNumber)
	}
	if p.PaymentDate != nil {
		d := *p.PaymentDate
		c.PaymentDate = &d
	}
	if p.PaymentTypeID != nil {
		c.PaymentTypeID = cloneString(p.PaymentTypeID)
	}
	if p.Priority != nil {
		c.Priority = *p.Priority
	}
	if p.Notes != nil {
		c.Notes = cloneString(p.Notes)
	}
	if p.Tags != nil {
		c.Tags = append(pq.StringArray(nil), *p.Tags...)
	}
}

// FieldValue resolves the merged view of a required field: patch value when
// the patch touches it, otherwise the record's stored value. The bool result
// reports presence ("missing" means absent or blank, not zero).
func (p CertificatePatch) FieldValue(c *Certificate, field RequiredField) (string, bool) {
	switch field {
	case FieldCost:
		if p.Cost != nil {
			return formatInt64(*p.Cost), true
		}
		if c.Cost != nil {
			return formatInt64(*c.Cost), true
		}
	case FieldAdditionalCost:
		if p.AdditionalCost != nil {
			return formatInt64(*p.AdditionalCost), true
		}
		if c.AdditionalCost != nil {
			return formatInt64(*c.AdditionalCost), true
		}
	case FieldOrderNumber:
		if p.OrderNumber != nil {
			return presentString(*p.OrderNumber)
		}
		if c.OrderNumber != nil {
			return presentString(*c.OrderNumber)
		}
	case FieldPaymentDate:
		if p.PaymentDate != nil {
			return p.PaymentDate.Format(time.RFC3339), true
		}
		if c.PaymentDate != nil {
			return c.PaymentDate.Format(time.RFC3339), true
		}
	case FieldPaymentType:
		if p.PaymentTypeID != nil {
			return presentString(*p.PaymentTypeID)
		}
		if c.PaymentTypeID != nil {
			return presentString(*c.PaymentTypeID)
		}
	}
	return "", false
}

// CertificateFilter captures allowed listing parameters.
type CertificateFilter struct {
	Search    string
	Status    string
	Tag       string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// TransitionRequest is the ephemeral input to transition evaluation. It is
// never persisted.
type TransitionRequest struct {
	CertificateID    string
	TargetStatus     *string
	Patch            CertificatePatch
	Confirmed        bool
	ConfirmationText string
}

// StatusChangeRequested reports whether the request asks to move the record
// out of its current status.
func (r TransitionRequest) StatusChangeRequested(current string) bool {
	return r.TargetStatus != nil && *r.TargetStatus != "" && *r.TargetStatus != current
}

// TransitionDecision classifies an evaluation result.
type TransitionDecision string

const (
	DecisionApply    TransitionDecision = "apply"
	DecisionBlocked  TransitionDecision = "blocked"
	DecisionRejected TransitionDecision = "rejected"
)

// TransitionOutcome is the ephemeral evaluation result. Rejections are
// values, never errors: missing fields and confirmation mismatches are
// recoverable by the caller, a Conflict is a rule-catalog defect an
// administrator has to fix.
type TransitionOutcome struct {
	Decision              TransitionDecision `json:"decision"`
	Reason                string             `json:"reason,omitempty"`
	MissingFields         []RequiredField    `json:"missing_fields,omitempty"`
	RequiresConfirmation  bool               `json:"requires_confirmation,omitempty"`
	ConfirmationStatement string             `json:"confirmation_statement,omitempty"`
	Conflict              bool               `json:"conflict,omitempty"`
}

// Applied reports whether the evaluation allows the mutation to proceed.
func (o TransitionOutcome) Applied() bool {
	return o.Decision == DecisionApply
}

func cloneInt64(v *int64) *int64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneString(v *string) *string {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func formatInt64(v int64) string {
	return strconv.FormatInt(v, 10)
}

func presentString(v string) (string, bool) {
	trimmed := strings.TrimSpace(v)
	if trimmed == "" {
		return "", false
	}
	return trimmed, true
}
