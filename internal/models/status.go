package models

import "time"

// StatusDefinition is a configurable lifecycle state a certificate occupies.
// Name is the stable token referenced by certificates; it never changes once
// a certificate points at it. CanEdit gates every mutation of a certificate
// currently in this status, IsFinal additionally forbids outgoing transitions.
type StatusDefinition struct {
	Name         string    `db:"name" json:"name"`
	DisplayName  string    `db:"display_name" json:"display_name"`
	Color        string    `db:"color" json:"color"`
	DisplayOrder int       `db:"display_order" json:"display_order"`
	Active       bool      `db:"active" json:"active"`
	CanEdit      bool      `db:"can_edit" json:"can_edit"`
	IsFinal      bool      `db:"is_final" json:"is_final"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Locked reports whether a certificate in this status may be mutated at all.
func (s *StatusDefinition) Locked() bool {
	return s.IsFinal || !s.CanEdit
}

// RequiredField enumerates the closed set of fields a validation requirement
// may demand before a transition. Extending this set requires touching every
// place it is matched.
type RequiredField string

const (
	FieldCost           RequiredField = "cost"
	FieldAdditionalCost RequiredField = "additional-cost"
	FieldOrderNumber    RequiredField = "order-number"
	FieldPaymentDate    RequiredField = "payment-date"
	FieldPaymentType    RequiredField = "payment-type"
)

// RequiredFields returns the full enumeration, exposed to UI clients.
func RequiredFields() []RequiredField {
	return []RequiredField{
		FieldCost,
		FieldAdditionalCost,
		FieldOrderNumber,
		FieldPaymentDate,
		FieldPaymentType,
	}
}

// Valid reports whether the value belongs to the closed enumeration.
func (f RequiredField) Valid() bool {
	switch f {
	case FieldCost, FieldAdditionalCost, FieldOrderNumber, FieldPaymentDate, FieldPaymentType:
		return true
	}
	return false
}

// ValidationRequirement ties a status to a mandatory field and/or a
// confirmation statement the actor must retype verbatim. Several
// requirements may attach to one status; all must be satisfied.
type ValidationRequirement struct {
	ID                    string         `db:"id" json:"id"`
	StatusName            string         `db:"status_name" json:"status_name"`
	Name                  string         `db:"name" json:"name"`
	RequiredField         *RequiredField `db:"required_field" json:"required_field,omitempty"`
	ConfirmationStatement *string        `db:"confirmation_statement" json:"confirmation_statement,omitempty"`
	CreatedAt             time.Time      `db:"created_at" json:"created_at"`
}
