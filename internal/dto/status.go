package dto

// CreateStatusRequest registers a new lifecycle status.
type CreateStatusRequest struct {
	Name         string `json:"name" validate:"required,lowercase"`
	DisplayName  string `json:"display_name" validate:"required"`
	Color        string `json:"color"`
	DisplayOrder int    `json:"display_order"`
	Active       *bool  `json:"active,omitempty"`
	CanEdit      *bool  `json:"can_edit,omitempty"`
	IsFinal      bool   `json:"is_final"`
}

// UpdateStatusRequest mutates a status definition. The name itself is
// immutable once referenced.
type UpdateStatusRequest struct {
	DisplayName  *string `json:"display_name,omitempty"`
	Color        *string `json:"color,omitempty"`
	DisplayOrder *int    `json:"display_order,omitempty"`
	Active       *bool   `json:"active,omitempty"`
	CanEdit      *bool   `json:"can_edit,omitempty"`
	IsFinal      *bool   `json:"is_final,omitempty"`
}

// CreateValidationRequest attaches a requirement to a status.
type CreateValidationRequest struct {
	Name                  string  `json:"name" validate:"required"`
	RequiredField         *string `json:"required_field,omitempty"`
	ConfirmationStatement *string `json:"confirmation_statement,omitempty"`
}
