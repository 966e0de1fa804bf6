package dto

// CreatePaymentTypeRequest registers a payment type.
type CreatePaymentTypeRequest struct {
	Name   string `json:"name" validate:"required"`
	Active *bool  `json:"active,omitempty"`
}

// UpdatePaymentTypeRequest mutates a payment type.
type UpdatePaymentTypeRequest struct {
	Name   *string `json:"name,omitempty"`
	Active *bool   `json:"active,omitempty"`
}

// CreateTagRequest registers a tag.
type CreateTagRequest struct {
	Name  string `json:"name" validate:"required"`
	Color string `json:"color"`
}
