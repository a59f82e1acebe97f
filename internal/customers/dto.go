package customers

import "time"

// CreateCustomerRequest creates a customer record.
type CreateCustomerRequest struct {
	FirstName        string     `json:"first_name" validate:"required,max=100"`
	LastName         string     `json:"last_name" validate:"required,max=100"`
	Email            *string    `json:"email,omitempty" validate:"omitempty,email"`
	Phone            *string    `json:"phone,omitempty" validate:"omitempty,max=30"`
	DateOfBirth      *time.Time `json:"date_of_birth,omitempty"`
	InsuranceCarrier string     `json:"insurance_carrier,omitempty"`
	InsuranceMember  *string    `json:"insurance_member_id,omitempty"`
	AddressLine1     *string    `json:"address_line1,omitempty"`
	City             *string    `json:"city,omitempty"`
	State            *string    `json:"state,omitempty"`
	PostalCode       *string    `json:"postal_code,omitempty"`
	LocationID       *int64     `json:"location_id,omitempty"`
	Notes            *string    `json:"notes,omitempty"`
}

// UpdateCustomerRequest mutates a customer record; nil fields are untouched.
type UpdateCustomerRequest struct {
	FirstName        *string    `json:"first_name,omitempty" validate:"omitempty,max=100"`
	LastName         *string    `json:"last_name,omitempty" validate:"omitempty,max=100"`
	Email            *string    `json:"email,omitempty" validate:"omitempty,email"`
	Phone            *string    `json:"phone,omitempty" validate:"omitempty,max=30"`
	DateOfBirth      *time.Time `json:"date_of_birth,omitempty"`
	InsuranceCarrier *string    `json:"insurance_carrier,omitempty"`
	InsuranceMember  *string    `json:"insurance_member_id,omitempty"`
	AddressLine1     *string    `json:"address_line1,omitempty"`
	City             *string    `json:"city,omitempty"`
	State            *string    `json:"state,omitempty"`
	PostalCode       *string    `json:"postal_code,omitempty"`
	Notes            *string    `json:"notes,omitempty"`
	IsActive         *bool      `json:"is_active,omitempty"`
}

// ListCustomersRequest filters customer listings.
type ListCustomersRequest struct {
	LocationID *int64 `json:"location_id,omitempty"`
	IsActive   *bool  `json:"is_active,omitempty"`
	Search     string `json:"search,omitempty"`
	Limit      int    `json:"limit" validate:"gte=0,lte=1000"`
	Offset     int    `json:"offset" validate:"gte=0"`
}
