package customers

import (
	"time"

	"github.com/opticore-pos/opticore/internal/pricing"
)

// Customer represents a patient/customer record.
type Customer struct {
	ID               int64           `json:"id" db:"id"`
	Code             string          `json:"code" db:"code"`
	FirstName        string          `json:"first_name" db:"first_name"`
	LastName         string          `json:"last_name" db:"last_name"`
	Email            *string         `json:"email,omitempty" db:"email"`
	Phone            *string         `json:"phone,omitempty" db:"phone"`
	DateOfBirth      *time.Time      `json:"date_of_birth,omitempty" db:"date_of_birth"`
	InsuranceCarrier pricing.Carrier `json:"insurance_carrier,omitempty" db:"insurance_carrier"`
	InsuranceMember  *string         `json:"insurance_member_id,omitempty" db:"insurance_member_id"`
	AddressLine1     *string         `json:"address_line1,omitempty" db:"address_line1"`
	City             *string         `json:"city,omitempty" db:"city"`
	State            *string         `json:"state,omitempty" db:"state"`
	PostalCode       *string         `json:"postal_code,omitempty" db:"postal_code"`
	LocationID       *int64          `json:"location_id,omitempty" db:"location_id"`
	IsActive         bool            `json:"is_active" db:"is_active"`
	Notes            *string         `json:"notes,omitempty" db:"notes"`
	CreatedBy        int64           `json:"created_by" db:"created_by"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at" db:"updated_at"`
}

// FullName renders the display name.
func (c Customer) FullName() string {
	return c.FirstName + " " + c.LastName
}
