package customers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/opticore-pos/opticore/internal/pricing"
)

// ErrInvalidCarrier flags an unrecognised insurance carrier.
var ErrInvalidCarrier = errors.New("customers: unknown insurance carrier")

// Service orchestrates customer operations.
type Service struct {
	repo Repository
}

// NewService constructs a Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Create validates and inserts a customer, generating a sequential code.
func (s *Service) Create(ctx context.Context, req CreateCustomerRequest, createdBy int64) (*Customer, error) {
	carrier, err := parseCarrier(req.InsuranceCarrier)
	if err != nil {
		return nil, err
	}

	code, err := s.repo.GenerateCode(ctx)
	if err != nil {
		return nil, fmt.Errorf("generate customer code: %w", err)
	}

	customer := Customer{
		Code:             code,
		FirstName:        strings.TrimSpace(req.FirstName),
		LastName:         strings.TrimSpace(req.LastName),
		Email:            req.Email,
		Phone:            req.Phone,
		DateOfBirth:      req.DateOfBirth,
		InsuranceCarrier: carrier,
		InsuranceMember:  req.InsuranceMember,
		AddressLine1:     req.AddressLine1,
		City:             req.City,
		State:            req.State,
		PostalCode:       req.PostalCode,
		LocationID:       req.LocationID,
		IsActive:         true,
		Notes:            req.Notes,
		CreatedBy:        createdBy,
	}

	id, err := s.repo.Create(ctx, customer)
	if err != nil {
		return nil, fmt.Errorf("create customer: %w", err)
	}
	return s.repo.Get(ctx, id)
}

// Update applies partial changes.
func (s *Service) Update(ctx context.Context, id int64, req UpdateCustomerRequest) (*Customer, error) {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if req.FirstName != nil {
		updates["first_name"] = strings.TrimSpace(*req.FirstName)
	}
	if req.LastName != nil {
		updates["last_name"] = strings.TrimSpace(*req.LastName)
	}
	if req.Email != nil {
		updates["email"] = *req.Email
	}
	if req.Phone != nil {
		updates["phone"] = *req.Phone
	}
	if req.DateOfBirth != nil {
		updates["date_of_birth"] = *req.DateOfBirth
	}
	if req.InsuranceCarrier != nil {
		carrier, err := parseCarrier(*req.InsuranceCarrier)
		if err != nil {
			return nil, err
		}
		updates["insurance_carrier"] = string(carrier)
	}
	if req.InsuranceMember != nil {
		updates["insurance_member_id"] = *req.InsuranceMember
	}
	if req.AddressLine1 != nil {
		updates["address_line1"] = *req.AddressLine1
	}
	if req.City != nil {
		updates["city"] = *req.City
	}
	if req.State != nil {
		updates["state"] = *req.State
	}
	if req.PostalCode != nil {
		updates["postal_code"] = *req.PostalCode
	}
	if req.Notes != nil {
		updates["notes"] = *req.Notes
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}

	if len(updates) > 0 {
		if err := s.repo.Update(ctx, id, updates); err != nil {
			return nil, fmt.Errorf("update customer: %w", err)
		}
	}
	return s.repo.Get(ctx, id)
}

// Get fetches a customer by ID.
func (s *Service) Get(ctx context.Context, id int64) (*Customer, error) {
	return s.repo.Get(ctx, id)
}

// List returns customers matching the filter.
func (s *Service) List(ctx context.Context, req ListCustomersRequest) ([]Customer, int, error) {
	if req.Limit <= 0 {
		req.Limit = 50
	}
	return s.repo.List(ctx, req)
}

func parseCarrier(raw string) (pricing.Carrier, error) {
	c, ok := pricing.ParseCarrier(raw)
	if !ok {
		return pricing.CarrierNone, fmt.Errorf("%w: %q", ErrInvalidCarrier, raw)
	}
	return c, nil
}
