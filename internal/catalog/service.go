package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/opticore-pos/opticore/internal/pricing"
	"github.com/opticore-pos/opticore/internal/shared"
)

var (
	ErrInvalidKind = errors.New("catalog: invalid item kind")
	ErrInvalidTier = errors.New("catalog: invalid tier code")
)

// Service orchestrates catalog operations.
type Service struct {
	repo  Repository
	audit *shared.AuditLogger
}

// NewService constructs a Service.
func NewService(repo Repository, audit *shared.AuditLogger) *Service {
	return &Service{repo: repo, audit: audit}
}

// Create validates and inserts a catalog item.
func (s *Service) Create(ctx context.Context, req CreateItemRequest, createdBy int64) (*Item, error) {
	kind := ItemKind(strings.ToUpper(strings.TrimSpace(req.Kind)))
	if !ValidKind(kind) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidKind, req.Kind)
	}

	tiers := pricing.ItemTiers{VSP: req.TierVSP, EyeMed: req.TierEyeMed, Spectera: req.TierSpect}
	if err := validateTiers(tiers); err != nil {
		return nil, err
	}

	item := Item{
		Code:       strings.TrimSpace(req.Code),
		Name:       strings.TrimSpace(req.Name),
		Kind:       kind,
		Brand:      req.Brand,
		BasePrice:  req.BasePrice,
		Cost:       req.Cost,
		Tiers:      tiers,
		LocationID: req.LocationID,
		IsActive:   true,
		CreatedBy:  createdBy,
	}

	id, err := s.repo.Create(ctx, item)
	if err != nil {
		return nil, fmt.Errorf("create catalog item: %w", err)
	}

	created, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  createdBy,
			Action:   "catalog.item.create",
			Entity:   "catalog_item",
			EntityID: created.Code,
			Meta:     map[string]any{"kind": string(created.Kind), "base_price": created.BasePrice},
		})
	}
	return created, nil
}

// Update applies partial changes to an item.
func (s *Service) Update(ctx context.Context, id int64, req UpdateItemRequest, updatedBy int64) (*Item, error) {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	tiers := existing.Tiers
	if req.TierVSP != nil {
		tiers.VSP = *req.TierVSP
	}
	if req.TierEyeMed != nil {
		tiers.EyeMed = *req.TierEyeMed
	}
	if req.TierSpect != nil {
		tiers.Spectera = *req.TierSpect
	}
	if err := validateTiers(tiers); err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if req.Name != nil {
		updates["name"] = strings.TrimSpace(*req.Name)
	}
	if req.Brand != nil {
		updates["brand"] = *req.Brand
	}
	if req.BasePrice != nil {
		updates["base_price"] = *req.BasePrice
	}
	if req.Cost != nil {
		updates["cost"] = *req.Cost
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	if req.TierVSP != nil {
		updates["tier_vsp"] = tiers.VSP
	}
	if req.TierEyeMed != nil {
		updates["tier_eyemed"] = tiers.EyeMed
	}
	if req.TierSpect != nil {
		updates["tier_spectera"] = tiers.Spectera
	}

	if len(updates) > 0 {
		if err := s.repo.Update(ctx, id, updates); err != nil {
			return nil, fmt.Errorf("update catalog item: %w", err)
		}
	}
	return s.repo.Get(ctx, id)
}

// Get fetches an item by ID.
func (s *Service) Get(ctx context.Context, id int64) (*Item, error) {
	return s.repo.Get(ctx, id)
}

// List returns items matching the filter.
func (s *Service) List(ctx context.Context, req ListItemsRequest) ([]Item, int, error) {
	if req.Limit <= 0 {
		req.Limit = 50
	}
	return s.repo.List(ctx, req)
}

// validateTiers checks every assigned tier code against the carrier's
// vocabulary. Empty codes are allowed.
func validateTiers(t pricing.ItemTiers) error {
	check := func(c pricing.Carrier, code string) error {
		if code == "" {
			return nil
		}
		if pricing.DiscountPercent(c, code) == 0 {
			return fmt.Errorf("%w: %q is not a valid %s tier", ErrInvalidTier, code, c)
		}
		return nil
	}
	if err := check(pricing.CarrierVSP, t.VSP); err != nil {
		return err
	}
	if err := check(pricing.CarrierEyeMed, t.EyeMed); err != nil {
		return err
	}
	return check(pricing.CarrierSpectera, t.Spectera)
}
