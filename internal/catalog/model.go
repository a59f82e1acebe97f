package catalog

import (
	"time"

	"github.com/opticore-pos/opticore/internal/pricing"
)

// ItemKind partitions catalog entries by what they sell.
type ItemKind string

const (
	KindFrame       ItemKind = "FRAME"
	KindLens        ItemKind = "LENS"
	KindEnhancement ItemKind = "ENHANCEMENT"
	KindContactLens ItemKind = "CONTACT_LENS"
	KindExamService ItemKind = "EXAM_SERVICE"
)

// Item represents a sellable product or service with optional per-carrier
// insurance tier codes.
type Item struct {
	ID         int64             `json:"id" db:"id"`
	Code       string            `json:"code" db:"code"`
	Name       string            `json:"name" db:"name"`
	Kind       ItemKind          `json:"kind" db:"kind"`
	Brand      *string           `json:"brand,omitempty" db:"brand"`
	BasePrice  float64           `json:"base_price" db:"base_price"`
	Cost       float64           `json:"cost" db:"cost"`
	Tiers      pricing.ItemTiers `json:"tiers" db:"-"`
	LocationID *int64            `json:"location_id,omitempty" db:"location_id"`
	IsActive   bool              `json:"is_active" db:"is_active"`
	CreatedBy  int64             `json:"created_by" db:"created_by"`
	CreatedAt  time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at" db:"updated_at"`
}

// ValidKind reports whether the kind is part of the catalog vocabulary.
func ValidKind(k ItemKind) bool {
	switch k {
	case KindFrame, KindLens, KindEnhancement, KindContactLens, KindExamService:
		return true
	}
	return false
}
