// Package pricing computes itemized quote totals under insurance tier rules.
// All functions are pure; the engine holds no state beyond its configuration.
package pricing

import (
	"errors"
	"fmt"
	"math"
)

// Category partitions basket items for reporting.
type Category string

const (
	CategoryExam       Category = "EXAM"
	CategoryEyeglasses Category = "EYEGLASSES"
	CategoryContacts   Category = "CONTACTS"
)

// DiscountFloorRatio is the minimum fraction of an item's base price that
// survives tier discounting. The rail protects against over-discounting and
// must never be relaxed per business policy.
const DiscountFloorRatio = 0.10

// DefaultTaxRate is the observed jurisdiction rate; deployments override it
// through configuration.
const DefaultTaxRate = 0.0875

// ErrInvalidItem flags a malformed basket line.
var ErrInvalidItem = errors.New("pricing: invalid item")

// ItemTiers carries the per-carrier tier codes assigned to a catalog item.
// Empty codes mean the item does not participate for that carrier.
type ItemTiers struct {
	VSP      string `json:"tier_vsp,omitempty"`
	EyeMed   string `json:"tier_eyemed,omitempty"`
	Spectera string `json:"tier_spectera,omitempty"`
}

// Code returns the tier code applicable to the given carrier.
func (t ItemTiers) Code(c Carrier) string {
	switch c {
	case CarrierVSP:
		return t.VSP
	case CarrierEyeMed:
		return t.EyeMed
	case CarrierSpectera:
		return t.Spectera
	default:
		return ""
	}
}

// LineItem is a single priced basket entry.
type LineItem struct {
	Category    Category
	Description string
	BasePrice   float64
	Quantity    int
	Tiers       ItemTiers
}

// LinePricing reports the priced outcome of one basket entry.
type LinePricing struct {
	Category        Category `json:"category"`
	Description     string   `json:"description"`
	BasePrice       float64  `json:"base_price"`
	Quantity        int      `json:"quantity"`
	DiscountPercent float64  `json:"discount_percent"`
	DiscountAmount  float64  `json:"discount_amount"`
	NetAmount       float64  `json:"net_amount"`
}

// Result aggregates quote pricing. InsuranceApplied is the sum of per-item
// tier discounts, reported separately from tax for transparency.
type Result struct {
	Subtotal              float64              `json:"subtotal"`
	InsuranceApplied      float64              `json:"insurance_applied"`
	Tax                   float64              `json:"tax"`
	Total                 float64              `json:"total"`
	PatientResponsibility float64              `json:"patient_responsibility"`
	CategorySubtotals     map[Category]float64 `json:"category_subtotals"`
	Lines                 []LinePricing        `json:"lines"`
}

// Engine prices quote baskets with a configured tax rate.
type Engine struct {
	taxRate float64
}

// NewEngine constructs an Engine. A non-positive rate falls back to the
// default jurisdiction rate.
func NewEngine(taxRate float64) *Engine {
	if taxRate <= 0 {
		taxRate = DefaultTaxRate
	}
	return &Engine{taxRate: taxRate}
}

// TaxRate exposes the configured rate.
func (e *Engine) TaxRate() float64 {
	return e.taxRate
}

// ComputeQuotePricing prices the basket under the carrier's tier table.
// It validates every line before any arithmetic: a non-positive quantity or
// negative base price rejects the whole basket.
func (e *Engine) ComputeQuotePricing(items []LineItem, carrier Carrier) (*Result, error) {
	for i, item := range items {
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("%w: line %d (%s): quantity must be positive, got %d", ErrInvalidItem, i+1, item.Description, item.Quantity)
		}
		if item.BasePrice < 0 {
			return nil, fmt.Errorf("%w: line %d (%s): base price must not be negative, got %.2f", ErrInvalidItem, i+1, item.Description, item.BasePrice)
		}
	}

	result := &Result{
		CategorySubtotals: make(map[Category]float64),
		Lines:             make([]LinePricing, 0, len(items)),
	}

	for _, item := range items {
		gross := item.BasePrice * float64(item.Quantity)
		percent := DiscountPercent(carrier, item.Tiers.Code(carrier))

		unitDiscount := item.BasePrice * percent / 100
		// Discounted unit price never drops below the floor ratio of base.
		maxUnitDiscount := item.BasePrice * (1 - DiscountFloorRatio)
		if unitDiscount > maxUnitDiscount {
			unitDiscount = maxUnitDiscount
		}
		discount := Round2(unitDiscount * float64(item.Quantity))
		net := Round2(gross - discount)

		result.Subtotal += gross
		result.InsuranceApplied += discount
		result.CategorySubtotals[item.Category] += gross
		result.Lines = append(result.Lines, LinePricing{
			Category:        item.Category,
			Description:     item.Description,
			BasePrice:       item.BasePrice,
			Quantity:        item.Quantity,
			DiscountPercent: percent,
			DiscountAmount:  discount,
			NetAmount:       net,
		})
	}

	result.Subtotal = Round2(result.Subtotal)
	result.InsuranceApplied = Round2(result.InsuranceApplied)
	discounted := Round2(result.Subtotal - result.InsuranceApplied)
	result.Tax = Round2(discounted * e.taxRate)
	result.Total = Round2(discounted + result.Tax)
	result.PatientResponsibility = Round2(result.Total - result.InsuranceApplied)
	return result, nil
}

// Round2 rounds a monetary amount to cents.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
