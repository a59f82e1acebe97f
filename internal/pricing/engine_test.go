package pricing

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestComputeQuotePricingWithVSPTierK(t *testing.T) {
	engine := NewEngine(0.0875)

	result, err := engine.ComputeQuotePricing([]LineItem{
		{
			Category:    CategoryEyeglasses,
			Description: "Designer frame",
			BasePrice:   200,
			Quantity:    1,
			Tiers:       ItemTiers{VSP: "K"},
		},
	}, CarrierVSP)
	require.NoError(t, err)

	require.InDelta(t, 200.0, result.Subtotal, 0.001)
	require.InDelta(t, 80.0, result.InsuranceApplied, 0.001)
	require.InDelta(t, 10.50, result.Tax, 0.001)
	require.InDelta(t, 130.50, result.Total, 0.001)
	require.InDelta(t, 50.50, result.PatientResponsibility, 0.001)
}

func TestComputeQuotePricingCashPatient(t *testing.T) {
	engine := NewEngine(0.0875)

	result, err := engine.ComputeQuotePricing([]LineItem{
		{Category: CategoryExam, Description: "Comprehensive exam", BasePrice: 120, Quantity: 1},
		{Category: CategoryEyeglasses, Description: "Frame", BasePrice: 180, Quantity: 1, Tiers: ItemTiers{VSP: "K"}},
	}, CarrierNone)
	require.NoError(t, err)

	// No carrier means tier codes are ignored entirely.
	require.InDelta(t, 300.0, result.Subtotal, 0.001)
	require.InDelta(t, 0.0, result.InsuranceApplied, 0.001)
	require.InDelta(t, 326.25, result.Total, 0.001)
	require.InDelta(t, 326.25, result.PatientResponsibility, 0.001)
}

func TestComputeQuotePricingDiscountFloor(t *testing.T) {
	engine := NewEngine(0)

	// Every carrier tier must respect the floor ratio.
	for _, carrier := range []Carrier{CarrierVSP, CarrierEyeMed, CarrierSpectera} {
		for _, code := range TierCodes(carrier) {
			tiers := ItemTiers{}
			switch carrier {
			case CarrierVSP:
				tiers.VSP = code
			case CarrierEyeMed:
				tiers.EyeMed = code
			case CarrierSpectera:
				tiers.Spectera = code
			}
			result, err := engine.ComputeQuotePricing([]LineItem{
				{Category: CategoryEyeglasses, Description: "item", BasePrice: 100, Quantity: 1, Tiers: tiers},
			}, carrier)
			require.NoError(t, err)
			for _, line := range result.Lines {
				require.GreaterOrEqual(t, line.NetAmount, line.BasePrice*DiscountFloorRatio,
					"carrier %s code %s must never discount below the floor", carrier, code)
			}
		}
	}
}

func TestComputeQuotePricingMultiQuantity(t *testing.T) {
	engine := NewEngine(0.0875)

	result, err := engine.ComputeQuotePricing([]LineItem{
		{
			Category:    CategoryContacts,
			Description: "Monthly lenses",
			BasePrice:   45,
			Quantity:    4,
			Tiers:       ItemTiers{Spectera: "III"},
		},
	}, CarrierSpectera)
	require.NoError(t, err)

	// Spectera III discounts 20%: 45*0.20 = 9 per box, 36 across 4 boxes.
	require.InDelta(t, 180.0, result.Subtotal, 0.001)
	require.InDelta(t, 36.0, result.InsuranceApplied, 0.001)
	require.InDelta(t, 156.60, result.Total, 0.01)
}

func TestComputeQuotePricingCategorySubtotals(t *testing.T) {
	engine := NewEngine(0)

	result, err := engine.ComputeQuotePricing([]LineItem{
		{Category: CategoryExam, Description: "Exam", BasePrice: 100, Quantity: 1},
		{Category: CategoryEyeglasses, Description: "Frame", BasePrice: 150, Quantity: 1},
		{Category: CategoryContacts, Description: "Lenses", BasePrice: 50, Quantity: 2},
	}, CarrierNone)
	require.NoError(t, err)

	require.InDelta(t, 100.0, result.CategorySubtotals[CategoryExam], 0.001)
	require.InDelta(t, 150.0, result.CategorySubtotals[CategoryEyeglasses], 0.001)
	require.InDelta(t, 100.0, result.CategorySubtotals[CategoryContacts], 0.001)
}

func TestComputeQuotePricingRejectsInvalidLines(t *testing.T) {
	engine := NewEngine(0.0875)

	_, err := engine.ComputeQuotePricing([]LineItem{
		{Category: CategoryExam, Description: "Exam", BasePrice: 100, Quantity: 0},
	}, CarrierNone)
	require.ErrorIs(t, err, ErrInvalidItem)

	_, err = engine.ComputeQuotePricing([]LineItem{
		{Category: CategoryExam, Description: "Exam", BasePrice: -1, Quantity: 1},
	}, CarrierNone)
	require.ErrorIs(t, err, ErrInvalidItem)

	// Validation happens before any pricing: a bad second line fails the
	// whole basket.
	_, err = engine.ComputeQuotePricing([]LineItem{
		{Category: CategoryExam, Description: "Exam", BasePrice: 100, Quantity: 1},
		{Category: CategoryContacts, Description: "Lenses", BasePrice: 45, Quantity: -2},
	}, CarrierNone)
	require.ErrorIs(t, err, ErrInvalidItem)
}

func TestNewEngineDefaultsTaxRate(t *testing.T) {
	engine := NewEngine(0)
	require.InDelta(t, DefaultTaxRate, engine.TaxRate(), 0.00001)

	engine = NewEngine(-1)
	require.InDelta(t, DefaultTaxRate, engine.TaxRate(), 0.00001)

	engine = NewEngine(0.06)
	require.InDelta(t, 0.06, engine.TaxRate(), 0.00001)
}
