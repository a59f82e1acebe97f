package pricing

import "strings"

// Carrier identifies an insurance carrier with tiered product discounts.
type Carrier string

const (
	CarrierNone     Carrier = ""
	CarrierVSP      Carrier = "VSP"
	CarrierEyeMed   Carrier = "EYEMED"
	CarrierSpectera Carrier = "SPECTERA"
)

// tierDiscounts maps carrier tier codes to discount percentages. Codes are
// carrier specific; an unknown code always yields zero.
var tierDiscounts = map[Carrier]map[string]float64{
	CarrierVSP: {
		"K": 40,
		"J": 30,
		"F": 20,
		"O": 15,
		"N": 10,
	},
	CarrierEyeMed: {
		"tier_1": 40,
		"tier_2": 30,
		"tier_3": 20,
		"tier_4": 15,
		"tier_5": 10,
	},
	CarrierSpectera: {
		"I":   40,
		"II":  30,
		"III": 20,
		"IV":  15,
		"V":   10,
	},
}

// ParseCarrier normalizes a raw carrier string. Empty input means cash/no
// insurance; anything else must be a known carrier.
func ParseCarrier(raw string) (Carrier, bool) {
	c := Carrier(strings.ToUpper(strings.TrimSpace(raw)))
	if c == CarrierNone {
		return CarrierNone, true
	}
	_, ok := tierDiscounts[c]
	return c, ok
}

// KnownCarrier reports whether the carrier participates in tiered pricing.
func KnownCarrier(c Carrier) bool {
	_, ok := tierDiscounts[c]
	return ok
}

// TierCodes returns the valid tier vocabulary for a carrier, used by the
// catalog to validate product tier assignments.
func TierCodes(c Carrier) []string {
	table, ok := tierDiscounts[c]
	if !ok {
		return nil
	}
	codes := make([]string, 0, len(table))
	for code := range table {
		codes = append(codes, code)
	}
	return codes
}

// DiscountPercent resolves the discount percentage for a carrier tier code.
// Unknown carriers or codes yield zero.
func DiscountPercent(c Carrier, code string) float64 {
	table, ok := tierDiscounts[c]
	if !ok {
		return 0
	}
	return table[code]
}
