package pricing

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDiscountPercentTierTables(t *testing.T) {
	cases := []struct {
		carrier Carrier
		code    string
		percent float64
	}{
		{CarrierVSP, "K", 40},
		{CarrierVSP, "J", 30},
		{CarrierVSP, "F", 20},
		{CarrierVSP, "O", 15},
		{CarrierVSP, "N", 10},
		{CarrierEyeMed, "tier_1", 40},
		{CarrierEyeMed, "tier_2", 30},
		{CarrierEyeMed, "tier_3", 20},
		{CarrierEyeMed, "tier_4", 15},
		{CarrierEyeMed, "tier_5", 10},
		{CarrierSpectera, "I", 40},
		{CarrierSpectera, "II", 30},
		{CarrierSpectera, "III", 20},
		{CarrierSpectera, "IV", 15},
		{CarrierSpectera, "V", 10},
	}
	for _, tc := range cases {
		require.InDelta(t, tc.percent, DiscountPercent(tc.carrier, tc.code), 0.001,
			"carrier %s code %s", tc.carrier, tc.code)
	}
}

func TestDiscountPercentUnknownCodeIsZero(t *testing.T) {
	require.Zero(t, DiscountPercent(CarrierVSP, "Z"))
	require.Zero(t, DiscountPercent(CarrierVSP, ""))
	require.Zero(t, DiscountPercent(CarrierNone, "K"))
	// Codes belong to one carrier's vocabulary only.
	require.Zero(t, DiscountPercent(CarrierSpectera, "K"))
	require.Zero(t, DiscountPercent(CarrierVSP, "tier_1"))
}

func TestParseCarrier(t *testing.T) {
	c, ok := ParseCarrier("vsp")
	require.True(t, ok)
	require.Equal(t, CarrierVSP, c)

	c, ok = ParseCarrier("  EyeMed ")
	require.True(t, ok)
	require.Equal(t, CarrierEyeMed, c)

	c, ok = ParseCarrier("")
	require.True(t, ok)
	require.Equal(t, CarrierNone, c)

	_, ok = ParseCarrier("ACME_VISION")
	require.False(t, ok)
}

func TestTierCodesVocabulary(t *testing.T) {
	require.ElementsMatch(t, []string{"K", "J", "F", "O", "N"}, TierCodes(CarrierVSP))
	require.ElementsMatch(t, []string{"tier_1", "tier_2", "tier_3", "tier_4", "tier_5"}, TierCodes(CarrierEyeMed))
	require.ElementsMatch(t, []string{"I", "II", "III", "IV", "V"}, TierCodes(CarrierSpectera))
	require.Nil(t, TierCodes(CarrierNone))
}
