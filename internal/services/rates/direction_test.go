package rates

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/ravilg/fxdesk/internal/entity"
)

func lookupOf(rates map[string]float64) RateLookup {
	return func(code string) (decimal.Decimal, bool) {
		v, ok := rates[code]
		if !ok {
			return decimal.Decimal{}, false
		}
		return decimal.NewFromFloat(v), true
	}
}

func TestResolveBase(t *testing.T) {
	tests := []struct {
		name     string
		from     string
		to       string
		rates    map[string]float64
		expected BaseSide
	}{
		{
			name:     "stable from side is base",
			from:     "USDT",
			to:       "MMK",
			rates:    map[string]float64{"USDT": 1, "MMK": 4500},
			expected: BaseFrom,
		},
		{
			name:     "stable to side is base",
			from:     "MMK",
			to:       "USDT",
			rates:    map[string]float64{"USDT": 1, "MMK": 4500},
			expected: BaseTo,
		},
		{
			name:     "rate below one counts as stable",
			from:     "KWD",
			to:       "THB",
			rates:    map[string]float64{"KWD": 0.31, "THB": 36},
			expected: BaseFrom,
		},
		{
			name:     "both stable is ambiguous",
			from:     "USDT",
			to:       "KWD",
			rates:    map[string]float64{"USDT": 1, "KWD": 0.31},
			expected: BaseAmbiguous,
		},
		{
			name:     "neither stable, smaller reference rate is base",
			from:     "THB",
			to:       "MMK",
			rates:    map[string]float64{"THB": 36, "MMK": 4500},
			expected: BaseFrom,
		},
		{
			name:     "neither stable, smaller rate on to side",
			from:     "MMK",
			to:       "THB",
			rates:    map[string]float64{"THB": 36, "MMK": 4500},
			expected: BaseTo,
		},
		{
			name:     "missing rate falls back to USDT literal",
			from:     "USDT",
			to:       "MMK",
			rates:    map[string]float64{"MMK": 4500},
			expected: BaseFrom,
		},
		{
			name:     "neither stable with missing rate is ambiguous",
			from:     "THB",
			to:       "XYZ",
			rates:    map[string]float64{"THB": 36},
			expected: BaseAmbiguous,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.expected, ResolveBase(tc.from, tc.to, lookupOf(tc.rates)))
		})
	}
}

func TestLookupFromPrefersConversionRateBuy(t *testing.T) {
	currencies := map[string]entity.Currency{
		"THB": {
			Code:              "THB",
			BaseRateBuy:       entity.Some(decimal.NewFromInt(37)),
			ConversionRateBuy: entity.Some(decimal.NewFromInt(36)),
		},
		"MMK": {
			Code:         "MMK",
			BaseRateSell: entity.Some(decimal.NewFromInt(4500)),
		},
	}
	lookup := LookupFrom(currencies)

	rate, ok := lookup("THB")
	require.True(t, ok)
	require.True(t, rate.Equal(decimal.NewFromInt(36)))

	rate, ok = lookup("MMK")
	require.True(t, ok)
	require.True(t, rate.Equal(decimal.NewFromInt(4500)))

	_, ok = lookup("XYZ")
	require.False(t, ok)
}
