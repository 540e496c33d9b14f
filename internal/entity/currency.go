package entity

import "github.com/shopspring/decimal"

// Currency is a traded currency together with the desk's configured
// rates against the settlement currency.
type Currency struct {
	Code               string                    `json:"code"`
	BaseRateBuy        Optional[decimal.Decimal] `json:"baseRateBuy,omitzero"`
	BaseRateSell       Optional[decimal.Decimal] `json:"baseRateSell,omitzero"`
	ConversionRateBuy  Optional[decimal.Decimal] `json:"conversionRateBuy,omitzero"`
	ConversionRateSell Optional[decimal.Decimal] `json:"conversionRateSell,omitzero"`
	Active             bool                      `json:"active"`
}

// ReferenceRate resolves the rate used for base-side inference.
// Conversion buy wins, then base buy, base sell, conversion sell.
func (c Currency) ReferenceRate() (decimal.Decimal, bool) {
	for _, opt := range []Optional[decimal.Decimal]{
		c.ConversionRateBuy,
		c.BaseRateBuy,
		c.BaseRateSell,
		c.ConversionRateSell,
	} {
		if v, ok := opt.Get(); ok {
			return v, true
		}
	}
	return decimal.Decimal{}, false
}
