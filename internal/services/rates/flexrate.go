package rates

import (
	"github.com/shopspring/decimal"

	"github.com/ravilg/fxdesk/internal/entity"
	"github.com/ravilg/fxdesk/internal/errs"
)

// ResolveEffectiveRate picks the rate for expected-payment
// computation on a flex order. A nil override means "no input", so
// the order defaults apply. An empty or unparseable override is an
// explicit clear and yields zero, which downstream code must reject
// before dividing.
func ResolveEffectiveRate(override *string, actualRate, rate entity.Optional[decimal.Decimal]) decimal.Decimal {
	if override != nil {
		if *override == "" {
			return decimal.Decimal{}
		}
		parsed, err := decimal.NewFromString(*override)
		if err != nil {
			return decimal.Decimal{}
		}
		return parsed
	}
	return actualRate.Or(rate).OrElse(decimal.Decimal{})
}

// ExpectedPayment computes the sell-leg expectation for an order. For
// flex orders the rate comes from ResolveEffectiveRate over the
// override and the order's actual/original rates; fixed orders use
// the order rate directly. Fails with ErrInvalidRate when the
// resolved rate is not positive.
func ExpectedPayment(o entity.Order, override *string, lookup RateLookup) (decimal.Decimal, error) {
	rate := o.Rate
	if o.IsFlex {
		rate = ResolveEffectiveRate(override, o.ActualRate, entity.Some(o.Rate))
	}
	if !rate.IsPositive() {
		return decimal.Decimal{}, errs.ErrInvalidRate
	}
	return DeriveOtherLeg(o.EffectiveAmountBuy(), rate, o.Pair.From, o.Pair.To, BaseFrom, lookup)
}
