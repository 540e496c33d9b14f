package rates

import (
	"github.com/shopspring/decimal"

	"github.com/ravilg/fxdesk/internal/errs"
)

// DeriveOtherLeg computes the unknown leg of a trade from the known
// one. knownSide says which leg the known amount sits on (BaseFrom
// for the buy leg, BaseTo for the sell leg). The result is not
// rounded; display layers round, reconciliation compares with an
// explicit tolerance.
func DeriveOtherLeg(known, rate decimal.Decimal, from, to string, knownSide BaseSide, lookup RateLookup) (decimal.Decimal, error) {
	if !rate.IsPositive() {
		return decimal.Decimal{}, errs.ErrInvalidRate
	}

	base := ResolveBase(from, to, lookup)
	if base == BaseAmbiguous {
		// Inherited default: treat From as base and multiply.
		base = BaseFrom
	}

	if base == knownSide {
		return known.Mul(rate), nil
	}
	return known.Div(rate), nil
}

// AdditionalReceiptsNeeded converts an excess on the payment leg back
// into the receipt currency: the direction logic of DeriveOtherLeg,
// inverted. Excess payment is only resolvable by more incoming funds.
func AdditionalReceiptsNeeded(excess, rate decimal.Decimal, from, to string, lookup RateLookup) (decimal.Decimal, error) {
	if !rate.IsPositive() {
		return decimal.Decimal{}, errs.ErrInvalidRate
	}

	base := ResolveBase(from, to, lookup)
	if base == BaseTo {
		return excess.Mul(rate), nil
	}
	// BaseFrom, and the ambiguous default resolves to From as well.
	return excess.Div(rate), nil
}
