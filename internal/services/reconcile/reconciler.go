// Package reconcile matches accumulated confirmed receipts and
// payments against an order's expected amounts and decides completion
// eligibility.
package reconcile

import (
	"github.com/shopspring/decimal"

	"github.com/ravilg/fxdesk/internal/entity"
)

// Tolerances holds the two distinct bounds used by the desk. Funding
// absorbs cash-handling rounding when comparing receipt/payment
// totals against order amounts. Leg is the tighter bound for
// rate-derived leg consistency. They must not be conflated.
type Tolerances struct {
	Funding decimal.Decimal
	Leg     decimal.Decimal
}

// DefaultTolerances returns the stock desk bounds.
func DefaultTolerances() Tolerances {
	return Tolerances{
		Funding: decimal.NewFromFloat(0.50),
		Leg:     decimal.NewFromFloat(0.01),
	}
}

// WithinTolerance reports |a-b| <= tol.
func WithinTolerance(a, b, tol decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(tol)
}

// Reconcile classifies the confirmed total of entries against the
// expected amount. Draft entries never count.
func Reconcile(expected decimal.Decimal, entries []entity.LedgerEntry, tolerance decimal.Decimal) entity.FundingState {
	actual := entity.ConfirmedTotal(entries)
	delta := actual.Sub(expected)

	state := entity.FundingState{
		Expected: expected,
		Actual:   actual,
		Delta:    delta,
	}

	switch {
	case delta.Abs().LessThanOrEqual(tolerance):
		state.Classification = entity.FundingExact
	case delta.IsNegative():
		state.Classification = entity.FundingUnder
		state.Shortfall = expected.Sub(actual)
	default:
		state.Classification = entity.FundingOver
		state.Excess = delta
	}

	return state
}
