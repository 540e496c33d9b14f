package entity

import "github.com/shopspring/decimal"

// FundingClass classifies accumulated funds against an expectation.
type FundingClass string

const (
	FundingUnder FundingClass = "under"
	FundingExact FundingClass = "exact"
	FundingOver  FundingClass = "over"
)

// FundingState is the outcome of reconciling confirmed entries
// against an expected amount. Derived on demand, never persisted.
type FundingState struct {
	Expected       decimal.Decimal `json:"expected"`
	Actual         decimal.Decimal `json:"actual"`
	Delta          decimal.Decimal `json:"delta"`
	Classification FundingClass    `json:"classification"`

	// Shortfall is set for under, Excess for over; both zero for exact.
	Shortfall decimal.Decimal `json:"shortfall"`
	Excess    decimal.Decimal `json:"excess"`
}

// Exact reports whether the state allows completion of its leg.
func (s FundingState) Exact() bool { return s.Classification == FundingExact }
