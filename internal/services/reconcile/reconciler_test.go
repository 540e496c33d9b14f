package reconcile

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/ravilg/fxdesk/internal/entity"
)

func confirmed(amount float64) entity.LedgerEntry {
	return entity.LedgerEntry{Amount: decimal.NewFromFloat(amount), Status: entity.EntryConfirmed}
}

func draft(amount float64) entity.LedgerEntry {
	return entity.LedgerEntry{Amount: decimal.NewFromFloat(amount), Status: entity.EntryDraft}
}

func TestReconcile(t *testing.T) {
	expected := decimal.NewFromInt(100)

	tests := []struct {
		name           string
		entries        []entity.LedgerEntry
		classification entity.FundingClass
		shortfall      decimal.Decimal
		excess         decimal.Decimal
	}{
		{
			name:           "half funded is under",
			entries:        []entity.LedgerEntry{confirmed(50)},
			classification: entity.FundingUnder,
			shortfall:      decimal.NewFromInt(50),
		},
		{
			name:           "within tolerance is exact",
			entries:        []entity.LedgerEntry{confirmed(100.3)},
			classification: entity.FundingExact,
		},
		{
			name:           "shortfall within tolerance is exact",
			entries:        []entity.LedgerEntry{confirmed(99.6)},
			classification: entity.FundingExact,
		},
		{
			name:           "overfunded reports excess",
			entries:        []entity.LedgerEntry{confirmed(120)},
			classification: entity.FundingOver,
			excess:         decimal.NewFromInt(20),
		},
		{
			name:           "draft entries never count",
			entries:        []entity.LedgerEntry{confirmed(50), draft(50)},
			classification: entity.FundingUnder,
			shortfall:      decimal.NewFromInt(50),
		},
		{
			name:           "no entries at all",
			entries:        nil,
			classification: entity.FundingUnder,
			shortfall:      decimal.NewFromInt(100),
		},
		{
			name:           "multiple confirmed entries accumulate",
			entries:        []entity.LedgerEntry{confirmed(40), confirmed(35), confirmed(25)},
			classification: entity.FundingExact,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			state := Reconcile(expected, tc.entries, DefaultTolerances().Funding)
			require.Equal(t, tc.classification, state.Classification)
			require.True(t, state.Shortfall.Equal(tc.shortfall), "shortfall %s", state.Shortfall)
			require.True(t, state.Excess.Equal(tc.excess), "excess %s", state.Excess)
			require.True(t, state.Expected.Equal(expected))
		})
	}
}

func TestTolerancesAreDistinct(t *testing.T) {
	// a 0.30 gap passes the funding check but not the leg check
	gap := decimal.NewFromFloat(0.30)
	a := decimal.NewFromInt(100)
	b := a.Add(gap)

	tol := DefaultTolerances()
	require.True(t, WithinTolerance(a, b, tol.Funding))
	require.False(t, WithinTolerance(a, b, tol.Leg))
}
