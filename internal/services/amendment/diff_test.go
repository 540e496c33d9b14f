package amendment

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/ravilg/fxdesk/internal/entity"
	"github.com/ravilg/fxdesk/internal/errs"
	"github.com/ravilg/fxdesk/internal/services/reconcile"
)

var legTol = reconcile.DefaultTolerances().Leg

func baseSnapshot() Snapshot {
	return Snapshot{
		Order: entity.Order{
			ID:           7,
			Pair:         entity.Pair{From: "USDT", To: "MMK"},
			AmountBuy:    decimal.NewFromInt(80),
			AmountSell:   decimal.NewFromInt(360000),
			Rate:         decimal.NewFromInt(4500),
			Remarks:      entity.Some("walk-in"),
			ProfitAmount: entity.Some(decimal.NewFromInt(10)),
		},
		Receipts: []entity.LedgerEntry{
			{Amount: decimal.NewFromInt(50), AccountID: 1, Status: entity.EntryConfirmed},
			{Amount: decimal.NewFromInt(30), AccountID: 2, Status: entity.EntryConfirmed},
		},
		Payments: []entity.LedgerEntry{
			{Amount: decimal.NewFromInt(360000), AccountID: 9, Status: entity.EntryConfirmed},
		},
	}
}

func identicalProposal(s Snapshot) Proposal {
	return Proposal{
		Receipts: s.Receipts,
		Payments: s.Payments,
	}
}

func TestDiffNoChanges(t *testing.T) {
	snap := baseSnapshot()
	cs := Diff(snap, identicalProposal(snap), legTol)
	require.False(t, cs.HasChanges())
}

func TestDiffScalarChanges(t *testing.T) {
	snap := baseSnapshot()

	tests := []struct {
		name     string
		proposal entity.OrderProposal
		field    string
		changed  bool
	}{
		{
			name:     "rate changed beyond tolerance",
			proposal: entity.OrderProposal{Rate: entity.Some(decimal.NewFromInt(4600))},
			field:    "rate",
			changed:  true,
		},
		{
			name:     "amount within tolerance is not a change",
			proposal: entity.OrderProposal{AmountBuy: entity.Some(decimal.NewFromFloat(80.004))},
			changed:  false,
		},
		{
			name:     "remarks changed",
			proposal: entity.OrderProposal{Remarks: entity.Some("phone order")},
			field:    "remarks",
			changed:  true,
		},
		{
			name:     "same remarks is not a change",
			proposal: entity.OrderProposal{Remarks: entity.Some("walk-in")},
			changed:  false,
		},
		{
			name:     "explicit null clears profit amount",
			proposal: entity.OrderProposal{ProfitAmount: entity.Null[decimal.Decimal]()},
			field:    "profitAmount",
			changed:  true,
		},
		{
			name:     "null on an already absent field is not a change",
			proposal: entity.OrderProposal{ProfitAccountID: entity.Null[int64]()},
			changed:  false,
		},
		{
			name:     "setting a previously absent field",
			proposal: entity.OrderProposal{ServiceChargeAmount: entity.Some(decimal.NewFromInt(5))},
			field:    "serviceChargeAmount",
			changed:  true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			prop := identicalProposal(snap)
			prop.Order = tc.proposal

			cs := Diff(snap, prop, legTol)
			if !tc.changed {
				require.False(t, cs.HasChanges())
				return
			}
			require.Len(t, cs.Fields, 1)
			require.Equal(t, tc.field, cs.Fields[0].Field)
		})
	}
}

func TestDiffNullRendersClear(t *testing.T) {
	snap := baseSnapshot()
	prop := identicalProposal(snap)
	prop.Order = entity.OrderProposal{ProfitAmount: entity.Null[decimal.Decimal]()}

	cs := Diff(snap, prop, legTol)
	require.Len(t, cs.Fields, 1)
	require.Equal(t, "10", cs.Fields[0].Old)
	require.Equal(t, "null", cs.Fields[0].New)
}

func TestDiffAddedEntry(t *testing.T) {
	snap := baseSnapshot()
	snap.Receipts = []entity.LedgerEntry{
		{Amount: decimal.NewFromInt(50), AccountID: 1, Status: entity.EntryConfirmed},
	}

	prop := identicalProposal(snap)
	prop.Receipts = append([]entity.LedgerEntry{}, snap.Receipts...)
	prop.Receipts = append(prop.Receipts, entity.LedgerEntry{Amount: decimal.NewFromInt(30), AccountID: 2})

	cs := Diff(snap, prop, legTol)
	require.True(t, cs.Receipts.Changed())
	require.Len(t, cs.Receipts.Added, 1)
	require.Empty(t, cs.Receipts.Removed)
	require.True(t, cs.Receipts.Added[0].Amount.Equal(decimal.NewFromInt(30)))
	require.Equal(t, int64(2), cs.Receipts.Added[0].AccountID)
}

func TestDiffRepointedEntry(t *testing.T) {
	snap := baseSnapshot()

	prop := identicalProposal(snap)
	prop.Receipts = []entity.LedgerEntry{
		{Amount: decimal.NewFromInt(50), AccountID: 1, Status: entity.EntryConfirmed},
		// same amount, different account: removed + added pair
		{Amount: decimal.NewFromInt(30), AccountID: 5, Status: entity.EntryConfirmed},
	}

	cs := Diff(snap, prop, legTol)
	require.Len(t, cs.Receipts.Added, 1)
	require.Len(t, cs.Receipts.Removed, 1)
	require.Equal(t, int64(5), cs.Receipts.Added[0].AccountID)
	require.Equal(t, int64(2), cs.Receipts.Removed[0].AccountID)
}

func TestDiffImageReplacement(t *testing.T) {
	snap := baseSnapshot()
	snap.Receipts[0].ImagePath = entity.Some("scans/r1.jpg")

	prop := identicalProposal(snap)
	prop.Receipts = append([]entity.LedgerEntry{}, snap.Receipts...)
	prop.Receipts[0].ImagePath = entity.Some("scans/r1-clearer.jpg")

	cs := Diff(snap, prop, legTol)
	require.True(t, cs.HasChanges())
	require.Empty(t, cs.Receipts.Added)
	require.Empty(t, cs.Receipts.Removed)
	require.Equal(t, []int{0}, cs.Receipts.ImageReplaced)
}

func TestDiffHasNewImageFlag(t *testing.T) {
	snap := baseSnapshot()

	prop := identicalProposal(snap)
	prop.Payments = append([]entity.LedgerEntry{}, snap.Payments...)
	prop.Payments[0].HasNewImage = true

	cs := Diff(snap, prop, legTol)
	require.Equal(t, []int{0}, cs.Payments.ImageReplaced)
	require.Empty(t, cs.Payments.Added)
}

func TestValidateRejectsEmptyDiff(t *testing.T) {
	snap := baseSnapshot()
	_, err := Validate(snap, identicalProposal(snap), legTol)
	require.ErrorIs(t, err, errs.ErrNoChanges)
}

func TestValidateRejectsUnreconciledTotals(t *testing.T) {
	snap := baseSnapshot()

	prop := identicalProposal(snap)
	// raise the buy amount without adding receipts to cover it
	prop.Order = entity.OrderProposal{AmountBuy: entity.Some(decimal.NewFromInt(120))}

	_, err := Validate(snap, prop, legTol)
	require.ErrorIs(t, err, errs.ErrUnreconciledAmendment)
	require.Contains(t, err.Error(), "USDT")
	require.Contains(t, err.Error(), "120")
}

func TestValidateAcceptsBalancedAmendment(t *testing.T) {
	snap := baseSnapshot()

	prop := identicalProposal(snap)
	prop.Order = entity.OrderProposal{AmountBuy: entity.Some(decimal.NewFromInt(120))}
	prop.Receipts = append([]entity.LedgerEntry{}, snap.Receipts...)
	prop.Receipts = append(prop.Receipts, entity.LedgerEntry{Amount: decimal.NewFromInt(40), AccountID: 3})

	cs, err := Validate(snap, prop, legTol)
	require.NoError(t, err)
	require.True(t, cs.HasChanges())
	require.Len(t, cs.Receipts.Added, 1)
}
