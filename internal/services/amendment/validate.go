package amendment

import (
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/ravilg/fxdesk/internal/entity"
	"github.com/ravilg/fxdesk/internal/errs"
	"github.com/ravilg/fxdesk/internal/services/reconcile"
)

// Validate diffs the proposal against the snapshot and enforces the
// submission preconditions: the amendment must change something, and
// it must not leave the order unreconciled. Returns the change-set on
// success so callers diff only once.
func Validate(original Snapshot, proposed Proposal, legTol decimal.Decimal) (entity.ChangeSet, error) {
	cs := Diff(original, proposed, legTol)
	if !cs.HasChanges() {
		return entity.ChangeSet{}, errs.ErrNoChanges
	}

	// Mirror the completion invariant at diff time: proposed totals
	// must match the proposed amounts, or approving the amendment
	// would strand the order.
	amountBuy := proposed.Order.AmountBuy.OrElse(original.Order.AmountBuy)
	if err := checkTotal(proposed.Receipts, amountBuy, legTol, "receipts", original.Order.Pair.From); err != nil {
		return entity.ChangeSet{}, err
	}

	amountSell := proposed.Order.AmountSell.OrElse(original.Order.AmountSell)
	if err := checkTotal(proposed.Payments, amountSell, legTol, "payments", original.Order.Pair.To); err != nil {
		return entity.ChangeSet{}, err
	}

	return cs, nil
}

// checkTotal sums the proposal lines themselves, drafts included: the
// lists describe the ledger as it would exist after approval.
func checkTotal(entries []entity.LedgerEntry, expected, legTol decimal.Decimal, leg, currency string) error {
	total := decimal.Decimal{}
	for _, e := range entries {
		total = total.Add(e.Amount)
	}
	if reconcile.WithinTolerance(total, expected, legTol) {
		return nil
	}
	return errors.Wrapf(errs.ErrUnreconciledAmendment,
		"%s total %s does not match expected %s %s", leg, total.String(), expected.String(), currency)
}
