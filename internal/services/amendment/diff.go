// Package amendment computes and validates the change-set between a
// stored order and a proposed edit awaiting approval.
package amendment

import (
	"github.com/shopspring/decimal"

	"github.com/ravilg/fxdesk/internal/entity"
	"github.com/ravilg/fxdesk/internal/services/reconcile"
)

// Snapshot is the stored side of a diff: the order as it is, with its
// receipt and payment lists.
type Snapshot struct {
	Order    entity.Order
	Receipts []entity.LedgerEntry
	Payments []entity.LedgerEntry
}

// Proposal is the amended side: a partial order plus full replacement
// entry lists.
type Proposal struct {
	Order    entity.OrderProposal
	Receipts []entity.LedgerEntry
	Payments []entity.LedgerEntry
}

// Diff produces the structured change-set an approver reviews. legTol
// bounds the numeric comparisons so a sub-cent rewrite of an amount
// does not surface as a change.
func Diff(original Snapshot, proposed Proposal, legTol decimal.Decimal) entity.ChangeSet {
	cs := entity.ChangeSet{
		Fields:   scalarChanges(original.Order, proposed.Order, legTol),
		Receipts: diffEntries(original.Receipts, proposed.Receipts, legTol),
		Payments: diffEntries(original.Payments, proposed.Payments, legTol),
	}
	return cs
}

func scalarChanges(o entity.Order, p entity.OrderProposal, legTol decimal.Decimal) []entity.FieldChange {
	var changes []entity.FieldChange

	numeric := []struct {
		field    string
		old      entity.Optional[decimal.Decimal]
		proposed entity.Optional[decimal.Decimal]
	}{
		{"amountBuy", entity.Some(o.AmountBuy), p.AmountBuy},
		{"amountSell", entity.Some(o.AmountSell), p.AmountSell},
		{"rate", entity.Some(o.Rate), p.Rate},
		{"profitAmount", o.ProfitAmount, p.ProfitAmount},
		{"serviceChargeAmount", o.ServiceChargeAmount, p.ServiceChargeAmount},
	}
	for _, f := range numeric {
		if ch, ok := numericChange(f.field, f.old, f.proposed, legTol); ok {
			changes = append(changes, ch)
		}
	}

	text := []struct {
		field    string
		old      entity.Optional[string]
		proposed entity.Optional[string]
	}{
		{"remarks", o.Remarks, p.Remarks},
		{"profitCurrency", o.ProfitCurrency, p.ProfitCurrency},
		{"serviceChargeCurrency", o.ServiceChargeCurrency, p.ServiceChargeCurrency},
	}
	for _, f := range text {
		if ch, ok := exactChange(f.field, f.old, f.proposed, func(s string) string { return s }); ok {
			changes = append(changes, ch)
		}
	}

	ids := []struct {
		field    string
		old      entity.Optional[int64]
		proposed entity.Optional[int64]
	}{
		{"profitAccountId", o.ProfitAccountID, p.ProfitAccountID},
		{"serviceChargeAccountId", o.ServiceChargeAccountID, p.ServiceChargeAccountID},
	}
	for _, f := range ids {
		if ch, ok := exactChange(f.field, f.old, f.proposed, formatID); ok {
			changes = append(changes, ch)
		}
	}

	return changes
}

// numericChange applies the leg tolerance; null against a present
// value is always a change, an absent proposal never is.
func numericChange(field string, old, proposed entity.Optional[decimal.Decimal], legTol decimal.Decimal) (entity.FieldChange, bool) {
	if proposed.IsAbsent() {
		return entity.FieldChange{}, false
	}

	oldVal, oldOK := old.Get()
	newVal, newOK := proposed.Get()

	switch {
	case oldOK != newOK:
		// present vs null in either direction
	case !oldOK:
		return entity.FieldChange{}, false
	case reconcile.WithinTolerance(oldVal, newVal, legTol):
		return entity.FieldChange{}, false
	}

	return entity.FieldChange{
		Field: field,
		Old:   renderOpt(old, decimal.Decimal.String),
		New:   renderOpt(proposed, decimal.Decimal.String),
	}, true
}

// exactChange compares strings and ids without tolerance.
func exactChange[T comparable](field string, old, proposed entity.Optional[T], render func(T) string) (entity.FieldChange, bool) {
	if proposed.IsAbsent() {
		return entity.FieldChange{}, false
	}

	oldVal, oldOK := old.Get()
	newVal, newOK := proposed.Get()
	if oldOK == newOK && (!oldOK || oldVal == newVal) {
		return entity.FieldChange{}, false
	}

	return entity.FieldChange{
		Field: field,
		Old:   renderOpt(old, render),
		New:   renderOpt(proposed, render),
	}, true
}

func renderOpt[T any](o entity.Optional[T], render func(T) string) string {
	if v, ok := o.Get(); ok {
		return render(v)
	}
	return "null"
}

func formatID(id int64) string {
	return decimal.NewFromInt(id).String()
}

// diffEntries computes multiset added/removed on (amount within the
// leg tolerance, account exact), and flags positional image
// replacements separately so a re-uploaded scan with unchanged
// figures stays visible.
func diffEntries(original, proposed []entity.LedgerEntry, legTol decimal.Decimal) entity.EntryListDiff {
	var diff entity.EntryListDiff

	matched := make([]bool, len(original))
	for _, p := range proposed {
		found := false
		for i, o := range original {
			if matched[i] {
				continue
			}
			if o.AccountID == p.AccountID && reconcile.WithinTolerance(o.Amount, p.Amount, legTol) {
				matched[i] = true
				found = true
				break
			}
		}
		if !found {
			diff.Added = append(diff.Added, p)
		}
	}
	for i, o := range original {
		if !matched[i] {
			diff.Removed = append(diff.Removed, o)
		}
	}

	for i := 0; i < len(original) && i < len(proposed); i++ {
		if imageReplaced(original[i], proposed[i]) {
			diff.ImageReplaced = append(diff.ImageReplaced, i)
		}
	}

	return diff
}

func imageReplaced(original, proposed entity.LedgerEntry) bool {
	if proposed.HasNewImage {
		return true
	}
	newPath, ok := proposed.ImagePath.Get()
	if !ok {
		return false
	}
	oldPath, _ := original.ImagePath.Get()
	return newPath != oldPath
}
