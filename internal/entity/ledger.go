package entity

import "github.com/shopspring/decimal"

// EntryKind distinguishes incoming receipts from outgoing payments.
type EntryKind string

const (
	KindReceipt EntryKind = "receipt"
	KindPayment EntryKind = "payment"
)

// EntryStatus is the ledger entry lifecycle. Only confirmed entries
// count toward reconciliation totals.
type EntryStatus string

const (
	EntryDraft     EntryStatus = "draft"
	EntryConfirmed EntryStatus = "confirmed"
)

// LedgerEntry is a receipt or payment attached to an order. Receipts
// accumulate toward AmountBuy in Pair.From, payments toward
// AmountSell in Pair.To. The image is an opaque path owned by the
// upload layer.
type LedgerEntry struct {
	ID        int64            `json:"id"`
	OrderID   int64            `json:"orderId"`
	Kind      EntryKind        `json:"kind"`
	Amount    decimal.Decimal  `json:"amount"`
	AccountID int64            `json:"accountId"`
	Status    EntryStatus      `json:"status"`
	ImagePath Optional[string] `json:"imagePath,omitzero"`

	// HasNewImage marks a pending re-upload inside an amendment
	// proposal; it never persists on a stored entry.
	HasNewImage bool `json:"hasNewImage,omitempty"`
}

// ConfirmedTotal sums the confirmed entries. Draft entries are
// visible to operators but excluded here.
func ConfirmedTotal(entries []LedgerEntry) decimal.Decimal {
	total := decimal.Decimal{}
	for _, e := range entries {
		if e.Status == EntryConfirmed {
			total = total.Add(e.Amount)
		}
	}
	return total
}

// FilterKind returns the entries of the given kind, order preserved.
func FilterKind(entries []LedgerEntry, kind EntryKind) []LedgerEntry {
	out := make([]LedgerEntry, 0, len(entries))
	for _, e := range entries {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}
