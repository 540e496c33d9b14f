package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// AmendmentStatus is the approval lifecycle of a proposed edit.
type AmendmentStatus string

const (
	AmendmentPending   AmendmentStatus = "pending"
	AmendmentApplied   AmendmentStatus = "applied"
	AmendmentDiscarded AmendmentStatus = "discarded"
)

// OrderProposal is a partial order edit. Absent fields are untouched,
// null fields are explicitly cleared.
type OrderProposal struct {
	AmountBuy  Optional[decimal.Decimal] `json:"amountBuy,omitzero"`
	AmountSell Optional[decimal.Decimal] `json:"amountSell,omitzero"`
	Rate       Optional[decimal.Decimal] `json:"rate,omitzero"`
	Remarks    Optional[string]          `json:"remarks,omitzero"`

	ProfitAmount    Optional[decimal.Decimal] `json:"profitAmount,omitzero"`
	ProfitCurrency  Optional[string]          `json:"profitCurrency,omitzero"`
	ProfitAccountID Optional[int64]           `json:"profitAccountId,omitzero"`

	ServiceChargeAmount    Optional[decimal.Decimal] `json:"serviceChargeAmount,omitzero"`
	ServiceChargeCurrency  Optional[string]          `json:"serviceChargeCurrency,omitzero"`
	ServiceChargeAccountID Optional[int64]           `json:"serviceChargeAccountId,omitzero"`
}

// AmendmentRequest is a proposed edit to an order by an actor without
// direct edit rights. Immutable after creation except for Status.
type AmendmentRequest struct {
	ID        string          `json:"id"`
	OrderID   int64           `json:"orderId"`
	Proposal  OrderProposal   `json:"proposal"`
	Receipts  []LedgerEntry   `json:"receipts"`
	Payments  []LedgerEntry   `json:"payments"`
	Reason    string          `json:"reason"`
	Status    AmendmentStatus `json:"status"`
	CreatedAt time.Time       `json:"createdAt"`

	// PriorStatus is the order status captured at submission, restored
	// when the amendment is applied or discarded.
	PriorStatus OrderStatus `json:"priorStatus"`
}

// FieldChange is one scalar difference surfaced to the approver.
// Old and New are display renderings; "null" marks an explicit clear.
type FieldChange struct {
	Field string `json:"field"`
	Old   string `json:"old"`
	New   string `json:"new"`
}

// EntryListDiff describes how a proposed receipt or payment list
// differs from the stored one.
type EntryListDiff struct {
	Added   []LedgerEntry `json:"added"`
	Removed []LedgerEntry `json:"removed"`

	// ImageReplaced holds positions whose image was re-uploaded,
	// tracked independently of amount/account edits.
	ImageReplaced []int `json:"imageReplaced"`
}

// Changed reports whether the list differs in any tracked way.
func (d EntryListDiff) Changed() bool {
	return len(d.Added) > 0 || len(d.Removed) > 0 || len(d.ImageReplaced) > 0
}

// ChangeSet is the structured diff between an order and a proposal.
type ChangeSet struct {
	Fields   []FieldChange `json:"fields"`
	Receipts EntryListDiff `json:"receipts"`
	Payments EntryListDiff `json:"payments"`
}

// HasChanges reports whether the amendment changes anything at all.
func (c ChangeSet) HasChanges() bool {
	return len(c.Fields) > 0 || c.Receipts.Changed() || c.Payments.Changed()
}
