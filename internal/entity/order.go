package entity

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle state of an exchange order.
type OrderStatus string

const (
	StatusPending       OrderStatus = "pending"
	StatusUnderProcess  OrderStatus = "under_process"
	StatusCompleted     OrderStatus = "completed"
	StatusCancelled     OrderStatus = "cancelled"
	StatusPendingAmend  OrderStatus = "pending_amend"
	StatusPendingDelete OrderStatus = "pending_delete"
)

// Valid reports whether s is a known order status.
func (s OrderStatus) Valid() bool {
	switch s {
	case StatusPending, StatusUnderProcess, StatusCompleted,
		StatusCancelled, StatusPendingAmend, StatusPendingDelete:
		return true
	}
	return false
}

// Pair is a currency pair. AmountBuy is denominated in From,
// AmountSell in To.
type Pair struct {
	From string `json:"from"`
	To   string `json:"to"`
}

func (p Pair) String() string {
	return fmt.Sprintf("%s_%s", p.From, p.To)
}

// Order is an exchange order: the customer hands over AmountBuy in
// Pair.From and receives AmountSell in Pair.To at Rate. Flex orders
// may have their rate adjusted after creation; the Actual* fields
// carry the agreed final figures.
type Order struct {
	ID               int64                     `json:"id"`
	CustomerID       int64                     `json:"customerId"`
	HandlerID        Optional[int64]           `json:"handlerId,omitzero"`
	Pair             Pair                      `json:"pair"`
	AmountBuy        decimal.Decimal           `json:"amountBuy"`
	AmountSell       decimal.Decimal           `json:"amountSell"`
	Rate             decimal.Decimal           `json:"rate"`
	ActualAmountBuy  Optional[decimal.Decimal] `json:"actualAmountBuy,omitzero"`
	ActualAmountSell Optional[decimal.Decimal] `json:"actualAmountSell,omitzero"`
	ActualRate       Optional[decimal.Decimal] `json:"actualRate,omitzero"`
	IsFlex           bool                      `json:"isFlex"`
	Status           OrderStatus               `json:"status"`
	Remarks          Optional[string]          `json:"remarks,omitzero"`

	ProfitAmount    Optional[decimal.Decimal] `json:"profitAmount,omitzero"`
	ProfitCurrency  Optional[string]          `json:"profitCurrency,omitzero"`
	ProfitAccountID Optional[int64]           `json:"profitAccountId,omitzero"`

	ServiceChargeAmount    Optional[decimal.Decimal] `json:"serviceChargeAmount,omitzero"`
	ServiceChargeCurrency  Optional[string]          `json:"serviceChargeCurrency,omitzero"`
	ServiceChargeAccountID Optional[int64]           `json:"serviceChargeAccountId,omitzero"`
}

// EffectiveAmountBuy is the receipt-side expectation: the agreed
// actual amount for flex orders, the original amount otherwise.
func (o Order) EffectiveAmountBuy() decimal.Decimal {
	if o.IsFlex {
		return o.ActualAmountBuy.OrElse(o.AmountBuy)
	}
	return o.AmountBuy
}

// Completable reports whether the order is in a state from which it
// may transition to completed.
func (o Order) Completable() bool {
	return o.Status == StatusPending || o.Status == StatusUnderProcess
}
