package amendment

import "github.com/ravilg/fxdesk/internal/entity"

// ApplyProposal folds a partial edit into the order. Absent fields
// keep their current value, null fields are cleared, set fields win.
func ApplyProposal(o entity.Order, p entity.OrderProposal) entity.Order {
	if v, ok := p.AmountBuy.Get(); ok {
		o.AmountBuy = v
	}
	if v, ok := p.AmountSell.Get(); ok {
		o.AmountSell = v
	}
	if v, ok := p.Rate.Get(); ok {
		o.Rate = v
	}

	o.Remarks = mergeOpt(o.Remarks, p.Remarks)
	o.ProfitAmount = mergeOpt(o.ProfitAmount, p.ProfitAmount)
	o.ProfitCurrency = mergeOpt(o.ProfitCurrency, p.ProfitCurrency)
	o.ProfitAccountID = mergeOpt(o.ProfitAccountID, p.ProfitAccountID)
	o.ServiceChargeAmount = mergeOpt(o.ServiceChargeAmount, p.ServiceChargeAmount)
	o.ServiceChargeCurrency = mergeOpt(o.ServiceChargeCurrency, p.ServiceChargeCurrency)
	o.ServiceChargeAccountID = mergeOpt(o.ServiceChargeAccountID, p.ServiceChargeAccountID)

	return o
}

func mergeOpt[T any](current, proposed entity.Optional[T]) entity.Optional[T] {
	if proposed.IsAbsent() {
		return current
	}
	if proposed.IsNull() {
		return entity.None[T]()
	}
	return proposed
}
