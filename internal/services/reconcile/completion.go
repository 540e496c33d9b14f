package reconcile

import (
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/ravilg/fxdesk/internal/entity"
	"github.com/ravilg/fxdesk/internal/errs"
	"github.com/ravilg/fxdesk/internal/services/rates"
)

// NoticeKind says which way a leg is off.
type NoticeKind string

const (
	NoticeMissing NoticeKind = "missing"
	NoticeExcess  NoticeKind = "excess"
)

// Leg names the side of the order a notice refers to.
type Leg string

const (
	LegReceipts Leg = "receipts"
	LegPayments Leg = "payments"
)

// Notice is a structured funding problem surfaced to the operator
// instead of a generic error: the UI prompts for more receipts or
// payments, or warns about an overpayment, and never silently
// completes the order.
type Notice struct {
	Kind     NoticeKind      `json:"kind"`
	Leg      Leg             `json:"leg"`
	Currency string          `json:"currency"`
	Amount   decimal.Decimal `json:"amount"`

	// AdditionalReceipts is set for an excess on the payment leg: how
	// much more must arrive on the receipt side before the order can
	// close, in the receipt currency.
	AdditionalReceipts entity.Optional[decimal.Decimal] `json:"additionalReceipts,omitzero"`
}

// Report is the full funding picture for an order.
type Report struct {
	Receipts entity.FundingState `json:"receipts"`
	Payments entity.FundingState `json:"payments"`
	Notices  []Notice            `json:"notices"`
}

// Eligible reports whether both legs reconcile exactly.
func (r Report) Eligible() bool {
	return r.Receipts.Exact() && r.Payments.Exact()
}

// CheckCompletion guards the completed transition: the order must be
// in a completable status and both legs must reconcile. overrideRate
// is the operator-entered flex rate, nil when untouched.
func CheckCompletion(o entity.Order, ledger []entity.LedgerEntry, overrideRate *string, lookup rates.RateLookup, tol Tolerances) (Report, error) {
	if !o.Completable() {
		return Report{}, errs.ErrOrderNotCompletable
	}
	return BuildReport(o, ledger, overrideRate, lookup, tol)
}

// BuildReport reconciles both legs of an order and collects the
// notices blocking completion. Fails with ErrInvalidRate when the
// payment expectation cannot be computed.
func BuildReport(o entity.Order, ledger []entity.LedgerEntry, overrideRate *string, lookup rates.RateLookup, tol Tolerances) (Report, error) {
	expectedPayment, err := rates.ExpectedPayment(o, overrideRate, lookup)
	if err != nil {
		return Report{}, errors.Wrap(err, "compute expected payment")
	}

	report := Report{
		Receipts: Reconcile(o.EffectiveAmountBuy(), entity.FilterKind(ledger, entity.KindReceipt), tol.Funding),
		Payments: Reconcile(expectedPayment, entity.FilterKind(ledger, entity.KindPayment), tol.Funding),
	}

	report.Notices = append(report.Notices, legNotices(report.Receipts, LegReceipts, o.Pair.From)...)
	paymentNotices := legNotices(report.Payments, LegPayments, o.Pair.To)

	if report.Payments.Classification == entity.FundingOver {
		rate := o.Rate
		if o.IsFlex {
			rate = rates.ResolveEffectiveRate(overrideRate, o.ActualRate, entity.Some(o.Rate))
		}
		more, err := rates.AdditionalReceiptsNeeded(report.Payments.Excess, rate, o.Pair.From, o.Pair.To, lookup)
		if err != nil {
			return Report{}, errors.Wrap(err, "convert payment excess to receipt currency")
		}
		for i := range paymentNotices {
			if paymentNotices[i].Kind == NoticeExcess {
				paymentNotices[i].AdditionalReceipts = entity.Some(more)
			}
		}
	}

	report.Notices = append(report.Notices, paymentNotices...)
	return report, nil
}

func legNotices(state entity.FundingState, leg Leg, currency string) []Notice {
	switch state.Classification {
	case entity.FundingUnder:
		return []Notice{{Kind: NoticeMissing, Leg: leg, Currency: currency, Amount: state.Shortfall}}
	case entity.FundingOver:
		return []Notice{{Kind: NoticeExcess, Leg: leg, Currency: currency, Amount: state.Excess}}
	}
	return nil
}
