package reconcile

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/ravilg/fxdesk/internal/entity"
	"github.com/ravilg/fxdesk/internal/errs"
	"github.com/ravilg/fxdesk/internal/services/rates"
)

func testLookup() rates.RateLookup {
	table := map[string]decimal.Decimal{
		"USDT": decimal.NewFromInt(1),
		"MMK":  decimal.NewFromInt(4500),
	}
	return func(code string) (decimal.Decimal, bool) {
		v, ok := table[code]
		return v, ok
	}
}

func testOrder() entity.Order {
	return entity.Order{
		ID:         1,
		Pair:       entity.Pair{From: "USDT", To: "MMK"},
		AmountBuy:  decimal.NewFromInt(100),
		AmountSell: decimal.NewFromInt(450000),
		Rate:       decimal.NewFromInt(4500),
		Status:     entity.StatusUnderProcess,
	}
}

func entry(kind entity.EntryKind, amount float64) entity.LedgerEntry {
	return entity.LedgerEntry{
		Kind:   kind,
		Amount: decimal.NewFromFloat(amount),
		Status: entity.EntryConfirmed,
	}
}

func TestCheckCompletionEligible(t *testing.T) {
	ledger := []entity.LedgerEntry{
		entry(entity.KindReceipt, 60),
		entry(entity.KindReceipt, 40),
		entry(entity.KindPayment, 450000),
	}

	report, err := CheckCompletion(testOrder(), ledger, nil, testLookup(), DefaultTolerances())
	require.NoError(t, err)
	require.True(t, report.Eligible())
	require.Empty(t, report.Notices)
}

func TestCheckCompletionUnderfundedReceipts(t *testing.T) {
	ledger := []entity.LedgerEntry{
		entry(entity.KindReceipt, 70),
		entry(entity.KindPayment, 450000),
	}

	report, err := CheckCompletion(testOrder(), ledger, nil, testLookup(), DefaultTolerances())
	require.NoError(t, err)
	require.False(t, report.Eligible())

	require.Len(t, report.Notices, 1)
	notice := report.Notices[0]
	require.Equal(t, NoticeMissing, notice.Kind)
	require.Equal(t, LegReceipts, notice.Leg)
	require.Equal(t, "USDT", notice.Currency)
	require.True(t, notice.Amount.Equal(decimal.NewFromInt(30)), "got %s", notice.Amount)
}

func TestCheckCompletionExcessPaymentNeedsMoreReceipts(t *testing.T) {
	ledger := []entity.LedgerEntry{
		entry(entity.KindReceipt, 100),
		entry(entity.KindPayment, 459000),
	}

	report, err := CheckCompletion(testOrder(), ledger, nil, testLookup(), DefaultTolerances())
	require.NoError(t, err)
	require.False(t, report.Eligible())

	require.Len(t, report.Notices, 1)
	notice := report.Notices[0]
	require.Equal(t, NoticeExcess, notice.Kind)
	require.Equal(t, LegPayments, notice.Leg)
	require.Equal(t, "MMK", notice.Currency)
	require.True(t, notice.Amount.Equal(decimal.NewFromInt(9000)), "got %s", notice.Amount)

	// 9000 MMK excess at 4500 means two more USDT must arrive
	more, ok := notice.AdditionalReceipts.Get()
	require.True(t, ok)
	require.True(t, more.Equal(decimal.NewFromInt(2)), "got %s", more)
}

func TestCheckCompletionFlexOrderUsesActuals(t *testing.T) {
	order := testOrder()
	order.IsFlex = true
	order.ActualAmountBuy = entity.Some(decimal.NewFromInt(110))
	order.ActualRate = entity.Some(decimal.NewFromInt(4600))

	ledger := []entity.LedgerEntry{
		entry(entity.KindReceipt, 110),
		entry(entity.KindPayment, 506000),
	}

	report, err := CheckCompletion(order, ledger, nil, testLookup(), DefaultTolerances())
	require.NoError(t, err)
	require.True(t, report.Eligible())
}

func TestCheckCompletionFlexClearedRateFails(t *testing.T) {
	order := testOrder()
	order.IsFlex = true

	empty := ""
	_, err := CheckCompletion(order, nil, &empty, testLookup(), DefaultTolerances())
	require.ErrorIs(t, err, errs.ErrInvalidRate)
}

func TestCheckCompletionStatusGuard(t *testing.T) {
	order := testOrder()
	order.Status = entity.StatusCompleted

	_, err := CheckCompletion(order, nil, nil, testLookup(), DefaultTolerances())
	require.ErrorIs(t, err, errs.ErrOrderNotCompletable)
}
