package setup

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ravilg/fxdesk/internal/entity"
)

func TestWizardOrderRemarks(t *testing.T) {
	pair := entity.Pair{From: "USDT", To: "MMK"}
	buy := decimal.NewFromInt(100)
	sell := decimal.NewFromInt(450000)
	rate := decimal.NewFromInt(4500)

	t.Run("filled remarks travel with the order", func(t *testing.T) {
		order := wizardOrder(pair, 7, buy, sell, rate, false, "walk-in customer")

		got, ok := order.Remarks.Get()
		require.True(t, ok)
		assert.Equal(t, "walk-in customer", got)
	})

	t.Run("empty remarks stay absent", func(t *testing.T) {
		order := wizardOrder(pair, 7, buy, sell, rate, true, "")

		assert.True(t, order.Remarks.IsAbsent())
	})

	t.Run("order fields carry through", func(t *testing.T) {
		order := wizardOrder(pair, 7, buy, sell, rate, true, "")

		assert.Equal(t, int64(7), order.CustomerID)
		assert.Equal(t, pair, order.Pair)
		assert.True(t, buy.Equal(order.AmountBuy))
		assert.True(t, sell.Equal(order.AmountSell))
		assert.True(t, rate.Equal(order.Rate))
		assert.True(t, order.IsFlex)
		assert.Equal(t, entity.StatusPending, order.Status)
	})
}

func TestParsePair(t *testing.T) {
	assert.Equal(t, entity.Pair{From: "USDT", To: "MMK"}, parsePair("usdt_mmk"))
	assert.Equal(t, entity.Pair{From: "SGD", To: "THB"}, parsePair(" sgd _ thb "))
}

func TestValidators(t *testing.T) {
	assert.NoError(t, validatePositiveDecimal("4500.25"))
	assert.Error(t, validatePositiveDecimal("0"))
	assert.Error(t, validatePositiveDecimal("abc"))

	assert.NoError(t, validatePositiveInt("42"))
	assert.Error(t, validatePositiveInt("4.5"))
	assert.Error(t, validatePositiveInt("-1"))
}
