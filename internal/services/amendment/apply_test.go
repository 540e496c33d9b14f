package amendment

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/ravilg/fxdesk/internal/entity"
)

func TestApplyProposal(t *testing.T) {
	original := entity.Order{
		AmountBuy:      decimal.NewFromInt(100),
		AmountSell:     decimal.NewFromInt(450000),
		Rate:           decimal.NewFromInt(4500),
		Remarks:        entity.Some("walk-in"),
		ProfitAmount:   entity.Some(decimal.NewFromInt(5)),
		ProfitCurrency: entity.Some("USDT"),
	}

	t.Run("empty proposal keeps everything", func(t *testing.T) {
		got := ApplyProposal(original, entity.OrderProposal{})
		assert.Equal(t, original, got)
	})

	t.Run("set fields win", func(t *testing.T) {
		got := ApplyProposal(original, entity.OrderProposal{
			AmountBuy: entity.Some(decimal.NewFromInt(120)),
			Rate:      entity.Some(decimal.NewFromInt(4600)),
			Remarks:   entity.Some("agent"),
		})
		assert.True(t, got.AmountBuy.Equal(decimal.NewFromInt(120)))
		assert.True(t, got.Rate.Equal(decimal.NewFromInt(4600)))
		assert.Equal(t, "agent", got.Remarks.OrElse(""))
		// untouched fields survive
		assert.True(t, got.AmountSell.Equal(original.AmountSell))
		assert.Equal(t, original.ProfitCurrency, got.ProfitCurrency)
	})

	t.Run("null clears optionals", func(t *testing.T) {
		got := ApplyProposal(original, entity.OrderProposal{
			ProfitAmount:   entity.Null[decimal.Decimal](),
			ProfitCurrency: entity.Null[string](),
		})
		_, ok := got.ProfitAmount.Get()
		assert.False(t, ok)
		_, ok = got.ProfitCurrency.Get()
		assert.False(t, ok)
		assert.Equal(t, original.Remarks, got.Remarks)
	})
}
