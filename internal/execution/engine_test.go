package execution

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/velocex/velocex/pkg/models"
)

func ladder(pairs ...string) []models.PriceLevel {
	out := make([]models.PriceLevel, 0, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		out = append(out, models.PriceLevel{
			Price:    decimal.RequireFromString(pairs[i]),
			Quantity: decimal.RequireFromString(pairs[i+1]),
		})
	}
	return out
}

func buyOrder(notional string) *models.Order {
	return &models.Order{
		ID:            uuid.New(),
		Side:          models.OrderSideBuy,
		Type:          models.OrderTypeMarket,
		NotionalValue: decimal.RequireFromString(notional),
	}
}

func sellOrder(qty string) *models.Order {
	return &models.Order{
		ID:                uuid.New(),
		Side:              models.OrderSideSell,
		Type:              models.OrderTypeMarket,
		RemainingQuantity: decimal.RequireFromString(qty),
	}
}

func TestBuySpansTwoLevels(t *testing.T) {
	e := NewEngine(zap.NewNop())
	asks := ladder("100", "1", "101", "2")

	result, err := e.Fill(buyOrder("150"), asks)
	require.NoError(t, err)

	// level one fully consumed, 50/202 of level two
	assert.True(t, result.FilledValue.Equal(decimal.RequireFromString("150")),
		"filled value %s", result.FilledValue)
	assert.Equal(t, "1.4950", result.FilledQuantity.StringFixed(4))
	assert.Equal(t, "100.33", result.ExecutionPrice.StringFixed(2))
}

func TestBuyInsufficientDepthAcceptsShortfall(t *testing.T) {
	e := NewEngine(zap.NewNop())
	asks := ladder("100", "1")

	result, err := e.Fill(buyOrder("500"), asks)
	require.NoError(t, err)

	assert.True(t, result.FilledQuantity.Equal(decimal.NewFromInt(1)))
	assert.True(t, result.FilledValue.Equal(decimal.NewFromInt(100)))
	assert.True(t, result.ExecutionPrice.Equal(decimal.NewFromInt(100)))
}

func TestSellPartialSecondLevel(t *testing.T) {
	e := NewEngine(zap.NewNop())
	bids := ladder("99", "0.5", "98", "0.5")

	result, err := e.Fill(sellOrder("0.7"), bids)
	require.NoError(t, err)

	assert.True(t, result.FilledValue.Equal(decimal.RequireFromString("69.1")),
		"filled value %s", result.FilledValue)
	assert.True(t, result.FilledQuantity.Equal(decimal.RequireFromString("0.7")))
	assert.Equal(t, "98.71", result.ExecutionPrice.StringFixed(2))
}

func TestZeroDepthIsTypedError(t *testing.T) {
	e := NewEngine(zap.NewNop())

	_, err := e.Fill(buyOrder("100"), nil)
	assert.ErrorIs(t, err, ErrZeroLiquidity)

	_, err = e.Fill(sellOrder("1"), []models.PriceLevel{})
	assert.ErrorIs(t, err, ErrZeroLiquidity)
}

func TestBuyNeverOverspends(t *testing.T) {
	e := NewEngine(zap.NewNop())
	asks := ladder("100.13", "0.37", "100.57", "1.91", "101.02", "4.2")

	for _, notional := range []string{"10", "37.21", "150", "400", "100000"} {
		result, err := e.Fill(buyOrder(notional), asks)
		require.NoError(t, err, "notional %s", notional)
		assert.True(t, result.FilledValue.LessThanOrEqual(decimal.RequireFromString(notional)),
			"notional %s overspent: %s", notional, result.FilledValue)
	}
}

func TestSellNeverOverfills(t *testing.T) {
	e := NewEngine(zap.NewNop())
	bids := ladder("99.9", "0.25", "99.1", "0.5")

	for _, qty := range []string{"0.1", "0.25", "0.7", "5"} {
		result, err := e.Fill(sellOrder(qty), bids)
		require.NoError(t, err, "qty %s", qty)
		assert.True(t, result.FilledQuantity.LessThanOrEqual(decimal.RequireFromString(qty)),
			"qty %s overfilled: %s", qty, result.FilledQuantity)
	}
}

func TestExecutionPriceInsideConsumedRange(t *testing.T) {
	e := NewEngine(zap.NewNop())
	asks := ladder("100", "1", "105", "1", "110", "1")

	result, err := e.Fill(buyOrder("260"), asks)
	require.NoError(t, err)

	best := decimal.RequireFromString("100")
	worst := decimal.RequireFromString("110")
	assert.True(t, result.ExecutionPrice.GreaterThanOrEqual(best))
	assert.True(t, result.ExecutionPrice.LessThanOrEqual(worst))
}

func TestBuyFilledValueIsExactLevelSum(t *testing.T) {
	e := NewEngine(zap.NewNop())
	// notional exactly covers both levels: 100*1 + 101*2 = 302
	asks := ladder("100", "1", "101", "2")

	result, err := e.Fill(buyOrder("302"), asks)
	require.NoError(t, err)

	assert.True(t, result.FilledValue.Equal(decimal.RequireFromString("302")))
	assert.True(t, result.FilledQuantity.Equal(decimal.RequireFromString("3")))
}

func TestUnsupportedSideRejected(t *testing.T) {
	e := NewEngine(zap.NewNop())
	order := buyOrder("100")
	order.Side = "short"

	_, err := e.Fill(order, ladder("100", "1"))
	assert.Error(t, err)
}
