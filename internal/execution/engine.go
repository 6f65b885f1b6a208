// Package execution computes market order fills against an external depth
// ladder.
package execution

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/velocex/velocex/pkg/models"
)

// ErrZeroLiquidity is returned when the ladder yields no fillable quantity.
// It keeps a zero fill from ever reaching the execution price division.
var ErrZeroLiquidity = errors.New("zero liquidity for market order")

// Engine walks price levels best-first and produces a volume-weighted fill.
//
// If the ladder is exhausted before the order's full size, the partial fill
// is returned without error: the order is still settled as filled with
// whatever liquidity existed. Thin external liquidity therefore silently
// under-fills; callers that need to distinguish a shortfall can compare the
// result against the requested size.
type Engine struct {
	logger *zap.Logger
}

// NewEngine creates an execution engine.
func NewEngine(logger *zap.Logger) *Engine {
	return &Engine{logger: logger}
}

// Fill computes the fill for a market order against the applicable side of
// the ladder: asks for a buy, bids for a sell. Levels must be sorted best
// first. All arithmetic is decimal; binary floats never enter the walk.
func (e *Engine) Fill(order *models.Order, levels []models.PriceLevel) (*models.FillResult, error) {
	var result *models.FillResult
	switch order.Side {
	case models.OrderSideBuy:
		result = fillBuy(order.NotionalValue, levels)
	case models.OrderSideSell:
		result = fillSell(order.RemainingQuantity, levels)
	default:
		return nil, fmt.Errorf("unsupported order side %q", order.Side)
	}

	if result.FilledQuantity.IsZero() {
		return nil, ErrZeroLiquidity
	}
	result.ExecutionPrice = result.FilledValue.Div(result.FilledQuantity)

	e.logger.Debug("market order fill computed",
		zap.String("order_id", order.ID.String()),
		zap.String("side", order.Side),
		zap.String("filled_quantity", result.FilledQuantity.String()),
		zap.String("filled_value", result.FilledValue.String()),
		zap.String("execution_price", result.ExecutionPrice.String()))

	return result, nil
}

// fillBuy walks the asks, spending at most the notional fiat value.
func fillBuy(notional decimal.Decimal, asks []models.PriceLevel) *models.FillResult {
	remainingValue := notional
	filledQuantity := decimal.Zero

	for _, level := range asks {
		if remainingValue.Sign() <= 0 {
			break
		}
		levelValue := level.Price.Mul(level.Quantity)
		if remainingValue.GreaterThanOrEqual(levelValue) {
			filledQuantity = filledQuantity.Add(level.Quantity)
			remainingValue = remainingValue.Sub(levelValue)
			continue
		}
		// partial consumption of this level
		partialQty := remainingValue.Div(levelValue).Mul(level.Quantity)
		filledQuantity = filledQuantity.Add(partialQty)
		remainingValue = decimal.Zero
		break
	}

	return &models.FillResult{
		FilledQuantity: filledQuantity,
		FilledValue:    notional.Sub(remainingValue),
	}
}

// fillSell walks the bids, liquidating at most the requested quantity.
func fillSell(quantity decimal.Decimal, bids []models.PriceLevel) *models.FillResult {
	remainingQuantity := quantity
	filledValue := decimal.Zero

	for _, level := range bids {
		if remainingQuantity.Sign() <= 0 {
			break
		}
		if remainingQuantity.GreaterThanOrEqual(level.Quantity) {
			filledValue = filledValue.Add(level.Price.Mul(level.Quantity))
			remainingQuantity = remainingQuantity.Sub(level.Quantity)
			continue
		}
		// only part of this level is needed
		filledValue = filledValue.Add(remainingQuantity.Mul(level.Price))
		remainingQuantity = decimal.Zero
		break
	}

	return &models.FillResult{
		FilledQuantity: quantity.Sub(remainingQuantity),
		FilledValue:    filledValue,
	}
}
