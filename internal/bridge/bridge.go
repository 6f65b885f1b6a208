// Package bridge orchestrates market order execution: it consumes
// order-created events and drives resolution, depth read, fill computation
// and settlement.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/velocex/velocex/internal/depth"
	"github.com/velocex/velocex/internal/execution"
	"github.com/velocex/velocex/internal/symbols"
	"github.com/velocex/velocex/pkg/metrics"
	"github.com/velocex/velocex/pkg/models"
)

// OrderGetter loads orders for execution.
type OrderGetter interface {
	GetOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
}

// SymbolResolver maps an asset id to the external feed symbol.
type SymbolResolver interface {
	Resolve(ctx context.Context, cryptocurrencyID uuid.UUID) (string, error)
}

// DepthReader supplies the current ladder for a symbol.
type DepthReader interface {
	Snapshot(symbol string) (*models.DepthSnapshot, error)
}

// Filler computes the fill for an order against one side of the ladder.
type Filler interface {
	Fill(order *models.Order, levels []models.PriceLevel) (*models.FillResult, error)
}

// Settler applies a fill atomically.
type Settler interface {
	Settle(ctx context.Context, order *models.Order, fill *models.FillResult) (*models.Trade, error)
}

// Notifier publishes a trade-executed event to the owning user.
type Notifier interface {
	NotifyTradeExecuted(userID uuid.UUID, event models.TradeExecuted)
}

// Bridge is the single consumer of market-order-created events. Each
// invocation works on its own order and its own depth snapshot; a started
// settlement always runs to commit or rollback.
type Bridge struct {
	logger      *zap.Logger
	orders      OrderGetter
	resolver    SymbolResolver
	cache       DepthReader
	engine      Filler
	coordinator Settler
	notifier    Notifier
}

// NewBridge wires the execution pipeline.
func NewBridge(logger *zap.Logger, orders OrderGetter, resolver SymbolResolver, cache DepthReader, engine Filler, coordinator Settler, notifier Notifier) *Bridge {
	return &Bridge{
		logger:      logger,
		orders:      orders,
		resolver:    resolver,
		cache:       cache,
		engine:      engine,
		coordinator: coordinator,
		notifier:    notifier,
	}
}

// HandleOrderCreated executes one market order end to end. Aborts before
// settlement leave the order open and return a typed error so operators can
// alert on stuck orders; they are never retried here.
func (b *Bridge) HandleOrderCreated(ctx context.Context, event models.OrderCreated) error {
	start := time.Now()

	order, err := b.orders.GetOrder(ctx, event.OrderID)
	if err != nil {
		return fmt.Errorf("failed to load order %s: %w", event.OrderID, err)
	}
	if order.Type != models.OrderTypeMarket || order.Status != models.OrderStatusOpen {
		b.logger.Warn("ignoring non-executable order event",
			zap.String("order_id", order.ID.String()),
			zap.String("type", order.Type),
			zap.String("status", order.Status))
		return nil
	}

	symbol, err := b.resolver.Resolve(ctx, order.CryptocurrencyID)
	if err != nil {
		if errors.Is(err, symbols.ErrUnknownCryptocurrency) {
			b.abort(order, "unknown_cryptocurrency", err)
		}
		return err
	}

	snap, err := b.cache.Snapshot(symbol)
	if err != nil {
		if errors.Is(err, depth.ErrNotAvailable) {
			b.abort(order, "depth_unavailable", err)
		}
		return err
	}

	levels := snap.Asks
	if order.Side == models.OrderSideSell {
		levels = snap.Bids
	}

	fill, err := b.engine.Fill(order, levels)
	if err != nil {
		if errors.Is(err, execution.ErrZeroLiquidity) {
			b.abort(order, "zero_liquidity", err)
		}
		return err
	}

	trade, err := b.coordinator.Settle(ctx, order, fill)
	if err != nil {
		return fmt.Errorf("settlement failed for order %s: %w", order.ID, err)
	}

	order.Status = models.OrderStatusFilled
	order.RemainingQuantity = decimal.Zero
	order.Price = fill.ExecutionPrice

	b.notifier.NotifyTradeExecuted(order.UserID, models.TradeExecuted{
		Order:     order,
		TradeID:   trade.ID,
		Timestamp: trade.CreatedAt,
	})

	metrics.ExecutionLatency.Observe(time.Since(start).Seconds())
	return nil
}

func (b *Bridge) abort(order *models.Order, reason string, err error) {
	metrics.ExecutionAborts.WithLabelValues(reason).Inc()
	b.logger.Warn("market order execution aborted",
		zap.String("order_id", order.ID.String()),
		zap.String("reason", reason),
		zap.Error(err))
}
