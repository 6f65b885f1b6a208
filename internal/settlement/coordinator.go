// Package settlement applies market order fills atomically: balance
// mutation, trade record and order status in one database transaction.
package settlement

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/velocex/velocex/internal/bookkeeper"
	"github.com/velocex/velocex/internal/trades"
	"github.com/velocex/velocex/pkg/metrics"
	"github.com/velocex/velocex/pkg/models"
)

// OrderStore is the slice of the order subsystem settlement needs.
type OrderStore interface {
	MarkFilled(tx *gorm.DB, orderID uuid.UUID, executionPrice decimal.Decimal) error
}

// Coordinator settles one fill per call. Either the balance changes, the
// trade record and the order transition are all durable, or none are.
type Coordinator struct {
	logger         *zap.Logger
	db             *gorm.DB
	bookkeeper     bookkeeper.BookkeeperService
	ledger         trades.TradeLedger
	orders         OrderStore
	counterpartyID uuid.UUID
}

// NewCoordinator creates a settlement coordinator. counterpartyID is the
// fixed identity representing the external reference market.
func NewCoordinator(logger *zap.Logger, db *gorm.DB, bk bookkeeper.BookkeeperService, ledger trades.TradeLedger, orders OrderStore, counterpartyID uuid.UUID) *Coordinator {
	return &Coordinator{
		logger:         logger,
		db:             db,
		bookkeeper:     bk,
		ledger:         ledger,
		orders:         orders,
		counterpartyID: counterpartyID,
	}
}

// Settle applies the fill for order. On any failure the transaction rolls
// back in full and the error is returned; no partial effect is observable.
func (c *Coordinator) Settle(ctx context.Context, order *models.Order, fill *models.FillResult) (*models.Trade, error) {
	tx := c.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, fmt.Errorf("failed to begin settlement transaction: %w", tx.Error)
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	trade, err := c.settleInTx(tx, order, fill)
	if err != nil {
		tx.Rollback()
		metrics.SettlementFailures.Inc()
		c.logger.Error("settlement rolled back",
			zap.String("order_id", order.ID.String()),
			zap.Error(err))
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		metrics.SettlementFailures.Inc()
		return nil, fmt.Errorf("failed to commit settlement: %w", err)
	}

	metrics.OrdersExecuted.WithLabelValues(order.Side).Inc()
	c.logger.Info("settlement committed",
		zap.String("order_id", order.ID.String()),
		zap.String("trade_id", trade.ID.String()),
		zap.String("quantity", trade.Quantity.String()),
		zap.String("price", trade.Price.String()))

	return trade, nil
}

func (c *Coordinator) settleInTx(tx *gorm.DB, order *models.Order, fill *models.FillResult) (*models.Trade, error) {
	var buyer, seller uuid.UUID
	switch order.Side {
	case models.OrderSideBuy:
		// debit fiat, credit crypto; the reference market sells
		if err := c.bookkeeper.IncrementFiatBalance(tx, order.UserID, fill.FilledValue.Neg()); err != nil {
			return nil, fmt.Errorf("fiat debit failed: %w", err)
		}
		if err := c.bookkeeper.IncrementCryptoHolding(tx, order.UserID, order.CryptocurrencyID, fill.FilledQuantity); err != nil {
			return nil, fmt.Errorf("crypto credit failed: %w", err)
		}
		buyer, seller = order.UserID, c.counterpartyID
	case models.OrderSideSell:
		// debit crypto, credit fiat; the reference market buys
		if err := c.bookkeeper.IncrementCryptoHolding(tx, order.UserID, order.CryptocurrencyID, fill.FilledQuantity.Neg()); err != nil {
			return nil, fmt.Errorf("crypto debit failed: %w", err)
		}
		if err := c.bookkeeper.IncrementFiatBalance(tx, order.UserID, fill.FilledValue); err != nil {
			return nil, fmt.Errorf("fiat credit failed: %w", err)
		}
		buyer, seller = c.counterpartyID, order.UserID
	default:
		return nil, fmt.Errorf("unsupported order side %q", order.Side)
	}

	trade := &models.Trade{
		ID:               uuid.New(),
		OrderID:          order.ID,
		CryptocurrencyID: order.CryptocurrencyID,
		Quantity:         fill.FilledQuantity,
		Price:            fill.ExecutionPrice,
		BuyerUserID:      buyer,
		SellerUserID:     seller,
		CreatedAt:        time.Now(),
	}
	if err := c.ledger.Insert(tx, trade); err != nil {
		return nil, err
	}

	if err := c.orders.MarkFilled(tx, order.ID, fill.ExecutionPrice); err != nil {
		return nil, err
	}

	return trade, nil
}
