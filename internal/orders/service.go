// Package orders accepts limit and market orders and publishes execution
// events for market orders.
package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/velocex/velocex/internal/bookkeeper"
	"github.com/velocex/velocex/internal/bus"
	"github.com/velocex/velocex/pkg/models"
)

// ErrOrderNotFound is returned when the order id is unknown.
var ErrOrderNotFound = errors.New("order not found")

// PlaceOrderRequest carries a validated order submission.
//
// Market buys are sized by NotionalValue (fiat to spend); market sells by
// Quantity (crypto to liquidate). Limit orders carry Price and Quantity.
type PlaceOrderRequest struct {
	UserID           uuid.UUID `validate:"required"`
	CryptocurrencyID uuid.UUID `validate:"required"`
	Side             string    `validate:"required,oneof=buy sell"`
	Type             string    `validate:"required,oneof=limit market"`
	Price            decimal.Decimal
	Quantity         decimal.Decimal
	NotionalValue    decimal.Decimal
}

// OrderService defines order placement and the settlement hook.
type OrderService interface {
	PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*models.Order, error)
	GetOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	GetOrders(ctx context.Context, userID uuid.UUID, limit int) ([]*models.Order, error)
	MarkFilled(tx *gorm.DB, orderID uuid.UUID, executionPrice decimal.Decimal) error
}

// Service implements OrderService.
type Service struct {
	logger     *zap.Logger
	db         *gorm.DB
	bookkeeper bookkeeper.BookkeeperService
	bus        bus.OrderEventBus
	validate   *validator.Validate
}

// NewService creates the order service. Market order events are published
// on eventBus after the order row is committed.
func NewService(logger *zap.Logger, db *gorm.DB, bk bookkeeper.BookkeeperService, eventBus bus.OrderEventBus) (OrderService, error) {
	return &Service{
		logger:     logger,
		db:         db,
		bookkeeper: bk,
		bus:        eventBus,
		validate:   validator.New(),
	}, nil
}

// PlaceOrder validates, persists and (for market orders) announces a new
// order. Funds sufficiency is checked here as a business rule; the
// settlement transaction re-checks under lock.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*models.Order, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("invalid order request: %w", err)
	}
	if err := s.validateSizing(ctx, req); err != nil {
		return nil, err
	}

	now := time.Now()
	order := &models.Order{
		ID:                uuid.New(),
		UserID:            req.UserID,
		CryptocurrencyID:  req.CryptocurrencyID,
		Side:              req.Side,
		Type:              req.Type,
		Price:             req.Price,
		Quantity:          req.Quantity,
		RemainingQuantity: req.Quantity,
		NotionalValue:     req.NotionalValue,
		Status:            models.OrderStatusOpen,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := s.db.WithContext(ctx).Create(order).Error; err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	if order.Type == models.OrderTypeMarket {
		event := models.OrderCreated{
			OrderID:   order.ID,
			UserID:    order.UserID,
			CreatedAt: order.CreatedAt,
		}
		if err := s.bus.Publish(ctx, event); err != nil {
			// The order stays open and visible; operators can replay it.
			s.logger.Error("failed to publish market order event",
				zap.String("order_id", order.ID.String()),
				zap.Error(err))
			return order, fmt.Errorf("order accepted but execution event failed: %w", err)
		}
	}

	s.logger.Info("order placed",
		zap.String("order_id", order.ID.String()),
		zap.String("user_id", order.UserID.String()),
		zap.String("side", order.Side),
		zap.String("type", order.Type))

	return order, nil
}

// validateSizing enforces which size field drives each order shape and that
// the user can plausibly cover it.
func (s *Service) validateSizing(ctx context.Context, req PlaceOrderRequest) error {
	switch req.Type {
	case models.OrderTypeLimit:
		if req.Price.Sign() <= 0 || req.Quantity.Sign() <= 0 {
			return fmt.Errorf("limit orders require positive price and quantity")
		}
	case models.OrderTypeMarket:
		if req.Side == models.OrderSideBuy {
			if req.NotionalValue.Sign() <= 0 {
				return fmt.Errorf("market buy orders require a positive notional value")
			}
			account, err := s.bookkeeper.GetAccount(ctx, req.UserID)
			if err != nil {
				return err
			}
			if account.Balance.LessThan(req.NotionalValue) {
				return bookkeeper.ErrInsufficientFunds
			}
		} else {
			if req.Quantity.Sign() <= 0 {
				return fmt.Errorf("market sell orders require a positive quantity")
			}
			holdings, err := s.bookkeeper.GetHoldings(ctx, req.UserID)
			if err != nil {
				return err
			}
			available := decimal.Zero
			for _, h := range holdings {
				if h.CryptocurrencyID == req.CryptocurrencyID {
					available = h.Balance
					break
				}
			}
			if available.LessThan(req.Quantity) {
				return bookkeeper.ErrInsufficientFunds
			}
		}
	}
	return nil
}

// GetOrder loads one order by id.
func (s *Service) GetOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := s.db.WithContext(ctx).Where("id = ?", orderID).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to find order: %w", err)
	}
	return &order, nil
}

// GetOrders returns the user's most recent orders.
func (s *Service) GetOrders(ctx context.Context, userID uuid.UUID, limit int) ([]*models.Order, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []*models.Order
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("created_at DESC").Limit(limit).Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return out, nil
}

// MarkFilled transitions the order to filled inside tx: remaining quantity
// zeroed, execution price recorded. Market orders are marked fully filled
// even when external liquidity covered only part of the requested size.
func (s *Service) MarkFilled(tx *gorm.DB, orderID uuid.UUID, executionPrice decimal.Decimal) error {
	now := time.Now()
	result := tx.Model(&models.Order{}).
		Where("id = ? AND status = ?", orderID, models.OrderStatusOpen).
		Updates(map[string]interface{}{
			"status":             models.OrderStatusFilled,
			"remaining_quantity": decimal.Zero,
			"price":              executionPrice,
			"filled_at":          now,
			"updated_at":         now,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to mark order filled: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("order %s is not open", orderID)
	}
	return nil
}
