package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Order sides, types and statuses
const (
	OrderSideBuy  = "buy"
	OrderSideSell = "sell"

	OrderTypeLimit  = "limit"
	OrderTypeMarket = "market"

	OrderStatusOpen      = "open"
	OrderStatusFilled    = "filled"
	OrderStatusCancelled = "cancelled"
)

// User represents a user in the system
type User struct {
	ID        uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	Email     string    `json:"email" gorm:"uniqueIndex" validate:"required,email"`
	Username  string    `json:"username" gorm:"uniqueIndex" validate:"required,min=3,max=30"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Account represents a user's fiat account
type Account struct {
	ID        uuid.UUID       `json:"id" gorm:"primaryKey;type:uuid"`
	UserID    uuid.UUID       `json:"user_id" gorm:"type:uuid;uniqueIndex"`
	Currency  string          `json:"currency"`
	Balance   decimal.Decimal `json:"balance" gorm:"type:numeric"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Holding represents a user's balance in one cryptocurrency
type Holding struct {
	ID               uuid.UUID       `json:"id" gorm:"primaryKey;type:uuid"`
	UserID           uuid.UUID       `json:"user_id" gorm:"type:uuid;index:idx_holdings_user_crypto,unique"`
	CryptocurrencyID uuid.UUID       `json:"cryptocurrency_id" gorm:"type:uuid;index:idx_holdings_user_crypto,unique"`
	Balance          decimal.Decimal `json:"balance" gorm:"type:numeric"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// Cryptocurrency is an entry in the tradable asset catalog
type Cryptocurrency struct {
	ID        uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	Name      string    `json:"name"`
	Symbol    string    `json:"symbol" gorm:"uniqueIndex"` // e.g. "BTC"
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Order represents a limit or market order.
//
// For market buy orders NotionalValue carries the fiat amount to spend and
// drives execution; for market sell orders RemainingQuantity carries the
// crypto amount to liquidate. Limit orders always carry Price and Quantity.
type Order struct {
	ID                uuid.UUID       `json:"id" gorm:"primaryKey;type:uuid"`
	UserID            uuid.UUID       `json:"user_id" gorm:"type:uuid;index"`
	CryptocurrencyID  uuid.UUID       `json:"cryptocurrency_id" gorm:"type:uuid;index"`
	Side              string          `json:"side" validate:"required,oneof=buy sell"`
	Type              string          `json:"type" validate:"required,oneof=limit market"`
	Price             decimal.Decimal `json:"price" gorm:"type:numeric"`
	Quantity          decimal.Decimal `json:"quantity" gorm:"type:numeric"`
	RemainingQuantity decimal.Decimal `json:"remaining_quantity" gorm:"type:numeric"`
	NotionalValue     decimal.Decimal `json:"notional_value" gorm:"type:numeric"`
	Status            string          `json:"status"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
	FilledAt          *time.Time      `json:"filled_at"`
}

// Trade represents one executed trade. Immutable once created; for market
// orders the counterparty is always the reference market identity.
type Trade struct {
	ID               uuid.UUID       `json:"id" gorm:"primaryKey;type:uuid"`
	OrderID          uuid.UUID       `json:"order_id" gorm:"type:uuid;index"`
	CryptocurrencyID uuid.UUID       `json:"cryptocurrency_id" gorm:"type:uuid;index"`
	Quantity         decimal.Decimal `json:"quantity" gorm:"type:numeric"`
	Price            decimal.Decimal `json:"price" gorm:"type:numeric"`
	BuyerUserID      uuid.UUID       `json:"buyer_user_id" gorm:"type:uuid;index"`
	SellerUserID     uuid.UUID       `json:"seller_user_id" gorm:"type:uuid;index"`
	CreatedAt        time.Time       `json:"created_at"`
}

// PriceLevel is one (price, quantity) rung of the external ladder.
type PriceLevel struct {
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
}

// DepthSnapshot is the best-known ladder for one symbol. Bids are sorted
// descending and asks ascending by price, best first. A snapshot is never
// mutated after publication; updates replace it wholesale.
type DepthSnapshot struct {
	Symbol    string       `json:"symbol"`
	Bids      []PriceLevel `json:"bids"`
	Asks      []PriceLevel `json:"asks"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// FillResult is the outcome of walking the ladder for one market order.
type FillResult struct {
	FilledQuantity decimal.Decimal `json:"filled_quantity"`
	FilledValue    decimal.Decimal `json:"filled_value"`
	ExecutionPrice decimal.Decimal `json:"execution_price"`
}

// OrderCreated is the event published when a market order is accepted.
type OrderCreated struct {
	OrderID   uuid.UUID `json:"order_id"`
	UserID    uuid.UUID `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// TradeExecuted is the notification pushed to the owning user after a
// settlement commits.
type TradeExecuted struct {
	Order     *Order    `json:"order"`
	TradeID   uuid.UUID `json:"trade_id"`
	Timestamp time.Time `json:"timestamp"`
}
