// Package trades is the immutable trade ledger.
package trades

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/velocex/velocex/pkg/models"
)

// TradeLedger records executed trades. Insert runs inside the
// caller-supplied settlement transaction.
type TradeLedger interface {
	Insert(tx *gorm.DB, trade *models.Trade) error
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.Trade, error)
}

// Ledger implements TradeLedger on gorm.
type Ledger struct {
	logger *zap.Logger
	db     *gorm.DB
}

// NewLedger creates the trade ledger.
func NewLedger(logger *zap.Logger, db *gorm.DB) *Ledger {
	return &Ledger{logger: logger, db: db}
}

// Insert writes one trade record inside tx.
func (l *Ledger) Insert(tx *gorm.DB, trade *models.Trade) error {
	if err := tx.Create(trade).Error; err != nil {
		return fmt.Errorf("failed to insert trade: %w", err)
	}
	return nil
}

// ListByUser returns the most recent trades the user participated in.
func (l *Ledger) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.Trade, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []*models.Trade
	err := l.db.WithContext(ctx).
		Where("buyer_user_id = ? OR seller_user_id = ?", userID, userID).
		Order("created_at DESC").Limit(limit).Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list trades: %w", err)
	}
	return out, nil
}
