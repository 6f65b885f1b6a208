// Package bookkeeper owns fiat accounts and per-cryptocurrency holdings.
package bookkeeper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/velocex/velocex/pkg/models"
)

// ErrInsufficientFunds is returned when a debit would take a balance below
// zero.
var ErrInsufficientFunds = errors.New("insufficient funds")

// ErrAccountNotFound is returned when the user has no fiat account.
var ErrAccountNotFound = errors.New("account not found")

// BookkeeperService defines balance operations. The two Increment methods
// run inside a caller-supplied transaction so settlement can apply them
// atomically with the trade record and order update.
type BookkeeperService interface {
	GetAccount(ctx context.Context, userID uuid.UUID) (*models.Account, error)
	GetHoldings(ctx context.Context, userID uuid.UUID) ([]*models.Holding, error)
	CreateAccount(ctx context.Context, userID uuid.UUID) (*models.Account, error)
	Deposit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (*models.Account, error)
	IncrementFiatBalance(tx *gorm.DB, userID uuid.UUID, signedAmount decimal.Decimal) error
	IncrementCryptoHolding(tx *gorm.DB, userID, cryptocurrencyID uuid.UUID, signedAmount decimal.Decimal) error
}

// Service implements BookkeeperService on gorm.
type Service struct {
	logger   *zap.Logger
	db       *gorm.DB
	currency string
}

// NewService creates a bookkeeper service. currency is the exchange's fiat
// quote currency.
func NewService(logger *zap.Logger, db *gorm.DB, currency string) (BookkeeperService, error) {
	return &Service{logger: logger, db: db, currency: currency}, nil
}

// lockForUpdate adds a row lock on dialects that support it. sqlite locks
// the whole database per write transaction, so the clause is omitted there.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

// GetAccount returns the user's fiat account.
func (s *Service) GetAccount(ctx context.Context, userID uuid.UUID) (*models.Account, error) {
	var account models.Account
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to find account: %w", err)
	}
	return &account, nil
}

// GetHoldings returns all crypto holdings for a user.
func (s *Service) GetHoldings(ctx context.Context, userID uuid.UUID) ([]*models.Holding, error) {
	var holdings []*models.Holding
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Find(&holdings).Error; err != nil {
		return nil, fmt.Errorf("failed to find holdings: %w", err)
	}
	return holdings, nil
}

// CreateAccount creates the user's fiat account with a zero balance.
func (s *Service) CreateAccount(ctx context.Context, userID uuid.UUID) (*models.Account, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Account{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to check account: %w", err)
	}
	if count > 0 {
		return nil, fmt.Errorf("account already exists")
	}

	now := time.Now()
	account := &models.Account{
		ID:        uuid.New(),
		UserID:    userID,
		Currency:  s.currency,
		Balance:   decimal.Zero,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.db.WithContext(ctx).Create(account).Error; err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}
	return account, nil
}

// Deposit credits the user's fiat account. The payment provider callback is
// simulated as a direct credit.
func (s *Service) Deposit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (*models.Account, error) {
	if amount.Sign() <= 0 {
		return nil, fmt.Errorf("deposit amount must be positive")
	}

	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", tx.Error)
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	if err := s.IncrementFiatBalance(tx, userID, amount); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.Info("deposit credited",
		zap.String("user_id", userID.String()),
		zap.String("amount", amount.String()))

	return s.GetAccount(ctx, userID)
}

// IncrementFiatBalance applies a signed amount to the user's fiat balance
// inside tx. The row is locked for the duration of the transaction so a
// concurrent deposit or withdrawal cannot be lost.
func (s *Service) IncrementFiatBalance(tx *gorm.DB, userID uuid.UUID, signedAmount decimal.Decimal) error {
	var account models.Account
	err := lockForUpdate(tx).
		Where("user_id = ?", userID).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAccountNotFound
		}
		return fmt.Errorf("failed to find account: %w", err)
	}

	newBalance := account.Balance.Add(signedAmount)
	if newBalance.Sign() < 0 {
		return ErrInsufficientFunds
	}

	account.Balance = newBalance
	account.UpdatedAt = time.Now()
	if err := tx.Save(&account).Error; err != nil {
		return fmt.Errorf("failed to save account: %w", err)
	}
	return nil
}

// IncrementCryptoHolding applies a signed amount to the user's holding of
// one cryptocurrency inside tx, creating the holding row on first credit.
func (s *Service) IncrementCryptoHolding(tx *gorm.DB, userID, cryptocurrencyID uuid.UUID, signedAmount decimal.Decimal) error {
	var holding models.Holding
	err := lockForUpdate(tx).
		Where("user_id = ? AND cryptocurrency_id = ?", userID, cryptocurrencyID).
		First(&holding).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to find holding: %w", err)
		}
		if signedAmount.Sign() < 0 {
			return ErrInsufficientFunds
		}
		now := time.Now()
		holding = models.Holding{
			ID:               uuid.New(),
			UserID:           userID,
			CryptocurrencyID: cryptocurrencyID,
			Balance:          signedAmount,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if err := tx.Create(&holding).Error; err != nil {
			return fmt.Errorf("failed to create holding: %w", err)
		}
		return nil
	}

	newBalance := holding.Balance.Add(signedAmount)
	if newBalance.Sign() < 0 {
		return ErrInsufficientFunds
	}

	holding.Balance = newBalance
	holding.UpdatedAt = time.Now()
	if err := tx.Save(&holding).Error; err != nil {
		return fmt.Errorf("failed to save holding: %w", err)
	}
	return nil
}
