package database

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/velocex/velocex/pkg/models"
)

// Migrate creates the schema for all persisted models.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.Account{},
		&models.Holding{},
		&models.Cryptocurrency{},
		&models.Order{},
		&models.Trade{},
	); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// SeedReferenceData ensures the fixed reference counterparty user and its
// fiat account exist. The counterparty represents the external market on
// every trade; its balances are bookkeeping only.
func SeedReferenceData(db *gorm.DB, counterpartyID uuid.UUID, quoteCurrency string) error {
	now := time.Now()

	user := models.User{
		ID:        counterpartyID,
		Email:     "market@velocex.internal",
		Username:  "reference-market",
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := db.Where("id = ?", counterpartyID).FirstOrCreate(&user).Error; err != nil {
		return fmt.Errorf("failed to seed counterparty user: %w", err)
	}

	account := models.Account{
		ID:        uuid.New(),
		UserID:    counterpartyID,
		Currency:  quoteCurrency,
		Balance:   decimal.Zero,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := db.Where("user_id = ?", counterpartyID).FirstOrCreate(&account).Error; err != nil {
		return fmt.Errorf("failed to seed counterparty account: %w", err)
	}

	return nil
}

// SeedCryptocurrencies ensures the given symbol to name entries exist in
// the tradable asset catalog.
func SeedCryptocurrencies(db *gorm.DB, assets map[string]string) error {
	now := time.Now()
	for symbol, name := range assets {
		entry := models.Cryptocurrency{
			ID:        uuid.New(),
			Symbol:    symbol,
			Name:      name,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := db.Where("symbol = ?", symbol).FirstOrCreate(&entry).Error; err != nil {
			return fmt.Errorf("failed to seed cryptocurrency %s: %w", symbol, err)
		}
	}
	return nil
}
