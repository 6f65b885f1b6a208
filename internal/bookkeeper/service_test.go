package bookkeeper

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/velocex/velocex/pkg/models"
)

func setupService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.Account{}, &models.Holding{}))
	svc, err := NewService(zap.NewNop(), db, "USD")
	require.NoError(t, err)
	return svc.(*Service), db
}

func TestCreateAccountAndDeposit(t *testing.T) {
	s, _ := setupService(t)
	ctx := context.Background()
	userID := uuid.New()

	_, err := s.CreateAccount(ctx, userID)
	require.NoError(t, err)

	account, err := s.Deposit(ctx, userID, decimal.RequireFromString("250.75"))
	require.NoError(t, err)
	assert.True(t, account.Balance.Equal(decimal.RequireFromString("250.75")))

	_, err = s.Deposit(ctx, userID, decimal.Zero)
	assert.Error(t, err)
}

func TestIncrementFiatBalanceRejectsOverdraft(t *testing.T) {
	s, db := setupService(t)
	ctx := context.Background()
	userID := uuid.New()

	_, err := s.CreateAccount(ctx, userID)
	require.NoError(t, err)
	_, err = s.Deposit(ctx, userID, decimal.NewFromInt(100))
	require.NoError(t, err)

	err = db.Transaction(func(tx *gorm.DB) error {
		return s.IncrementFiatBalance(tx, userID, decimal.NewFromInt(-150))
	})
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	account, err := s.GetAccount(ctx, userID)
	require.NoError(t, err)
	assert.True(t, account.Balance.Equal(decimal.NewFromInt(100)))
}

func TestIncrementCryptoHoldingCreatesOnFirstCredit(t *testing.T) {
	s, db := setupService(t)
	ctx := context.Background()
	userID := uuid.New()
	cryptoID := uuid.New()

	err := db.Transaction(func(tx *gorm.DB) error {
		return s.IncrementCryptoHolding(tx, userID, cryptoID, decimal.RequireFromString("0.5"))
	})
	require.NoError(t, err)

	holdings, err := s.GetHoldings(ctx, userID)
	require.NoError(t, err)
	require.Len(t, holdings, 1)
	assert.True(t, holdings[0].Balance.Equal(decimal.RequireFromString("0.5")))

	// debit without a holding row fails
	err = db.Transaction(func(tx *gorm.DB) error {
		return s.IncrementCryptoHolding(tx, userID, uuid.New(), decimal.RequireFromString("-1"))
	})
	assert.ErrorIs(t, err, ErrInsufficientFunds)
}

func TestConcurrentDeposits(t *testing.T) {
	s, _ := setupService(t)
	ctx := context.Background()
	userID := uuid.New()

	_, err := s.CreateAccount(ctx, userID)
	require.NoError(t, err)

	var wg sync.WaitGroup
	n := 50
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Deposit(ctx, userID, decimal.NewFromInt(10)); err != nil {
				t.Errorf("deposit failed: %v", err)
			}
		}()
	}
	wg.Wait()

	account, err := s.GetAccount(ctx, userID)
	require.NoError(t, err)
	assert.True(t, account.Balance.Equal(decimal.NewFromInt(int64(10*n))),
		"balance %s", account.Balance)
}
