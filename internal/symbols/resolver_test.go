package symbols

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/velocex/velocex/pkg/models"
)

func setupCatalog(t *testing.T) (*GormCatalog, uuid.UUID) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.Cryptocurrency{}))

	btc := models.Cryptocurrency{ID: uuid.New(), Name: "Bitcoin", Symbol: "BTC"}
	require.NoError(t, db.Create(&btc).Error)
	return NewGormCatalog(db), btc.ID
}

func TestResolveKnownAsset(t *testing.T) {
	catalog, btcID := setupCatalog(t)
	r := NewResolver(catalog, "USDT")

	symbol, err := r.Resolve(context.Background(), btcID)
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDT", symbol)
}

func TestResolveUnknownAsset(t *testing.T) {
	catalog, _ := setupCatalog(t)
	r := NewResolver(catalog, "USDT")

	_, err := r.Resolve(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrUnknownCryptocurrency)
}
