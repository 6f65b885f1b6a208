// Package symbols maps internal cryptocurrency identifiers to the external
// feed's symbol naming convention.
package symbols

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/velocex/velocex/pkg/models"
)

// ErrUnknownCryptocurrency is returned when the asset is not in the catalog.
var ErrUnknownCryptocurrency = errors.New("unknown cryptocurrency")

// Catalog looks up tradable assets by id.
type Catalog interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Cryptocurrency, error)
}

// GormCatalog is the database-backed asset catalog.
type GormCatalog struct {
	db *gorm.DB
}

// NewGormCatalog wraps db as a Catalog.
func NewGormCatalog(db *gorm.DB) *GormCatalog {
	return &GormCatalog{db: db}
}

func (c *GormCatalog) FindByID(ctx context.Context, id uuid.UUID) (*models.Cryptocurrency, error) {
	var crypto models.Cryptocurrency
	if err := c.db.WithContext(ctx).Where("id = ?", id).First(&crypto).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnknownCryptocurrency
		}
		return nil, fmt.Errorf("failed to find cryptocurrency: %w", err)
	}
	return &crypto, nil
}

// Resolver translates a cryptocurrency id to the feed symbol by appending
// the configured quote suffix, e.g. BTC -> BTCUSDT.
type Resolver struct {
	catalog     Catalog
	quoteSuffix string
}

// NewResolver creates a Resolver over the given catalog.
func NewResolver(catalog Catalog, quoteSuffix string) *Resolver {
	return &Resolver{catalog: catalog, quoteSuffix: quoteSuffix}
}

// Resolve returns the external feed symbol for the asset, or
// ErrUnknownCryptocurrency if the id is not in the catalog.
func (r *Resolver) Resolve(ctx context.Context, cryptocurrencyID uuid.UUID) (string, error) {
	crypto, err := r.catalog.FindByID(ctx, cryptocurrencyID)
	if err != nil {
		return "", err
	}
	return crypto.Symbol + r.quoteSuffix, nil
}
