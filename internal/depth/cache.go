// Package depth maintains the latest externally observed order book ladder
// per symbol.
package depth

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/velocex/velocex/pkg/metrics"
	"github.com/velocex/velocex/pkg/models"
)

// ErrNotAvailable is returned when no snapshot has ever been received for a
// symbol.
var ErrNotAvailable = errors.New("depth snapshot not available")

// Cache exposes the freshest bid/ask ladder per symbol. Updates replace the
// snapshot pointer wholesale, so readers always observe a complete ladder:
// either the previous one or the new one, never a mix. Snapshots are
// immutable after publication.
type Cache struct {
	logger    *zap.Logger
	mu        sync.RWMutex
	snapshots map[string]*models.DepthSnapshot
}

// NewCache creates an empty depth cache.
func NewCache(logger *zap.Logger) *Cache {
	return &Cache{
		logger:    logger,
		snapshots: make(map[string]*models.DepthSnapshot),
	}
}

// Update replaces the snapshot for symbol. The levels must arrive already
// sorted best-first (bids descending, asks ascending); the feed adapter
// guarantees that. The slices are owned by the cache after the call.
func (c *Cache) Update(symbol string, bids, asks []models.PriceLevel) {
	snap := &models.DepthSnapshot{
		Symbol:    symbol,
		Bids:      bids,
		Asks:      asks,
		UpdatedAt: time.Now(),
	}

	c.mu.Lock()
	c.snapshots[symbol] = snap
	c.mu.Unlock()

	metrics.DepthUpdates.WithLabelValues(symbol).Inc()
	c.logger.Debug("depth snapshot replaced",
		zap.String("symbol", symbol),
		zap.Int("bids", len(bids)),
		zap.Int("asks", len(asks)))
}

// Snapshot returns the current ladder for symbol, or ErrNotAvailable if the
// feed has never delivered one.
func (c *Cache) Snapshot(symbol string) (*models.DepthSnapshot, error) {
	c.mu.RLock()
	snap, ok := c.snapshots[symbol]
	c.mu.RUnlock()
	if !ok {
		return nil, ErrNotAvailable
	}
	return snap, nil
}
