package feed

import (
	"context"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/velocex/velocex/internal/depth"
	"github.com/velocex/velocex/pkg/models"
)

// Simulator publishes synthetic depth for local development when no
// external feed is reachable. Mid prices follow a bounded random walk
// and a fixed ladder of levels is built around them on each tick.
type Simulator struct {
	logger   *zap.Logger
	cache    *depth.Cache
	levels   int
	interval time.Duration
	rng      *rand.Rand

	mids map[string]decimal.Decimal
}

// NewSimulator creates a simulator seeding each symbol at its given mid
// price.
func NewSimulator(logger *zap.Logger, cache *depth.Cache, seeds map[string]decimal.Decimal, levels int, interval time.Duration) *Simulator {
	if levels <= 0 {
		levels = 20
	}
	if interval <= 0 {
		interval = time.Second
	}
	mids := make(map[string]decimal.Decimal, len(seeds))
	for symbol, mid := range seeds {
		mids[symbol] = mid
	}
	return &Simulator{
		logger:   logger,
		cache:    cache,
		levels:   levels,
		interval: interval,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		mids:     mids,
	}
}

// Start runs the tick loop until ctx is cancelled. The simulator is
// single-goroutine; all state stays confined to this loop.
func (s *Simulator) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.publishAll()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.walk()
				s.publishAll()
			}
		}
	}()
	s.logger.Info("depth simulator started",
		zap.Int("symbols", len(s.mids)),
		zap.Duration("interval", s.interval))
}

// walk nudges each mid by up to ±0.2%.
func (s *Simulator) walk() {
	for symbol, mid := range s.mids {
		drift := decimal.NewFromFloat((s.rng.Float64() - 0.5) * 0.004)
		s.mids[symbol] = mid.Add(mid.Mul(drift))
	}
}

func (s *Simulator) publishAll() {
	for symbol, mid := range s.mids {
		bids, asks := s.ladder(mid)
		s.cache.Update(symbol, bids, asks)
	}
}

// ladder builds levels stepped 0.05% apart from the mid, with random
// quantities so fills vary between ticks.
func (s *Simulator) ladder(mid decimal.Decimal) (bids, asks []models.PriceLevel) {
	step := mid.Mul(decimal.NewFromFloat(0.0005))
	bids = make([]models.PriceLevel, 0, s.levels)
	asks = make([]models.PriceLevel, 0, s.levels)
	for i := 1; i <= s.levels; i++ {
		offset := step.Mul(decimal.NewFromInt(int64(i)))
		quantity := decimal.NewFromFloat(0.1 + s.rng.Float64()*2)
		bids = append(bids, models.PriceLevel{Price: mid.Sub(offset), Quantity: quantity})
		asks = append(asks, models.PriceLevel{Price: mid.Add(offset), Quantity: quantity})
	}
	return bids, asks
}
