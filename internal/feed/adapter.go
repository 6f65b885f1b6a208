// Package feed streams external market depth into the depth cache.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/velocex/velocex/internal/depth"
	"github.com/velocex/velocex/pkg/models"
)

const (
	initialBackoff = time.Second
	maxBackoff     = 30 * time.Second
)

// depthMessage is the wire format of a partial depth update: levels are
// [price, quantity] string pairs, already sorted best-first.
type depthMessage struct {
	LastUpdateID int64       `json:"lastUpdateId"`
	Bids         [][2]string `json:"bids"`
	Asks         [][2]string `json:"asks"`
}

// Adapter maintains one WebSocket subscription per tracked symbol and
// replaces the cache snapshot on every update. It owns all parsing; the
// cache only ever sees sorted decimal levels.
type Adapter struct {
	logger  *zap.Logger
	cache   *depth.Cache
	baseURL string
	limit   int
}

// NewAdapter creates a feed adapter publishing into cache. baseURL is the
// stream endpoint, e.g. wss://stream.binance.com:9443/ws.
func NewAdapter(logger *zap.Logger, cache *depth.Cache, baseURL string, limit int) *Adapter {
	if limit <= 0 {
		limit = 20
	}
	return &Adapter{logger: logger, cache: cache, baseURL: baseURL, limit: limit}
}

// Start launches one streaming loop per symbol. Loops reconnect with
// capped backoff until ctx is cancelled.
func (a *Adapter) Start(ctx context.Context, symbols []string) {
	for _, symbol := range symbols {
		go a.streamSymbol(ctx, symbol)
	}
}

func (a *Adapter) streamSymbol(ctx context.Context, symbol string) {
	url := fmt.Sprintf("%s/%s@depth%d", a.baseURL, strings.ToLower(symbol), a.limit)
	backoff := initialBackoff

	for {
		if ctx.Err() != nil {
			return
		}

		err := a.consume(ctx, symbol, url)
		if ctx.Err() != nil {
			return
		}
		a.logger.Warn("depth stream disconnected, reconnecting",
			zap.String("symbol", symbol),
			zap.Duration("backoff", backoff),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// consume reads one connection until it fails or ctx is cancelled.
func (a *Adapter) consume(ctx context.Context, symbol, url string) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("failed to dial depth stream: %w", err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		bids, asks, err := ParseDepthMessage(raw)
		if err != nil {
			a.logger.Error("invalid depth message",
				zap.String("symbol", symbol),
				zap.Error(err))
			continue
		}
		a.cache.Update(symbol, bids, asks)
	}
}

// ParseDepthMessage decodes a depth payload into decimal price levels.
// Prices and quantities arrive as strings to preserve precision; levels
// with zero quantity are dropped (the feed uses them to clear a level).
func ParseDepthMessage(raw []byte) (bids, asks []models.PriceLevel, err error) {
	var msg depthMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, nil, fmt.Errorf("failed to decode depth message: %w", err)
	}

	bids, err = parseLevels(msg.Bids)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid bid level: %w", err)
	}
	asks, err = parseLevels(msg.Asks)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid ask level: %w", err)
	}
	return bids, asks, nil
}

func parseLevels(raw [][2]string) ([]models.PriceLevel, error) {
	out := make([]models.PriceLevel, 0, len(raw))
	for _, pair := range raw {
		price, err := decimal.NewFromString(pair[0])
		if err != nil {
			return nil, fmt.Errorf("price %q: %w", pair[0], err)
		}
		quantity, err := decimal.NewFromString(pair[1])
		if err != nil {
			return nil, fmt.Errorf("quantity %q: %w", pair[1], err)
		}
		if price.Sign() <= 0 {
			return nil, fmt.Errorf("price %q is not positive", pair[0])
		}
		if quantity.Sign() < 0 {
			return nil, fmt.Errorf("quantity %q is negative", pair[1])
		}
		if quantity.IsZero() {
			continue
		}
		out = append(out, models.PriceLevel{Price: price, Quantity: quantity})
	}
	return out, nil
}
