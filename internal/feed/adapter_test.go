package feed

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/velocex/velocex/internal/depth"
)

func TestParseDepthMessage(t *testing.T) {
	raw := []byte(`{
		"lastUpdateId": 1027024,
		"bids": [["4.00000000", "431.00000000"], ["3.99000000", "12.00000000"]],
		"asks": [["4.00000200", "12.00000000"]]
	}`)

	bids, asks, err := ParseDepthMessage(raw)
	require.NoError(t, err)
	require.Len(t, bids, 2)
	require.Len(t, asks, 1)

	assert.True(t, bids[0].Price.Equal(decimal.NewFromInt(4)))
	assert.True(t, bids[0].Quantity.Equal(decimal.NewFromInt(431)))
	assert.True(t, asks[0].Price.Equal(decimal.RequireFromString("4.000002")))
}

func TestParseDepthMessageDropsZeroQuantityLevels(t *testing.T) {
	raw := []byte(`{"bids": [["100.0", "0.00000000"], ["99.5", "2"]], "asks": []}`)

	bids, asks, err := ParseDepthMessage(raw)
	require.NoError(t, err)
	require.Len(t, bids, 1)
	assert.True(t, bids[0].Price.Equal(decimal.RequireFromString("99.5")))
	assert.Empty(t, asks)
}

func TestParseDepthMessageRejectsMalformedPayloads(t *testing.T) {
	cases := map[string]string{
		"not json":          `{"bids": [`,
		"bad price":         `{"bids": [["abc", "1"]], "asks": []}`,
		"bad quantity":      `{"bids": [["100", "xyz"]], "asks": []}`,
		"negative price":    `{"bids": [["-100", "1"]], "asks": []}`,
		"negative quantity": `{"asks": [["100", "-1"]], "bids": []}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, err := ParseDepthMessage([]byte(raw))
			assert.Error(t, err)
		})
	}
}

func TestSimulatorPublishesLadders(t *testing.T) {
	cache := depth.NewCache(zap.NewNop())
	seeds := map[string]decimal.Decimal{"BTCUSDT": decimal.NewFromInt(50000)}
	sim := NewSimulator(zap.NewNop(), cache, seeds, 5, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sim.Start(ctx)

	require.Eventually(t, func() bool {
		_, err := cache.Snapshot("BTCUSDT")
		return err == nil
	}, time.Second, 5*time.Millisecond)

	snap, err := cache.Snapshot("BTCUSDT")
	require.NoError(t, err)
	require.Len(t, snap.Bids, 5)
	require.Len(t, snap.Asks, 5)

	// Bids sit below asks and both sides are sorted best-first.
	assert.True(t, snap.Bids[0].Price.LessThan(snap.Asks[0].Price))
	assert.True(t, snap.Bids[0].Price.GreaterThan(snap.Bids[4].Price))
	assert.True(t, snap.Asks[0].Price.LessThan(snap.Asks[4].Price))
}
