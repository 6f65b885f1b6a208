package notify

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/velocex/velocex/pkg/models"
)

type captureTransport struct {
	users    []uuid.UUID
	payloads [][]byte
}

func (c *captureTransport) PublishToUser(userID uuid.UUID, payload []byte) {
	c.users = append(c.users, userID)
	c.payloads = append(c.payloads, payload)
}

func TestRelayPublishesOncePerSettlement(t *testing.T) {
	transport := &captureTransport{}
	relay := NewRelay(zap.NewNop(), transport)

	userID := uuid.New()
	event := models.TradeExecuted{
		Order:   &models.Order{ID: uuid.New(), UserID: userID, Status: models.OrderStatusFilled},
		TradeID: uuid.New(),
	}
	relay.NotifyTradeExecuted(userID, event)

	require.Len(t, transport.payloads, 1)
	assert.Equal(t, userID, transport.users[0])

	var decoded struct {
		Type string `json:"type"`
		Data struct {
			TradeID uuid.UUID `json:"trade_id"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(transport.payloads[0], &decoded))
	assert.Equal(t, "trade_executed", decoded.Type)
	assert.Equal(t, event.TradeID, decoded.Data.TradeID)
}

func TestRelayFansOutToAllTransports(t *testing.T) {
	a, b := &captureTransport{}, &captureTransport{}
	relay := NewRelay(zap.NewNop(), a, b)

	relay.NotifyTradeExecuted(uuid.New(), models.TradeExecuted{
		Order:   &models.Order{ID: uuid.New()},
		TradeID: uuid.New(),
	})

	assert.Len(t, a.payloads, 1)
	assert.Len(t, b.payloads, 1)
}

func TestHubPublishToUnknownUserIsNoop(t *testing.T) {
	hub := NewHub(zap.NewNop())
	// no connections registered; must not panic
	hub.PublishToUser(uuid.New(), []byte(`{}`))
}
