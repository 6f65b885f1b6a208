// Package notify delivers trade-executed events to the owning user.
package notify

import (
	"encoding/json"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/velocex/velocex/pkg/metrics"
	"github.com/velocex/velocex/pkg/models"
)

// Transport delivers a payload to every connection a user has open.
// Delivery is fire and forget from the relay's perspective.
type Transport interface {
	PublishToUser(userID uuid.UUID, payload []byte)
}

// Relay publishes exactly one trade-executed event per committed
// settlement. It is only invoked after commit, so a rolled-back settlement
// never produces a notification.
type Relay struct {
	logger     *zap.Logger
	transports []Transport
}

// NewRelay creates a relay fanning out to the given transports.
func NewRelay(logger *zap.Logger, transports ...Transport) *Relay {
	return &Relay{logger: logger, transports: transports}
}

// NotifyTradeExecuted serializes the event and hands it to each transport.
func (r *Relay) NotifyTradeExecuted(userID uuid.UUID, event models.TradeExecuted) {
	payload, err := json.Marshal(map[string]interface{}{
		"type": "trade_executed",
		"data": event,
	})
	if err != nil {
		r.logger.Error("failed to marshal trade notification",
			zap.String("user_id", userID.String()),
			zap.Error(err))
		return
	}

	for _, t := range r.transports {
		t.PublishToUser(userID, payload)
	}
	metrics.NotificationsPublished.Inc()

	r.logger.Debug("trade notification published",
		zap.String("user_id", userID.String()),
		zap.String("trade_id", event.TradeID.String()))
}
