// Package bus decouples order creation from market order execution with an
// explicit event bus.
package bus

import (
	"context"
	"errors"

	"github.com/velocex/velocex/pkg/models"
)

// ErrClosed is returned by Publish after the bus has been closed.
var ErrClosed = errors.New("event bus closed")

// Handler consumes one order-created event. A returned error marks the
// delivery as failed; the bus logs it but does not redeliver, so execution
// aborts are terminal for the attempt.
type Handler func(ctx context.Context, event models.OrderCreated) error

// OrderEventBus carries market-order-created events from the order
// subsystem to the execution bridge.
type OrderEventBus interface {
	Publish(ctx context.Context, event models.OrderCreated) error
	Subscribe(handler Handler)
	Close() error
}
