package bus

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/velocex/velocex/pkg/models"
)

// MemoryBus is the in-process OrderEventBus used for single-node
// deployments and tests. Events are delivered in order by a single worker
// goroutine, so one invocation never shares state with another.
type MemoryBus struct {
	logger *zap.Logger
	events chan models.OrderCreated

	// mu guards handlers and closed; publishers hold the read lock for the
	// whole send so Close cannot close the channel under them.
	mu       sync.RWMutex
	handlers []Handler
	closed   bool
	done     chan struct{}
}

// NewMemoryBus creates a memory bus with the given event buffer size.
func NewMemoryBus(logger *zap.Logger, buffer int) *MemoryBus {
	if buffer <= 0 {
		buffer = 256
	}
	b := &MemoryBus{
		logger: logger,
		events: make(chan models.OrderCreated, buffer),
		done:   make(chan struct{}),
	}
	go b.run()
	return b
}

func (b *MemoryBus) run() {
	defer close(b.done)
	for event := range b.events {
		b.mu.RLock()
		handlers := b.handlers
		b.mu.RUnlock()
		for _, h := range handlers {
			if err := h(context.Background(), event); err != nil {
				b.logger.Error("order event handler failed",
					zap.String("order_id", event.OrderID.String()),
					zap.Error(err))
			}
		}
	}
}

// Publish enqueues the event, blocking when the buffer is full.
func (b *MemoryBus) Publish(ctx context.Context, event models.OrderCreated) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}

	select {
	case b.events <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe registers a handler for subsequent events.
func (b *MemoryBus) Subscribe(handler Handler) {
	b.mu.Lock()
	b.handlers = append(b.handlers, handler)
	b.mu.Unlock()
}

// Close stops intake and waits for in-flight deliveries to drain.
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	close(b.events)
	<-b.done
	return nil
}
