package events

import (
	"context"
	"sync"

	"github.com/reelpack/reelpack/pkg/interfaces"
)

// LocalEventBus dispatches domain events to in-process subscribers. Handler
// errors are logged and never propagate to the publisher; a failing handler
// does not stop delivery to the remaining subscribers.
type LocalEventBus struct {
	mu       sync.RWMutex
	handlers map[string][]interfaces.EventHandler
	logger   interfaces.Logger
	inflight sync.WaitGroup
}

// NewLocalEventBus creates an empty bus.
func NewLocalEventBus(logger interfaces.Logger) *LocalEventBus {
	return &LocalEventBus{
		handlers: make(map[string][]interfaces.EventHandler),
		logger:   logger,
	}
}

// Publish delivers the event to every subscriber of its type, synchronously
// and in subscription order.
func (b *LocalEventBus) Publish(ctx context.Context, event interfaces.Event) error {
	b.mu.RLock()
	handlers := append([]interfaces.EventHandler(nil), b.handlers[event.EventType()]...)
	b.mu.RUnlock()

	for _, handler := range handlers {
		if err := handler.Handle(ctx, event); err != nil {
			b.logger.Error("event handler failed",
				interfaces.String("event_type", event.EventType()),
				interfaces.String("handler", handler.EventType()),
				interfaces.Error(err))
		}
	}
	return nil
}

// PublishAsync delivers the event on a new goroutine. Drain accounts for it.
func (b *LocalEventBus) PublishAsync(ctx context.Context, event interfaces.Event) {
	b.inflight.Add(1)
	go func() {
		defer b.inflight.Done()
		if err := b.Publish(ctx, event); err != nil {
			b.logger.Error("async event publish failed",
				interfaces.String("event_type", event.EventType()),
				interfaces.Error(err))
		}
	}()
}

// Subscribe registers a handler for the given event type.
func (b *LocalEventBus) Subscribe(eventType string, handler interfaces.EventHandler) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)
	b.logger.Debug("event handler subscribed",
		interfaces.String("event_type", eventType),
		interfaces.String("handler", handler.EventType()))
	return nil
}

// Unsubscribe removes a previously registered handler. Unknown handlers are
// ignored.
func (b *LocalEventBus) Unsubscribe(eventType string, handler interfaces.EventHandler) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	handlers := b.handlers[eventType]
	for i, h := range handlers {
		if h == handler {
			b.handlers[eventType] = append(handlers[:i], handlers[i+1:]...)
			break
		}
	}
	return nil
}

// Drain blocks until every in-flight async publish has finished. Called on
// shutdown so events raised by the last mutations still reach the relay.
func (b *LocalEventBus) Drain() {
	b.inflight.Wait()
}
