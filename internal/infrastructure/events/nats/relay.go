// Package nats relays domain events from the in-process bus to a NATS
// JetStream stream for external consumers. Relay failures never affect the
// operation that produced the event.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/reelpack/reelpack/pkg/interfaces"
)

// Relay forwards local domain events to JetStream.
type Relay struct {
	conn     *nats.Conn
	js       nats.JetStreamContext
	stream   string
	bus      interfaces.EventBus
	logger   interfaces.Logger
	handlers []*relayHandler
}

// envelope is the wire shape of a relayed event.
type envelope struct {
	Type        string      `json:"type"`
	Timestamp   int64       `json:"timestamp"`
	AggregateID string      `json:"aggregate_id,omitempty"`
	Event       interface{} `json:"event"`
}

// NewRelay connects to NATS and ensures the stream exists.
func NewRelay(url, stream string, bus interfaces.EventBus, logger interfaces.Logger) (*Relay, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	streamConfig := &nats.StreamConfig{
		Name:      stream,
		Subjects:  []string{stream + ".>"},
		Storage:   nats.FileStorage,
		Retention: nats.LimitsPolicy,
		MaxAge:    7 * 24 * time.Hour,
		Discard:   nats.DiscardOld,
		Replicas:  1,
	}
	if _, err := js.AddStream(streamConfig); err != nil && err != nats.ErrStreamNameAlreadyInUse {
		conn.Close()
		return nil, fmt.Errorf("create stream: %w", err)
	}

	return &Relay{
		conn:   conn,
		js:     js,
		stream: stream,
		bus:    bus,
		logger: logger,
	}, nil
}

// Attach subscribes the relay to the given local event types.
func (r *Relay) Attach(eventTypes ...string) error {
	for _, eventType := range eventTypes {
		handler := &relayHandler{relay: r, eventType: eventType}
		if err := r.bus.Subscribe(eventType, handler); err != nil {
			return err
		}
		r.handlers = append(r.handlers, handler)
	}
	return nil
}

// Close unsubscribes every handler and drains the connection. Teardown is
// deterministic: after Close returns no further events are relayed.
func (r *Relay) Close() {
	for _, handler := range r.handlers {
		if err := r.bus.Unsubscribe(handler.eventType, handler); err != nil {
			r.logger.Warn("relay unsubscribe failed",
				interfaces.String("event_type", handler.eventType),
				interfaces.Error(err))
		}
	}
	r.handlers = nil
	r.conn.Close()
}

func (r *Relay) publish(ctx context.Context, event interfaces.Event) error {
	payload, err := json.Marshal(envelope{
		Type:        event.EventType(),
		Timestamp:   event.Timestamp(),
		AggregateID: event.AggregateID(),
		Event:       event,
	})
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	subject := fmt.Sprintf("%s.%s", r.stream, event.EventType())
	if _, err := r.js.Publish(subject, payload, nats.Context(ctx)); err != nil {
		return fmt.Errorf("publish to %s: %w", subject, err)
	}
	return nil
}

// relayHandler forwards one event type.
type relayHandler struct {
	relay     *Relay
	eventType string
}

func (h *relayHandler) Handle(ctx context.Context, event interfaces.Event) error {
	if err := h.relay.publish(ctx, event); err != nil {
		// Logged by the bus; the producing operation is unaffected.
		return err
	}
	return nil
}

func (h *relayHandler) EventType() string {
	return "nats-relay:" + h.eventType
}
