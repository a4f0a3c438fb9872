package event

import (
	"fmt"
	"log/slog"
	"time"

	"trainer/internal/dispatcher"
	"trainer/pkg/cloudevent"
)

// Publisher publishes lifecycle events.
//
// Publish is fire-and-forget by design: transport failure is logged and
// swallowed, never surfaced to the worker. This is the single place in the
// core where failure is intentionally non-fatal; the state store remains
// authoritative regardless of event delivery. Do not reuse this policy for
// cleanup or store operations.
type Publisher interface {
	Publish(ev *Event)
}

// Source identifies the event producer in the CloudEvent envelope.
const Source = "trainer-worker"

// DispatcherPublisher hands events to the async dispatcher for webhook
// delivery as CloudEvents.
type DispatcherPublisher struct {
	dispatcher  dispatcher.Dispatcher
	destination string
	signingKey  string
	logger      *slog.Logger
}

// NewDispatcherPublisher creates a publisher delivering to destination.
func NewDispatcherPublisher(d dispatcher.Dispatcher, destination, signingKey string) *DispatcherPublisher {
	return &DispatcherPublisher{
		dispatcher:  d,
		destination: destination,
		signingKey:  signingKey,
		logger:      slog.With("component", "publisher"),
	}
}

// Publish queues the event for delivery. Queue-full and any other dispatch
// failure is swallowed after logging.
func (p *DispatcherPublisher) Publish(ev *Event) {
	ce := cloudevent.New(
		ev.Type,
		Source,
		ev.RunID,
		fmt.Sprintf("%s-%d", ev.RunID, time.Now().UnixNano()),
		ev.Data(),
	)
	err := p.dispatcher.Dispatch(&dispatcher.Event{
		Payload:     ce,
		Destination: p.destination,
		SigningKey:  p.signingKey,
	})
	if err != nil {
		p.logger.Warn("Event publish failed, dropping", "type", ev.Type, "runId", ev.RunID, "error", err)
	}
}

// NopPublisher discards all events. Used when no callback URL is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(*Event) {}

var (
	_ Publisher = (*DispatcherPublisher)(nil)
	_ Publisher = NopPublisher{}
)
