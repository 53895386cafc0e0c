package workers

import (
	"context"
	"log/slog"
	"time"

	"collab-lab/contract"
	"collab-lab/domain/event"
)

var _ contract.Worker = (*EventFanoutWorker)(nil)

// EventFanoutWorker is the single dispatch point between the pipeline
// and the outside world. Each event goes to the permanent sinks
// (persistence, search, projections) and to every sink currently
// subscribed to the event's room. A slow or failing sink is logged and
// skipped; it never stalls the other sinks or the pipeline.
type EventFanoutWorker struct {
	registry    contract.IRegistry
	permanent   []contract.EventSink
	events      chan event.DomainEvent
	telemetry   chan event.DomainEvent
	sinkTimeout time.Duration
	log         *slog.Logger
}

func NewEventFanoutWorker(
	registry contract.IRegistry,
	permanent []contract.EventSink,
	events chan event.DomainEvent,
	telemetry chan event.DomainEvent,
	sinkTimeout time.Duration,
	log *slog.Logger) *EventFanoutWorker {
	return &EventFanoutWorker{
		registry:    registry,
		permanent:   permanent,
		events:      events,
		telemetry:   telemetry,
		sinkTimeout: sinkTimeout,
		log:         log,
	}
}

func (w *EventFanoutWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping worker")
			return ctx.Err()
		case evt, ok := <-w.events:
			if !ok {
				w.log.Debug("Channel is closed")
				return nil
			}
			w.dispatch(ctx, evt)
		}
	}
}

func (w *EventFanoutWorker) dispatch(ctx context.Context, evt event.DomainEvent) {
	for _, sink := range w.permanent {
		w.deliver(ctx, sink, evt)
	}
	for _, sink := range w.registry.GetSinksForRoom(evt.RoomID()) {
		w.deliver(ctx, sink, evt)
	}

	if w.telemetry != nil {
		// Best effort: metrics are never worth blocking delivery
		select {
		case w.telemetry <- evt:
		default:
		}
	}
}

func (w *EventFanoutWorker) deliver(ctx context.Context, sink contract.EventSink, evt event.DomainEvent) {
	sinkCtx, cancel := context.WithTimeout(ctx, w.sinkTimeout)
	defer cancel()

	if err := sink.Consume(sinkCtx, evt); err != nil {
		w.log.Warn("Sink rejected event",
			"room", evt.RoomID(), "event", evt.EventID(), "error", err)
	}
}
