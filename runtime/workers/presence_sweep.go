package workers

import (
	"context"
	"log/slog"
	"time"

	"collab-lab/contract"
	"collab-lab/domain"
	"collab-lab/domain/event"
	"collab-lab/presence"

	"github.com/google/uuid"
)

var _ contract.Worker = (*PresenceSweepWorker)(nil)

// PresenceSweepWorker periodically expires stale typing indicators.
// Typing state decays on its own even when a client never sends an
// explicit stop, so every tick that changed a room produces a fresh
// presence snapshot for that room.
type PresenceSweepWorker struct {
	aggregator *presence.Aggregator
	events     chan event.DomainEvent
	interval   time.Duration
	log        *slog.Logger
}

func NewPresenceSweepWorker(
	aggregator *presence.Aggregator,
	events chan event.DomainEvent,
	interval time.Duration,
	log *slog.Logger) *PresenceSweepWorker {
	return &PresenceSweepWorker{
		aggregator: aggregator,
		events:     events,
		interval:   interval,
		log:        log,
	}
}

func (w *PresenceSweepWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping worker")
			return ctx.Err()
		case <-ticker.C:
			for _, roomID := range w.aggregator.Sweep() {
				if err := w.publish(ctx, roomID); err != nil {
					return err
				}
			}
		}
	}
}

func (w *PresenceSweepWorker) publish(ctx context.Context, roomID domain.RoomID) error {
	snapshot := w.aggregator.Snapshot(roomID)
	evt := event.PresenceChanged{
		ID:      uuid.New(),
		Room:    roomID,
		Present: snapshot.Present,
		Typing:  snapshot.Typing,
		At:      time.Now().UTC(),
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case w.events <- evt:
		return nil
	}
}
