package projection

import (
	"context"
	"sync"

	"collab-lab/contract"
	"collab-lab/domain"
	"collab-lab/domain/event"

	"github.com/google/uuid"
)

var _ contract.EventSink = (*Timeline)(nil)

// Timeline is an in-memory, per-room view of enriched messages in the
// order fan-out delivered them. Delivery is at-least-once, so events are
// deduplicated by id before they touch the view.
type Timeline struct {
	mu       sync.RWMutex
	messages map[domain.RoomID][]event.MessageEnriched
	seenIDs  map[uuid.UUID]struct{}
}

func NewTimeline() *Timeline {
	return &Timeline{
		messages: make(map[domain.RoomID][]event.MessageEnriched),
		seenIDs:  make(map[uuid.UUID]struct{}),
	}
}

func (t *Timeline) Consume(_ context.Context, e event.DomainEvent) error {
	enriched, ok := e.(event.MessageEnriched)
	if !ok {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, seen := t.seenIDs[enriched.EventID()]; seen {
		return nil
	}
	t.seenIDs[enriched.EventID()] = struct{}{}
	t.messages[enriched.Room] = append(t.messages[enriched.Room], enriched)
	return nil
}

// Messages returns a copy of the room's timeline, oldest first.
func (t *Timeline) Messages(roomID domain.RoomID) []event.MessageEnriched {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]event.MessageEnriched(nil), t.messages[roomID]...)
}
