package projection

import (
	"context"
	"sort"
	"sync"

	"collab-lab/contract"
	"collab-lab/domain"
	"collab-lab/domain/event"

	"github.com/google/uuid"
)

var _ contract.EventSink = (*BoardView)(nil)

// BoardView tracks the last known position of every reordered item, per
// room, and renders containers as position-sorted item lists. It only
// ever sees ItemReordered events, so a freshly created item appears here
// after its first move.
type BoardView struct {
	mu      sync.RWMutex
	items   map[domain.RoomID]map[uuid.UUID]domain.OrderedItem
	seenIDs map[uuid.UUID]struct{}
}

func NewBoardView() *BoardView {
	return &BoardView{
		items:   make(map[domain.RoomID]map[uuid.UUID]domain.OrderedItem),
		seenIDs: make(map[uuid.UUID]struct{}),
	}
}

func (v *BoardView) Consume(_ context.Context, e event.DomainEvent) error {
	reordered, ok := e.(event.ItemReordered)
	if !ok {
		return nil
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if _, seen := v.seenIDs[reordered.EventID()]; seen {
		return nil
	}
	v.seenIDs[reordered.EventID()] = struct{}{}

	roomItems, ok := v.items[reordered.Room]
	if !ok {
		roomItems = make(map[uuid.UUID]domain.OrderedItem)
		v.items[reordered.Room] = roomItems
	}
	roomItems[reordered.ItemID] = domain.OrderedItem{
		ID:          reordered.ItemID,
		ContainerID: reordered.ContainerID,
		Position:    reordered.Position,
	}
	return nil
}

// Container returns the room's items currently placed in the given
// container, sorted by position.
func (v *BoardView) Container(roomID domain.RoomID, containerID uuid.UUID) []domain.OrderedItem {
	v.mu.RLock()
	defer v.mu.RUnlock()

	var items []domain.OrderedItem
	for _, item := range v.items[roomID] {
		if item.ContainerID == containerID {
			items = append(items, item)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Position < items[j].Position })
	return items
}
