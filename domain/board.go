package domain

import "github.com/google/uuid"

// OrderedItem is a member of a drag-reorderable collection (a task card
// in a column, a column on a board). Within one container all positions
// are distinct and their relative order is the display order.
type OrderedItem struct {
	ID          uuid.UUID
	ContainerID uuid.UUID
	Position    int64
}

// Container is a flat, non-nested ordered collection scoped to a room.
// Containers themselves carry a position so boards can reorder columns
// with the same arithmetic as their items.
type Container struct {
	ID       uuid.UUID
	Room     RoomID
	Title    string
	Position int64
}
