package runtime

import (
	"context"
	"testing"

	"collab-lab/domain"
	"collab-lab/domain/event"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type Sink struct {
	name string
}

func (s Sink) Consume(ctx context.Context, e event.DomainEvent) error {
	return nil
}

func TestRegistry_Subscribe_One_Room_One_Connection(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	connectionID := uuid.NewString()
	roomID := domain.RoomID("room-1")
	sink := Sink{name: "a"}

	// Given no connection is registered
	req.Nil(registry.GetSinksForRoom(roomID))

	// When a connection subscribes a room
	registry.Subscribe(connectionID, roomID, sink)

	// Then its sink is reachable through the room
	sinks := registry.GetSinksForRoom(roomID)
	req.Len(sinks, 1)
	req.Contains(sinks, sink)
}

func TestRegistry_Subscribe_One_Room_Multiple_Connections(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	roomID := domain.RoomID("room-1")
	sink1 := Sink{name: "a"}
	sink2 := Sink{name: "b"}

	// When two connections subscribe the same room
	registry.Subscribe(uuid.NewString(), roomID, sink1)
	registry.Subscribe(uuid.NewString(), roomID, sink2)

	// Then both sinks receive the room's fan-out
	sinks := registry.GetSinksForRoom(roomID)
	req.Len(sinks, 2)
	req.Contains(sinks, sink1)
	req.Contains(sinks, sink2)
}

func TestRegistry_Unsubscribe_Removes_Room_Entry(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	connectionID := uuid.NewString()
	roomID := domain.RoomID("room-1")

	// Given a subscribed connection
	registry.Subscribe(connectionID, roomID, Sink{name: "a"})

	// When the connection unsubscribes
	registry.Unsubscribe(connectionID, roomID)

	// Then the room has no sinks left
	req.Nil(registry.GetSinksForRoom(roomID))
}

func TestRegistry_Unsubscribe_Keeps_Other_Rooms(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	connectionID := uuid.NewString()
	sink := Sink{name: "a"}

	// Given one connection subscribed to two rooms
	registry.Subscribe(connectionID, "room-1", sink)
	registry.Subscribe(connectionID, "room-2", sink)

	// When it leaves one room
	registry.Unsubscribe(connectionID, "room-1")

	// Then the other subscription survives
	req.Nil(registry.GetSinksForRoom("room-1"))
	req.Len(registry.GetSinksForRoom("room-2"), 1)
}

func TestRegistry_DropConnection_Releases_Everything(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	connectionID := uuid.NewString()
	otherID := uuid.NewString()
	sink := Sink{name: "a"}
	otherSink := Sink{name: "b"}

	// Given a connection in two rooms, next to another connection
	registry.Subscribe(connectionID, "room-1", sink)
	registry.Subscribe(connectionID, "room-2", sink)
	registry.Subscribe(otherID, "room-1", otherSink)

	// When the transport drops it
	dropped := registry.DropConnection(connectionID)

	// Then both rooms are reported
	req.ElementsMatch([]domain.RoomID{"room-1", "room-2"}, dropped)
	// And only the other connection keeps receiving
	sinks := registry.GetSinksForRoom("room-1")
	req.Len(sinks, 1)
	req.Contains(sinks, otherSink)
	req.Nil(registry.GetSinksForRoom("room-2"))
}

func TestRegistry_DropConnection_Unknown_Is_NoOp(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	req.Empty(registry.DropConnection(uuid.NewString()))
}
