package runtime

import (
	"sync"

	"collab-lab/contract"
	"collab-lab/domain"
)

type Set map[string]struct{}

// Registry maps live connections to sinks and rooms. A connection is the
// unit of delivery: one user may hold several connections, each with its
// own sink, and a room fan-out reaches every subscribed connection.
type Registry struct {
	mu          sync.RWMutex
	sessions    map[string]contract.EventSink   // connection -> sink
	roomMembers map[domain.RoomID]Set           // room -> connection ids
	connRooms   map[string]map[domain.RoomID]struct{} // connection -> subscribed rooms
}

func NewRegistry() *Registry {
	return &Registry{
		sessions:    make(map[string]contract.EventSink),
		roomMembers: make(map[domain.RoomID]Set),
		connRooms:   make(map[string]map[domain.RoomID]struct{}),
	}
}

// GetSinksForRoom retrieves all active sinks subscribed to a room.
// Returns nil if the room doesn't exist or has no subscribers.
func (r *Registry) GetSinksForRoom(roomID domain.RoomID) []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.roomMembers[roomID]
	if !ok {
		return nil
	}
	var activeSinks []contract.EventSink
	for connectionID := range members {
		if sink, exists := r.sessions[connectionID]; exists {
			activeSinks = append(activeSinks, sink)
		}
	}
	return activeSinks
}

// Subscribe registers a connection's sink and adds it to a room.
// If the room does not yet exist in the registry, it is initialized on the fly.
func (r *Registry) Subscribe(connectionID string, roomID domain.RoomID, sink contract.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[connectionID] = sink

	if _, ok := r.roomMembers[roomID]; !ok {
		r.roomMembers[roomID] = make(Set)
	}
	r.roomMembers[roomID][connectionID] = struct{}{}

	if _, ok := r.connRooms[connectionID]; !ok {
		r.connRooms[connectionID] = make(map[domain.RoomID]struct{})
	}
	r.connRooms[connectionID][roomID] = struct{}{}
}

// Unsubscribe removes a connection from one room. The session itself
// stays alive while the connection subscribes other rooms; empty sets
// are cleaned up to prevent leaks over time.
func (r *Registry) Unsubscribe(connectionID string, roomID domain.RoomID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.unsubscribe(connectionID, roomID)
}

func (r *Registry) unsubscribe(connectionID string, roomID domain.RoomID) {
	if members, ok := r.roomMembers[roomID]; ok {
		delete(members, connectionID)
		if len(members) == 0 {
			delete(r.roomMembers, roomID)
		}
	}
	if rooms, ok := r.connRooms[connectionID]; ok {
		delete(rooms, roomID)
		if len(rooms) == 0 {
			delete(r.connRooms, connectionID)
			delete(r.sessions, connectionID)
		}
	}
}

// DropConnection releases everything a connection held: its sink and all
// room subscriptions. It returns the rooms the connection had joined so
// the caller can broadcast presence updates. In-flight fan-out to the
// dropped sink is a no-op, never an error.
func (r *Registry) DropConnection(connectionID string) []domain.RoomID {
	r.mu.Lock()
	defer r.mu.Unlock()

	rooms := r.connRooms[connectionID]
	dropped := make([]domain.RoomID, 0, len(rooms))
	for roomID := range rooms {
		dropped = append(dropped, roomID)
		r.unsubscribe(connectionID, roomID)
	}
	delete(r.sessions, connectionID)
	delete(r.connRooms, connectionID)
	return dropped
}
