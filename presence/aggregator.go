// Package presence tracks ephemeral room membership and typing state.
// Nothing here is durably persisted: entries live and die with their
// owning connection, never with application restarts.
package presence

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"collab-lab/domain"
)

// Snapshot is the per-room view handed to the fan-out layer.
type Snapshot struct {
	Present []domain.Participant
	Typing  []domain.Participant
}

type presenceEntry struct {
	participant    domain.Participant
	lastActivityAt time.Time
}

type typingEntry struct {
	participant domain.Participant
	expiresAt   time.Time
}

type connection struct {
	userID domain.UserID
	rooms  map[domain.RoomID]struct{}
}

// Aggregator is an explicit component instance, not a process-global.
// The orchestrator owns the single writer; the fan-out layer only reads
// snapshots. All operations are idempotent.
type Aggregator struct {
	mu          sync.Mutex
	log         *slog.Logger
	now         func() time.Time
	typingTTL   time.Duration
	presenceTTL time.Duration
	present     map[domain.RoomID]map[domain.UserID]presenceEntry
	typing      map[domain.RoomID]map[domain.UserID]typingEntry
	connections map[string]*connection
}

// NewAggregator builds an aggregator with the given typing timeout
// (2-3 seconds recommended) and presence liveness window. A presenceTTL
// of zero disables liveness expiry, leaving presence purely
// connection-driven.
func NewAggregator(log *slog.Logger, typingTTL, presenceTTL time.Duration) *Aggregator {
	return &Aggregator{
		log:         log,
		now:         time.Now,
		typingTTL:   typingTTL,
		presenceTTL: presenceTTL,
		present:     make(map[domain.RoomID]map[domain.UserID]presenceEntry),
		typing:      make(map[domain.RoomID]map[domain.UserID]typingEntry),
		connections: make(map[string]*connection),
	}
}

// WithClock overrides the time source. Tests drive typing expiry with it.
func (a *Aggregator) WithClock(now func() time.Time) *Aggregator {
	a.now = now
	return a
}

// Join marks a participant present in a room. Returns true when the
// room's snapshot changed, so callers know whether to broadcast.
func (a *Aggregator) Join(roomID domain.RoomID, p domain.Participant) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.join(roomID, p)
}

func (a *Aggregator) join(roomID domain.RoomID, p domain.Participant) bool {
	room, ok := a.present[roomID]
	if !ok {
		room = make(map[domain.UserID]presenceEntry)
		a.present[roomID] = room
	}
	_, existed := room[p.ID]
	room[p.ID] = presenceEntry{participant: p, lastActivityAt: a.now()}
	return !existed
}

// Leave removes the participant's presence and any typing state.
func (a *Aggregator) Leave(roomID domain.RoomID, userID domain.UserID) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.leave(roomID, userID)
}

func (a *Aggregator) leave(roomID domain.RoomID, userID domain.UserID) bool {
	changed := false
	if room, ok := a.present[roomID]; ok {
		if _, existed := room[userID]; existed {
			delete(room, userID)
			changed = true
		}
		if len(room) == 0 {
			delete(a.present, roomID)
		}
	}
	if a.stopTyping(roomID, userID) {
		changed = true
	}
	return changed
}

// MarkTyping creates or refreshes the typing entry. Continuous activity
// keeps the state alive indefinitely; a pause longer than the timeout
// reverts to idle. Returns true when the user was not already typing.
func (a *Aggregator) MarkTyping(roomID domain.RoomID, userID domain.UserID) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	room, ok := a.present[roomID]
	if !ok {
		return false
	}
	entry, ok := room[userID]
	if !ok {
		// Typing from someone not present is ignored, presence first.
		return false
	}
	entry.lastActivityAt = a.now()
	room[userID] = entry

	typingRoom, ok := a.typing[roomID]
	if !ok {
		typingRoom = make(map[domain.UserID]typingEntry)
		a.typing[roomID] = typingRoom
	}
	_, wasTyping := typingRoom[userID]
	typingRoom[userID] = typingEntry{
		participant: entry.participant,
		expiresAt:   a.now().Add(a.typingTTL),
	}
	return !wasTyping
}

// StopTyping removes the typing entry. Calling it while idle is a no-op.
func (a *Aggregator) StopTyping(roomID domain.RoomID, userID domain.UserID) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stopTyping(roomID, userID)
}

func (a *Aggregator) stopTyping(roomID domain.RoomID, userID domain.UserID) bool {
	room, ok := a.typing[roomID]
	if !ok {
		return false
	}
	if _, existed := room[userID]; !existed {
		return false
	}
	delete(room, userID)
	if len(room) == 0 {
		delete(a.typing, roomID)
	}
	return true
}

// Touch refreshes the liveness timestamp on any user activity.
func (a *Aggregator) Touch(roomID domain.RoomID, userID domain.UserID) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if room, ok := a.present[roomID]; ok {
		if entry, ok := room[userID]; ok {
			entry.lastActivityAt = a.now()
			room[userID] = entry
		}
	}
}

// Snapshot returns present and currently typing participants, both
// sorted by display name for stable payloads. Expired typing entries
// are pruned on the way out.
func (a *Aggregator) Snapshot(roomID domain.RoomID) Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	var snap Snapshot
	for _, entry := range a.present[roomID] {
		snap.Present = append(snap.Present, entry.participant)
	}
	if room, ok := a.typing[roomID]; ok {
		for userID, entry := range room {
			if !entry.expiresAt.After(now) {
				delete(room, userID)
				continue
			}
			snap.Typing = append(snap.Typing, entry.participant)
		}
		if len(room) == 0 {
			delete(a.typing, roomID)
		}
	}
	sortParticipants(snap.Present)
	sortParticipants(snap.Typing)
	return snap
}

// OnJoin registers a connection-scoped join delivered by the transport.
func (a *Aggregator) OnJoin(connectionID string, roomID domain.RoomID, p domain.Participant) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	conn, ok := a.connections[connectionID]
	if !ok {
		conn = &connection{userID: p.ID, rooms: make(map[domain.RoomID]struct{})}
		a.connections[connectionID] = conn
	}
	conn.rooms[roomID] = struct{}{}
	return a.join(roomID, p)
}

// OnLeave handles an explicit per-room leave for a connection.
func (a *Aggregator) OnLeave(connectionID string, roomID domain.RoomID) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	conn, ok := a.connections[connectionID]
	if !ok {
		return false
	}
	delete(conn.rooms, roomID)
	return a.leave(roomID, conn.userID)
}

// OnDisconnect treats a dropped connection as an implicit leave for every
// room it had joined and an implicit stop of any typing state. It returns
// the rooms whose snapshot changed so the caller can broadcast updates.
// Presence and typing must never outlive their owning connection.
func (a *Aggregator) OnDisconnect(connectionID string) []domain.RoomID {
	a.mu.Lock()
	defer a.mu.Unlock()

	conn, ok := a.connections[connectionID]
	if !ok {
		return nil
	}
	delete(a.connections, connectionID)

	var changed []domain.RoomID
	for roomID := range conn.rooms {
		if a.leave(roomID, conn.userID) {
			changed = append(changed, roomID)
		}
	}
	return changed
}

// Online reports whether the user holds at least one live connection.
// It is global, not per-room, and feeds ONLINE_MEMBERS broadcast fan-out.
func (a *Aggregator) Online(userID domain.UserID) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, conn := range a.connections {
		if conn.userID == userID {
			return true
		}
	}
	return false
}

// Sweep expires typing entries past their deadline and, when a liveness
// window is configured, presence entries without recent activity.
// It returns the rooms whose snapshot changed.
func (a *Aggregator) Sweep() []domain.RoomID {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	changedSet := make(map[domain.RoomID]struct{})

	for roomID, room := range a.typing {
		for userID, entry := range room {
			if !entry.expiresAt.After(now) {
				delete(room, userID)
				changedSet[roomID] = struct{}{}
			}
		}
		if len(room) == 0 {
			delete(a.typing, roomID)
		}
	}

	if a.presenceTTL > 0 {
		deadline := now.Add(-a.presenceTTL)
		for roomID, room := range a.present {
			for userID, entry := range room {
				if entry.lastActivityAt.Before(deadline) {
					delete(room, userID)
					a.stopTyping(roomID, userID)
					changedSet[roomID] = struct{}{}
				}
			}
			if len(room) == 0 {
				delete(a.present, roomID)
			}
		}
	}

	changed := make([]domain.RoomID, 0, len(changedSet))
	for roomID := range changedSet {
		changed = append(changed, roomID)
	}
	return changed
}

func sortParticipants(ps []domain.Participant) {
	sort.Slice(ps, func(i, j int) bool {
		if ps[i].DisplayName == ps[j].DisplayName {
			return ps[i].ID < ps[j].ID
		}
		return ps[i].DisplayName < ps[j].DisplayName
	})
}
