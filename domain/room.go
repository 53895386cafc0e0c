// Room entities and membership.
// No runtime, network, or UI logic should be added here.
package domain

import "github.com/samber/lo"

type RoomID string

// Room is the broadcast scope for real-time events, one per channel
// or conversation. Membership is needed by mention resolution and by
// presence snapshots.
type Room struct {
	ID      RoomID
	members map[UserID]Participant
}

func NewRoom(id RoomID) *Room {
	return &Room{
		ID:      id,
		members: make(map[UserID]Participant),
	}
}

func (r *Room) AddMember(p Participant) {
	r.members[p.ID] = p
}

func (r *Room) RemoveMember(id UserID) {
	delete(r.members, id)
}

func (r *Room) Member(id UserID) (Participant, bool) {
	p, ok := r.members[id]
	return p, ok
}

// Members returns the current membership in no particular order.
func (r *Room) Members() []Participant {
	return lo.Values(r.members)
}
