package event

import (
	"time"

	"collab-lab/domain"

	"github.com/google/uuid"
)

// DomainEvent is what the fan-out layer broadcasts to room subscribers.
// Delivery is at-least-once: every event carries an ID so consumers can
// deduplicate replays.
type DomainEvent interface {
	RoomID() domain.RoomID
	EventID() uuid.UUID
}

type MessagePosted struct {
	ID       uuid.UUID
	Room     domain.RoomID
	Author   domain.UserID
	Content  string
	ParentID *uuid.UUID
	At       time.Time
}

func (e MessagePosted) RoomID() domain.RoomID { return e.Room }
func (e MessagePosted) EventID() uuid.UUID    { return e.ID }

// MessageEnriched is the pipeline output of a posted message: mentions
// resolved, language detected, ready for fan-out and persistence.
type MessageEnriched struct {
	ID       uuid.UUID
	Room     domain.RoomID
	Author   domain.UserID
	Content  string
	Lang     string
	Mentions []domain.Mention
	ParentID *uuid.UUID
	At       time.Time
}

func (e MessageEnriched) RoomID() domain.RoomID { return e.Room }
func (e MessageEnriched) EventID() uuid.UUID    { return e.ID }

type ItemReordered struct {
	ID          uuid.UUID
	Room        domain.RoomID
	ItemID      uuid.UUID
	ContainerID uuid.UUID
	Position    int64
	At          time.Time
}

func (e ItemReordered) RoomID() domain.RoomID { return e.Room }
func (e ItemReordered) EventID() uuid.UUID    { return e.ID }

type ContainerReordered struct {
	ID          uuid.UUID
	Room        domain.RoomID
	ContainerID uuid.UUID
	Position    int64
	At          time.Time
}

func (e ContainerReordered) RoomID() domain.RoomID { return e.Room }
func (e ContainerReordered) EventID() uuid.UUID    { return e.ID }

type PresenceChanged struct {
	ID      uuid.UUID
	Room    domain.RoomID
	Present []domain.Participant
	Typing  []domain.Participant
	At      time.Time
}

func (e PresenceChanged) RoomID() domain.RoomID { return e.Room }
func (e PresenceChanged) EventID() uuid.UUID    { return e.ID }

// MentionsResolved carries the resolved spans plus the concrete recipient
// list so the notification collaborator never re-derives broadcast scopes.
type MentionsResolved struct {
	ID        uuid.UUID
	Room      domain.RoomID
	MessageID uuid.UUID
	Mentions  []domain.Mention
	Targets   []domain.UserID
	At        time.Time
}

func (e MentionsResolved) RoomID() domain.RoomID { return e.Room }
func (e MentionsResolved) EventID() uuid.UUID    { return e.ID }

type ReactionChanged struct {
	ID        uuid.UUID
	Room      domain.RoomID
	MessageID uuid.UUID
	Emoji     string
	UserIDs   []domain.UserID
	At        time.Time
}

func (e ReactionChanged) RoomID() domain.RoomID { return e.Room }
func (e ReactionChanged) EventID() uuid.UUID    { return e.ID }

type ReceiptUpdated struct {
	ID        uuid.UUID
	Room      domain.RoomID
	MessageID uuid.UUID
	UserID    domain.UserID
	ReadAt    time.Time
}

func (e ReceiptUpdated) RoomID() domain.RoomID { return e.Room }
func (e ReceiptUpdated) EventID() uuid.UUID    { return e.ID }

type ThreadCountChanged struct {
	ID              uuid.UUID
	Room            domain.RoomID
	ParentMessageID uuid.UUID
	ReplyCount      int64
	At              time.Time
}

func (e ThreadCountChanged) RoomID() domain.RoomID { return e.Room }
func (e ThreadCountChanged) EventID() uuid.UUID    { return e.ID }
