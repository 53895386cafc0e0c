package domain

import (
	"time"

	"github.com/google/uuid"
)

type Command interface {
	RoomID() RoomID
}

// PostMessageCommand enters the async message pipeline. CorrelationID is
// client-generated so an optimistic UI can revert on a failure response.
type PostMessageCommand struct {
	Room          RoomID    `validate:"required"`
	SenderID      UserID    `validate:"required"`
	Content       string    `validate:"required,max=4000"`
	ParentID      *uuid.UUID
	CorrelationID uuid.UUID
	CreatedAt     time.Time
}

func (c PostMessageCommand) RoomID() RoomID { return c.Room }

// MoveItemCommand reorders an item, possibly across containers.
// AfterID and BeforeID name the intended neighbours; either may be nil
// when the item lands at an end of the container.
type MoveItemCommand struct {
	Room              RoomID    `validate:"required"`
	ItemID            uuid.UUID `validate:"required"`
	TargetContainerID uuid.UUID `validate:"required"`
	AfterID           *uuid.UUID
	BeforeID          *uuid.UUID
	CorrelationID     uuid.UUID
}

func (c MoveItemCommand) RoomID() RoomID { return c.Room }

// MoveContainerCommand reorders a whole column between two neighbour
// containers of the same room.
type MoveContainerCommand struct {
	Room          RoomID    `validate:"required"`
	ContainerID   uuid.UUID `validate:"required"`
	AfterID       *uuid.UUID
	BeforeID      *uuid.UUID
	CorrelationID uuid.UUID
}

func (c MoveContainerCommand) RoomID() RoomID { return c.Room }

type ToggleReactionCommand struct {
	Room      RoomID    `validate:"required"`
	MessageID uuid.UUID `validate:"required"`
	UserID    UserID    `validate:"required"`
	Emoji     string    `validate:"required,max=64"`
}

func (c ToggleReactionCommand) RoomID() RoomID { return c.Room }

type MarkReadCommand struct {
	Room      RoomID    `validate:"required"`
	MessageID uuid.UUID `validate:"required"`
	UserID    UserID    `validate:"required"`
	ReadAt    time.Time
}

func (c MarkReadCommand) RoomID() RoomID { return c.Room }
