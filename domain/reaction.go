package domain

import (
	"time"

	"github.com/google/uuid"
)

// ReactionSet aggregates the users having reacted with one emoji on one
// message. A user appears at most once; an emptied set disappears.
type ReactionSet struct {
	MessageID uuid.UUID
	Emoji     string
	UserIDs   []UserID
}

// ReadReceipt records that a user has read a message. ReadAt only ever
// advances, even when receipts arrive out of order.
type ReadReceipt struct {
	MessageID uuid.UUID
	UserID    UserID
	ReadAt    time.Time
}

// ThreadLink tracks the reply counter of a parent message.
type ThreadLink struct {
	ParentMessageID uuid.UUID
	ReplyCount      int64
}
