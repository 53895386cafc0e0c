// Package domain contains core concepts of the collaboration system.
// This file defines Message events and related rules.
// Messages are immutable and validated by the domain.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Message represents an immutable chat event. ParentID links a reply to
// its parent message; replies never nest deeper than one level.
type Message struct {
	ID        uuid.UUID // unique identifier
	Room      RoomID
	SenderID  UserID
	Content   string
	ParentID  *uuid.UUID
	CreatedAt time.Time
}
