package workers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"collab-lab/contract"
	"collab-lab/domain"
	"collab-lab/domain/event"
	"collab-lab/repositories"

	"github.com/google/uuid"
)

// Ensure *RoomWorker implements the contract.Worker interface at compile time.
var _ contract.Worker = (*RoomWorker)(nil)

// RoomWorker is the single writer of one room's message pipeline.
// Commands for a room are applied by exactly one goroutine, so the
// events it emits follow commit order; rooms are independent and carry
// no ordering obligation towards each other.
type RoomWorker struct {
	room     *domain.Room
	threads  repositories.IThreadRepository
	commands chan domain.Command
	events   chan event.DomainEvent
	log      *slog.Logger
}

func NewRoomWorker(
	room *domain.Room,
	threads repositories.IThreadRepository,
	commands chan domain.Command,
	events chan event.DomainEvent,
	log *slog.Logger) *RoomWorker {
	return &RoomWorker{
		room:     room,
		threads:  threads,
		commands: commands,
		events:   events,
		log:      log,
	}
}

func (w *RoomWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping worker")
			return ctx.Err()
		case cmd, ok := <-w.commands:
			if !ok {
				w.log.Debug("Channel is closed")
				return nil
			}
			if postCmd, ok := cmd.(domain.PostMessageCommand); ok {
				if err := w.handlePost(ctx, postCmd); err != nil {
					if ctx.Err() != nil {
						return ctx.Err()
					}
					w.log.Warn("Failed to post message",
						"room", postCmd.Room, "error", err)
				}
			}
		}
	}
}

// handlePost commits the thread linkage first, then emits the message
// event. A rejected reply (nested thread) produces no event at all.
func (w *RoomWorker) handlePost(ctx context.Context, cmd domain.PostMessageCommand) error {
	messageID := uuid.New()

	if cmd.ParentID != nil {
		count, err := w.threads.Attach(*cmd.ParentID, messageID)
		if err != nil {
			return fmt.Errorf("attaching reply to %s: %w", cmd.ParentID, err)
		}
		if err := w.emit(ctx, event.ThreadCountChanged{
			ID:              uuid.New(),
			Room:            cmd.Room,
			ParentMessageID: *cmd.ParentID,
			ReplyCount:      count,
			At:              time.Now().UTC(),
		}); err != nil {
			return err
		}
	}

	return w.emit(ctx, toEvent(messageID, cmd))
}

func (w *RoomWorker) emit(ctx context.Context, evt event.DomainEvent) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case w.events <- evt:
		return nil
	}
}

func toEvent(messageID uuid.UUID, c domain.PostMessageCommand) event.MessagePosted {
	return event.MessagePosted{
		ID:       messageID,
		Room:     c.Room,
		Author:   c.SenderID,
		Content:  c.Content,
		ParentID: c.ParentID,
		At:       c.CreatedAt,
	}
}
