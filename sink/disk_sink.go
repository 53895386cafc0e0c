package sink

import (
	"context"
	"log/slog"

	"collab-lab/contract"
	"collab-lab/domain/event"
	"collab-lab/repositories"
)

var _ contract.EventSink = (*DiskSink)(nil)

// DiskSink appends every enriched message to the durable badger log.
// Keys embed the message id, so replaying an event overwrites the same
// record instead of duplicating it.
type DiskSink struct {
	messages repositories.IMessageRepository
	log      *slog.Logger
}

func NewDiskSink(messages repositories.IMessageRepository, log *slog.Logger) *DiskSink {
	return &DiskSink{messages: messages, log: log}
}

func (s *DiskSink) Consume(_ context.Context, e event.DomainEvent) error {
	enriched, ok := e.(event.MessageEnriched)
	if !ok {
		return nil
	}
	return s.messages.StoreMessage(repositories.DiskMessage{
		ID:       enriched.ID,
		Room:     enriched.Room,
		Author:   enriched.Author,
		Content:  enriched.Content,
		Lang:     enriched.Lang,
		ParentID: enriched.ParentID,
		At:       enriched.At,
	})
}
