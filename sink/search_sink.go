package sink

import (
	"context"
	"log/slog"

	"collab-lab/contract"
	"collab-lab/domain"
	"collab-lab/domain/event"
	"collab-lab/search"
)

var _ contract.EventSink = (*SearchSink)(nil)

// SearchSink feeds enriched messages into the full-text index.
type SearchSink struct {
	index *search.MessageIndex
	log   *slog.Logger
}

func NewSearchSink(index *search.MessageIndex, log *slog.Logger) *SearchSink {
	return &SearchSink{index: index, log: log}
}

func (s *SearchSink) Consume(_ context.Context, e event.DomainEvent) error {
	enriched, ok := e.(event.MessageEnriched)
	if !ok {
		return nil
	}
	message := domain.Message{
		ID:        enriched.ID,
		Room:      enriched.Room,
		SenderID:  enriched.Author,
		Content:   enriched.Content,
		ParentID:  enriched.ParentID,
		CreatedAt: enriched.At,
	}
	return s.index.Index(message, enriched.Lang)
}
