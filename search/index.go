// Package search maintains a full-text index of enriched messages.
// It lives beside the badger message log: badger is the source of truth,
// bluge only answers queries.
package search

import (
	"context"
	"log/slog"

	"collab-lab/domain"

	"github.com/blugelabs/bluge"
	"github.com/google/uuid"
)

const pageSize = 10

type Hit struct {
	MessageID uuid.UUID
	Room      domain.RoomID
	Author    domain.UserID
	Content   string
}

type MessageIndex struct {
	writer *bluge.Writer
	log    *slog.Logger
}

func NewMessageIndex(writer *bluge.Writer, log *slog.Logger) *MessageIndex {
	return &MessageIndex{writer: writer, log: log}
}

// Index upserts one message document. Replayed events overwrite the same
// document id, so at-least-once delivery stays idempotent here.
func (i *MessageIndex) Index(message domain.Message, lang string) error {
	doc := bluge.NewDocument(message.ID.String()).
		AddField(bluge.NewTextField("content", message.Content).StoreValue()).
		AddField(bluge.NewKeywordField("room", string(message.Room)).StoreValue()).
		AddField(bluge.NewKeywordField("author", string(message.SenderID)).StoreValue()).
		AddField(bluge.NewKeywordField("lang", lang)).
		AddField(bluge.NewDateTimeField("at", message.CreatedAt))
	return i.writer.Update(doc.ID(), doc)
}

// Search runs a room-scoped match query over message content.
// Returns the page of hits and the total match count.
func (i *MessageIndex) Search(ctx context.Context, terms string, room domain.RoomID, page int) ([]Hit, uint64, error) {
	reader, err := i.writer.Reader()
	if err != nil {
		return nil, 0, err
	}
	defer func() {
		if err := reader.Close(); err != nil {
			i.log.Warn("Failed to close index reader", "error", err)
		}
	}()

	query := bluge.NewBooleanQuery().
		AddMust(bluge.NewMatchQuery(terms).SetField("content")).
		AddMust(bluge.NewTermQuery(string(room)).SetField("room"))

	request := bluge.NewTopNSearch(pageSize, query).
		SetFrom(page * pageSize).
		WithStandardAggregations()

	iterator, err := reader.Search(ctx, request)
	if err != nil {
		return nil, 0, err
	}

	var hits []Hit
	for {
		match, err := iterator.Next()
		if err != nil {
			return nil, 0, err
		}
		if match == nil {
			break
		}
		var hit Hit
		err = match.VisitStoredFields(func(field string, value []byte) bool {
			switch field {
			case "_id":
				if id, parseErr := uuid.Parse(string(value)); parseErr == nil {
					hit.MessageID = id
				}
			case "room":
				hit.Room = domain.RoomID(value)
			case "author":
				hit.Author = domain.UserID(value)
			case "content":
				hit.Content = string(value)
			}
			return true
		})
		if err != nil {
			return nil, 0, err
		}
		hits = append(hits, hit)
	}
	return hits, iterator.Aggregations().Count(), nil
}
