//go:generate go run go.uber.org/mock/mockgen -source=reactions.go -destination=../mocks/mock_reaction_repository.go -package=mocks
package repositories

import (
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"collab-lab/domain"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

type IReactionRepository interface {
	ToggleReaction(messageID uuid.UUID, userID domain.UserID, emoji string) (bool, error)
	ReactionSet(messageID uuid.UUID, emoji string) ([]domain.UserID, error)
	MarkRead(messageID uuid.UUID, userID domain.UserID, readAt time.Time) (bool, error)
	SeenBy(messageID uuid.UUID, excluding domain.UserID) ([]domain.ReadReceipt, error)
}

// ReactionRepository stores reaction membership and read receipts.
// Key layout:
//
//	react:{message_id}:{emoji}:{user_id} -> (empty)
//	receipt:{message_id}:{user_id}       -> readAt unixnano, 19-digit padded
//
// One key per (message, emoji, user) makes the toggle a single set or
// delete, and an emptied reaction set leaves no keys behind. Duplicate
// toggles from network retries are deduplicated upstream by the
// transport, never here.
type ReactionRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewReactionRepository(db *badger.DB, log *slog.Logger) ReactionRepository {
	return ReactionRepository{db: db, log: log}
}

func reactionKey(messageID uuid.UUID, emoji string, userID domain.UserID) []byte {
	return []byte(fmt.Sprintf("react:%s:%s:%s", messageID, emoji, userID))
}

func receiptKey(messageID uuid.UUID, userID domain.UserID) []byte {
	return []byte(fmt.Sprintf("receipt:%s:%s", messageID, userID))
}

// ToggleReaction adds the user to the (message, emoji) set when absent
// and removes them when present. Returns true when the reaction was added.
func (r ReactionRepository) ToggleReaction(messageID uuid.UUID, userID domain.UserID, emoji string) (bool, error) {
	var added bool
	key := reactionKey(messageID, emoji, userID)
	err := r.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		switch err {
		case nil:
			added = false
			return txn.Delete(key)
		case badger.ErrKeyNotFound:
			added = true
			return txn.Set(key, nil)
		default:
			return err
		}
	})
	return added, err
}

// ReactionSet returns the users currently in the (message, emoji) set,
// sorted for stable event payloads.
func (r ReactionRepository) ReactionSet(messageID uuid.UUID, emoji string) ([]domain.UserID, error) {
	var users []domain.UserID
	prefixStr := fmt.Sprintf("react:%s:%s:", messageID, emoji)
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := []byte(prefixStr)
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().Key()
			users = append(users, domain.UserID(key[len(prefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(users, func(i, j int) bool { return users[i] < users[j] })
	return users, nil
}

// MarkRead upserts the (message, user) receipt. The stored readAt only
// ever advances: a receipt arriving late over an unordered channel with
// an earlier timestamp is a no-op. Returns true when the receipt
// advanced, so callers know whether anything is worth broadcasting.
func (r ReactionRepository) MarkRead(messageID uuid.UUID, userID domain.UserID, readAt time.Time) (bool, error) {
	var advanced bool
	key := receiptKey(messageID, userID)
	value := []byte(fmt.Sprintf("%019d", readAt.UnixNano()))
	err := r.db.Update(func(txn *badger.Txn) error {
		entry, err := txn.Get(key)
		switch err {
		case nil:
			var stored []byte
			if stored, err = entry.ValueCopy(nil); err != nil {
				return err
			}
			// Padded decimal strings compare like the numbers they encode
			if string(stored) >= string(value) {
				return nil
			}
		case badger.ErrKeyNotFound:
		default:
			return err
		}
		advanced = true
		return txn.Set(key, value)
	})
	return advanced, err
}

// SeenBy returns all receipts for a message except the excluded user's
// (the author never appears in "Seen by" aggregations), ordered by
// readAt ascending.
func (r ReactionRepository) SeenBy(messageID uuid.UUID, excluding domain.UserID) ([]domain.ReadReceipt, error) {
	var receipts []domain.ReadReceipt
	prefixStr := fmt.Sprintf("receipt:%s:", messageID)
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := []byte(prefixStr)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			userID := domain.UserID(item.Key()[len(prefix):])
			if userID == excluding {
				continue
			}
			err := item.Value(func(value []byte) error {
				nanos, err := strconv.ParseInt(string(value), 10, 64)
				if err != nil {
					return err
				}
				receipts = append(receipts, domain.ReadReceipt{
					MessageID: messageID,
					UserID:    userID,
					ReadAt:    time.Unix(0, nanos).UTC(),
				})
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(receipts, func(i, j int) bool {
		return receipts[i].ReadAt.Before(receipts[j].ReadAt)
	})
	return receipts, nil
}
