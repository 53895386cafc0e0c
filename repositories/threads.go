//go:generate go run go.uber.org/mock/mockgen -source=threads.go -destination=../mocks/mock_thread_repository.go -package=mocks
package repositories

import (
	"fmt"
	"log/slog"
	"strconv"

	"collab-lab/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

type IThreadRepository interface {
	Attach(parentMessageID, replyMessageID uuid.UUID) (int64, error)
	Detach(parentMessageID, replyMessageID uuid.UUID) (int64, error)
	ReplyCount(parentMessageID uuid.UUID) (int64, error)
	ParentOf(messageID uuid.UUID) (*uuid.UUID, error)
}

// ThreadRepository maintains parent -> reply-count and reply -> parent
// references. Threads are two levels deep at most: a reply can never
// become a parent itself.
//
// Key layout:
//
//	thread:{parent_id}       -> reply count, decimal
//	threadparent:{reply_id}  -> parent_id
type ThreadRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewThreadRepository(db *badger.DB, log *slog.Logger) ThreadRepository {
	return ThreadRepository{db: db, log: log}
}

func threadKey(parentID uuid.UUID) []byte {
	return []byte(fmt.Sprintf("thread:%s", parentID))
}

func threadParentKey(replyID uuid.UUID) []byte {
	return []byte(fmt.Sprintf("threadparent:%s", replyID))
}

// Attach links a reply to its parent and returns the new reply count.
// Attaching to a message that is itself a reply fails with
// ErrNestedThreadNotAllowed.
func (t ThreadRepository) Attach(parentMessageID, replyMessageID uuid.UUID) (int64, error) {
	var count int64
	err := t.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(threadParentKey(parentMessageID))
		switch err {
		case nil:
			return errors.ErrNestedThreadNotAllowed
		case badger.ErrKeyNotFound:
		default:
			return err
		}

		current, err := readCount(txn, threadKey(parentMessageID))
		if err != nil {
			return err
		}
		count = current + 1
		if err := txn.Set(threadKey(parentMessageID), []byte(strconv.FormatInt(count, 10))); err != nil {
			return err
		}
		return txn.Set(threadParentKey(replyMessageID), []byte(parentMessageID.String()))
	})
	return count, err
}

// Detach unlinks a deleted reply and returns the new count, floored at 0.
func (t ThreadRepository) Detach(parentMessageID, replyMessageID uuid.UUID) (int64, error) {
	var count int64
	err := t.db.Update(func(txn *badger.Txn) error {
		current, err := readCount(txn, threadKey(parentMessageID))
		if err != nil {
			return err
		}
		count = current - 1
		if count < 0 {
			count = 0
		}
		if err := txn.Set(threadKey(parentMessageID), []byte(strconv.FormatInt(count, 10))); err != nil {
			return err
		}
		err = txn.Delete(threadParentKey(replyMessageID))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		return err
	})
	return count, err
}

func (t ThreadRepository) ReplyCount(parentMessageID uuid.UUID) (int64, error) {
	var count int64
	err := t.db.View(func(txn *badger.Txn) error {
		current, err := readCount(txn, threadKey(parentMessageID))
		if err != nil {
			return err
		}
		count = current
		return nil
	})
	return count, err
}

// ParentOf returns the parent of a reply, or nil for a top-level message.
func (t ThreadRepository) ParentOf(messageID uuid.UUID) (*uuid.UUID, error) {
	var parent *uuid.UUID
	err := t.db.View(func(txn *badger.Txn) error {
		entry, err := txn.Get(threadParentKey(messageID))
		switch err {
		case nil:
		case badger.ErrKeyNotFound:
			return nil
		default:
			return err
		}
		return entry.Value(func(value []byte) error {
			parsed, err := uuid.Parse(string(value))
			if err != nil {
				return err
			}
			parent = &parsed
			return nil
		})
	})
	return parent, err
}

func readCount(txn *badger.Txn, key []byte) (int64, error) {
	entry, err := txn.Get(key)
	switch err {
	case nil:
	case badger.ErrKeyNotFound:
		return 0, nil
	default:
		return 0, err
	}
	var count int64
	err = entry.Value(func(value []byte) error {
		parsed, err := strconv.ParseInt(string(value), 10, 64)
		if err != nil {
			return err
		}
		count = parsed
		return nil
	})
	return count, err
}
