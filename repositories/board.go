//go:generate go run go.uber.org/mock/mockgen -source=board.go -destination=../mocks/mock_board_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"

	"collab-lab/domain"
	"collab-lab/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

type IBoardRepository interface {
	CreateContainer(container domain.Container) error
	DeleteContainer(containerID uuid.UUID) error
	ListContainers(room domain.RoomID) ([]domain.Container, error)
	ReplaceContainers(room domain.RoomID, containers []domain.Container) error
	GetItem(itemID uuid.UUID) (domain.OrderedItem, error)
	SaveItem(item domain.OrderedItem) error
	ListItems(containerID uuid.UUID) ([]domain.OrderedItem, error)
	ReplaceItems(containerID uuid.UUID, items []domain.OrderedItem) error
}

// BoardRepository stores ordered collections in BadgerDB.
// Key layout:
//
//	container:{room}:{container_id}  -> Container
//	item:{container_id}:{item_id}    -> OrderedItem
//	itemloc:{item_id}                -> container_id (reverse index for moves)
//
// A single Update transaction covers every move, which is where
// concurrent reorders into the same gap serialize (last write wins).
type BoardRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewBoardRepository(db *badger.DB, log *slog.Logger) BoardRepository {
	return BoardRepository{db: db, log: log}
}

func containerKey(room domain.RoomID, id uuid.UUID) []byte {
	return []byte(fmt.Sprintf("container:%s:%s", room, id))
}

func itemKey(containerID, itemID uuid.UUID) []byte {
	return []byte(fmt.Sprintf("item:%s:%s", containerID, itemID))
}

func itemLocKey(itemID uuid.UUID) []byte {
	return []byte(fmt.Sprintf("itemloc:%s", itemID))
}

func (b BoardRepository) CreateContainer(container domain.Container) error {
	bytes, err := json.Marshal(container)
	if err != nil {
		return err
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(containerKey(container.Room, container.ID), bytes)
	})
}

// DeleteContainer refuses to delete a container that still holds items,
// so no OrderedItem can ever point at a dead container. Callers must
// move or delete members first.
func (b BoardRepository) DeleteContainer(containerID uuid.UUID) error {
	return b.db.Update(func(txn *badger.Txn) error {
		prefix := []byte(fmt.Sprintf("item:%s:", containerID))
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		it.Seek(prefix)
		notEmpty := it.ValidForPrefix(prefix)
		it.Close()
		if notEmpty {
			return errors.ErrContainerNotEmpty
		}

		// The room is part of the key, scan for the matching entry.
		containerPrefix := []byte("container:")
		suffix := ":" + containerID.String()
		var containerEntry []byte
		it = txn.NewIterator(options)
		for it.Seek(containerPrefix); it.ValidForPrefix(containerPrefix); it.Next() {
			key := it.Item().KeyCopy(nil)
			if len(key) >= len(suffix) && string(key[len(key)-len(suffix):]) == suffix {
				containerEntry = key
				break
			}
		}
		it.Close()
		if containerEntry == nil {
			return nil
		}
		return txn.Delete(containerEntry)
	})
}

func (b BoardRepository) ListContainers(room domain.RoomID) ([]domain.Container, error) {
	var containers []domain.Container
	err := b.db.View(func(txn *badger.Txn) error {
		prefix := []byte(fmt.Sprintf("container:%s:", room))
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(value []byte) error {
				var container domain.Container
				if err := json.Unmarshal(value, &container); err != nil {
					return err
				}
				containers = append(containers, container)
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
	sort.Slice(containers, func(i, j int) bool {
		return containers[i].Position < containers[j].Position
	})
	return containers, nil
}

// ReplaceContainers rewrites every container position of a room in one
// transaction, the column-level counterpart of ReplaceItems.
func (b BoardRepository) ReplaceContainers(room domain.RoomID, containers []domain.Container) error {
	return b.db.Update(func(txn *badger.Txn) error {
		for _, container := range containers {
			bytes, err := json.Marshal(container)
			if err != nil {
				return err
			}
			if err := txn.Set(containerKey(room, container.ID), bytes); err != nil {
				return err
			}
		}
		return nil
	})
}

func (b BoardRepository) GetItem(itemID uuid.UUID) (domain.OrderedItem, error) {
	var item domain.OrderedItem
	err := b.db.View(func(txn *badger.Txn) error {
		containerID, err := readItemLocation(txn, itemID)
		if err != nil {
			return err
		}
		entry, err := txn.Get(itemKey(containerID, itemID))
		if err != nil {
			return err
		}
		return entry.Value(func(value []byte) error {
			return json.Unmarshal(value, &item)
		})
	})
	if err == badger.ErrKeyNotFound {
		return domain.OrderedItem{}, errors.ErrUnknownItem
	}
	return item, err
}

// SaveItem writes an item under its container and keeps the reverse
// index in step. When the container changed, the previous entry is
// removed in the same transaction.
func (b BoardRepository) SaveItem(item domain.OrderedItem) error {
	bytes, err := json.Marshal(item)
	if err != nil {
		return err
	}
	return b.db.Update(func(txn *badger.Txn) error {
		previous, err := readItemLocation(txn, item.ID)
		switch err {
		case nil:
			if previous != item.ContainerID {
				if err := txn.Delete(itemKey(previous, item.ID)); err != nil {
					return err
				}
			}
		case badger.ErrKeyNotFound:
			// First insert for this item
		default:
			return err
		}
		if err := txn.Set(itemKey(item.ContainerID, item.ID), bytes); err != nil {
			return err
		}
		return txn.Set(itemLocKey(item.ID), []byte(item.ContainerID.String()))
	})
}

func (b BoardRepository) ListItems(containerID uuid.UUID) ([]domain.OrderedItem, error) {
	var items []domain.OrderedItem
	err := b.db.View(func(txn *badger.Txn) error {
		prefix := []byte(fmt.Sprintf("item:%s:", containerID))
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(value []byte) error {
				var item domain.OrderedItem
				if err := json.Unmarshal(value, &item); err != nil {
					return err
				}
				items = append(items, item)
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
	sort.Slice(items, func(i, j int) bool {
		return items[i].Position < items[j].Position
	})
	return items, nil
}

// ReplaceItems rewrites every position of a container in one
// transaction. This is the persistence half of a reindex.
func (b BoardRepository) ReplaceItems(containerID uuid.UUID, items []domain.OrderedItem) error {
	return b.db.Update(func(txn *badger.Txn) error {
		for _, item := range items {
			bytes, err := json.Marshal(item)
			if err != nil {
				return err
			}
			if err := txn.Set(itemKey(containerID, item.ID), bytes); err != nil {
				return err
			}
		}
		return nil
	})
}

func readItemLocation(txn *badger.Txn, itemID uuid.UUID) (uuid.UUID, error) {
	entry, err := txn.Get(itemLocKey(itemID))
	if err != nil {
		return uuid.Nil, err
	}
	var containerID uuid.UUID
	err = entry.Value(func(value []byte) error {
		parsed, err := uuid.Parse(string(value))
		if err != nil {
			return err
		}
		containerID = parsed
		return nil
	})
	return containerID, err
}
