package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"

	"collab-lab/domain"
	"collab-lab/repositories"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"
)

// Read-only board and timeline dump. Opens the database next to a
// running engine without touching its lock.
func main() {
	dbPath := flag.String("db", "/tmp/collab/badger", "Path to badger DB")
	room := flag.String("room", "", "Room to display")
	messages := flag.Bool("messages", false, "Also dump the room's message log")
	flag.Parse()

	if *room == "" {
		log.Fatal("a -room is required")
	}

	opts := badger.DefaultOptions(*dbPath).
		WithReadOnly(true).
		WithBypassLockGuard(true).
		WithLoggingLevel(badger.WARNING)

	db, err := badger.Open(opts)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	containers, err := loadContainers(db, domain.RoomID(*room))
	if err != nil {
		log.Fatalf("Failed to load containers: %v", err)
	}

	color.Bold.Printf("Board for room %s\n\n", *room)
	for _, container := range containers {
		items, err := loadItems(db, container.ID.String())
		if err != nil {
			log.Fatalf("Failed to load items: %v", err)
		}
		printContainer(container, items)
	}
	if len(containers) == 0 {
		color.Gray.Println("(no containers)")
	}

	if *messages {
		if err := printMessages(db, *room); err != nil {
			log.Fatalf("Failed to load messages: %v", err)
		}
	}
}

func loadContainers(db *badger.DB, room domain.RoomID) ([]domain.Container, error) {
	var containers []domain.Container
	prefix := []byte(fmt.Sprintf("container:%s:", room))

	err := db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(v []byte) error {
				var container domain.Container
				if err := json.Unmarshal(v, &container); err != nil {
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

func loadItems(db *badger.DB, containerID string) ([]domain.OrderedItem, error) {
	var items []domain.OrderedItem
	prefix := []byte(fmt.Sprintf("item:%s:", containerID))

	err := db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(v []byte) error {
				var item domain.OrderedItem
				if err := json.Unmarshal(v, &item); err != nil {
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

	sort.Slice(items, func(i, j int) bool { return items[i].Position < items[j].Position })
	return items, nil
}

func printContainer(container domain.Container, items []domain.OrderedItem) {
	color.Cyan.Printf("%s (position %d)\n", container.Title, container.Position)

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Item", "Position"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	for _, item := range items {
		table.Append([]string{item.ID.String(), fmt.Sprintf("%d", item.Position)})
	}
	table.Render()
	fmt.Println()
}

func printMessages(db *badger.DB, room string) error {
	color.Bold.Printf("Messages for room %s\n\n", room)
	prefix := []byte(fmt.Sprintf("msg:%s:", room))

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"At", "Author", "Lang", "Content"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	err := db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(v []byte) error {
				var message repositories.DiskMessage
				if err := json.Unmarshal(v, &message); err != nil {
					return err
				}
				table.Append([]string{
					message.At.Format("15:04:05"),
					string(message.Author),
					message.Lang,
					message.Content,
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
		return err
	}

	table.Render()
	return nil
}
