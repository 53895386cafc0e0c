package repositories

import (
	"fmt"
	"testing"
	"time"

	"collab-lab/domain"

	"github.com/google/uuid"
	"github.com/mama165/sdk-go/database"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

func newMessageRepository(t *testing.T, limit *int) MessageRepository {
	t.Helper()
	_, log, badgerDB, blugeWriter, err := database.SetupBenchmark(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { database.CleanupDB(badgerDB, blugeWriter) })
	return NewMessageRepository(badgerDB, log, limit)
}

func TestMessageRepository_Store_And_Get_Newest_First(t *testing.T) {
	req := require.New(t)
	repo := newMessageRepository(t, nil)
	room := domain.RoomID("room-1")
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		req.NoError(repo.StoreMessage(DiskMessage{
			ID:      uuid.New(),
			Room:    room,
			Author:  "alice",
			Content: fmt.Sprintf("message %d", i),
			At:      base.Add(time.Duration(i) * time.Second),
		}))
	}

	messages, _, err := repo.GetMessages(room, nil)
	req.NoError(err)

	// Then messages come back newest first
	req.Equal([]string{"message 2", "message 1", "message 0"},
		lo.Map(messages, func(m DiskMessage, _ int) string { return m.Content }))
}

func TestMessageRepository_Rooms_Are_Isolated(t *testing.T) {
	req := require.New(t)
	repo := newMessageRepository(t, nil)

	req.NoError(repo.StoreMessage(DiskMessage{
		ID: uuid.New(), Room: "room-1", Author: "alice", Content: "for room 1", At: time.Now(),
	}))
	req.NoError(repo.StoreMessage(DiskMessage{
		ID: uuid.New(), Room: "room-2", Author: "bob", Content: "for room 2", At: time.Now(),
	}))

	messages, _, err := repo.GetMessages("room-1", nil)
	req.NoError(err)
	req.Len(messages, 1)
	req.Equal("for room 1", messages[0].Content)
}

func TestMessageRepository_Cursor_Pagination(t *testing.T) {
	req := require.New(t)
	repo := newMessageRepository(t, lo.ToPtr(2))
	room := domain.RoomID("room-1")
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		req.NoError(repo.StoreMessage(DiskMessage{
			ID:      uuid.New(),
			Room:    room,
			Author:  "alice",
			Content: fmt.Sprintf("message %d", i),
			At:      base.Add(time.Duration(i) * time.Second),
		}))
	}

	// When paging through with the returned cursor
	page1, cursor, err := repo.GetMessages(room, nil)
	req.NoError(err)
	req.Len(page1, 2)
	req.Equal("message 4", page1[0].Content)

	page2, _, err := repo.GetMessages(room, cursor)
	req.NoError(err)
	req.Len(page2, 2)
	req.Equal("message 2", page2[0].Content)

	// Then no message is delivered twice
	all := append(page1, page2...)
	ids := lo.Map(all, func(m DiskMessage, _ int) uuid.UUID { return m.ID })
	req.Len(lo.Uniq(ids), 4)
}
