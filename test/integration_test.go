package test

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"collab-lab/domain"
	"collab-lab/domain/event"
	"collab-lab/presence"
	"collab-lab/repositories"
	"collab-lab/runtime"
	"collab-lab/runtime/workers"
	"collab-lab/search"
	"collab-lab/services"

	"github.com/google/uuid"
	"github.com/mama165/sdk-go/database"
	"github.com/mama165/sdk-go/logs"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu     sync.Mutex
	events []event.DomainEvent
}

func (s *recordingSink) Consume(ctx context.Context, e event.DomainEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func (s *recordingSink) find(match func(event.DomainEvent) bool) (event.DomainEvent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.events {
		if match(e) {
			return e, true
		}
	}
	return nil, false
}

func Test_Scenario_Post_Enrich_Fanout_Persist(t *testing.T) {
	req := require.New(t)
	cfg, err := LoadConfig()
	req.NoError(err)

	_, _, badgerDB, blugeWriter, err := database.SetupBenchmark(t.TempDir())
	req.NoError(err)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	supervisor := workers.NewSupervisor(log)
	registry := runtime.NewRegistry()
	aggregator := presence.NewAggregator(log, 3*time.Second, 0)
	messageRepository := repositories.NewMessageRepository(badgerDB, log, lo.ToPtr(100))
	index := search.NewMessageIndex(blugeWriter, log)

	orchestrator := runtime.NewOrchestrator(
		log, supervisor, registry, aggregator,
		repositories.NewBoardRepository(badgerDB, log),
		repositories.NewReactionRepository(badgerDB, log),
		repositories.NewThreadRepository(badgerDB, log),
		messageRepository,
		index,
		runtime.Tunables{
			BufferSize:     cfg.BufferSize,
			SinkTimeout:    time.Second,
			SweepInterval:  100 * time.Millisecond,
			MetricInterval: time.Minute,
		},
	)

	alice := domain.Participant{ID: "alice", DisplayName: "Alice"}
	bob := domain.Participant{ID: "bob", DisplayName: "Bob"}
	room := domain.NewRoom("room-1")
	room.AddMember(alice)
	room.AddMember(bob)
	orchestrator.RegisterRoom(room)

	service := services.NewSyncService(orchestrator)

	ctx, cancel := context.WithCancel(context.Background())
	req.NoError(orchestrator.Start(ctx))
	t.Cleanup(func() {
		orchestrator.Stop()
		cancel()
		supervisor.Wait()
		database.CleanupDB(badgerDB, blugeWriter)
	})

	// Given both users are connected to the room
	sink := &recordingSink{}
	req.NoError(service.JoinRoom(uuid.NewString(), "room-1", alice.ID, sink))
	req.NoError(service.JoinRoom(uuid.NewString(), "room-1", bob.ID, &recordingSink{}))

	// When Alice posts a broadcast mention
	content := "@channel please review the board"
	req.NoError(service.PostMessage(domain.PostMessageCommand{
		Room:     "room-1",
		SenderID: alice.ID,
		Content:  content,
	}))

	// Then the enriched message reaches the subscribed sink
	req.Eventually(func() bool {
		_, ok := sink.find(func(e event.DomainEvent) bool {
			enriched, isEnriched := e.(event.MessageEnriched)
			return isEnriched && enriched.Content == content
		})
		return ok
	}, cfg.WaitTimeout, 20*time.Millisecond)

	// And the mention resolved to Bob only, never back to the author
	resolved, ok := sink.find(func(e event.DomainEvent) bool {
		_, isResolved := e.(event.MentionsResolved)
		return isResolved
	})
	req.True(ok)
	mentions := resolved.(event.MentionsResolved)
	req.Equal([]domain.UserID{bob.ID}, mentions.Targets)
	req.Len(mentions.Mentions, 1)
	req.Equal(domain.MentionBroadcast, mentions.Mentions[0].Kind)

	// And the message landed in the durable log
	req.Eventually(func() bool {
		messages, _, err := service.GetMessages("room-1", nil)
		return err == nil && len(messages) == 1 && messages[0].Content == content
	}, cfg.WaitTimeout, 20*time.Millisecond)

	// And full-text search finds it
	req.Eventually(func() bool {
		hits, total, err := service.Search(context.Background(), "review", "room-1", 0)
		return err == nil && total == 1 && len(hits) == 1
	}, cfg.WaitTimeout, 20*time.Millisecond)
}

func Test_Scenario_Thread_Reply_Updates_Counter(t *testing.T) {
	req := require.New(t)
	cfg, err := LoadConfig()
	req.NoError(err)

	_, _, badgerDB, blugeWriter, err := database.SetupBenchmark(t.TempDir())
	req.NoError(err)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	supervisor := workers.NewSupervisor(log)
	orchestrator := runtime.NewOrchestrator(
		log, supervisor, runtime.NewRegistry(),
		presence.NewAggregator(log, 3*time.Second, 0),
		repositories.NewBoardRepository(badgerDB, log),
		repositories.NewReactionRepository(badgerDB, log),
		repositories.NewThreadRepository(badgerDB, log),
		repositories.NewMessageRepository(badgerDB, log, nil),
		search.NewMessageIndex(blugeWriter, log),
		runtime.Tunables{
			BufferSize:     cfg.BufferSize,
			SinkTimeout:    time.Second,
			SweepInterval:  time.Second,
			MetricInterval: time.Minute,
		},
	)

	alice := domain.Participant{ID: "alice", DisplayName: "Alice"}
	room := domain.NewRoom("room-1")
	room.AddMember(alice)
	orchestrator.RegisterRoom(room)

	ctx, cancel := context.WithCancel(context.Background())
	req.NoError(orchestrator.Start(ctx))
	t.Cleanup(func() {
		orchestrator.Stop()
		cancel()
		supervisor.Wait()
		database.CleanupDB(badgerDB, blugeWriter)
	})

	sink := &recordingSink{}
	req.NoError(orchestrator.Connect(uuid.NewString(), "room-1", alice.ID, sink))

	// Given a root message in the room
	req.NoError(orchestrator.PostMessage(domain.PostMessageCommand{
		Room:      "room-1",
		SenderID:  alice.ID,
		Content:   "root message",
		CreatedAt: time.Now().UTC(),
	}))

	var rootID uuid.UUID
	req.Eventually(func() bool {
		posted, ok := sink.find(func(e event.DomainEvent) bool {
			_, isEnriched := e.(event.MessageEnriched)
			return isEnriched
		})
		if ok {
			rootID = posted.(event.MessageEnriched).ID
		}
		return ok
	}, cfg.WaitTimeout, 20*time.Millisecond)

	// When Alice replies in the thread
	req.NoError(orchestrator.PostMessage(domain.PostMessageCommand{
		Room:      "room-1",
		SenderID:  alice.ID,
		Content:   "a reply",
		ParentID:  lo.ToPtr(rootID),
		CreatedAt: time.Now().UTC(),
	}))

	// Then the parent's counter event reports one reply
	req.Eventually(func() bool {
		evt, ok := sink.find(func(e event.DomainEvent) bool {
			counter, isCounter := e.(event.ThreadCountChanged)
			return isCounter && counter.ParentMessageID == rootID
		})
		return ok && evt.(event.ThreadCountChanged).ReplyCount == 1
	}, cfg.WaitTimeout, 20*time.Millisecond)

	// And the persisted count agrees
	count, err := orchestrator.ReplyCount(rootID)
	req.NoError(err)
	req.Equal(int64(1), count)
}
