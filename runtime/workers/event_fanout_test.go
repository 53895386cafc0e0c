package workers

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"collab-lab/contract"
	"collab-lab/domain"
	"collab-lab/domain/event"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu     sync.Mutex
	events []event.DomainEvent
	err    error
}

func (s *recordingSink) Consume(ctx context.Context, e event.DomainEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, e)
	return nil
}

func (s *recordingSink) seen() []event.DomainEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]event.DomainEvent(nil), s.events...)
}

type fakeRegistry struct {
	sinks map[domain.RoomID][]contract.EventSink
}

func (r *fakeRegistry) GetSinksForRoom(roomID domain.RoomID) []contract.EventSink {
	return r.sinks[roomID]
}

func (r *fakeRegistry) Subscribe(connectionID string, roomID domain.RoomID, sink contract.EventSink) {
	if r.sinks == nil {
		r.sinks = make(map[domain.RoomID][]contract.EventSink)
	}
	r.sinks[roomID] = append(r.sinks[roomID], sink)
}

func (r *fakeRegistry) Unsubscribe(connectionID string, roomID domain.RoomID) {}

func (r *fakeRegistry) DropConnection(connectionID string) []domain.RoomID { return nil }

func postedEvent(room domain.RoomID) event.MessagePosted {
	return event.MessagePosted{
		ID:      uuid.New(),
		Room:    room,
		Author:  "alice",
		Content: "hello",
		At:      time.Now().UTC(),
	}
}

func TestEventFanout_Delivers_To_Permanent_And_Subscribed_Sinks(t *testing.T) {
	req := require.New(t)
	log := slog.Default()

	permanent := &recordingSink{}
	subscribed := &recordingSink{}
	other := &recordingSink{}

	registry := &fakeRegistry{}
	registry.Subscribe(uuid.NewString(), "room-1", subscribed)
	registry.Subscribe(uuid.NewString(), "room-2", other)

	events := make(chan event.DomainEvent, 1)
	worker := NewEventFanoutWorker(registry, []contract.EventSink{permanent}, events, nil, time.Second, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		_ = worker.Run(ctx)
		close(done)
	}()

	// When a room-1 event flows through fan-out
	evt := postedEvent("room-1")
	events <- evt

	req.Eventually(func() bool {
		return len(permanent.seen()) == 1 && len(subscribed.seen()) == 1
	}, time.Second, 10*time.Millisecond)

	// Then only room-1 subscribers received it
	req.Empty(other.seen())
	req.Equal(evt, permanent.seen()[0])
	req.Equal(evt, subscribed.seen()[0])

	cancel()
	<-done
}

func TestEventFanout_Failing_Sink_Does_Not_Block_Others(t *testing.T) {
	req := require.New(t)
	log := slog.Default()

	broken := &recordingSink{err: errors.New("sink down")}
	healthy := &recordingSink{}

	registry := &fakeRegistry{}
	registry.Subscribe(uuid.NewString(), "room-1", healthy)

	events := make(chan event.DomainEvent, 1)
	worker := NewEventFanoutWorker(registry, []contract.EventSink{broken}, events, nil, time.Second, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = worker.Run(ctx) }()

	events <- postedEvent("room-1")

	// Then the healthy subscriber still got the event
	req.Eventually(func() bool {
		return len(healthy.seen()) == 1
	}, time.Second, 10*time.Millisecond)
	req.Empty(broken.seen())
}

func TestEventFanout_Forwards_Telemetry_Best_Effort(t *testing.T) {
	req := require.New(t)
	log := slog.Default()

	registry := &fakeRegistry{}
	events := make(chan event.DomainEvent, 2)
	telemetry := make(chan event.DomainEvent, 1)
	worker := NewEventFanoutWorker(registry, nil, events, telemetry, time.Second, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = worker.Run(ctx) }()

	// When two events arrive while telemetry has room for one
	events <- postedEvent("room-1")
	events <- postedEvent("room-1")

	// Then the first sample is forwarded and the second dropped silently
	req.Eventually(func() bool { return len(telemetry) == 1 }, time.Second, 10*time.Millisecond)
}
