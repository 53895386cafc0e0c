// Package runtime wires rooms, workers, repositories and sinks together.
// It orchestrates the system without containing business logic or domain
// rules: ordering lives in ordering, presence in presence, and so on.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"collab-lab/contract"
	"collab-lab/domain"
	"collab-lab/domain/event"
	"collab-lab/errors"
	"collab-lab/ordering"
	"collab-lab/presence"
	"collab-lab/projection"
	"collab-lab/repositories"
	"collab-lab/runtime/workers"
	"collab-lab/search"
	"collab-lab/sink"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// Tunables gathers the orchestrator's runtime knobs, filled from the
// environment by the binary.
type Tunables struct {
	BufferSize     int
	SinkTimeout    time.Duration
	SweepInterval  time.Duration
	MetricInterval time.Duration
}

type Orchestrator struct {
	mu             sync.Mutex
	log            *slog.Logger
	rooms          map[domain.RoomID]*domain.Room
	roomCommands   map[domain.RoomID]chan domain.Command
	permanentSinks []contract.EventSink
	supervisor     contract.ISupervisor
	registry       contract.IRegistry
	presence       *presence.Aggregator

	boards    repositories.IBoardRepository
	reactions repositories.IReactionRepository
	threads   repositories.IThreadRepository
	messages  repositories.IMessageRepository
	index     *search.MessageIndex

	timeline  *projection.Timeline
	boardView *projection.BoardView

	rawEvents       chan event.DomainEvent
	domainEvents    chan event.DomainEvent
	telemetryEvents chan event.DomainEvent

	tunables Tunables
	started  bool
}

func NewOrchestrator(
	log *slog.Logger,
	supervisor *workers.Supervisor,
	registry *Registry,
	aggregator *presence.Aggregator,
	boards repositories.IBoardRepository,
	reactions repositories.IReactionRepository,
	threads repositories.IThreadRepository,
	messages repositories.IMessageRepository,
	index *search.MessageIndex,
	tunables Tunables) *Orchestrator {
	return &Orchestrator{
		log:             log,
		rooms:           make(map[domain.RoomID]*domain.Room),
		roomCommands:    make(map[domain.RoomID]chan domain.Command),
		supervisor:      supervisor,
		registry:        registry,
		presence:        aggregator,
		boards:          boards,
		reactions:       reactions,
		threads:         threads,
		messages:        messages,
		index:           index,
		timeline:        projection.NewTimeline(),
		boardView:       projection.NewBoardView(),
		rawEvents:       make(chan event.DomainEvent, tunables.BufferSize),
		domainEvents:    make(chan event.DomainEvent, tunables.BufferSize),
		telemetryEvents: make(chan event.DomainEvent, tunables.BufferSize),
		tunables:        tunables,
	}
}

// RegisterRoom creates the room's dedicated command channel and worker.
// One worker per room is what keeps a room's events in commit order.
func (o *Orchestrator) RegisterRoom(room *domain.Room) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.rooms[room.ID]; ok {
		o.log.Info(fmt.Sprintf("Room %s already exists", room.ID))
		return
	}

	commands := make(chan domain.Command, o.tunables.BufferSize)
	o.rooms[room.ID] = room
	o.roomCommands[room.ID] = commands

	worker := workers.NewRoomWorker(room, o.threads, commands, o.rawEvents, o.log)
	if o.started {
		o.supervisor.Start(o.supervisorContext(), worker)
		return
	}
	o.supervisor.Add(worker)
}

func (o *Orchestrator) supervisorContext() context.Context {
	if sup, ok := o.supervisor.(*workers.Supervisor); ok {
		return sup.Context()
	}
	return context.Background()
}

func (o *Orchestrator) Add(sinks ...contract.EventSink) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.permanentSinks = append(o.permanentSinks, sinks...)
}

// GetMembers exposes room membership to the enrichment stage.
func (o *Orchestrator) GetMembers(roomID domain.RoomID) ([]domain.Participant, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	room, ok := o.rooms[roomID]
	if !ok {
		return nil, errors.ErrUnknownRoom
	}
	return room.Members(), nil
}

func (o *Orchestrator) AddMember(roomID domain.RoomID, p domain.Participant) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	room, ok := o.rooms[roomID]
	if !ok {
		return errors.ErrUnknownRoom
	}
	room.AddMember(p)
	return nil
}

func (o *Orchestrator) RemoveMember(roomID domain.RoomID, userID domain.UserID) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	room, ok := o.rooms[roomID]
	if !ok {
		return errors.ErrUnknownRoom
	}
	room.RemoveMember(userID)
	return nil
}

// Connect attaches a live connection to a room: the sink starts
// receiving the room's fan-out and the user becomes present. Presence
// only changes on the user's first connection into the room.
func (o *Orchestrator) Connect(connectionID string, roomID domain.RoomID, userID domain.UserID, s contract.EventSink) error {
	participant, err := o.member(roomID, userID)
	if err != nil {
		return err
	}

	o.registry.Subscribe(connectionID, roomID, s)
	if o.presence.OnJoin(connectionID, roomID, participant) {
		o.publishPresence(roomID)
	}
	return nil
}

// Leave detaches one connection from one room, keeping its other
// subscriptions alive.
func (o *Orchestrator) Leave(connectionID string, roomID domain.RoomID) {
	o.registry.Unsubscribe(connectionID, roomID)
	if o.presence.OnLeave(connectionID, roomID) {
		o.publishPresence(roomID)
	}
}

// Disconnect releases everything a dropped connection held: room
// subscriptions, presence and typing state, each affected room getting
// a fresh snapshot.
func (o *Orchestrator) Disconnect(connectionID string) {
	o.registry.DropConnection(connectionID)
	for _, roomID := range o.presence.OnDisconnect(connectionID) {
		o.publishPresence(roomID)
	}
}

// PostMessage enqueues a message command on its room's pipeline.
// Everything after this call is asynchronous: enrichment, fan-out and
// persistence happen on the workers.
func (o *Orchestrator) PostMessage(cmd domain.PostMessageCommand) error {
	o.mu.Lock()
	commands, ok := o.roomCommands[cmd.Room]
	o.mu.Unlock()
	if !ok {
		return errors.ErrUnknownRoom
	}

	// Structural rejections happen here, synchronously, so the client
	// can revert its optimistic update. The worker re-checks on commit.
	if cmd.ParentID != nil {
		parentOfParent, err := o.threads.ParentOf(*cmd.ParentID)
		if err != nil {
			return err
		}
		if parentOfParent != nil {
			return errors.ErrNestedThreadNotAllowed
		}
	}

	select {
	case commands <- cmd:
		return nil
	default:
		o.log.Warn(fmt.Sprintf("Command channel full for Room %s, dropping command", cmd.Room))
		return fmt.Errorf("room %s pipeline saturated", cmd.Room)
	}
}

// MoveItem reorders an item between the two named neighbours,
// synchronously. When the gap between the neighbours is exhausted the
// container is renumbered once and the allocation retried; the caller
// only ever sees the final position.
func (o *Orchestrator) MoveItem(cmd domain.MoveItemCommand) (int64, error) {
	if _, err := o.room(cmd.Room); err != nil {
		return 0, err
	}
	item, err := o.boards.GetItem(cmd.ItemID)
	if err != nil {
		return 0, err
	}

	position, err := o.allocate(cmd)
	if err == errors.ErrOrderPrecisionExhausted {
		if err = o.reindexContainer(cmd.TargetContainerID); err != nil {
			return 0, err
		}
		position, err = o.allocate(cmd)
	}
	if err != nil {
		return 0, err
	}

	item.ContainerID = cmd.TargetContainerID
	item.Position = position
	if err := o.boards.SaveItem(item); err != nil {
		return 0, err
	}

	o.publish(event.ItemReordered{
		ID:          uuid.New(),
		Room:        cmd.Room,
		ItemID:      item.ID,
		ContainerID: item.ContainerID,
		Position:    position,
		At:          time.Now().UTC(),
	})
	return position, nil
}

// allocate resolves the neighbour ids to their current positions and
// asks the allocator for a spot between them.
func (o *Orchestrator) allocate(cmd domain.MoveItemCommand) (int64, error) {
	after, err := o.neighbourPosition(cmd.AfterID)
	if err != nil {
		return 0, err
	}
	before, err := o.neighbourPosition(cmd.BeforeID)
	if err != nil {
		return 0, err
	}
	return ordering.Allocate(after, before)
}

func (o *Orchestrator) neighbourPosition(itemID *uuid.UUID) (*int64, error) {
	if itemID == nil {
		return nil, nil
	}
	item, err := o.boards.GetItem(*itemID)
	if err != nil {
		return nil, err
	}
	return lo.ToPtr(item.Position), nil
}

func (o *Orchestrator) reindexContainer(containerID uuid.UUID) error {
	items, err := o.boards.ListItems(containerID)
	if err != nil {
		return err
	}
	return o.boards.ReplaceItems(containerID, ordering.Reindex(items))
}

// CreateContainer appends a new container at the end of the room's board.
func (o *Orchestrator) CreateContainer(roomID domain.RoomID, title string) (domain.Container, error) {
	if _, err := o.room(roomID); err != nil {
		return domain.Container{}, err
	}
	existing, err := o.boards.ListContainers(roomID)
	if err != nil {
		return domain.Container{}, err
	}

	// Containers arrive sorted, so the last one carries the maximum
	// position. Allocating past it keeps positions distinct even after
	// deletions have left holes in the sequence.
	var after *int64
	if len(existing) > 0 {
		after = lo.ToPtr(existing[len(existing)-1].Position)
	}
	position, err := ordering.Allocate(after, nil)
	if err != nil {
		return domain.Container{}, err
	}

	container := domain.Container{
		ID:       uuid.New(),
		Room:     roomID,
		Title:    title,
		Position: position,
	}
	return container, o.boards.CreateContainer(container)
}

// MoveContainer reorders a board column between the two named neighbour
// containers, with the same allocate-reindex-retry arithmetic items use.
func (o *Orchestrator) MoveContainer(cmd domain.MoveContainerCommand) (int64, error) {
	if _, err := o.room(cmd.Room); err != nil {
		return 0, err
	}
	containers, err := o.boards.ListContainers(cmd.Room)
	if err != nil {
		return 0, err
	}

	position, err := allocateContainerSlot(containers, cmd.AfterID, cmd.BeforeID)
	if err == errors.ErrOrderPrecisionExhausted {
		if containers, err = o.reindexContainers(cmd.Room, containers); err != nil {
			return 0, err
		}
		position, err = allocateContainerSlot(containers, cmd.AfterID, cmd.BeforeID)
	}
	if err != nil {
		return 0, err
	}

	container, ok := lo.Find(containers, func(c domain.Container) bool { return c.ID == cmd.ContainerID })
	if !ok {
		return 0, errors.ErrUnknownItem
	}
	container.Position = position
	if err := o.boards.CreateContainer(container); err != nil {
		return 0, err
	}

	o.publish(event.ContainerReordered{
		ID:          uuid.New(),
		Room:        cmd.Room,
		ContainerID: container.ID,
		Position:    position,
		At:          time.Now().UTC(),
	})
	return position, nil
}

func allocateContainerSlot(containers []domain.Container, afterID, beforeID *uuid.UUID) (int64, error) {
	after, err := containerPosition(containers, afterID)
	if err != nil {
		return 0, err
	}
	before, err := containerPosition(containers, beforeID)
	if err != nil {
		return 0, err
	}
	return ordering.Allocate(after, before)
}

func containerPosition(containers []domain.Container, id *uuid.UUID) (*int64, error) {
	if id == nil {
		return nil, nil
	}
	container, ok := lo.Find(containers, func(c domain.Container) bool { return c.ID == *id })
	if !ok {
		return nil, errors.ErrUnknownItem
	}
	return lo.ToPtr(container.Position), nil
}

// reindexContainers renumbers a room's columns to canonical steps,
// reusing the item arithmetic over the containers' order keys.
func (o *Orchestrator) reindexContainers(roomID domain.RoomID, containers []domain.Container) ([]domain.Container, error) {
	keys := lo.Map(containers, func(c domain.Container, _ int) domain.OrderedItem {
		return domain.OrderedItem{ID: c.ID, Position: c.Position}
	})

	byID := make(map[uuid.UUID]domain.Container, len(containers))
	for _, container := range containers {
		byID[container.ID] = container
	}
	renumbered := make([]domain.Container, 0, len(containers))
	for _, key := range ordering.Reindex(keys) {
		container := byID[key.ID]
		container.Position = key.Position
		renumbered = append(renumbered, container)
	}

	if err := o.boards.ReplaceContainers(roomID, renumbered); err != nil {
		return nil, err
	}
	return renumbered, nil
}

// DeleteContainer refuses to delete a container still holding items.
func (o *Orchestrator) DeleteContainer(containerID uuid.UUID) error {
	return o.boards.DeleteContainer(containerID)
}

func (o *Orchestrator) ListContainers(roomID domain.RoomID) ([]domain.Container, error) {
	if _, err := o.room(roomID); err != nil {
		return nil, err
	}
	return o.boards.ListContainers(roomID)
}

func (o *Orchestrator) ListItems(containerID uuid.UUID) ([]domain.OrderedItem, error) {
	return o.boards.ListItems(containerID)
}

// ToggleReaction flips the user's membership in the reaction set and
// broadcasts the resulting set. Toggling twice restores the original
// state.
func (o *Orchestrator) ToggleReaction(cmd domain.ToggleReactionCommand) error {
	if _, err := o.member(cmd.Room, cmd.UserID); err != nil {
		return err
	}
	if _, err := o.reactions.ToggleReaction(cmd.MessageID, cmd.UserID, cmd.Emoji); err != nil {
		return err
	}
	userIDs, err := o.reactions.ReactionSet(cmd.MessageID, cmd.Emoji)
	if err != nil {
		return err
	}

	o.publish(event.ReactionChanged{
		ID:        uuid.New(),
		Room:      cmd.Room,
		MessageID: cmd.MessageID,
		Emoji:     cmd.Emoji,
		UserIDs:   userIDs,
		At:        time.Now().UTC(),
	})
	return nil
}

// MarkRead advances the user's read receipt on a message. Receipts are
// monotonic: a stale timestamp neither regresses storage nor produces
// an event.
func (o *Orchestrator) MarkRead(cmd domain.MarkReadCommand) error {
	if _, err := o.member(cmd.Room, cmd.UserID); err != nil {
		return err
	}
	advanced, err := o.reactions.MarkRead(cmd.MessageID, cmd.UserID, cmd.ReadAt)
	if err != nil {
		return err
	}
	if !advanced {
		// Stale receipt: storage kept the newer timestamp, so there is
		// nothing to broadcast either.
		return nil
	}

	o.publish(event.ReceiptUpdated{
		ID:        uuid.New(),
		Room:      cmd.Room,
		MessageID: cmd.MessageID,
		UserID:    cmd.UserID,
		ReadAt:    cmd.ReadAt,
	})
	return nil
}

func (o *Orchestrator) SeenBy(messageID uuid.UUID, excluding domain.UserID) ([]domain.ReadReceipt, error) {
	return o.reactions.SeenBy(messageID, excluding)
}

func (o *Orchestrator) ReplyCount(parentMessageID uuid.UUID) (int64, error) {
	return o.threads.ReplyCount(parentMessageID)
}

// DetachReply unlinks a deleted reply from its parent and broadcasts
// the decremented counter. The message row itself belongs to the
// external CRUD layer; the core only maintains the linkage. Deleting a
// message that never was a reply is a no-op.
func (o *Orchestrator) DetachReply(roomID domain.RoomID, replyMessageID uuid.UUID) (int64, error) {
	if _, err := o.room(roomID); err != nil {
		return 0, err
	}
	parentID, err := o.threads.ParentOf(replyMessageID)
	if err != nil {
		return 0, err
	}
	if parentID == nil {
		return 0, nil
	}
	count, err := o.threads.Detach(*parentID, replyMessageID)
	if err != nil {
		return 0, err
	}

	o.publish(event.ThreadCountChanged{
		ID:              uuid.New(),
		Room:            roomID,
		ParentMessageID: *parentID,
		ReplyCount:      count,
		At:              time.Now().UTC(),
	})
	return count, nil
}

// MarkTyping refreshes the user's typing indicator; the indicator also
// expires on its own through the sweep worker.
func (o *Orchestrator) MarkTyping(roomID domain.RoomID, userID domain.UserID) error {
	if _, err := o.member(roomID, userID); err != nil {
		return err
	}
	if o.presence.MarkTyping(roomID, userID) {
		o.publishPresence(roomID)
	}
	return nil
}

func (o *Orchestrator) StopTyping(roomID domain.RoomID, userID domain.UserID) error {
	if _, err := o.member(roomID, userID); err != nil {
		return err
	}
	if o.presence.StopTyping(roomID, userID) {
		o.publishPresence(roomID)
	}
	return nil
}

func (o *Orchestrator) Snapshot(roomID domain.RoomID) presence.Snapshot {
	return o.presence.Snapshot(roomID)
}

func (o *Orchestrator) Timeline() *projection.Timeline {
	return o.timeline
}

func (o *Orchestrator) BoardView() *projection.BoardView {
	return o.boardView
}

// GetMessages pages backwards through the room's durable log, newest
// first. The returned cursor resumes the next page.
func (o *Orchestrator) GetMessages(roomID domain.RoomID, cursor *string) ([]domain.Message, *string, error) {
	diskMessages, next, err := o.messages.GetMessages(roomID, cursor)
	if err != nil {
		return nil, nil, err
	}
	return fromDiskMessages(diskMessages), next, nil
}

func fromDiskMessages(messages []repositories.DiskMessage) []domain.Message {
	return lo.Map(messages, func(item repositories.DiskMessage, _ int) domain.Message {
		return domain.Message{
			ID:        item.ID,
			Room:      item.Room,
			SenderID:  item.Author,
			Content:   item.Content,
			ParentID:  item.ParentID,
			CreatedAt: item.At,
		}
	})
}

func (o *Orchestrator) Search(ctx context.Context, terms string, roomID domain.RoomID, page int) ([]search.Hit, uint64, error) {
	return o.index.Search(ctx, terms, roomID, page)
}

// Start assembles the pipeline and launches every worker under the
// supervisor. Room workers registered before Start are included; rooms
// registered later get their worker started on the live supervision
// context.
func (o *Orchestrator) Start(ctx context.Context) error {
	fanoutWorker, newSinks := o.preparePipeline()

	sweepWorker := workers.NewPresenceSweepWorker(
		o.presence, o.domainEvents, o.tunables.SweepInterval, o.log)
	enrichmentWorker := workers.NewEnrichmentWorker(
		o, o.presence, o.rawEvents, o.domainEvents, o.log)
	telemetryWorker, err := workers.NewTelemetryWorker(
		o.telemetryEvents, o.tunables.MetricInterval, o.log)
	if err != nil {
		return err
	}

	o.mu.Lock()
	o.permanentSinks = append(o.permanentSinks, newSinks...)
	o.supervisor.Add(enrichmentWorker, fanoutWorker, sweepWorker, telemetryWorker)
	o.started = true
	o.mu.Unlock()

	o.log.Info("Starting orchestrator and all supervised workers")
	o.supervisor.Run(ctx)
	return nil
}

// preparePipeline initializes the permanent sinks and the fanout worker.
func (o *Orchestrator) preparePipeline() (contract.Worker, []contract.EventSink) {
	newSinks := []contract.EventSink{
		o.timeline,
		o.boardView,
		sink.NewDiskSink(o.messages, o.log),
		sink.NewSearchSink(o.index, o.log),
	}
	allSinks := append(append([]contract.EventSink(nil), o.permanentSinks...), newSinks...)

	fanoutWorker := workers.NewEventFanoutWorker(
		o.registry,
		allSinks,
		o.domainEvents,
		o.telemetryEvents,
		o.tunables.SinkTimeout,
		o.log,
	)
	return fanoutWorker, newSinks
}

// Stop initiates a graceful shutdown: the supervision context is
// canceled and every worker drains out.
func (o *Orchestrator) Stop() {
	o.log.Info("Requesting orchestrator shutdown")
	o.supervisor.Stop()
}

// publish pushes an event produced by a synchronous operation straight
// to fan-out, skipping the enrichment stage.
func (o *Orchestrator) publish(evt event.DomainEvent) {
	select {
	case o.domainEvents <- evt:
	default:
		o.log.Warn("Event channel full, dropping event",
			"room", evt.RoomID(), "event", evt.EventID())
	}
}

func (o *Orchestrator) publishPresence(roomID domain.RoomID) {
	snapshot := o.presence.Snapshot(roomID)
	o.publish(event.PresenceChanged{
		ID:      uuid.New(),
		Room:    roomID,
		Present: snapshot.Present,
		Typing:  snapshot.Typing,
		At:      time.Now().UTC(),
	})
}

func (o *Orchestrator) room(roomID domain.RoomID) (*domain.Room, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	room, ok := o.rooms[roomID]
	if !ok {
		return nil, errors.ErrUnknownRoom
	}
	return room, nil
}

func (o *Orchestrator) member(roomID domain.RoomID, userID domain.UserID) (domain.Participant, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	room, ok := o.rooms[roomID]
	if !ok {
		return domain.Participant{}, errors.ErrUnknownRoom
	}
	participant, ok := room.Member(userID)
	if !ok {
		return domain.Participant{}, errors.ErrUnknownUser
	}
	return participant, nil
}
