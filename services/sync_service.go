package services

import (
	"context"
	"fmt"
	"time"

	"collab-lab/contract"
	"collab-lab/domain"
	"collab-lab/presence"
	"collab-lab/runtime"
	"collab-lab/search"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

type ISyncService interface {
	PostMessage(cmd domain.PostMessageCommand) error
	MoveItem(cmd domain.MoveItemCommand) (int64, error)
	MoveContainer(cmd domain.MoveContainerCommand) (int64, error)
	ToggleReaction(cmd domain.ToggleReactionCommand) error
	MarkRead(cmd domain.MarkReadCommand) error
	JoinRoom(connectionID string, roomID domain.RoomID, userID domain.UserID, sink contract.EventSink) error
	LeaveRoom(connectionID string, roomID domain.RoomID)
	Disconnect(connectionID string)
	MarkTyping(roomID domain.RoomID, userID domain.UserID) error
	StopTyping(roomID domain.RoomID, userID domain.UserID) error
	Snapshot(roomID domain.RoomID) presence.Snapshot
	GetMessages(roomID domain.RoomID, cursor *string) ([]domain.Message, *string, error)
	Search(ctx context.Context, terms string, roomID domain.RoomID, page int) ([]search.Hit, uint64, error)
}

// SyncService is the boundary a transport talks to. It validates
// commands before they reach the orchestrator, so malformed input is
// rejected here and never occupies a room pipeline.
type SyncService struct {
	orchestrator *runtime.Orchestrator
	validator    *validator.Validate
}

func NewSyncService(o *runtime.Orchestrator) *SyncService {
	return &SyncService{
		orchestrator: o,
		validator:    validator.New(),
	}
}

func (s *SyncService) PostMessage(cmd domain.PostMessageCommand) error {
	if cmd.CreatedAt.IsZero() {
		cmd.CreatedAt = time.Now().UTC()
	}
	if err := s.validator.Struct(cmd); err != nil {
		return fmt.Errorf("invalid post command: %w", err)
	}
	return s.orchestrator.PostMessage(cmd)
}

func (s *SyncService) MoveItem(cmd domain.MoveItemCommand) (int64, error) {
	if err := s.validator.Struct(cmd); err != nil {
		return 0, fmt.Errorf("invalid move command: %w", err)
	}
	return s.orchestrator.MoveItem(cmd)
}

func (s *SyncService) MoveContainer(cmd domain.MoveContainerCommand) (int64, error) {
	if err := s.validator.Struct(cmd); err != nil {
		return 0, fmt.Errorf("invalid move command: %w", err)
	}
	return s.orchestrator.MoveContainer(cmd)
}

func (s *SyncService) ToggleReaction(cmd domain.ToggleReactionCommand) error {
	if err := s.validator.Struct(cmd); err != nil {
		return fmt.Errorf("invalid reaction command: %w", err)
	}
	return s.orchestrator.ToggleReaction(cmd)
}

func (s *SyncService) MarkRead(cmd domain.MarkReadCommand) error {
	if cmd.ReadAt.IsZero() {
		cmd.ReadAt = time.Now().UTC()
	}
	if err := s.validator.Struct(cmd); err != nil {
		return fmt.Errorf("invalid mark read command: %w", err)
	}
	return s.orchestrator.MarkRead(cmd)
}

func (s *SyncService) JoinRoom(connectionID string, roomID domain.RoomID, userID domain.UserID, sink contract.EventSink) error {
	return s.orchestrator.Connect(connectionID, roomID, userID, sink)
}

func (s *SyncService) LeaveRoom(connectionID string, roomID domain.RoomID) {
	s.orchestrator.Leave(connectionID, roomID)
}

func (s *SyncService) Disconnect(connectionID string) {
	s.orchestrator.Disconnect(connectionID)
}

func (s *SyncService) MarkTyping(roomID domain.RoomID, userID domain.UserID) error {
	return s.orchestrator.MarkTyping(roomID, userID)
}

func (s *SyncService) StopTyping(roomID domain.RoomID, userID domain.UserID) error {
	return s.orchestrator.StopTyping(roomID, userID)
}

func (s *SyncService) Snapshot(roomID domain.RoomID) presence.Snapshot {
	return s.orchestrator.Snapshot(roomID)
}

func (s *SyncService) GetMessages(roomID domain.RoomID, cursor *string) ([]domain.Message, *string, error) {
	return s.orchestrator.GetMessages(roomID, cursor)
}

func (s *SyncService) Search(ctx context.Context, terms string, roomID domain.RoomID, page int) ([]search.Hit, uint64, error) {
	return s.orchestrator.Search(ctx, terms, roomID, page)
}

// SeenBy lists who read a message, excluding the asking user.
func (s *SyncService) SeenBy(messageID uuid.UUID, excluding domain.UserID) ([]domain.ReadReceipt, error) {
	return s.orchestrator.SeenBy(messageID, excluding)
}

// DetachReply is invoked by the CRUD layer when a reply message is
// deleted, so the parent's counter stays accurate.
func (s *SyncService) DetachReply(roomID domain.RoomID, replyMessageID uuid.UUID) (int64, error) {
	return s.orchestrator.DetachReply(roomID, replyMessageID)
}
