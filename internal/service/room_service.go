package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/JunyongPark97/SIIOT-chat-server/internal/domain"
	"github.com/JunyongPark97/SIIOT-chat-server/internal/repository"
	"github.com/JunyongPark97/SIIOT-chat-server/pkg/log"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 100
)

type roomService struct {
	rooms    repository.RoomRepository
	messages repository.MessageRepository
	chat     ChatService
	uploads  UploadService
}

// NewRoomService builds the HTTP-side room operations.
func NewRoomService(
	rooms repository.RoomRepository,
	messages repository.MessageRepository,
	chat ChatService,
	uploads UploadService,
) RoomService {
	return &roomService{
		rooms:    rooms,
		messages: messages,
		chat:     chat,
		uploads:  uploads,
	}
}

// CreateOrGetRoom returns the active room between the buyer and seller,
// creating one when none exists. One active room per participant pair.
func (s *roomService) CreateOrGetRoom(ctx context.Context, buyerID string, req *domain.CreateRoomRequest) (*domain.Room, error) {
	existing, err := s.rooms.FindByParticipants(ctx, req.SellerID, buyerID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, repository.ErrRoomNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	room := &domain.Room{
		ID:        uuid.New().String(),
		SellerID:  req.SellerID,
		BuyerID:   buyerID,
		DealID:    req.DealID,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.rooms.Create(ctx, room); err != nil {
		return nil, err
	}

	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldRoomID, room.ID).
		Str(log.FieldUserID, buyerID).
		Msg("room created")
	return room, nil
}

// ListRooms returns the caller's rooms with last message and unread count.
func (s *roomService) ListRooms(ctx context.Context, userID string) ([]domain.RoomListEntry, error) {
	rooms, err := s.rooms.ListByParticipant(ctx, userID)
	if err != nil {
		return nil, err
	}

	entries := make([]domain.RoomListEntry, 0, len(rooms))
	for _, room := range rooms {
		entry := domain.RoomListEntry{Room: room}

		last, err := s.messages.LastByRoom(ctx, room.ID)
		if err != nil {
			return nil, err
		}
		entry.LastMessage = last

		unread, err := s.messages.CountUnread(ctx, room.ID, userID)
		if err != nil {
			return nil, err
		}
		entry.UnreadCount = unread

		entries = append(entries, entry)
	}
	return entries, nil
}

// ExitRoom deactivates the room for both participants.
func (s *roomService) ExitRoom(ctx context.Context, userID, roomID string) error {
	room, err := s.rooms.GetByID(ctx, roomID)
	if err != nil {
		return err
	}
	if !room.HasParticipant(userID) {
		return ErrRoomForbidden
	}
	return s.rooms.Deactivate(ctx, roomID)
}

// GetHistory returns a page of room history, newest first.
func (s *roomService) GetHistory(ctx context.Context, userID, roomID, cursor string, limit int) (*domain.MessagePage, error) {
	room, err := s.rooms.GetByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !room.HasParticipant(userID) {
		return nil, ErrRoomForbidden
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	return s.messages.ListByRoom(ctx, roomID, cursor, limit)
}

// MarkRead flips the read flag on a batch of messages.
func (s *roomService) MarkRead(ctx context.Context, userID, roomID string, messageIDs []string) error {
	room, err := s.rooms.GetByID(ctx, roomID)
	if err != nil {
		return err
	}
	if !room.HasParticipant(userID) {
		return ErrRoomForbidden
	}
	if len(messageIDs) == 0 {
		return nil
	}
	return s.messages.MarkRead(ctx, messageIDs)
}

// SendMessage persists a message written over HTTP and hands it to the
// fan-out path so live subscribers see it immediately.
func (s *roomService) SendMessage(ctx context.Context, userID, roomID string, req *domain.SendMessageRequest) (*domain.Message, error) {
	room, err := s.rooms.GetByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !room.Active || !room.HasParticipant(userID) {
		return nil, ErrRoomForbidden
	}

	mt := domain.MessageType(req.MessageType)
	if !mt.Valid() {
		return nil, errors.New("invalid message type")
	}

	msg := &domain.Message{
		ID:        uuid.New().String(),
		RoomID:    roomID,
		OwnerID:   userID,
		Type:      mt,
		Text:      req.Text,
		ImageKeys: req.ImageKeys,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, err
	}

	view := domain.NewMessageView(msg, s.uploads.ResolveURLs(ctx, msg.ImageKeys))
	if err := s.chat.Deliver(ctx, roomID, view); err != nil {
		l := log.Ctx(ctx)
		l.Error().
			Str(log.FieldRoomID, roomID).
			Str(log.FieldMessageID, msg.ID).
			Err(err).
			Msg("delivery publish failed")
	}
	return msg, nil
}
