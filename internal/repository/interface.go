package repository

import (
	"context"
	"errors"

	"github.com/JunyongPark97/SIIOT-chat-server/internal/domain"
)

var (
	ErrRoomNotFound    = errors.New("room not found")
	ErrMessageNotFound = errors.New("message not found")
)

// RoomRepository persists chat rooms.
type RoomRepository interface {
	Create(ctx context.Context, room *domain.Room) error
	GetByID(ctx context.Context, id string) (*domain.Room, error)
	FindByParticipants(ctx context.Context, sellerID, buyerID string) (*domain.Room, error)
	ListByParticipant(ctx context.Context, userID string) ([]domain.Room, error)
	Deactivate(ctx context.Context, id string) error
}

// MessageRepository persists chat messages.
type MessageRepository interface {
	Create(ctx context.Context, msg *domain.Message) error
	ListByRoom(ctx context.Context, roomID, cursor string, limit int) (*domain.MessagePage, error)
	LastByRoom(ctx context.Context, roomID string) (*domain.Message, error)
	CountUnread(ctx context.Context, roomID, userID string) (int64, error)
	MarkRead(ctx context.Context, messageIDs []string) error
}
