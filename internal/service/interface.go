package service

import (
	"context"

	"github.com/JunyongPark97/SIIOT-chat-server/internal/domain"
	"github.com/JunyongPark97/SIIOT-chat-server/internal/hub"
)

// ChatService drives the connection session lifecycle and the message
// fan-out path.
type ChatService interface {
	// HandleConnect runs the handshake outcome for a new connection. A
	// non-nil error means the transport must be closed without any
	// registry mutation.
	HandleConnect(ctx context.Context, c *hub.Client, identity domain.Identity) error

	// HandleFrame processes one inbound frame from an open connection.
	HandleFrame(ctx context.Context, c *hub.Client, data []byte)

	// HandleDisconnect tears down a closed connection. Idempotent.
	HandleDisconnect(ctx context.Context, c *hub.Client)

	// Deliver pushes an already-persisted message view into the fan-out
	// path. Exposed to the HTTP layer.
	Deliver(ctx context.Context, roomID string, view *domain.MessageView) error

	Start(ctx context.Context) error
	Stop() error
}

// RoomService covers the HTTP-side room operations.
type RoomService interface {
	CreateOrGetRoom(ctx context.Context, buyerID string, req *domain.CreateRoomRequest) (*domain.Room, error)
	ListRooms(ctx context.Context, userID string) ([]domain.RoomListEntry, error)
	ExitRoom(ctx context.Context, userID, roomID string) error
	GetHistory(ctx context.Context, userID, roomID, cursor string, limit int) (*domain.MessagePage, error)
	MarkRead(ctx context.Context, userID, roomID string, messageIDs []string) error
	SendMessage(ctx context.Context, userID, roomID string, req *domain.SendMessageRequest) (*domain.Message, error)
}

// UploadService issues image upload keys and resolves image URLs.
type UploadService interface {
	IssueKey(ctx context.Context, roomID string) (key, uploadURL string, err error)
	ResolveURLs(ctx context.Context, keys []string) []string
}
