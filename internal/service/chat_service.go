package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/JunyongPark97/SIIOT-chat-server/internal/broker"
	"github.com/JunyongPark97/SIIOT-chat-server/internal/codec"
	"github.com/JunyongPark97/SIIOT-chat-server/internal/domain"
	"github.com/JunyongPark97/SIIOT-chat-server/internal/hub"
	"github.com/JunyongPark97/SIIOT-chat-server/internal/notify"
	"github.com/JunyongPark97/SIIOT-chat-server/internal/presence"
	"github.com/JunyongPark97/SIIOT-chat-server/internal/repository"
	"github.com/JunyongPark97/SIIOT-chat-server/pkg/log"
)

var (
	// ErrHandshakeRejected means the connection must be closed without
	// joining any room.
	ErrHandshakeRejected = errors.New("handshake rejected")

	// ErrRoomForbidden means the user is not a participant of the room.
	ErrRoomForbidden = errors.New("not a room participant")
)

type chatService struct {
	hub      *hub.Hub
	broker   *broker.Broker
	presence *presence.Tracker
	rooms    repository.RoomRepository
	messages repository.MessageRepository
	notifier notify.Notifier
	uploads  UploadService
}

// NewChatService builds the session orchestrator.
func NewChatService(
	h *hub.Hub,
	b *broker.Broker,
	p *presence.Tracker,
	rooms repository.RoomRepository,
	messages repository.MessageRepository,
	notifier notify.Notifier,
	uploads UploadService,
) ChatService {
	return &chatService{
		hub:      h,
		broker:   b,
		presence: p,
		rooms:    rooms,
		messages: messages,
		notifier: notifier,
		uploads:  uploads,
	}
}

func (s *chatService) Start(ctx context.Context) error {
	go s.hub.Run(ctx)
	go func() {
		if err := s.broker.Run(ctx); err != nil {
			l := log.L()
			l.Error().Err(err).Msg("broker fan-out loop exited")
		}
	}()
	return nil
}

func (s *chatService) Stop() error {
	s.presence.Stop()
	return nil
}

// HandleConnect applies the handshake outcome. Only an authenticated
// identity with access to the room results in a registry join; every
// other outcome closes the transport with no visible state change.
func (s *chatService) HandleConnect(ctx context.Context, c *hub.Client, identity domain.Identity) error {
	logger := log.Ctx(ctx)

	switch identity.State {
	case domain.IdentityAuthenticated:
	case domain.IdentityAnonymous:
		logger.Info().
			Str(log.FieldConnID, c.ID).
			Str(log.FieldRoomID, c.Session.RoomID).
			Msg("anonymous connection rejected")
		return ErrHandshakeRejected
	default:
		logger.Warn().
			Str(log.FieldConnID, c.ID).
			Str(log.FieldRoomID, c.Session.RoomID).
			Err(identity.Err).
			Msg("credential validation failed")
		return ErrHandshakeRejected
	}

	room, err := s.rooms.GetByID(ctx, c.Session.RoomID)
	if err != nil {
		logger.Warn().
			Str(log.FieldConnID, c.ID).
			Str(log.FieldRoomID, c.Session.RoomID).
			Err(err).
			Msg("room lookup failed on connect")
		return ErrHandshakeRejected
	}
	if !room.Active || !room.HasParticipant(identity.UserID) {
		return ErrRoomForbidden
	}

	if !c.Session.Authenticate(identity.UserID) {
		return ErrHandshakeRejected
	}

	s.hub.Register(c)
	s.hub.Join(c.Session.RoomID, c)
	s.presence.Connected(ctx, identity.UserID)

	logger.Info().
		Str(log.FieldConnID, c.ID).
		Str(log.FieldUserID, identity.UserID).
		Str(log.FieldRoomID, c.Session.RoomID).
		Msg("client connected")
	return nil
}

// HandleFrame processes one inbound frame. A frame on an
// unauthenticated session gets exactly one error frame and the
// connection stays open.
func (s *chatService) HandleFrame(ctx context.Context, c *hub.Client, data []byte) {
	logger := log.Ctx(ctx)

	if !c.Session.IsAuthenticated() {
		c.PushError(domain.ErrNotLoggedIn)
		return
	}
	c.Session.UpdateActivity()

	inbound, cerr := codec.DecodeInbound(data)
	if cerr != nil {
		c.PushError(cerr)
		return
	}

	userID := c.Session.UserID()
	msg := &domain.Message{
		ID:        uuid.New().String(),
		RoomID:    c.Session.RoomID,
		OwnerID:   userID,
		Type:      inbound.Type(),
		Text:      inbound.Text,
		ImageKeys: inbound.ImageKeys,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.messages.Create(ctx, msg); err != nil {
		logger.Error().
			Str(log.FieldRoomID, c.Session.RoomID).
			Str(log.FieldUserID, userID).
			Err(err).
			Msg("message persist failed")
		c.PushError(domain.ErrClientGeneric)
		return
	}

	view := domain.NewMessageView(msg, s.uploads.ResolveURLs(ctx, msg.ImageKeys))
	if err := s.broker.Deliver(ctx, c.Session.RoomID, view); err != nil {
		logger.Error().
			Str(log.FieldRoomID, c.Session.RoomID).
			Str(log.FieldMessageID, msg.ID).
			Err(err).
			Msg("delivery publish failed")
		return
	}

	s.notifyIfOffline(ctx, msg)
}

// HandleDisconnect releases the connection's presence and room
// membership. Safe to call more than once per connection.
func (s *chatService) HandleDisconnect(ctx context.Context, c *hub.Client) {
	if !c.Session.Close() {
		return
	}
	userID := c.Session.UserID()
	s.hub.Unregister(c)
	if userID != "" {
		s.presence.Disconnected(ctx, userID)
	}
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldConnID, c.ID).
		Str(log.FieldUserID, userID).
		Str(log.FieldRoomID, c.Session.RoomID).
		Msg("client disconnected")
}

func (s *chatService) Deliver(ctx context.Context, roomID string, view *domain.MessageView) error {
	return s.broker.Deliver(ctx, roomID, view)
}

// notifyIfOffline pushes a fallback notification when the counterpart
// has no live connection. Presence read errors skip the notification
// rather than fail the delivery.
func (s *chatService) notifyIfOffline(ctx context.Context, msg *domain.Message) {
	logger := log.Ctx(ctx)

	room, err := s.rooms.GetByID(ctx, msg.RoomID)
	if err != nil {
		logger.Warn().
			Str(log.FieldRoomID, msg.RoomID).
			Err(err).
			Msg("room lookup failed for notification")
		return
	}
	recipient := room.Counterpart(msg.OwnerID)
	if recipient == "" {
		return
	}

	active, err := s.presence.IsActive(ctx, recipient)
	if err != nil {
		logger.Warn().
			Str(log.FieldUserID, recipient).
			Err(err).
			Msg("presence check failed, skipping notification")
		return
	}
	if active {
		return
	}

	n := &notify.Notification{
		RoomID:      msg.RoomID,
		SenderID:    msg.OwnerID,
		RecipientID: recipient,
		MessageType: int(msg.Type),
		Preview:     msg.Text,
		CreatedAt:   msg.CreatedAt,
	}
	if err := s.notifier.Notify(ctx, n); err != nil {
		logger.Error().
			Str(log.FieldUserID, recipient).
			Err(err).
			Msg("notification publish failed")
	}
}
