// Package notify is the offline fallback: when a room's counterpart holds
// no open connection, the persisted message is handed to the downstream
// push-notification pipeline instead of being lost to the air.
package notify

import (
	"context"
	"time"
)

// Notification is one push-notification event for an offline recipient.
type Notification struct {
	RoomID      string    `json:"room_id"`
	SenderID    string    `json:"sender_id"`
	RecipientID string    `json:"recipient_id"`
	MessageType int       `json:"message_type"`
	Preview     string    `json:"preview"`
	CreatedAt   time.Time `json:"created_at"`
}

// Notifier publishes notifications for offline recipients. Best-effort:
// callers log failures and move on, the chat write path never depends on
// the notification pipeline.
type Notifier interface {
	Notify(ctx context.Context, n *Notification) error
	Close() error
}

// NopNotifier discards notifications. Used when the pipeline is disabled.
type NopNotifier struct{}

func (NopNotifier) Notify(ctx context.Context, n *Notification) error { return nil }
func (NopNotifier) Close() error                                      { return nil }
