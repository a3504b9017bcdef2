package domain

import (
	"time"
)

// MessageType enumerates persisted chat message kinds.
type MessageType int

const (
	MessageTypeText  MessageType = 1
	MessageTypeImage MessageType = 2
)

// Valid reports whether t is a known message type.
func (t MessageType) Valid() bool {
	return t == MessageTypeText || t == MessageTypeImage
}

// Message is a persisted chat message. Immutable after creation except for
// the read flag, which the HTTP read path flips.
type Message struct {
	ID        string      `json:"id"`
	RoomID    string      `json:"room_id"`
	OwnerID   string      `json:"owner_id"`
	Type      MessageType `json:"message_type"`
	Text      string      `json:"text,omitempty"`
	ImageKeys []string    `json:"image_keys,omitempty"`
	Read      bool        `json:"read"`
	CreatedAt time.Time   `json:"created_at"`
}

// wireTimeFormat is the created_at layout on outbound frames.
const wireTimeFormat = "2006-01-02T15:04:05.000000Z"

// FormatWireTime renders a timestamp the way outbound frames expect it.
func FormatWireTime(t time.Time) string {
	return t.UTC().Format(wireTimeFormat)
}

// MessageView is the serialized projection of a Message handed to the
// broker for fan-out. The broker never sees the persistence model.
type MessageView struct {
	Type            string   `json:"type"` // chat_message | chat_image
	MessageType     int      `json:"message_type"`
	Message         string   `json:"message,omitempty"`
	Image           []string `json:"image,omitempty"`
	Owner           string   `json:"owner"`
	CreatedAt       string   `json:"created_at"`
	MessageImageURL []string `json:"message_image_url,omitempty"`
}

// Outbound frame type tags.
const (
	FrameChatMessage = "chat_message"
	FrameChatImage   = "chat_image"
	FrameError       = "ERROR"
)

// NewMessageView builds the fan-out projection of a persisted message.
// imageURLs carries resolved URLs for image messages, nil for text.
func NewMessageView(m *Message, imageURLs []string) *MessageView {
	v := &MessageView{
		MessageType: int(m.Type),
		Owner:       m.OwnerID,
		CreatedAt:   FormatWireTime(m.CreatedAt),
	}
	switch m.Type {
	case MessageTypeImage:
		v.Type = FrameChatImage
		v.Image = m.ImageKeys
		v.MessageImageURL = imageURLs
	default:
		v.Type = FrameChatMessage
		v.Message = m.Text
	}
	return v
}
