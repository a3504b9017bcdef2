package domain

import (
	"time"
)

// Room is a chat channel between exactly two marketplace participants.
type Room struct {
	ID        string     `json:"id"`
	SellerID  string     `json:"seller_id"`
	BuyerID   string     `json:"buyer_id"`
	DealID    *string    `json:"deal_id,omitempty"`
	Active    bool       `json:"active"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// HasParticipant reports whether userID is the seller or the buyer.
func (r *Room) HasParticipant(userID string) bool {
	return r.SellerID == userID || r.BuyerID == userID
}

// Counterpart returns the other participant of the room, or "" when
// userID is not a participant.
func (r *Room) Counterpart(userID string) string {
	switch userID {
	case r.SellerID:
		return r.BuyerID
	case r.BuyerID:
		return r.SellerID
	}
	return ""
}

// CreateRoomRequest represents a create room request.
type CreateRoomRequest struct {
	SellerID string  `json:"seller_id" binding:"required"`
	DealID   *string `json:"deal_id"`
}

// SendMessageRequest is the HTTP-side message write request.
type SendMessageRequest struct {
	MessageType int      `json:"message_type" binding:"required"`
	Text        string   `json:"text"`
	ImageKeys   []string `json:"image_keys"`
}

// MarkReadRequest marks a batch of messages as read.
type MarkReadRequest struct {
	MessageIDs []string `json:"message_ids" binding:"required"`
}

// RoomListEntry is one element of a participant's room listing.
type RoomListEntry struct {
	Room        Room     `json:"room"`
	LastMessage *Message `json:"last_message,omitempty"`
	UnreadCount int64    `json:"unread_count"`
}

// MessagePage is a cursor-paginated slice of room history.
type MessagePage struct {
	Messages   []Message `json:"messages"`
	NextCursor string    `json:"next_cursor,omitempty"`
	HasMore    bool      `json:"has_more"`
}
