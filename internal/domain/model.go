package domain

import (
	"time"

	"github.com/JunyongPark97/SIIOT-chat-server/pkg/database"
)

// RoomModel is the GORM model for the chat_rooms table.
type RoomModel struct {
	ID        string    `gorm:"type:varchar(36);primaryKey"`
	SellerID  string    `gorm:"type:varchar(36);index:idx_room_seller;not null"`
	BuyerID   string    `gorm:"type:varchar(36);index:idx_room_buyer;not null"`
	DealID    *string   `gorm:"type:varchar(36);uniqueIndex"`
	Active    bool      `gorm:"index;not null;default:true"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// TableName specifies the table name for RoomModel.
func (RoomModel) TableName() string {
	return "chat_rooms"
}

// ToDomain converts RoomModel to domain Room.
func (m *RoomModel) ToDomain() *Room {
	return &Room{
		ID:        m.ID,
		SellerID:  m.SellerID,
		BuyerID:   m.BuyerID,
		DealID:    m.DealID,
		Active:    m.Active,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// RoomToModel converts domain Room to RoomModel.
func RoomToModel(r *Room) *RoomModel {
	return &RoomModel{
		ID:        r.ID,
		SellerID:  r.SellerID,
		BuyerID:   r.BuyerID,
		DealID:    r.DealID,
		Active:    r.Active,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

// MessageModel is the GORM model for the chat_messages table.
type MessageModel struct {
	ID          string               `gorm:"type:varchar(36);primaryKey"`
	RoomID      string               `gorm:"type:varchar(36);index:idx_msg_room_created,priority:1;not null"`
	OwnerID     string               `gorm:"type:varchar(36);index;not null"`
	MessageType int                  `gorm:"index;not null"`
	Text        string               `gorm:"type:text"`
	ImageKeys   database.StringArray `gorm:"type:text"`
	Read        bool                 `gorm:"not null;default:false"`
	CreatedAt   time.Time            `gorm:"autoCreateTime;index:idx_msg_room_created,priority:2"`
}

// TableName specifies the table name for MessageModel.
func (MessageModel) TableName() string {
	return "chat_messages"
}

// ToDomain converts MessageModel to domain Message.
func (m *MessageModel) ToDomain() *Message {
	return &Message{
		ID:        m.ID,
		RoomID:    m.RoomID,
		OwnerID:   m.OwnerID,
		Type:      MessageType(m.MessageType),
		Text:      m.Text,
		ImageKeys: []string(m.ImageKeys),
		Read:      m.Read,
		CreatedAt: m.CreatedAt,
	}
}

// MessageToModel converts domain Message to MessageModel.
func MessageToModel(msg *Message) *MessageModel {
	return &MessageModel{
		ID:          msg.ID,
		RoomID:      msg.RoomID,
		OwnerID:     msg.OwnerID,
		MessageType: int(msg.Type),
		Text:        msg.Text,
		ImageKeys:   database.StringArray(msg.ImageKeys),
		Read:        msg.Read,
		CreatedAt:   msg.CreatedAt,
	}
}
