package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/JunyongPark97/SIIOT-chat-server/internal/domain"
	"github.com/JunyongPark97/SIIOT-chat-server/pkg/log"
)

// GormMessageRepository implements MessageRepository using GORM.
type GormMessageRepository struct {
	db *gorm.DB
}

// NewGormMessageRepository creates a new GORM-based message repository.
func NewGormMessageRepository(db *gorm.DB) *GormMessageRepository {
	return &GormMessageRepository{db: db}
}

// Create persists a new message.
func (r *GormMessageRepository) Create(ctx context.Context, msg *domain.Message) error {
	l := log.Ctx(ctx)

	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}

	model := domain.MessageToModel(msg)
	result := r.db.WithContext(ctx).Create(model)
	if result.Error != nil {
		l.Error().Err(result.Error).Str(log.FieldRoomID, msg.RoomID).Msg("failed to create message in db")
		return result.Error
	}

	msg.CreatedAt = model.CreatedAt
	return nil
}

// ListByRoom returns a page of room history, newest first. The cursor is
// the id of the oldest message of the previous page; "" starts from the
// newest message.
func (r *GormMessageRepository) ListByRoom(ctx context.Context, roomID, cursor string, limit int) (*domain.MessagePage, error) {
	l := log.Ctx(ctx)

	query := r.db.WithContext(ctx).
		Model(&domain.MessageModel{}).
		Where("room_id = ?", roomID)

	if cursor != "" {
		var pivot domain.MessageModel
		result := r.db.WithContext(ctx).First(&pivot, "id = ?", cursor)
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return nil, ErrMessageNotFound
			}
			return nil, result.Error
		}
		query = query.Where(
			"created_at < ? OR (created_at = ? AND id < ?)",
			pivot.CreatedAt, pivot.CreatedAt, pivot.ID,
		)
	}

	var models []domain.MessageModel
	// Fetch one extra row to detect whether more pages exist.
	result := query.Order("created_at DESC, id DESC").Limit(limit + 1).Find(&models)
	if result.Error != nil {
		l.Error().Err(result.Error).Str(log.FieldRoomID, roomID).Msg("failed to list messages")
		return nil, result.Error
	}

	hasMore := len(models) > limit
	if hasMore {
		models = models[:limit]
	}

	messages := make([]domain.Message, len(models))
	for i, model := range models {
		messages[i] = *model.ToDomain()
	}

	page := &domain.MessagePage{
		Messages: messages,
		HasMore:  hasMore,
	}
	if hasMore && len(messages) > 0 {
		page.NextCursor = messages[len(messages)-1].ID
	}
	return page, nil
}

// LastByRoom returns the newest message of a room, nil when the room has
// no messages yet.
func (r *GormMessageRepository) LastByRoom(ctx context.Context, roomID string) (*domain.Message, error) {
	var model domain.MessageModel
	result := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("created_at DESC, id DESC").
		First(&model)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return model.ToDomain(), nil
}

// CountUnread counts messages in a room that userID has not read and did
// not send.
func (r *GormMessageRepository) CountUnread(ctx context.Context, roomID, userID string) (int64, error) {
	var count int64
	result := r.db.WithContext(ctx).
		Model(&domain.MessageModel{}).
		Where("room_id = ? AND owner_id <> ? AND read = ?", roomID, userID, false).
		Count(&count)
	if result.Error != nil {
		return 0, result.Error
	}
	return count, nil
}

// MarkRead flips the read flag on a batch of messages.
func (r *GormMessageRepository) MarkRead(ctx context.Context, messageIDs []string) error {
	if len(messageIDs) == 0 {
		return nil
	}

	l := log.Ctx(ctx)
	result := r.db.WithContext(ctx).
		Model(&domain.MessageModel{}).
		Where("id IN ?", messageIDs).
		Update("read", true)
	if result.Error != nil {
		l.Error().Err(result.Error).Msg("failed to mark messages read")
		return result.Error
	}
	return nil
}
