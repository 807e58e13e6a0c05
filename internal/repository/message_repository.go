package repository

import (
	"context"
	"go-match-chat/internal/model"

	"gorm.io/gorm"
)

type MessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// 保存新消息
func (r *MessageRepository) Create(ctx context.Context, message *model.Message) error {
	return r.db.WithContext(ctx).Create(message).Error
}

// 获取会话中的消息，按插入顺序
func (r *MessageRepository) FindByMatchID(ctx context.Context, matchID uint, limit, offset int) ([]model.Message, error) {
	var messages []model.Message
	err := r.db.WithContext(ctx).
		Where("match_id = ?", matchID).
		Order("created_at ASC").
		Order("id ASC").
		Limit(limit).
		Offset(offset).
		Find(&messages).Error

	return messages, err
}

// 将对方发来的未读消息标记为已读，不更新自己的消息
func (r *MessageRepository) MarkAsRead(ctx context.Context, matchID, readerID uint) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&model.Message{}).
		Where("match_id = ? AND sender_id <> ? AND is_read = ?", matchID, readerID, false).
		Update("is_read", true)
	return result.RowsAffected, result.Error
}

