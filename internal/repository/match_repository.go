package repository

import (
	"context"
	"errors"
	"go-match-chat/internal/model"

	"gorm.io/gorm"
)

var ErrMatchNotFound = errors.New("match not found")

type MatchRepository struct {
	db *gorm.DB
}

func NewMatchRepository(db *gorm.DB) *MatchRepository {
	return &MatchRepository{db: db}
}

// 创建配对，默认状态为 matched
func (r *MatchRepository) Create(ctx context.Context, userID1, userID2 uint) (*model.Match, error) {
	match := &model.Match{
		UserID1: userID1,
		UserID2: userID2,
		Status:  model.MatchStatusMatched,
	}
	if err := r.db.WithContext(ctx).Create(match).Error; err != nil {
		return nil, err
	}
	return match, nil
}

func (r *MatchRepository) FindByID(ctx context.Context, id uint) (*model.Match, error) {
	var match model.Match
	if err := r.db.WithContext(ctx).First(&match, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &match, nil
}

// GetConversationParticipants 直接按会话ID查询双方用户
func (r *MatchRepository) GetConversationParticipants(ctx context.Context, matchID uint) (uint, uint, error) {
	var match model.Match
	err := r.db.WithContext(ctx).
		Select("id", "user_id_1", "user_id_2").
		First(&match, matchID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, 0, ErrMatchNotFound
		}
		return 0, 0, err
	}
	return match.UserID1, match.UserID2, nil
}

// FindBetween 查找两个用户之间的配对，不区分双方顺序；不存在时返回 nil, nil
func (r *MatchRepository) FindBetween(ctx context.Context, userID1, userID2 uint) (*model.Match, error) {
	var match model.Match
	err := r.db.WithContext(ctx).
		Where("(user_id_1 = ? AND user_id_2 = ?) OR (user_id_1 = ? AND user_id_2 = ?)",
			userID1, userID2, userID2, userID1).
		First(&match).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &match, nil
}

// ListByUser 用户参与的全部配对，最新的在前
func (r *MatchRepository) ListByUser(ctx context.Context, userID uint) ([]model.Match, error) {
	var matches []model.Match
	err := r.db.WithContext(ctx).
		Where("user_id_1 = ? OR user_id_2 = ?", userID, userID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&matches).Error
	if err != nil {
		return nil, err
	}
	return matches, nil
}
