package service

import (
	"context"
	"go-match-chat/internal/model"
	"time"
)

// 以下接口由 repository 包中的实现满足

type UserStore interface {
	Create(ctx context.Context, user *model.User) error
	FindByNickname(ctx context.Context, nickname string) (*model.User, error)
	FindByID(ctx context.Context, id uint) (*model.User, error)
}

type MatchStore interface {
	FindByID(ctx context.Context, id uint) (*model.Match, error)
}

// MatchCatalog 配对的创建和列举
type MatchCatalog interface {
	Create(ctx context.Context, userID1, userID2 uint) (*model.Match, error)
	FindBetween(ctx context.Context, userID1, userID2 uint) (*model.Match, error)
	ListByUser(ctx context.Context, userID uint) ([]model.Match, error)
}

type MessageStore interface {
	Create(ctx context.Context, message *model.Message) error
	FindByMatchID(ctx context.Context, matchID uint, limit, offset int) ([]model.Message, error)
	MarkAsRead(ctx context.Context, matchID, readerID uint) (int64, error)
}

// TokenIssuer 签发会话令牌，auth.Verifier 实现
type TokenIssuer interface {
	Issue(userID uint, ttl time.Duration) (string, error)
}
