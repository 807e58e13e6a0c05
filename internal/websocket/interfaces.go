package websocket

import "context"

// 令牌校验接口
// auth.Verifier 实现
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (uint, error)
}

// 会话参与者查询接口
// repository.MatchRepository 实现
type ParticipantStore interface {
	GetConversationParticipants(ctx context.Context, matchID uint) (uint, uint, error)
}
