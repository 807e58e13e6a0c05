package interfaces

import (
	"context"
	"go-match-chat/internal/model"
)

// 一条已认证的实时连接
// websocket.Conn 实现
type Client interface {
	ID() string
	GetUserID() uint
	QueueBytes(data []byte) error
	IsOpen() bool
	Close()
	// 超出每用户连接上限时由注册表调用
	Evict()
}

// 将新消息推送给会话中除发送者外的在线连接
// websocket.Broadcaster 实现，service.ChatService 使用
type Broadcaster interface {
	Broadcast(ctx context.Context, matchID uint, event model.MessageEvent, excludeUser uint) (int, error)
}
