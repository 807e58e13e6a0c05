package websocket

import (
	"context"
	"errors"
	"fmt"
	"go-match-chat/internal/interfaces"
	"go-match-chat/internal/metrics"
	"go-match-chat/internal/model"
	"go-match-chat/pkg/logger"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Broadcaster 把新消息推送给会话中除发送者外所有在线连接
// 不排队不重试，离线用户通过历史接口获取消息
type Broadcaster struct {
	registry *Registry
	store    ParticipantStore
}

func NewBroadcaster(registry *Registry, store ParticipantStore) *Broadcaster {
	return &Broadcaster{
		registry: registry,
		store:    store,
	}
}

// Broadcast 返回成功入队的连接数
// 只有参与者查询或序列化失败时返回错误，单个连接的失败只记录日志
func (b *Broadcaster) Broadcast(ctx context.Context, matchID uint, event model.MessageEvent, excludeUser uint) (int, error) {
	userID1, userID2, err := b.store.GetConversationParticipants(ctx, matchID)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve participants of match %d: %w", matchID, err)
	}

	data, err := EncodeNewMessage(event)
	if err != nil {
		return 0, fmt.Errorf("failed to encode new_message: %w", err)
	}

	var targets []interfaces.Client
	for i, userID := range []uint{userID1, userID2} {
		if userID == excludeUser || (i == 1 && userID == userID1) {
			continue
		}
		targets = append(targets, b.registry.ConnectionsFor(userID)...)
	}

	if len(targets) == 0 {
		logger.L.Debug("Broadcast: recipient not connected", zap.Uint("matchID", matchID), zap.Uint("messageID", event.ID))
		return 0, nil
	}

	var (
		delivered atomic.Int64
		g         errgroup.Group
	)
	for _, client := range targets {
		g.Go(func() error {
			if !client.IsOpen() {
				metrics.Deliveries.WithLabelValues("skipped").Inc()
				return nil
			}
			err := client.QueueBytes(data)
			if errors.Is(err, ErrConnectionClosed) {
				metrics.Deliveries.WithLabelValues("skipped").Inc()
				return nil
			}
			if err != nil {
				metrics.Deliveries.WithLabelValues("failed").Inc()
				logger.L.Warn("Broadcast: failed to queue message to client",
					zap.Uint("matchID", matchID),
					zap.Uint("userID", client.GetUserID()),
					zap.String("connID", client.ID()),
					zap.Error(err))
				return nil
			}
			metrics.Deliveries.WithLabelValues("delivered").Inc()
			delivered.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	logger.L.Debug("Broadcast finished",
		zap.Uint("matchID", matchID),
		zap.Uint("messageID", event.ID),
		zap.Int("targets", len(targets)),
		zap.Int64("delivered", delivered.Load()))
	return int(delivered.Load()), nil
}
