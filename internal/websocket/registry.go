package websocket

import (
	"go-match-chat/internal/interfaces"
	"go-match-chat/internal/metrics"
	"go-match-chat/pkg/logger"
	"sync"

	"go.uber.org/zap"
)

type registration struct {
	client interfaces.Client
	seq    uint64
}

// Registry 用户ID到其在线连接集合的索引
// 不变量：用户键存在当且仅当其连接集合非空
type Registry struct {
	mu     sync.RWMutex
	byUser map[uint]map[string]registration
	total  int
	seq    uint64

	// 每用户最大连接数，<=0 不限制；超限时淘汰最早登记的连接
	maxPerUser int
}

func NewRegistry(maxPerUser int) *Registry {
	return &Registry{
		byUser:     make(map[uint]map[string]registration),
		maxPerUser: maxPerUser,
	}
}

// Register 将连接加入用户的集合，重复登记同一连接无副作用
func (r *Registry) Register(userID uint, client interfaces.Client) {
	r.mu.Lock()
	set, ok := r.byUser[userID]
	if !ok {
		set = make(map[string]registration)
		r.byUser[userID] = set
	}
	if _, exists := set[client.ID()]; exists {
		r.mu.Unlock()
		return
	}
	r.seq++
	set[client.ID()] = registration{client: client, seq: r.seq}
	r.total++

	var evicted []interfaces.Client
	for r.maxPerUser > 0 && len(set) > r.maxPerUser {
		oldest := oldestRegistration(set)
		delete(set, oldest.client.ID())
		r.total--
		evicted = append(evicted, oldest.client)
	}
	perUser := len(set)
	r.reportLocked()
	r.mu.Unlock()

	logger.L.Info("Client registered",
		zap.Uint("userID", userID),
		zap.String("connID", client.ID()),
		zap.Int("userConnections", perUser))

	// 在锁外异步关闭被淘汰的连接，使用专用关闭码
	for _, c := range evicted {
		metrics.Evictions.Inc()
		logger.L.Warn("Connection limit reached, evicting oldest connection",
			zap.Uint("userID", userID),
			zap.String("connID", c.ID()),
			zap.Int("limit", r.maxPerUser))
		go c.Evict()
	}
}

// Unregister 移除连接；连接不存在时什么都不做
func (r *Registry) Unregister(userID uint, client interfaces.Client) {
	r.mu.Lock()
	set, ok := r.byUser[userID]
	if !ok {
		r.mu.Unlock()
		return
	}
	reg, exists := set[client.ID()]
	if !exists || reg.client != client {
		r.mu.Unlock()
		return
	}
	delete(set, client.ID())
	r.total--
	if len(set) == 0 {
		delete(r.byUser, userID)
	}
	r.reportLocked()
	r.mu.Unlock()

	logger.L.Info("Client unregistered", zap.Uint("userID", userID), zap.String("connID", client.ID()))
}

// ConnectionsFor 返回用户连接的快照，调用方可以在锁外遍历
func (r *Registry) ConnectionsFor(userID uint) []interfaces.Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.byUser[userID]
	if len(set) == 0 {
		return nil
	}
	out := make([]interfaces.Client, 0, len(set))
	for _, reg := range set {
		out = append(out, reg.client)
	}
	return out
}

// IsOnline 用户是否至少有一个连接
func (r *Registry) IsOnline(userID uint) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byUser[userID]
	return ok
}

// Count 已登记的连接总数
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.total
}

// OnlineUsers 在线用户数
func (r *Registry) OnlineUsers() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser)
}

// reportLocked 在持有写锁时更新指标，保证各次 Set 的顺序与修改顺序一致
func (r *Registry) reportLocked() {
	metrics.OnlineUsers.Set(float64(len(r.byUser)))
	metrics.ActiveConnections.Set(float64(r.total))
}

func oldestRegistration(set map[string]registration) registration {
	var oldest registration
	for _, reg := range set {
		if oldest.client == nil || reg.seq < oldest.seq {
			oldest = reg
		}
	}
	return oldest
}
