package wsclient

import (
	"context"
	"errors"
	"fmt"
	"go-match-chat/pkg/logger"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var (
	ErrNotConnected = errors.New("not connected")
	ErrGivenUp      = errors.New("reconnect attempts exhausted")
	// ErrEvicted 同一用户的新连接挤掉了本连接
	ErrEvicted      = errors.New("connection evicted by a newer session")
)

// closeEvicted 服务端挤下线时使用的关闭码
const closeEvicted = 4000

// AuthError 服务端拒绝了令牌，不会自动重试
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string {
	return "authentication rejected: " + e.Message
}

// Handlers 事件回调，均在控制器锁外调用，可以为 nil
type Handlers struct {
	OnMessage     func(Message)
	OnStateChange func(from, to State)
	OnConnected   func(userID uint)
	OnAuthError   func(err *AuthError)
	OnServerError func(message string)
	// 重试用尽，cause 为最后一次失败原因
	OnGiveUp func(cause error)
	// 被同一用户的新连接挤下线，不会自动重连
	OnEvicted func(err error)
}

type Config struct {
	URL   string
	Token string

	InitialInterval time.Duration
	Multiplier      float64
	MaxInterval     time.Duration
	MaxRetries      uint64
	DialTimeout     time.Duration

	// 为 nil 时使用 gorilla/websocket 和 time.AfterFunc
	Dialer    Dialer
	Scheduler Scheduler
}

func DefaultConfig(url, token string) Config {
	return Config{
		URL:             url,
		Token:           token,
		InitialInterval: time.Second,
		Multiplier:      2,
		MaxInterval:     30 * time.Second,
		MaxRetries:      5,
		DialTimeout:     10 * time.Second,
	}
}

// Controller 负责建立连接、认证以及意外断开后的指数退避重连
//
// 每次离开一个连接会话时 gen 递增，过期的定时器和旧连接上的事件
// 通过比较 gen 和当前状态被丢弃。
type Controller struct {
	cfg      Config
	handlers Handlers
	dialer   Dialer
	sched    Scheduler
	policy   backoff.BackOff

	mu        sync.Mutex
	state     State
	gen       uint64
	attempts  int
	userID    uint
	transport Transport
	timer     Timer
	pending   []func()
}

func NewController(cfg Config, handlers Handlers) *Controller {
	if cfg.Dialer == nil {
		cfg.Dialer = NewWebsocketDialer()
	}
	if cfg.Scheduler == nil {
		cfg.Scheduler = realScheduler{}
	}

	expo := &backoff.ExponentialBackOff{
		InitialInterval:     cfg.InitialInterval,
		RandomizationFactor: 0,
		Multiplier:          cfg.Multiplier,
		MaxInterval:         cfg.MaxInterval,
		MaxElapsedTime:      0,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}
	expo.Reset()

	return &Controller{
		cfg:      cfg,
		handlers: handlers,
		dialer:   cfg.Dialer,
		sched:    cfg.Scheduler,
		policy:   backoff.WithMaxRetries(expo, cfg.MaxRetries),
		state:    StateDisconnected,
	}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Attempts 当前连续失败次数，认证成功后清零
func (c *Controller) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

// UserID 最近一次认证成功返回的用户ID
func (c *Controller) UserID() uint {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID
}

// Connect 从 Disconnected 或 GivenUp 开始一轮新的连接，其他状态下无操作
// 首次拨号在调用方协程中同步进行
func (c *Controller) Connect() {
	c.mu.Lock()
	if c.state != StateDisconnected && c.state != StateGivenUp {
		c.mu.Unlock()
		return
	}
	c.gen++
	c.attempts = 0
	c.policy.Reset()
	gen := c.gen
	c.setStateLocked(StateConnecting)
	c.unlockAndNotify()

	c.dial(gen)
}

// Close 主动断开，取消待执行的重连
func (c *Controller) Close() {
	c.mu.Lock()
	c.gen++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	t := c.transport
	c.transport = nil
	c.setStateLocked(StateDisconnected)
	c.unlockAndNotify()

	if t != nil {
		_ = t.Close()
	}
}

// SendTyping 发送正在输入提示
func (c *Controller) SendTyping(matchID uint, started bool) error {
	c.mu.Lock()
	t := c.transport
	connected := c.state == StateConnected
	c.mu.Unlock()
	if !connected || t == nil {
		return ErrNotConnected
	}

	frameType := typeTypingStop
	if started {
		frameType = typeTypingStart
	}
	data, err := json.Marshal(typingRequest{Type: frameType, MatchID: matchID})
	if err != nil {
		return err
	}
	return t.WriteMessage(data)
}

// dial 在 Connecting 或 Backoff 状态下发起一次连接
func (c *Controller) dial(gen uint64) {
	c.mu.Lock()
	if gen != c.gen || (c.state != StateConnecting && c.state != StateBackoff) {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	c.setStateLocked(StateConnecting)
	c.unlockAndNotify()

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.DialTimeout)
	t, err := c.dialer.Dial(ctx, c.cfg.URL)
	cancel()

	c.mu.Lock()
	if gen != c.gen || c.state != StateConnecting {
		c.mu.Unlock()
		if t != nil {
			_ = t.Close()
		}
		return
	}
	if err != nil {
		logger.L.Warn("Dial failed", zap.String("url", c.cfg.URL), zap.Error(err))
		c.failLocked(fmt.Errorf("dial: %w", err))
		c.unlockAndNotify()
		return
	}
	c.transport = t
	c.setStateLocked(StateAuthenticating)
	c.unlockAndNotify()

	data, err := json.Marshal(authRequest{Type: typeAuth, Token: c.cfg.Token})
	if err == nil {
		err = t.WriteMessage(data)
	}
	if err != nil {
		c.transportClosed(gen, t, fmt.Errorf("send auth: %w", err))
		return
	}

	go c.readLoop(gen, t)
}

func (c *Controller) readLoop(gen uint64, t Transport) {
	for {
		data, err := t.ReadMessage()
		if err != nil {
			c.transportClosed(gen, t, err)
			return
		}
		c.handleFrame(gen, t, data)
	}
}

func (c *Controller) handleFrame(gen uint64, t Transport, data []byte) {
	var env serverEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		logger.L.Warn("Failed to decode server frame", zap.Error(err))
		return
	}

	switch env.Type {
	case typeAuthSuccess:
		c.mu.Lock()
		if gen != c.gen || c.state != StateAuthenticating {
			c.mu.Unlock()
			return
		}
		c.attempts = 0
		c.policy.Reset()
		c.userID = env.UserID
		c.setStateLocked(StateConnected)
		if fn := c.handlers.OnConnected; fn != nil {
			userID := env.UserID
			c.pending = append(c.pending, func() { fn(userID) })
		}
		c.unlockAndNotify()
		logger.L.Info("Authenticated", zap.Uint("userID", env.UserID))

	case typeAuthError:
		authErr := &AuthError{Message: decodeText(env.Message)}
		c.mu.Lock()
		if gen != c.gen || c.state != StateAuthenticating {
			c.mu.Unlock()
			return
		}
		c.gen++
		c.transport = nil
		c.setStateLocked(StateDisconnected)
		if fn := c.handlers.OnAuthError; fn != nil {
			c.pending = append(c.pending, func() { fn(authErr) })
		}
		c.unlockAndNotify()
		_ = t.Close()
		logger.L.Warn("Authentication rejected", zap.String("message", authErr.Message))

	case typeNewMessage:
		if !c.current(gen) {
			return
		}
		var msg Message
		if err := json.Unmarshal(env.Message, &msg); err != nil {
			logger.L.Warn("Failed to decode new_message", zap.Error(err))
			return
		}
		if fn := c.handlers.OnMessage; fn != nil {
			fn(msg)
		}

	case typeError:
		if !c.current(gen) {
			return
		}
		if fn := c.handlers.OnServerError; fn != nil {
			fn(decodeText(env.Message))
		}

	default:
		logger.L.Debug("Ignoring server frame", zap.String("type", env.Type))
	}
}

// transportClosed 处理意外断开，过期连接的事件直接忽略
func (c *Controller) transportClosed(gen uint64, t Transport, cause error) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	switch c.state {
	case StateConnecting, StateAuthenticating, StateConnected:
	default:
		c.mu.Unlock()
		return
	}
	c.transport = nil
	if websocket.IsCloseError(cause, closeEvicted) {
		c.gen++
		c.setStateLocked(StateDisconnected)
		if fn := c.handlers.OnEvicted; fn != nil {
			err := fmt.Errorf("%w: %w", ErrEvicted, cause)
			c.pending = append(c.pending, func() { fn(err) })
		}
		c.unlockAndNotify()
		_ = t.Close()
		logger.L.Warn("Connection evicted, not reconnecting", zap.Error(cause))
		return
	}
	logger.L.Warn("Connection lost", zap.Stringer("state", c.state), zap.Error(cause))
	c.failLocked(cause)
	c.unlockAndNotify()
	_ = t.Close()
}

// failLocked 安排下一次重连或进入 GivenUp
func (c *Controller) failLocked(cause error) {
	c.gen++
	delay := c.policy.NextBackOff()
	if delay == backoff.Stop {
		c.setStateLocked(StateGivenUp)
		if fn := c.handlers.OnGiveUp; fn != nil {
			err := fmt.Errorf("%w after %d attempts: %w", ErrGivenUp, c.attempts, cause)
			c.pending = append(c.pending, func() { fn(err) })
		}
		logger.L.Error("Giving up reconnecting", zap.Int("attempts", c.attempts), zap.Error(cause))
		return
	}

	c.attempts++
	c.setStateLocked(StateBackoff)
	gen := c.gen
	c.timer = c.sched.AfterFunc(delay, func() { c.dial(gen) })
	logger.L.Info("Reconnect scheduled", zap.Int("attempt", c.attempts), zap.Duration("delay", delay))
}

func (c *Controller) current(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return gen == c.gen && c.state == StateConnected
}

func (c *Controller) setStateLocked(s State) {
	if c.state == s {
		return
	}
	from := c.state
	c.state = s
	if fn := c.handlers.OnStateChange; fn != nil {
		c.pending = append(c.pending, func() { fn(from, s) })
	}
}

// unlockAndNotify 释放锁后按顺序执行回调
func (c *Controller) unlockAndNotify() {
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()
	for _, fn := range pending {
		fn()
	}
}

func decodeText(raw []byte) string {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return string(raw)
	}
	return s
}
