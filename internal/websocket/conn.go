package websocket

import (
	"context"
	"errors"
	"go-match-chat/internal/auth"
	"go-match-chat/internal/metrics"
	"go-match-chat/pkg/logger"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var (
	ErrConnectionClosed = errors.New("connection closed")
	ErrSendBufferFull   = errors.New("send buffer full")
)

// ConnState 连接状态机
type ConnState int32

const (
	StateUnauthenticated ConnState = iota
	StateAuthenticated
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticated:
		return "authenticated"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Conn 一条 websocket 连接及其状态机
// Unauthenticated -> Authenticated -> Closed，Closed 为终态
type Conn struct {
	id       string
	ws       *websocket.Conn
	verifier TokenVerifier
	registry *Registry
	opts     Options
	limiter  *rate.Limiter

	send chan []byte
	done chan struct{}

	mu        sync.Mutex
	state     ConnState
	userID    uint
	closeOnce sync.Once
}

func NewConn(ws *websocket.Conn, verifier TokenVerifier, registry *Registry, opts Options) *Conn {
	c := &Conn{
		id:       uuid.NewString(),
		ws:       ws,
		verifier: verifier,
		registry: registry,
		opts:     opts,
		send:     make(chan []byte, opts.SendBufferSize),
		done:     make(chan struct{}),
		state:    StateUnauthenticated,
	}
	if opts.InboundRate > 0 {
		c.limiter = rate.NewLimiter(opts.InboundRate, opts.InboundBurst)
	}
	return c
}

func (c *Conn) ID() string {
	return c.id
}

// GetUserID 未认证时为 0
func (c *Conn) GetUserID() uint {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID
}

func (c *Conn) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Conn) IsOpen() bool {
	return c.State() != StateClosed
}

// Done 在连接关闭后被关闭
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Start 启动读写协程
func (c *Conn) Start() {
	go c.WritePump()
	go c.ReadPump()
}

// QueueBytes 将数据放入发送队列
// 队列满时按配置重试，仍失败则断开这个慢连接
func (c *Conn) QueueBytes(data []byte) error {
	for attempt := 0; ; attempt++ {
		c.mu.Lock()
		if c.state == StateClosed {
			c.mu.Unlock()
			return ErrConnectionClosed
		}
		select {
		case c.send <- data:
			c.mu.Unlock()
			return nil
		default:
		}
		c.mu.Unlock()

		if attempt >= c.opts.RetryCount {
			break
		}
		logger.L.Warn("Client send buffer full, retry attempt",
			zap.String("connID", c.id),
			zap.Int("attempt", attempt+1))

		timer := time.NewTimer(c.opts.RetryInterval)
		select {
		case <-timer.C:
		case <-c.done:
			timer.Stop()
			return ErrConnectionClosed
		}
	}

	logger.L.Error("Client send buffer still full after retries, closing connection",
		zap.String("connID", c.id),
		zap.Int("attempts", c.opts.RetryCount))
	// 写协程可能正阻塞在这个连接上，关闭帧和传输层的释放不能在调用方协程中等待
	c.closeWith(websocket.CloseTryAgainLater, "send buffer full", true)
	return ErrSendBufferFull
}

// Close 由服务端主动关闭连接
func (c *Conn) Close() {
	c.closeWith(websocket.CloseNormalClosure, "", false)
}

// Evict 因超出每用户连接上限被挤下线，客户端据关闭码停止重连
func (c *Conn) Evict() {
	c.closeWith(CloseEvicted, "connection limit reached", false)
}

// closeWith 进入 Closed 状态并注销登记，可重复调用
// detach 为 true 时传输层在后台释放，调用方不等待关闭帧写出
func (c *Conn) closeWith(code int, reason string, detach bool) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		prev := c.state
		userID := c.userID
		c.state = StateClosed
		close(c.done)
		c.mu.Unlock()

		if prev == StateAuthenticated {
			c.registry.Unregister(userID, c)
		}

		logger.L.Debug("Connection closed",
			zap.String("connID", c.id),
			zap.Uint("userID", userID),
			zap.Int("code", code),
			zap.Stringer("previousState", prev))

		if c.ws == nil {
			return
		}
		if detach {
			go c.releaseTransport(code, reason)
			return
		}
		c.releaseTransport(code, reason)
	})
}

// releaseTransport 尽力写出关闭帧后关闭底层连接
func (c *Conn) releaseTransport(code int, reason string) {
	deadline := time.Now().Add(c.opts.WriteWait)
	_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
	_ = c.ws.Close()
}

func (c *Conn) ReadPump() {
	defer c.Close()

	c.ws.SetReadLimit(c.opts.MaxMessageSize)
	if c.opts.PongWait > 0 {
		// 严格模式：超时未收到 pong 即断开
		_ = c.ws.SetReadDeadline(time.Now().Add(c.opts.PongWait))
		c.ws.SetPongHandler(func(string) error {
			return c.ws.SetReadDeadline(time.Now().Add(c.opts.PongWait))
		})
	}

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				logger.L.Warn("Unexpected websocket close", zap.String("connID", c.id), zap.Uint("userID", c.GetUserID()), zap.Error(err))
			} else {
				logger.L.Debug("Websocket read finished", zap.String("connID", c.id), zap.Error(err))
			}
			return
		}
		c.handleFrame(data)
	}
}

func (c *Conn) WritePump() {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-c.done:
			return

		case data := <-c.send:
			if err := c.write(data); err != nil {
				logger.L.Warn("Failed to write message", zap.String("connID", c.id), zap.Error(err))
				return
			}

			// 批量写出已排队的消息
			n := len(c.send)
			for range n {
				if err := c.write(<-c.send); err != nil {
					logger.L.Warn("Failed to write batched message", zap.String("connID", c.id), zap.Error(err))
					return
				}
			}

		case <-ticker.C:
			// 仅作探测，缺少 pong 不会导致断开（除非配置了 PongWait）
			deadline := time.Now().Add(c.opts.WriteWait)
			if err := c.ws.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				logger.L.Warn("Failed to send ping", zap.String("connID", c.id), zap.Error(err))
				return
			}
		}
	}
}

func (c *Conn) write(data []byte) error {
	_ = c.ws.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// handleFrame 按到达顺序处理入站帧
func (c *Conn) handleFrame(data []byte) {
	if c.limiter != nil && !c.limiter.Allow() {
		c.reply(encodeError(msgRateLimited))
		return
	}

	frame, err := decodeInbound(data)
	if err != nil {
		logger.L.Debug("Failed to decode inbound frame", zap.String("connID", c.id), zap.Error(err))
		c.reply(encodeError(msgProcessingError))
		return
	}

	switch f := frame.(type) {
	case authFrame:
		c.handleAuth(f)
	case typingFrame:
		if c.State() == StateUnauthenticated {
			c.reply(encodeError(msgNotAuthenticated))
			return
		}
		logger.L.Debug("Ignoring typing indicator", zap.String("connID", c.id), zap.Uint("matchID", f.MatchID))
	case unknownFrame:
		logger.L.Debug("Ignoring unknown frame type", zap.String("connID", c.id), zap.String("type", f.Type))
	default:
		logger.L.Debug("Ignoring unhandled frame", zap.String("connID", c.id))
	}
}

func (c *Conn) handleAuth(f authFrame) {
	switch c.State() {
	case StateClosed:
		return
	case StateAuthenticated:
		logger.L.Debug("Ignoring auth on authenticated connection", zap.String("connID", c.id))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.opts.AuthTimeout)
	userID, err := c.verifier.Verify(ctx, f.Token)
	cancel()
	if err != nil {
		message, reason := "Authentication failed", "error"
		var verr *auth.VerificationError
		if errors.As(err, &verr) {
			message, reason = verr.Error(), string(verr.Reason)
		}
		metrics.AuthAttempts.WithLabelValues(reason).Inc()
		logger.L.Info("Websocket auth failed", zap.String("connID", c.id), zap.String("reason", reason), zap.Error(err))
		c.reply(encodeAuthError(message))
		return
	}

	// 状态切换与登记在同一把锁内完成，关闭的连接不会残留在索引中
	c.mu.Lock()
	if c.state != StateUnauthenticated {
		c.mu.Unlock()
		return
	}
	c.state = StateAuthenticated
	c.userID = userID
	c.registry.Register(userID, c)
	c.mu.Unlock()

	metrics.AuthAttempts.WithLabelValues("success").Inc()
	logger.L.Info("Websocket authenticated", zap.String("connID", c.id), zap.Uint("userID", userID))
	c.reply(encodeAuthSuccess(userID))
}

func (c *Conn) reply(data []byte, err error) {
	if err != nil {
		logger.L.Error("Failed to encode reply", zap.String("connID", c.id), zap.Error(err))
		return
	}
	if err := c.QueueBytes(data); err != nil && !errors.Is(err, ErrConnectionClosed) {
		logger.L.Warn("Failed to queue reply", zap.String("connID", c.id), zap.Error(err))
	}
}
