package api

import (
	"net/http"
	"strings"

	internalws "go-match-chat/internal/websocket"
	"go-match-chat/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WSHandler 升级连接并交给连接状态机，认证在连接建立后通过 auth 帧完成
type WSHandler struct {
	verifier internalws.TokenVerifier
	registry *internalws.Registry
	opts     internalws.Options
	upgrader websocket.Upgrader
}

// allowedOrigins 为空时允许所有来源
func NewWSHandler(verifier internalws.TokenVerifier, registry *internalws.Registry, opts internalws.Options, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		verifier: verifier,
		registry: registry,
		opts:     opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func (h *WSHandler) HandleConnection(c *gin.Context) {
	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.L.Warn("Failed to upgrade WebSocket connection",
			zap.String("origin", c.GetHeader("Origin")),
			zap.Error(err))
		return
	}

	conn := internalws.NewConn(ws, h.verifier, h.registry, h.opts)
	logger.L.Debug("WebSocket connection upgraded", zap.String("connID", conn.ID()), zap.String("ip", c.ClientIP()))
	conn.Start()
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[strings.TrimSuffix(strings.ToLower(o), "/")] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		// 非浏览器客户端不带 Origin
		if origin == "" {
			return true
		}
		_, ok := set[strings.ToLower(origin)]
		return ok
	}
}
