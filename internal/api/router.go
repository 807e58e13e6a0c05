package api

import (
	"go-match-chat/internal/metrics"
	"go-match-chat/internal/middleware"
	internalws "go-match-chat/internal/websocket"
	"net/http"

	"github.com/gin-gonic/gin"
)

type RouterDeps struct {
	Auth     *AuthHandler
	Chat     *ChatHandler
	Matches  *MatchHandler
	WS       *WSHandler
	Verifier middleware.TokenVerifier
	Registry *internalws.Registry
	WSPath   string
}

func NewRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(middleware.GinZapLogger("/healthz", "/metrics"), gin.Recovery())

	wsPath := deps.WSPath
	if wsPath == "" {
		wsPath = "/ws"
	}
	r.GET(wsPath, deps.WS.HandleConnection)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":      "ok",
			"onlineUsers": deps.Registry.OnlineUsers(),
			"connections": deps.Registry.Count(),
		})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	// 公开路由
	authGroup := r.Group("/api/auth")
	{
		authGroup.POST("/register", deps.Auth.Register)
		authGroup.POST("/login", deps.Auth.Login)
	}

	// 受保护的路由
	protected := r.Group("/api", middleware.AuthMiddleware(deps.Verifier))
	{
		protected.GET("/me", deps.Auth.Me)
		protected.POST("/matches", deps.Matches.CreateMatch)
		protected.GET("/matches", deps.Matches.ListMatches)
		protected.POST("/messages", deps.Chat.SendMessage)
		protected.GET("/messages/:matchId", deps.Chat.GetMessages)
		protected.PUT("/messages/:matchId/read", deps.Chat.MarkRead)
	}

	return r
}
