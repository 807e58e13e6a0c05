package api

import (
	"errors"
	"go-match-chat/internal/middleware"
	"go-match-chat/internal/service"
	"go-match-chat/pkg/logger"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// 处理配对相关的HTTP请求
type MatchHandler struct {
	matchService *service.MatchService
}

func NewMatchHandler(matchService *service.MatchService) *MatchHandler {
	return &MatchHandler{matchService: matchService}
}

// 与目标用户建立配对，返回新会话
func (h *MatchHandler) CreateMatch(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	var req service.CreateMatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.L.Warn("Failed to bind CreateMatch request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	match, err := h.matchService.CreateMatch(c.Request.Context(), userID, req.TargetUserID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSelfMatch), errors.Is(err, service.ErrMatchExists):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, service.ErrUserNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		default:
			logger.L.Error("Create match failed", zap.Uint("userID", userID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		}
		return
	}
	c.JSON(http.StatusCreated, match)
}

// 当前用户的配对列表
func (h *MatchHandler) ListMatches(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	matches, err := h.matchService.ListMatches(c.Request.Context(), userID)
	if err != nil {
		logger.L.Error("List matches failed", zap.Uint("userID", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusOK, matches)
}
