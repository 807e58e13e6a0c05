package api

import (
	"errors"
	"go-match-chat/internal/middleware"
	"go-match-chat/internal/service"
	"go-match-chat/pkg/logger"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// 处理聊天相关的HTTP请求
type ChatHandler struct {
	chatService *service.ChatService
}

func NewChatHandler(chatService *service.ChatService) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
	}
}

// 发送消息，持久化后推送给对方
func (h *ChatHandler) SendMessage(c *gin.Context) {
	senderID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	var req service.MessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.L.Warn("Failed to bind SendMessage request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	message, err := h.chatService.SendMessage(c.Request.Context(), senderID, req)
	if err != nil {
		h.writeError(c, err, senderID)
		return
	}
	c.JSON(http.StatusCreated, message)
}

// 获取会话历史，按发送顺序
func (h *ChatHandler) GetMessages(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}
	matchID, ok := matchIDParam(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	messages, err := h.chatService.GetMessages(c.Request.Context(), matchID, userID, limit, offset)
	if err != nil {
		h.writeError(c, err, userID)
		return
	}
	c.JSON(http.StatusOK, messages)
}

// 将对方发来的消息标记为已读
func (h *ChatHandler) MarkRead(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}
	matchID, ok := matchIDParam(c)
	if !ok {
		return
	}

	updated, err := h.chatService.MarkRead(c.Request.Context(), matchID, userID)
	if err != nil {
		h.writeError(c, err, userID)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "updated": updated})
}

func (h *ChatHandler) writeError(c *gin.Context, err error, userID uint) {
	switch {
	case errors.Is(err, service.ErrMatchNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrNotParticipant):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrEmptyMessage), errors.Is(err, service.ErrInvalidMessageType):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		logger.L.Error("Chat request failed", zap.Uint("userID", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

func matchIDParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("matchId"), 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid matchId parameter"})
		return 0, false
	}
	return uint(id), true
}
