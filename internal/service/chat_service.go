package service

import (
	"context"
	"errors"
	"fmt"
	"go-match-chat/internal/interfaces"
	"go-match-chat/internal/model"
	"go-match-chat/pkg/logger"
	"strings"

	"go.uber.org/zap"
)

var (
	ErrMatchNotFound      = errors.New("match not found")
	ErrNotParticipant     = errors.New("user is not a participant of this match")
	ErrInvalidMessageType = errors.New("invalid message type")
	ErrEmptyMessage       = errors.New("message content is empty")
)

const defaultHistoryLimit = 200

type ChatService struct {
	broadcaster interfaces.Broadcaster
	matches     MatchStore
	messages    MessageStore
}

func NewChatService(broadcaster interfaces.Broadcaster, matches MatchStore, messages MessageStore) *ChatService {
	return &ChatService{
		broadcaster: broadcaster,
		matches:     matches,
		messages:    messages,
	}
}

type MessageRequest struct {
	MatchID     uint   `json:"matchId" binding:"required"`
	Content     string `json:"content"`
	MessageType string `json:"messageType"`
	ImageURL    string `json:"imageUrl"`
}

// SendMessage 持久化消息后推送给对方的在线连接
// 推送失败只记录日志，消息已经可以通过历史接口获取
func (s *ChatService) SendMessage(ctx context.Context, senderID uint, req MessageRequest) (*model.Message, error) {
	if _, err := s.authorize(ctx, req.MatchID, senderID); err != nil {
		return nil, err
	}

	messageType := req.MessageType
	if messageType == "" {
		messageType = model.MessageTypeText
	}
	message := &model.Message{
		MatchID:     req.MatchID,
		SenderID:    senderID,
		Content:     req.Content,
		MessageType: messageType,
	}
	switch messageType {
	case model.MessageTypeText:
		if strings.TrimSpace(req.Content) == "" {
			return nil, ErrEmptyMessage
		}
	case model.MessageTypeImage:
		if req.ImageURL == "" {
			return nil, ErrEmptyMessage
		}
		imageURL := req.ImageURL
		message.ImageURL = &imageURL
	default:
		return nil, ErrInvalidMessageType
	}

	if err := s.messages.Create(ctx, message); err != nil {
		logger.L.Error("Error saving message to DB", zap.Uint("senderID", senderID), zap.Error(err))
		return nil, fmt.Errorf("failed to save message: %w", err)
	}
	logger.L.Debug("Message saved to DB", zap.Uint("messageID", message.ID), zap.Uint("matchID", message.MatchID))

	delivered, err := s.broadcaster.Broadcast(ctx, message.MatchID, model.NewMessageEvent(message), senderID)
	if err != nil {
		logger.L.Error("SendMessage: failed to broadcast message",
			zap.Uint("messageID", message.ID),
			zap.Uint("matchID", message.MatchID),
			zap.Error(err))
	} else {
		logger.L.Debug("SendMessage: message broadcast",
			zap.Uint("messageID", message.ID),
			zap.Int("delivered", delivered))
	}

	return message, nil
}

// GetMessages 按发送顺序返回会话消息
func (s *ChatService) GetMessages(ctx context.Context, matchID, userID uint, limit, offset int) ([]model.Message, error) {
	if _, err := s.authorize(ctx, matchID, userID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > defaultHistoryLimit {
		limit = defaultHistoryLimit
	}
	if offset < 0 {
		offset = 0
	}

	messages, err := s.messages.FindByMatchID(ctx, matchID, limit, offset)
	if err != nil {
		logger.L.Error("Error fetching chat history", zap.Uint("matchID", matchID), zap.Error(err))
		return nil, fmt.Errorf("failed to retrieve chat history: %w", err)
	}
	return messages, nil
}

// MarkRead 将对方发来的消息标记为已读
func (s *ChatService) MarkRead(ctx context.Context, matchID, readerID uint) (int64, error) {
	if _, err := s.authorize(ctx, matchID, readerID); err != nil {
		return 0, err
	}
	n, err := s.messages.MarkAsRead(ctx, matchID, readerID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark messages read: %w", err)
	}
	return n, nil
}

func (s *ChatService) authorize(ctx context.Context, matchID, userID uint) (*model.Match, error) {
	match, err := s.matches.FindByID(ctx, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to find match: %w", err)
	}
	if match == nil {
		return nil, ErrMatchNotFound
	}
	if !match.HasParticipant(userID) {
		return nil, ErrNotParticipant
	}
	return match, nil
}
