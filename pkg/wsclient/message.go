package wsclient

import (
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	typeAuth        = "auth"
	typeAuthSuccess = "auth_success"
	typeAuthError   = "auth_error"
	typeError       = "error"
	typeNewMessage  = "new_message"
	typeTypingStart = "typing_start"
	typeTypingStop  = "typing_stop"
)

// Message 服务端推送的新消息
type Message struct {
	ID          uint      `json:"id"`
	MatchID     uint      `json:"matchId"`
	SenderID    uint      `json:"senderId"`
	Content     string    `json:"content"`
	MessageType string    `json:"messageType"`
	ImageURL    string    `json:"imageUrl,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

type serverEnvelope struct {
	Type string `json:"type"`
	// auth_success
	UserID uint `json:"userId"`
	// auth_error / error 时为字符串，new_message 时为对象
	Message jsoniter.RawMessage `json:"message"`
}

type authRequest struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

type typingRequest struct {
	Type    string `json:"type"`
	MatchID uint   `json:"matchId"`
}
