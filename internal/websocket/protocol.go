package websocket

import (
	"go-match-chat/internal/model"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// 帧类型
const (
	TypeAuth        = "auth"
	TypeAuthSuccess = "auth_success"
	TypeAuthError   = "auth_error"
	TypeError       = "error"
	TypeNewMessage  = "new_message"
	TypeTypingStart = "typing_start"
	TypeTypingStop  = "typing_stop"
)

// CloseEvicted 连接因超出每用户上限被挤下线时使用的关闭码
// 客户端收到后不再自动重连
const CloseEvicted = 4000

// 发给客户端的错误提示
const (
	msgProcessingError  = "Message processing error"
	msgNotAuthenticated = "not authenticated"
	msgRateLimited      = "rate limited"
)

// inboundFrame 客户端发来的控制帧，只有下面几种实现
type inboundFrame interface {
	inbound()
}

type authFrame struct {
	Token string
}

// 正在输入提示，本服务不转发
type typingFrame struct {
	MatchID uint
	Started bool
}

type unknownFrame struct {
	Type string
}

func (authFrame) inbound()    {}
func (typingFrame) inbound()  {}
func (unknownFrame) inbound() {}

type inboundEnvelope struct {
	Type    string `json:"type"`
	Token   string `json:"token"`
	MatchID uint   `json:"matchId"`
}

func decodeInbound(data []byte) (inboundFrame, error) {
	var env inboundEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}

	switch env.Type {
	case TypeAuth:
		return authFrame{Token: env.Token}, nil
	case TypeTypingStart:
		return typingFrame{MatchID: env.MatchID, Started: true}, nil
	case TypeTypingStop:
		return typingFrame{MatchID: env.MatchID, Started: false}, nil
	default:
		return unknownFrame{Type: env.Type}, nil
	}
}

type AuthSuccessFrame struct {
	Type   string `json:"type"`
	UserID uint   `json:"userId"`
}

// auth_error 与 error 共用
type ErrorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type NewMessageFrame struct {
	Type    string             `json:"type"`
	Message model.MessageEvent `json:"message"`
}

func encodeAuthSuccess(userID uint) ([]byte, error) {
	return json.Marshal(AuthSuccessFrame{Type: TypeAuthSuccess, UserID: userID})
}

func encodeAuthError(message string) ([]byte, error) {
	return json.Marshal(ErrorFrame{Type: TypeAuthError, Message: message})
}

func encodeError(message string) ([]byte, error) {
	return json.Marshal(ErrorFrame{Type: TypeError, Message: message})
}

// EncodeNewMessage 序列化一次，推送给所有接收方
func EncodeNewMessage(event model.MessageEvent) ([]byte, error) {
	return json.Marshal(NewMessageFrame{Type: TypeNewMessage, Message: event})
}
