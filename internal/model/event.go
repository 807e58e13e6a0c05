package model

import "time"

// MessageEvent 推送给在线接收方的新消息事件
// 按值传递，构造后不再修改
type MessageEvent struct {
	ID          uint      `json:"id"`
	MatchID     uint      `json:"matchId"`
	SenderID    uint      `json:"senderId"`
	Content     string    `json:"content"`
	MessageType string    `json:"messageType"`
	ImageURL    string    `json:"imageUrl,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

func NewMessageEvent(m *Message) MessageEvent {
	ev := MessageEvent{
		ID:          m.ID,
		MatchID:     m.MatchID,
		SenderID:    m.SenderID,
		Content:     m.Content,
		MessageType: m.MessageType,
		CreatedAt:   m.CreatedAt,
	}
	if m.ImageURL != nil {
		ev.ImageURL = *m.ImageURL
	}
	return ev
}
