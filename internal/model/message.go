package model

import (
	"time"
)

const (
	MessageTypeText  = "text"
	MessageTypeImage = "image"
)

type Message struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	MatchID     uint      `gorm:"not null;index" json:"matchId"`
	SenderID    uint      `gorm:"not null;index" json:"senderId"`
	Content     string    `gorm:"type:text;not null" json:"content"`
	MessageType string    `gorm:"type:varchar(20);not null;default:'text'" json:"messageType"`
	ImageURL    *string   `gorm:"type:text" json:"imageUrl,omitempty"`
	IsRead      bool      `gorm:"default:false" json:"isRead"`
	CreatedAt   time.Time `json:"createdAt"`

	Match  Match `gorm:"foreignKey:MatchID" json:"-"`
	Sender User  `gorm:"foreignKey:SenderID" json:"-"`
}
