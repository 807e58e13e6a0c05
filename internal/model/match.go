package model

import "time"

const (
	MatchStatusPending = "pending"
	MatchStatusMatched = "matched"
	MatchStatusBlocked = "blocked"
)

// Match 两个用户之间的配对，也就是一个会话
type Match struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID1   uint      `gorm:"column:user_id_1;not null;index" json:"userId1"`
	UserID2   uint      `gorm:"column:user_id_2;not null;index" json:"userId2"`
	Status    string    `gorm:"type:varchar(20);not null;default:'matched'" json:"status"`
	CreatedAt time.Time `json:"createdAt"`

	User1 User `gorm:"foreignKey:UserID1" json:"-"`
	User2 User `gorm:"foreignKey:UserID2" json:"-"`
}

// HasParticipant 判断用户是否属于该配对
func (m *Match) HasParticipant(userID uint) bool {
	return m.UserID1 == userID || m.UserID2 == userID
}
