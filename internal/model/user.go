package model

import (
	"time"

	"gorm.io/gorm"
)

type User struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	Nickname         string         `gorm:"type:varchar(50);not null;uniqueIndex" json:"nickname"`
	Age              string         `gorm:"type:varchar(20);not null" json:"age"`
	Password         string         `gorm:"type:varchar(255);not null" json:"-"`
	Instagram        string         `gorm:"type:varchar(100)" json:"instagram,omitempty"`
	ProfileImage     string         `gorm:"type:text" json:"profileImage,omitempty"`
	ProfileCompleted bool           `gorm:"default:false" json:"profileCompleted"`
	IsActive         bool           `gorm:"default:true" json:"isActive"`
	CreatedAt        time.Time      `json:"createdAt"`
	UpdatedAt        time.Time      `json:"updatedAt"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`
}
