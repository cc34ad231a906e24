package models

import (
	"time"

	"gorm.io/gorm"
)

// NotifierBot is an outbound webhook target for fire-and-forget event
// notifications (membership changes, task updates, badge awards).
type NotifierBot struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Name      string         `gorm:"size:100;not null" json:"name"`
	Type      string         `gorm:"size:50;not null" json:"type"` // wechat_work, dingtalk, feishu, slack, generic
	Webhook   string         `gorm:"size:500;not null" json:"webhook"`
	Secret    string         `gorm:"size:255" json:"-"`
	IsActive  bool           `json:"is_active"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (NotifierBot) TableName() string { return "notifier_bots" }
