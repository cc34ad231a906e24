package models

import (
	"time"

	"gorm.io/gorm"
)

// UserBadge award sources.
const (
	BadgeSourceTask   = "task"
	BadgeSourceQuest  = "quest"
	BadgeSourceManual = "manual"
)

// Badge is a reward definition.
type Badge struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	Name        string         `gorm:"size:200;not null" json:"name"`
	Description string         `gorm:"size:1000" json:"description"`
	Icon        string         `gorm:"size:500" json:"icon"`
	Category    string         `gorm:"size:100;index" json:"category"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Badge) TableName() string { return "badges" }

// UserBadge is an append-only earn record, unique per (user, badge).
// Awarding the same badge twice is a no-op, not an error.
type UserBadge struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"uniqueIndex:idx_user_badge;not null" json:"user_id"`
	User      *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
	BadgeID   uint      `gorm:"uniqueIndex:idx_user_badge;not null" json:"badge_id"`
	Badge     *Badge    `gorm:"foreignKey:BadgeID" json:"badge,omitempty"`
	Source    string    `gorm:"size:20;default:manual" json:"source"`
	AwardedAt time.Time `json:"awarded_at"`
	CreatedAt time.Time `json:"created_at"`
}

func (UserBadge) TableName() string { return "user_badges" }

// BadgeQuest is a named bundle of tasks whose joint completion awards a
// badge. Tasks join a quest via their quest_id.
type BadgeQuest struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	Name        string         `gorm:"size:200;not null" json:"name"`
	Description string         `gorm:"size:1000" json:"description"`
	BadgeID     uint           `gorm:"index;not null" json:"badge_id"`
	Badge       *Badge         `gorm:"foreignKey:BadgeID" json:"badge,omitempty"`
	ProjectID   *uint          `gorm:"index" json:"project_id"`
	CreatedBy   uint           `json:"created_by"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

func (BadgeQuest) TableName() string { return "badge_quests" }
