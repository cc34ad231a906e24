package models

import (
	"time"

	"gorm.io/gorm"
)

// Project statuses.
const (
	ProjectStatusPlanning  = "planning"
	ProjectStatusActive    = "active"
	ProjectStatusCompleted = "completed"
	ProjectStatusArchived  = "archived"
)

// Project represents a managed project. The creator is always an implicit
// owner-level member even if absent from any membership list.
//
// Team is a legacy raw list of member user IDs kept for backward
// compatibility with pre-invitation data. It is treated as a secondary
// read-only membership source (read-level access, no role); new membership
// is tracked exclusively through ProjectMember rows.
type Project struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	Title         string         `gorm:"size:200;not null" json:"title"`
	Description   string         `gorm:"type:text" json:"description"`
	CreatorID     uint           `gorm:"index;not null" json:"creator_id"`
	Creator       *User          `gorm:"foreignKey:CreatorID" json:"creator,omitempty"`
	Team          []uint         `gorm:"serializer:json" json:"team"`
	Category      string         `gorm:"size:100;index" json:"category"`
	Status        string         `gorm:"size:50;default:planning" json:"status"`
	Address       string         `gorm:"size:500" json:"address"`
	Latitude      *float64       `json:"latitude"`
	Longitude     *float64       `json:"longitude"`
	FundingGoal   float64        `gorm:"default:0" json:"funding_goal"`
	FundingRaised float64        `gorm:"default:0" json:"funding_raised"`
	FundingSource string         `gorm:"size:200" json:"funding_source"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Project) TableName() string { return "projects" }

// InTeam reports whether userID appears in the legacy team list.
func (p *Project) InTeam(userID uint) bool {
	for _, id := range p.Team {
		if id == userID {
			return true
		}
	}
	return false
}
