package models

import (
	"time"
)

// Profile holds the public-facing data for a user. CurrentProjects is a
// derived cache of project membership: it is mutated only by membership
// side effects inside the owning transaction, never directly by the user.
type Profile struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	UserID          uint      `gorm:"uniqueIndex;not null" json:"user_id"`
	User            *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
	DisplayName     string    `gorm:"size:200" json:"display_name"`
	Bio             string    `gorm:"type:text" json:"bio"`
	Location        string    `gorm:"size:200" json:"location"`
	Skills          string    `gorm:"size:1000" json:"skills"` // comma separated
	CurrentProjects []uint    `gorm:"serializer:json" json:"current_projects"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (Profile) TableName() string { return "profiles" }

// HasProject reports whether the cache already contains projectID.
func (p *Profile) HasProject(projectID uint) bool {
	for _, id := range p.CurrentProjects {
		if id == projectID {
			return true
		}
	}
	return false
}

// AddProject appends projectID to the cache if absent.
func (p *Profile) AddProject(projectID uint) {
	if !p.HasProject(projectID) {
		p.CurrentProjects = append(p.CurrentProjects, projectID)
	}
}

// RemoveProject drops projectID from the cache.
func (p *Profile) RemoveProject(projectID uint) {
	out := p.CurrentProjects[:0]
	for _, id := range p.CurrentProjects {
		if id != projectID {
			out = append(out, id)
		}
	}
	p.CurrentProjects = out
}
