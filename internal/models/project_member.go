package models

import (
	"time"

	"gorm.io/gorm"
)

// Membership roles, weakest first.
const (
	RoleViewer      = "viewer"
	RoleContributor = "contributor"
	RoleAdmin       = "admin"
	RoleOwner       = "owner"
)

// Invitation statuses. Only accepted rows grant access; pending, declined
// and expired rows never count toward membership. Transitions out of
// pending are terminal.
const (
	InvitationPending  = "pending"
	InvitationAccepted = "accepted"
	InvitationDeclined = "declined"
	InvitationExpired  = "expired"
)

// ProjectMember represents a user's membership and role within a project.
// A row begins life as a pending invitation addressed to InvitationEmail;
// UserID is bound when the invite is accepted. Uniqueness is per
// (project_id, invitation_email) so the same address cannot be invited to
// a project twice.
type ProjectMember struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	ProjectID        uint           `gorm:"uniqueIndex:idx_project_invitee;index;not null" json:"project_id"`
	Project          *Project       `gorm:"foreignKey:ProjectID" json:"project,omitempty"`
	UserID           *uint          `gorm:"index" json:"user_id"`
	User             *User          `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Role             string         `gorm:"size:50;default:viewer" json:"role"`
	InvitationStatus string         `gorm:"size:20;default:pending;index" json:"invitation_status"`
	InvitationEmail  string         `gorm:"uniqueIndex:idx_project_invitee;size:255;not null" json:"invitation_email"`
	InvitationToken  string         `gorm:"size:100;index" json:"-"`
	InvitedBy        uint           `json:"invited_by"`
	ExpiresAt        *time.Time     `json:"expires_at"`
	AcceptedAt       *time.Time     `json:"accepted_at"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`
}

func (ProjectMember) TableName() string { return "project_members" }

// RoleLevel maps a role to its privilege rank for at-least comparisons.
// Unknown roles rank below viewer.
func RoleLevel(role string) int {
	switch role {
	case RoleOwner:
		return 4
	case RoleAdmin:
		return 3
	case RoleContributor:
		return 2
	case RoleViewer:
		return 1
	default:
		return 0
	}
}

// ValidRole reports whether role is one of the defined membership roles.
func ValidRole(role string) bool {
	return RoleLevel(role) > 0
}
