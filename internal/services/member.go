package services

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/makerplan/backend/internal/models"
	"github.com/makerplan/backend/pkg/logger"
	"github.com/makerplan/backend/pkg/response"
	"gorm.io/gorm"
)

const defaultInvitationExpiryDays = 14

// MemberService manages project rosters: invitations, acceptance, role
// changes and removal. All roster mutations run inside a transaction so the
// authorization check and the write see the same state.
type MemberService struct {
	db     *gorm.DB
	access *AccessService
	email  *EmailService
	config *SystemConfigService
	events *EventPublisher
}

func NewMemberService(db *gorm.DB, events *EventPublisher) *MemberService {
	return &MemberService{
		db:     db,
		access: NewAccessService(db),
		email:  NewEmailService(db),
		config: NewSystemConfigService(db),
		events: events,
	}
}

type InviteMemberRequest struct {
	Email string `json:"email" binding:"required,email"`
	Role  string `json:"role" binding:"required"`
}

type UpdateMemberRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

// ListRoster returns every membership row of the project, invitations
// included. Visible to any effective member of the project.
func (s *MemberService) ListRoster(userID, projectID uint) ([]models.ProjectMember, error) {
	project, err := s.readableProject(userID, projectID)
	if err != nil {
		return nil, err
	}

	var members []models.ProjectMember
	if err := s.db.Preload("User").
		Where("project_id = ?", project.ID).
		Order("created_at ASC").
		Find(&members).Error; err != nil {
		return nil, err
	}
	return members, nil
}

// Invite creates a pending invitation addressed to req.Email. Only the
// project creator or an accepted admin/owner may invite. A duplicate
// invitation for the same (project, email) pair is a conflict regardless of
// the existing row's status.
func (s *MemberService) Invite(userID, projectID uint, req *InviteMemberRequest) (*models.ProjectMember, error) {
	if !models.ValidRole(req.Role) {
		return nil, response.NewBadRequest("invalid role: " + req.Role)
	}
	invitee := strings.ToLower(strings.TrimSpace(req.Email))

	var invite *models.ProjectMember
	var project *models.Project
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		project, err = s.manageableProject(tx, userID, projectID)
		if err != nil {
			return err
		}

		var count int64
		if err := tx.Model(&models.ProjectMember{}).
			Where("project_id = ? AND invitation_email = ?", project.ID, invitee).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return response.NewConflict("this email has already been invited to the project")
		}

		expiresAt := time.Now().AddDate(0, 0, s.invitationExpiryDays())
		invite = &models.ProjectMember{
			ProjectID:        project.ID,
			Role:             req.Role,
			InvitationStatus: models.InvitationPending,
			InvitationEmail:  invitee,
			InvitationToken:  uuid.NewString(),
			InvitedBy:        userID,
			ExpiresAt:        &expiresAt,
		}

		// An invitee who already has an account is bound immediately so
		// the invitation shows up in their inbox listing.
		var existing models.User
		if err := tx.Where("LOWER(email) = ?", invitee).First(&existing).Error; err == nil {
			invite.UserID = &existing.ID
		}

		return tx.Create(invite).Error
	})
	if err != nil {
		return nil, err
	}

	inviter, _ := s.userByID(userID)
	inviterName := displayName(inviter)

	// Email delivery is best-effort; the invitation row is already durable.
	if err := s.email.SendInvitationEmail(invite, project, inviterName); err != nil {
		logger.Warnf("[Member] Invitation email to %s failed: %v", invitee, err)
	}

	s.events.Publish(&Event{
		Type:        EventMemberInvited,
		ProjectID:   project.ID,
		ProjectName: project.Title,
		ActorID:     userID,
		ActorName:   inviterName,
		TargetEmail: invitee,
		Role:        req.Role,
	})
	return invite, nil
}

// Accept transitions a pending invitation to accepted and binds it to the
// accepting user. Declined and expired invitations are terminal; accepting
// one is a conflict. A pending invitation past its deadline is marked
// expired on the spot.
func (s *MemberService) Accept(userID uint, token string) (*models.ProjectMember, error) {
	var invite models.ProjectMember
	if err := s.db.Where("invitation_token = ?", token).First(&invite).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFound("invitation not found")
		}
		return nil, err
	}
	if invite.InvitationStatus != models.InvitationPending {
		return nil, response.NewConflict("invitation is no longer pending")
	}
	if invite.ExpiresAt != nil && invite.ExpiresAt.Before(time.Now()) {
		// The status flip has to survive the conflict return, so it runs
		// outside the acceptance transaction.
		if err := s.db.Model(&invite).Update("invitation_status", models.InvitationExpired).Error; err != nil {
			return nil, err
		}
		return nil, response.NewConflict("invitation has expired")
	}

	var project models.Project
	err := s.db.Transaction(func(tx *gorm.DB) error {
		// Re-read under the transaction so a concurrent accept loses.
		if err := tx.Where("invitation_token = ? AND invitation_status = ?",
			token, models.InvitationPending).First(&invite).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return response.NewConflict("invitation is no longer pending")
			}
			return err
		}

		user, err := s.userInTx(tx, userID)
		if err != nil {
			return err
		}
		if !strings.EqualFold(user.Email, invite.InvitationEmail) {
			return response.NewForbidden("invitation was addressed to a different email")
		}

		now := time.Now()
		updates := map[string]interface{}{
			"user_id":           user.ID,
			"invitation_status": models.InvitationAccepted,
			"accepted_at":       &now,
		}
		if err := tx.Model(&invite).Updates(updates).Error; err != nil {
			return err
		}
		invite.UserID = &user.ID
		invite.InvitationStatus = models.InvitationAccepted
		invite.AcceptedAt = &now

		if err := addProjectToProfile(tx, user.ID, invite.ProjectID); err != nil {
			return err
		}
		return tx.First(&project, invite.ProjectID).Error
	})
	if err != nil {
		return nil, err
	}

	actor, _ := s.userByID(userID)
	s.events.Publish(&Event{
		Type:         EventMemberAccepted,
		ProjectID:    project.ID,
		ProjectName:  project.Title,
		ActorID:      userID,
		ActorName:    displayName(actor),
		TargetUserID: userID,
		Role:         invite.Role,
	})
	return &invite, nil
}

// Decline marks a pending invitation declined. Terminal states stay put.
func (s *MemberService) Decline(userID uint, token string) error {
	var invite models.ProjectMember
	var project models.Project

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("invitation_token = ?", token).First(&invite).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return response.NewNotFound("invitation not found")
			}
			return err
		}
		if invite.InvitationStatus != models.InvitationPending {
			return response.NewConflict("invitation is no longer pending")
		}

		user, err := s.userInTx(tx, userID)
		if err != nil {
			return err
		}
		if !strings.EqualFold(user.Email, invite.InvitationEmail) {
			return response.NewForbidden("invitation was addressed to a different email")
		}

		if err := tx.Model(&invite).Update("invitation_status", models.InvitationDeclined).Error; err != nil {
			return err
		}
		return tx.First(&project, invite.ProjectID).Error
	})
	if err != nil {
		return err
	}

	actor, _ := s.userByID(userID)
	s.events.Publish(&Event{
		Type:        EventMemberDeclined,
		ProjectID:   project.ID,
		ProjectName: project.Title,
		ActorID:     userID,
		ActorName:   displayName(actor),
	})
	return nil
}

// ListMyInvitations returns pending invitations addressed to the user's
// email, freshest first.
func (s *MemberService) ListMyInvitations(userID uint) ([]models.ProjectMember, error) {
	user, err := s.userByID(userID)
	if err != nil {
		return nil, err
	}

	var invites []models.ProjectMember
	if err := s.db.Preload("Project").
		Where("LOWER(invitation_email) = ? AND invitation_status = ?",
			strings.ToLower(user.Email), models.InvitationPending).
		Order("created_at DESC").
		Find(&invites).Error; err != nil {
		return nil, err
	}
	return invites, nil
}

// UpdateRole changes an existing member's role. Creator/admin/owner only.
// The project creator's implicit ownership is not a roster row and cannot be
// edited here.
func (s *MemberService) UpdateRole(userID, projectID, memberID uint, req *UpdateMemberRoleRequest) (*models.ProjectMember, error) {
	if !models.ValidRole(req.Role) {
		return nil, response.NewBadRequest("invalid role: " + req.Role)
	}

	var member models.ProjectMember
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if _, err := s.manageableProject(tx, userID, projectID); err != nil {
			return err
		}
		if err := tx.Where("id = ? AND project_id = ?", memberID, projectID).First(&member).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return response.NewNotFound("member not found")
			}
			return err
		}
		if err := tx.Model(&member).Update("role", req.Role).Error; err != nil {
			return err
		}
		member.Role = req.Role
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &member, nil
}

// Remove deletes a membership row. When the row was accepted, the member's
// profile cache drops the project unless a legacy team entry still grants
// access.
func (s *MemberService) Remove(userID, projectID, memberID uint) error {
	var project *models.Project
	var removed models.ProjectMember

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		project, err = s.manageableProject(tx, userID, projectID)
		if err != nil {
			return err
		}
		if err := tx.Where("id = ? AND project_id = ?", memberID, projectID).First(&removed).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return response.NewNotFound("member not found")
			}
			return err
		}
		// Hard delete: a soft-deleted row would keep occupying the unique
		// (project_id, invitation_email) slot and block re-inviting.
		if err := tx.Unscoped().Delete(&removed).Error; err != nil {
			return err
		}
		if removed.InvitationStatus == models.InvitationAccepted && removed.UserID != nil {
			if !project.InTeam(*removed.UserID) {
				if err := removeProjectFromProfile(tx, *removed.UserID, projectID); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	actor, _ := s.userByID(userID)
	event := &Event{
		Type:        EventMemberRemoved,
		ProjectID:   project.ID,
		ProjectName: project.Title,
		ActorID:     userID,
		ActorName:   displayName(actor),
		TargetEmail: removed.InvitationEmail,
	}
	if removed.UserID != nil {
		event.TargetUserID = *removed.UserID
	}
	s.events.Publish(event)
	return nil
}

// ExpirePendingInvitations marks pending invitations past their deadline as
// expired. Called by the scheduler; returns the number of rows swept.
func (s *MemberService) ExpirePendingInvitations() (int64, error) {
	result := s.db.Model(&models.ProjectMember{}).
		Where("invitation_status = ? AND expires_at IS NOT NULL AND expires_at < ?",
			models.InvitationPending, time.Now()).
		Update("invitation_status", models.InvitationExpired)
	return result.RowsAffected, result.Error
}

// invitationExpiryDays reads the configured invitation lifetime.
func (s *MemberService) invitationExpiryDays() int {
	value := s.config.GetWithDefault("invitation_expiry_days", strconv.Itoa(defaultInvitationExpiryDays))
	days, err := strconv.Atoi(value)
	if err != nil || days <= 0 {
		return defaultInvitationExpiryDays
	}
	return days
}

// readableProject loads the project and enforces read access. A missing
// project and a read-denied project are indistinguishable to the caller.
func (s *MemberService) readableProject(userID, projectID uint) (*models.Project, error) {
	var project models.Project
	if err := s.db.First(&project, projectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFound("project not found or no access")
		}
		return nil, err
	}
	if !s.access.CanReadRoster(userID, &project) {
		return nil, response.NewNotFound("project not found or no access")
	}
	return &project, nil
}

// manageableProject is readableProject plus the roster-management check,
// evaluated inside tx.
func (s *MemberService) manageableProject(tx *gorm.DB, userID, projectID uint) (*models.Project, error) {
	var project models.Project
	if err := tx.First(&project, projectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFound("project not found or no access")
		}
		return nil, err
	}
	access := s.access.WithTx(tx)
	if !access.CanReadRoster(userID, &project) {
		return nil, response.NewNotFound("project not found or no access")
	}
	if !access.CanManageRoster(userID, &project) {
		return nil, response.NewForbidden("only the project creator or an admin can manage members")
	}
	return &project, nil
}

func (s *MemberService) userByID(id uint) (*models.User, error) {
	return s.userInTx(s.db, id)
}

func (s *MemberService) userInTx(tx *gorm.DB, id uint) (*models.User, error) {
	var user models.User
	if err := tx.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFound("user not found")
		}
		return nil, err
	}
	return &user, nil
}

func displayName(u *models.User) string {
	if u == nil {
		return "someone"
	}
	if u.Nickname != "" {
		return u.Nickname
	}
	return u.Username
}
