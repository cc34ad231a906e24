package services

import (
	"strings"

	"github.com/makerplan/backend/internal/models"
	"gorm.io/gorm"
)

// DashboardService aggregates the per-user counters shown on the landing
// view. All counts respect the same visibility scope as the list endpoints.
type DashboardService struct {
	db *gorm.DB
}

func NewDashboardService(db *gorm.DB) *DashboardService {
	return &DashboardService{db: db}
}

type DashboardStats struct {
	Projects           int64 `json:"projects"`
	OpenTasks          int64 `json:"open_tasks"`
	CompletedTasks     int64 `json:"completed_tasks"`
	Items              int64 `json:"items"`
	BadgesEarned       int64 `json:"badges_earned"`
	PendingInvitations int64 `json:"pending_invitations"`
}

// Stats returns the user's dashboard counters.
func (s *DashboardService) Stats(userID uint) (*DashboardStats, error) {
	projectIDs, err := ReadableProjectIDs(s.db, userID)
	if err != nil {
		return nil, err
	}

	stats := &DashboardStats{Projects: int64(len(projectIDs))}

	taskScope := func() *gorm.DB {
		q := s.db.Model(&models.Task{})
		if len(projectIDs) > 0 {
			return q.Where("creator_id = ? OR project_id IN ?", userID, projectIDs)
		}
		return q.Where("creator_id = ?", userID)
	}
	if err := taskScope().Where("status <> ?", models.TaskStatusDone).
		Count(&stats.OpenTasks).Error; err != nil {
		return nil, err
	}
	if err := taskScope().Where("status = ?", models.TaskStatusDone).
		Count(&stats.CompletedTasks).Error; err != nil {
		return nil, err
	}

	itemScope := s.db.Model(&models.Item{})
	if len(projectIDs) > 0 {
		itemScope = itemScope.Where("added_by = ? OR project_id IN ?", userID, projectIDs)
	} else {
		itemScope = itemScope.Where("added_by = ?", userID)
	}
	if err := itemScope.Count(&stats.Items).Error; err != nil {
		return nil, err
	}

	if err := s.db.Model(&models.UserBadge{}).Where("user_id = ?", userID).
		Count(&stats.BadgesEarned).Error; err != nil {
		return nil, err
	}

	var user models.User
	if err := s.db.First(&user, userID).Error; err == nil {
		if err := s.db.Model(&models.ProjectMember{}).
			Where("LOWER(invitation_email) = ? AND invitation_status = ?",
				strings.ToLower(user.Email), models.InvitationPending).
			Count(&stats.PendingInvitations).Error; err != nil {
			return nil, err
		}
	}

	return stats, nil
}
