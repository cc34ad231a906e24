package services

import (
	"errors"
	"time"

	"github.com/makerplan/backend/internal/models"
	"github.com/makerplan/backend/pkg/response"
	"gorm.io/gorm"
)

type ProjectService struct {
	db     *gorm.DB
	access *AccessService
	events *EventPublisher
}

func NewProjectService(db *gorm.DB, events *EventPublisher) *ProjectService {
	return &ProjectService{db: db, access: NewAccessService(db), events: events}
}

type ProjectListRequest struct {
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	Title    string `form:"title"`
	Category string `form:"category"`
	Status   string `form:"status"`
}

type ProjectListResponse struct {
	Total    int64            `json:"total"`
	Page     int              `json:"page"`
	PageSize int              `json:"page_size"`
	Items    []models.Project `json:"items"`
}

type CreateProjectRequest struct {
	Title         string   `json:"title" binding:"required"`
	Description   string   `json:"description"`
	Category      string   `json:"category"`
	Address       string   `json:"address"`
	Latitude      *float64 `json:"latitude"`
	Longitude     *float64 `json:"longitude"`
	FundingGoal   float64  `json:"funding_goal"`
	FundingSource string   `json:"funding_source"`
}

type UpdateProjectRequest struct {
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	Category      string   `json:"category"`
	Status        string   `json:"status"`
	Address       string   `json:"address"`
	Latitude      *float64 `json:"latitude"`
	Longitude     *float64 `json:"longitude"`
	FundingGoal   *float64 `json:"funding_goal"`
	FundingRaised *float64 `json:"funding_raised"`
	FundingSource string   `json:"funding_source"`
	Team          *[]uint  `json:"team"` // legacy; diffed against profile caches
}

// List returns the paginated projects visible to the user.
func (s *ProjectService) List(userID uint, req *ProjectListRequest) (*ProjectListResponse, error) {
	if req.Page == 0 {
		req.Page = 1
	}
	if req.PageSize == 0 {
		req.PageSize = 10
	}

	ids, err := ReadableProjectIDs(s.db, userID)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return &ProjectListResponse{Page: req.Page, PageSize: req.PageSize, Items: []models.Project{}}, nil
	}

	query := s.db.Model(&models.Project{}).Where("id IN ?", ids)
	if req.Title != "" {
		query = query.Where("title LIKE ?", "%"+req.Title+"%")
	}
	if req.Category != "" {
		query = query.Where("category = ?", req.Category)
	}
	if req.Status != "" {
		query = query.Where("status = ?", req.Status)
	}

	var total int64
	query.Count(&total)

	var projects []models.Project
	offset := (req.Page - 1) * req.PageSize
	if err := query.Offset(offset).Limit(req.PageSize).Order("created_at DESC").Find(&projects).Error; err != nil {
		return nil, err
	}

	return &ProjectListResponse{
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
		Items:    projects,
	}, nil
}

// GetByID returns a project the user may read. A missing row and a row the
// user may not see are indistinguishable to the caller.
func (s *ProjectService) GetByID(userID, id uint) (*models.Project, error) {
	var project models.Project
	if err := s.db.First(&project, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFound("project not found or no access")
		}
		return nil, err
	}
	if !s.access.CanReadProject(userID, &project) {
		return nil, response.NewNotFound("project not found or no access")
	}
	return &project, nil
}

// Create creates a project owned by the actor and materializes the creator
// as an accepted owner-level member so the membership table and the profile
// cache stay the single source of truth.
func (s *ProjectService) Create(userID uint, req *CreateProjectRequest) (*models.Project, error) {
	var user models.User
	if err := s.db.First(&user, userID).Error; err != nil {
		return nil, response.NewUnauthorized("unknown user")
	}

	project := models.Project{
		Title:         req.Title,
		Description:   req.Description,
		CreatorID:     userID,
		Team:          []uint{},
		Category:      req.Category,
		Status:        models.ProjectStatusPlanning,
		Address:       req.Address,
		Latitude:      req.Latitude,
		Longitude:     req.Longitude,
		FundingGoal:   req.FundingGoal,
		FundingSource: req.FundingSource,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&project).Error; err != nil {
			return err
		}

		now := time.Now()
		creatorMember := models.ProjectMember{
			ProjectID:        project.ID,
			UserID:           &userID,
			Role:             models.RoleOwner,
			InvitationStatus: models.InvitationAccepted,
			InvitationEmail:  user.Email,
			InvitedBy:        userID,
			AcceptedAt:       &now,
		}
		if err := tx.Create(&creatorMember).Error; err != nil {
			return err
		}

		return addProjectToProfile(tx, userID, project.ID)
	})
	if err != nil {
		return nil, err
	}

	s.events.Publish(&Event{
		Type:        EventProjectCreated,
		ProjectID:   project.ID,
		ProjectName: project.Title,
		ActorID:     userID,
	})

	return &project, nil
}

// Update applies project changes. Team replacement is diffed against the
// old list and the affected profile caches are updated in the same
// transaction (removed users lose the cache entry, added users gain it once).
func (s *ProjectService) Update(userID, id uint, req *UpdateProjectRequest) (*models.Project, error) {
	var project models.Project

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&project, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return response.NewNotFound("project not found or no access")
			}
			return err
		}

		access := s.access.WithTx(tx)
		if !access.CanReadProject(userID, &project) {
			return response.NewNotFound("project not found or no access")
		}
		if !access.CanUpdateProject(userID, &project) {
			return response.NewForbidden("insufficient permissions to update project")
		}

		updates := map[string]interface{}{}
		if req.Title != "" {
			updates["title"] = req.Title
		}
		if req.Description != "" {
			updates["description"] = req.Description
		}
		if req.Category != "" {
			updates["category"] = req.Category
		}
		if req.Status != "" {
			updates["status"] = req.Status
		}
		if req.Address != "" {
			updates["address"] = req.Address
		}
		if req.Latitude != nil {
			updates["latitude"] = req.Latitude
		}
		if req.Longitude != nil {
			updates["longitude"] = req.Longitude
		}
		if req.FundingGoal != nil {
			updates["funding_goal"] = *req.FundingGoal
		}
		if req.FundingRaised != nil {
			updates["funding_raised"] = *req.FundingRaised
		}
		if req.FundingSource != "" {
			updates["funding_source"] = req.FundingSource
		}

		if req.Team != nil {
			if err := syncTeamChange(tx, &project, *req.Team); err != nil {
				return err
			}
			// Struct update so the JSON serializer runs; a map entry would
			// hand the raw slice to the driver.
			project.Team = *req.Team
			if err := tx.Model(&project).
				Select("team").
				Updates(&models.Project{Team: project.Team}).Error; err != nil {
				return err
			}
		}

		if len(updates) > 0 {
			if err := tx.Model(&project).Updates(updates).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &project, nil
}

// Delete removes a project and everything hanging off it: members, tasks,
// items, and the project's entry in every profile cache. Creator only.
func (s *ProjectService) Delete(userID, id uint) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var project models.Project
		if err := tx.First(&project, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return response.NewNotFound("project not found or no access")
			}
			return err
		}

		access := s.access.WithTx(tx)
		if !access.CanReadProject(userID, &project) {
			return response.NewNotFound("project not found or no access")
		}
		if !access.CanDeleteProject(userID, &project) {
			return response.NewForbidden("only the project creator can delete it")
		}

		if err := tx.Where("project_id = ?", id).Delete(&models.ProjectMember{}).Error; err != nil {
			return err
		}
		if err := tx.Where("project_id = ?", id).Delete(&models.Task{}).Error; err != nil {
			return err
		}
		if err := tx.Where("project_id = ?", id).Delete(&models.Item{}).Error; err != nil {
			return err
		}
		if err := removeProjectFromAllProfiles(tx, id); err != nil {
			return err
		}

		return tx.Delete(&project).Error
	})
	return err
}

// syncTeamChange diffs the legacy team list and mirrors the change into the
// affected users' profile caches. Runs inside the project update transaction
// so the cache can never run ahead of the team column.
func syncTeamChange(tx *gorm.DB, project *models.Project, newTeam []uint) error {
	oldSet := map[uint]struct{}{}
	for _, id := range project.Team {
		oldSet[id] = struct{}{}
	}
	newSet := map[uint]struct{}{}
	for _, id := range newTeam {
		newSet[id] = struct{}{}
	}

	for userID := range oldSet {
		if _, keep := newSet[userID]; !keep {
			// An accepted membership row still entitles the user to the
			// cache entry; only pure legacy members lose it.
			var accepted int64
			tx.Model(&models.ProjectMember{}).
				Where("project_id = ? AND user_id = ? AND invitation_status = ?",
					project.ID, userID, models.InvitationAccepted).
				Count(&accepted)
			if accepted > 0 {
				continue
			}
			if err := removeProjectFromProfile(tx, userID, project.ID); err != nil {
				return err
			}
		}
	}
	for userID := range newSet {
		if _, had := oldSet[userID]; !had {
			if err := addProjectToProfile(tx, userID, project.ID); err != nil {
				return err
			}
		}
	}
	return nil
}
