package services

import (
	"errors"

	"github.com/makerplan/backend/internal/models"
	"github.com/makerplan/backend/pkg/response"
	"gorm.io/gorm"
)

// BadgeService manages badge definitions, quests, and earn records. Badge
// definitions are global and readable by any authenticated user; creation
// and editing is an admin concern enforced at the route level.
type BadgeService struct {
	db     *gorm.DB
	events *EventPublisher
}

func NewBadgeService(db *gorm.DB, events *EventPublisher) *BadgeService {
	return &BadgeService{db: db, events: events}
}

type CreateBadgeRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Category    string `json:"category"`
}

type UpdateBadgeRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
	Icon        *string `json:"icon"`
	Category    *string `json:"category"`
}

type CreateQuestRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	BadgeID     uint   `json:"badge_id" binding:"required"`
	ProjectID   *uint  `json:"project_id"`
}

func (s *BadgeService) List() ([]models.Badge, error) {
	var badges []models.Badge
	if err := s.db.Order("category ASC, name ASC").Find(&badges).Error; err != nil {
		return nil, err
	}
	return badges, nil
}

func (s *BadgeService) GetByID(id uint) (*models.Badge, error) {
	var badge models.Badge
	if err := s.db.First(&badge, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFound("badge not found")
		}
		return nil, err
	}
	return &badge, nil
}

func (s *BadgeService) Create(req *CreateBadgeRequest) (*models.Badge, error) {
	badge := &models.Badge{
		Name:        req.Name,
		Description: req.Description,
		Icon:        req.Icon,
		Category:    req.Category,
	}
	if err := s.db.Create(badge).Error; err != nil {
		return nil, err
	}
	return badge, nil
}

func (s *BadgeService) Update(id uint, req *UpdateBadgeRequest) (*models.Badge, error) {
	badge, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if req.Name != "" {
		updates["name"] = req.Name
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Icon != nil {
		updates["icon"] = *req.Icon
	}
	if req.Category != nil {
		updates["category"] = *req.Category
	}
	if len(updates) == 0 {
		return badge, nil
	}
	if err := s.db.Model(badge).Updates(updates).Error; err != nil {
		return nil, err
	}
	return badge, nil
}

// Delete removes a badge definition. Earn records survive as orphaned
// history; quests referencing the badge are removed with it.
func (s *BadgeService) Delete(id uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var badge models.Badge
		if err := tx.First(&badge, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return response.NewNotFound("badge not found")
			}
			return err
		}
		if err := tx.Where("badge_id = ?", id).Delete(&models.BadgeQuest{}).Error; err != nil {
			return err
		}
		return tx.Delete(&badge).Error
	})
}

// ListUserBadges returns the user's earn records with badge details.
func (s *BadgeService) ListUserBadges(userID uint) ([]models.UserBadge, error) {
	var earned []models.UserBadge
	if err := s.db.Preload("Badge").
		Where("user_id = ?", userID).
		Order("awarded_at DESC").
		Find(&earned).Error; err != nil {
		return nil, err
	}
	return earned, nil
}

// Award grants a badge manually. Re-awarding is a no-op; the first earn
// record is the only one.
func (s *BadgeService) Award(actorID, userID, badgeID uint) (*models.UserBadge, error) {
	badge, err := s.GetByID(badgeID)
	if err != nil {
		return nil, err
	}

	var user models.User
	if err := s.db.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFound("user not found")
		}
		return nil, err
	}

	var created bool
	err = s.db.Transaction(func(tx *gorm.DB) error {
		var txErr error
		created, txErr = awardBadge(tx, userID, badgeID, models.BadgeSourceManual)
		return txErr
	})
	if err != nil {
		return nil, err
	}

	if created {
		s.events.Publish(&Event{
			Type:         EventBadgeAwarded,
			ActorID:      actorID,
			TargetUserID: userID,
			BadgeID:      badge.ID,
			BadgeName:    badge.Name,
		})
	}

	var record models.UserBadge
	if err := s.db.Preload("Badge").
		Where("user_id = ? AND badge_id = ?", userID, badgeID).
		First(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

// --- Quests ---

func (s *BadgeService) ListQuests(projectID *uint) ([]models.BadgeQuest, error) {
	query := s.db.Preload("Badge")
	if projectID != nil {
		query = query.Where("project_id = ?", *projectID)
	}
	var quests []models.BadgeQuest
	if err := query.Order("created_at DESC").Find(&quests).Error; err != nil {
		return nil, err
	}
	return quests, nil
}

func (s *BadgeService) CreateQuest(userID uint, req *CreateQuestRequest) (*models.BadgeQuest, error) {
	if _, err := s.GetByID(req.BadgeID); err != nil {
		return nil, err
	}
	quest := &models.BadgeQuest{
		Name:        req.Name,
		Description: req.Description,
		BadgeID:     req.BadgeID,
		ProjectID:   req.ProjectID,
		CreatedBy:   userID,
	}
	if err := s.db.Create(quest).Error; err != nil {
		return nil, err
	}
	return quest, nil
}

// DeleteQuest removes the quest and detaches its tasks.
func (s *BadgeService) DeleteQuest(id uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var quest models.BadgeQuest
		if err := tx.First(&quest, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return response.NewNotFound("quest not found")
			}
			return err
		}
		if err := tx.Model(&models.Task{}).Where("quest_id = ?", id).
			Update("quest_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(&quest).Error
	})
}
