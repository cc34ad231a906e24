package services

import (
	"errors"

	"github.com/makerplan/backend/internal/models"
	"github.com/makerplan/backend/pkg/response"
	"gorm.io/gorm"
)

// NotifierBotService is the admin CRUD surface for outbound webhook bots.
type NotifierBotService struct {
	db *gorm.DB
}

func NewNotifierBotService(db *gorm.DB) *NotifierBotService {
	return &NotifierBotService{db: db}
}

type NotifierBotListRequest struct {
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	Name     string `form:"name"`
	Type     string `form:"type"`
	IsActive *bool  `form:"is_active"`
}

type NotifierBotListResponse struct {
	Total    int64                `json:"total"`
	Page     int                  `json:"page"`
	PageSize int                  `json:"page_size"`
	Items    []models.NotifierBot `json:"items"`
}

type CreateNotifierBotRequest struct {
	Name     string `json:"name" binding:"required"`
	Type     string `json:"type" binding:"required"`
	Webhook  string `json:"webhook" binding:"required"`
	Secret   string `json:"secret"`
	IsActive bool   `json:"is_active"`
}

type UpdateNotifierBotRequest struct {
	Name     string  `json:"name"`
	Type     string  `json:"type"`
	Webhook  string  `json:"webhook"`
	Secret   *string `json:"secret"`
	IsActive *bool   `json:"is_active"`
}

func (s *NotifierBotService) List(req *NotifierBotListRequest) (*NotifierBotListResponse, error) {
	if req.Page == 0 {
		req.Page = 1
	}
	if req.PageSize == 0 {
		req.PageSize = 10
	}

	var bots []models.NotifierBot
	var total int64

	query := s.db.Model(&models.NotifierBot{})
	if req.Name != "" {
		query = query.Where("name LIKE ?", "%"+req.Name+"%")
	}
	if req.Type != "" {
		query = query.Where("type = ?", req.Type)
	}
	if req.IsActive != nil {
		query = query.Where("is_active = ?", *req.IsActive)
	}

	query.Count(&total)

	offset := (req.Page - 1) * req.PageSize
	if err := query.Offset(offset).Limit(req.PageSize).Order("created_at DESC").Find(&bots).Error; err != nil {
		return nil, err
	}

	return &NotifierBotListResponse{
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
		Items:    bots,
	}, nil
}

func (s *NotifierBotService) GetByID(id uint) (*models.NotifierBot, error) {
	var bot models.NotifierBot
	if err := s.db.First(&bot, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFound("notifier bot not found")
		}
		return nil, err
	}
	return &bot, nil
}

func (s *NotifierBotService) Create(req *CreateNotifierBotRequest) (*models.NotifierBot, error) {
	bot := models.NotifierBot{
		Name:     req.Name,
		Type:     req.Type,
		Webhook:  req.Webhook,
		Secret:   req.Secret,
		IsActive: req.IsActive,
	}
	if err := s.db.Create(&bot).Error; err != nil {
		return nil, err
	}
	return &bot, nil
}

func (s *NotifierBotService) Update(id uint, req *UpdateNotifierBotRequest) (*models.NotifierBot, error) {
	bot, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if req.Name != "" {
		updates["name"] = req.Name
	}
	if req.Type != "" {
		updates["type"] = req.Type
	}
	if req.Webhook != "" {
		updates["webhook"] = req.Webhook
	}
	if req.Secret != nil {
		updates["secret"] = *req.Secret
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	if len(updates) == 0 {
		return bot, nil
	}

	if err := s.db.Model(bot).Updates(updates).Error; err != nil {
		return nil, err
	}
	s.db.First(bot, id)
	return bot, nil
}

func (s *NotifierBotService) Delete(id uint) error {
	result := s.db.Delete(&models.NotifierBot{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return response.NewNotFound("notifier bot not found")
	}
	return nil
}

// Test sends a sample message through the bot so admins can verify webhook
// settings before activating it.
func (s *NotifierBotService) Test(id uint) error {
	bot, err := s.GetByID(id)
	if err != nil {
		return err
	}
	notifier := NewNotificationService(s.db)
	return notifier.sendToBot(bot, &Event{
		Type:   "test",
		Detail: "MakerPlan webhook test message",
	})
}
