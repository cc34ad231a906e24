package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/makerplan/backend/internal/middleware"
	"github.com/makerplan/backend/internal/services"
	"github.com/makerplan/backend/pkg/response"
	"gorm.io/gorm"
)

type BadgeHandler struct {
	badgeService *services.BadgeService
}

func NewBadgeHandler(db *gorm.DB, events *services.EventPublisher) *BadgeHandler {
	return &BadgeHandler{
		badgeService: services.NewBadgeService(db, events),
	}
}

// List returns all badge definitions
// GET /api/badges
func (h *BadgeHandler) List(c *gin.Context) {
	badges, err := h.badgeService.List()
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, badges)
}

// GetByID returns a badge definition
// GET /api/badges/:id
func (h *BadgeHandler) GetByID(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "invalid badge id")
		return
	}

	badge, err := h.badgeService.GetByID(uint(id))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, badge)
}

// Create creates a badge definition (admin)
// POST /api/badges
func (h *BadgeHandler) Create(c *gin.Context) {
	var req services.CreateBadgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	badge, err := h.badgeService.Create(&req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, badge)
}

// Update updates a badge definition (admin)
// PUT /api/badges/:id
func (h *BadgeHandler) Update(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "invalid badge id")
		return
	}

	var req services.UpdateBadgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	badge, err := h.badgeService.Update(uint(id), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, badge)
}

// Delete removes a badge definition (admin)
// DELETE /api/badges/:id
func (h *BadgeHandler) Delete(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "invalid badge id")
		return
	}

	if err := h.badgeService.Delete(uint(id)); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"deleted": true})
}

// MyBadges lists the caller's earned badges
// GET /api/badges/mine
func (h *BadgeHandler) MyBadges(c *gin.Context) {
	earned, err := h.badgeService.ListUserBadges(middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, earned)
}

type awardBadgeRequest struct {
	UserID  uint `json:"user_id" binding:"required"`
	BadgeID uint `json:"badge_id" binding:"required"`
}

// Award grants a badge manually (admin)
// POST /api/badges/award
func (h *BadgeHandler) Award(c *gin.Context) {
	var req awardBadgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	record, err := h.badgeService.Award(middleware.GetUserID(c), req.UserID, req.BadgeID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, record)
}

// ListQuests returns badge quests, optionally scoped to a project
// GET /api/quests
func (h *BadgeHandler) ListQuests(c *gin.Context) {
	var projectID *uint
	if raw := c.Query("project_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			response.BadRequest(c, "invalid project id")
			return
		}
		pid := uint(id)
		projectID = &pid
	}

	quests, err := h.badgeService.ListQuests(projectID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, quests)
}

// CreateQuest creates a badge quest
// POST /api/quests
func (h *BadgeHandler) CreateQuest(c *gin.Context) {
	var req services.CreateQuestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	quest, err := h.badgeService.CreateQuest(middleware.GetUserID(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, quest)
}

// DeleteQuest removes a quest and detaches its tasks
// DELETE /api/quests/:id
func (h *BadgeHandler) DeleteQuest(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "invalid quest id")
		return
	}

	if err := h.badgeService.DeleteQuest(uint(id)); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"deleted": true})
}
