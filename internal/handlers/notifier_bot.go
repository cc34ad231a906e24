package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/makerplan/backend/internal/services"
	"github.com/makerplan/backend/pkg/response"
	"gorm.io/gorm"
)

type NotifierBotHandler struct {
	botService *services.NotifierBotService
}

func NewNotifierBotHandler(db *gorm.DB) *NotifierBotHandler {
	return &NotifierBotHandler{
		botService: services.NewNotifierBotService(db),
	}
}

// List returns paginated notifier bots (admin)
// GET /api/notifier-bots
func (h *NotifierBotHandler) List(c *gin.Context) {
	var req services.NotifierBotListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	resp, err := h.botService.List(&req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, resp)
}

// Create registers a webhook bot (admin)
// POST /api/notifier-bots
func (h *NotifierBotHandler) Create(c *gin.Context) {
	var req services.CreateNotifierBotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	bot, err := h.botService.Create(&req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, bot)
}

// Update edits a webhook bot (admin)
// PUT /api/notifier-bots/:id
func (h *NotifierBotHandler) Update(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "invalid bot id")
		return
	}

	var req services.UpdateNotifierBotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	bot, err := h.botService.Update(uint(id), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, bot)
}

// Delete removes a webhook bot (admin)
// DELETE /api/notifier-bots/:id
func (h *NotifierBotHandler) Delete(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "invalid bot id")
		return
	}

	if err := h.botService.Delete(uint(id)); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"deleted": true})
}

// Test sends a sample message through the bot (admin)
// POST /api/notifier-bots/:id/test
func (h *NotifierBotHandler) Test(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "invalid bot id")
		return
	}

	if err := h.botService.Test(uint(id)); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"sent": true})
}
