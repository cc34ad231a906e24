package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/makerplan/backend/internal/models"
	"github.com/makerplan/backend/internal/services"
)

// HealthHandler provides enhanced health check endpoints.
type HealthHandler struct{}

func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

// CheckHealth returns the health status of all subsystems.
func (h *HealthHandler) CheckHealth(c *gin.Context) {
	overall := "healthy"

	// Database check
	dbStatus := "ok"
	sqlDB, err := models.GetDB().DB()
	if err != nil {
		dbStatus = "error: " + err.Error()
		overall = "unhealthy"
	} else if err := sqlDB.Ping(); err != nil {
		dbStatus = "error: " + err.Error()
		overall = "unhealthy"
	}

	// Event queue mode
	queueMode := "sync"
	if queue := services.GetEventQueue(); queue != nil && queue.IsAsync() {
		queueMode = "async (Redis)"
	}

	// Pending invitation count
	var pendingInvites int64
	models.GetDB().Model(&models.ProjectMember{}).
		Where("invitation_status = ?", models.InvitationPending).
		Count(&pendingInvites)

	c.JSON(200, gin.H{
		"status":  overall,
		"service": "makerplan",
		"components": gin.H{
			"database":            dbStatus,
			"queue_mode":          queueMode,
			"pending_invitations": pendingInvites,
		},
	})
}
