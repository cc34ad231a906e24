package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/makerplan/backend/internal/services"
	"github.com/makerplan/backend/pkg/response"
	"gorm.io/gorm"
)

type EstimatorConfigHandler struct {
	configService *services.EstimatorConfigService
}

func NewEstimatorConfigHandler(db *gorm.DB) *EstimatorConfigHandler {
	return &EstimatorConfigHandler{
		configService: services.NewEstimatorConfigService(db),
	}
}

// List returns paginated estimator configs (admin)
// GET /api/estimator-configs
func (h *EstimatorConfigHandler) List(c *gin.Context) {
	var req services.EstimatorConfigListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	resp, err := h.configService.List(&req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, resp)
}

// GetByID returns an estimator config with its key masked (admin)
// GET /api/estimator-configs/:id
func (h *EstimatorConfigHandler) GetByID(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "invalid config id")
		return
	}

	cfg, err := h.configService.GetByID(uint(id))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, cfg)
}

// Create adds an estimator config (admin)
// POST /api/estimator-configs
func (h *EstimatorConfigHandler) Create(c *gin.Context) {
	var req services.CreateEstimatorConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	cfg, err := h.configService.Create(&req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, cfg)
}

// Update edits an estimator config (admin)
// PUT /api/estimator-configs/:id
func (h *EstimatorConfigHandler) Update(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "invalid config id")
		return
	}

	var req services.UpdateEstimatorConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	cfg, err := h.configService.Update(uint(id), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, cfg)
}

// Delete removes an estimator config (admin)
// DELETE /api/estimator-configs/:id
func (h *EstimatorConfigHandler) Delete(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "invalid config id")
		return
	}

	if err := h.configService.Delete(uint(id)); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"deleted": true})
}
