package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/makerplan/backend/internal/services"
	"github.com/makerplan/backend/pkg/response"
	"gorm.io/gorm"
)

type SystemConfigHandler struct {
	configService *services.SystemConfigService
}

func NewSystemConfigHandler(db *gorm.DB) *SystemConfigHandler {
	return &SystemConfigHandler{
		configService: services.NewSystemConfigService(db),
	}
}

// GetLDAPConfig returns the LDAP settings with the bind password masked
// GET /api/system-configs/ldap
func (h *SystemConfigHandler) GetLDAPConfig(c *gin.Context) {
	response.Success(c, h.configService.GetLDAPConfig())
}

// UpdateLDAPConfig applies a partial LDAP settings update
// PUT /api/system-configs/ldap
func (h *SystemConfigHandler) UpdateLDAPConfig(c *gin.Context) {
	var req services.UpdateLDAPConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if err := h.configService.UpdateLDAPConfig(&req); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, h.configService.GetLDAPConfig())
}

// GetGroup lists all settings in a configuration group
// GET /api/system-configs/groups/:group
func (h *SystemConfigHandler) GetGroup(c *gin.Context) {
	group := c.Param("group")
	if group == "" {
		response.BadRequest(c, "group is required")
		return
	}

	configs, err := h.configService.GetByGroup(group)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, configs)
}

type updateConfigValuesRequest struct {
	Values map[string]string `json:"values" binding:"required"`
}

// UpdateValues sets configuration values by key
// PUT /api/system-configs
func (h *SystemConfigHandler) UpdateValues(c *gin.Context) {
	var req updateConfigValuesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if len(req.Values) == 0 {
		response.BadRequest(c, "no values to update")
		return
	}

	for key, value := range req.Values {
		if err := h.configService.Set(key, value); err != nil {
			response.Error(c, err)
			return
		}
	}

	response.Success(c, gin.H{"updated": len(req.Values)})
}
