package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/makerplan/backend/internal/middleware"
	"github.com/makerplan/backend/internal/services"
	"github.com/makerplan/backend/pkg/response"
	"gorm.io/gorm"
)

type ItemHandler struct {
	itemService *services.ItemService
}

func NewItemHandler(db *gorm.DB, estimate *services.EstimateService) *ItemHandler {
	return &ItemHandler{
		itemService: services.NewItemService(db, estimate),
	}
}

// List returns inventory items visible to the caller
// GET /api/items
func (h *ItemHandler) List(c *gin.Context) {
	var req services.ItemListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	resp, err := h.itemService.List(middleware.GetUserID(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, resp)
}

// GetByID returns an item by ID
// GET /api/items/:id
func (h *ItemHandler) GetByID(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "invalid item id")
		return
	}

	item, err := h.itemService.GetByID(middleware.GetUserID(c), uint(id))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, item)
}

// Create adds an inventory item
// POST /api/items
func (h *ItemHandler) Create(c *gin.Context) {
	var req services.CreateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	item, err := h.itemService.Create(middleware.GetUserID(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, item)
}

// Update updates an item
// PUT /api/items/:id
func (h *ItemHandler) Update(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "invalid item id")
		return
	}

	var req services.UpdateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	item, err := h.itemService.Update(middleware.GetUserID(c), uint(id), &req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, item)
}

// EstimatePrice asks the configured estimator for a unit price
// POST /api/items/:id/estimate
func (h *ItemHandler) EstimatePrice(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "invalid item id")
		return
	}

	item, err := h.itemService.EstimatePrice(c.Request.Context(), middleware.GetUserID(c), uint(id))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, item)
}

// Delete deletes an item
// DELETE /api/items/:id
func (h *ItemHandler) Delete(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "invalid item id")
		return
	}

	if err := h.itemService.Delete(middleware.GetUserID(c), uint(id)); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, gin.H{"deleted": true})
}
