package services

import (
	"context"
	"errors"
	"time"

	"github.com/makerplan/backend/internal/models"
	"github.com/makerplan/backend/pkg/response"
	"gorm.io/gorm"
)

// ItemService manages inventory items. Access rules mirror tasks with the
// adder standing in for the creator.
type ItemService struct {
	db       *gorm.DB
	access   *AccessService
	estimate *EstimateService
}

func NewItemService(db *gorm.DB, estimate *EstimateService) *ItemService {
	return &ItemService{db: db, access: NewAccessService(db), estimate: estimate}
}

type ItemListRequest struct {
	Page      int    `form:"page" binding:"omitempty,min=1"`
	PageSize  int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	ProjectID *uint  `form:"project_id"`
	TaskID    *uint  `form:"task_id"`
	ItemType  string `form:"item_type"`
}

type ItemListResponse struct {
	Total    int64         `json:"total"`
	Page     int           `json:"page"`
	PageSize int           `json:"page_size"`
	Items    []models.Item `json:"items"`
}

type CreateItemRequest struct {
	Name             string  `json:"name" binding:"required"`
	Description      string  `json:"description"`
	ProjectID        *uint   `json:"project_id"`
	TaskID           *uint   `json:"task_id"`
	Assignees        []uint  `json:"assignees"`
	ItemType         string  `json:"item_type" binding:"required"`
	QuantityNeeded   int     `json:"quantity_needed"`
	QuantityOwned    int     `json:"quantity_owned"`
	QuantityBorrowed int     `json:"quantity_borrowed"`
	UnitPrice        float64 `json:"unit_price"`
}

type UpdateItemRequest struct {
	Name             string   `json:"name"`
	Description      *string  `json:"description"`
	Assignees        *[]uint  `json:"assignees"`
	ItemType         string   `json:"item_type"`
	QuantityNeeded   *int     `json:"quantity_needed"`
	QuantityOwned    *int     `json:"quantity_owned"`
	QuantityBorrowed *int     `json:"quantity_borrowed"`
	UnitPrice        *float64 `json:"unit_price"`
}

// List returns items visible to the user: items they added and items in
// projects they can read.
func (s *ItemService) List(userID uint, req *ItemListRequest) (*ItemListResponse, error) {
	if req.Page < 1 {
		req.Page = 1
	}
	if req.PageSize < 1 || req.PageSize > 100 {
		req.PageSize = 20
	}

	projectIDs, err := ReadableProjectIDs(s.db, userID)
	if err != nil {
		return nil, err
	}

	query := s.db.Model(&models.Item{})
	if len(projectIDs) > 0 {
		query = query.Where("added_by = ? OR project_id IN ?", userID, projectIDs)
	} else {
		query = query.Where("added_by = ?", userID)
	}
	if req.ProjectID != nil {
		query = query.Where("project_id = ?", *req.ProjectID)
	}
	if req.TaskID != nil {
		query = query.Where("task_id = ?", *req.TaskID)
	}
	if req.ItemType != "" {
		query = query.Where("item_type = ?", req.ItemType)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}

	var items []models.Item
	if err := query.Order("created_at DESC").
		Offset((req.Page - 1) * req.PageSize).
		Limit(req.PageSize).
		Find(&items).Error; err != nil {
		return nil, err
	}

	return &ItemListResponse{
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
		Items:    items,
	}, nil
}

// GetByID returns the item when the user may read it.
func (s *ItemService) GetByID(userID, id uint) (*models.Item, error) {
	var item models.Item
	if err := s.db.Preload("Adder").First(&item, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFound("item not found or no access")
		}
		return nil, err
	}
	if !s.access.CanAccessItem(userID, &item) {
		return nil, response.NewNotFound("item not found or no access")
	}
	return &item, nil
}

// Create inserts an item owned by the actor. Attaching to a project requires
// read access to that project.
func (s *ItemService) Create(userID uint, req *CreateItemRequest) (*models.Item, error) {
	if !models.ValidItemType(req.ItemType) {
		return nil, response.NewBadRequest("invalid item_type: " + req.ItemType)
	}

	item := &models.Item{
		Name:             req.Name,
		Description:      req.Description,
		AddedBy:          userID,
		ProjectID:        req.ProjectID,
		TaskID:           req.TaskID,
		Assignees:        req.Assignees,
		ItemType:         req.ItemType,
		QuantityNeeded:   req.QuantityNeeded,
		QuantityOwned:    req.QuantityOwned,
		QuantityBorrowed: req.QuantityBorrowed,
		UnitPrice:        req.UnitPrice,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if req.ProjectID != nil {
			var project models.Project
			if err := tx.First(&project, *req.ProjectID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return response.NewNotFound("project not found or no access")
				}
				return err
			}
			if !s.access.WithTx(tx).CanReadProject(userID, &project) {
				return response.NewNotFound("project not found or no access")
			}
		}
		return tx.Create(item).Error
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// Update modifies item fields, writable by the adder, an assignee, or
// anyone with read access to the item's project.
func (s *ItemService) Update(userID, id uint, req *UpdateItemRequest) (*models.Item, error) {
	var item models.Item
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&item, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return response.NewNotFound("item not found or no access")
			}
			return err
		}
		if !s.access.WithTx(tx).CanAccessItem(userID, &item) {
			return response.NewNotFound("item not found or no access")
		}

		if req.ItemType != "" && !models.ValidItemType(req.ItemType) {
			return response.NewBadRequest("invalid item_type: " + req.ItemType)
		}

		updates := map[string]interface{}{}
		if req.Name != "" {
			updates["name"] = req.Name
		}
		if req.Description != nil {
			updates["description"] = *req.Description
		}
		if req.ItemType != "" {
			updates["item_type"] = req.ItemType
		}
		if req.QuantityNeeded != nil {
			updates["quantity_needed"] = *req.QuantityNeeded
		}
		if req.QuantityOwned != nil {
			updates["quantity_owned"] = *req.QuantityOwned
		}
		if req.QuantityBorrowed != nil {
			updates["quantity_borrowed"] = *req.QuantityBorrowed
		}
		if req.UnitPrice != nil {
			updates["unit_price"] = *req.UnitPrice
		}
		if req.Assignees != nil {
			// Struct update so the JSON serializer runs on the slice.
			item.Assignees = *req.Assignees
			if err := tx.Model(&item).
				Select("assignees").
				Updates(&models.Item{Assignees: item.Assignees}).Error; err != nil {
				return err
			}
		}
		if len(updates) == 0 {
			return nil
		}
		return tx.Model(&item).Updates(updates).Error
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// Delete removes the item. Only the adder or the project creator may delete.
func (s *ItemService) Delete(userID, id uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var item models.Item
		if err := tx.First(&item, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return response.NewNotFound("item not found or no access")
			}
			return err
		}
		access := s.access.WithTx(tx)
		if !access.CanAccessItem(userID, &item) {
			return response.NewNotFound("item not found or no access")
		}
		if !access.CanDeleteItem(userID, &item) {
			return response.NewForbidden("only the item's adder or the project creator can delete it")
		}
		return tx.Delete(&item).Error
	})
}

// EstimatePrice asks the configured estimator for a unit price and stores it
// on the item. The caller must already hold write access; the external call
// happens outside any transaction, only the result write is transactional.
func (s *ItemService) EstimatePrice(ctx context.Context, userID, id uint) (*models.Item, error) {
	item, err := s.GetByID(userID, id)
	if err != nil {
		return nil, err
	}
	if s.estimate == nil {
		return nil, response.NewServerError("price estimator is not configured")
	}

	price, err := s.estimate.EstimateItemPrice(ctx, item)
	if err != nil {
		return nil, response.NewServerError("price estimation failed: " + err.Error())
	}

	now := time.Now()
	updates := map[string]interface{}{
		"estimated_price":    price,
		"price_estimated_at": &now,
	}
	if err := s.db.Model(item).Updates(updates).Error; err != nil {
		return nil, err
	}
	item.EstimatedPrice = &price
	item.PriceEstimatedAt = &now
	return item, nil
}
