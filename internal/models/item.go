package models

import (
	"time"

	"gorm.io/gorm"
)

// Inventory item types.
const (
	ItemTypeNeededSupply     = "needed_supply"
	ItemTypeOwnedResource    = "owned_resource"
	ItemTypeBorrowedOrRental = "borrowed_or_rental"
)

// Item is an inventory record, optionally attached to a project and/or a
// task. Access rules are symmetric to Task with AddedBy in place of the
// creator.
type Item struct {
	ID          uint     `gorm:"primaryKey" json:"id"`
	Name        string   `gorm:"size:200;not null" json:"name"`
	Description string   `gorm:"type:text" json:"description"`
	AddedBy     uint     `gorm:"index;not null" json:"added_by"`
	Adder       *User    `gorm:"foreignKey:AddedBy" json:"adder,omitempty"`
	ProjectID   *uint    `gorm:"index" json:"project_id"`
	Project     *Project `gorm:"foreignKey:ProjectID" json:"project,omitempty"`
	TaskID      *uint    `gorm:"index" json:"task_id"`
	Assignees   []uint   `gorm:"serializer:json" json:"assignees"`
	ItemType    string   `gorm:"size:50;not null;index" json:"item_type"`

	QuantityNeeded   int `gorm:"default:0" json:"quantity_needed"`
	QuantityOwned    int `gorm:"default:0" json:"quantity_owned"`
	QuantityBorrowed int `gorm:"default:0" json:"quantity_borrowed"`

	UnitPrice        float64        `gorm:"default:0" json:"unit_price"`
	EstimatedPrice   *float64       `json:"estimated_price"`
	PriceEstimatedAt *time.Time     `json:"price_estimated_at"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Item) TableName() string { return "items" }

// IsAssignee reports whether userID appears in the assignee list.
func (i *Item) IsAssignee(userID uint) bool {
	for _, id := range i.Assignees {
		if id == userID {
			return true
		}
	}
	return false
}

// ValidItemType reports whether t is a defined inventory item type.
func ValidItemType(t string) bool {
	switch t {
	case ItemTypeNeededSupply, ItemTypeOwnedResource, ItemTypeBorrowedOrRental:
		return true
	}
	return false
}
