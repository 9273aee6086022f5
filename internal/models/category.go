package models

import "github.com/google/uuid"

// Category groups products into a browsable tree.
type Category struct {
	BaseModel
	Name     string     `json:"name"`
	Slug     string     `gorm:"uniqueIndex" json:"slug"`
	ParentID *uuid.UUID `gorm:"type:uuid;index" json:"parent_id"`
	Parent   *Category  `json:"parent,omitempty"`
	IsActive bool       `gorm:"default:true" json:"is_active"`
	Products []Product  `json:"products,omitempty"`
}
