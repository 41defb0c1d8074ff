package models

import "gorm.io/gorm"

// StatusDefinition is one column of a project's board. Task.Status must
// always match the Name of one of the owning project's definitions.
type StatusDefinition struct {
	gorm.Model

	ProjectID   uint   `gorm:"not null;index"`
	Name        string `gorm:"not null"`
	DisplayName string `gorm:"not null"`
	OrderIndex  int    `gorm:"not null"`
	WIPLimit    *int   `gorm:"column:wip_limit"`
	Color       string `gorm:"default:#6B7280"`

	// Relationships
	Project Project `gorm:"foreignKey:ProjectID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
}
