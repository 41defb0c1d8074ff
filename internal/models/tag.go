package models

import "gorm.io/gorm"

// Tag is shared across projects; deleting a task never deletes its tags.
type Tag struct {
	gorm.Model

	Name  string `gorm:"uniqueIndex;not null"`
	Color string `gorm:"default:#6B7280"`

	// Relationships
	Tasks []Task `gorm:"many2many:task_tags"`
}
