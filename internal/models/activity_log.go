package models

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ActivityLog is append-only history. Entries deliberately carry no foreign
// key constraints to the entities they describe, so deleting a project or
// task leaves its trail intact.
type ActivityLog struct {
	gorm.Model

	ActorUserID uint           `gorm:"not null;index"`
	EntityType  string         `gorm:"not null"` // Task, Project, User, Tag, ...
	EntityID    uint           `gorm:"not null"`
	Action      string         `gorm:"not null"` // created, updated, deleted, status_changed, ...
	Description string         `gorm:"not null"`
	Meta        datatypes.JSON `gorm:"type:jsonb"`

	// Relationships
	Actor User `gorm:"foreignKey:ActorUserID"`
}
