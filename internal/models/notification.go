package models

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Notification rows are created only by the fan-out layer and mutated only
// by the recipient marking them read or deleting them.
type Notification struct {
	gorm.Model

	UserID  uint           `gorm:"not null;index"`
	Type    string         `gorm:"not null"`
	Title   string         `gorm:"not null"`
	Message string         `gorm:"not null"`
	Payload datatypes.JSON `gorm:"type:jsonb"`
	IsRead  bool           `gorm:"not null;default:false"`

	// Relationships
	User User `gorm:"foreignKey:UserID;constraint:OnUpdate:Cascade,OnDelete:CASCADE" json:"-"`
}
