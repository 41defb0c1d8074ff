package models

import "gorm.io/gorm"

type TaskComment struct {
	gorm.Model

	TaskID    uint   `gorm:"not null;index"`
	Body      string `gorm:"not null"`
	CreatedBy uint   `gorm:"not null;index"`

	// Relationships
	Task   Task `gorm:"foreignKey:TaskID;constraint:OnUpdate:Cascade,OnDelete:CASCADE" json:"-"`
	Author User `gorm:"foreignKey:CreatedBy"`
}
