package models

import "gorm.io/gorm"

type Project struct {
	gorm.Model

	Name        string `gorm:"not null"`
	Description string
	IsActive    bool `gorm:"not null;default:true"`
	CreatedBy   uint `gorm:"not null;index"`

	// Relationships
	Creator           User                `gorm:"foreignKey:CreatedBy"`
	Tasks             []Task              `gorm:"foreignKey:ProjectID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
	Memberships       []ProjectMembership `gorm:"foreignKey:ProjectID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
	StatusDefinitions []StatusDefinition  `gorm:"foreignKey:ProjectID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
}
