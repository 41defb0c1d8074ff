package models

import (
	"time"

	"gorm.io/gorm"
)

type ProjectMembership struct {
	gorm.Model

	UserID        uint      `gorm:"not null;uniqueIndex:idx_user_project"`
	ProjectID     uint      `gorm:"not null;uniqueIndex:idx_user_project"`
	RoleInProject string    `gorm:"not null;default:MEMBER"` // MEMBER or LEAD
	JoinedAt      time.Time `gorm:"not null"`

	// Relationships
	User    User    `gorm:"foreignKey:UserID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
	Project Project `gorm:"foreignKey:ProjectID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
}
