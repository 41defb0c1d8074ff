package models

import "gorm.io/gorm"

type User struct {
	gorm.Model

	FullName            string `gorm:"not null"`
	Email               string `gorm:"uniqueIndex;not null"`
	Username            string `gorm:"uniqueIndex;not null"`
	PasswordHash        string `gorm:"not null"`
	Role                string `gorm:"not null;default:STANDARD"` // PRIVILEGED or STANDARD
	IsActive            bool   `gorm:"not null;default:true"`
	ForcePasswordChange bool   `gorm:"not null;default:false"`

	// Relationships
	CreatedProjects    []Project           `gorm:"foreignKey:CreatedBy"`
	AssignedTasks      []Task              `gorm:"foreignKey:AssigneeID"`
	CreatedTasks       []Task              `gorm:"foreignKey:CreatedBy"`
	ProjectMemberships []ProjectMembership `gorm:"foreignKey:UserID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
	Comments           []TaskComment       `gorm:"foreignKey:CreatedBy"`
	Notifications      []Notification      `gorm:"foreignKey:UserID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
}
