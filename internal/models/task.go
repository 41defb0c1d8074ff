package models

import (
	"time"

	"gorm.io/gorm"
)

type Task struct {
	gorm.Model

	ProjectID      uint   `gorm:"not null;index"`
	Title          string `gorm:"not null"`
	Description    string
	Status         string `gorm:"not null;default:ToDo"`
	Priority       string `gorm:"not null;default:Med"` // Low, Med, High
	AssigneeID     *uint  `gorm:"index"`
	EstimatedHours *float64
	DueDate        *time.Time
	CreatedBy      uint `gorm:"not null;index"`

	// Relationships
	Project     Project          `gorm:"foreignKey:ProjectID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
	Assignee    *User            `gorm:"foreignKey:AssigneeID"`
	Creator     User             `gorm:"foreignKey:CreatedBy"`
	Comments    []TaskComment    `gorm:"foreignKey:TaskID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
	Attachments []TaskAttachment `gorm:"foreignKey:TaskID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
	Tags        []Tag            `gorm:"many2many:task_tags"`
}

// IsOverdue reports whether the task is past its due date and not finished.
func (t *Task) IsOverdue() bool {
	if t.DueDate == nil || t.Status == "Done" {
		return false
	}
	return time.Now().After(*t.DueDate)
}
