package models

import "gorm.io/gorm"

type TaskAttachment struct {
	gorm.Model

	TaskID           uint   `gorm:"not null;index"`
	Filename         string `gorm:"not null"`
	OriginalFilename string `gorm:"not null"`
	Path             string `gorm:"not null"`
	Size             int64  `gorm:"not null"`
	MimeType         string `gorm:"not null"`
	UploadedBy       uint   `gorm:"not null;index"`

	// Relationships
	Task     Task `gorm:"foreignKey:TaskID;constraint:OnUpdate:Cascade,OnDelete:CASCADE" json:"-"`
	Uploader User `gorm:"foreignKey:UploadedBy"`
}
