package model

import (
	"time"

	"gorm.io/gorm"
)

// Upload is one stored firmware image. The row is written only after the
// completion phase has confirmed the object exists in the store; the unique
// index on S3Key makes a completed upload register at most once.
type Upload struct {
	gorm.Model
	SpaceID     uint      `gorm:"index;not null"`
	Filename    string    `gorm:"type:varchar(255);not null;comment:original filename"`
	S3Key       string    `gorm:"uniqueIndex;type:varchar(512);not null;comment:object-store key"`
	FileSize    int64     `gorm:"not null;comment:byte size"`
	ContentType string    `gorm:"type:varchar(100);not null"`
	MD5Hash     *string   `gorm:"type:varchar(32);comment:32 lowercase hex chars"`
	Description *string   `gorm:"type:varchar(1000)"`
	Changelog   *string   `gorm:"type:text"`
	Version     *string   `gorm:"type:varchar(50);comment:semantic version string"`
	UploadedBy  uint      `gorm:"not null;comment:uploader user id"`
	UploadedAt  time.Time `gorm:"index;not null"`
}
