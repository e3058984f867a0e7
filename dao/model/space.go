package model

import (
	"time"

	"gorm.io/gorm"
)

// Space is a tenant: a partner team with its own member list and its own
// object-store key prefix. Spaces are deactivated via IsActive, never
// hard-deleted.
type Space struct {
	gorm.Model
	Name        string  `gorm:"type:varchar(100);not null;comment:human name"`
	Slug        string  `gorm:"uniqueIndex;type:varchar(50);not null;comment:URL-safe identifier"`
	Description *string `gorm:"type:varchar(500);comment:free-text description"`
	S3Prefix    string  `gorm:"type:varchar(100);not null;comment:object-store key prefix (uploads/{slug})"`
	IsActive    bool    `gorm:"not null;default:true"`

	Members []SpaceMember
	Uploads []Upload
}

// SpaceMember associates a user with a space. Unique per (space, user).
type SpaceMember struct {
	gorm.Model
	SpaceID  uint      `gorm:"uniqueIndex:idx_space_user;not null"`
	UserID   uint      `gorm:"uniqueIndex:idx_space_user;not null"`
	Role     SpaceRole `gorm:"type:varchar(32);not null;default:member"`
	JoinedAt time.Time `gorm:"not null"`
}
