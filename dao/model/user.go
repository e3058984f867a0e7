package model

import (
	"gorm.io/gorm"
)

// User is the basic entity of the system.
type User struct {
	gorm.Model
	Name     string `gorm:"type:varchar(100);not null;comment:display name"`
	Email    string `gorm:"uniqueIndex;type:varchar(255);not null;comment:login email"`
	Password string `gorm:"type:varchar(128);not null;comment:bcrypt hash"`
	Role     Role   `gorm:"type:smallint;not null;default:2;comment:platform role (guest, user, admin)"`
	Status   Status `gorm:"type:smallint;not null;default:2;comment:user status"`

	Memberships []SpaceMember
}
