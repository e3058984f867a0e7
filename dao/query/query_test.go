package query

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/otalab/spaces/dao/model"
)

// newTestDB swaps the package singleton for an in-memory sqlite database.
// One open connection, or each pooled connection would get its own empty
// :memory: store.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&model.User{},
		&model.Space{},
		&model.SpaceMember{},
		&model.Upload{},
	))
	SetDB(db)
	return db
}

func seedUser(t *testing.T, db *gorm.DB, name, email string) *model.User {
	t.Helper()
	user := &model.User{
		Name:     name,
		Email:    email,
		Password: "x",
		Role:     model.RoleUser,
		Status:   model.StatusActive,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func seedSpace(t *testing.T, db *gorm.DB, slug string, active bool) *model.Space {
	t.Helper()
	space := &model.Space{
		Name:     slug,
		Slug:     slug,
		S3Prefix: "uploads/" + slug + "/",
		IsActive: active,
	}
	require.NoError(t, db.Create(space).Error)
	return space
}

func seedMember(t *testing.T, db *gorm.DB, spaceID, userID uint, role model.SpaceRole) {
	t.Helper()
	require.NoError(t, db.Create(&model.SpaceMember{
		SpaceID:  spaceID,
		UserID:   userID,
		Role:     role,
		JoinedAt: time.Now(),
	}).Error)
}

func seedUpload(t *testing.T, db *gorm.DB, spaceID, userID uint, filename, key string, size int64, at time.Time) *model.Upload {
	t.Helper()
	upload := &model.Upload{
		SpaceID:     spaceID,
		Filename:    filename,
		S3Key:       key,
		FileSize:    size,
		ContentType: "application/zip",
		UploadedBy:  userID,
		UploadedAt:  at,
	}
	require.NoError(t, db.Create(upload).Error)
	return upload
}
