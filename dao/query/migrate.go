package query

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"

	"github.com/otalab/spaces/dao/model"
	"github.com/otalab/spaces/pkg/logutils"
)

// Migrate brings the schema up to date. The initial migration creates the
// full model set; later schema changes get their own migration entries.
// AutoMigrate inside each step keeps the unique indexes (user email, space
// slug, upload s3_key, space+user membership) in place.
func Migrate(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "202501010001_initial",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(
					&model.User{},
					&model.Space{},
					&model.SpaceMember{},
					&model.Upload{},
				)
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(
					&model.Upload{},
					&model.SpaceMember{},
					&model.Space{},
					&model.User{},
				)
			},
		},
	})
	if err := m.Migrate(); err != nil {
		return err
	}
	logutils.Log.Info("database migration finished")
	return nil
}
