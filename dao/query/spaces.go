package query

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/otalab/spaces/dao/model"
)

// SpaceWithRole is a space row augmented with the caller's role and the
// aggregate stats the portal shows per tenant.
type SpaceWithRole struct {
	Space       model.Space
	Role        model.SpaceRole
	MemberCount int64
	FileCount   int64
	TotalSize   int64
}

// GetSpaceBySlug resolves an active space. Deactivated spaces are invisible
// to every request path, so a deactivated slug reads as not found.
func GetSpaceBySlug(ctx context.Context, slug string) (*model.Space, error) {
	var space model.Space
	err := GetDB().WithContext(ctx).
		Where("slug = ? AND is_active = ?", slug, true).
		First(&space).Error
	if err != nil {
		return nil, err
	}
	return &space, nil
}

// GetSpaceByID fetches a space regardless of the active flag; the admin
// surface needs to see deactivated spaces to reactivate them.
func GetSpaceByID(ctx context.Context, id uint) (*model.Space, error) {
	var space model.Space
	if err := GetDB().WithContext(ctx).First(&space, id).Error; err != nil {
		return nil, err
	}
	return &space, nil
}

// CreateSpace inserts the space and seeds the initial owner membership in
// one transaction, so a space never exists without an owner.
func CreateSpace(ctx context.Context, space *model.Space, ownerID uint) error {
	return GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(space).Error; err != nil {
			return err
		}
		return tx.Create(&model.SpaceMember{
			SpaceID:  space.ID,
			UserID:   ownerID,
			Role:     model.SpaceRoleOwner,
			JoinedAt: time.Now(),
		}).Error
	})
}

func SaveSpace(ctx context.Context, space *model.Space) error {
	return GetDB().WithContext(ctx).Save(space).Error
}

// ListUserSpaces returns the active spaces the user is a member of, with
// the user's role and the member/file/size aggregates.
func ListUserSpaces(ctx context.Context, userID uint) ([]SpaceWithRole, error) {
	db := GetDB().WithContext(ctx)

	var memberships []model.SpaceMember
	if err := db.Where("user_id = ?", userID).Find(&memberships).Error; err != nil {
		return nil, err
	}

	result := make([]SpaceWithRole, 0, len(memberships))
	for i := range memberships {
		var space model.Space
		err := db.Where("id = ? AND is_active = ?", memberships[i].SpaceID, true).First(&space).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		stats, err := GetSpaceStats(ctx, space.ID)
		if err != nil {
			return nil, err
		}
		result = append(result, SpaceWithRole{
			Space:       space,
			Role:        memberships[i].Role,
			MemberCount: stats.MemberCount,
			FileCount:   stats.FileCount,
			TotalSize:   stats.TotalSize,
		})
	}
	return result, nil
}

type SpaceStats struct {
	MemberCount int64
	FileCount   int64
	TotalSize   int64
}

func GetSpaceStats(ctx context.Context, spaceID uint) (SpaceStats, error) {
	db := GetDB().WithContext(ctx)
	var stats SpaceStats

	if err := db.Model(&model.SpaceMember{}).
		Where("space_id = ?", spaceID).
		Count(&stats.MemberCount).Error; err != nil {
		return stats, err
	}
	if err := db.Model(&model.Upload{}).
		Where("space_id = ?", spaceID).
		Count(&stats.FileCount).Error; err != nil {
		return stats, err
	}
	err := db.Model(&model.Upload{}).
		Where("space_id = ?", spaceID).
		Select("coalesce(sum(file_size), 0)").
		Scan(&stats.TotalSize).Error
	return stats, err
}

// HasSpaceAccess reports whether the user holds a membership in an active
// space with the given slug. No membership row denies (fail closed).
func HasSpaceAccess(ctx context.Context, userID uint, slug string) (bool, error) {
	var count int64
	err := GetDB().WithContext(ctx).Model(&model.SpaceMember{}).
		Joins("JOIN spaces ON spaces.id = space_members.space_id").
		Where("space_members.user_id = ? AND spaces.slug = ? AND spaces.is_active = ?", userID, slug, true).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetUserSpaceRole returns the user's role in the space, or "" when the
// user is not a member.
func GetUserSpaceRole(ctx context.Context, userID, spaceID uint) (model.SpaceRole, error) {
	var member model.SpaceMember
	err := GetDB().WithContext(ctx).
		Where("space_id = ? AND user_id = ?", spaceID, userID).
		First(&member).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return member.Role, nil
}

// HasSpacePermission answers "can user U do action A in space S". It is the
// single decision point every handler goes through.
func HasSpacePermission(ctx context.Context, spaceID, userID uint, action model.Action) (bool, error) {
	role, err := GetUserSpaceRole(ctx, userID, spaceID)
	if err != nil {
		return false, err
	}
	return role.Can(action), nil
}
