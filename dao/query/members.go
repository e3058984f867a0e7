package query

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/otalab/spaces/dao/model"
)

// MemberWithUser carries the membership row plus the member's display
// identity so API responses are self-contained.
type MemberWithUser struct {
	Member model.SpaceMember
	Name   string
	Email  string
}

func ListSpaceMembers(ctx context.Context, spaceID uint) ([]MemberWithUser, error) {
	db := GetDB().WithContext(ctx)
	var members []model.SpaceMember
	if err := db.Where("space_id = ?", spaceID).Order("joined_at").Find(&members).Error; err != nil {
		return nil, err
	}
	result := make([]MemberWithUser, 0, len(members))
	for i := range members {
		var user model.User
		if err := db.First(&user, members[i].UserID).Error; err != nil {
			return nil, err
		}
		result = append(result, MemberWithUser{
			Member: members[i],
			Name:   user.Name,
			Email:  user.Email,
		})
	}
	return result, nil
}

func GetSpaceMember(ctx context.Context, spaceID, userID uint) (*model.SpaceMember, error) {
	var member model.SpaceMember
	err := GetDB().WithContext(ctx).
		Where("space_id = ? AND user_id = ?", spaceID, userID).
		First(&member).Error
	if err != nil {
		return nil, err
	}
	return &member, nil
}

func AddSpaceMember(ctx context.Context, spaceID, userID uint, role model.SpaceRole) (*model.SpaceMember, error) {
	member := model.SpaceMember{
		SpaceID:  spaceID,
		UserID:   userID,
		Role:     role,
		JoinedAt: time.Now(),
	}
	if err := GetDB().WithContext(ctx).Create(&member).Error; err != nil {
		return nil, err
	}
	return &member, nil
}

// ErrLastOwner guards the invariant that every space keeps at least one
// owner on its member list.
var ErrLastOwner = errors.New("space must keep at least one owner")

// UpdateSpaceMemberRole changes a member's role. Demoting the only owner is
// refused.
func UpdateSpaceMemberRole(ctx context.Context, spaceID, userID uint, role model.SpaceRole) (*model.SpaceMember, error) {
	db := GetDB().WithContext(ctx)
	var member *model.SpaceMember
	err := db.Transaction(func(tx *gorm.DB) error {
		var m model.SpaceMember
		if err := tx.Where("space_id = ? AND user_id = ?", spaceID, userID).First(&m).Error; err != nil {
			return err
		}
		if m.Role == model.SpaceRoleOwner && role != model.SpaceRoleOwner {
			count, err := countOwners(tx, spaceID)
			if err != nil {
				return err
			}
			if count <= 1 {
				return ErrLastOwner
			}
		}
		m.Role = role
		if err := tx.Save(&m).Error; err != nil {
			return err
		}
		member = &m
		return nil
	})
	return member, err
}

// RemoveSpaceMember revokes a membership. Removing the only owner is
// refused.
func RemoveSpaceMember(ctx context.Context, spaceID, userID uint) error {
	db := GetDB().WithContext(ctx)
	return db.Transaction(func(tx *gorm.DB) error {
		var m model.SpaceMember
		if err := tx.Where("space_id = ? AND user_id = ?", spaceID, userID).First(&m).Error; err != nil {
			return err
		}
		if m.Role == model.SpaceRoleOwner {
			count, err := countOwners(tx, spaceID)
			if err != nil {
				return err
			}
			if count <= 1 {
				return ErrLastOwner
			}
		}
		return tx.Delete(&m).Error
	})
}

func countOwners(tx *gorm.DB, spaceID uint) (int64, error) {
	var count int64
	err := tx.Model(&model.SpaceMember{}).
		Where("space_id = ? AND role = ?", spaceID, model.SpaceRoleOwner).
		Count(&count).Error
	return count, err
}
