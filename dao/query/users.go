package query

import (
	"context"

	"github.com/otalab/spaces/dao/model"
)

func CreateUser(ctx context.Context, user *model.User) error {
	return GetDB().WithContext(ctx).Create(user).Error
}

func GetUserByID(ctx context.Context, id uint) (*model.User, error) {
	var user model.User
	if err := GetDB().WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	if err := GetDB().WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func ListUsers(ctx context.Context) ([]model.User, error) {
	var users []model.User
	err := GetDB().WithContext(ctx).Order("id").Find(&users).Error
	return users, err
}
