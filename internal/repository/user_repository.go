package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"recurring-planner/internal/model"
)

// UserRepository handles CRUD for users.
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// UpsertFromTelegram finds or creates a user by TelegramID and refreshes the profile fields.
func (r *UserRepository) UpsertFromTelegram(ctx context.Context, telegramID int64, firstName, username string) (model.User, error) {
	var user model.User
	db := r.db.WithContext(ctx)
	err := db.Where("telegram_id = ?", telegramID).First(&user).Error
	switch {
	case err == nil:
		if user.FirstName == firstName && user.Username == username {
			return user, nil
		}
		updates := map[string]any{
			"first_name": firstName,
			"username":   username,
		}
		if err := db.Model(&user).Updates(updates).Error; err != nil {
			return model.User{}, fmt.Errorf("update user: %w", err)
		}
		return user, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		user = model.User{
			TelegramID: telegramID,
			FirstName:  firstName,
			Username:   username,
		}
		if err := db.Create(&user).Error; err != nil {
			return model.User{}, fmt.Errorf("create user: %w", err)
		}
		return user, nil
	default:
		return model.User{}, fmt.Errorf("find user: %w", err)
	}
}

func (r *UserRepository) SetTimezone(ctx context.Context, userID uint, tz string) error {
	res := r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", userID).Update("timezone", tz)
	if res.Error != nil {
		return fmt.Errorf("set timezone: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("set timezone: %w", ErrNotFound)
	}
	return nil
}

func (r *UserRepository) ListAll(ctx context.Context) ([]model.User, error) {
	var users []model.User
	if err := r.db.WithContext(ctx).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}
