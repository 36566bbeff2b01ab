package repository

import (
	"context"

	"posterminal/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type UserRepository interface {
	Create(ctx context.Context, u *model.User) error
	FindByUsername(ctx context.Context, username string) (*model.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	SetPermission(ctx context.Context, userID uuid.UUID, key model.PermissionKey, grant model.Grant) error
}

type userRepo struct{ db *gorm.DB }

func NewUserRepository(db *gorm.DB) UserRepository { return &userRepo{db: db} }

func (r *userRepo) Create(ctx context.Context, u *model.User) error {
	return r.db.WithContext(ctx).Create(u).Error
}

// FindByUsername only returns active users, with their permission rows.
func (r *userRepo) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	var u model.User
	err := r.db.WithContext(ctx).
		Preload("Permissions").
		Where("username = ? AND active = ?", username, true).
		First(&u).Error
	return &u, err
}

func (r *userRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	var u model.User
	err := r.db.WithContext(ctx).Preload("Permissions").Where("id = ?", id).First(&u).Error
	return &u, err
}

func (r *userRepo) SetPermission(ctx context.Context, userID uuid.UUID, key model.PermissionKey, grant model.Grant) error {
	row := model.UserPermission{UserID: userID, FieldKey: string(key), Grant: grant}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "field_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"access"}),
	}).Create(&row).Error
}
