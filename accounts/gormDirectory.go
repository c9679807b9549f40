package accounts

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"helpdesk/models"
)

// GormDirectory reads accounts from the shared users table.
type GormDirectory struct {
	db *gorm.DB
}

func NewGormDirectory(db *gorm.DB) *GormDirectory {
	return &GormDirectory{db: db}
}

func (d *GormDirectory) Get(ctx context.Context, id uint) (Account, error) {
	var user models.User
	err := d.db.WithContext(ctx).
		Where("id = ? AND is_deleted = false", id).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Account{}, ErrAccountNotFound
	}
	if err != nil {
		return Account{}, fmt.Errorf("load account %d: %w", id, err)
	}
	return Account{
		ID:        user.ID,
		Name:      user.Name,
		Email:     user.Email,
		Role:      user.Role,
		Suspended: user.IsBlocked,
	}, nil
}

func (d *GormDirectory) AgentIDs(ctx context.Context) ([]uint, error) {
	var ids []uint
	err := d.db.WithContext(ctx).
		Model(&models.User{}).
		Where("role IN ? AND is_blocked = false AND is_deleted = false", []string{models.RoleAgent, models.RoleAdmin}).
		Order("id").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	return ids, nil
}
