package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Proton-105/stockroom-bot/internal/domain"
)

// SettingRepository is the key/value settings table.
type SettingRepository interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

type settingRepository struct{ db *gorm.DB }

func NewSettingRepository(db *gorm.DB) SettingRepository { return &settingRepository{db: db} }

func (r *settingRepository) Get(ctx context.Context, key string) (string, error) {
	var s domain.Setting
	if err := r.db.WithContext(ctx).Where(&domain.Setting{Key: key}).First(&s).Error; err != nil {
		return "", translate(err)
	}
	return s.Value, nil
}

// Set upserts key.
func (r *settingRepository) Set(ctx context.Context, key, value string) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&domain.Setting{Key: key, Value: value}).Error
	if err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	return nil
}
