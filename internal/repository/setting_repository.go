package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ahmetcoskunkizilkaya/tablebook/internal/models"
	"gorm.io/gorm"
)

type SettingRepository struct {
	db *gorm.DB
}

func NewSettingRepository(db *gorm.DB) *SettingRepository {
	return &SettingRepository{db: db}
}

func (r *SettingRepository) All(ctx context.Context) ([]models.Setting, error) {
	var out []models.Setting
	if err := r.db.WithContext(ctx).Order("key ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	return out, nil
}

func (r *SettingRepository) Get(ctx context.Context, key string) (*models.Setting, error) {
	var s models.Setting
	err := r.db.WithContext(ctx).Where("key = ?", key).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load setting %s: %w", key, err)
	}
	return &s, nil
}

// Upsert creates key or overwrites its value and type.
func (r *SettingRepository) Upsert(ctx context.Context, key, value, typ string) (*models.Setting, error) {
	existing, err := r.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		s := &models.Setting{Key: key, Value: value, Type: typ}
		if err := r.db.WithContext(ctx).Create(s).Error; err != nil {
			return nil, fmt.Errorf("create setting %s: %w", key, err)
		}
		return s, nil
	}
	if err != nil {
		return nil, err
	}

	existing.Value = value
	existing.Type = typ
	existing.UpdatedAt = time.Now()
	if err := r.db.WithContext(ctx).Save(existing).Error; err != nil {
		return nil, fmt.Errorf("update setting %s: %w", key, err)
	}
	return existing, nil
}

// CreateIfMissing inserts key only when no row exists. It reports whether a
// row was written.
func (r *SettingRepository) CreateIfMissing(ctx context.Context, key, value, typ string) (bool, error) {
	_, err := r.Get(ctx, key)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return false, err
	}
	if err := r.db.WithContext(ctx).Create(&models.Setting{Key: key, Value: value, Type: typ}).Error; err != nil {
		return false, fmt.Errorf("seed setting %s: %w", key, err)
	}
	return true, nil
}

func (r *SettingRepository) Delete(ctx context.Context, key string) error {
	result := r.db.WithContext(ctx).Where("key = ?", key).Delete(&models.Setting{})
	if result.Error != nil {
		return fmt.Errorf("delete setting %s: %w", key, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
