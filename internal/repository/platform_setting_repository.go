package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"botdesk/internal/model"
)

type PlatformSettingRepository struct {
	db *gorm.DB
}

func NewPlatformSettingRepository(db *gorm.DB) *PlatformSettingRepository {
	return &PlatformSettingRepository{db: db}
}

// Get returns the single settings row, creating an empty one on first read.
func (r *PlatformSettingRepository) Get(ctx context.Context) (*model.PlatformSetting, error) {
	setting := model.PlatformSetting{ID: model.PlatformSettingID}
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&setting).Error; err != nil {
		return nil, fmt.Errorf("init platform setting failed: %w", err)
	}
	if err := r.db.WithContext(ctx).First(&setting, model.PlatformSettingID).Error; err != nil {
		return nil, fmt.Errorf("get platform setting failed: %w", err)
	}
	return &setting, nil
}

func (r *PlatformSettingRepository) Save(ctx context.Context, setting *model.PlatformSetting) error {
	setting.ID = model.PlatformSettingID
	if err := r.db.WithContext(ctx).Save(setting).Error; err != nil {
		return fmt.Errorf("save platform setting failed: %w", err)
	}
	return nil
}
