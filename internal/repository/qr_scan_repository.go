package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"botdesk/internal/model"
)

type QRScanRepository struct {
	db *gorm.DB
}

func NewQRScanRepository(db *gorm.DB) *QRScanRepository {
	return &QRScanRepository{db: db}
}

func (r *QRScanRepository) Create(ctx context.Context, scan *model.QRScan) error {
	if err := r.db.WithContext(ctx).Create(scan).Error; err != nil {
		return fmt.Errorf("create qr scan failed: %w", err)
	}
	return nil
}

// Count counts scans of the chatbots, optionally only those before a cutoff.
func (r *QRScanRepository) Count(ctx context.Context, chatbotIDs []uint, before *time.Time) (int64, error) {
	query := r.db.WithContext(ctx).Model(&model.QRScan{}).Where("chatbot_id IN ?", chatbotIDs)
	if before != nil {
		query = query.Where("scanned_at < ?", *before)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count qr scans failed: %w", err)
	}
	return count, nil
}
