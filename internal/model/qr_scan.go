package model

import "time"

type QRScan struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ChatbotID uint      `gorm:"not null;index" json:"chatbotId"`
	UserID    uint      `gorm:"not null;index" json:"userId"`
	ScannedAt time.Time `gorm:"not null;index" json:"scannedAt"`
}

func (QRScan) TableName() string {
	return "qr_scans"
}
