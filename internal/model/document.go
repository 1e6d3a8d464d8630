package model

import "time"

type Document struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ChatbotID uint      `gorm:"not null;index" json:"chatbotId"`
	FileName  string    `gorm:"size:255;not null" json:"fileName"`
	FileType  string    `gorm:"size:32" json:"fileType"`
	Size      int64     `gorm:"not null" json:"size"`
	URL       string    `gorm:"size:1024;not null" json:"url"`
	ObjectKey string    `gorm:"size:512" json:"-"`
	CreatedAt time.Time `json:"createdAt"`
}
