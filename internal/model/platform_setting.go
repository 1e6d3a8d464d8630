package model

import "time"

const PlatformSettingID uint = 1

type PlatformSetting struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	Name      string    `gorm:"size:128" json:"name"`
	LogoURL   string    `gorm:"size:1024" json:"logoUrl"`
	LogoKey   string    `gorm:"size:512" json:"-"`
	UpdatedAt time.Time `json:"updatedAt"`
}
