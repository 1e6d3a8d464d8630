package model

import "time"

const DefaultPrimaryColor = "#3b82f6"

type Chatbot struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	Slug         string     `gorm:"size:64;not null;uniqueIndex" json:"slug"`
	Name         string     `gorm:"size:128;not null" json:"name"`
	Description  string     `gorm:"type:text" json:"description"`
	LogoURL      string     `gorm:"size:512" json:"logoUrl"`
	PrimaryColor string     `gorm:"size:32" json:"primaryColor"`
	QRURL        string     `gorm:"type:mediumtext" json:"qrUrl"`
	IsActive     bool       `gorm:"not null;default:true;index" json:"isActive"`
	OwnerID      uint       `gorm:"not null;index" json:"ownerId"`
	Documents    []Document `gorm:"foreignKey:ChatbotID" json:"documents,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

func (c *Chatbot) Color() string {
	if c.PrimaryColor == "" {
		return DefaultPrimaryColor
	}
	return c.PrimaryColor
}
