package model

import (
	"fmt"
	"time"
)

type Session struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	UserID    uint       `gorm:"not null;index" json:"userId"`
	ChatbotID uint       `gorm:"not null;index" json:"chatbotId"`
	// OpenKey is set while the session is open and cleared on close; the
	// unique index keeps at most one open session per pair.
	OpenKey   *string    `gorm:"size:64;uniqueIndex" json:"-"`
	StartedAt time.Time  `gorm:"not null;index" json:"startedAt"`
	EndedAt   *time.Time `gorm:"index" json:"endedAt"`
}

func (s *Session) IsOpen() bool {
	return s.EndedAt == nil
}

func SessionOpenKey(userID, chatbotID uint) string {
	return fmt.Sprintf("%d:%d", userID, chatbotID)
}
