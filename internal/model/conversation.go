package model

import "time"

// Conversation is one question/answer exchange. Rows are only ever inserted
// or bulk-deleted per (user, chatbot) pair.
type Conversation struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index:idx_conversation_pair,priority:1" json:"userId"`
	ChatbotID uint      `gorm:"not null;index:idx_conversation_pair,priority:2" json:"chatbotId"`
	Question  string    `gorm:"type:text;not null" json:"question"`
	Answer    string    `gorm:"type:text;not null" json:"answer"`
	CreatedAt time.Time `gorm:"index" json:"createdAt"`
}
