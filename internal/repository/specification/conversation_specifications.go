package specification

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

type ByUser struct {
	UserID uint
}

func (s ByUser) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("conversations.user_id = ?", s.UserID)
}

type ByChatbot struct {
	ChatbotID uint
}

func (s ByChatbot) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("conversations.chatbot_id = ?", s.ChatbotID)
}

type ByChatbots struct {
	ChatbotIDs []uint
}

func (s ByChatbots) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("conversations.chatbot_id IN ?", s.ChatbotIDs)
}

// OwnedBy keeps entries whose chatbot belongs to the owner.
type OwnedBy struct {
	OwnerID uint
}

func (s OwnedBy) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("conversations.chatbot_id IN (SELECT id FROM chatbots WHERE owner_id = ?)", s.OwnerID)
}

// TextSearch is a case-insensitive substring match over question or answer.
type TextSearch struct {
	Query string
}

func (s TextSearch) Apply(db *gorm.DB) *gorm.DB {
	pattern := "%" + escapeLike(strings.ToLower(s.Query)) + "%"
	return db.Where(
		"(LOWER(conversations.question) LIKE ? ESCAPE '!' OR LOWER(conversations.answer) LIKE ? ESCAPE '!')",
		pattern, pattern,
	)
}

type CreatedBefore struct {
	At time.Time
}

func (s CreatedBefore) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("conversations.created_at < ?", s.At)
}

type CreatedSince struct {
	At time.Time
}

func (s CreatedSince) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("conversations.created_at >= ?", s.At)
}

func escapeLike(s string) string {
	return strings.NewReplacer("!", "!!", "%", "!%", "_", "!_").Replace(s)
}
