package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"botdesk/internal/model"
)

type SessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// EnsureOpen inserts an open session for the pair unless one already exists
// and returns the open row. created reports whether this call inserted it.
func (r *SessionRepository) EnsureOpen(ctx context.Context, userID, chatbotID uint, now time.Time) (*model.Session, bool, error) {
	key := model.SessionOpenKey(userID, chatbotID)
	session := &model.Session{
		UserID:    userID,
		ChatbotID: chatbotID,
		OpenKey:   &key,
		StartedAt: now,
	}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "open_key"}}, DoNothing: true}).
		Create(session)
	if result.Error != nil {
		return nil, false, fmt.Errorf("open session failed: %w", result.Error)
	}
	if result.RowsAffected == 1 {
		return session, true, nil
	}

	open, err := r.GetOpen(ctx, userID, chatbotID)
	if err != nil {
		return nil, false, err
	}
	if open == nil {
		// closed between the conflicting insert and the read
		return nil, false, fmt.Errorf("open session failed: concurrent close for %s", key)
	}
	return open, false, nil
}

func (r *SessionRepository) GetOpen(ctx context.Context, userID, chatbotID uint) (*model.Session, error) {
	var session model.Session
	err := r.db.WithContext(ctx).
		Where("open_key = ?", model.SessionOpenKey(userID, chatbotID)).
		First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get open session failed: %w", err)
	}
	return &session, nil
}

// CloseOpen ends the open session of the pair and reports how many rows changed.
func (r *SessionRepository) CloseOpen(ctx context.Context, userID, chatbotID uint, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&model.Session{}).
		Where("open_key = ?", model.SessionOpenKey(userID, chatbotID)).
		Updates(map[string]interface{}{
			"ended_at": now,
			"open_key": gorm.Expr("NULL"),
		})
	if result.Error != nil {
		return 0, fmt.Errorf("close session failed: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (r *SessionRepository) CountOpen(ctx context.Context, userID, chatbotID uint) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.Session{}).
		Where("user_id = ? AND chatbot_id = ? AND ended_at IS NULL", userID, chatbotID).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count open sessions failed: %w", err)
	}
	return count, nil
}

// CountOpenStarted counts open sessions of the chatbots started in [from, to).
// A nil bound is left open.
func (r *SessionRepository) CountOpenStarted(ctx context.Context, chatbotIDs []uint, from, to *time.Time) (int64, error) {
	query := r.db.WithContext(ctx).Model(&model.Session{}).
		Where("chatbot_id IN ? AND ended_at IS NULL", chatbotIDs)
	if from != nil {
		query = query.Where("started_at >= ?", *from)
	}
	if to != nil {
		query = query.Where("started_at < ?", *to)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count active sessions failed: %w", err)
	}
	return count, nil
}

// OpenKeys returns the open-key set for the given users and chatbots.
func (r *SessionRepository) OpenKeys(ctx context.Context, userIDs, chatbotIDs []uint) (map[string]struct{}, error) {
	keys := make(map[string]struct{})
	if len(userIDs) == 0 || len(chatbotIDs) == 0 {
		return keys, nil
	}
	var raw []string
	if err := r.db.WithContext(ctx).Model(&model.Session{}).
		Where("user_id IN ? AND chatbot_id IN ? AND open_key IS NOT NULL", userIDs, chatbotIDs).
		Pluck("open_key", &raw).Error; err != nil {
		return nil, fmt.Errorf("list open sessions failed: %w", err)
	}
	for _, k := range raw {
		keys[k] = struct{}{}
	}
	return keys, nil
}
