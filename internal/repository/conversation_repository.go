package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"botdesk/internal/model"
	"botdesk/internal/repository/specification"
)

type ConversationRepository struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

func (r *ConversationRepository) Create(ctx context.Context, entry *model.Conversation) error {
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("create conversation failed: %w", err)
	}
	return nil
}

func (r *ConversationRepository) ListByUserAndChatbot(ctx context.Context, userID, chatbotID uint) ([]model.Conversation, error) {
	entries := make([]model.Conversation, 0)
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND chatbot_id = ?", userID, chatbotID).
		Order("created_at ASC, id ASC").
		Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("list conversations failed: %w", err)
	}
	return entries, nil
}

func (r *ConversationRepository) DeleteByUserAndChatbot(ctx context.Context, userID, chatbotID uint) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("user_id = ? AND chatbot_id = ?", userID, chatbotID).
		Delete(&model.Conversation{})
	if result.Error != nil {
		return 0, fmt.Errorf("delete conversations failed: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// Find returns matching entries newest first.
func (r *ConversationRepository) Find(ctx context.Context, specs ...specification.Specification) ([]model.Conversation, error) {
	entries := make([]model.Conversation, 0)
	query := specification.ApplyAll(r.db.WithContext(ctx).Model(&model.Conversation{}), specs...)
	if err := query.Order("conversations.created_at DESC, conversations.id DESC").Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("find conversations failed: %w", err)
	}
	return entries, nil
}

func (r *ConversationRepository) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := specification.ApplyAll(r.db.WithContext(ctx).Model(&model.Conversation{}), specs...)
	if err := query.Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count conversations failed: %w", err)
	}
	return count, nil
}

func (r *ConversationRepository) CountDistinctUsers(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := specification.ApplyAll(r.db.WithContext(ctx).Model(&model.Conversation{}), specs...)
	if err := query.Distinct("conversations.user_id").Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count distinct users failed: %w", err)
	}
	return count, nil
}

func (r *ConversationRepository) CountDistinctAnonymousUsers(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := specification.ApplyAll(r.db.WithContext(ctx).Model(&model.Conversation{}), specs...)
	if err := query.
		Joins("JOIN users ON users.id = conversations.user_id").
		Where("users.is_anonymous = ?", true).
		Distinct("conversations.user_id").
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count distinct anonymous users failed: %w", err)
	}
	return count, nil
}
