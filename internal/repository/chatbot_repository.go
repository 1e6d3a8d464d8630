package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"botdesk/internal/model"
)

type ChatbotRepository struct {
	db *gorm.DB
}

func NewChatbotRepository(db *gorm.DB) *ChatbotRepository {
	return &ChatbotRepository{db: db}
}

func (r *ChatbotRepository) WithTx(tx *gorm.DB) *ChatbotRepository {
	return &ChatbotRepository{db: tx}
}

func (r *ChatbotRepository) Create(ctx context.Context, chatbot *model.Chatbot) error {
	if err := r.db.WithContext(ctx).Create(chatbot).Error; err != nil {
		return fmt.Errorf("create chatbot failed: %w", err)
	}
	return nil
}

func (r *ChatbotRepository) GetByID(ctx context.Context, id uint) (*model.Chatbot, error) {
	return r.first(r.db.WithContext(ctx).Where("id = ?", id))
}

func (r *ChatbotRepository) GetBySlug(ctx context.Context, slug string) (*model.Chatbot, error) {
	return r.first(r.db.WithContext(ctx).Where("slug = ?", slug))
}

func (r *ChatbotRepository) first(query *gorm.DB) (*model.Chatbot, error) {
	var chatbot model.Chatbot
	err := query.Preload("Documents", func(db *gorm.DB) *gorm.DB {
		return db.Order("id ASC")
	}).First(&chatbot).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("query chatbot failed: %w", err)
	}
	return &chatbot, nil
}

// ListByOwner returns chatbots with their documents; a nil owner lists all.
func (r *ChatbotRepository) ListByOwner(ctx context.Context, ownerID *uint) ([]model.Chatbot, error) {
	query := r.db.WithContext(ctx).Preload("Documents").Order("id ASC")
	if ownerID != nil {
		query = query.Where("owner_id = ?", *ownerID)
	}
	var chatbots []model.Chatbot
	if err := query.Find(&chatbots).Error; err != nil {
		return nil, fmt.Errorf("list chatbots failed: %w", err)
	}
	return chatbots, nil
}

func (r *ChatbotRepository) IDsByOwner(ctx context.Context, ownerID *uint) ([]uint, error) {
	query := r.db.WithContext(ctx).Model(&model.Chatbot{})
	if ownerID != nil {
		query = query.Where("owner_id = ?", *ownerID)
	}
	ids := make([]uint, 0)
	if err := query.Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("list chatbot ids failed: %w", err)
	}
	return ids, nil
}

func (r *ChatbotRepository) ListByIDs(ctx context.Context, ids []uint) ([]model.Chatbot, error) {
	var chatbots []model.Chatbot
	if len(ids) == 0 {
		return chatbots, nil
	}
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&chatbots).Error; err != nil {
		return nil, fmt.Errorf("list chatbots by ids failed: %w", err)
	}
	return chatbots, nil
}

func (r *ChatbotRepository) Updates(ctx context.Context, id uint, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Model(&model.Chatbot{}).Where("id = ?", id).Updates(fields).Error; err != nil {
		return fmt.Errorf("update chatbot failed: %w", err)
	}
	return nil
}
