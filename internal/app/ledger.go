package app

import (
	"context"
	"strings"
	"time"

	"botdesk/internal/logger"
	"botdesk/internal/model"
	"botdesk/internal/repository"
	"botdesk/internal/repository/specification"
)

type TranscriptCache interface {
	Get(ctx context.Context, userID, chatbotID uint) ([]model.Conversation, bool, error)
	Set(ctx context.Context, userID, chatbotID uint, entries []model.Conversation) error
	Invalidate(ctx context.Context, userID, chatbotID uint) error
	IsDirty(ctx context.Context, userID, chatbotID uint) (bool, error)
}

// ConversationFilter selects ledger entries. A nil OwnerID means every chatbot.
type ConversationFilter struct {
	OwnerID       *uint
	ChatbotID     uint
	UserID        uint
	Search        string
	CreatedBefore *time.Time
}

func (f ConversationFilter) specs() []specification.Specification {
	var specs []specification.Specification
	if f.OwnerID != nil {
		specs = append(specs, specification.OwnedBy{OwnerID: *f.OwnerID})
	}
	if f.ChatbotID != 0 {
		specs = append(specs, specification.ByChatbot{ChatbotID: f.ChatbotID})
	}
	if f.UserID != 0 {
		specs = append(specs, specification.ByUser{UserID: f.UserID})
	}
	if q := strings.TrimSpace(f.Search); q != "" {
		specs = append(specs, specification.TextSearch{Query: q})
	}
	if f.CreatedBefore != nil {
		specs = append(specs, specification.CreatedBefore{At: *f.CreatedBefore})
	}
	return specs
}

type ConversationGroup struct {
	UserID        uint
	ChatbotID     uint
	LastCreatedAt time.Time
	Count         int64
	LastQuestion  string
}

// ConversationLedger is the append-only record of question/answer exchanges.
type ConversationLedger struct {
	conversations *repository.ConversationRepository
	chatbots      *repository.ChatbotRepository
	users         *repository.UserRepository
	cache         TranscriptCache
	log           logger.Logger
	now           func() time.Time
}

func NewConversationLedger(
	conversations *repository.ConversationRepository,
	chatbots *repository.ChatbotRepository,
	users *repository.UserRepository,
	cache TranscriptCache,
	log logger.Logger,
) *ConversationLedger {
	return &ConversationLedger{
		conversations: conversations,
		chatbots:      chatbots,
		users:         users,
		cache:         cache,
		log:           log,
		now:           time.Now,
	}
}

func (l *ConversationLedger) Record(ctx context.Context, userID, chatbotID uint, question, answer string) (*model.Conversation, error) {
	if strings.TrimSpace(question) == "" {
		return nil, ErrMessageEmpty
	}

	chatbot, err := l.chatbots.GetByID(ctx, chatbotID)
	if err != nil {
		return nil, err
	}
	if chatbot == nil || !chatbot.IsActive {
		return nil, ErrChatbotNotFound
	}
	user, err := l.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	l.invalidate(ctx, userID, chatbotID)
	entry := &model.Conversation{
		UserID:    userID,
		ChatbotID: chatbotID,
		Question:  question,
		Answer:    answer,
		CreatedAt: l.now(),
	}
	if err := l.conversations.Create(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// ListForUserAndChatbot returns the transcript of the pair, oldest first.
func (l *ConversationLedger) ListForUserAndChatbot(ctx context.Context, userID, chatbotID uint) ([]model.Conversation, error) {
	if userID == 0 || chatbotID == 0 {
		return nil, ErrInvalidInput
	}

	if l.cache != nil {
		dirty, err := l.cache.IsDirty(ctx, userID, chatbotID)
		if err == nil && !dirty {
			if cached, hit, cacheErr := l.cache.Get(ctx, userID, chatbotID); cacheErr == nil && hit {
				return cached, nil
			}
		}
	}

	entries, err := l.conversations.ListByUserAndChatbot(ctx, userID, chatbotID)
	if err != nil {
		return nil, err
	}
	if l.cache != nil {
		if dirty, dirtyErr := l.cache.IsDirty(ctx, userID, chatbotID); dirtyErr == nil && !dirty {
			_ = l.cache.Set(ctx, userID, chatbotID, entries)
		}
	}
	return entries, nil
}

func (l *ConversationLedger) DeleteAll(ctx context.Context, userID, chatbotID uint) (int64, error) {
	if userID == 0 || chatbotID == 0 {
		return 0, ErrInvalidInput
	}
	l.invalidate(ctx, userID, chatbotID)
	deleted, err := l.conversations.DeleteByUserAndChatbot(ctx, userID, chatbotID)
	if err != nil {
		return 0, err
	}
	if deleted == 0 {
		return 0, ErrConversationNotFound
	}
	return deleted, nil
}

// GroupByUserAndChatbot buckets matching entries per (user, chatbot). Each
// bucket is described by its latest entry by creation time, ties going to the
// higher id; buckets come newest activity first.
func (l *ConversationLedger) GroupByUserAndChatbot(ctx context.Context, filter ConversationFilter) ([]ConversationGroup, error) {
	entries, err := l.conversations.Find(ctx, filter.specs()...)
	if err != nil {
		return nil, err
	}

	groups := make([]ConversationGroup, 0)
	index := make(map[string]int)
	for _, entry := range entries {
		key := model.SessionOpenKey(entry.UserID, entry.ChatbotID)
		if i, ok := index[key]; ok {
			groups[i].Count++
			continue
		}
		// entries arrive newest first, so the first one seen is the latest
		index[key] = len(groups)
		groups = append(groups, ConversationGroup{
			UserID:        entry.UserID,
			ChatbotID:     entry.ChatbotID,
			LastCreatedAt: entry.CreatedAt,
			Count:         1,
			LastQuestion:  entry.Question,
		})
	}
	return groups, nil
}

// Entries returns matching entries newest first.
func (l *ConversationLedger) Entries(ctx context.Context, filter ConversationFilter) ([]model.Conversation, error) {
	return l.conversations.Find(ctx, filter.specs()...)
}

func (l *ConversationLedger) invalidate(ctx context.Context, userID, chatbotID uint) {
	if l.cache == nil {
		return
	}
	if err := l.cache.Invalidate(ctx, userID, chatbotID); err != nil {
		l.log.Warn("ledger", "invalidate transcript cache failed", map[string]interface{}{
			"error":      err,
			"user_id":    userID,
			"chatbot_id": chatbotID,
		})
	}
}
