package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"botdesk/internal/ai"
	"botdesk/internal/logger"
	"botdesk/internal/model"
	"botdesk/internal/repository"
)

const (
	FallbackAnswer = "Sorry, I encountered an error while processing your request."
	EmptyAnswer    = "No response from AI."
)

type Asker interface {
	Ask(ctx context.Context, chatbotID uint, question string) (string, error)
}

type SubmitInput struct {
	ChatbotRef string
	Message    string
	UserID     uint
	Principal  *Principal
}

type SubmitResult struct {
	ID        uint      `json:"id"`
	Content   string    `json:"content"`
	Sender    string    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
	UserID    uint      `json:"userId"`
	ChatbotID uint      `json:"chatbotId"`
	Degraded  bool      `json:"-"`
}

type PublicChatbot struct {
	ID           uint             `json:"id"`
	Slug         string           `json:"slug"`
	Name         string           `json:"name"`
	Description  string           `json:"description"`
	Logo         string           `json:"logo"`
	PrimaryColor string           `json:"primaryColor"`
	Documents    []model.Document `json:"documents"`
	UserID       uint             `json:"userId"`
}

// ChatGateway serves the unauthenticated chat widget.
type ChatGateway struct {
	chatbots   *repository.ChatbotRepository
	users      *repository.UserRepository
	scans      *repository.QRScanRepository
	tracker    *SessionTracker
	ledger     *ConversationLedger
	asker      Asker
	askTimeout time.Duration
	log        logger.Logger
	now        func() time.Time
}

func NewChatGateway(
	chatbots *repository.ChatbotRepository,
	users *repository.UserRepository,
	scans *repository.QRScanRepository,
	tracker *SessionTracker,
	ledger *ConversationLedger,
	asker Asker,
	askTimeout time.Duration,
	log logger.Logger,
) *ChatGateway {
	return &ChatGateway{
		chatbots:   chatbots,
		users:      users,
		scans:      scans,
		tracker:    tracker,
		ledger:     ledger,
		asker:      asker,
		askTimeout: askTimeout,
		log:        log,
		now:        time.Now,
	}
}

// Submit answers one visitor message. Upstream failures never fail the call:
// the visitor gets a fallback answer and the exchange is still recorded.
func (g *ChatGateway) Submit(ctx context.Context, input SubmitInput) (*SubmitResult, error) {
	chatbot, err := g.resolveChatbot(ctx, input.ChatbotRef)
	if err != nil {
		return nil, err
	}
	message := strings.TrimSpace(input.Message)
	if message == "" {
		return nil, ErrMessageEmpty
	}
	user, err := g.resolveUser(ctx, input.UserID, input.Principal)
	if err != nil {
		return nil, err
	}
	if _, err := g.tracker.EnsureOpen(ctx, user.ID, chatbot.ID); err != nil {
		return nil, err
	}

	answer, degraded := g.ask(ctx, chatbot.ID, message)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	recordCtx := context.WithoutCancel(ctx)
	// the ledger keeps what the visitor typed; only the upstream sees it trimmed
	entry, err := g.ledger.Record(recordCtx, user.ID, chatbot.ID, input.Message, answer)
	if err != nil {
		return nil, err
	}
	return &SubmitResult{
		ID:        entry.ID,
		Content:   answer,
		Sender:    "bot",
		Timestamp: entry.CreatedAt,
		UserID:    user.ID,
		ChatbotID: chatbot.ID,
		Degraded:  degraded,
	}, nil
}

func (g *ChatGateway) ask(ctx context.Context, chatbotID uint, message string) (string, bool) {
	askCtx, cancel := context.WithTimeout(ctx, g.askTimeout)
	defer cancel()

	answer, err := g.asker.Ask(askCtx, chatbotID, message)
	switch {
	case errors.Is(err, ai.ErrEmptyAnswer):
		return EmptyAnswer, true
	case err != nil:
		g.log.Warn("gateway", "ai upstream degraded", map[string]interface{}{
			"error":      err,
			"chatbot_id": chatbotID,
		})
		return FallbackAnswer, true
	case strings.TrimSpace(answer) == "":
		return EmptyAnswer, true
	}
	return answer, false
}

func (g *ChatGateway) EndSession(ctx context.Context, chatbotRef string, userID uint) error {
	if userID == 0 {
		return ErrInvalidInput
	}
	chatbot, err := g.resolveChatbot(ctx, chatbotRef)
	if err != nil {
		return err
	}
	return g.tracker.Close(ctx, userID, chatbot.ID)
}

func (g *ChatGateway) Transcript(ctx context.Context, chatbotRef string, userID uint) ([]model.Conversation, error) {
	if userID == 0 {
		return nil, ErrInvalidInput
	}
	chatbot, err := g.resolveChatbot(ctx, chatbotRef)
	if err != nil {
		return nil, err
	}
	return g.ledger.ListForUserAndChatbot(ctx, userID, chatbot.ID)
}

// OpenChatbot is hit when a visitor scans the QR code or opens the widget.
func (g *ChatGateway) OpenChatbot(ctx context.Context, chatbotRef string, principal *Principal) (*PublicChatbot, error) {
	chatbot, err := g.resolveChatbot(ctx, chatbotRef)
	if err != nil {
		return nil, err
	}
	user, err := g.resolveUser(ctx, 0, principal)
	if err != nil {
		return nil, err
	}

	scan := &model.QRScan{ChatbotID: chatbot.ID, UserID: user.ID, ScannedAt: g.now()}
	if err := g.scans.Create(ctx, scan); err != nil {
		g.log.Warn("gateway", "record qr scan failed", map[string]interface{}{
			"error":      err,
			"chatbot_id": chatbot.ID,
		})
	}

	documents := chatbot.Documents
	if documents == nil {
		documents = []model.Document{}
	}
	return &PublicChatbot{
		ID:           chatbot.ID,
		Slug:         chatbot.Slug,
		Name:         chatbot.Name,
		Description:  chatbot.Description,
		Logo:         chatbot.LogoURL,
		PrimaryColor: chatbot.Color(),
		Documents:    documents,
		UserID:       user.ID,
	}, nil
}

// resolveChatbot accepts a public slug or a numeric id. Inactive chatbots are
// reported as missing.
func (g *ChatGateway) resolveChatbot(ctx context.Context, ref string) (*model.Chatbot, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, ErrInvalidInput
	}
	chatbot, err := g.chatbots.GetBySlug(ctx, ref)
	if err != nil {
		return nil, err
	}
	if chatbot == nil {
		if id, parseErr := strconv.ParseUint(ref, 10, 64); parseErr == nil && id > 0 {
			chatbot, err = g.chatbots.GetByID(ctx, uint(id))
			if err != nil {
				return nil, err
			}
		}
	}
	if chatbot == nil || !chatbot.IsActive {
		return nil, ErrChatbotNotFound
	}
	return chatbot, nil
}

func (g *ChatGateway) resolveUser(ctx context.Context, userID uint, principal *Principal) (*model.User, error) {
	if userID == 0 && principal != nil {
		userID = principal.ID
	}
	if userID != 0 {
		user, err := g.users.GetByID(ctx, userID)
		if err != nil {
			return nil, err
		}
		if user == nil {
			return nil, ErrUserNotFound
		}
		return user, nil
	}

	user := &model.User{
		Name:        fmt.Sprintf("Anonymous_%d", g.now().UnixMilli()),
		Role:        model.RoleUser,
		IsAnonymous: true,
	}
	if err := g.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}
