package app

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"botdesk/internal/logger"
	"botdesk/internal/model"
	"botdesk/internal/pkg/qrcode"
	"botdesk/internal/repository"
)

type CreateChatbotInput struct {
	Name         string
	Description  string
	PrimaryColor string
	LogoURL      string
	Logo         *Upload
	Documents    []Upload
}

// UpdateChatbotInput changes only the non-nil fields.
type UpdateChatbotInput struct {
	Name         *string
	Description  *string
	PrimaryColor *string
	LogoURL      *string
	IsActive     *bool
	Logo         *Upload
	Documents    []Upload
}

type ChatbotView struct {
	ID             uint             `json:"id"`
	Slug           string           `json:"slug"`
	Name           string           `json:"name"`
	Description    string           `json:"description"`
	Logo           string           `json:"logo"`
	PrimaryColor   string           `json:"primaryColor"`
	QRCodeURL      string           `json:"qrCodeUrl"`
	ChatbotURL     string           `json:"chatbotUrl"`
	IsActive       bool             `json:"isActive"`
	OwnerID        uint             `json:"ownerId"`
	DocumentsCount int              `json:"documentsCount"`
	Documents      []model.Document `json:"documents"`
	CreatedAt      time.Time        `json:"createdAt"`
	UpdatedAt      time.Time        `json:"updatedAt"`
}

type QRCodeView struct {
	ID         uint   `json:"id"`
	Name       string `json:"name"`
	Slug       string `json:"slug"`
	QRCodeURL  string `json:"qrCodeUrl"`
	ChatbotURL string `json:"chatbotUrl"`
	IsActive   bool   `json:"isActive"`
}

type ChatbotService struct {
	db            *gorm.DB
	chatbots      *repository.ChatbotRepository
	documents     *repository.DocumentRepository
	uploader      objectUploader
	publisher     IndexJobPublisher
	publicBaseURL string
	log           logger.Logger
	newSlug       func() string
}

func NewChatbotService(
	db *gorm.DB,
	chatbots *repository.ChatbotRepository,
	documents *repository.DocumentRepository,
	store ObjectStore,
	publisher IndexJobPublisher,
	publicBaseURL string,
	log logger.Logger,
) *ChatbotService {
	return &ChatbotService{
		db:            db,
		chatbots:      chatbots,
		documents:     documents,
		uploader:      objectUploader{store: store, log: log, now: time.Now},
		publisher:     publisher,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		log:           log,
		newSlug:       uuid.NewString,
	}
}

// ChatbotURL is where the QR code of a chatbot points.
func (s *ChatbotService) ChatbotURL(slug string) string {
	return s.publicBaseURL + "/c/" + slug
}

func (s *ChatbotService) Create(ctx context.Context, principal Principal, input CreateChatbotInput) (*ChatbotView, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, ErrInvalidInput
	}
	if err := validateChatbotUploads(input.Logo, input.Documents); err != nil {
		return nil, err
	}

	chatbot := &model.Chatbot{
		Slug:         s.newSlug(),
		Name:         name,
		Description:  strings.TrimSpace(input.Description),
		LogoURL:      strings.TrimSpace(input.LogoURL),
		PrimaryColor: strings.TrimSpace(input.PrimaryColor),
		IsActive:     true,
		OwnerID:      principal.ID,
	}
	qr, err := qrcode.DataURL(s.ChatbotURL(chatbot.Slug))
	if err != nil {
		return nil, err
	}
	chatbot.QRURL = qr

	var stored []storedObject
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		chatbots := s.chatbots.WithTx(tx)
		if err := chatbots.Create(ctx, chatbot); err != nil {
			return err
		}
		var err error
		stored, err = s.attach(ctx, tx, chatbot, input.Logo, input.Documents)
		return err
	})
	if err != nil {
		s.uploader.discard(context.WithoutCancel(ctx), stored)
		return nil, err
	}

	if len(input.Documents) > 0 {
		enqueueIndex(ctx, s.publisher, s.log, chatbot.ID, model.IndexJobProcess)
	}
	s.log.Info("chatbot", "chatbot created", map[string]interface{}{
		"chatbot_id": chatbot.ID,
		"owner_id":   principal.ID,
		"documents":  len(input.Documents),
	})
	return s.view(ctx, chatbot.ID)
}

func (s *ChatbotService) Update(ctx context.Context, principal Principal, id uint, input UpdateChatbotInput) (*ChatbotView, error) {
	chatbot, err := s.owned(ctx, principal, id)
	if err != nil {
		return nil, err
	}
	if input.Name != nil && strings.TrimSpace(*input.Name) == "" {
		return nil, ErrInvalidInput
	}
	if err := validateChatbotUploads(input.Logo, input.Documents); err != nil {
		return nil, err
	}

	fields := map[string]interface{}{}
	if input.Name != nil {
		chatbot.Name = strings.TrimSpace(*input.Name)
		fields["name"] = chatbot.Name
	}
	if input.Description != nil {
		fields["description"] = strings.TrimSpace(*input.Description)
	}
	if input.PrimaryColor != nil {
		fields["primary_color"] = strings.TrimSpace(*input.PrimaryColor)
	}
	if input.LogoURL != nil {
		fields["logo_url"] = strings.TrimSpace(*input.LogoURL)
	}
	if input.IsActive != nil {
		fields["is_active"] = *input.IsActive
	}

	var stored []storedObject
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.chatbots.WithTx(tx).Updates(ctx, id, fields); err != nil {
			return err
		}
		var err error
		stored, err = s.attach(ctx, tx, chatbot, input.Logo, input.Documents)
		return err
	})
	if err != nil {
		s.uploader.discard(context.WithoutCancel(ctx), stored)
		return nil, err
	}

	if len(input.Documents) > 0 {
		enqueueIndex(ctx, s.publisher, s.log, id, model.IndexJobProcess)
	}
	return s.view(ctx, id)
}

func (s *ChatbotService) GetForEdit(ctx context.Context, principal Principal, id uint) (*ChatbotView, error) {
	chatbot, err := s.owned(ctx, principal, id)
	if err != nil {
		return nil, err
	}
	return s.toView(chatbot), nil
}

// ListMine returns the caller's own chatbots, whatever the role.
func (s *ChatbotService) ListMine(ctx context.Context, principal Principal) ([]ChatbotView, error) {
	ownerID := principal.ID
	return s.list(ctx, &ownerID)
}

// List returns every chatbot for admins and the caller's own otherwise.
func (s *ChatbotService) List(ctx context.Context, principal Principal) ([]ChatbotView, error) {
	return s.list(ctx, principal.OwnerScope())
}

func (s *ChatbotService) list(ctx context.Context, ownerID *uint) ([]ChatbotView, error) {
	chatbots, err := s.chatbots.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	views := make([]ChatbotView, 0, len(chatbots))
	for i := range chatbots {
		views = append(views, *s.toView(&chatbots[i]))
	}
	return views, nil
}

func (s *ChatbotService) ListQRCodes(ctx context.Context, principal Principal) ([]QRCodeView, error) {
	chatbots, err := s.chatbots.ListByOwner(ctx, principal.OwnerScope())
	if err != nil {
		return nil, err
	}
	codes := make([]QRCodeView, 0, len(chatbots))
	for _, c := range chatbots {
		codes = append(codes, QRCodeView{
			ID:         c.ID,
			Name:       c.Name,
			Slug:       c.Slug,
			QRCodeURL:  c.QRURL,
			ChatbotURL: s.ChatbotURL(c.Slug),
			IsActive:   c.IsActive,
		})
	}
	return codes, nil
}

func (s *ChatbotService) RegenerateQRCode(ctx context.Context, principal Principal, id uint) (*QRCodeView, error) {
	chatbot, err := s.owned(ctx, principal, id)
	if err != nil {
		return nil, err
	}
	qr, err := qrcode.DataURL(s.ChatbotURL(chatbot.Slug))
	if err != nil {
		return nil, err
	}
	if err := s.chatbots.Updates(ctx, id, map[string]interface{}{"qr_url": qr}); err != nil {
		return nil, err
	}
	return &QRCodeView{
		ID:         chatbot.ID,
		Name:       chatbot.Name,
		Slug:       chatbot.Slug,
		QRCodeURL:  qr,
		ChatbotURL: s.ChatbotURL(chatbot.Slug),
		IsActive:   chatbot.IsActive,
	}, nil
}

func (s *ChatbotService) UploadDocuments(ctx context.Context, principal Principal, id uint, uploads []Upload) ([]model.Document, error) {
	if len(uploads) == 0 {
		return nil, ErrInvalidInput
	}
	chatbot, err := s.owned(ctx, principal, id)
	if err != nil {
		return nil, err
	}
	if err := validateChatbotUploads(nil, uploads); err != nil {
		return nil, err
	}

	stored, err := s.uploader.storeAll(ctx, folderKey(chatbot.Name, chatbot.ID), uploads)
	if err != nil {
		return nil, err
	}
	docs := documentsFor(chatbot.ID, stored)
	if err := s.documents.CreateBatch(ctx, docs); err != nil {
		s.uploader.discard(context.WithoutCancel(ctx), stored)
		return nil, err
	}
	enqueueIndex(ctx, s.publisher, s.log, chatbot.ID, model.IndexJobProcess)
	return docs, nil
}

// attach uploads the logo and documents and writes their rows with tx.
// The returned objects must be discarded by the caller if tx rolls back.
func (s *ChatbotService) attach(ctx context.Context, tx *gorm.DB, chatbot *model.Chatbot, logo *Upload, uploads []Upload) ([]storedObject, error) {
	all := uploads
	if logo != nil {
		all = append([]Upload{*logo}, uploads...)
	}
	if len(all) == 0 {
		return nil, nil
	}

	stored, err := s.uploader.storeAll(ctx, folderKey(chatbot.Name, chatbot.ID), all)
	if err != nil {
		return nil, err
	}
	docObjects := stored
	if logo != nil {
		if err := s.chatbots.WithTx(tx).Updates(ctx, chatbot.ID, map[string]interface{}{"logo_url": stored[0].URL}); err != nil {
			return stored, err
		}
		docObjects = stored[1:]
	}
	if len(docObjects) > 0 {
		if err := s.documents.WithTx(tx).CreateBatch(ctx, documentsFor(chatbot.ID, docObjects)); err != nil {
			return stored, err
		}
	}
	return stored, nil
}

// owned loads a chatbot the caller may manage.
func (s *ChatbotService) owned(ctx context.Context, principal Principal, id uint) (*model.Chatbot, error) {
	if id == 0 {
		return nil, ErrInvalidInput
	}
	chatbot, err := s.chatbots.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if chatbot == nil {
		return nil, ErrChatbotNotFound
	}
	if !principal.Owns(chatbot.OwnerID) {
		return nil, ErrForbidden
	}
	return chatbot, nil
}

func (s *ChatbotService) view(ctx context.Context, id uint) (*ChatbotView, error) {
	chatbot, err := s.chatbots.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if chatbot == nil {
		return nil, ErrChatbotNotFound
	}
	return s.toView(chatbot), nil
}

func (s *ChatbotService) toView(c *model.Chatbot) *ChatbotView {
	docs := c.Documents
	if docs == nil {
		docs = []model.Document{}
	}
	return &ChatbotView{
		ID:             c.ID,
		Slug:           c.Slug,
		Name:           c.Name,
		Description:    c.Description,
		Logo:           c.LogoURL,
		PrimaryColor:   c.Color(),
		QRCodeURL:      c.QRURL,
		ChatbotURL:     s.ChatbotURL(c.Slug),
		IsActive:       c.IsActive,
		OwnerID:        c.OwnerID,
		DocumentsCount: len(docs),
		Documents:      docs,
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}
}

func validateChatbotUploads(logo *Upload, uploads []Upload) error {
	if logo != nil {
		if err := validateChatbotUpload(*logo); err != nil {
			return err
		}
	}
	for _, u := range uploads {
		if err := validateChatbotUpload(u); err != nil {
			return err
		}
	}
	return nil
}
