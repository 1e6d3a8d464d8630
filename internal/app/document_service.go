package app

import (
	"context"
	"path/filepath"
	"time"

	"botdesk/internal/logger"
	"botdesk/internal/model"
	"botdesk/internal/repository"
)

type DocumentResult struct {
	Document       *model.Document `json:"document"`
	DocumentsCount int64           `json:"documentsCount"`
}

type DownloadResult struct {
	URL            string `json:"url"`
	DocumentsCount int64  `json:"documentsCount"`
}

// DocumentService maps uploaded knowledge-base files to chatbots. The file
// bytes live in the object store; indexing is delegated to the AI service.
type DocumentService struct {
	chatbots  *repository.ChatbotRepository
	documents *repository.DocumentRepository
	uploader  objectUploader
	publisher IndexJobPublisher
	log       logger.Logger
	now       func() time.Time
}

func NewDocumentService(
	chatbots *repository.ChatbotRepository,
	documents *repository.DocumentRepository,
	store ObjectStore,
	publisher IndexJobPublisher,
	log logger.Logger,
) *DocumentService {
	return &DocumentService{
		chatbots:  chatbots,
		documents: documents,
		uploader:  objectUploader{store: store, log: log, now: time.Now},
		publisher: publisher,
		log:       log,
		now:       time.Now,
	}
}

// ListByChatbot is restricted to the chatbot owner.
func (s *DocumentService) ListByChatbot(ctx context.Context, principal Principal, chatbotID uint) ([]model.Document, error) {
	chatbot, err := s.chatbot(ctx, chatbotID)
	if err != nil {
		return nil, err
	}
	if chatbot.OwnerID != principal.ID {
		return nil, ErrForbidden
	}
	docs, err := s.documents.ListByChatbot(ctx, chatbotID)
	if err != nil {
		return nil, err
	}
	if docs == nil {
		docs = []model.Document{}
	}
	return docs, nil
}

func (s *DocumentService) Upload(ctx context.Context, principal Principal, chatbotID uint, upload Upload) (*DocumentResult, error) {
	if err := validateDocumentUpload(upload); err != nil {
		return nil, err
	}
	chatbot, err := s.managed(ctx, principal, chatbotID)
	if err != nil {
		return nil, err
	}

	stored, err := s.uploader.storeAll(ctx, folderKey(chatbot.Name, chatbot.ID), []Upload{upload})
	if err != nil {
		return nil, err
	}
	doc := &documentsFor(chatbot.ID, stored)[0]
	if err := s.documents.Create(ctx, doc); err != nil {
		s.uploader.discard(context.WithoutCancel(ctx), stored)
		return nil, err
	}
	enqueueIndex(ctx, s.publisher, s.log, chatbot.ID, model.IndexJobProcess)
	return s.result(ctx, doc)
}

// Replace swaps the file behind a document and resets its creation time.
func (s *DocumentService) Replace(ctx context.Context, principal Principal, documentID uint, upload Upload) (*DocumentResult, error) {
	if err := validateDocumentUpload(upload); err != nil {
		return nil, err
	}
	doc, chatbot, err := s.document(ctx, principal, documentID)
	if err != nil {
		return nil, err
	}

	stored, err := s.uploader.storeAll(ctx, folderKey(chatbot.Name, chatbot.ID), []Upload{upload})
	if err != nil {
		return nil, err
	}
	oldKey := doc.ObjectKey
	doc.FileName = filepath.Base(upload.FileName)
	doc.FileType = upload.FileType()
	doc.Size = upload.Size()
	doc.URL = stored[0].URL
	doc.ObjectKey = stored[0].Key
	doc.CreatedAt = s.now()
	if err := s.documents.Save(ctx, doc); err != nil {
		s.uploader.discard(context.WithoutCancel(ctx), stored)
		return nil, err
	}
	s.uploader.remove(ctx, oldKey)

	enqueueIndex(ctx, s.publisher, s.log, chatbot.ID, model.IndexJobProcess)
	return s.result(ctx, doc)
}

func (s *DocumentService) Delete(ctx context.Context, principal Principal, documentID uint) error {
	doc, chatbot, err := s.document(ctx, principal, documentID)
	if err != nil {
		return err
	}
	deleted, err := s.documents.Delete(ctx, doc.ID)
	if err != nil {
		return err
	}
	if deleted == 0 {
		return ErrDocumentNotFound
	}
	enqueueIndex(ctx, s.publisher, s.log, chatbot.ID, model.IndexJobReindex)
	s.uploader.remove(ctx, doc.ObjectKey)
	return nil
}

func (s *DocumentService) Download(ctx context.Context, principal Principal, documentID uint) (*DownloadResult, error) {
	doc, _, err := s.document(ctx, principal, documentID)
	if err != nil {
		return nil, err
	}
	count, err := s.documents.CountByChatbot(ctx, doc.ChatbotID)
	if err != nil {
		return nil, err
	}
	return &DownloadResult{URL: doc.URL, DocumentsCount: count}, nil
}

func (s *DocumentService) result(ctx context.Context, doc *model.Document) (*DocumentResult, error) {
	count, err := s.documents.CountByChatbot(ctx, doc.ChatbotID)
	if err != nil {
		return nil, err
	}
	return &DocumentResult{Document: doc, DocumentsCount: count}, nil
}

func (s *DocumentService) document(ctx context.Context, principal Principal, documentID uint) (*model.Document, *model.Chatbot, error) {
	if documentID == 0 {
		return nil, nil, ErrInvalidInput
	}
	doc, err := s.documents.GetByID(ctx, documentID)
	if err != nil {
		return nil, nil, err
	}
	if doc == nil {
		return nil, nil, ErrDocumentNotFound
	}
	chatbot, err := s.managed(ctx, principal, doc.ChatbotID)
	if err != nil {
		return nil, nil, err
	}
	return doc, chatbot, nil
}

func (s *DocumentService) managed(ctx context.Context, principal Principal, chatbotID uint) (*model.Chatbot, error) {
	chatbot, err := s.chatbot(ctx, chatbotID)
	if err != nil {
		return nil, err
	}
	if !principal.Owns(chatbot.OwnerID) {
		return nil, ErrForbidden
	}
	return chatbot, nil
}

func (s *DocumentService) chatbot(ctx context.Context, chatbotID uint) (*model.Chatbot, error) {
	if chatbotID == 0 {
		return nil, ErrInvalidInput
	}
	chatbot, err := s.chatbots.GetByID(ctx, chatbotID)
	if err != nil {
		return nil, err
	}
	if chatbot == nil {
		return nil, ErrChatbotNotFound
	}
	return chatbot, nil
}
