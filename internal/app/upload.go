package app

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"botdesk/internal/logger"
	"botdesk/internal/model"
)

const (
	MaxChatbotUploadBytes  = 5 << 20
	MaxDocumentUploadBytes = 10 << 20
)

var chatbotUploadTypes = map[string]struct{}{
	"image/png":       {},
	"image/jpeg":      {},
	"application/pdf": {},
	"text/plain":      {},
}

var unsafeNameChars = regexp.MustCompile(`[^a-z0-9]`)

// Upload is a file received from a multipart form.
type Upload struct {
	FileName    string
	ContentType string
	Data        []byte
}

func (u Upload) Size() int64 {
	return int64(len(u.Data))
}

// FileType is the lowercase extension without the dot.
func (u Upload) FileType() string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(u.FileName)), ".")
}

type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
}

type IndexJobPublisher interface {
	Publish(ctx context.Context, job model.IndexJob) error
}

func validateChatbotUpload(u Upload) error {
	if u.FileName == "" || len(u.Data) == 0 {
		return fmt.Errorf("%w: empty file", ErrUploadRejected)
	}
	if u.Size() > MaxChatbotUploadBytes {
		return fmt.Errorf("%w: %s exceeds 5MB", ErrUploadRejected, u.FileName)
	}
	contentType := strings.TrimSpace(strings.SplitN(u.ContentType, ";", 2)[0])
	if _, ok := chatbotUploadTypes[contentType]; !ok {
		return fmt.Errorf("%w: invalid file type %q", ErrUploadRejected, u.ContentType)
	}
	return nil
}

func validateDocumentUpload(u Upload) error {
	if u.FileName == "" || len(u.Data) == 0 {
		return fmt.Errorf("%w: empty file", ErrUploadRejected)
	}
	if u.Size() > MaxDocumentUploadBytes {
		return fmt.Errorf("%w: %s exceeds 10MB", ErrUploadRejected, u.FileName)
	}
	return nil
}

// folderKey groups a chatbot's objects under uploads/<name>+<id>.
func folderKey(chatbotName string, chatbotID uint) string {
	return fmt.Sprintf("uploads/%s+%d", unsafeNameChars.ReplaceAllString(strings.ToLower(chatbotName), "_"), chatbotID)
}

func objectKey(folder, fileName string, at time.Time) string {
	return fmt.Sprintf("%s/%d-%s", folder, at.UnixMilli(), filepath.Base(fileName))
}

type storedObject struct {
	Upload Upload
	Key    string
	URL    string
}

// objectUploader writes uploads under one folder and cleans up after a
// partial failure.
type objectUploader struct {
	store ObjectStore
	log   logger.Logger
	now   func() time.Time
}

func (u objectUploader) storeAll(ctx context.Context, folder string, uploads []Upload) ([]storedObject, error) {
	stored := make([]storedObject, len(uploads))
	at := u.now()
	g, gctx := errgroup.WithContext(ctx)
	for i, upload := range uploads {
		i, upload := i, upload
		g.Go(func() error {
			key := objectKey(folder, upload.FileName, at)
			url, err := u.store.Put(gctx, key, upload.Data, upload.ContentType)
			if err != nil {
				return err
			}
			stored[i] = storedObject{Upload: upload, Key: key, URL: url}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		u.discard(context.WithoutCancel(ctx), stored)
		return nil, err
	}
	return stored, nil
}

// discard deletes objects best-effort.
func (u objectUploader) discard(ctx context.Context, objects []storedObject) {
	for _, obj := range objects {
		if obj.Key == "" {
			continue
		}
		u.remove(ctx, obj.Key)
	}
}

func (u objectUploader) remove(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := u.store.Delete(ctx, key); err != nil {
		u.log.Warn("storage", "delete object failed", map[string]interface{}{
			"error": err,
			"key":   key,
		})
	}
}

func documentsFor(chatbotID uint, objects []storedObject) []model.Document {
	docs := make([]model.Document, 0, len(objects))
	for _, obj := range objects {
		docs = append(docs, model.Document{
			ChatbotID: chatbotID,
			FileName:  filepath.Base(obj.Upload.FileName),
			FileType:  obj.Upload.FileType(),
			Size:      obj.Upload.Size(),
			URL:       obj.URL,
			ObjectKey: obj.Key,
		})
	}
	return docs
}

// enqueueIndex asks the worker to rebuild the chatbot's knowledge base.
// Failures are logged and never fail the request.
func enqueueIndex(ctx context.Context, publisher IndexJobPublisher, log logger.Logger, chatbotID uint, kind model.IndexJobKind) {
	if publisher == nil {
		return
	}
	job := model.IndexJob{ChatbotID: chatbotID, Kind: kind, RequestedAt: time.Now()}
	if err := publisher.Publish(ctx, job); err != nil {
		log.Error("index", "enqueue document index job failed", map[string]interface{}{
			"error":      err,
			"chatbot_id": chatbotID,
			"kind":       string(kind),
		})
	}
}
