package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"botdesk/internal/app"
	"botdesk/internal/logger"
	"botdesk/internal/model"
	"botdesk/internal/transport/http/middleware"
	"botdesk/internal/transport/http/response"
)

// RegisterValidators adds the custom binding tags used by request structs.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return fmt.Errorf("unexpected binding validator engine")
	}
	return v.RegisterValidation("role", func(fl validator.FieldLevel) bool {
		return model.Role(fl.Field().String()).Valid()
	})
}

// writeError maps service errors onto the response envelope. Anything not
// listed is logged and reported as a 500 with the fallback message.
func writeError(c *gin.Context, log logger.Logger, err error, fallback string) {
	switch {
	case errors.Is(err, app.ErrInvalidInput),
		errors.Is(err, app.ErrMessageEmpty),
		errors.Is(err, app.ErrUploadRejected):
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
	case errors.Is(err, app.ErrInvalidCredential):
		response.Error(c, http.StatusUnauthorized, response.CodeInvalidCredentials, err.Error())
	case errors.Is(err, app.ErrForbidden):
		response.Error(c, http.StatusForbidden, response.CodeForbidden, err.Error())
	case errors.Is(err, app.ErrSessionNotFound):
		response.Error(c, http.StatusNotFound, response.CodeSessionNotFound, err.Error())
	case errors.Is(err, app.ErrChatbotNotFound):
		response.Error(c, http.StatusNotFound, response.CodeChatbotNotFound, err.Error())
	case errors.Is(err, app.ErrUserNotFound):
		response.Error(c, http.StatusNotFound, response.CodeUserNotFound, err.Error())
	case errors.Is(err, app.ErrConversationNotFound):
		response.Error(c, http.StatusNotFound, response.CodeConversationNotFound, err.Error())
	case errors.Is(err, app.ErrDocumentNotFound):
		response.Error(c, http.StatusNotFound, response.CodeDocumentNotFound, err.Error())
	case errors.Is(err, app.ErrEmailExists):
		response.Error(c, http.StatusConflict, response.CodeEmailExists, err.Error())
	case errors.Is(err, context.Canceled):
		c.Abort()
	default:
		log.Error("http", fallback, map[string]interface{}{
			"error": err,
			"path":  c.FullPath(),
		})
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, fallback)
	}
}

func principalOf(c *gin.Context) (app.Principal, bool) {
	principal, ok := middleware.CurrentPrincipal(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
	}
	return principal, ok
}

// optionalPrincipal returns nil for anonymous callers.
func optionalPrincipal(c *gin.Context) *app.Principal {
	if principal, ok := middleware.CurrentPrincipal(c); ok {
		return &principal
	}
	return nil
}

func parseID(c *gin.Context, raw string) (uint, bool) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid id")
		return 0, false
	}
	return uint(id), true
}

// readUpload reads at most limit+1 bytes so oversized files still reach the
// service-side size check without being fully buffered.
func readUpload(fh *multipart.FileHeader, limit int64) (app.Upload, error) {
	f, err := fh.Open()
	if err != nil {
		return app.Upload{}, fmt.Errorf("open upload failed: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return app.Upload{}, fmt.Errorf("read upload failed: %w", err)
	}
	return app.Upload{
		FileName:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

func readUploads(form *multipart.Form, field string, limit int64) ([]app.Upload, error) {
	if form == nil {
		return nil, nil
	}
	headers := form.File[field]
	uploads := make([]app.Upload, 0, len(headers))
	for _, fh := range headers {
		upload, err := readUpload(fh, limit)
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, upload)
	}
	return uploads, nil
}

// formValue returns nil when the field is absent from the form.
func formValue(form *multipart.Form, field string) *string {
	if form == nil {
		return nil
	}
	values, ok := form.Value[field]
	if !ok || len(values) == 0 {
		return nil
	}
	return &values[0]
}
