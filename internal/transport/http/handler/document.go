package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"botdesk/internal/app"
	"botdesk/internal/logger"
	"botdesk/internal/transport/http/response"
)

type DocumentHandler struct {
	documents *app.DocumentService
	log       logger.Logger
}

func NewDocumentHandler(documents *app.DocumentService, log logger.Logger) *DocumentHandler {
	return &DocumentHandler{documents: documents, log: log}
}

func (h *DocumentHandler) List(c *gin.Context) {
	principal, ok := principalOf(c)
	if !ok {
		return
	}
	chatbotID, ok := parseID(c, c.Query("chatbotId"))
	if !ok {
		return
	}
	docs, err := h.documents.ListByChatbot(c.Request.Context(), principal, chatbotID)
	if err != nil {
		writeError(c, h.log, err, "list documents failed")
		return
	}
	response.OK(c, docs)
}

func (h *DocumentHandler) Upload(c *gin.Context) {
	principal, ok := principalOf(c)
	if !ok {
		return
	}
	chatbotID, ok := parseID(c, c.PostForm("chatbotId"))
	if !ok {
		return
	}
	upload, ok := h.fileFrom(c)
	if !ok {
		return
	}

	result, err := h.documents.Upload(c.Request.Context(), principal, chatbotID, upload)
	if err != nil {
		writeError(c, h.log, err, "upload document failed")
		return
	}
	response.Created(c, result)
}

func (h *DocumentHandler) Replace(c *gin.Context) {
	principal, ok := principalOf(c)
	if !ok {
		return
	}
	id, ok := parseID(c, c.Param("id"))
	if !ok {
		return
	}
	upload, ok := h.fileFrom(c)
	if !ok {
		return
	}

	result, err := h.documents.Replace(c.Request.Context(), principal, id, upload)
	if err != nil {
		writeError(c, h.log, err, "replace document failed")
		return
	}
	response.OK(c, result)
}

func (h *DocumentHandler) Delete(c *gin.Context) {
	principal, ok := principalOf(c)
	if !ok {
		return
	}
	id, ok := parseID(c, c.Param("id"))
	if !ok {
		return
	}
	if err := h.documents.Delete(c.Request.Context(), principal, id); err != nil {
		writeError(c, h.log, err, "delete document failed")
		return
	}
	response.OK(c, gin.H{"deleted": true})
}

func (h *DocumentHandler) Download(c *gin.Context) {
	principal, ok := principalOf(c)
	if !ok {
		return
	}
	id, ok := parseID(c, c.Param("id"))
	if !ok {
		return
	}
	result, err := h.documents.Download(c.Request.Context(), principal, id)
	if err != nil {
		writeError(c, h.log, err, "download document failed")
		return
	}
	response.OK(c, result)
}

func (h *DocumentHandler) fileFrom(c *gin.Context) (app.Upload, bool) {
	fh, err := c.FormFile("file")
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "file is required")
		return app.Upload{}, false
	}
	upload, err := readUpload(fh, app.MaxDocumentUploadBytes)
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		return app.Upload{}, false
	}
	return upload, true
}
