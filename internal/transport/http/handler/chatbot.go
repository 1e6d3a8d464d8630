package handler

import (
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"botdesk/internal/app"
	"botdesk/internal/logger"
	"botdesk/internal/transport/http/response"
)

// ChatbotHandler serves the owner dashboard routes of /api/chatbots.
type ChatbotHandler struct {
	chatbots  *app.ChatbotService
	reporting *app.ReportingService
	log       logger.Logger
}

func NewChatbotHandler(chatbots *app.ChatbotService, reporting *app.ReportingService, log logger.Logger) *ChatbotHandler {
	return &ChatbotHandler{chatbots: chatbots, reporting: reporting, log: log}
}

func (h *ChatbotHandler) Create(c *gin.Context) {
	principal, ok := principalOf(c)
	if !ok {
		return
	}
	form, err := c.MultipartForm()
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid multipart form")
		return
	}

	input := app.CreateChatbotInput{}
	if v := formValue(form, "name"); v != nil {
		input.Name = *v
	}
	if v := formValue(form, "description"); v != nil {
		input.Description = *v
	}
	if v := formValue(form, "primaryColor"); v != nil {
		input.PrimaryColor = *v
	}
	if v := formValue(form, "logoUrl"); v != nil {
		input.LogoURL = *v
	}
	if input.Logo, input.Documents, err = readChatbotFiles(form); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		return
	}

	view, err := h.chatbots.Create(c.Request.Context(), principal, input)
	if err != nil {
		writeError(c, h.log, err, "create chatbot failed")
		return
	}
	response.Created(c, view)
}

func (h *ChatbotHandler) Update(c *gin.Context) {
	principal, ok := principalOf(c)
	if !ok {
		return
	}
	id, ok := parseID(c, c.Param("id"))
	if !ok {
		return
	}
	form, err := c.MultipartForm()
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid multipart form")
		return
	}

	input := app.UpdateChatbotInput{
		Name:         formValue(form, "name"),
		Description:  formValue(form, "description"),
		PrimaryColor: formValue(form, "primaryColor"),
		LogoURL:      formValue(form, "logoUrl"),
	}
	if v := formValue(form, "isActive"); v != nil {
		active, parseErr := strconv.ParseBool(*v)
		if parseErr != nil {
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid isActive")
			return
		}
		input.IsActive = &active
	}
	if input.Logo, input.Documents, err = readChatbotFiles(form); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		return
	}

	view, err := h.chatbots.Update(c.Request.Context(), principal, id, input)
	if err != nil {
		writeError(c, h.log, err, "update chatbot failed")
		return
	}
	response.OK(c, view)
}

func (h *ChatbotHandler) Edit(c *gin.Context) {
	principal, ok := principalOf(c)
	if !ok {
		return
	}
	id, ok := parseID(c, c.Param("id"))
	if !ok {
		return
	}
	view, err := h.chatbots.GetForEdit(c.Request.Context(), principal, id)
	if err != nil {
		writeError(c, h.log, err, "fetch chatbot failed")
		return
	}
	response.OK(c, view)
}

func (h *ChatbotHandler) ListMine(c *gin.Context) {
	principal, ok := principalOf(c)
	if !ok {
		return
	}
	views, err := h.chatbots.ListMine(c.Request.Context(), principal)
	if err != nil {
		writeError(c, h.log, err, "list chatbots failed")
		return
	}
	response.OK(c, views)
}

func (h *ChatbotHandler) List(c *gin.Context) {
	principal, ok := principalOf(c)
	if !ok {
		return
	}
	views, err := h.chatbots.List(c.Request.Context(), principal)
	if err != nil {
		writeError(c, h.log, err, "list chatbots failed")
		return
	}
	response.OK(c, views)
}

func (h *ChatbotHandler) ListQRCodes(c *gin.Context) {
	principal, ok := principalOf(c)
	if !ok {
		return
	}
	codes, err := h.chatbots.ListQRCodes(c.Request.Context(), principal)
	if err != nil {
		writeError(c, h.log, err, "list qr codes failed")
		return
	}
	response.OK(c, codes)
}

func (h *ChatbotHandler) RegenerateQRCode(c *gin.Context) {
	principal, ok := principalOf(c)
	if !ok {
		return
	}
	id, ok := parseID(c, c.Param("id"))
	if !ok {
		return
	}
	code, err := h.chatbots.RegenerateQRCode(c.Request.Context(), principal, id)
	if err != nil {
		writeError(c, h.log, err, "regenerate qr code failed")
		return
	}
	response.OK(c, code)
}

func (h *ChatbotHandler) UploadDocuments(c *gin.Context) {
	principal, ok := principalOf(c)
	if !ok {
		return
	}
	id, ok := parseID(c, c.Param("id"))
	if !ok {
		return
	}
	form, err := c.MultipartForm()
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid multipart form")
		return
	}
	uploads, err := readUploads(form, "documents", app.MaxChatbotUploadBytes)
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		return
	}

	docs, err := h.chatbots.UploadDocuments(c.Request.Context(), principal, id, uploads)
	if err != nil {
		writeError(c, h.log, err, "upload documents failed")
		return
	}
	response.Created(c, docs)
}

func (h *ChatbotHandler) Stats(c *gin.Context) {
	principal, ok := principalOf(c)
	if !ok {
		return
	}
	id, ok := parseID(c, c.Param("id"))
	if !ok {
		return
	}
	stats, err := h.reporting.ChatbotStats(c.Request.Context(), principal, id)
	if err != nil {
		writeError(c, h.log, err, "fetch chatbot stats failed")
		return
	}
	response.OK(c, stats)
}

func (h *ChatbotHandler) UserStats(c *gin.Context) {
	principal, ok := principalOf(c)
	if !ok {
		return
	}
	stats, err := h.reporting.OwnerStats(c.Request.Context(), principal)
	if err != nil {
		writeError(c, h.log, err, "fetch user stats failed")
		return
	}
	response.OK(c, stats)
}

func readChatbotFiles(form *multipart.Form) (*app.Upload, []app.Upload, error) {
	logos, err := readUploads(form, "logo", app.MaxChatbotUploadBytes)
	if err != nil {
		return nil, nil, err
	}
	docs, err := readUploads(form, "documents", app.MaxChatbotUploadBytes)
	if err != nil {
		return nil, nil, err
	}
	var logo *app.Upload
	if len(logos) > 0 {
		logo = &logos[0]
	}
	return logo, docs, nil
}
