package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"botdesk/internal/app"
	"botdesk/internal/logger"
	"botdesk/internal/transport/http/response"
)

// PublicHandler serves the chat widget. The :id segment is a chatbot slug or
// numeric id.
type PublicHandler struct {
	gateway *app.ChatGateway
	log     logger.Logger
}

type SendMessageRequest struct {
	Content string `json:"content" binding:"required,max=4000"`
	UserID  uint   `json:"userId"`
}

type EndSessionRequest struct {
	UserID uint `json:"userId" binding:"required,gt=0"`
}

func NewPublicHandler(gateway *app.ChatGateway, log logger.Logger) *PublicHandler {
	return &PublicHandler{gateway: gateway, log: log}
}

func (h *PublicHandler) Open(c *gin.Context) {
	view, err := h.gateway.OpenChatbot(c.Request.Context(), c.Param("id"), optionalPrincipal(c))
	if err != nil {
		writeError(c, h.log, err, "fetch chatbot failed")
		return
	}
	response.OK(c, view)
}

func (h *PublicHandler) SendMessage(c *gin.Context) {
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "message content is required")
		return
	}

	result, err := h.gateway.Submit(c.Request.Context(), app.SubmitInput{
		ChatbotRef: c.Param("id"),
		Message:    req.Content,
		UserID:     req.UserID,
		Principal:  optionalPrincipal(c),
	})
	if err != nil {
		writeError(c, h.log, err, "send message failed")
		return
	}
	response.OK(c, result)
}

func (h *PublicHandler) Transcript(c *gin.Context) {
	userID, err := strconv.ParseUint(c.Query("userId"), 10, 64)
	if err != nil || userID == 0 {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "userId is required")
		return
	}

	entries, err := h.gateway.Transcript(c.Request.Context(), c.Param("id"), uint(userID))
	if err != nil {
		writeError(c, h.log, err, "fetch conversation failed")
		return
	}
	response.OK(c, entries)
}

func (h *PublicHandler) EndSession(c *gin.Context) {
	var req EndSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "userId is required")
		return
	}

	if err := h.gateway.EndSession(c.Request.Context(), c.Param("id"), req.UserID); err != nil {
		writeError(c, h.log, err, "end session failed")
		return
	}
	response.OK(c, gin.H{"ended": true})
}
