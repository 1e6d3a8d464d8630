package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"botdesk/internal/app"
	"botdesk/internal/logger"
	"botdesk/internal/transport/http/response"
)

type ConversationHandler struct {
	conversations *app.ConversationService
	log           logger.Logger
}

type ListConversationsQuery struct {
	UserID    string `form:"userId"`
	ChatbotID string `form:"chatbotId"`
	Search    string `form:"search" binding:"max=200"`
}

func NewConversationHandler(conversations *app.ConversationService, log logger.Logger) *ConversationHandler {
	return &ConversationHandler{conversations: conversations, log: log}
}

func (h *ConversationHandler) List(c *gin.Context) {
	principal, ok := principalOf(c)
	if !ok {
		return
	}
	var query ListConversationsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid query")
		return
	}

	filter := app.ThreadFilter{Search: query.Search}
	// unparsable ids are ignored
	if id, err := strconv.ParseUint(query.UserID, 10, 64); err == nil {
		filter.UserID = uint(id)
	}
	if id, err := strconv.ParseUint(query.ChatbotID, 10, 64); err == nil {
		filter.ChatbotID = uint(id)
	}

	report, err := h.conversations.List(c.Request.Context(), principal, filter)
	if err != nil {
		writeError(c, h.log, err, "list conversations failed")
		return
	}
	response.OK(c, report)
}

func (h *ConversationHandler) Delete(c *gin.Context) {
	principal, ok := principalOf(c)
	if !ok {
		return
	}
	deleted, err := h.conversations.Delete(c.Request.Context(), principal, c.Param("userId"), c.Param("chatbotId"))
	if err != nil {
		writeError(c, h.log, err, "delete conversation failed")
		return
	}
	response.OK(c, gin.H{"deletedCount": deleted})
}
