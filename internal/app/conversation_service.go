package app

import (
	"context"
	"strconv"

	"botdesk/internal/logger"
)

// ConversationService is the dashboard surface over the ledger.
type ConversationService struct {
	ledger    *ConversationLedger
	reporting *ReportingService
	log       logger.Logger
}

func NewConversationService(ledger *ConversationLedger, reporting *ReportingService, log logger.Logger) *ConversationService {
	return &ConversationService{ledger: ledger, reporting: reporting, log: log}
}

func (s *ConversationService) List(ctx context.Context, principal Principal, filter ThreadFilter) (*ThreadsReport, error) {
	return s.reporting.GroupedThreads(ctx, principal, filter)
}

// Delete removes the whole transcript of a pair. Only admins and the user
// themself may do it.
func (s *ConversationService) Delete(ctx context.Context, principal Principal, rawUserID, rawChatbotID string) (int64, error) {
	userID, err := strconv.ParseUint(rawUserID, 10, 64)
	if err != nil || userID == 0 {
		return 0, ErrInvalidInput
	}
	chatbotID, err := strconv.ParseUint(rawChatbotID, 10, 64)
	if err != nil || chatbotID == 0 {
		return 0, ErrInvalidInput
	}

	entries, err := s.ledger.ListForUserAndChatbot(ctx, uint(userID), uint(chatbotID))
	if err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		return 0, ErrConversationNotFound
	}
	if !principal.IsAdmin() && principal.ID != uint(userID) {
		return 0, ErrForbidden
	}

	deleted, err := s.ledger.DeleteAll(ctx, uint(userID), uint(chatbotID))
	if err != nil {
		return 0, err
	}
	s.log.Info("conversation", "transcript deleted", map[string]interface{}{
		"user_id":    userID,
		"chatbot_id": chatbotID,
		"deleted":    deleted,
		"by":         principal.ID,
	})
	return deleted, nil
}
