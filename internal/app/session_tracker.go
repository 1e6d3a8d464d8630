package app

import (
	"context"
	"time"

	"botdesk/internal/model"
	"botdesk/internal/repository"
)

// SessionTracker keeps at most one open presence window per (user, chatbot).
type SessionTracker struct {
	sessions *repository.SessionRepository
	now      func() time.Time
}

func NewSessionTracker(sessions *repository.SessionRepository) *SessionTracker {
	return &SessionTracker{sessions: sessions, now: time.Now}
}

func (t *SessionTracker) EnsureOpen(ctx context.Context, userID, chatbotID uint) (*model.Session, error) {
	if userID == 0 || chatbotID == 0 {
		return nil, ErrInvalidInput
	}
	session, _, err := t.sessions.EnsureOpen(ctx, userID, chatbotID, t.now())
	return session, err
}

// Close ends the open session of the pair. Closing twice fails the second time.
func (t *SessionTracker) Close(ctx context.Context, userID, chatbotID uint) error {
	if userID == 0 || chatbotID == 0 {
		return ErrInvalidInput
	}
	closed, err := t.sessions.CloseOpen(ctx, userID, chatbotID, t.now())
	if err != nil {
		return err
	}
	if closed == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// CountActive counts open sessions of the chatbots started at or after since.
func (t *SessionTracker) CountActive(ctx context.Context, chatbotIDs []uint, since time.Time) (int64, error) {
	return t.sessions.CountOpenStarted(ctx, chatbotIDs, &since, nil)
}

// OpenPairs returns the open-session keys among the given users and chatbots.
func (t *SessionTracker) OpenPairs(ctx context.Context, userIDs, chatbotIDs []uint) (map[string]struct{}, error) {
	return t.sessions.OpenKeys(ctx, userIDs, chatbotIDs)
}
