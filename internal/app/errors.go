package app

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput         = errors.New("invalid input")
	ErrForbidden            = errors.New("forbidden")
	ErrChatbotNotFound      = errors.New("chatbot not found")
	ErrUserNotFound         = errors.New("user not found")
	ErrSessionNotFound      = errors.New("no active session found")
	ErrConversationNotFound = errors.New("no conversations found for this user and chatbot")
	ErrDocumentNotFound     = errors.New("document not found")
	ErrUploadRejected       = errors.New("upload rejected")
)

var ErrMessageEmpty = fmt.Errorf("message content is empty: %w", ErrInvalidInput)
