package model

import "time"

type IndexJobKind string

const (
	IndexJobProcess IndexJobKind = "process"
	IndexJobReindex IndexJobKind = "reindex"
)

// IndexJob asks the AI service to (re)build the knowledge base of a chatbot.
type IndexJob struct {
	ChatbotID   uint         `json:"chatbot_id"`
	Kind        IndexJobKind `json:"kind"`
	RequestedAt time.Time    `json:"requested_at"`
}
