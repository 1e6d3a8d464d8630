package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var ErrEmptyAnswer = errors.New("ai service returned no answer")

// AskClient talks to the external question-answering service.
type AskClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewAskClient(baseURL string, timeout time.Duration) *AskClient {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &AskClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Ask posts the question for the chatbot and returns the answer text.
func (c *AskClient) Ask(ctx context.Context, chatbotID uint, question string) (string, error) {
	endpoint := fmt.Sprintf("%s/ask/%d?question=%s", c.baseURL, chatbotID, url.QueryEscape(question))
	raw, err := c.post(ctx, endpoint, nil)
	if err != nil {
		return "", err
	}

	var parsed struct {
		Answer *string `json:"answer"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("parse ask response failed: %w", err)
	}
	if parsed.Answer == nil || strings.TrimSpace(*parsed.Answer) == "" {
		return "", ErrEmptyAnswer
	}
	return *parsed.Answer, nil
}

// Process asks the service to index the documents of a chatbot.
func (c *AskClient) Process(ctx context.Context, chatbotID uint) error {
	_, err := c.post(ctx, fmt.Sprintf("%s/process/%d", c.baseURL, chatbotID), nil)
	return err
}

// Reindex rebuilds the index after a document was removed.
func (c *AskClient) Reindex(ctx context.Context, chatbotID uint) error {
	body, err := json.Marshal(map[string]uint{"chatbot_id": chatbotID})
	if err != nil {
		return fmt.Errorf("marshal reindex request failed: %w", err)
	}
	_, err = c.post(ctx, c.baseURL+"/process-documents", body)
	return err
}

func (c *AskClient) post(ctx context.Context, endpoint string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build ai request failed: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ai request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read ai response failed: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("ai response status %d: %s", resp.StatusCode, string(raw))
	}
	return raw, nil
}
