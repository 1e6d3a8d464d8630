package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"

	"botdesk/internal/model"
)

// TranscriptCache keeps the ordered ledger of one (user, chatbot) pair.
// Writers mark the pair dirty before touching the database; readers only
// fill the cache while no marker is present.
type TranscriptCache struct {
	client         *redisv9.Client
	transcriptTTL  time.Duration
	dirtyMarkerTTL time.Duration
}

func NewTranscriptCache(client *redisv9.Client, transcriptTTL, dirtyMarkerTTL time.Duration) *TranscriptCache {
	if transcriptTTL <= 0 {
		transcriptTTL = 60 * time.Second
	}
	if dirtyMarkerTTL <= 0 {
		dirtyMarkerTTL = 5 * time.Second
	}
	return &TranscriptCache{
		client:         client,
		transcriptTTL:  transcriptTTL,
		dirtyMarkerTTL: dirtyMarkerTTL,
	}
}

func (c *TranscriptCache) Get(ctx context.Context, userID, chatbotID uint) ([]model.Conversation, bool, error) {
	raw, err := c.client.Get(ctx, c.transcriptKey(userID, chatbotID)).Result()
	if err == redisv9.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get transcript failed: %w", err)
	}

	var entries []model.Conversation
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, false, fmt.Errorf("unmarshal cached transcript failed: %w", err)
	}
	return entries, true, nil
}

func (c *TranscriptCache) Set(ctx context.Context, userID, chatbotID uint, entries []model.Conversation) error {
	payload, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("marshal transcript cache failed: %w", err)
	}
	if err := c.client.Set(ctx, c.transcriptKey(userID, chatbotID), payload, c.transcriptTTL).Err(); err != nil {
		return fmt.Errorf("redis set transcript failed: %w", err)
	}
	return nil
}

// Invalidate marks the pair dirty and drops the cached transcript in one round trip.
func (c *TranscriptCache) Invalidate(ctx context.Context, userID, chatbotID uint) error {
	pipe := c.client.TxPipeline()
	pipe.Set(ctx, c.dirtyKey(userID, chatbotID), "1", c.dirtyMarkerTTL)
	pipe.Del(ctx, c.transcriptKey(userID, chatbotID))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis invalidate transcript failed: %w", err)
	}
	return nil
}

func (c *TranscriptCache) IsDirty(ctx context.Context, userID, chatbotID uint) (bool, error) {
	exists, err := c.client.Exists(ctx, c.dirtyKey(userID, chatbotID)).Result()
	if err != nil {
		return false, fmt.Errorf("redis check dirty marker failed: %w", err)
	}
	return exists > 0, nil
}

func (c *TranscriptCache) transcriptKey(userID, chatbotID uint) string {
	return fmt.Sprintf("chat:transcript:%d:%d", userID, chatbotID)
}

func (c *TranscriptCache) dirtyKey(userID, chatbotID uint) string {
	return fmt.Sprintf("chat:transcript:dirty:%d:%d", userID, chatbotID)
}
