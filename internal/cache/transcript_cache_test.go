package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redisv9 "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"botdesk/internal/model"
)

func newTestCache(t *testing.T) (*TranscriptCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redisv9.NewClient(&redisv9.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewTranscriptCache(client, time.Minute, 5*time.Second), mr
}

func TestTranscriptCache_SetGet(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	_, hit, err := c.Get(ctx, 1, 2)
	require.NoError(t, err)
	assert.False(t, hit)

	entries := []model.Conversation{
		{ID: 1, UserID: 1, ChatbotID: 2, Question: "hi", Answer: "hello"},
		{ID: 2, UserID: 1, ChatbotID: 2, Question: "more", Answer: "sure"},
	}
	require.NoError(t, c.Set(ctx, 1, 2, entries))

	got, hit, err := c.Get(ctx, 1, 2)
	require.NoError(t, err)
	assert.True(t, hit)
	require.Len(t, got, 2)
	assert.Equal(t, "more", got[1].Question)
}

func TestTranscriptCache_Invalidate(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, 1, 2, []model.Conversation{{ID: 1}}))
	require.NoError(t, c.Invalidate(ctx, 1, 2))

	_, hit, err := c.Get(ctx, 1, 2)
	require.NoError(t, err)
	assert.False(t, hit)

	dirty, err := c.IsDirty(ctx, 1, 2)
	require.NoError(t, err)
	assert.True(t, dirty)

	mr.FastForward(6 * time.Second)
	dirty, err = c.IsDirty(ctx, 1, 2)
	require.NoError(t, err)
	assert.False(t, dirty)
}
