package app

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"botdesk/internal/model"
)

func TestComputeTrend(t *testing.T) {
	tests := []struct {
		name     string
		current  int64
		previous int64
		delta    float64
		up       bool
		label    string
	}{
		{name: "growth", current: 25, previous: 10, delta: 150, up: true, label: "+150.0%"},
		{name: "zero baseline with growth", current: 5, previous: 0, delta: 0, up: true, label: "+0.0%"},
		{name: "zero baseline flat", current: 0, previous: 0, delta: 0, up: false, label: "0.0%"},
		{name: "flat", current: 10, previous: 10, delta: 0, up: false, label: "0.0%"},
		{name: "decline", current: 8, previous: 10, delta: -20, up: false, label: "-20.0%"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trend := ComputeTrend(tt.current, tt.previous)
			assert.InDelta(t, tt.delta, trend.DeltaPercent, 1e-9)
			assert.Equal(t, tt.up, trend.Up)
			assert.Equal(t, tt.label, trend.Label())
		})
	}
}

func TestReportingService_ChatbotStats(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.user(t, "owner", model.RoleSubAdmin)
	other := env.user(t, "other", model.RoleSubAdmin)
	registered := env.user(t, "visitor", model.RoleUser)
	anonymous := env.user(t, "", model.RoleUser)
	chatbot := env.chatbot(t, "support", owner.ID)

	for i := 0; i < 10; i++ {
		env.entry(t, registered.ID, chatbot.ID, fmt.Sprintf("old %d", i), "a", baseTime.Add(-40*24*time.Hour))
	}
	for i := 0; i < 15; i++ {
		env.entry(t, anonymous.ID, chatbot.ID, fmt.Sprintf("new %d", i), "a", baseTime.Add(-time.Hour))
	}
	_, _, err := env.sessions.EnsureOpen(ctx, anonymous.ID, chatbot.ID, baseTime.Add(-time.Hour))
	require.NoError(t, err)
	require.NoError(t, env.scans.Create(ctx, &model.QRScan{ChatbotID: chatbot.ID, UserID: anonymous.ID, ScannedAt: baseTime}))

	stats, err := env.reporting.ChatbotStats(ctx, Principal{ID: owner.ID, Role: model.RoleSubAdmin}, chatbot.ID)
	require.NoError(t, err)
	assert.Equal(t, &ChatbotStats{
		TotalMessages:   25,
		MessagesTrend:   "+150.0%",
		MessagesTrendUp: true,
		UniqueUsers:     2,
		AnonymousUsers:  1,
		ActiveSessions:  1,
		QRScans:         1,
	}, stats)

	_, err = env.reporting.ChatbotStats(ctx, Principal{ID: other.ID, Role: model.RoleSubAdmin}, chatbot.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = env.reporting.ChatbotStats(ctx, Principal{ID: other.ID, Role: model.RoleAdmin}, chatbot.ID)
	assert.NoError(t, err)

	_, err = env.reporting.ChatbotStats(ctx, Principal{ID: owner.ID, Role: model.RoleSubAdmin}, 999)
	assert.ErrorIs(t, err, ErrChatbotNotFound)
}

func TestReportingService_OwnerStats(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.user(t, "alice", model.RoleSubAdmin)
	bob := env.user(t, "bob", model.RoleSubAdmin)
	visitor := env.user(t, "", model.RoleUser)
	aliceBot := env.chatbot(t, "alice-bot", alice.ID)
	bobBot := env.chatbot(t, "bob-bot", bob.ID)

	env.entry(t, visitor.ID, aliceBot.ID, "q", "a", baseTime.Add(-time.Hour))
	env.entry(t, visitor.ID, bobBot.ID, "q", "a", baseTime.Add(-time.Hour))
	_, _, err := env.sessions.EnsureOpen(ctx, visitor.ID, aliceBot.ID, baseTime.Add(-time.Hour))
	require.NoError(t, err)
	require.NoError(t, env.scans.Create(ctx, &model.QRScan{ChatbotID: aliceBot.ID, UserID: visitor.ID, ScannedAt: baseTime.Add(-60 * 24 * time.Hour)}))
	require.NoError(t, env.scans.Create(ctx, &model.QRScan{ChatbotID: aliceBot.ID, UserID: visitor.ID, ScannedAt: baseTime}))

	stats, err := env.reporting.OwnerStats(ctx, Principal{ID: alice.ID, Role: model.RoleSubAdmin})
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.TotalMessages)
	assert.EqualValues(t, 1, stats.ActiveSessions)
	assert.EqualValues(t, 2, stats.QRScans)
	assert.Equal(t, "+100.0%", stats.QRScansTrend)
	assert.True(t, stats.QRScansTrendUp)
	assert.Equal(t, "+0.0%", stats.SessionsTrend)

	all, err := env.reporting.OwnerStats(ctx, Principal{ID: bob.ID, Role: model.RoleAdmin})
	require.NoError(t, err)
	assert.EqualValues(t, 2, all.TotalMessages)
	assert.EqualValues(t, 1, all.UniqueUsers)
	assert.EqualValues(t, 1, all.AnonymousUsers)

	empty := env.user(t, "empty", model.RoleSubAdmin)
	none, err := env.reporting.OwnerStats(ctx, Principal{ID: empty.ID, Role: model.RoleSubAdmin})
	require.NoError(t, err)
	assert.Zero(t, none.TotalMessages)
	assert.Equal(t, "0.0%", none.MessagesTrend)
}

func TestReportingService_GroupedThreads(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.user(t, "owner", model.RoleSubAdmin)
	visitor := env.user(t, "visitor", model.RoleUser)
	anonymous := env.user(t, "", model.RoleUser)
	ghost := env.user(t, "ghost", model.RoleUser)
	chatbot := env.chatbot(t, "support", owner.ID)

	first := env.entry(t, anonymous.ID, chatbot.ID, "where is my refund", "processing", baseTime.Add(-2*time.Hour))
	second := env.entry(t, anonymous.ID, chatbot.ID, "ok", "", baseTime.Add(-time.Hour))
	env.entry(t, visitor.ID, chatbot.ID, "hello", "hi", baseTime.Add(-48*time.Hour))
	env.entry(t, ghost.ID, chatbot.ID, "boo", "", baseTime.Add(-30*time.Minute))
	_, err := env.users.Delete(ctx, ghost.ID)
	require.NoError(t, err)
	_, _, err = env.sessions.EnsureOpen(ctx, anonymous.ID, chatbot.ID, baseTime.Add(-2*time.Hour))
	require.NoError(t, err)

	report, err := env.reporting.GroupedThreads(ctx, Principal{ID: owner.ID, Role: model.RoleSubAdmin}, ThreadFilter{})
	require.NoError(t, err)
	require.Len(t, report.Conversations, 2)

	thread := report.Conversations[0]
	assert.Equal(t, fmt.Sprintf("%d-%d", anonymous.ID, chatbot.ID), thread.ID)
	assert.Equal(t, "Anonymous", thread.UserName)
	assert.Nil(t, thread.UserEmail)
	assert.True(t, thread.IsAnonymous)
	assert.Equal(t, ThreadStatusActive, thread.Status)
	assert.Equal(t, model.DefaultPrimaryColor, thread.ChatbotPrimaryColor)
	assert.Equal(t, "ok", thread.LastMessage)
	assert.EqualValues(t, 2, thread.MessageCount)
	require.Len(t, thread.Messages, 2)
	assert.Equal(t, fmt.Sprint(second.ID), thread.Messages[0].ID)
	require.Len(t, thread.BotMessages, 1)
	assert.Equal(t, fmt.Sprintf("%d-bot", first.ID), thread.BotMessages[0].ID)
	assert.Equal(t, "bot", thread.BotMessages[0].Sender)

	assert.Equal(t, ThreadStatusEnded, report.Conversations[1].Status)
	assert.Equal(t, "visitor", report.Conversations[1].UserName)

	// rows, not threads: the deleted ghost's entry still counts
	assert.Equal(t, ThreadStats{TotalConversations: 4, TodaysConversations: 3, ActiveUsers: 3}, report.Stats)

	t.Run("search narrows threads", func(t *testing.T) {
		report, err := env.reporting.GroupedThreads(ctx, Principal{ID: owner.ID, Role: model.RoleSubAdmin}, ThreadFilter{Search: "refund"})
		require.NoError(t, err)
		require.Len(t, report.Conversations, 1)
		assert.Equal(t, "where is my refund", report.Conversations[0].LastMessage)
		assert.EqualValues(t, 1, report.Conversations[0].MessageCount)
		// today's count follows the search, the other two keep the whole scope
		assert.Equal(t, ThreadStats{TotalConversations: 4, TodaysConversations: 1, ActiveUsers: 3}, report.Stats)
	})

	t.Run("user filter narrows today only", func(t *testing.T) {
		report, err := env.reporting.GroupedThreads(ctx, Principal{ID: owner.ID, Role: model.RoleSubAdmin}, ThreadFilter{UserID: visitor.ID})
		require.NoError(t, err)
		require.Len(t, report.Conversations, 1)
		assert.Equal(t, ThreadStats{TotalConversations: 4, TodaysConversations: 0, ActiveUsers: 3}, report.Stats)
	})

	t.Run("other owners see nothing", func(t *testing.T) {
		stranger := env.user(t, "stranger", model.RoleSubAdmin)
		report, err := env.reporting.GroupedThreads(ctx, Principal{ID: stranger.ID, Role: model.RoleSubAdmin}, ThreadFilter{})
		require.NoError(t, err)
		assert.Empty(t, report.Conversations)
		assert.Zero(t, report.Stats.TotalConversations)
	})
}
