package app

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"botdesk/internal/model"
	"botdesk/internal/repository"
	"botdesk/internal/repository/specification"
)

const (
	trendWindow         = 30 * 24 * time.Hour
	activeSessionWindow = 24 * time.Hour

	ThreadStatusActive = "active"
	ThreadStatusEnded  = "ended"
)

// Trend compares a metric with its value as of one window ago.
type Trend struct {
	Current      int64
	Previous     int64
	DeltaPercent float64
	Up           bool
}

// ComputeTrend returns a zero delta when there is no previous value.
func ComputeTrend(current, previous int64) Trend {
	t := Trend{Current: current, Previous: previous, Up: current > previous}
	if previous > 0 {
		t.DeltaPercent = float64(current-previous) / float64(previous) * 100
	}
	return t
}

// Label renders the delta the way the dashboard shows it, e.g. "+150.0%".
func (t Trend) Label() string {
	sign := ""
	if t.Up {
		sign = "+"
	}
	return fmt.Sprintf("%s%.1f%%", sign, t.DeltaPercent)
}

type ChatbotStats struct {
	TotalMessages   int64  `json:"totalMessages"`
	MessagesTrend   string `json:"messagesTrend"`
	MessagesTrendUp bool   `json:"messagesTrendUp"`
	UniqueUsers     int64  `json:"uniqueUsers"`
	AnonymousUsers  int64  `json:"anonymousUsers"`
	ActiveSessions  int64  `json:"activeSessions"`
	QRScans         int64  `json:"qrScans"`
}

type OwnerStats struct {
	ChatbotStats
	SessionsTrend   string `json:"sessionsTrend"`
	SessionsTrendUp bool   `json:"sessionsTrendUp"`
	QRScansTrend    string `json:"qrScansTrend"`
	QRScansTrendUp  bool   `json:"qrScansTrendUp"`
}

type ThreadMessage struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Sender    string    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
}

type Thread struct {
	ID                  string          `json:"id"`
	UserID              uint            `json:"userId"`
	UserName            string          `json:"userName"`
	UserEmail           *string         `json:"userEmail"`
	IsAnonymous         bool            `json:"isAnonymous"`
	ChatbotID           uint            `json:"chatbotId"`
	ChatbotName         string          `json:"chatbotName"`
	ChatbotLogo         string          `json:"chatbotLogo"`
	ChatbotPrimaryColor string          `json:"chatbotPrimaryColor"`
	LastMessage         string          `json:"lastMessage"`
	MessageCount        int64           `json:"messageCount"`
	CreatedAt           time.Time       `json:"createdAt"`
	Status              string          `json:"status"`
	Messages            []ThreadMessage `json:"messages"`
	BotMessages         []ThreadMessage `json:"botMessages"`
}

type ThreadStats struct {
	TotalConversations  int64 `json:"totalConversations"`
	TodaysConversations int64 `json:"todaysConversations"`
	ActiveUsers         int64 `json:"activeUsers"`
}

type ThreadsReport struct {
	Conversations []Thread    `json:"conversations"`
	Stats         ThreadStats `json:"stats"`
}

// ThreadFilter narrows the thread listing inside the caller's owner scope.
type ThreadFilter struct {
	UserID    uint
	ChatbotID uint
	Search    string
}

// ReportingService computes dashboard metrics straight from the ledger,
// session and scan tables on every call.
type ReportingService struct {
	ledger        *ConversationLedger
	tracker       *SessionTracker
	conversations *repository.ConversationRepository
	sessions      *repository.SessionRepository
	scans         *repository.QRScanRepository
	chatbots      *repository.ChatbotRepository
	users         *repository.UserRepository
	now           func() time.Time
}

func NewReportingService(
	ledger *ConversationLedger,
	tracker *SessionTracker,
	conversations *repository.ConversationRepository,
	sessions *repository.SessionRepository,
	scans *repository.QRScanRepository,
	chatbots *repository.ChatbotRepository,
	users *repository.UserRepository,
) *ReportingService {
	return &ReportingService{
		ledger:        ledger,
		tracker:       tracker,
		conversations: conversations,
		sessions:      sessions,
		scans:         scans,
		chatbots:      chatbots,
		users:         users,
		now:           time.Now,
	}
}

// TrendOver evaluates metric now and as of one window ago.
func (s *ReportingService) TrendOver(ctx context.Context, window time.Duration, metric func(ctx context.Context, before *time.Time) (int64, error)) (Trend, error) {
	current, err := metric(ctx, nil)
	if err != nil {
		return Trend{}, err
	}
	cutoff := s.now().Add(-window)
	previous, err := metric(ctx, &cutoff)
	if err != nil {
		return Trend{}, err
	}
	return ComputeTrend(current, previous), nil
}

func (s *ReportingService) TotalMessages(ctx context.Context, chatbotIDs []uint) (int64, error) {
	return s.conversations.Count(ctx, specification.ByChatbots{ChatbotIDs: chatbotIDs})
}

func (s *ReportingService) UniqueUsers(ctx context.Context, chatbotIDs []uint) (int64, error) {
	return s.conversations.CountDistinctUsers(ctx, specification.ByChatbots{ChatbotIDs: chatbotIDs})
}

func (s *ReportingService) ChatbotStats(ctx context.Context, principal Principal, chatbotID uint) (*ChatbotStats, error) {
	if chatbotID == 0 {
		return nil, ErrInvalidInput
	}
	chatbot, err := s.chatbots.GetByID(ctx, chatbotID)
	if err != nil {
		return nil, err
	}
	if chatbot == nil {
		return nil, ErrChatbotNotFound
	}
	if !principal.Owns(chatbot.OwnerID) {
		return nil, ErrForbidden
	}
	return s.scopeStats(ctx, []uint{chatbotID})
}

func (s *ReportingService) OwnerStats(ctx context.Context, principal Principal) (*OwnerStats, error) {
	chatbotIDs, err := s.chatbots.IDsByOwner(ctx, principal.OwnerScope())
	if err != nil {
		return nil, err
	}
	base, err := s.scopeStats(ctx, chatbotIDs)
	if err != nil {
		return nil, err
	}

	now := s.now()
	activeSince := now.Add(-activeSessionWindow)
	previousFrom := now.Add(-trendWindow - activeSessionWindow)

	var previousSessions int64
	var scanTrend Trend
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		previousSessions, err = s.sessions.CountOpenStarted(gctx, chatbotIDs, &previousFrom, &activeSince)
		return err
	})
	g.Go(func() error {
		var err error
		scanTrend, err = s.TrendOver(gctx, trendWindow, func(ctx context.Context, before *time.Time) (int64, error) {
			return s.scans.Count(ctx, chatbotIDs, before)
		})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sessionTrend := ComputeTrend(base.ActiveSessions, previousSessions)
	return &OwnerStats{
		ChatbotStats:    *base,
		SessionsTrend:   sessionTrend.Label(),
		SessionsTrendUp: sessionTrend.Up,
		QRScansTrend:    scanTrend.Label(),
		QRScansTrendUp:  scanTrend.Up,
	}, nil
}

func (s *ReportingService) scopeStats(ctx context.Context, chatbotIDs []uint) (*ChatbotStats, error) {
	var (
		stats   ChatbotStats
		msgTrnd Trend
	)
	activeSince := s.now().Add(-activeSessionWindow)
	scope := specification.ByChatbots{ChatbotIDs: chatbotIDs}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		msgTrnd, err = s.TrendOver(gctx, trendWindow, func(ctx context.Context, before *time.Time) (int64, error) {
			if before == nil {
				return s.conversations.Count(ctx, scope)
			}
			return s.conversations.Count(ctx, scope, specification.CreatedBefore{At: *before})
		})
		return err
	})
	g.Go(func() error {
		var err error
		stats.UniqueUsers, err = s.UniqueUsers(gctx, chatbotIDs)
		return err
	})
	g.Go(func() error {
		var err error
		stats.AnonymousUsers, err = s.conversations.CountDistinctAnonymousUsers(gctx, scope)
		return err
	})
	g.Go(func() error {
		var err error
		stats.ActiveSessions, err = s.tracker.CountActive(gctx, chatbotIDs, activeSince)
		return err
	})
	g.Go(func() error {
		var err error
		stats.QRScans, err = s.scans.Count(gctx, chatbotIDs, nil)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	stats.TotalMessages = msgTrnd.Current
	stats.MessagesTrend = msgTrnd.Label()
	stats.MessagesTrendUp = msgTrnd.Up
	return &stats, nil
}

// GroupedThreads builds one thread per (user, chatbot) pair visible to the
// caller. Pairs whose user or chatbot has disappeared are skipped.
func (s *ReportingService) GroupedThreads(ctx context.Context, principal Principal, filter ThreadFilter) (*ThreadsReport, error) {
	ledgerFilter := ConversationFilter{
		OwnerID:   principal.OwnerScope(),
		ChatbotID: filter.ChatbotID,
		UserID:    filter.UserID,
		Search:    filter.Search,
	}
	groups, err := s.ledger.GroupByUserAndChatbot(ctx, ledgerFilter)
	if err != nil {
		return nil, err
	}

	userIDs, chatbotIDs := pairIDs(groups)
	users, err := s.users.ListByIDs(ctx, userIDs)
	if err != nil {
		return nil, err
	}
	chatbots, err := s.chatbots.ListByIDs(ctx, chatbotIDs)
	if err != nil {
		return nil, err
	}
	openKeys, err := s.tracker.OpenPairs(ctx, userIDs, chatbotIDs)
	if err != nil {
		return nil, err
	}
	entries, err := s.ledger.Entries(ctx, ledgerFilter)
	if err != nil {
		return nil, err
	}

	usersByID := make(map[uint]model.User, len(users))
	for _, u := range users {
		usersByID[u.ID] = u
	}
	chatbotsByID := make(map[uint]model.Chatbot, len(chatbots))
	for _, c := range chatbots {
		chatbotsByID[c.ID] = c
	}
	entriesByPair := make(map[string][]model.Conversation)
	for _, e := range entries {
		key := model.SessionOpenKey(e.UserID, e.ChatbotID)
		entriesByPair[key] = append(entriesByPair[key], e)
	}

	threads := make([]Thread, 0, len(groups))
	for _, group := range groups {
		user, ok := usersByID[group.UserID]
		if !ok {
			continue
		}
		chatbot, ok := chatbotsByID[group.ChatbotID]
		if !ok {
			continue
		}
		key := model.SessionOpenKey(group.UserID, group.ChatbotID)
		status := ThreadStatusEnded
		if _, open := openKeys[key]; open {
			status = ThreadStatusActive
		}

		pairEntries := entriesByPair[key]
		messages := make([]ThreadMessage, 0, len(pairEntries))
		botMessages := make([]ThreadMessage, 0, len(pairEntries))
		for _, e := range pairEntries {
			messages = append(messages, ThreadMessage{
				ID:        strconv.FormatUint(uint64(e.ID), 10),
				Content:   e.Question,
				Sender:    "user",
				Timestamp: e.CreatedAt,
			})
			if e.Answer != "" {
				botMessages = append(botMessages, ThreadMessage{
					ID:        fmt.Sprintf("%d-bot", e.ID),
					Content:   e.Answer,
					Sender:    "bot",
					Timestamp: e.CreatedAt,
				})
			}
		}

		threads = append(threads, Thread{
			ID:                  fmt.Sprintf("%d-%d", group.UserID, group.ChatbotID),
			UserID:              group.UserID,
			UserName:            user.DisplayName(),
			UserEmail:           user.Email,
			IsAnonymous:         user.IsAnonymous,
			ChatbotID:           group.ChatbotID,
			ChatbotName:         chatbot.Name,
			ChatbotLogo:         chatbot.LogoURL,
			ChatbotPrimaryColor: chatbot.Color(),
			LastMessage:         group.LastQuestion,
			MessageCount:        group.Count,
			CreatedAt:           group.LastCreatedAt,
			Status:              status,
			Messages:            messages,
			BotMessages:         botMessages,
		})
	}

	stats, err := s.threadStats(ctx, principal, ledgerFilter)
	if err != nil {
		return nil, err
	}
	return &ThreadsReport{Conversations: threads, Stats: *stats}, nil
}

// threadStats counts ledger rows rather than threads. Total and active users
// cover the caller's whole scope; today's count honours the active filter.
func (s *ReportingService) threadStats(ctx context.Context, principal Principal, filter ConversationFilter) (*ThreadStats, error) {
	now := s.now()
	year, month, day := now.Date()
	midnight := time.Date(year, month, day, 0, 0, 0, 0, now.Location())

	scope := ConversationFilter{OwnerID: principal.OwnerScope()}.specs()
	todaySpecs := append(filter.specs(), specification.CreatedSince{At: midnight})

	var stats ThreadStats
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		stats.TotalConversations, err = s.conversations.Count(gctx, scope...)
		return err
	})
	g.Go(func() error {
		var err error
		stats.TodaysConversations, err = s.conversations.Count(gctx, todaySpecs...)
		return err
	})
	g.Go(func() error {
		var err error
		stats.ActiveUsers, err = s.conversations.CountDistinctUsers(gctx, scope...)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &stats, nil
}

func pairIDs(groups []ConversationGroup) ([]uint, []uint) {
	seenUsers := make(map[uint]struct{})
	seenChatbots := make(map[uint]struct{})
	var userIDs, chatbotIDs []uint
	for _, g := range groups {
		if _, ok := seenUsers[g.UserID]; !ok {
			seenUsers[g.UserID] = struct{}{}
			userIDs = append(userIDs, g.UserID)
		}
		if _, ok := seenChatbots[g.ChatbotID]; !ok {
			seenChatbots[g.ChatbotID] = struct{}{}
			chatbotIDs = append(chatbotIDs, g.ChatbotID)
		}
	}
	return userIDs, chatbotIDs
}
