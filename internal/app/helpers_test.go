package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"botdesk/internal/logger"
	"botdesk/internal/model"
	"botdesk/internal/repository"
)

var baseTime = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

type testEnv struct {
	db            *gorm.DB
	users         *repository.UserRepository
	chatbots      *repository.ChatbotRepository
	documents     *repository.DocumentRepository
	conversations *repository.ConversationRepository
	sessions      *repository.SessionRepository
	scans         *repository.QRScanRepository
	settings      *repository.PlatformSettingRepository
	ledger        *ConversationLedger
	tracker       *SessionTracker
	reporting     *ReportingService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&model.User{},
		&model.Chatbot{},
		&model.Document{},
		&model.Conversation{},
		&model.Session{},
		&model.QRScan{},
		&model.PlatformSetting{},
	))

	env := &testEnv{
		db:            db,
		users:         repository.NewUserRepository(db),
		chatbots:      repository.NewChatbotRepository(db),
		documents:     repository.NewDocumentRepository(db),
		conversations: repository.NewConversationRepository(db),
		sessions:      repository.NewSessionRepository(db),
		scans:         repository.NewQRScanRepository(db),
		settings:      repository.NewPlatformSettingRepository(db),
	}
	env.ledger = NewConversationLedger(env.conversations, env.chatbots, env.users, nil, logger.Nop())
	env.ledger.now = fixedClock(baseTime)
	env.tracker = NewSessionTracker(env.sessions)
	env.tracker.now = fixedClock(baseTime)
	env.reporting = NewReportingService(env.ledger, env.tracker, env.conversations, env.sessions, env.scans, env.chatbots, env.users)
	env.reporting.now = fixedClock(baseTime)
	return env
}

func (e *testEnv) user(t *testing.T, name string, role model.Role) *model.User {
	t.Helper()
	user := &model.User{Name: name, Role: role}
	if name != "" {
		email := name + "@example.com"
		user.Email = &email
	} else {
		user.IsAnonymous = true
	}
	require.NoError(t, e.users.Create(context.Background(), user))
	return user
}

func (e *testEnv) chatbot(t *testing.T, name string, ownerID uint) *model.Chatbot {
	t.Helper()
	chatbot := &model.Chatbot{Slug: "slug-" + name, Name: name, IsActive: true, OwnerID: ownerID}
	require.NoError(t, e.chatbots.Create(context.Background(), chatbot))
	return chatbot
}

// entry writes a ledger row directly with an explicit timestamp.
func (e *testEnv) entry(t *testing.T, userID, chatbotID uint, question, answer string, at time.Time) *model.Conversation {
	t.Helper()
	row := &model.Conversation{UserID: userID, ChatbotID: chatbotID, Question: question, Answer: answer, CreatedAt: at}
	require.NoError(t, e.conversations.Create(context.Background(), row))
	return row
}

type fakeStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
	failPut bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: map[string][]byte{}}
}

func (f *fakeStore) Put(_ context.Context, key string, data []byte, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failPut {
		return "", errors.New("bucket unavailable")
	}
	f.objects[key] = data
	return "https://cdn.test/" + key, nil
}

func (f *fakeStore) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	f.deleted = append(f.deleted, key)
	return nil
}

type fakePublisher struct {
	mu   sync.Mutex
	jobs []model.IndexJob
}

func (f *fakePublisher) Publish(_ context.Context, job model.IndexJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs = append(f.jobs, job)
	return nil
}

func (f *fakePublisher) kinds() []model.IndexJobKind {
	f.mu.Lock()
	defer f.mu.Unlock()
	kinds := make([]model.IndexJobKind, 0, len(f.jobs))
	for _, j := range f.jobs {
		kinds = append(kinds, j.Kind)
	}
	return kinds
}
