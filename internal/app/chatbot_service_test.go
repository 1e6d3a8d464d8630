package app

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"botdesk/internal/logger"
	"botdesk/internal/model"
)

func newTestChatbotService(env *testEnv) (*ChatbotService, *fakeStore, *fakePublisher) {
	store := newFakeStore()
	publisher := &fakePublisher{}
	svc := NewChatbotService(env.db, env.chatbots, env.documents, store, publisher, "https://bots.example.com/", logger.Nop())
	svc.uploader.now = fixedClock(baseTime)
	return svc, store, publisher
}

func pdfUpload(name string) Upload {
	return Upload{FileName: name, ContentType: "application/pdf", Data: []byte("%PDF-1.4")}
}

func TestChatbotService_Create(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.user(t, "owner", model.RoleSubAdmin)
	svc, store, publisher := newTestChatbotService(env)

	view, err := svc.Create(ctx, Principal{ID: owner.ID, Role: model.RoleSubAdmin}, CreateChatbotInput{
		Name:      " Help Desk ",
		Logo:      &Upload{FileName: "logo.png", ContentType: "image/png", Data: []byte{0x89, 'P', 'N', 'G'}},
		Documents: []Upload{pdfUpload("FAQ.PDF"), {FileName: "notes.txt", ContentType: "text/plain; charset=utf-8", Data: []byte("notes")}},
	})
	require.NoError(t, err)

	_, err = uuid.Parse(view.Slug)
	assert.NoError(t, err)
	assert.Equal(t, "Help Desk", view.Name)
	assert.Equal(t, owner.ID, view.OwnerID)
	assert.True(t, view.IsActive)
	assert.Equal(t, model.DefaultPrimaryColor, view.PrimaryColor)
	assert.True(t, strings.HasPrefix(view.QRCodeURL, "data:image/png;base64,"))
	assert.Equal(t, "https://bots.example.com/c/"+view.Slug, view.ChatbotURL)
	assert.Equal(t, 2, view.DocumentsCount)

	folder := fmt.Sprintf("uploads/help_desk+%d", view.ID)
	assert.Equal(t, fmt.Sprintf("https://cdn.test/%s/%d-logo.png", folder, baseTime.UnixMilli()), view.Logo)
	assert.Equal(t, "pdf", view.Documents[0].FileType)
	assert.Equal(t, "txt", view.Documents[1].FileType)
	assert.Len(t, store.objects, 3)
	assert.Equal(t, []model.IndexJobKind{model.IndexJobProcess}, publisher.kinds())
}

func TestChatbotService_CreateRejectsInput(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.user(t, "owner", model.RoleSubAdmin)
	svc, store, publisher := newTestChatbotService(env)
	principal := Principal{ID: owner.ID, Role: model.RoleSubAdmin}

	tests := []struct {
		name    string
		input   CreateChatbotInput
		wantErr error
	}{
		{name: "blank name", input: CreateChatbotInput{Name: "  "}, wantErr: ErrInvalidInput},
		{name: "disallowed type", input: CreateChatbotInput{Name: "bot", Documents: []Upload{{FileName: "a.exe", ContentType: "application/octet-stream", Data: []byte("x")}}}, wantErr: ErrUploadRejected},
		{name: "too large", input: CreateChatbotInput{Name: "bot", Documents: []Upload{{FileName: "a.pdf", ContentType: "application/pdf", Data: make([]byte, MaxChatbotUploadBytes+1)}}}, wantErr: ErrUploadRejected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, principal, tt.input)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	t.Run("storage failure rolls back", func(t *testing.T) {
		store.failPut = true
		defer func() { store.failPut = false }()
		_, err := svc.Create(ctx, principal, CreateChatbotInput{Name: "bot", Documents: []Upload{pdfUpload("a.pdf")}})
		assert.Error(t, err)

		chatbots, err := env.chatbots.ListByOwner(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, chatbots)
	})
	assert.Empty(t, publisher.kinds())
}

func TestChatbotService_UpdateAndOwnership(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.user(t, "owner", model.RoleSubAdmin)
	other := env.user(t, "other", model.RoleSubAdmin)
	admin := env.user(t, "admin", model.RoleAdmin)
	svc, _, publisher := newTestChatbotService(env)

	created, err := svc.Create(ctx, Principal{ID: owner.ID, Role: model.RoleSubAdmin}, CreateChatbotInput{Name: "bot", Description: "first"})
	require.NoError(t, err)
	assert.Empty(t, publisher.kinds())

	color := "#000000"
	updated, err := svc.Update(ctx, Principal{ID: owner.ID, Role: model.RoleSubAdmin}, created.ID, UpdateChatbotInput{
		PrimaryColor: &color,
		Documents:    []Upload{pdfUpload("guide.pdf")},
	})
	require.NoError(t, err)
	assert.Equal(t, "#000000", updated.PrimaryColor)
	assert.Equal(t, "first", updated.Description)
	assert.Equal(t, 1, updated.DocumentsCount)
	assert.Equal(t, []model.IndexJobKind{model.IndexJobProcess}, publisher.kinds())

	_, err = svc.Update(ctx, Principal{ID: other.ID, Role: model.RoleSubAdmin}, created.ID, UpdateChatbotInput{PrimaryColor: &color})
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = svc.GetForEdit(ctx, Principal{ID: other.ID, Role: model.RoleSubAdmin}, created.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = svc.GetForEdit(ctx, Principal{ID: admin.ID, Role: model.RoleAdmin}, created.ID)
	assert.NoError(t, err)
	_, err = svc.GetForEdit(ctx, Principal{ID: owner.ID, Role: model.RoleSubAdmin}, 999)
	assert.ErrorIs(t, err, ErrChatbotNotFound)

	blank := " "
	_, err = svc.Update(ctx, Principal{ID: owner.ID, Role: model.RoleSubAdmin}, created.ID, UpdateChatbotInput{Name: &blank})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestChatbotService_Listings(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.user(t, "alice", model.RoleSubAdmin)
	admin := env.user(t, "admin", model.RoleAdmin)
	svc, _, _ := newTestChatbotService(env)

	_, err := svc.Create(ctx, Principal{ID: alice.ID, Role: model.RoleSubAdmin}, CreateChatbotInput{Name: "alice bot"})
	require.NoError(t, err)
	adminBot, err := svc.Create(ctx, Principal{ID: admin.ID, Role: model.RoleAdmin}, CreateChatbotInput{Name: "admin bot"})
	require.NoError(t, err)

	mine, err := svc.ListMine(ctx, Principal{ID: admin.ID, Role: model.RoleAdmin})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, adminBot.ID, mine[0].ID)

	all, err := svc.List(ctx, Principal{ID: admin.ID, Role: model.RoleAdmin})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	codes, err := svc.ListQRCodes(ctx, Principal{ID: alice.ID, Role: model.RoleSubAdmin})
	require.NoError(t, err)
	require.Len(t, codes, 1)
	assert.Equal(t, "alice bot", codes[0].Name)

	regenerated, err := svc.RegenerateQRCode(ctx, Principal{ID: admin.ID, Role: model.RoleAdmin}, codes[0].ID)
	require.NoError(t, err)
	assert.Equal(t, codes[0].QRCodeURL, regenerated.QRCodeURL)
}

func TestChatbotService_UploadDocuments(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.user(t, "owner", model.RoleSubAdmin)
	svc, _, publisher := newTestChatbotService(env)
	principal := Principal{ID: owner.ID, Role: model.RoleSubAdmin}

	created, err := svc.Create(ctx, principal, CreateChatbotInput{Name: "bot"})
	require.NoError(t, err)

	docs, err := svc.UploadDocuments(ctx, principal, created.ID, []Upload{pdfUpload("a.pdf"), pdfUpload("b.pdf")})
	require.NoError(t, err)
	assert.Len(t, docs, 2)
	assert.NotZero(t, docs[0].ID)
	assert.Equal(t, []model.IndexJobKind{model.IndexJobProcess}, publisher.kinds())

	_, err = svc.UploadDocuments(ctx, principal, created.ID, nil)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestFolderKey(t *testing.T) {
	assert.Equal(t, "uploads/my_bot__v2_+7", folderKey("My Bot (v2)", 7))
	assert.Equal(t, "uploads/x+1/1700000000000-report.pdf", objectKey("uploads/x+1", "../report.pdf", time.UnixMilli(1700000000000)))
}
