package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"botdesk/internal/app"
	"botdesk/internal/logger"
	"botdesk/internal/transport/http/response"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func decode(t *testing.T, w *httptest.ResponseRecorder) response.APIResponse {
	t.Helper()
	var body response.APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   int
	}{
		{name: "invalid input", err: app.ErrInvalidInput, status: http.StatusBadRequest, code: response.CodeBadRequest},
		{name: "empty message", err: app.ErrMessageEmpty, status: http.StatusBadRequest, code: response.CodeBadRequest},
		{name: "wrapped upload rejection", err: fmt.Errorf("logo.gif: %w", app.ErrUploadRejected), status: http.StatusBadRequest, code: response.CodeBadRequest},
		{name: "bad credentials", err: app.ErrInvalidCredential, status: http.StatusUnauthorized, code: response.CodeInvalidCredentials},
		{name: "forbidden", err: app.ErrForbidden, status: http.StatusForbidden, code: response.CodeForbidden},
		{name: "no session", err: app.ErrSessionNotFound, status: http.StatusNotFound, code: response.CodeSessionNotFound},
		{name: "no chatbot", err: app.ErrChatbotNotFound, status: http.StatusNotFound, code: response.CodeChatbotNotFound},
		{name: "no user", err: app.ErrUserNotFound, status: http.StatusNotFound, code: response.CodeUserNotFound},
		{name: "no conversation", err: app.ErrConversationNotFound, status: http.StatusNotFound, code: response.CodeConversationNotFound},
		{name: "no document", err: app.ErrDocumentNotFound, status: http.StatusNotFound, code: response.CodeDocumentNotFound},
		{name: "duplicate email", err: app.ErrEmailExists, status: http.StatusConflict, code: response.CodeEmailExists},
		{name: "unexpected", err: errors.New("disk on fire"), status: http.StatusInternalServerError, code: response.CodeInternalServer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

			writeError(c, logger.Nop(), tt.err, "request failed")

			assert.Equal(t, tt.status, w.Code)
			body := decode(t, w)
			assert.Equal(t, tt.code, body.Code)
			if tt.status == http.StatusInternalServerError {
				assert.Equal(t, "request failed", body.Message)
			}
		})
	}

	t.Run("canceled request writes nothing", func(t *testing.T) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

		writeError(c, logger.Nop(), context.Canceled, "request failed")

		assert.True(t, c.IsAborted())
		assert.Empty(t, w.Body.String())
	})
}

func TestParseID(t *testing.T) {
	tests := []struct {
		raw string
		id  uint
		ok  bool
	}{
		{raw: "12", id: 12, ok: true},
		{raw: "0", ok: false},
		{raw: "-3", ok: false},
		{raw: "abc", ok: false},
		{raw: "", ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)

			id, ok := parseID(c, tt.raw)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.id, id)
			if !ok {
				assert.Equal(t, http.StatusBadRequest, w.Code)
			}
		})
	}
}

func multipartForm(t *testing.T, fields map[string]string, files map[string][]byte) *multipart.Form {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for name, data := range files {
		fw, err := mw.CreateFormFile("documents", name)
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	form, err := multipart.NewReader(&buf, mw.Boundary()).ReadForm(1 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = form.RemoveAll() })
	return form
}

func TestReadUploads(t *testing.T) {
	form := multipartForm(t,
		map[string]string{"name": "Support"},
		map[string][]byte{"faq.txt": bytes.Repeat([]byte("a"), 64)},
	)

	t.Run("truncates past the limit plus one", func(t *testing.T) {
		uploads, err := readUploads(form, "documents", 10)
		require.NoError(t, err)
		require.Len(t, uploads, 1)
		assert.Equal(t, "faq.txt", uploads[0].FileName)
		assert.EqualValues(t, 11, uploads[0].Size())
	})

	t.Run("missing field", func(t *testing.T) {
		uploads, err := readUploads(form, "logo", 10)
		require.NoError(t, err)
		assert.Empty(t, uploads)
	})

	t.Run("form values", func(t *testing.T) {
		name := formValue(form, "name")
		require.NotNil(t, name)
		assert.Equal(t, "Support", *name)
		assert.Nil(t, formValue(form, "description"))
		assert.Nil(t, formValue(nil, "name"))
	})
}
