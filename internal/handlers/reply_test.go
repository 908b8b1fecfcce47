package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaybot/relaybot/internal/backend"
	"github.com/relaybot/relaybot/internal/bot"
	"github.com/relaybot/relaybot/internal/channel"
	"github.com/relaybot/relaybot/internal/config"
	"github.com/relaybot/relaybot/internal/reply"
	"github.com/relaybot/relaybot/internal/session"
)

type stubClient struct{}

func (stubClient) CreateConversation(ctx context.Context) (string, error) {
	return "conv-1", nil
}

func (stubClient) CreateChatMessage(ctx context.Context, req backend.ChatRequest) ([]backend.Message, error) {
	return []backend.Message{{
		Role:        backend.RoleAssistant,
		Type:        backend.MessageTypeAnswer,
		ContentType: backend.ContentTypeText,
		Content:     "pong: " + req.Query,
	}}, nil
}

func (stubClient) UploadFile(ctx context.Context, path string) (backend.FileHandle, error) {
	return backend.FileHandle{ID: "file-1"}, nil
}

func (stubClient) FileMessage(file backend.FileHandle) backend.Message {
	return backend.Message{Role: backend.RoleUser, ContentType: backend.ContentTypeObjectString, Content: file.ID}
}

type stubDownloader struct{}

func (stubDownloader) DownloadImage(ctx context.Context, url string) ([]byte, error) {
	return []byte("img"), nil
}

func (stubDownloader) DownloadFile(ctx context.Context, url string) (string, error) {
	return "/tmp/stub", nil
}

func newTestServer(t *testing.T) *echo.Echo {
	t.Helper()
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	sessions := session.NewManager(log, session.Options{TTL: time.Minute, MaxHistoryLen: 10, MaxTokens: 1000})
	composer := reply.NewComposer(log, "https://api.example.com", stubDownloader{})
	facade, err := bot.NewFacade(log, config.BotConfig{
		ChannelType: "wx",
		ErrorReply:  "error",
	}, "bot-1", sessions, stubClient{}, composer, channel.NewRegistry(), bot.NewImageCache(time.Minute), time.Minute)
	require.NoError(t, err)

	e := echo.New()
	NewPingHandler(log).Register(e)
	NewReplyHandler(log, facade).Register(e)
	return e
}

func doJSON(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestPing(t *testing.T) {
	t.Parallel()

	e := newTestServer(t)
	rec := doJSON(e, http.MethodGet, "/ping", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestReplyEndpoint(t *testing.T) {
	t.Parallel()

	e := newTestServer(t)
	rec := doJSON(e, http.MethodPost, "/reply",
		`{"query":"hello","session_id":"s1","need_reply":true,"other_user_id":"u1"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"type":"text"`)
	assert.Contains(t, rec.Body.String(), "pong: hello")
}

func TestReplyEndpointRequiresQuery(t *testing.T) {
	t.Parallel()

	e := newTestServer(t)
	rec := doJSON(e, http.MethodPost, "/reply", `{"session_id":"s1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReplyEndpointRecordOnly(t *testing.T) {
	t.Parallel()

	e := newTestServer(t)
	rec := doJSON(e, http.MethodPost, "/reply",
		`{"query":"note","session_id":"s1","need_reply":false,"other_user_id":"u1"}`)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Zero(t, rec.Body.Len())
}

func TestCacheImageEndpoint(t *testing.T) {
	t.Parallel()

	e := newTestServer(t)
	rec := doJSON(e, http.MethodPost, "/images", `{"session_id":"s1","path":"/tmp/cat.png"}`)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(e, http.MethodPost, "/images", `{"session_id":"s1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestClearSessionEndpoints(t *testing.T) {
	t.Parallel()

	e := newTestServer(t)
	rec := doJSON(e, http.MethodDelete, "/sessions/s1?group_id=g1", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(e, http.MethodDelete, "/sessions", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
