package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const pollInterval = 500 * time.Millisecond

// HTTPClient talks to a Coze-compatible chat API over HTTP/JSON.
type HTTPClient struct {
	log     *slog.Logger
	baseURL string
	apiKey  string
	http    *http.Client
}

var _ Client = (*HTTPClient)(nil)

func NewHTTPClient(log *slog.Logger, baseURL, apiKey string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &HTTPClient{
		log:     log,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}
}

// BaseURL returns the configured API base, without a trailing slash.
func (c *HTTPClient) BaseURL() string {
	return c.baseURL
}

type conversationResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
}

func (c *HTTPClient) CreateConversation(ctx context.Context) (string, error) {
	var out conversationResponse
	if err := c.postJSON(ctx, "/v1/conversation/create", nil, map[string]any{}, &out); err != nil {
		return "", fmt.Errorf("create conversation: %w", err)
	}
	if out.Code != 0 {
		return "", fmt.Errorf("create conversation: backend code %d: %s", out.Code, out.Msg)
	}
	return out.Data.ID, nil
}

type chatResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data struct {
		ID             string `json:"id"`
		ConversationID string `json:"conversation_id"`
		Status         string `json:"status"`
	} `json:"data"`
}

type messageListResponse struct {
	Code int       `json:"code"`
	Msg  string    `json:"msg"`
	Data []Message `json:"data"`
}

func (c *HTTPClient) CreateChatMessage(ctx context.Context, req ChatRequest) ([]Message, error) {
	additional := make([]Message, 0, len(req.History)+1)
	additional = append(additional, req.History...)
	additional = append(additional, NewUserText(req.Query))

	body := map[string]any{
		"bot_id":              req.BotID,
		"user_id":             req.UserID,
		"auto_save_history":   true,
		"additional_messages": additional,
	}
	query := url.Values{}
	if req.ConversationID != "" {
		query.Set("conversation_id", req.ConversationID)
	}

	var chat chatResponse
	if err := c.postJSON(ctx, "/v3/chat", query, body, &chat); err != nil {
		return nil, fmt.Errorf("create chat: %w", err)
	}
	if chat.Code != 0 {
		return nil, fmt.Errorf("create chat: backend code %d: %s", chat.Code, chat.Msg)
	}

	chatID := chat.Data.ID
	conversationID := chat.Data.ConversationID
	status := chat.Data.Status
	for status != "completed" {
		if status == "failed" || status == "requires_action" {
			return nil, fmt.Errorf("chat %s ended with status %s", chatID, status)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(pollInterval):
		}
		retrieved, err := c.retrieveChat(ctx, conversationID, chatID)
		if err != nil {
			return nil, err
		}
		status = retrieved
	}

	listQuery := url.Values{}
	listQuery.Set("conversation_id", conversationID)
	listQuery.Set("chat_id", chatID)
	var list messageListResponse
	if err := c.getJSON(ctx, "/v3/chat/message/list", listQuery, &list); err != nil {
		return nil, fmt.Errorf("list chat messages: %w", err)
	}
	if list.Code != 0 {
		return nil, fmt.Errorf("list chat messages: backend code %d: %s", list.Code, list.Msg)
	}
	c.log.Debug("chat turn completed",
		slog.String("chat_id", chatID),
		slog.String("conversation_id", conversationID),
		slog.Int("messages", len(list.Data)))
	return list.Data, nil
}

func (c *HTTPClient) retrieveChat(ctx context.Context, conversationID, chatID string) (string, error) {
	query := url.Values{}
	query.Set("conversation_id", conversationID)
	query.Set("chat_id", chatID)
	var out chatResponse
	if err := c.getJSON(ctx, "/v3/chat/retrieve", query, &out); err != nil {
		return "", fmt.Errorf("retrieve chat: %w", err)
	}
	if out.Code != 0 {
		return "", fmt.Errorf("retrieve chat: backend code %d: %s", out.Code, out.Msg)
	}
	return out.Data.Status, nil
}

type fileUploadResponse struct {
	Code int        `json:"code"`
	Msg  string     `json:"msg"`
	Data FileHandle `json:"data"`
}

func (c *HTTPClient) UploadFile(ctx context.Context, path string) (FileHandle, error) {
	file, err := os.Open(path)
	if err != nil {
		return FileHandle{}, fmt.Errorf("upload file: %w", err)
	}
	defer file.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return FileHandle{}, fmt.Errorf("upload file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return FileHandle{}, fmt.Errorf("upload file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return FileHandle{}, fmt.Errorf("upload file: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/files/upload", &buf)
	if err != nil {
		return FileHandle{}, fmt.Errorf("upload file: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	c.authorize(req)

	var out fileUploadResponse
	if err := c.do(req, &out); err != nil {
		return FileHandle{}, fmt.Errorf("upload file: %w", err)
	}
	if out.Code != 0 {
		return FileHandle{}, fmt.Errorf("upload file: backend code %d: %s", out.Code, out.Msg)
	}
	return out.Data, nil
}

// FileMessage wraps an uploaded file as an object_string user message so it
// can be injected ahead of a text query.
func (c *HTTPClient) FileMessage(file FileHandle) Message {
	payload, _ := json.Marshal([]map[string]string{
		{"type": "image", "file_id": file.ID},
	})
	return Message{
		Role:        RoleUser,
		ContentType: ContentTypeObjectString,
		Content:     string(payload),
	}
}

func (c *HTTPClient) postJSON(ctx context.Context, path string, query url.Values, body any, out any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return err
	}
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(encoded))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)
	return c.do(req, out)
}

func (c *HTTPClient) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	c.authorize(req)
	return c.do(req, out)
}

func (c *HTTPClient) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

func (c *HTTPClient) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("backend returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode backend response: %w", err)
	}
	return nil
}
