// Package backend defines the message model and client contract for the
// conversational-AI backend, plus an HTTP implementation.
package backend

import (
	"context"
	"strings"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ContentType describes how Message.Content is encoded.
type ContentType string

const (
	ContentTypeText         ContentType = "text"
	ContentTypeObjectString ContentType = "object_string"
)

// MessageType classifies a message within a chat turn. Only answers carry
// user-visible content; the rest are backend bookkeeping.
type MessageType string

const (
	MessageTypeQuestion MessageType = "question"
	MessageTypeAnswer   MessageType = "answer"
	MessageTypeFollowUp MessageType = "follow_up"
	MessageTypeVerbose  MessageType = "verbose"
)

// Message is one entry in a conversation, both in client-side history and
// in backend responses.
type Message struct {
	Role        Role        `json:"role"`
	Type        MessageType `json:"type,omitempty"`
	ContentType ContentType `json:"content_type"`
	Content     string      `json:"content"`
}

// IsAnswer reports whether the message is an answer part of a turn.
func (m Message) IsAnswer() bool {
	return m.Type == MessageTypeAnswer
}

// NewUserText builds a plain-text user message.
func NewUserText(content string) Message {
	return Message{Role: RoleUser, ContentType: ContentTypeText, Content: content}
}

// NewAssistantText builds a plain-text assistant message.
func NewAssistantText(content string) Message {
	return Message{Role: RoleAssistant, ContentType: ContentTypeText, Content: content}
}

// FileHandle references a file previously uploaded to the backend.
type FileHandle struct {
	ID   string `json:"id"`
	Name string `json:"file_name,omitempty"`
}

// ChatRequest is the input for one chat turn.
type ChatRequest struct {
	BotID          string
	UserID         string
	ConversationID string
	Query          string
	// History carries prior turns plus any injected file messages, oldest
	// first. The query itself is appended by the client.
	History []Message
}

// Client is the backend contract the bot depends on.
type Client interface {
	// CreateConversation allocates a new server-side conversation and
	// returns its id.
	CreateConversation(ctx context.Context) (string, error)
	// CreateChatMessage runs one chat turn and returns the backend's
	// ordered message parts.
	CreateChatMessage(ctx context.Context, req ChatRequest) ([]Message, error)
	// UploadFile uploads a local file and returns its handle.
	UploadFile(ctx context.Context, path string) (FileHandle, error)
	// FileMessage wraps an uploaded file as a user message for injection
	// into history.
	FileMessage(file FileHandle) Message
}

// ResolveURL resolves a possibly relative asset URL against the backend
// base URL. Absolute http(s) URLs pass through unchanged.
func ResolveURL(baseURL, raw string) string {
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		return raw
	}
	return strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(raw, "/")
}
