// Package session holds per-identity conversational state: a bounded
// message history plus the backend conversation handle, keyed by user and
// optional group.
package session

import (
	"fmt"

	"github.com/relaybot/relaybot/internal/backend"
)

// Session is the conversational state for one user or group member.
// Sessions are not safe for concurrent use; the surrounding gateway is
// expected to serialize turns per key.
type Session struct {
	id           string
	userID       string
	groupID      string
	nickname     string
	systemPrompt string

	conversationID     string
	history            []backend.Message
	maxHistoryLen      int
	maxMessages        int
	userMessageCounter int
}

// New constructs a session. maxHistoryLen caps the history buffer;
// maxMessages is the user-turn reset threshold (≤0 disables the reset).
func New(id, userID, groupID, systemPrompt string, maxHistoryLen, maxMessages int) *Session {
	if maxHistoryLen <= 0 {
		maxHistoryLen = 10
	}
	return &Session{
		id:            id,
		userID:        userID,
		groupID:       groupID,
		systemPrompt:  systemPrompt,
		maxHistoryLen: maxHistoryLen,
		maxMessages:   maxMessages,
	}
}

func (s *Session) ID() string           { return s.id }
func (s *Session) UserID() string       { return s.userID }
func (s *Session) GroupID() string      { return s.groupID }
func (s *Session) IsGroup() bool        { return s.groupID != "" }
func (s *Session) SystemPrompt() string { return s.systemPrompt }

func (s *Session) Nickname() string         { return s.nickname }
func (s *Session) SetNickname(name string)  { s.nickname = name }
func (s *Session) ConversationID() string   { return s.conversationID }
func (s *Session) SetConversationID(id string) { s.conversationID = id }

// History returns a copy of the message history, oldest first.
func (s *Session) History() []backend.Message {
	out := make([]backend.Message, len(s.history))
	copy(out, s.history)
	return out
}

// HistoryLen reports the current history length.
func (s *Session) HistoryLen() int { return len(s.history) }

// AddUserMessage appends a user turn, evicting the oldest entry if the
// buffer is full.
func (s *Session) AddUserMessage(content string) {
	s.append(backend.NewUserText(content))
}

// AddAssistantMessage appends an assistant turn, evicting the oldest entry
// if the buffer is full.
func (s *Session) AddAssistantMessage(content string) {
	s.append(backend.NewAssistantText(content))
}

func (s *Session) append(msg backend.Message) {
	if len(s.history) >= s.maxHistoryLen {
		s.history = s.history[1:]
	}
	s.history = append(s.history, msg)
}

// ClearHistory empties the history without touching the conversation id or
// the turn counter.
func (s *Session) ClearHistory() {
	s.history = nil
}

// CountUserMessage advances the user-turn counter. Once the counter reaches
// the reset threshold the conversation id and history are cleared together
// and counting restarts. The backend cannot bound server-side history, so
// this periodic reset stands in for a sliding window.
func (s *Session) CountUserMessage() {
	if s.maxMessages <= 0 {
		return
	}
	s.userMessageCounter++
	if s.userMessageCounter >= s.maxMessages {
		s.userMessageCounter = 0
		s.conversationID = ""
		s.ClearHistory()
	}
}

// DiscardExceeding evicts the oldest history entries until the token count
// is within maxTokens. curTokens, when positive, seeds the count; otherwise
// count is consulted. Returns the final token count.
func (s *Session) DiscardExceeding(maxTokens, curTokens int, count TokenCounter) (int, error) {
	if maxTokens <= 0 || count == nil {
		return curTokens, nil
	}
	tokens := curTokens
	if tokens <= 0 {
		var err error
		tokens, err = count(s.history)
		if err != nil {
			return 0, fmt.Errorf("count tokens: %w", err)
		}
	}
	for tokens > maxTokens && len(s.history) > 1 {
		s.history = s.history[1:]
		var err error
		tokens, err = count(s.history)
		if err != nil {
			return 0, fmt.Errorf("count tokens: %w", err)
		}
	}
	return tokens, nil
}

func (s *Session) String() string {
	return fmt.Sprintf("Session(id=%s, user=%s, group=%s, conversation=%s, messages=%d)",
		s.id, s.userID, s.groupID, s.conversationID, len(s.history))
}
