package session

import (
	"log/slog"
	"time"

	"github.com/relaybot/relaybot/internal/backend"
	"github.com/relaybot/relaybot/internal/ttlmap"
)

// TokenCounter estimates the token footprint of a history slice.
type TokenCounter func(messages []backend.Message) (int, error)

// ApproximateTokens counts tokens as the rune length of each message's
// content. Crude, but only used to decide how aggressively to trim.
func ApproximateTokens(messages []backend.Message) (int, error) {
	total := 0
	for _, msg := range messages {
		total += len([]rune(msg.Content))
	}
	return total, nil
}

// Options configures a Manager.
type Options struct {
	TTL           time.Duration
	SystemPrompt  string
	MaxHistoryLen int
	MaxMessages   int
	MaxTokens     int
	Counter       TokenCounter
}

// Manager is the keyed session store. Group sessions are keyed
// "groupID:sessionID" so the same user gets distinct state per group.
type Manager struct {
	log      *slog.Logger
	sessions *ttlmap.Map[*Session]
	opts     Options
}

func NewManager(log *slog.Logger, opts Options) *Manager {
	if opts.Counter == nil {
		opts.Counter = ApproximateTokens
	}
	return &Manager{
		log:      log,
		sessions: ttlmap.New[*Session](opts.TTL),
		opts:     opts,
	}
}

func sessionKey(sessionID, groupID string) string {
	if groupID != "" {
		return groupID + ":" + sessionID
	}
	return sessionID
}

// resolve returns the stored session for the key, creating it lazily. An
// empty sessionID yields a throwaway session that never touches the store,
// so anonymous one-shot queries leave no state behind.
func (m *Manager) resolve(sessionID, userID, groupID string) *Session {
	if sessionID == "" {
		return New(sessionID, userID, groupID, m.opts.SystemPrompt, m.opts.MaxHistoryLen, m.opts.MaxMessages)
	}
	key := sessionKey(sessionID, groupID)
	if s, ok := m.sessions.Get(key); ok {
		return s
	}
	s := New(sessionID, userID, groupID, m.opts.SystemPrompt, m.opts.MaxHistoryLen, m.opts.MaxMessages)
	m.sessions.Set(key, s)
	return s
}

// SessionQuery records a user query and returns the session.
func (m *Manager) SessionQuery(query, userID, sessionID, groupID string) *Session {
	s := m.resolve(sessionID, userID, groupID)
	s.AddUserMessage(query)
	return s
}

// SessionReply records an assistant reply, then trims history to the token
// budget. A counting failure is logged and skipped; it never aborts the
// reply.
func (m *Manager) SessionReply(content, userID, sessionID, groupID string, totalTokens int) *Session {
	s := m.resolve(sessionID, userID, groupID)
	s.AddAssistantMessage(content)
	tokens, err := s.DiscardExceeding(m.opts.MaxTokens, totalTokens, m.opts.Counter)
	if err != nil {
		m.log.Warn("token counting failed, skipping history trim",
			slog.String("session_id", sessionID),
			slog.Any("error", err))
		return s
	}
	m.log.Debug("session reply recorded",
		slog.String("session_id", sessionID),
		slog.Int("raw_total_tokens", totalTokens),
		slog.Int("tokens", tokens))
	return s
}

// ClearSession drops the session for the composite key, if present.
func (m *Manager) ClearSession(sessionID, groupID string) {
	m.sessions.Delete(sessionKey(sessionID, groupID))
}

// ClearAllSessions empties the store.
func (m *Manager) ClearAllSessions() {
	m.sessions.Clear()
}

// Len reports the number of live sessions.
func (m *Manager) Len() int {
	return m.sessions.Len()
}
