// Package bot wires identity resolution, session state, the chat backend,
// and reply composition into the single entry point the gateway calls.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/relaybot/relaybot/internal/backend"
	"github.com/relaybot/relaybot/internal/channel"
	"github.com/relaybot/relaybot/internal/config"
	"github.com/relaybot/relaybot/internal/reply"
	"github.com/relaybot/relaybot/internal/session"
	"github.com/relaybot/relaybot/internal/ttlmap"
)

// Facade receives inbound queries and produces at most one final reply per
// turn. Intermediate parts of multi-part answers are pushed through the
// originating channel as they resolve.
type Facade struct {
	log      *slog.Logger
	cfg      config.BotConfig
	botID    string
	sessions *session.Manager
	client   backend.Client
	composer *reply.Composer
	registry *channel.Registry
	images   *ImageCache

	// One backend conversation per group, shared by all members. TTL-backed
	// so a stale group binding expires with its sessions and is recreated
	// on the next turn.
	groupConversations *ttlmap.Map[string]
}

func NewFacade(
	log *slog.Logger,
	cfg config.BotConfig,
	botID string,
	sessions *session.Manager,
	client backend.Client,
	composer *reply.Composer,
	registry *channel.Registry,
	images *ImageCache,
	groupConversationTTL time.Duration,
) (*Facade, error) {
	if botID == "" {
		return nil, fmt.Errorf("bot id is not set")
	}
	return &Facade{
		log:                log,
		cfg:                cfg,
		botID:              botID,
		sessions:           sessions,
		client:             client,
		composer:           composer,
		registry:           registry,
		images:             images,
		groupConversations: ttlmap.New[string](groupConversationTTL),
	}, nil
}

// Reply processes one inbound turn. It returns nil when the turn needs no
// reply (record-only). Errors never escape: they surface as ERROR replies
// (identity problems) or as the configured apology text (backend and
// composition failures).
func (f *Facade) Reply(ctx context.Context, query string, turn Context) *reply.Reply {
	if turn.Type != ContextTypeText && turn.Type != ContextTypeImageCreate {
		r := reply.NewError(fmt.Sprintf("unsupported context type: %s", turn.Type))
		return &r
	}
	if turn.Type == ContextTypeImageCreate {
		query = f.cfg.ImageCreatePrefix + query
	}
	f.log.Info("inbound query", slog.String("query", query), slog.Bool("group", turn.IsGroup))

	userID, err := resolveUserID(f.cfg.ChannelType, turn.Msg)
	if err != nil {
		f.log.Error("identity resolution failed", slog.Any("error", err))
		r := reply.NewError(err.Error())
		return &r
	}

	groupID := ""
	if turn.IsGroup {
		groupID = turn.Msg.OtherUserID
	}

	s := f.sessions.SessionQuery(query, userID, turn.SessionID, groupID)
	s.SetNickname(resolveNickname(f.cfg.ChannelType, turn.IsGroup, turn.Msg))
	s.CountUserMessage()

	if groupID != "" {
		conversationID, err := f.bindGroupConversation(ctx, groupID)
		if err != nil {
			f.log.Error("group conversation bind failed",
				slog.String("group_id", groupID), slog.Any("error", err))
			return f.apology()
		}
		s.SetConversationID(conversationID)
	}

	if !turn.NeedReply {
		f.log.Debug("record-only turn", slog.String("session_id", turn.SessionID))
		return nil
	}

	r, err := f.dispatch(ctx, query, s, turn)
	if err != nil {
		f.log.Error("turn failed", slog.String("session_id", turn.SessionID), slog.Any("error", err))
		return f.apology()
	}
	return &r
}

// CacheImage stores an image path for a later image-recognition turn of the
// session.
func (f *Facade) CacheImage(sessionID, path string) {
	f.images.Put(sessionID, path)
}

// ClearSession drops the stored session for the key.
func (f *Facade) ClearSession(sessionID string, groupID string) {
	f.sessions.ClearSession(sessionID, groupID)
}

// ClearAllSessions empties the session store.
func (f *Facade) ClearAllSessions() {
	f.sessions.ClearAllSessions()
}

func (f *Facade) bindGroupConversation(ctx context.Context, groupID string) (string, error) {
	if id, ok := f.groupConversations.Get(groupID); ok {
		return id, nil
	}
	id, err := f.client.CreateConversation(ctx)
	if err != nil {
		return "", fmt.Errorf("create group conversation: %w", err)
	}
	f.groupConversations.Set(groupID, id)
	f.log.Info("created group conversation",
		slog.String("group_id", groupID), slog.String("conversation_id", id))
	return id, nil
}

func (f *Facade) dispatch(ctx context.Context, query string, s *session.Session, turn Context) (reply.Reply, error) {
	history := s.History()
	// SessionQuery already appended the query; the client re-sends it as
	// the final message of the turn.
	if n := len(history); n > 0 && history[n-1].Role == backend.RoleUser && history[n-1].Content == query {
		history = history[:n-1]
	}
	history = append(history, f.pendingFileMessages(ctx, s.ID())...)

	messages, err := f.client.CreateChatMessage(ctx, backend.ChatRequest{
		BotID:          f.botID,
		UserID:         s.UserID(),
		ConversationID: s.ConversationID(),
		Query:          query,
		History:        history,
	})
	if err != nil {
		return reply.Reply{}, fmt.Errorf("backend chat: %w", err)
	}

	if f.cfg.RichReplies {
		return f.composer.ComposeRich(ctx, messages, reply.Options{
			IsGroup:  turn.IsGroup,
			Nickname: s.Nickname(),
			Pusher:   f.pusherFor(turn),
		})
	}

	answer, err := reply.ExtractAnswer(messages)
	if err != nil {
		return reply.Reply{}, err
	}
	totalTokens := f.estimateTokens(s, answer)
	f.sessions.SessionReply(answer, s.UserID(), s.ID(), s.GroupID(), totalTokens)
	return f.composer.ComposePlain(ctx, answer), nil
}

// pendingFileMessages uploads the session's cached image, if any, and wraps
// it as an extra message ahead of the text query. The cache entry is
// consumed before the upload: a failed upload is not retried.
func (f *Facade) pendingFileMessages(ctx context.Context, sessionID string) []backend.Message {
	if !f.cfg.ImageRecognition {
		return nil
	}
	path, ok := f.images.Pop(sessionID)
	if !ok {
		return nil
	}
	file, err := f.client.UploadFile(ctx, path)
	if err != nil {
		f.log.Error("image upload failed",
			slog.String("session_id", sessionID), slog.String("path", path), slog.Any("error", err))
		return nil
	}
	return []backend.Message{f.client.FileMessage(file)}
}

func (f *Facade) pusherFor(turn Context) reply.Pusher {
	sender, ok := f.registry.Get(channel.Type(f.cfg.ChannelType))
	if !ok {
		return nil
	}
	target := turn.ReplyTarget
	return reply.PusherFunc(func(ctx context.Context, r reply.Reply) error {
		return sender.Send(ctx, target, r)
	})
}

func (f *Facade) estimateTokens(s *session.Session, answer string) int {
	completion := len([]rune(answer))
	prompt := 0
	for _, msg := range s.History() {
		prompt += len([]rune(msg.Content))
	}
	return prompt + completion
}

func (f *Facade) apology() *reply.Reply {
	r := reply.NewText(f.cfg.ErrorReply)
	return &r
}
