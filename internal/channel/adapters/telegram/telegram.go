// Package telegram delivers replies through the Telegram Bot API.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/relaybot/relaybot/internal/channel"
	"github.com/relaybot/relaybot/internal/reply"
)

const TypeName = channel.Type("telegram")

// Adapter sends replies to Telegram chats. The target is the chat id in
// decimal; an empty target falls back to the configured default chat.
type Adapter struct {
	log           *slog.Logger
	api           *tgbotapi.BotAPI
	defaultChatID int64
}

var _ channel.Sender = (*Adapter)(nil)

func NewAdapter(log *slog.Logger, token string, defaultChatID int64) (*Adapter, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram init: %w", err)
	}
	log.Info("telegram adapter ready", slog.String("bot", api.Self.UserName))
	return &Adapter{log: log, api: api, defaultChatID: defaultChatID}, nil
}

func (a *Adapter) Type() channel.Type {
	return TypeName
}

func (a *Adapter) Send(ctx context.Context, target string, r reply.Reply) error {
	chatID, err := a.resolveChatID(target)
	if err != nil {
		return err
	}
	var msg tgbotapi.Chattable
	switch r.Type {
	case reply.TypeText, reply.TypeError:
		msg = tgbotapi.NewMessage(chatID, r.Content)
	case reply.TypeImage:
		msg = tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: "image", Bytes: r.Image})
	case reply.TypeFile:
		doc := tgbotapi.NewDocument(chatID, tgbotapi.FilePath(r.Content))
		doc.Caption = filepath.Base(r.Content)
		msg = doc
	default:
		return fmt.Errorf("telegram: unsupported reply type %s", r.Type)
	}
	if _, err := a.api.Send(msg); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	a.log.Debug("telegram reply delivered",
		slog.Int64("chat_id", chatID),
		slog.String("type", string(r.Type)))
	return nil
}

func (a *Adapter) resolveChatID(target string) (int64, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		if a.defaultChatID == 0 {
			return 0, fmt.Errorf("telegram: no target chat")
		}
		return a.defaultChatID, nil
	}
	chatID, err := strconv.ParseInt(target, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("telegram: bad chat id %q: %w", target, err)
	}
	return chatID, nil
}
