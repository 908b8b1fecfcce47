package reply

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/relaybot/relaybot/internal/backend"
)

// Pusher delivers an intermediate reply through the originating channel.
// All but the final part of a multi-part answer go through it, in document
// order, before the turn completes.
type Pusher interface {
	Push(ctx context.Context, r Reply) error
}

// PusherFunc adapts a function to the Pusher interface.
type PusherFunc func(ctx context.Context, r Reply) error

func (f PusherFunc) Push(ctx context.Context, r Reply) error { return f(ctx, r) }

// Options carries the invoking turn's context into composition.
type Options struct {
	IsGroup  bool
	Nickname string
	Pusher   Pusher
}

// Composer decomposes backend answers into typed replies, resolving
// out-of-band assets along the way.
type Composer struct {
	log        *slog.Logger
	baseURL    string
	downloader Downloader
}

func NewComposer(log *slog.Logger, baseURL string, downloader Downloader) *Composer {
	return &Composer{log: log, baseURL: baseURL, downloader: downloader}
}

// ComposeRich parses every answer part's markdown into an ordered part
// sequence, pushes all but the last resolved reply through opts.Pusher, and
// returns the last. Returns ErrEmptyAnswer when no answer part exists.
func (c *Composer) ComposeRich(ctx context.Context, messages []backend.Message, opts Options) (Reply, error) {
	var parts []Part
	for _, msg := range messages {
		if !msg.IsAnswer() {
			continue
		}
		parts = append(parts, ParseMarkdownText(msg.Content)...)
	}
	if len(parts) == 0 {
		return Reply{}, ErrEmptyAnswer
	}

	for _, part := range parts[:len(parts)-1] {
		resolved := c.resolvePart(ctx, part, opts)
		c.log.Debug("pushing intermediate reply", slog.String("type", string(resolved.Type)))
		if opts.Pusher != nil {
			if err := opts.Pusher.Push(ctx, resolved); err != nil {
				c.log.Warn("intermediate reply delivery failed", slog.Any("error", err))
			}
		}
	}
	return c.resolvePart(ctx, parts[len(parts)-1], opts), nil
}

// ComposePlain scans the answer for inline image_url markers. The first URL
// that appears is downloaded; success yields an IMAGE reply and discards
// the remaining text and URLs. Otherwise the stripped text is returned.
func (c *Composer) ComposePlain(ctx context.Context, answer string) Reply {
	text, urls := ExtractImageURLs(answer)
	if len(urls) > 0 {
		image, err := c.downloader.DownloadImage(ctx, urls[0])
		if err == nil {
			return NewImage(image)
		}
		c.log.Error("image download failed", slog.String("url", urls[0]), slog.Any("error", err))
	}
	return NewText(text)
}

// ExtractAnswer returns the first answer-typed text content, or
// ErrEmptyAnswer if none exists.
func ExtractAnswer(messages []backend.Message) (string, error) {
	for _, msg := range messages {
		if msg.IsAnswer() && msg.ContentType == backend.ContentTypeText {
			return msg.Content, nil
		}
	}
	return "", ErrEmptyAnswer
}

func (c *Composer) resolvePart(ctx context.Context, part Part, opts Options) Reply {
	switch part.Type {
	case PartImage:
		imageURL := backend.ResolveURL(c.baseURL, part.Content)
		image, err := c.downloader.DownloadImage(ctx, imageURL)
		if err != nil {
			c.log.Error("image download failed", slog.String("url", imageURL), slog.Any("error", err))
			return NewText(fmt.Sprintf("图片链接：%s", imageURL))
		}
		return NewImage(image)
	case PartFile:
		fileURL := backend.ResolveURL(c.baseURL, part.Content)
		path, err := c.downloader.DownloadFile(ctx, fileURL)
		if err != nil {
			c.log.Error("file download failed", slog.String("url", fileURL), slog.Any("error", err))
			return NewText(fmt.Sprintf("链接：%s", fileURL))
		}
		return NewFile(path)
	default:
		return NewText(c.atPrefix(opts) + part.Content)
	}
}

func (c *Composer) atPrefix(opts Options) string {
	if !opts.IsGroup {
		return ""
	}
	nickname := strings.TrimSpace(opts.Nickname)
	if nickname == "" {
		nickname = "unknown"
	}
	return "@" + nickname + "\n"
}
