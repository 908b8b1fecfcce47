package reply

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaybot/relaybot/internal/backend"
)

type fakeDownloader struct {
	imageFunc func(ctx context.Context, url string) ([]byte, error)
	fileFunc  func(ctx context.Context, url string) (string, error)
}

func (f *fakeDownloader) DownloadImage(ctx context.Context, url string) ([]byte, error) {
	if f.imageFunc == nil {
		return nil, errors.New("no image")
	}
	return f.imageFunc(ctx, url)
}

func (f *fakeDownloader) DownloadFile(ctx context.Context, url string) (string, error) {
	if f.fileFunc == nil {
		return "", errors.New("no file")
	}
	return f.fileFunc(ctx, url)
}

func newTestComposer(d Downloader) *Composer {
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewComposer(log, "https://api.example.com", d)
}

func answer(content string) backend.Message {
	return backend.Message{
		Role:        backend.RoleAssistant,
		Type:        backend.MessageTypeAnswer,
		ContentType: backend.ContentTypeText,
		Content:     content,
	}
}

func TestComposeRichPushesAllButLastInOrder(t *testing.T) {
	t.Parallel()

	downloader := &fakeDownloader{
		imageFunc: func(ctx context.Context, url string) ([]byte, error) {
			assert.Equal(t, "https://api.example.com/b.png", url)
			return []byte("png-bytes"), nil
		},
	}
	composer := newTestComposer(downloader)

	var pushed []Reply
	pusher := PusherFunc(func(ctx context.Context, r Reply) error {
		pushed = append(pushed, r)
		return nil
	})

	final, err := composer.ComposeRich(context.Background(),
		[]backend.Message{answer("a ![img](/b.png) c")},
		Options{IsGroup: true, Nickname: "alice", Pusher: pusher})
	require.NoError(t, err)

	require.Len(t, pushed, 2)
	assert.Equal(t, TypeText, pushed[0].Type)
	assert.Equal(t, "@alice\na", pushed[0].Content)
	assert.Equal(t, TypeImage, pushed[1].Type)
	assert.Equal(t, []byte("png-bytes"), pushed[1].Image)

	assert.Equal(t, TypeText, final.Type)
	assert.Equal(t, "@alice\nc", final.Content)
}

func TestComposeRichSinglePartReturnsWithoutPush(t *testing.T) {
	t.Parallel()

	composer := newTestComposer(&fakeDownloader{})
	pushes := 0
	pusher := PusherFunc(func(ctx context.Context, r Reply) error {
		pushes++
		return nil
	})

	final, err := composer.ComposeRich(context.Background(),
		[]backend.Message{answer("only text")},
		Options{Pusher: pusher})
	require.NoError(t, err)
	assert.Equal(t, 0, pushes)
	assert.Equal(t, "only text", final.Content)
}

func TestComposeRichDownloadFailureFallsBackToLink(t *testing.T) {
	t.Parallel()

	composer := newTestComposer(&fakeDownloader{
		imageFunc: func(ctx context.Context, url string) ([]byte, error) {
			return nil, errors.New("connection refused")
		},
	})

	final, err := composer.ComposeRich(context.Background(),
		[]backend.Message{answer("![img](/files/x.png)")},
		Options{})
	require.NoError(t, err)
	assert.Equal(t, TypeText, final.Type)
	assert.Equal(t, "图片链接：https://api.example.com/files/x.png", final.Content)
}

func TestComposeRichFilePart(t *testing.T) {
	t.Parallel()

	composer := newTestComposer(&fakeDownloader{
		fileFunc: func(ctx context.Context, url string) (string, error) {
			assert.Equal(t, "https://api.example.com/files/report.pdf", url)
			return "/tmp/x/report.pdf", nil
		},
	})

	final, err := composer.ComposeRich(context.Background(),
		[]backend.Message{answer("[report](/files/report.pdf)")},
		Options{})
	require.NoError(t, err)
	assert.Equal(t, TypeFile, final.Type)
	assert.Equal(t, "/tmp/x/report.pdf", final.Content)
}

func TestComposeRichNoAnswerParts(t *testing.T) {
	t.Parallel()

	composer := newTestComposer(&fakeDownloader{})
	_, err := composer.ComposeRich(context.Background(),
		[]backend.Message{{Role: backend.RoleAssistant, Type: backend.MessageTypeVerbose, Content: "{}"}},
		Options{})
	assert.ErrorIs(t, err, ErrEmptyAnswer)
}

func TestComposePlainFailingDownloadYieldsTrimmedText(t *testing.T) {
	t.Parallel()

	composer := newTestComposer(&fakeDownloader{
		imageFunc: func(ctx context.Context, url string) ([]byte, error) {
			return nil, errors.New("boom")
		},
	})

	r := composer.ComposePlain(context.Background(), "hello image_url=https://x/y.png world")
	assert.Equal(t, TypeText, r.Type)
	assert.Equal(t, "hello world", r.Content)
}

func TestComposePlainSucceedingDownloadYieldsImage(t *testing.T) {
	t.Parallel()

	composer := newTestComposer(&fakeDownloader{
		imageFunc: func(ctx context.Context, url string) ([]byte, error) {
			assert.Equal(t, "https://x/y.png", url)
			return []byte("img"), nil
		},
	})

	r := composer.ComposePlain(context.Background(), "hello image_url=https://x/y.png world")
	assert.Equal(t, TypeImage, r.Type)
	assert.Equal(t, []byte("img"), r.Image)
	assert.Empty(t, r.Content, "text is discarded when the image wins")
}

func TestComposePlainNoURLs(t *testing.T) {
	t.Parallel()

	composer := newTestComposer(&fakeDownloader{})
	r := composer.ComposePlain(context.Background(), "  plain answer  ")
	assert.Equal(t, NewText("plain answer"), r)
}

func TestExtractAnswer(t *testing.T) {
	t.Parallel()

	content, err := ExtractAnswer([]backend.Message{
		{Role: backend.RoleAssistant, Type: backend.MessageTypeVerbose, ContentType: backend.ContentTypeText, Content: "noise"},
		answer("the answer"),
	})
	require.NoError(t, err)
	assert.Equal(t, "the answer", content)

	_, err = ExtractAnswer(nil)
	assert.ErrorIs(t, err, ErrEmptyAnswer)
}
