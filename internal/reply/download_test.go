package reply

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDownloader(t *testing.T) *HTTPDownloader {
	t.Helper()
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewHTTPDownloader(log, t.TempDir(), 5*time.Second)
}

func TestDownloadImage(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("image-bytes"))
	}))
	defer srv.Close()

	d := newTestDownloader(t)
	data, err := d.DownloadImage(context.Background(), srv.URL+"/pic.png")
	require.NoError(t, err)
	assert.Equal(t, []byte("image-bytes"), data)
}

func TestDownloadImageErrorStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	d := newTestDownloader(t)
	_, err := d.DownloadImage(context.Background(), srv.URL+"/missing.png")
	assert.Error(t, err)
}

func TestDownloadFileUsesDecodedURLFilename(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("file-bytes"))
	}))
	defer srv.Close()

	d := newTestDownloader(t)
	path, err := d.DownloadFile(context.Background(), srv.URL+"/files/my%20report.pdf?sign=abc")
	require.NoError(t, err)
	assert.Equal(t, "my report.pdf", filepath.Base(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("file-bytes"), data)
}

func TestDownloadFilePathsAreUnique(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("x"))
	}))
	defer srv.Close()

	d := newTestDownloader(t)
	first, err := d.DownloadFile(context.Background(), srv.URL+"/same.txt")
	require.NoError(t, err)
	second, err := d.DownloadFile(context.Background(), srv.URL+"/same.txt")
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestFileNameFromURLFallback(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "download", fileNameFromURL("https://example.com/"))
	assert.Equal(t, "a.png", fileNameFromURL("https://example.com/x/a.png"))
}
