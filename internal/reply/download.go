package reply

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Downloader fetches out-of-band answer assets. Implementations return an
// error on any transport failure; callers map that to a textual fallback.
type Downloader interface {
	// DownloadImage fetches the image body into memory.
	DownloadImage(ctx context.Context, rawURL string) ([]byte, error)
	// DownloadFile writes the body to a uniquely named local temp file and
	// returns its path. The filename is the percent-decoded last segment of
	// the URL path.
	DownloadFile(ctx context.Context, rawURL string) (string, error)
}

// HTTPDownloader is the net/http Downloader.
type HTTPDownloader struct {
	log    *slog.Logger
	tmpDir string
	http   *http.Client
}

var _ Downloader = (*HTTPDownloader)(nil)

func NewHTTPDownloader(log *slog.Logger, tmpDir string, timeout time.Duration) *HTTPDownloader {
	if tmpDir == "" {
		tmpDir = os.TempDir()
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HTTPDownloader{
		log:    log,
		tmpDir: tmpDir,
		http:   &http.Client{Timeout: timeout},
	}
}

func (d *HTTPDownloader) DownloadImage(ctx context.Context, rawURL string) ([]byte, error) {
	body, err := d.fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	defer body.Close()
	var buf bytes.Buffer
	size, err := io.Copy(&buf, body)
	if err != nil {
		return nil, fmt.Errorf("download image %s: %w", rawURL, err)
	}
	d.log.Debug("image downloaded", slog.String("url", rawURL), slog.Int64("size", size))
	return buf.Bytes(), nil
}

func (d *HTTPDownloader) DownloadFile(ctx context.Context, rawURL string) (string, error) {
	body, err := d.fetch(ctx, rawURL)
	if err != nil {
		return "", err
	}
	defer body.Close()

	name := fileNameFromURL(rawURL)
	dir := filepath.Join(d.tmpDir, uuid.NewString())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("download file %s: %w", rawURL, err)
	}
	target := filepath.Join(dir, name)
	out, err := os.Create(target)
	if err != nil {
		return "", fmt.Errorf("download file %s: %w", rawURL, err)
	}
	defer out.Close()
	if _, err := io.Copy(out, body); err != nil {
		return "", fmt.Errorf("download file %s: %w", rawURL, err)
	}
	d.log.Debug("file downloaded", slog.String("url", rawURL), slog.String("path", target))
	return target, nil
}

func (d *HTTPDownloader) fetch(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", rawURL, err)
	}
	resp, err := d.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", rawURL, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, fmt.Errorf("download %s: status %d", rawURL, resp.StatusCode)
	}
	return resp.Body, nil
}

func fileNameFromURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "download"
	}
	segment := path.Base(parsed.Path)
	if decoded, err := url.PathUnescape(segment); err == nil {
		segment = decoded
	}
	if segment == "" || segment == "." || segment == "/" {
		return "download"
	}
	return segment
}
