// Package media downloads listing photos and videos into the blob store.
package media

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/mkoziy/habitat/ingest/internal/blobstore"
	"github.com/mkoziy/habitat/ingest/internal/models"
	"github.com/mkoziy/habitat/ingest/internal/ratelimit"
)

const defaultMaxBytes = 50 << 20

var knownExtensions = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/webp":      ".webp",
	"image/gif":       ".gif",
	"image/avif":      ".avif",
	"video/mp4":       ".mp4",
	"video/webm":      ".webm",
	"video/quicktime": ".mov",
}

// Config bounds downloads.
type Config struct {
	MaxBytes  int64         `yaml:"max_bytes"`
	Timeout   time.Duration `yaml:"timeout"`
	UserAgent string        `yaml:"user_agent"`
}

// Materializer fetches media URLs and stores them under deterministic paths.
type Materializer struct {
	store      blobstore.Store
	httpClient *http.Client
	limiter    ratelimit.Limiter
	policy     ratelimit.Policy
	maxBytes   int64
	userAgent  string
	logger     *slog.Logger
}

// New creates a materializer writing to store.
func New(store blobstore.Store, cfg Config, limiter ratelimit.Limiter, policy ratelimit.Policy, logger *slog.Logger) *Materializer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if limiter == nil {
		limiter = ratelimit.Unlimited{}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = time.Minute
	}
	m := &Materializer{
		store:      store,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    limiter,
		policy:     policy,
		maxBytes:   cfg.MaxBytes,
		userAgent:  cfg.UserAgent,
		logger:     logger,
	}
	if m.maxBytes <= 0 {
		m.maxBytes = defaultMaxBytes
	}
	if m.userAgent == "" {
		m.userAgent = "habitat-ingest/1.0"
	}
	return m
}

type download struct {
	data        []byte
	contentType string
}

// Materialize stores every reachable URL and returns the stored paths in
// input order with failed URLs removed. Each failure becomes a warning.
func (m *Materializer) Materialize(ctx context.Context, urls []string, ownerID int64, kind models.MediaKind, source models.Source) ([]string, []string) {
	var paths, warnings []string
	for _, raw := range urls {
		if err := ctx.Err(); err != nil {
			warnings = append(warnings, fmt.Sprintf("media %s: stopped: %v", kind, err))
			break
		}
		p, err := m.materializeOne(ctx, raw, ownerID, kind, source, len(paths))
		if err != nil {
			m.logger.Warn("media download failed",
				slog.String("source", string(source)),
				slog.Int64("owner_id", ownerID),
				slog.String("url", raw),
				slog.String("error", err.Error()))
			warnings = append(warnings, fmt.Sprintf("media %s %s: %v", kind, raw, err))
			continue
		}
		paths = append(paths, p)
	}
	return paths, warnings
}

func (m *Materializer) materializeOne(ctx context.Context, raw string, ownerID int64, kind models.MediaKind, source models.Source, n int) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("invalid media url")
	}

	dl, err := ratelimit.Do(ctx, m.policy, func(ctx context.Context, attempt int) (download, error) {
		return m.fetch(ctx, u.String())
	})
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(dl.data)
	sha8 := hex.EncodeToString(sum[:])[:8]
	key := blobstore.MediaPath(source, ownerID, kind, n, sha8, extension(u, dl.contentType))
	if _, err := m.store.Put(ctx, key, dl.data, dl.contentType); err != nil {
		return "", fmt.Errorf("store: %w", err)
	}
	return key, nil
}

func (m *Materializer) fetch(ctx context.Context, u string) (download, error) {
	if err := m.limiter.Wait(ctx); err != nil {
		return download{}, ratelimit.Permanent(err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return download{}, ratelimit.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("User-Agent", m.userAgent)

	resp, err := m.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return download{}, ratelimit.Permanent(ctx.Err())
		}
		return download{}, fmt.Errorf("execute request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("unexpected status: %d", resp.StatusCode)
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return download{}, err
		}
		return download{}, ratelimit.Permanent(err)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, m.maxBytes+1))
	if err != nil {
		return download{}, fmt.Errorf("read body: %w", err)
	}
	if int64(len(data)) > m.maxBytes {
		return download{}, ratelimit.Permanent(fmt.Errorf("body exceeds %d bytes", m.maxBytes))
	}
	if len(data) == 0 {
		return download{}, ratelimit.Permanent(errors.New("empty body"))
	}
	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = http.DetectContentType(data)
	}
	return download{data: data, contentType: ct}, nil
}

// extension prefers the declared content type and falls back to the URL path.
func extension(u *url.URL, contentType string) string {
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		if ext, ok := knownExtensions[mt]; ok {
			return ext
		}
	}
	ext := strings.ToLower(path.Ext(u.Path))
	for _, known := range knownExtensions {
		if ext == known {
			return ext
		}
	}
	if ext == ".jpeg" {
		return ".jpg"
	}
	return ".bin"
}
