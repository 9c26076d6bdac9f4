// Package fetch downloads homepage markup.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	appErr "github.com/xxxsen/siteinsight/internal/pkg/errors"
)

const (
	defaultTimeout   = 15 * time.Second
	defaultMaxBytes  = 2 << 20
	defaultUserAgent = "siteinsight/1.0 (+https://github.com/xxxsen/siteinsight)"
)

type Config struct {
	Timeout   time.Duration
	MaxBytes  int64
	UserAgent string
}

type Fetcher struct {
	client    *http.Client
	maxBytes  int64
	userAgent string
}

func New(cfg Config) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = defaultMaxBytes
	}
	if strings.TrimSpace(cfg.UserAgent) == "" {
		cfg.UserAgent = defaultUserAgent
	}
	return &Fetcher{
		client:    &http.Client{Timeout: cfg.Timeout},
		maxBytes:  cfg.MaxBytes,
		userAgent: cfg.UserAgent,
	}
}

// NormalizeURL trims the input and requires an absolute http(s) URL.
func NormalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: url is required", appErr.ErrInvalid)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: bad url %q: %v", appErr.ErrInvalid, raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: url scheme must be http or https", appErr.ErrInvalid)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: url host is required", appErr.ErrInvalid)
	}
	return raw, nil
}

// Fetch returns the body of pageURL, truncated to the configured byte cap.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", appErr.Wrap(appErr.ErrFetch, err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", appErr.Wrap(appErr.ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: %s returned HTTP %d", appErr.ErrFetch, pageURL, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes))
	if err != nil {
		return "", appErr.Wrap(appErr.ErrFetch, err)
	}
	logutil.GetLogger(ctx).Debug("page fetched",
		zap.String("url", pageURL),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(body)),
	)
	return string(body), nil
}
