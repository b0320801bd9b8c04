package fetch

import (
	"context"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// HeadProber checks constructed URLs with a metadata-only request. Used for
// CDN image candidates where a full download would waste the rate budget.
type HeadProber struct {
	client    *http.Client
	userAgent string
	logger    *zap.Logger
}

// NewHeadProber builds a prober with its own short-timeout client.
func NewHeadProber(userAgent string, logger *zap.Logger) *HeadProber {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HeadProber{
		client:    &http.Client{Timeout: 10 * time.Second},
		userAgent: userAgent,
		logger:    logger,
	}
}

// Exists reports whether the URL answers 2xx to a HEAD request. Any error is
// treated as absence.
func (p *HeadProber) Exists(ctx context.Context, rawURL string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return false
	}
	req.Header.Set("User-Agent", p.userAgent)
	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Debug("Image probe failed", zap.String("url", rawURL), zap.Error(err))
		return false
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}
