package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
	"go.uber.org/zap"
)

// RobotsConfig controls robots.txt handling.
type RobotsConfig struct {
	// Respect turns enforcement on. Off means every URL is allowed.
	Respect bool
	// OverrideGeneralDisallow proceeds (with a warning) when the matched
	// group disallows the path via a blanket rule rather than one naming
	// this crawler's agent specifically.
	OverrideGeneralDisallow bool
	UserAgent               string
}

// RobotsEnforcer enforces robots.txt directives with a per-host cache.
type RobotsEnforcer struct {
	client *http.Client
	cache  sync.Map
	cfg    RobotsConfig
	logger *zap.Logger
}

// NewRobotsEnforcer builds a robots policy honoring the config toggles.
func NewRobotsEnforcer(cfg RobotsConfig, logger *zap.Logger) *RobotsEnforcer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RobotsEnforcer{
		client: &http.Client{Timeout: 10 * time.Second},
		cfg:    cfg,
		logger: logger,
	}
}

// Allowed reports whether rawURL may be fetched. Failures to obtain or parse
// robots.txt degrade to allowing the fetch.
func (r *RobotsEnforcer) Allowed(ctx context.Context, rawURL string) bool {
	if !r.cfg.Respect {
		return true
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	data, err := r.load(ctx, parsed)
	if err != nil {
		r.logger.Warn("robots fetch failed; allowing access",
			zap.String("host", parsed.Host),
			zap.Error(err),
		)
		return true
	}
	if group := data.FindGroup(r.cfg.UserAgent); group != nil && !group.Test(parsed.Path) {
		if r.namesAgent(data) || !r.cfg.OverrideGeneralDisallow {
			return false
		}
		r.logger.Warn("Blanket robots disallow overridden by configuration",
			zap.String("url", rawURL),
		)
	}
	return true
}

// namesAgent reports whether robots.txt has a group specific to this
// crawler's user agent, as opposed to the wildcard group.
func (r *RobotsEnforcer) namesAgent(data *robotstxt.RobotsData) bool {
	specific := data.FindGroup(r.cfg.UserAgent)
	wildcard := data.FindGroup("*")
	return specific != nil && specific != wildcard
}

func (r *RobotsEnforcer) load(ctx context.Context, parsed *url.URL) (*robotstxt.RobotsData, error) {
	hostKey := strings.ToLower(parsed.Host)
	if cached, ok := r.cache.Load(hostKey); ok {
		data, assertOK := cached.(*robotstxt.RobotsData)
		if !assertOK {
			return nil, fmt.Errorf("robots cache type mismatch: %T", cached)
		}
		return data, nil
	}

	robotsURL := *parsed
	robotsURL.Path = path.Join("/", "robots.txt")
	robotsURL.RawQuery = ""
	robotsURL.Fragment = ""
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("new robots request: %w", err)
	}
	req.Header.Set("User-Agent", r.cfg.UserAgent)
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch robots: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			r.logger.Debug("Failed to close robots response body", zap.Error(cerr))
		}
	}()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read robots body: %w", err)
	}
	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		return nil, fmt.Errorf("parse robots: %w", err)
	}
	r.cache.Store(hostKey, data)
	return data, nil
}

// AllowAll is the policy used when robots enforcement is disabled.
type AllowAll struct{}

// Allowed always reports true.
func (AllowAll) Allowed(context.Context, string) bool { return true }
