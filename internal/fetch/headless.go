package fetch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/beautydex/harvester/internal/harvest"
)

// ErrHeadlessDisabled indicates headless fetching is off in configuration.
var ErrHeadlessDisabled = errors.New("headless fetcher disabled")

// HeadlessConfig controls the browser-backed fetcher.
type HeadlessConfig struct {
	Enabled        bool
	UserAgent      string
	Timeout        time.Duration
	MaxConcurrency int
}

// HeadlessFetcher implements harvest.Fetcher with a real browser, for catalog
// pages that render their product grid with JavaScript.
type HeadlessFetcher struct {
	allocatorCancel context.CancelFunc
	browserCtx      context.Context
	browserCancel   context.CancelFunc
	sem             chan struct{}
	timeout         time.Duration
	userAgent       string
	logger          *zap.Logger
}

// NewHeadlessFetcher starts a shared browser process. Returns
// ErrHeadlessDisabled when the feature is off.
func NewHeadlessFetcher(cfg HeadlessConfig, logger *zap.Logger) (*HeadlessFetcher, error) {
	if !cfg.Enabled {
		return nil, ErrHeadlessDisabled
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 45 * time.Second
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := chromedp.DefaultExecAllocatorOptions[:]
	opts = append(opts,
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.UserAgent(cfg.UserAgent),
	)
	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		allocatorCancel()
		browserCancel()
		return nil, fmt.Errorf("browser warmup: %w", err)
	}

	return &HeadlessFetcher{
		allocatorCancel: allocatorCancel,
		browserCtx:      browserCtx,
		browserCancel:   browserCancel,
		sem:             make(chan struct{}, cfg.MaxConcurrency),
		timeout:         cfg.Timeout,
		userAgent:       cfg.UserAgent,
		logger:          logger,
	}, nil
}

// Close tears down the browser and allocator contexts.
func (f *HeadlessFetcher) Close() error {
	if f == nil {
		return nil
	}
	f.browserCancel()
	f.allocatorCancel()
	return nil
}

// Fetch renders the page with JavaScript enabled and returns the DOM snapshot.
func (f *HeadlessFetcher) Fetch(ctx context.Context, rawURL string) (harvest.Page, error) {
	if f == nil {
		return harvest.Page{}, ErrHeadlessDisabled
	}

	select {
	case f.sem <- struct{}{}:
		defer func() { <-f.sem }()
	case <-ctx.Done():
		return harvest.Page{}, fmt.Errorf("acquire browser slot: %w", ctx.Err())
	}

	tabCtx, cancelTab := chromedp.NewContext(f.browserCtx)
	defer cancelTab()

	taskCtx, cancelTask := context.WithTimeout(tabCtx, f.timeout)
	defer cancelTask()

	stopForward := forwardCancel(ctx, cancelTask)
	defer stopForward()

	meta := &responseMeta{}
	chromedp.ListenTarget(tabCtx, func(ev interface{}) {
		resp, ok := ev.(*network.EventResponseReceived)
		if !ok || resp.Type != network.ResourceTypeDocument {
			return
		}
		meta.once.Do(func() {
			meta.statusCode = int(resp.Response.Status)
			meta.url = resp.Response.URL
		})
	})

	var html string
	tasks := chromedp.Tasks{
		network.Enable(),
		emulation.SetUserAgentOverride(f.userAgent),
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	}
	if err := chromedp.Run(taskCtx, tasks); err != nil {
		return harvest.Page{}, fmt.Errorf("render page: %w", err)
	}

	finalURL := meta.url
	if finalURL == "" {
		finalURL = rawURL
	}
	return harvest.Page{
		URL:        rawURL,
		FinalURL:   finalURL,
		StatusCode: meta.statusCode,
		Body:       []byte(html),
	}, nil
}

type responseMeta struct {
	once       sync.Once
	statusCode int
	url        string
}

func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}
