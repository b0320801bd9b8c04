// Package fetch provides document retrieval: a Colly-based HTTP fetcher, an
// optional headless-browser fetcher for script-rendered pages, the retry
// policy, the robots.txt gate, and a metadata prober for constructed URLs.
package fetch

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/beautydex/harvester/internal/harvest"
)

// Config holds transport-level fetch settings.
type Config struct {
	UserAgent      string
	Referer        string
	RequestTimeout time.Duration
	Concurrency    int
}

// CollyFetcher implements harvest.Fetcher on the Colly collector. Each Fetch
// clones the base collector so per-request callbacks never leak between
// requests.
type CollyFetcher struct {
	baseCollector *colly.Collector
	referer       string
	logger        *zap.Logger
}

// NewCollyFetcher constructs a configured Colly-based fetcher.
func NewCollyFetcher(cfg Config, logger *zap.Logger) (*CollyFetcher, error) {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	base := colly.NewCollector(colly.UserAgent(cfg.UserAgent))
	base.AllowURLRevisit = true
	base.WithTransport(&http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          64,
		MaxIdleConnsPerHost:   16,
		MaxConnsPerHost:       cfg.Concurrency * 2,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: cfg.RequestTimeout,
		ForceAttemptHTTP2:     true,
	})
	base.SetRequestTimeout(cfg.RequestTimeout)

	return &CollyFetcher{
		baseCollector: base,
		referer:       cfg.Referer,
		logger:        logger,
	}, nil
}

// Fetch retrieves one page. Responses with a status code still produce a Page
// so callers can distinguish throttling from transport failure.
func (f *CollyFetcher) Fetch(ctx context.Context, rawURL string) (harvest.Page, error) {
	collector := f.baseCollector.Clone()
	resultCh := make(chan fetchResult, 1)
	var once sync.Once
	send := func(res fetchResult) {
		once.Do(func() {
			resultCh <- res
		})
	}

	collector.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml")
		r.Headers.Set("Accept-Language", "en-US,en;q=0.9")
		if f.referer != "" {
			r.Headers.Set("Referer", f.referer)
		}
	})

	collector.OnResponse(func(r *colly.Response) {
		send(fetchResult{page: harvest.Page{
			URL:        rawURL,
			FinalURL:   r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Body:       append([]byte{}, r.Body...),
		}})
	})

	collector.OnError(func(r *colly.Response, err error) {
		// A non-2xx response arrives here. Keep the status so the caller
		// can treat 429 differently from a dead connection.
		if r != nil && r.StatusCode != 0 {
			send(fetchResult{page: harvest.Page{
				URL:        rawURL,
				FinalURL:   rawURL,
				StatusCode: r.StatusCode,
				Body:       append([]byte{}, r.Body...),
			}})
			return
		}
		if err == nil {
			err = errors.New("unknown colly error")
		}
		send(fetchResult{err: err})
	})

	// Visit reports non-2xx responses as errors; the OnError callback has
	// already captured the page with its status, which takes precedence.
	visitErr := collector.Visit(rawURL)
	collector.Wait()

	select {
	case res := <-resultCh:
		if err := ctx.Err(); err != nil {
			return harvest.Page{}, err
		}
		return res.page, res.err
	default:
		if visitErr != nil {
			return harvest.Page{}, visitErr
		}
		return harvest.Page{}, errors.New("colly fetch produced no result")
	}
}

type fetchResult struct {
	page harvest.Page
	err  error
}
