package harvest

import (
	"context"
	"time"
)

// Fetcher turns a URL into a Page or a typed failure. Implementations surface
// HTTP status codes on the Page whenever a response was received, so the
// pipeline can distinguish rate limiting from hard failures.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (Page, error)
}

// Prober performs a lightweight existence check (a metadata-only fetch) for a
// candidate URL, used when constructing CDN image URLs.
type Prober interface {
	Exists(ctx context.Context, rawURL string) bool
}

// RateBudget governs request pacing. BeforeRequest blocks until the next
// request may be sent; OnResponse feeds status codes back so the budget can
// grow its backoff after rate-limit signals.
type RateBudget interface {
	BeforeRequest(ctx context.Context) error
	OnResponse(statusCode int)
}

// RetryPolicy decides whether a failed fetch is worth another attempt and how
// long to wait before it.
type RetryPolicy interface {
	ShouldRetry(err error, attempt int) bool
	Backoff(attempt int) time.Duration
}

// RobotsPolicy answers whether a URL may be fetched at all.
type RobotsPolicy interface {
	Allowed(ctx context.Context, rawURL string) bool
}

// Ledger is the durable set of previously-completed product identities.
// Load failures degrade to an empty ledger; they never abort a run.
type Ledger interface {
	Load(ctx context.Context) error
	Contains(identity string) bool
	Record(ctx context.Context, identity string) error
	Flush(ctx context.Context) error
	Size() int
}

// Extractor applies the strategy cascade to fetched documents.
type Extractor interface {
	Categories(page Page) []CategoryTarget
	Discover(page Page, category CategoryTarget) []Candidate
	Enrich(page Page, record *ProductRecord)
}

// ImageResolver populates the mandatory image URL on a record, or leaves it
// unchanged when every strategy fails.
type ImageResolver interface {
	Resolve(ctx context.Context, record *ProductRecord, detail Page) ImageSource
}

// ImageSource reports which strategy produced a resolved image.
type ImageSource int

// Image resolution outcomes in attempt order.
const (
	ImageNone ImageSource = iota
	ImageDirect
	ImageContext
	ImageConstructed
	ImageFallback
)

// Sink persists the run's output set, merged with any previously-persisted
// products.
type Sink interface {
	Persist(ctx context.Context, info RunInfo, products []ProductRecord) error
}

// RunInfo accompanies the products written by a Sink.
type RunInfo struct {
	RunID     string
	SourceURL string
	StartedAt time.Time
	Stats     Stats
}
