package harvest

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Config holds the settings for one harvest session.
type Config struct {
	// CategoryURL is the root category page that seeds discovery.
	CategoryURL string
	// DefaultCategory labels products when no category is discovered.
	DefaultCategory string
	// Brand is stamped on every record.
	Brand string
}

// Pipeline orchestrates discovery, extraction, image resolution,
// deduplication, and persistence. It runs a single sequential worker: one
// in-flight request to the target host at a time.
type Pipeline struct {
	cfg       Config
	fetcher   Fetcher
	extractor Extractor
	images    ImageResolver
	budget    RateBudget
	retry     RetryPolicy
	robots    RobotsPolicy
	ledger    Ledger
	sink      Sink
	planner   BatchPlanner
	logger    *zap.Logger
	now       func() time.Time
}

// NewPipeline wires a Pipeline from its collaborators.
func NewPipeline(
	cfg Config,
	fetcher Fetcher,
	extractor Extractor,
	images ImageResolver,
	budget RateBudget,
	retry RetryPolicy,
	robots RobotsPolicy,
	ledger Ledger,
	sink Sink,
	planner BatchPlanner,
	logger *zap.Logger,
) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		cfg:       cfg,
		fetcher:   fetcher,
		extractor: extractor,
		images:    images,
		budget:    budget,
		retry:     retry,
		robots:    robots,
		ledger:    ledger,
		sink:      sink,
		planner:   planner,
		logger:    logger,
		now:       time.Now,
	}
}

// Run executes one harvest invocation: discover categories, discover
// products, plan the batch, enrich each planned item, and persist results.
// A run with zero planned items is a successful terminal run.
func (p *Pipeline) Run(ctx context.Context) (Stats, error) {
	var stats Stats
	startedAt := p.now().UTC()

	if err := p.ledger.Load(ctx); err != nil {
		p.logger.Warn("Ledger load failed; starting with empty ledger", zap.Error(err))
	}

	if !p.robots.Allowed(ctx, p.cfg.CategoryURL) {
		return stats, fmt.Errorf("category page %s: %w", p.cfg.CategoryURL, ErrRobotsDisallowed)
	}

	rootPage, err := p.fetchPage(ctx, p.cfg.CategoryURL)
	if err != nil {
		return stats, fmt.Errorf("fetch category page: %w", err)
	}

	categories := p.extractor.Categories(rootPage)
	if len(categories) == 0 {
		p.logger.Warn("No categories discovered; falling back to the root category page")
		categories = []CategoryTarget{{Name: p.cfg.DefaultCategory, URL: p.cfg.CategoryURL}}
	}
	stats.CategoriesFound = len(categories)

	dedupe := NewDeduplicator(p.ledger)
	groups := p.discoverProducts(ctx, rootPage, categories, dedupe, &stats)

	plan := p.planner.Plan(groups)
	stats.Planned = len(plan)
	p.logger.Info("Batch planned",
		zap.Int("categories", stats.CategoriesFound),
		zap.Int("discovered", stats.Discovered),
		zap.Int("already_seen", stats.AlreadySeen),
		zap.Int("planned", stats.Planned),
	)

	products, runErr := p.enrichAll(ctx, plan, &stats)

	// Persist even when interrupted: every emitted product was already
	// recorded in the ledger, so dropping the output file would lose them.
	persistCtx := ctx
	if ctx.Err() != nil {
		persistCtx = context.WithoutCancel(ctx)
	}
	info := RunInfo{
		RunID:     uuid.NewString(),
		SourceURL: p.cfg.CategoryURL,
		StartedAt: startedAt,
		Stats:     stats,
	}
	if err := p.sink.Persist(persistCtx, info, products); err != nil {
		return stats, fmt.Errorf("persist output: %w", err)
	}
	if err := p.ledger.Flush(persistCtx); err != nil {
		return stats, fmt.Errorf("flush ledger: %w", err)
	}
	stats.LedgerSize = p.ledger.Size()

	p.logger.Info("Harvest run finished",
		zap.Int("scraped", stats.Scraped),
		zap.Int("failed", stats.Failed),
		zap.Int("with_prices", stats.WithPrices),
		zap.Int("with_images", stats.WithImages),
		zap.Int("without_images", stats.WithoutImages),
		zap.Int("with_urls", stats.WithURLs),
		zap.Int("ledger_size", stats.LedgerSize),
	)
	return stats, runErr
}

// discoverProducts fetches each category page and returns per-category groups
// of novel, identity-merged candidates, in discovery order. Category fetch
// failures skip the category, never the run.
func (p *Pipeline) discoverProducts(
	ctx context.Context,
	rootPage Page,
	categories []CategoryTarget,
	dedupe *Deduplicator,
	stats *Stats,
) [][]Candidate {
	groups := make([][]Candidate, 0, len(categories))
	admitted := 0
	for _, cat := range categories {
		if p.planner.Full(admitted) {
			break
		}
		if ctx.Err() != nil {
			break
		}
		page := rootPage
		if CanonicalURL(cat.URL) != CanonicalURL(p.cfg.CategoryURL) {
			var err error
			page, err = p.fetchPage(ctx, cat.URL)
			if err != nil {
				p.logger.Warn("Category fetch failed; skipping",
					zap.String("category", cat.Name),
					zap.String("url", cat.URL),
					zap.Error(err),
				)
				continue
			}
		}
		group := p.collectCategory(page, cat, dedupe, stats)
		admitted += p.planner.Draw(len(group))
		groups = append(groups, group)
	}
	// A later category may have surfaced a more complete duplicate. The
	// winner replaces the first-admitted candidate in place, so the product
	// keeps its original category slot in the plan.
	for _, group := range groups {
		for i, c := range group {
			if winner, ok := dedupe.Resolve(c.Record.Identity()); ok {
				group[i] = winner
			}
		}
	}
	return groups
}

// collectCategory runs the extraction cascade on one category page and folds
// the raw candidates into one merged candidate per novel identity.
func (p *Pipeline) collectCategory(
	page Page,
	cat CategoryTarget,
	dedupe *Deduplicator,
	stats *Stats,
) []Candidate {
	cands := p.extractor.Discover(page, cat)
	stats.Discovered += len(cands)

	var order []string
	byID := make(map[string][]Candidate)
	for _, c := range cands {
		id := c.Record.Identity()
		if id == "" {
			continue
		}
		if _, ok := byID[id]; !ok {
			order = append(order, id)
		}
		byID[id] = append(byID[id], c)
	}

	var out []Candidate
	for _, id := range order {
		group := byID[id]
		merged := Candidate{Record: MergeCandidates(group), Stage: minStage(group)}
		if !dedupe.Admit(merged) {
			stats.AlreadySeen++
			TotalProductsSkipped.Inc()
			continue
		}
		out = append(out, merged)
	}
	p.logger.Debug("Category collected",
		zap.String("category", cat.Name),
		zap.Int("raw_candidates", len(cands)),
		zap.Int("novel", len(out)),
	)
	return out
}

// enrichAll works through the planned items in order. Individual failures are
// logged and counted, never fatal; only context cancellation stops the loop.
func (p *Pipeline) enrichAll(ctx context.Context, plan []Candidate, stats *Stats) ([]ProductRecord, error) {
	var out []ProductRecord
	for i, item := range plan {
		if err := ctx.Err(); err != nil {
			p.logger.Warn("Run interrupted; persisting partial results",
				zap.Int("completed", i),
				zap.Int("planned", len(plan)),
			)
			return out, err
		}
		rec, ok := p.enrichOne(ctx, item, stats)
		if !ok {
			continue
		}
		id := rec.Identity()
		if p.ledger.Contains(id) {
			stats.AlreadySeen++
			TotalProductsSkipped.Inc()
			continue
		}
		if err := p.ledger.Record(ctx, id); err != nil {
			// Next run may re-scrape this product; accepted at-least-once risk.
			p.logger.Warn("Ledger record failed", zap.String("identity", id), zap.Error(err))
		}
		out = append(out, rec)
		stats.Scraped++
		stats.WithImages++
		if rec.Price != "" {
			stats.WithPrices++
		}
		if rec.ProductURL != "" {
			stats.WithURLs++
		}
		TotalProductsScraped.Inc()
		p.logger.Info("Product scraped",
			zap.Int("index", i+1),
			zap.Int("of", len(plan)),
			zap.String("name", rec.Name),
			zap.String("price", rec.Price),
		)
	}
	return out, nil
}

// enrichOne completes a single planned item: fetch its detail page, extract
// the remaining fields, and resolve the mandatory image.
func (p *Pipeline) enrichOne(ctx context.Context, item Candidate, stats *Stats) (ProductRecord, bool) {
	rec := item.Record
	rec.ScrapedAt = p.now().UTC()
	if rec.Brand == "" {
		rec.Brand = p.cfg.Brand
	}
	if rec.Category == "" {
		rec.Category = p.cfg.DefaultCategory
	}
	if rec.Availability == "" {
		rec.Availability = Unknown
	}

	var detail Page
	if rec.ProductURL != "" {
		var err error
		detail, err = p.fetchPage(ctx, rec.ProductURL)
		if err != nil {
			stats.Failed++
			TotalItemsFailed.Inc()
			p.logger.Warn("Detail page fetch failed; item abandoned for this run",
				zap.String("name", rec.Name),
				zap.String("url", rec.ProductURL),
				zap.Error(err),
			)
			return rec, false
		}
		p.extractor.Enrich(detail, &rec)
	}

	src := p.images.Resolve(ctx, &rec, detail)
	if src == ImageFallback {
		stats.FallbackImages++
		TotalImageFallbacks.Inc()
	}
	if !rec.Complete() {
		stats.WithoutImages++
		p.logger.Debug("Record withheld: no resolvable image", zap.String("name", rec.Name))
		return rec, false
	}
	return rec, true
}

// fetchPage performs one rate-budgeted fetch with retry. A 429 response and a
// transport failure are both retryable; any other non-200 status is a hard
// failure for the attempt.
func (p *Pipeline) fetchPage(ctx context.Context, rawURL string) (Page, error) {
	if !p.robots.Allowed(ctx, rawURL) {
		return Page{}, fmt.Errorf("%s: %w", rawURL, ErrRobotsDisallowed)
	}
	var last error
	for attempt := 1; ; attempt++ {
		if err := p.budget.BeforeRequest(ctx); err != nil {
			return Page{}, fmt.Errorf("rate budget: %w", err)
		}
		TotalRequests.Inc()
		page, err := p.fetcher.Fetch(ctx, rawURL)
		if err == nil {
			p.budget.OnResponse(page.StatusCode)
			switch page.StatusCode {
			case http.StatusOK:
				return page, nil
			case http.StatusTooManyRequests:
				TotalRateLimitHits.Inc()
				last = fmt.Errorf("status 429 from %s: %w", rawURL, ErrRateLimited)
			default:
				last = fmt.Errorf("status %d from %s: %w", page.StatusCode, rawURL, ErrHardFailure)
			}
		} else {
			TotalRequestErrors.Inc()
			last = fmt.Errorf("fetch %s: %w", rawURL, err)
		}
		if !p.retry.ShouldRetry(last, attempt) {
			return Page{}, last
		}
		if err := pause(ctx, p.retry.Backoff(attempt)); err != nil {
			return Page{}, err
		}
	}
}

// pause sleeps for the given delay, returning early if the context finishes.
func pause(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func minStage(cands []Candidate) Stage {
	s := cands[0].Stage
	for _, c := range cands[1:] {
		if c.Stage < s {
			s = c.Stage
		}
	}
	return s
}
