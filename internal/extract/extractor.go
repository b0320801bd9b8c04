package extract

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/beautydex/harvester/internal/harvest"
)

// Config controls the extraction cascade.
type Config struct {
	// BaseURL resolves relative links and image references.
	BaseURL string
	// BrandToken must appear in an image URL's host or path for the image to
	// be trusted. Rejects third-party images (ads, trackers).
	BrandToken string
	// Brand and DefaultCategory are stamped on every candidate.
	Brand           string
	DefaultCategory string
	// MinStructuralYield is the stage-1 candidate count below which the
	// raw-markup pattern scan runs.
	MinStructuralYield int
	// Keywords drive the last-resort free-text scan (category nouns such as
	// "Cleanser" or "Serum").
	Keywords []string
	// ProductPathPatterns mark anchor targets as product detail pages.
	ProductPathPatterns []string
	// CategoryPathToken marks anchor targets as category pages.
	CategoryPathToken string
	// Seeds is the hand-curated catalog used when page-based discovery
	// yields nothing at all.
	Seeds []SeedProduct
}

// Extractor applies the ordered strategy cascade to one document at a time.
type Extractor struct {
	cfg             Config
	base            *url.URL
	keywordPatterns []*regexp.Regexp
	logger          *zap.Logger
}

// New builds an Extractor. The base URL must be absolute.
func New(cfg Config, logger *zap.Logger) (*Extractor, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("parse base url %q: not absolute", cfg.BaseURL)
	}
	// strings.Contains(s, "") is always true, so an empty token would let
	// every third-party image through the trust filter.
	if strings.TrimSpace(cfg.BrandToken) == "" {
		return nil, fmt.Errorf("brand token must be non-empty")
	}
	if cfg.MinStructuralYield <= 0 {
		cfg.MinStructuralYield = 50
	}
	if len(cfg.Seeds) == 0 {
		cfg.Seeds = DefaultSeedCatalog()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	patterns := make([]*regexp.Regexp, 0, len(cfg.Keywords))
	for _, kw := range cfg.Keywords {
		patterns = append(patterns, regexp.MustCompile(`([A-Z][^.!?]*`+regexp.QuoteMeta(kw)+`[^.!?]*)`))
	}
	return &Extractor{
		cfg:             cfg,
		base:            base,
		keywordPatterns: patterns,
		logger:          logger,
	}, nil
}

// Categories enumerates category targets from the root navigation page,
// deduplicated by URL in discovery order.
func (e *Extractor) Categories(page harvest.Page) []harvest.CategoryTarget {
	doc, err := page.Document()
	if err != nil {
		e.logger.Warn("Category page parse failed", zap.Error(err))
		return nil
	}
	var out []harvest.CategoryTarget
	seen := make(map[string]struct{})
	for _, sel := range categoryLinkSelectors {
		doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
			href, ok := s.Attr("href")
			if !ok || !strings.Contains(href, e.cfg.CategoryPathToken) {
				return
			}
			name := strings.TrimSpace(s.Text())
			if len(name) <= 2 {
				return
			}
			u := e.absolutize(href)
			if u == "" {
				return
			}
			if _, dup := seen[u]; dup {
				return
			}
			seen[u] = struct{}{}
			out = append(out, harvest.CategoryTarget{Name: name, URL: u})
		})
	}
	return out
}

// Discover runs the cascade against one category page. Stage 1 (structural
// selection) and stage 2 (link harvesting) always run; stage 3 (pattern scan)
// runs when stage 1 under-extracts; stages 4 and 5 only when everything
// before them found nothing.
func (e *Extractor) Discover(page harvest.Page, category harvest.CategoryTarget) []harvest.Candidate {
	var out []harvest.Candidate

	doc, err := page.Document()
	if err != nil {
		e.logger.Warn("Category document parse failed",
			zap.String("category", category.Name),
			zap.Error(err),
		)
		return e.seedCandidates(category)
	}

	structural := e.discoverStructural(doc, category)
	out = append(out, structural...)
	out = append(out, e.discoverLinks(doc, category)...)

	if len(structural) < e.cfg.MinStructuralYield {
		out = append(out, e.discoverPatterns(string(page.Body), category)...)
	}
	if len(out) == 0 {
		out = append(out, e.discoverKeywords(doc, category)...)
	}
	if len(out) == 0 {
		e.logger.Warn("Page-based discovery found nothing; using seed catalog",
			zap.String("category", category.Name),
		)
		out = e.seedCandidates(category)
	}
	return out
}

// Enrich fills remaining fields from a product detail page. Existing values
// are never overwritten; detail pages rank below the discovery stages.
func (e *Extractor) Enrich(page harvest.Page, rec *harvest.ProductRecord) {
	doc, err := page.Document()
	if err != nil {
		return
	}
	root := doc.Selection
	if rec.Price == "" {
		rec.Price = e.priceFrom(root)
	}
	if rec.DetailedDescription == "" {
		rec.DetailedDescription = firstText(root, detailDescriptionSelectors)
	}
	if rec.Ingredients == "" {
		rec.Ingredients = firstText(root, ingredientSelectors)
	}
	if rec.Availability == "" || rec.Availability == harvest.Unknown {
		if avail := availabilityFrom(root.Text()); avail != harvest.Unknown {
			rec.Availability = avail
		}
	}
}

// discoverStructural is stage 1: container elements whose class signals
// product-ness, with field-specific ordered selector lists per container.
func (e *Extractor) discoverStructural(doc *goquery.Document, category harvest.CategoryTarget) []harvest.Candidate {
	var out []harvest.Candidate
	for _, sel := range containerSelectors {
		doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
			rec := e.recordFromContainer(s, category)
			if rec.Name == "" {
				return
			}
			out = append(out, harvest.Candidate{Record: rec, Stage: harvest.StageStructural})
		})
	}
	return out
}

// discoverLinks is stage 2: anchors whose target path matches a known
// product-path pattern. Always runs to catch containers stage 1 missed.
func (e *Extractor) discoverLinks(doc *goquery.Document, category harvest.CategoryTarget) []harvest.Candidate {
	var out []harvest.Candidate
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if !e.isProductPath(href) {
			return
		}
		name := strings.TrimSpace(s.Text())
		if len(name) <= 3 {
			return
		}
		out = append(out, harvest.Candidate{
			Record: harvest.ProductRecord{
				Name:         name,
				ProductURL:   e.absolutize(href),
				Category:     category.Name,
				Brand:        e.cfg.Brand,
				Availability: harvest.Unknown,
			},
			Stage: harvest.StageLinks,
		})
	})
	return out
}

// discoverPatterns is stage 3: an ordered list of tag/attribute regular
// expressions over the raw markup. Lower precision, gated behind the
// minimum-yield threshold.
func (e *Extractor) discoverPatterns(body string, category harvest.CategoryTarget) []harvest.Candidate {
	var out []harvest.Candidate
	for _, pattern := range fragmentPatterns {
		for _, m := range pattern.FindAllStringSubmatch(body, -1) {
			rec := e.recordFromFragment(m[1], category)
			if rec.Name == "" {
				continue
			}
			out = append(out, harvest.Candidate{Record: rec, Stage: harvest.StagePattern})
		}
	}
	return out
}

// discoverKeywords is stage 4: scan free text for domain keyword tokens and
// synthesize bare-name candidates. These carry no image and exist only to
// seed later per-product lookups.
func (e *Extractor) discoverKeywords(doc *goquery.Document, category harvest.CategoryTarget) []harvest.Candidate {
	text := doc.Text()
	var out []harvest.Candidate
	for _, pattern := range e.keywordPatterns {
		for _, m := range pattern.FindAllStringSubmatch(text, -1) {
			name := strings.TrimSpace(m[1])
			if len(name) <= 10 || len(name) >= 100 {
				continue
			}
			out = append(out, harvest.Candidate{
				Record: harvest.ProductRecord{
					Name:         name,
					Category:     category.Name,
					Brand:        e.cfg.Brand,
					Availability: harvest.Unknown,
				},
				Stage: harvest.StageKeyword,
			})
		}
	}
	return out
}

// seedCandidates is stage 5: the hand-curated catalog, each entry enriched
// later via its detail page like any other planned item.
func (e *Extractor) seedCandidates(category harvest.CategoryTarget) []harvest.Candidate {
	out := make([]harvest.Candidate, 0, len(e.cfg.Seeds))
	for _, seed := range e.cfg.Seeds {
		out = append(out, harvest.Candidate{
			Record: harvest.ProductRecord{
				Name:         seed.Name,
				Price:        seed.Price,
				ProductURL:   e.absolutize(seed.Path),
				Category:     seed.Category,
				Brand:        e.cfg.Brand,
				Availability: harvest.Unknown,
			},
			Stage: harvest.StageSeed,
		})
	}
	return out
}

func (e *Extractor) recordFromContainer(s *goquery.Selection, category harvest.CategoryTarget) harvest.ProductRecord {
	rec := harvest.ProductRecord{
		Category:     category.Name,
		Brand:        e.cfg.Brand,
		Availability: availabilityFrom(s.Text()),
	}
	rec.Name = firstText(s, nameSelectors)
	rec.Price = e.priceFrom(s)
	rec.ImageURL = e.imageFrom(s)
	rec.Description = firstText(s, descriptionSelectors)

	for _, sel := range linkSelectors {
		href, ok := s.Find(sel).First().Attr("href")
		if !ok {
			continue
		}
		if e.isProductPath(href) {
			rec.ProductURL = e.absolutize(href)
			break
		}
	}
	return rec
}

func (e *Extractor) recordFromFragment(fragment string, category harvest.CategoryTarget) harvest.ProductRecord {
	rec := harvest.ProductRecord{
		Category:     category.Name,
		Brand:        e.cfg.Brand,
		Availability: availabilityFrom(fragment),
	}
	if m := headingPattern.FindStringSubmatch(fragment); m != nil {
		rec.Name = strings.TrimSpace(m[1])
	}
	if m := doublePricePattern.FindStringSubmatch(fragment); m != nil {
		rec.OriginalPrice = "$" + m[1]
		rec.Price = "$" + m[2]
	} else if m := pricePattern.FindStringSubmatch(fragment); m != nil {
		rec.Price = "$" + m[1]
	}
	if m := paragraphPattern.FindStringSubmatch(fragment); m != nil {
		rec.Description = strings.TrimSpace(m[1])
	}
	for _, pattern := range imagePatterns {
		m := pattern.FindStringSubmatch(fragment)
		if m == nil {
			continue
		}
		if u := e.trustedImageURL(m[1]); u != "" {
			rec.ImageURL = u
			break
		}
	}
	if m := hrefPattern.FindStringSubmatch(fragment); m != nil && e.isProductPath(m[1]) {
		rec.ProductURL = e.absolutize(m[1])
	}
	if m := ratingPattern.FindStringSubmatch(fragment); m != nil {
		rec.Rating = m[1]
	}
	if m := reviewPattern.FindStringSubmatch(fragment); m != nil {
		rec.ReviewCount = m[1]
	}
	return rec
}

// priceFrom normalizes the first dollar amount under the ordered price
// selectors. A missing or malformed price leaves the field empty, never
// fabricated.
func (e *Extractor) priceFrom(s *goquery.Selection) string {
	for _, sel := range priceSelectors {
		text := strings.TrimSpace(s.Find(sel).First().Text())
		if text == "" {
			continue
		}
		if m := pricePattern.FindStringSubmatch(text); m != nil {
			return "$" + m[1]
		}
	}
	return ""
}

// imageFrom returns the first trusted image URL in a container, preferring
// src, then data-src, then data-lazy on each matched element.
func (e *Extractor) imageFrom(s *goquery.Selection) string {
	for _, sel := range imageSelectors {
		img := s.Find(sel).First()
		if img.Length() == 0 {
			continue
		}
		for _, attr := range imageAttrs {
			raw, ok := img.Attr(attr)
			if !ok {
				continue
			}
			if u := e.trustedImageURL(raw); u != "" {
				return u
			}
		}
	}
	return ""
}

// trustedImageURL absolutizes an image reference and applies the brand-token
// trust filter. Returns "" when the URL is too short, unparseable, or does
// not reference the target site's own domain or brand string.
func (e *Extractor) trustedImageURL(raw string) string {
	if len(raw) <= 10 {
		return ""
	}
	abs := e.absolutize(raw)
	if abs == "" {
		return ""
	}
	u, err := url.Parse(abs)
	if err != nil {
		return ""
	}
	token := strings.ToLower(e.cfg.BrandToken)
	if strings.Contains(strings.ToLower(u.Host), token) || strings.Contains(strings.ToLower(u.Path), token) {
		return abs
	}
	return ""
}

func (e *Extractor) absolutize(href string) string {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	return e.base.ResolveReference(ref).String()
}

func (e *Extractor) isProductPath(href string) bool {
	for _, p := range e.cfg.ProductPathPatterns {
		if strings.Contains(href, p) {
			return true
		}
	}
	return false
}

// firstText walks the ordered selector list, returning the first non-empty
// trimmed text. Later selectors are not consulted once a field is filled.
func firstText(s *goquery.Selection, selectors []string) string {
	for _, sel := range selectors {
		if text := strings.TrimSpace(s.Find(sel).First().Text()); text != "" {
			return text
		}
	}
	return ""
}

// availabilityFrom infers the tri-state stock signal from page text.
func availabilityFrom(text string) harvest.Availability {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "sold out") || strings.Contains(lower, "out of stock"):
		return harvest.OutOfStock
	case strings.Contains(lower, "add to bag") || strings.Contains(lower, "add to cart"):
		return harvest.InStock
	default:
		return harvest.Unknown
	}
}
