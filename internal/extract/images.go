package extract

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/beautydex/harvester/internal/harvest"
)

// ImageConfig controls the image resolution chain.
type ImageConfig struct {
	// Templates are CDN URL patterns with one %s slot for a product slug,
	// tried in order against each slug variant.
	Templates []string
	// FallbackURL is the known-good brand image applied when everything else
	// failed but a detail page did exist.
	FallbackURL string
	// ContextWindow is the character radius around the product name searched
	// for nearby image references.
	ContextWindow int
}

// ImageResolver fills the mandatory image field via a four-step chain:
// direct selectors on the detail page, a text window around the product name,
// constructed CDN URLs verified by a metadata probe, then the fixed fallback.
type ImageResolver struct {
	cfg       ImageConfig
	extractor *Extractor
	prober    harvest.Prober
	logger    *zap.Logger
}

// NewImageResolver wires the resolver to the extractor's selector lists and
// trust filter.
func NewImageResolver(cfg ImageConfig, extractor *Extractor, prober harvest.Prober, logger *zap.Logger) *ImageResolver {
	if cfg.ContextWindow <= 0 {
		cfg.ContextWindow = 2000
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImageResolver{cfg: cfg, extractor: extractor, prober: prober, logger: logger}
}

// Resolve populates record.ImageURL and reports which step produced it. An
// image found during discovery is kept as-is. The fixed fallback applies only
// when a detail page was actually fetched; a record with no page and no
// constructable image stays imageless and is filtered out downstream.
func (r *ImageResolver) Resolve(ctx context.Context, record *harvest.ProductRecord, detail harvest.Page) harvest.ImageSource {
	if record.ImageURL != "" {
		return harvest.ImageDirect
	}

	hasDetail := len(detail.Body) > 0
	if hasDetail {
		if u := r.fromSelectors(detail); u != "" {
			record.ImageURL = u
			return harvest.ImageDirect
		}
		if u := r.fromContext(detail, record.Name); u != "" {
			record.ImageURL = u
			return harvest.ImageContext
		}
	}

	if u := r.fromTemplates(ctx, record.Name); u != "" {
		record.ImageURL = u
		return harvest.ImageConstructed
	}

	if hasDetail && r.cfg.FallbackURL != "" {
		r.logger.Debug("Image resolution exhausted; using fallback",
			zap.String("product", record.Name),
		)
		record.ImageURL = r.cfg.FallbackURL
		return harvest.ImageFallback
	}
	return harvest.ImageNone
}

// fromSelectors runs the ordered image selectors over the whole detail page.
func (r *ImageResolver) fromSelectors(detail harvest.Page) string {
	doc, err := detail.Document()
	if err != nil {
		return ""
	}
	return r.extractor.imageFrom(doc.Selection)
}

// fromContext scans the raw markup around the first occurrence of the product
// name. Catches images rendered outside any recognizable container.
func (r *ImageResolver) fromContext(detail harvest.Page, name string) string {
	if name == "" {
		return ""
	}
	body := string(detail.Body)
	idx := strings.Index(strings.ToLower(body), strings.ToLower(name))
	if idx < 0 {
		return ""
	}
	start := idx - r.cfg.ContextWindow
	if start < 0 {
		start = 0
	}
	end := idx + r.cfg.ContextWindow
	if end > len(body) {
		end = len(body)
	}
	window := body[start:end]
	for _, pattern := range imagePatterns {
		m := pattern.FindStringSubmatch(window)
		if m == nil {
			continue
		}
		if u := r.extractor.trustedImageURL(m[1]); u != "" {
			return u
		}
	}
	return ""
}

// fromTemplates builds candidate CDN URLs from slug variants of the product
// name and returns the first one that answers a metadata probe.
func (r *ImageResolver) fromTemplates(ctx context.Context, name string) string {
	if r.prober == nil || name == "" {
		return ""
	}
	for _, slug := range slugVariants(name) {
		for _, tmpl := range r.cfg.Templates {
			candidate := fmt.Sprintf(tmpl, slug)
			if r.prober.Exists(ctx, candidate) {
				return candidate
			}
		}
	}
	return ""
}

// slugVariants derives the slug forms tried against the CDN templates:
// hyphenated, underscored, and the first name token alone.
func slugVariants(name string) []string {
	cleaned := make([]rune, 0, len(name))
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			cleaned = append(cleaned, r)
		default:
			cleaned = append(cleaned, ' ')
		}
	}
	tokens := strings.Fields(string(cleaned))
	if len(tokens) == 0 {
		return nil
	}
	variants := []string{strings.Join(tokens, "-")}
	if underscore := strings.Join(tokens, "_"); underscore != variants[0] {
		variants = append(variants, underscore)
	}
	if len(tokens) > 1 {
		variants = append(variants, tokens[0])
	}
	return variants
}
