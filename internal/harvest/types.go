// Package harvest defines the core types shared across the harvesting
// subsystems and implements the pipeline that orchestrates them.
package harvest

import (
	"bytes"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Availability is the tri-state stock signal for a product.
type Availability string

// Availability values persisted in the output artifact.
const (
	InStock    Availability = "In Stock"
	OutOfStock Availability = "Out of Stock"
	Unknown    Availability = "Unknown"
)

// Stage identifies which extraction strategy produced a candidate.
// Lower values are more specific and win merge tie-breaks.
type Stage int

// Extraction stages in strict priority order.
const (
	StageStructural Stage = iota + 1
	StageLinks
	StagePattern
	StageKeyword
	StageSeed
)

// String returns a short label for logging.
func (s Stage) String() string {
	switch s {
	case StageStructural:
		return "structural"
	case StageLinks:
		return "links"
	case StagePattern:
		return "pattern"
	case StageKeyword:
		return "keyword"
	case StageSeed:
		return "seed"
	default:
		return "unknown"
	}
}

// ProductRecord is the unit of output. A record is complete, and therefore
// eligible for emission, once both Name and ImageURL are non-empty.
type ProductRecord struct {
	Name                string       `json:"name"`
	Price               string       `json:"price,omitempty"`
	OriginalPrice       string       `json:"original_price,omitempty"`
	Description         string       `json:"description,omitempty"`
	DetailedDescription string       `json:"detailed_description,omitempty"`
	Ingredients         string       `json:"ingredients,omitempty"`
	ImageURL            string       `json:"image_url"`
	ProductURL          string       `json:"product_url,omitempty"`
	Rating              string       `json:"rating,omitempty"`
	ReviewCount         string       `json:"review_count,omitempty"`
	Availability        Availability `json:"availability"`
	Category            string       `json:"category"`
	Brand               string       `json:"brand"`
	ScrapedAt           time.Time    `json:"scraped_at"`
}

// Complete reports whether the record satisfies the mandatory-image invariant.
func (r ProductRecord) Complete() bool {
	return r.Name != "" && r.ImageURL != ""
}

// Identity returns the deduplication key: the canonical product URL when one
// is present and absolute, otherwise the normalized product name.
func (r ProductRecord) Identity() string {
	if id := CanonicalURL(r.ProductURL); id != "" {
		return id
	}
	return NormalizeName(r.Name)
}

// filledFields counts non-empty fields for the completeness tie-break.
func (r ProductRecord) filledFields() int {
	n := 0
	for _, f := range []string{
		r.Name, r.Price, r.OriginalPrice, r.Description, r.DetailedDescription,
		r.Ingredients, r.ImageURL, r.ProductURL, r.Rating, r.ReviewCount,
	} {
		if f != "" {
			n++
		}
	}
	return n
}

// Candidate is a possibly-incomplete record produced by one strategy pass,
// tagged with the stage that found it.
type Candidate struct {
	Record ProductRecord
	Stage  Stage
}

// CategoryTarget is a category discovered on the root page. It lives only for
// the duration of one run.
type CategoryTarget struct {
	Name string
	URL  string
}

// Page is a fetched document: raw bytes plus enough response metadata for the
// pipeline to classify the outcome.
type Page struct {
	URL        string
	FinalURL   string
	StatusCode int
	Body       []byte
}

// Document parses the body into a navigable tree. The parse is not cached;
// callers that need repeated selection hold on to the returned document.
func (p Page) Document() (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(bytes.NewReader(p.Body))
}

// Stats summarizes one pipeline run for logging and the output artifact.
type Stats struct {
	CategoriesFound int `json:"categories_found"`
	Discovered      int `json:"discovered"`
	AlreadySeen     int `json:"already_seen"`
	Planned         int `json:"planned"`
	Scraped         int `json:"scraped"`
	Failed          int `json:"failed"`
	WithPrices      int `json:"with_prices"`
	WithURLs        int `json:"with_urls"`
	WithImages      int `json:"products_with_images"`
	WithoutImages   int `json:"products_without_images"`
	FallbackImages  int `json:"fallback_images"`
	LedgerSize      int `json:"ledger_size"`
}

var (
	nonWordChars    = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)
	whitespaceRuns  = regexp.MustCompile(`\s+`)
	trademarkGlyphs = strings.NewReplacer("™", "", "®", "")
)

// NormalizeName reduces a product name to its identity form: trademark glyphs
// and punctuation stripped, whitespace collapsed, lowercased.
func NormalizeName(name string) string {
	s := trademarkGlyphs.Replace(name)
	s = nonWordChars.ReplaceAllString(s, "")
	s = whitespaceRuns.ReplaceAllString(strings.TrimSpace(s), " ")
	return strings.ToLower(s)
}

// CanonicalURL standardizes an absolute URL for identity comparison. It
// returns "" when the input is empty, relative, or unparseable.
func CanonicalURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	if u.Path == "" {
		u.Path = "/"
	}
	u.RawQuery = u.Query().Encode()
	return u.String()
}
