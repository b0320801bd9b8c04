// Package output persists harvest results as a JSON artifact with run
// metadata, merged across runs so repeated invocations accumulate a catalog.
package output

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/beautydex/harvester/internal/harvest"
)

// document is the artifact shape: metadata first, then the product list.
type document struct {
	ScraperInfo scraperInfo             `json:"scraper_info"`
	Products    []harvest.ProductRecord `json:"products"`
}

type scraperInfo struct {
	RunID         string    `json:"run_id"`
	Source        string    `json:"source"`
	ScrapedAt     time.Time `json:"scraped_at"`
	TotalProducts int       `json:"total_products"`
	NewThisRun    int       `json:"new_this_run"`
	Categories    int       `json:"categories_found"`
	Failed        int       `json:"items_failed"`
}

// Store implements harvest.Sink on a local JSON file.
type Store struct {
	path   string
	logger *zap.Logger
}

// NewStore creates a file-backed sink writing to path.
func NewStore(path string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{path: path, logger: logger}
}

// Persist merges this run's products into any existing artifact and rewrites
// it. Records without an image are dropped; every persisted product is
// displayable. Existing products win identity collisions so re-runs never
// degrade previously captured fields.
func (s *Store) Persist(_ context.Context, info harvest.RunInfo, products []harvest.ProductRecord) error {
	existing := s.readExisting()

	merged := make([]harvest.ProductRecord, 0, len(existing)+len(products))
	seen := make(map[string]struct{}, len(existing))
	for _, p := range existing {
		merged = append(merged, p)
		seen[p.Identity()] = struct{}{}
	}

	var added, imageless int
	for _, p := range products {
		if p.ImageURL == "" {
			imageless++
			continue
		}
		if _, dup := seen[p.Identity()]; dup {
			continue
		}
		seen[p.Identity()] = struct{}{}
		merged = append(merged, p)
		added++
	}
	if imageless > 0 {
		s.logger.Warn("Dropped products without a resolvable image",
			zap.Int("count", imageless),
		)
	}

	doc := document{
		ScraperInfo: scraperInfo{
			RunID:         info.RunID,
			Source:        info.SourceURL,
			ScrapedAt:     time.Now().UTC(),
			TotalProducts: len(merged),
			NewThisRun:    added,
			Categories:    info.Stats.CategoriesFound,
			Failed:        info.Stats.Failed,
		},
		Products: merged,
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace output: %w", err)
	}
	s.logger.Info("Output persisted",
		zap.String("path", s.path),
		zap.Int("total", len(merged)),
		zap.Int("new", added),
	)
	return nil
}

// readExisting loads the prior artifact's products. Any failure means a
// fresh file; a corrupt artifact never blocks persisting new work.
func (s *Store) readExisting() []harvest.ProductRecord {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("Existing output unreadable; rewriting",
				zap.String("path", s.path),
				zap.Error(err),
			)
		}
		return nil
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		s.logger.Warn("Existing output malformed; rewriting",
			zap.String("path", s.path),
			zap.Error(err),
		)
		return nil
	}
	return doc.Products
}
