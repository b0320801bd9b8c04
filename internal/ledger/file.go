// Package ledger provides the durable record of completed product identities
// that makes interrupted runs resumable. The file backend is the default;
// Postgres is available for shared deployments.
package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// fileState is the on-disk shape of the progress file.
type fileState struct {
	ScrapedURLs []string  `json:"scraped_urls"`
	LastUpdated time.Time `json:"last_updated"`
}

// FileLedger stores completed identities in a single JSON file, rewritten
// after every recorded item so a kill mid-run loses at most the item in
// flight.
type FileLedger struct {
	path   string
	logger *zap.Logger

	mu   sync.RWMutex
	seen map[string]struct{}
}

// NewFileLedger creates a ledger backed by path.
func NewFileLedger(path string, logger *zap.Logger) *FileLedger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileLedger{
		path:   path,
		logger: logger,
		seen:   make(map[string]struct{}),
	}
}

// Load reads the progress file. A missing, unreadable, or malformed file
// degrades to an empty ledger with a warning; resumability is best effort
// and never blocks a fresh harvest.
func (l *FileLedger) Load(_ context.Context) error {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		l.logger.Warn("Progress file unreadable; starting fresh",
			zap.String("path", l.path),
			zap.Error(err),
		)
		return nil
	}
	var state fileState
	if err := json.Unmarshal(data, &state); err != nil {
		l.logger.Warn("Progress file malformed; starting fresh",
			zap.String("path", l.path),
			zap.Error(err),
		)
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, u := range state.ScrapedURLs {
		l.seen[u] = struct{}{}
	}
	return nil
}

// Contains reports whether the identity was completed in a prior run or
// earlier in this one.
func (l *FileLedger) Contains(identity string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.seen[identity]
	return ok
}

// Record adds one identity and rewrites the file immediately.
func (l *FileLedger) Record(_ context.Context, identity string) error {
	if identity == "" {
		return nil
	}
	l.mu.Lock()
	l.seen[identity] = struct{}{}
	l.mu.Unlock()
	return l.write()
}

// Flush rewrites the file from the in-memory set.
func (l *FileLedger) Flush(_ context.Context) error {
	return l.write()
}

// Size reports the number of recorded identities.
func (l *FileLedger) Size() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.seen)
}

func (l *FileLedger) write() error {
	l.mu.RLock()
	state := fileState{
		ScrapedURLs: make([]string, 0, len(l.seen)),
		LastUpdated: time.Now().UTC(),
	}
	for u := range l.seen {
		state.ScrapedURLs = append(state.ScrapedURLs, u)
	}
	l.mu.RUnlock()
	sort.Strings(state.ScrapedURLs)

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal progress: %w", err)
	}
	if dir := filepath.Dir(l.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create progress dir: %w", err)
		}
	}
	tmp := l.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write progress: %w", err)
	}
	if err := os.Rename(tmp, l.path); err != nil {
		return fmt.Errorf("replace progress: %w", err)
	}
	return nil
}
