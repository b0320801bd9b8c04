package ledger

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// PostgresConfig controls the connection pool behind the Postgres ledger.
type PostgresConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MaxConnLifetime time.Duration
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Close()
}

// PostgresLedger records completed identities in a table, one row per
// identity. Contains is answered from an in-memory mirror loaded at startup;
// Record writes through.
type PostgresLedger struct {
	pool  querier
	table string

	mu   sync.RWMutex
	seen map[string]struct{}
}

// NewPostgresLedger connects the pool and ensures the progress table exists.
func NewPostgresLedger(ctx context.Context, cfg PostgresConfig) (*PostgresLedger, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("ledger.dsn is required")
	}
	table := cfg.Table
	if table == "" {
		table = "harvest_progress"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	l := &PostgresLedger{
		pool:  pool,
		table: table,
		seen:  make(map[string]struct{}),
	}
	if err := l.ensureTable(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return l, nil
}

func (l *PostgresLedger) ensureTable(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			identity TEXT PRIMARY KEY,
			recorded_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
	`, l.table)
	if _, err := l.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("ensure progress table: %w", err)
	}
	return nil
}

// Load mirrors all recorded identities into memory.
func (l *PostgresLedger) Load(ctx context.Context) error {
	query := fmt.Sprintf(`SELECT identity FROM %s;`, l.table)
	rows, err := l.pool.Query(ctx, query)
	if err != nil {
		return fmt.Errorf("load progress: %w", err)
	}
	defer rows.Close()

	l.mu.Lock()
	defer l.mu.Unlock()
	for rows.Next() {
		var identity string
		if err := rows.Scan(&identity); err != nil {
			return fmt.Errorf("scan progress row: %w", err)
		}
		l.seen[identity] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate progress rows: %w", err)
	}
	return nil
}

// Contains reports whether the identity has been recorded.
func (l *PostgresLedger) Contains(identity string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.seen[identity]
	return ok
}

// Record writes one identity through to the table.
func (l *PostgresLedger) Record(ctx context.Context, identity string) error {
	if identity == "" {
		return nil
	}
	query := fmt.Sprintf(`
		INSERT INTO %s (identity, recorded_at)
		VALUES ($1, now())
		ON CONFLICT (identity) DO NOTHING;
	`, l.table)
	if _, err := l.pool.Exec(ctx, query, identity); err != nil {
		return fmt.Errorf("record identity: %w", err)
	}
	l.mu.Lock()
	l.seen[identity] = struct{}{}
	l.mu.Unlock()
	return nil
}

// Flush is a no-op; Record writes through.
func (l *PostgresLedger) Flush(context.Context) error { return nil }

// Size reports the number of recorded identities.
func (l *PostgresLedger) Size() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.seen)
}

// Close releases the connection pool.
func (l *PostgresLedger) Close() {
	l.pool.Close()
}
