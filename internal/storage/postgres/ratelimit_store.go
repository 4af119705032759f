package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/sitesage/webscan/internal/scan"
)

// incrementWindowSQL admits one scan in a single statement. An expired window
// resets to count=1, an open window increments while count < limit, and a
// full window matches neither branch of the WHERE clause so no row comes
// back. The atomicity lives entirely in Postgres.
const incrementWindowSQL = `
INSERT INTO scan_rate_limits (domain, count, window_start, last_scan_at)
VALUES ($1, 1, $2, $2)
ON CONFLICT (domain) DO UPDATE SET
	count = CASE WHEN scan_rate_limits.window_start <= $3 THEN 1 ELSE scan_rate_limits.count + 1 END,
	window_start = CASE WHEN scan_rate_limits.window_start <= $3 THEN $2 ELSE scan_rate_limits.window_start END,
	last_scan_at = $2
WHERE scan_rate_limits.window_start <= $3 OR scan_rate_limits.count < $4
RETURNING count, window_start, last_scan_at`

const getOrCreateWindowSQL = `
INSERT INTO scan_rate_limits (domain, count, window_start, last_scan_at)
VALUES ($1, 0, $2, $2)
ON CONFLICT (domain) DO UPDATE SET domain = EXCLUDED.domain
RETURNING count, window_start, last_scan_at`

const selectWindowSQL = `
SELECT count, window_start, last_scan_at
FROM scan_rate_limits
WHERE domain = $1`

// RateLimitStore keeps per-domain admission windows in Postgres.
type RateLimitStore struct {
	pool dbPool
}

// NewRateLimitStore creates a Postgres-backed RateLimitStore.
func NewRateLimitStore(ctx context.Context, cfg Config) (*RateLimitStore, error) {
	pool, err := newPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &RateLimitStore{pool: pool}, nil
}

// NewRateLimitStoreWithPool constructs a store from an existing pool
// (primarily for testing).
func NewRateLimitStoreWithPool(pool dbPool) (*RateLimitStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &RateLimitStore{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (s *RateLimitStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// GetOrCreateWindow returns the current window, creating an empty one when
// the domain has never been scanned.
func (s *RateLimitStore) GetOrCreateWindow(ctx context.Context, domain string, now time.Time) (scan.RateLimitWindow, error) {
	w := scan.RateLimitWindow{Domain: domain}
	err := s.pool.QueryRow(ctx, getOrCreateWindowSQL, domain, now).
		Scan(&w.Count, &w.WindowStart, &w.LastScanAt)
	if err != nil {
		return scan.RateLimitWindow{}, fmt.Errorf("get rate limit window: %w", err)
	}
	return w, nil
}

// IncrementWindow atomically admits one scan for the domain. No returned row
// means the window is full.
func (s *RateLimitStore) IncrementWindow(
	ctx context.Context,
	domain string,
	now time.Time,
	limit int,
	window time.Duration,
) (scan.RateLimitWindow, bool, error) {
	cutoff := now.Add(-window)
	w := scan.RateLimitWindow{Domain: domain}
	err := s.pool.QueryRow(ctx, incrementWindowSQL, domain, now, cutoff, limit).
		Scan(&w.Count, &w.WindowStart, &w.LastScanAt)
	if err == nil {
		return w, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return scan.RateLimitWindow{}, false, fmt.Errorf("increment rate limit window: %w", err)
	}

	// Rejected: report the window that caused it.
	err = s.pool.QueryRow(ctx, selectWindowSQL, domain).
		Scan(&w.Count, &w.WindowStart, &w.LastScanAt)
	if err != nil {
		return scan.RateLimitWindow{}, false, fmt.Errorf("select rate limit window: %w", err)
	}
	return w, false, nil
}
