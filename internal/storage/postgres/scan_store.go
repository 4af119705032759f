package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/sitesage/webscan/internal/scan"
)

// uniqueViolationCode is the Postgres error code for duplicate keys.
const uniqueViolationCode = "23505"

const (
	insertScanSQL = `
INSERT INTO scans (id, target_url, status, error_text, created_at)
VALUES ($1, $2, $3, $4, $5)`

	updateStatusSQL = `
UPDATE scans SET
	status = $2,
	error_text = $3,
	started_at = CASE WHEN $2 = 'processing' THEN COALESCE(started_at, NOW()) ELSE started_at END,
	finished_at = CASE WHEN $2 IN ('completed', 'failed') THEN COALESCE(finished_at, NOW()) ELSE finished_at END
WHERE id = $1`

	saveResultSQL = `
UPDATE scans SET
	status = $2,
	error_text = $3,
	result = $4,
	finished_at = COALESCE(finished_at, NOW())
WHERE id = $1`

	selectScanSQL = `
SELECT id, target_url, status, error_text, created_at, started_at, finished_at, result
FROM scans
WHERE id = $1`
)

// ScanStore persists scans in Postgres.
type ScanStore struct {
	pool dbPool
}

// NewScanStore creates a Postgres-backed ScanStore using the provided config.
func NewScanStore(ctx context.Context, cfg Config) (*ScanStore, error) {
	pool, err := newPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &ScanStore{pool: pool}, nil
}

// NewScanStoreWithPool constructs a store from an existing pool (primarily
// for testing).
func NewScanStoreWithPool(pool dbPool) (*ScanStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &ScanStore{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (s *ScanStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Create inserts the scan row.
func (s *ScanStore) Create(ctx context.Context, sc scan.Scan) error {
	if sc.ID == "" {
		return fmt.Errorf("scan id is required")
	}
	if _, err := s.pool.Exec(ctx, insertScanSQL,
		sc.ID, sc.TargetURL, string(sc.Status), sc.ErrorText, sc.CreatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return fmt.Errorf("scan %s: %w", sc.ID, scan.ErrAlreadyExists)
		}
		return fmt.Errorf("insert scan: %w", err)
	}
	return nil
}

// UpdateStatus moves a scan forward in its lifecycle. The started/finished
// timestamps are set once, in the database, so retries never rewrite them.
func (s *ScanStore) UpdateStatus(ctx context.Context, scanID string, status scan.Status, errText string) error {
	tag, err := s.pool.Exec(ctx, updateStatusSQL, scanID, string(status), errText)
	if err != nil {
		return fmt.Errorf("update scan status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return scan.ErrNotFound
	}
	return nil
}

// SaveResult writes the full result payload and the terminal status in one
// update.
func (s *ScanStore) SaveResult(ctx context.Context, scanID string, result scan.Result, status scan.Status, errText string) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal scan result: %w", err)
	}
	tag, err := s.pool.Exec(ctx, saveResultSQL, scanID, string(status), errText, payload)
	if err != nil {
		return fmt.Errorf("save scan result: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return scan.ErrNotFound
	}
	return nil
}

// Get fetches a scan by ID.
func (s *ScanStore) Get(ctx context.Context, scanID string) (scan.Scan, error) {
	var (
		sc         scan.Scan
		status     string
		startedAt  *time.Time
		finishedAt *time.Time
		payload    []byte
	)
	err := s.pool.QueryRow(ctx, selectScanSQL, scanID).Scan(
		&sc.ID, &sc.TargetURL, &status, &sc.ErrorText, &sc.CreatedAt, &startedAt, &finishedAt, &payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return scan.Scan{}, scan.ErrNotFound
		}
		return scan.Scan{}, fmt.Errorf("select scan: %w", err)
	}
	sc.Status = scan.Status(status)
	sc.StartedAt = startedAt
	sc.FinishedAt = finishedAt
	if len(payload) > 0 {
		var result scan.Result
		if err := json.Unmarshal(payload, &result); err != nil {
			return scan.Scan{}, fmt.Errorf("unmarshal scan result: %w", err)
		}
		sc.Result = &result
	}
	return sc, nil
}
