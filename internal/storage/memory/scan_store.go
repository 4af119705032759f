// Package memory provides in-memory store implementations for development
// and testing.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sitesage/webscan/internal/scan"
)

// ScanStore provides an in-memory implementation of scan.ScanStore.
type ScanStore struct {
	mu    sync.RWMutex
	scans map[string]scan.Scan
}

// NewScanStore constructs a ScanStore.
func NewScanStore() *ScanStore {
	return &ScanStore{
		scans: make(map[string]scan.Scan),
	}
}

// Create stores a new scan in pending status.
func (s *ScanStore) Create(_ context.Context, sc scan.Scan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.scans[sc.ID]; exists {
		return fmt.Errorf("scan %s: %w", sc.ID, scan.ErrAlreadyExists)
	}
	s.scans[sc.ID] = sc
	return nil
}

// UpdateStatus moves a scan forward in its lifecycle.
func (s *ScanStore) UpdateStatus(_ context.Context, scanID string, status scan.Status, errText string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc, ok := s.scans[scanID]
	if !ok {
		return scan.ErrNotFound
	}
	applyTransition(&sc, status, errText)
	s.scans[scanID] = sc
	return nil
}

// SaveResult writes the full result payload and the terminal status in one
// update.
func (s *ScanStore) SaveResult(_ context.Context, scanID string, result scan.Result, status scan.Status, errText string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc, ok := s.scans[scanID]
	if !ok {
		return scan.ErrNotFound
	}
	sc.Result = &result
	applyTransition(&sc, status, errText)
	s.scans[scanID] = sc
	return nil
}

// Get fetches a scan by ID.
func (s *ScanStore) Get(_ context.Context, scanID string) (scan.Scan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sc, ok := s.scans[scanID]
	if !ok {
		return scan.Scan{}, scan.ErrNotFound
	}
	return sc, nil
}

func applyTransition(sc *scan.Scan, status scan.Status, errText string) {
	sc.Status = status
	sc.ErrorText = errText
	now := time.Now().UTC()
	if status == scan.StatusProcessing && sc.StartedAt == nil {
		sc.StartedAt = pointerTime(now)
	}
	if isTerminal(status) && sc.FinishedAt == nil {
		sc.FinishedAt = pointerTime(now)
	}
}

func pointerTime(t time.Time) *time.Time {
	ts := t
	return &ts
}

func isTerminal(status scan.Status) bool {
	return status == scan.StatusCompleted || status == scan.StatusFailed
}
