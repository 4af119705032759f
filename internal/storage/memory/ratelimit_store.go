package memory

import (
	"context"
	"sync"
	"time"

	"github.com/sitesage/webscan/internal/scan"
)

// RateLimitStore keeps one admission window per domain. A single mutex
// serializes the compare-and-increment so concurrent admissions to the same
// domain never under-count.
type RateLimitStore struct {
	mu      sync.Mutex
	windows map[string]scan.RateLimitWindow
}

// NewRateLimitStore constructs a RateLimitStore.
func NewRateLimitStore() *RateLimitStore {
	return &RateLimitStore{
		windows: make(map[string]scan.RateLimitWindow),
	}
}

// GetOrCreateWindow returns the current window, creating an empty one when
// the domain has never been scanned.
func (s *RateLimitStore) GetOrCreateWindow(_ context.Context, domain string, now time.Time) (scan.RateLimitWindow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.windows[domain]
	if !ok {
		w = scan.RateLimitWindow{Domain: domain, WindowStart: now}
		s.windows[domain] = w
	}
	return w, nil
}

// IncrementWindow atomically admits one scan for the domain.
func (s *RateLimitStore) IncrementWindow(
	_ context.Context,
	domain string,
	now time.Time,
	limit int,
	window time.Duration,
) (scan.RateLimitWindow, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.windows[domain]
	switch {
	case !ok || now.Sub(w.WindowStart) >= window:
		w = scan.RateLimitWindow{Domain: domain, Count: 1, WindowStart: now, LastScanAt: now}
	case w.Count < limit:
		w.Count++
		w.LastScanAt = now
	default:
		return w, false, nil
	}
	s.windows[domain] = w
	return w, true, nil
}
