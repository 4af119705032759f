// Package ratelimit implements per-domain rolling-window scan admission.
package ratelimit

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/sitesage/webscan/internal/scan"
	"github.com/sitesage/webscan/internal/telemetry"
)

// Config holds admission limits.
type Config struct {
	// MaxScans caps admitted scans per domain within Window.
	MaxScans int
	// Window is the rolling admission window.
	Window time.Duration
}

// Limiter gates scan admission per domain. Atomicity is delegated to the
// store's compare-and-increment; the limiter itself holds no counter state.
type Limiter struct {
	store scan.RateLimitStore
	clock scan.Clock
	cfg   Config
}

// New creates a Limiter.
func New(store scan.RateLimitStore, clock scan.Clock, cfg Config) *Limiter {
	if cfg.MaxScans <= 0 {
		cfg.MaxScans = 5
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Hour
	}
	return &Limiter{store: store, clock: clock, cfg: cfg}
}

// Admit accepts one scan for the domain or returns scan.ErrRateLimitExceeded.
func (l *Limiter) Admit(ctx context.Context, domain string) error {
	_, admitted, err := l.store.IncrementWindow(ctx, domain, l.clock.Now(), l.cfg.MaxScans, l.cfg.Window)
	if err != nil {
		return fmt.Errorf("increment rate limit window: %w", err)
	}
	if !admitted {
		telemetry.ObserveRateLimitRejection()
		return fmt.Errorf("domain %s: %w", domain, scan.ErrRateLimitExceeded)
	}
	return nil
}

// DomainOf extracts the admission domain from a target URL.
func DomainOf(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", fmt.Errorf("url %q has no host", rawURL)
	}
	return host, nil
}
