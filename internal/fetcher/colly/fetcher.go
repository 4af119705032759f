// Package collyfetcher implements the single-page Fetcher using gocolly.
package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"golang.org/x/time/rate"

	"github.com/sitesage/webscan/internal/scan"
	"github.com/sitesage/webscan/internal/telemetry"
)

// Config controls collector behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
	// PerDomainRPS paces outbound requests per target domain; <= 0 disables
	// pacing. This is transport politeness, separate from scan admission.
	PerDomainRPS float64
	Burst        int
}

// Fetcher implements scan.Fetcher using the Colly collector. One attempt,
// no retry: a failed fetch fails the analyzers that depend on it, never the
// whole scan.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// New builds a Fetcher.
func New(cfg Config) *Fetcher {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	c := colly.NewCollector(colly.Async(false))
	c.IgnoreRobotsTxt = true
	c.WithTransport(newHTTPTransport())
	return &Fetcher{
		cfg:           cfg,
		baseCollector: c,
		limiters:      make(map[string]*rate.Limiter),
	}
}

// Fetch executes a single HTTP GET and returns status, headers and body.
// Non-2xx responses are still results; only transport-level failures are
// errors, classified as timeout or network.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (scan.FetchResult, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return scan.FetchResult{}, &scan.FetchError{Kind: scan.FetchNetworkError, URL: rawURL, Err: err}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return scan.FetchResult{}, &scan.FetchError{
			Kind: scan.FetchNetworkError,
			URL:  rawURL,
			Err:  fmt.Errorf("unsupported scheme %q", u.Scheme),
		}
	}

	if err := f.waitDomain(ctx, u.Hostname()); err != nil {
		return scan.FetchResult{}, &scan.FetchError{Kind: scan.FetchNetworkError, URL: rawURL, Err: err}
	}

	fetchCtx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	var (
		result   scan.FetchResult
		fetchErr error
	)
	start := time.Now()
	collector := f.buildCollector(start, &result, &fetchErr)

	if err := f.runCollector(fetchCtx, collector, rawURL); err != nil {
		return scan.FetchResult{}, f.classify(rawURL, err)
	}
	if fetchErr != nil {
		return scan.FetchResult{}, f.classify(rawURL, fetchErr)
	}
	telemetry.ObserveFetch(result.Duration)
	return result, nil
}

func (f *Fetcher) buildCollector(start time.Time, result *scan.FetchResult, fetchErr *error) *colly.Collector {
	collector := f.baseCollector.Clone()
	collector.IgnoreRobotsTxt = true
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	collector.SetRequestTimeout(f.cfg.Timeout)

	capture := func(r *colly.Response) {
		*result = scan.FetchResult{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Headers:    r.Headers.Clone(),
			Body:       append([]byte(nil), r.Body...),
			Duration:   time.Since(start),
		}
	}

	collector.OnResponse(capture)
	collector.OnError(func(r *colly.Response, err error) {
		// HTTP error statuses still carry headers worth analyzing.
		if r != nil && r.StatusCode > 0 {
			capture(r)
			return
		}
		*fetchErr = err
	})
	return collector
}

func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, url string) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("visit failed: %w", err)
		}
		return nil
	}
}

// waitDomain blocks on the per-domain pacing limiter.
func (f *Fetcher) waitDomain(ctx context.Context, domain string) error {
	if f.cfg.PerDomainRPS <= 0 {
		return nil
	}
	f.mu.Lock()
	limiter, ok := f.limiters[domain]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(f.cfg.PerDomainRPS), f.cfg.Burst)
		f.limiters[domain] = limiter
	}
	f.mu.Unlock()
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("domain pacing wait: %w", err)
	}
	return nil
}

func (f *Fetcher) classify(url string, err error) error {
	kind := scan.FetchNetworkError
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = scan.FetchTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		kind = scan.FetchTimeout
	}
	return &scan.FetchError{Kind: kind, URL: url, Err: err}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
