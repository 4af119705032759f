// Package pagespeed implements the external performance scoring service
// client behind analyzer.ScoreService.
package pagespeed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/sitesage/webscan/internal/scan"
)

// DefaultEndpoint is the hosted scoring API.
const DefaultEndpoint = "https://www.googleapis.com/pagespeedonline/v5/runPagespeed"

// Config holds client settings. APIKey is required; a client is only
// constructed when a key is configured.
type Config struct {
	APIKey   string
	Endpoint string
	Timeout  time.Duration
}

// Client calls the scoring API and maps its lighthouse payload onto
// scan.PerformanceMetrics.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *zap.Logger
}

// New builds a scoring client. The timeout bounds the whole request.
func New(cfg Config, logger *zap.Logger) *Client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

// apiResponse mirrors the subset of the scoring payload we consume.
type apiResponse struct {
	LighthouseResult struct {
		Categories map[string]struct {
			Score float64 `json:"score"`
		} `json:"categories"`
		Audits map[string]struct {
			DisplayValue string `json:"displayValue"`
		} `json:"audits"`
	} `json:"lighthouseResult"`
}

// Score runs the four lighthouse categories against targetURL and returns
// metrics with category scores mapped to 0-100 and the six Core Web Vitals
// as display strings.
func (c *Client) Score(ctx context.Context, targetURL string) (*scan.PerformanceMetrics, error) {
	reqURL, err := c.buildURL(targetURL)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build scoring request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("scoring request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("scoring service returned %d: %s", resp.StatusCode, body)
	}

	var payload apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode scoring response: %w", err)
	}
	return c.mapMetrics(payload), nil
}

func (c *Client) buildURL(targetURL string) (string, error) {
	u, err := url.Parse(c.cfg.Endpoint)
	if err != nil {
		return "", fmt.Errorf("parse scoring endpoint: %w", err)
	}
	q := u.Query()
	q.Set("url", targetURL)
	q.Set("key", c.cfg.APIKey)
	q.Set("strategy", "desktop")
	for _, cat := range []string{"performance", "accessibility", "best-practices", "seo"} {
		q.Add("category", cat)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *Client) mapMetrics(payload apiResponse) *scan.PerformanceMetrics {
	lr := payload.LighthouseResult

	cat := func(name string) int {
		if entry, ok := lr.Categories[name]; ok {
			return int(math.Round(entry.Score * 100))
		}
		return 0
	}
	audit := func(name string) string {
		return lr.Audits[name].DisplayValue
	}

	return &scan.PerformanceMetrics{
		Score:    cat("performance"),
		Strategy: scan.PerformanceStrategyService,
		Categories: &scan.CategoryScores{
			Performance:   cat("performance"),
			Accessibility: cat("accessibility"),
			BestPractices: cat("best-practices"),
			SEO:           cat("seo"),
		},
		WebVitals: &scan.WebVitals{
			FirstContentfulPaint:   audit("first-contentful-paint"),
			LargestContentfulPaint: audit("largest-contentful-paint"),
			TimeToInteractive:      audit("interactive"),
			TotalBlockingTime:      audit("total-blocking-time"),
			CumulativeLayoutShift:  audit("cumulative-layout-shift"),
			SpeedIndex:             audit("speed-index"),
		},
	}
}
