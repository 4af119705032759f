package analyzer

import (
	"context"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/sitesage/webscan/internal/scan"
)

// ScoreService is the optional keyed external performance scoring service.
// Implementations must be timeout-bounded; any error triggers the heuristic
// fallback.
type ScoreService interface {
	Score(ctx context.Context, targetURL string) (*scan.PerformanceMetrics, error)
}

var (
	imgTagRe    = regexp.MustCompile(`(?i)<img[\s>]`)
	scriptTagRe = regexp.MustCompile(`(?i)<script[\s>]`)
	styleLinkRe = regexp.MustCompile(`(?i)<link[^>]+rel=["']?stylesheet`)
)

// Performance scores page speed either via the external service or a local
// heuristic over the fetched page.
type Performance struct {
	service ScoreService
	logger  *zap.Logger
}

// NewPerformance creates the performance analyzer. A nil service selects the
// heuristic strategy unconditionally.
func NewPerformance(service ScoreService, logger *zap.Logger) *Performance {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Performance{service: service, logger: logger}
}

// Kind implements scan.Analyzer.
func (*Performance) Kind() scan.AnalyzerKind {
	return scan.KindPerformance
}

// Analyze prefers the external scoring service and falls back to the
// heuristic when the service is absent or fails.
func (a *Performance) Analyze(ctx context.Context, page *scan.FetchResult) (scan.AnalyzerResult, error) {
	if a.service != nil {
		metrics, err := a.service.Score(ctx, page.URL)
		if err == nil && metrics != nil {
			metrics.Strategy = scan.PerformanceStrategyService
			return scan.AnalyzerResult{Performance: metrics}, nil
		}
		a.logger.Warn("performance service failed, using heuristic",
			zap.String("url", page.URL), zap.Error(err))
	}
	return scan.AnalyzerResult{Performance: a.heuristic(page)}, nil
}

// heuristic starts at 100 and subtracts fixed penalties for slow load,
// heavy resource counts, and missing compression/cache headers, floored at 0.
func (a *Performance) heuristic(page *scan.FetchResult) *scan.PerformanceMetrics {
	body := string(page.Body)
	m := &scan.PerformanceMetrics{
		Strategy:        scan.PerformanceStrategyHeuristic,
		LoadTimeMs:      page.Duration.Milliseconds(),
		ImageCount:      len(imgTagRe.FindAllString(body, -1)),
		ScriptCount:     len(scriptTagRe.FindAllString(body, -1)),
		StylesheetCount: len(styleLinkRe.FindAllString(body, -1)),
		Compressed:      hasCompression(page),
		CacheControl:    page.Headers.Get("Cache-Control") != "",
	}

	score := 100
	switch {
	case m.LoadTimeMs > 3000:
		score -= 30
	case m.LoadTimeMs > 1500:
		score -= 15
	}
	if m.ImageCount > 20 {
		score -= 10
	}
	if m.ScriptCount > 15 {
		score -= 10
	}
	if m.StylesheetCount > 5 {
		score -= 5
	}
	if !m.Compressed {
		score -= 15
	}
	if !m.CacheControl {
		score -= 10
	}
	if score < 0 {
		score = 0
	}
	m.Score = score
	return m
}

func hasCompression(page *scan.FetchResult) bool {
	enc := strings.ToLower(page.Headers.Get("Content-Encoding"))
	return strings.Contains(enc, "gzip") || strings.Contains(enc, "br") || strings.Contains(enc, "deflate")
}
