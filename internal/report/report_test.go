package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitesage/webscan/internal/scan"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func newTestGenerator() *Generator {
	return New("SiteSage", fixedClock{t: time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)})
}

func minimalScan() (scan.Scan, scan.Result) {
	s := scan.Scan{
		ID:        "0195f3a2-0000-7000-8000-000000000001",
		TargetURL: "https://example.com",
		Status:    scan.StatusCompleted,
	}
	result := scan.Result{
		Analyzers: []scan.AnalyzerResult{
			{
				Kind: scan.KindSecurity, Status: scan.AnalyzerCompleted,
				Security: &scan.SecurityMetrics{ChecksPerformed: 7, ChecksPassed: 7},
			},
			{
				Kind: scan.KindPerformance, Status: scan.AnalyzerCompleted,
				Performance: &scan.PerformanceMetrics{
					Score:    90,
					Strategy: scan.PerformanceStrategyHeuristic,
				},
			},
		},
		Aggregate: scan.AggregateResult{OverallScore: 93},
	}
	return s, result
}

func TestGenerateMinimalSinglePage(t *testing.T) {
	g := newTestGenerator()
	s, result := minimalScan()

	doc, err := g.Generate(s, result)
	require.NoError(t, err)

	assert.Equal(t, 1, doc.Pages)
	assert.Equal(t, len(doc.Bytes), doc.Length)
	assert.NotEmpty(t, doc.Bytes)
	assert.Equal(t, "%PDF", string(doc.Bytes[:4]))
	assert.Equal(t, time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC), doc.GeneratedAt)
}

func TestGenerateWebVitalsAddsOnePage(t *testing.T) {
	g := newTestGenerator()
	s, result := minimalScan()

	base, err := g.Generate(s, result)
	require.NoError(t, err)

	result.Analyzers[1].Performance.Strategy = scan.PerformanceStrategyService
	result.Analyzers[1].Performance.WebVitals = &scan.WebVitals{
		FirstContentfulPaint:   "1.2 s",
		LargestContentfulPaint: "2.4 s",
		TimeToInteractive:      "3.1 s",
		TotalBlockingTime:      "150 ms",
		CumulativeLayoutShift:  "0.02",
		SpeedIndex:             "1.8 s",
	}

	withVitals, err := g.Generate(s, result)
	require.NoError(t, err)

	assert.Equal(t, base.Pages+1, withVitals.Pages)
}

func TestGenerateHeuristicPerformanceHasNoVitalsPage(t *testing.T) {
	g := newTestGenerator()
	s, result := minimalScan()

	doc, err := g.Generate(s, result)
	require.NoError(t, err)
	assert.Equal(t, 1, doc.Pages)
}

func TestGenerateFullResult(t *testing.T) {
	g := newTestGenerator()
	s, result := minimalScan()
	result.Aggregate.TopIssues = []scan.Issue{
		{Source: scan.KindSecurity, Severity: scan.SeverityHigh, Title: "Missing HSTS header", Detail: "Not set."},
		{Source: scan.KindAccessibility, Severity: scan.SeverityCritical, Title: "Images missing alt text", Count: 3},
	}
	result.Analyzers = append(result.Analyzers,
		scan.AnalyzerResult{
			Kind: scan.KindAccessibility, Status: scan.AnalyzerCompleted,
			Accessibility: &scan.AccessibilityMetrics{Score: 60, WCAGLevel: "Fails Level A"},
		},
		scan.AnalyzerResult{
			Kind: scan.KindAPISurface, Status: scan.AnalyzerCompleted,
			APISurface: &scan.APISurfaceMetrics{Endpoints: []string{"/api/users", "/api/orders"}},
		},
		scan.AnalyzerResult{
			Kind: scan.KindTechStack, Status: scan.AnalyzerCompleted,
			TechStack: &scan.TechStackMetrics{Technologies: []scan.Technology{
				{Name: "React", Category: "framework", Confidence: "high"},
			}},
		},
		scan.AnalyzerResult{
			Kind: scan.KindInteractive, Status: scan.AnalyzerCompleted,
			Interactive: &scan.InteractiveMetrics{Buttons: 2, Links: 10, Forms: 1, PrimaryActions: []string{"Sign up"}},
		},
		scan.AnalyzerResult{Kind: scan.KindPerformance, Status: scan.AnalyzerFailed, Error: "service down"},
	)
	result.Narrative = &scan.Narrative{
		Summary:         "Solid site with a few header gaps.",
		Recommendations: []string{"Enable HSTS", "Add alt text"},
	}

	doc, err := g.Generate(s, result)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, doc.Pages, 1)
	assert.NotEmpty(t, doc.Bytes)
}

func TestGenerateSectionOrderIndependentOfResults(t *testing.T) {
	g := newTestGenerator()
	s, result := minimalScan()
	result.Analyzers = append(result.Analyzers,
		scan.AnalyzerResult{
			Kind: scan.KindTechStack, Status: scan.AnalyzerCompleted,
			TechStack: &scan.TechStackMetrics{Technologies: []scan.Technology{
				{Name: "React", Category: "framework", Confidence: "high"},
			}},
		},
		scan.AnalyzerResult{
			Kind: scan.KindAccessibility, Status: scan.AnalyzerCompleted,
			Accessibility: &scan.AccessibilityMetrics{Score: 60, WCAGLevel: "Fails Level A"},
		},
	)

	forward, err := g.Generate(s, result)
	require.NoError(t, err)

	reversed := scan.Result{
		Analyzers: make([]scan.AnalyzerResult, len(result.Analyzers)),
		Aggregate: result.Aggregate,
	}
	for i, r := range result.Analyzers {
		reversed.Analyzers[len(result.Analyzers)-1-i] = r
	}
	backward, err := g.Generate(s, reversed)
	require.NoError(t, err)

	assert.Equal(t, forward.Bytes, backward.Bytes)
}

func TestWebVitalRowsOrder(t *testing.T) {
	rows := webVitalRows(&scan.WebVitals{
		FirstContentfulPaint:   "a",
		LargestContentfulPaint: "b",
		TimeToInteractive:      "c",
		TotalBlockingTime:      "d",
		CumulativeLayoutShift:  "e",
		SpeedIndex:             "f",
	})

	require.Len(t, rows, 6)
	assert.Equal(t, "First Contentful Paint", rows[0].Label)
	assert.Equal(t, "Speed Index", rows[5].Label)
	for _, row := range rows {
		assert.NotEmpty(t, row.Value)
	}
}
