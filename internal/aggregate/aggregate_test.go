package aggregate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitesage/webscan/internal/scan"
)

func completedResults() []scan.AnalyzerResult {
	return []scan.AnalyzerResult{
		{
			Kind: scan.KindSecurity, Status: scan.AnalyzerCompleted,
			Security: &scan.SecurityMetrics{ChecksPerformed: 7, ChecksPassed: 7},
		},
		{
			Kind: scan.KindPerformance, Status: scan.AnalyzerCompleted,
			Performance: &scan.PerformanceMetrics{Score: 80},
		},
		{
			Kind: scan.KindAccessibility, Status: scan.AnalyzerCompleted,
			Accessibility: &scan.AccessibilityMetrics{Score: 60},
		},
		{
			Kind: scan.KindInteractive, Status: scan.AnalyzerCompleted,
			Interactive: &scan.InteractiveMetrics{Buttons: 3},
		},
		{
			Kind: scan.KindAPISurface, Status: scan.AnalyzerCompleted,
			APISurface: &scan.APISurfaceMetrics{Endpoints: []string{"/api/a"}},
		},
		{
			Kind: scan.KindTechStack, Status: scan.AnalyzerCompleted,
			TechStack: &scan.TechStackMetrics{},
		},
	}
}

func TestComputeAllCompleted(t *testing.T) {
	agg := Compute(completedResults())

	// .30*100 + .25*80 + .25*60 + .10*80 + .10*70 = 80
	assert.Equal(t, 80, agg.OverallScore)
	assert.Empty(t, agg.TopIssues)
}

func TestComputeIsIdempotent(t *testing.T) {
	results := completedResults()
	first := Compute(results)
	second := Compute(results)
	assert.Equal(t, first, second)
}

func TestComputeNoCompletedAnalyzers(t *testing.T) {
	results := []scan.AnalyzerResult{
		{Kind: scan.KindSecurity, Status: scan.AnalyzerFailed, Error: "boom"},
		{Kind: scan.KindPerformance, Status: scan.AnalyzerFailed, Error: "boom"},
	}

	agg := Compute(results)
	assert.Equal(t, 0, agg.OverallScore)
	assert.Empty(t, agg.TopIssues)
}

func TestComputeRenormalizesOverCompleted(t *testing.T) {
	results := []scan.AnalyzerResult{
		{
			Kind: scan.KindSecurity, Status: scan.AnalyzerCompleted,
			Security: &scan.SecurityMetrics{ChecksPerformed: 7, ChecksPassed: 7},
		},
		{Kind: scan.KindPerformance, Status: scan.AnalyzerFailed, Error: "service down"},
	}

	agg := Compute(results)
	// Only security completed, so its perfect score is the whole score.
	assert.Equal(t, 100, agg.OverallScore)
}

func TestComputeScoreBounds(t *testing.T) {
	worst := []scan.AnalyzerResult{
		{
			Kind: scan.KindSecurity, Status: scan.AnalyzerCompleted,
			Security: &scan.SecurityMetrics{ChecksPerformed: 7, ChecksPassed: 0},
		},
		{
			Kind: scan.KindPerformance, Status: scan.AnalyzerCompleted,
			Performance: &scan.PerformanceMetrics{Score: 0},
		},
		{
			Kind: scan.KindAccessibility, Status: scan.AnalyzerCompleted,
			Accessibility: &scan.AccessibilityMetrics{Score: 0},
		},
	}
	agg := Compute(worst)
	assert.GreaterOrEqual(t, agg.OverallScore, 0)
	assert.LessOrEqual(t, agg.OverallScore, 100)
	assert.Equal(t, 0, agg.OverallScore)
}

func TestComputeTopIssuesSortedAndCapped(t *testing.T) {
	secIssues := []scan.Issue{
		{Source: scan.KindSecurity, Severity: scan.SeverityLow, Title: "sec low"},
		{Source: scan.KindSecurity, Severity: scan.SeverityHigh, Title: "sec high 1"},
		{Source: scan.KindSecurity, Severity: scan.SeverityMedium, Title: "sec medium"},
		{Source: scan.KindSecurity, Severity: scan.SeverityHigh, Title: "sec high 2"},
	}
	accIssues := []scan.Issue{
		{Source: scan.KindAccessibility, Severity: scan.SeverityCritical, Title: "acc critical"},
		{Source: scan.KindAccessibility, Severity: scan.SeverityHigh, Title: "acc high"},
		{Source: scan.KindAccessibility, Severity: scan.SeverityLow, Title: "acc low 1"},
		{Source: scan.KindAccessibility, Severity: scan.SeverityLow, Title: "acc low 2"},
		{Source: scan.KindAccessibility, Severity: scan.SeverityLow, Title: "acc low 3"},
		{Source: scan.KindAccessibility, Severity: scan.SeverityLow, Title: "acc low 4"},
	}
	results := []scan.AnalyzerResult{
		{
			Kind: scan.KindSecurity, Status: scan.AnalyzerCompleted, Issues: secIssues,
			Security: &scan.SecurityMetrics{ChecksPerformed: 7, ChecksPassed: 3},
		},
		{
			Kind: scan.KindAccessibility, Status: scan.AnalyzerCompleted, Issues: accIssues,
			Accessibility: &scan.AccessibilityMetrics{Score: 20},
		},
		{
			Kind: scan.KindPerformance, Status: scan.AnalyzerCompleted,
			Performance: &scan.PerformanceMetrics{Score: 30},
		},
	}

	agg := Compute(results)

	require.Len(t, agg.TopIssues, 10)
	assert.Equal(t, "acc critical", agg.TopIssues[0].Title)
	// Stable sort keeps same-severity issues in union order: the two
	// security highs precede the accessibility high and the synthetic one.
	assert.Equal(t, "sec high 1", agg.TopIssues[1].Title)
	assert.Equal(t, "sec high 2", agg.TopIssues[2].Title)
	assert.Equal(t, "acc high", agg.TopIssues[3].Title)
	assert.Equal(t, "Poor page performance", agg.TopIssues[4].Title)
	for i := 1; i < len(agg.TopIssues); i++ {
		assert.LessOrEqual(t, agg.TopIssues[i-1].Severity.Rank(), agg.TopIssues[i].Severity.Rank())
	}
}

func TestComputeTopIssuesIndependentOfResultOrder(t *testing.T) {
	// Results arrive in the production analyzer order, with performance ahead
	// of accessibility. The issue union is still security, accessibility,
	// synthetic performance, so same-severity ties keep that order.
	results := []scan.AnalyzerResult{
		{
			Kind: scan.KindSecurity, Status: scan.AnalyzerCompleted,
			Issues:   []scan.Issue{{Source: scan.KindSecurity, Severity: scan.SeverityHigh, Title: "sec high"}},
			Security: &scan.SecurityMetrics{ChecksPerformed: 7, ChecksPassed: 4},
		},
		{
			Kind: scan.KindPerformance, Status: scan.AnalyzerCompleted,
			Performance: &scan.PerformanceMetrics{Score: 30},
		},
		{Kind: scan.KindTechStack, Status: scan.AnalyzerCompleted, TechStack: &scan.TechStackMetrics{}},
		{
			Kind: scan.KindAccessibility, Status: scan.AnalyzerCompleted,
			Issues:        []scan.Issue{{Source: scan.KindAccessibility, Severity: scan.SeverityHigh, Title: "acc high"}},
			Accessibility: &scan.AccessibilityMetrics{Score: 70},
		},
	}

	agg := Compute(results)

	require.Len(t, agg.TopIssues, 3)
	assert.Equal(t, "sec high", agg.TopIssues[0].Title)
	assert.Equal(t, "acc high", agg.TopIssues[1].Title)
	assert.Equal(t, "Poor page performance", agg.TopIssues[2].Title)
}

func TestComputePoorPerformanceThreshold(t *testing.T) {
	at := Compute([]scan.AnalyzerResult{{
		Kind: scan.KindPerformance, Status: scan.AnalyzerCompleted,
		Performance: &scan.PerformanceMetrics{Score: 50},
	}})
	assert.Empty(t, at.TopIssues)

	below := Compute([]scan.AnalyzerResult{{
		Kind: scan.KindPerformance, Status: scan.AnalyzerCompleted,
		Performance: &scan.PerformanceMetrics{Score: 49},
	}})
	require.Len(t, below.TopIssues, 1)
	assert.Equal(t, scan.SeverityHigh, below.TopIssues[0].Severity)
}
