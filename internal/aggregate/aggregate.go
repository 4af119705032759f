// Package aggregate folds the per-analyzer results into one overall score
// and the ranked top-issue list.
package aggregate

import (
	"fmt"
	"math"
	"sort"

	"github.com/sitesage/webscan/internal/scan"
)

// maxTopIssues caps the aggregated issue list.
const maxTopIssues = 10

// poorPerformanceThreshold is the completed-performance score below which a
// synthetic high-severity issue is added.
const poorPerformanceThreshold = 50

// Category weights. Tech stack is informational and carries no weight. The
// weights are renormalized over the analyzers that completed, so a partial
// scan still yields a 0-100 score.
var weights = map[scan.AnalyzerKind]float64{
	scan.KindSecurity:      0.30,
	scan.KindPerformance:   0.25,
	scan.KindAccessibility: 0.25,
	scan.KindInteractive:   0.10,
	scan.KindAPISurface:    0.10,
}

// Fixed category scores for the analyzers that have no natural 0-100 scale.
const (
	apiSurfaceScore       = 70
	interactiveScoreRich  = 80
	interactiveScorePlain = 50
)

// Compute is a pure function over the analyzer results: same input, same
// output. No completed analyzers yields a zero score and no issues.
func Compute(results []scan.AnalyzerResult) scan.AggregateResult {
	var weightSum, weighted float64

	for _, r := range results {
		if r.Status != scan.AnalyzerCompleted {
			continue
		}
		score, ok := categoryScore(r)
		if ok {
			weighted += float64(score) * weights[r.Kind]
			weightSum += weights[r.Kind]
		}
	}

	overall := 0
	if weightSum > 0 {
		overall = int(math.Round(weighted / weightSum))
	}

	issues := collectIssues(results)
	sort.SliceStable(issues, func(i, j int) bool {
		return issues[i].Severity.Rank() < issues[j].Severity.Rank()
	})
	if len(issues) > maxTopIssues {
		issues = issues[:maxTopIssues]
	}

	return scan.AggregateResult{OverallScore: overall, TopIssues: issues}
}

// collectIssues builds the issue union in a fixed source order: security
// issues, accessibility issues, then the synthetic performance issue. The
// stable severity sort then resolves same-severity ties the same way no
// matter how the result slice was ordered.
func collectIssues(results []scan.AnalyzerResult) []scan.Issue {
	var issues []scan.Issue
	if r, ok := completedResult(results, scan.KindSecurity); ok {
		issues = append(issues, r.Issues...)
	}
	if r, ok := completedResult(results, scan.KindAccessibility); ok {
		issues = append(issues, r.Issues...)
	}
	if r, ok := completedResult(results, scan.KindPerformance); ok {
		if r.Performance != nil && r.Performance.Score < poorPerformanceThreshold {
			issues = append(issues, scan.Issue{
				Source:   scan.KindPerformance,
				Severity: scan.SeverityHigh,
				Title:    "Poor page performance",
				Detail:   fmt.Sprintf("Performance scored %d/100.", r.Performance.Score),
			})
		}
	}
	return issues
}

func completedResult(results []scan.AnalyzerResult, kind scan.AnalyzerKind) (scan.AnalyzerResult, bool) {
	for _, r := range results {
		if r.Kind == kind && r.Status == scan.AnalyzerCompleted {
			return r, true
		}
	}
	return scan.AnalyzerResult{}, false
}

// categoryScore maps one completed result onto the 0-100 scale of its
// category. Tech stack returns false: it never contributes weight.
func categoryScore(r scan.AnalyzerResult) (int, bool) {
	switch r.Kind {
	case scan.KindSecurity:
		if r.Security == nil || r.Security.ChecksPerformed == 0 {
			return 0, false
		}
		return int(math.Round(100 * float64(r.Security.ChecksPassed) / float64(r.Security.ChecksPerformed))), true
	case scan.KindPerformance:
		if r.Performance == nil {
			return 0, false
		}
		return r.Performance.Score, true
	case scan.KindAccessibility:
		if r.Accessibility == nil {
			return 0, false
		}
		return r.Accessibility.Score, true
	case scan.KindInteractive:
		if r.Interactive == nil {
			return 0, false
		}
		if r.Interactive.Buttons > 0 {
			return interactiveScoreRich, true
		}
		return interactiveScorePlain, true
	case scan.KindAPISurface:
		if r.APISurface == nil {
			return 0, false
		}
		return apiSurfaceScore, true
	default:
		return 0, false
	}
}
