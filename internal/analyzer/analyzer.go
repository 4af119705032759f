// Package analyzer implements the six independent page analyzers.
//
// Each analyzer consumes the one fetched page and produces a tagged result
// plus a completion status. Failures are contained at the analyzer boundary:
// Run converts errors and panics into a failed result with zero-valued
// metrics, so one broken analyzer never aborts the others or the scan.
package analyzer

import (
	"context"
	"fmt"
	"time"

	"github.com/sitesage/webscan/internal/scan"
	"github.com/sitesage/webscan/internal/telemetry"
)

// Run invokes one analyzer with panic containment. A nil page fails the
// analyzer with the fetch error text (the fetch failure degrades the
// analyzers that depend on it, never the scan itself).
func Run(ctx context.Context, a scan.Analyzer, page *scan.FetchResult, fetchErr error) (result scan.AnalyzerResult) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			result = Failed(a.Kind(), fmt.Errorf("analyzer panic: %v", r))
		}
		telemetry.ObserveAnalyzer(string(a.Kind()), result.Status == scan.AnalyzerFailed, time.Since(start))
	}()

	if page == nil {
		if fetchErr == nil {
			fetchErr = fmt.Errorf("no fetched page available")
		}
		return Failed(a.Kind(), fetchErr)
	}

	res, err := a.Analyze(ctx, page)
	if err != nil {
		return Failed(a.Kind(), err)
	}
	res.Kind = a.Kind()
	res.Status = scan.AnalyzerCompleted
	return res
}

// Failed builds the zero-valued failed result for a kind.
func Failed(kind scan.AnalyzerKind, err error) scan.AnalyzerResult {
	return scan.AnalyzerResult{
		Kind:   kind,
		Status: scan.AnalyzerFailed,
		Error:  err.Error(),
	}
}
