package analyzer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitesage/webscan/internal/scan"
)

type explodingAnalyzer struct {
	kind scan.AnalyzerKind
	err  error
	boom bool
}

func (a *explodingAnalyzer) Kind() scan.AnalyzerKind { return a.kind }

func (a *explodingAnalyzer) Analyze(context.Context, *scan.FetchResult) (scan.AnalyzerResult, error) {
	if a.boom {
		panic("unexpected nil dereference")
	}
	if a.err != nil {
		return scan.AnalyzerResult{}, a.err
	}
	return scan.AnalyzerResult{Security: &scan.SecurityMetrics{ChecksPerformed: 7, ChecksPassed: 7}}, nil
}

func TestRunSetsKindAndStatus(t *testing.T) {
	a := &explodingAnalyzer{kind: scan.KindSecurity}
	res := Run(context.Background(), a, &scan.FetchResult{URL: "https://example.com"}, nil)

	assert.Equal(t, scan.KindSecurity, res.Kind)
	assert.Equal(t, scan.AnalyzerCompleted, res.Status)
	assert.Empty(t, res.Error)
}

func TestRunMapsErrorToFailedResult(t *testing.T) {
	a := &explodingAnalyzer{kind: scan.KindAccessibility, err: errors.New("parse html: truncated input")}
	res := Run(context.Background(), a, &scan.FetchResult{URL: "https://example.com"}, nil)

	assert.Equal(t, scan.AnalyzerFailed, res.Status)
	assert.Equal(t, "parse html: truncated input", res.Error)
	assert.Nil(t, res.Accessibility)
}

func TestRunContainsPanic(t *testing.T) {
	a := &explodingAnalyzer{kind: scan.KindTechStack, boom: true}
	res := Run(context.Background(), a, &scan.FetchResult{URL: "https://example.com"}, nil)

	assert.Equal(t, scan.AnalyzerFailed, res.Status)
	assert.Contains(t, res.Error, "analyzer panic")
}

func TestRunNilPageFailsWithFetchError(t *testing.T) {
	a := &explodingAnalyzer{kind: scan.KindPerformance}
	fetchErr := &scan.FetchError{Kind: scan.FetchTimeout, URL: "https://slow.example", Err: context.DeadlineExceeded}

	res := Run(context.Background(), a, nil, fetchErr)

	require.Equal(t, scan.AnalyzerFailed, res.Status)
	assert.Contains(t, res.Error, "https://slow.example")
}

func TestRunNilPageNilError(t *testing.T) {
	a := &explodingAnalyzer{kind: scan.KindPerformance}
	res := Run(context.Background(), a, nil, nil)

	assert.Equal(t, scan.AnalyzerFailed, res.Status)
	assert.NotEmpty(t, res.Error)
}
