package analyzer

import (
	"context"
	"regexp"

	"github.com/sitesage/webscan/internal/scan"
)

// maxEndpoints caps the discovered endpoint list.
const maxEndpoints = 10

var (
	inlineScriptRe = regexp.MustCompile(`(?is)<script(?:\s[^>]*)?>(.*?)</script>`)

	// Call-site patterns that take a root-relative path as their first
	// string argument.
	endpointPatterns = []*regexp.Regexp{
		regexp.MustCompile(`fetch\(\s*['"` + "`" + `](/[^'"` + "`" + `\s]*)`),
		regexp.MustCompile(`axios\.\w+\(\s*['"` + "`" + `](/[^'"` + "`" + `\s]*)`),
		regexp.MustCompile(`\$\.(?:get|post|ajax)\(\s*['"` + "`" + `](/[^'"` + "`" + `\s]*)`),
		regexp.MustCompile(`\.open\(\s*['"][A-Z]+['"]\s*,\s*['"` + "`" + `](/[^'"` + "`" + `\s]*)`),
		regexp.MustCompile(`url\s*:\s*['"` + "`" + `](/[^'"` + "`" + `\s]*)`),
	}
)

// APISurface scans inline script text for root-relative paths passed to
// common HTTP-call patterns.
type APISurface struct{}

// NewAPISurface creates the API-surface analyzer.
func NewAPISurface() *APISurface {
	return &APISurface{}
}

// Kind implements scan.Analyzer.
func (*APISurface) Kind() scan.AnalyzerKind {
	return scan.KindAPISurface
}

// Analyze returns the deduplicated endpoint list, capped at 10, in first-seen
// order.
func (a *APISurface) Analyze(_ context.Context, page *scan.FetchResult) (scan.AnalyzerResult, error) {
	seen := make(map[string]struct{})
	endpoints := []string{}

	for _, script := range inlineScriptRe.FindAllSubmatch(page.Body, -1) {
		text := script[1]
		for _, pattern := range endpointPatterns {
			for _, match := range pattern.FindAllSubmatch(text, -1) {
				endpoint := string(match[1])
				if endpoint == "/" {
					continue
				}
				if _, dup := seen[endpoint]; dup {
					continue
				}
				seen[endpoint] = struct{}{}
				endpoints = append(endpoints, endpoint)
				if len(endpoints) == maxEndpoints {
					return apiSurfaceResult(endpoints), nil
				}
			}
		}
	}
	return apiSurfaceResult(endpoints), nil
}

func apiSurfaceResult(endpoints []string) scan.AnalyzerResult {
	return scan.AnalyzerResult{
		APISurface: &scan.APISurfaceMetrics{Endpoints: endpoints},
	}
}
