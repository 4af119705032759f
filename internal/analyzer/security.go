package analyzer

import (
	"context"
	"net/http"
	"regexp"
	"strings"

	"github.com/sitesage/webscan/internal/scan"
)

// securityChecksPerformed is the fixed number of checks the security
// analyzer runs: five response-header controls, the inline cookie-script
// heuristic, and the transport check.
const securityChecksPerformed = 7

// cookieScriptRe flags inline scripts that read or write document.cookie.
var cookieScriptRe = regexp.MustCompile(`(?is)<script[^>]*>[^<]*document\.cookie`)

// Security inspects response headers for standard browser security controls.
type Security struct{}

// NewSecurity creates the security analyzer.
func NewSecurity() *Security {
	return &Security{}
}

// Kind implements scan.Analyzer.
func (*Security) Kind() scan.AnalyzerKind {
	return scan.KindSecurity
}

// Analyze runs the seven fixed checks. Each failed check is one issue at a
// fixed severity; checks_passed = checks_performed - issue count.
func (a *Security) Analyze(_ context.Context, page *scan.FetchResult) (scan.AnalyzerResult, error) {
	var issues []scan.Issue
	add := func(severity scan.Severity, title, detail string) {
		issues = append(issues, scan.Issue{
			Source:   scan.KindSecurity,
			Severity: severity,
			Title:    title,
			Detail:   detail,
		})
	}

	h := page.Headers
	if h == nil {
		h = http.Header{}
	}

	if h.Get("Strict-Transport-Security") == "" {
		add(scan.SeverityHigh, "Missing HSTS header",
			"Strict-Transport-Security is not set; browsers may downgrade to plain HTTP.")
	}
	if h.Get("Content-Security-Policy") == "" {
		add(scan.SeverityMedium, "Missing Content-Security-Policy",
			"No CSP restricts which scripts and resources the page may load.")
	}
	if !hasFrameProtection(h) {
		add(scan.SeverityHigh, "Missing clickjacking protection",
			"Neither X-Frame-Options nor a CSP frame-ancestors directive is present.")
	}
	if h.Get("X-Content-Type-Options") == "" {
		add(scan.SeverityMedium, "Missing X-Content-Type-Options",
			"Responses can be MIME-sniffed without 'nosniff'.")
	}
	if h.Get("X-XSS-Protection") == "" {
		add(scan.SeverityLow, "Missing X-XSS-Protection",
			"Legacy browsers get no reflected-XSS filter hint.")
	}
	if cookieScriptRe.Match(page.Body) {
		add(scan.SeverityHigh, "Inline script manipulates cookies",
			"An inline script accesses document.cookie; prefer HttpOnly server-set cookies.")
	}
	if !strings.HasPrefix(strings.ToLower(page.URL), "https://") {
		add(scan.SeverityHigh, "Page served over insecure transport",
			"The page was retrieved over plain HTTP.")
	}

	return scan.AnalyzerResult{
		Issues: issues,
		Security: &scan.SecurityMetrics{
			ChecksPerformed: securityChecksPerformed,
			ChecksPassed:    securityChecksPerformed - len(issues),
		},
	}, nil
}

func hasFrameProtection(h http.Header) bool {
	if h.Get("X-Frame-Options") != "" {
		return true
	}
	return strings.Contains(strings.ToLower(h.Get("Content-Security-Policy")), "frame-ancestors")
}
