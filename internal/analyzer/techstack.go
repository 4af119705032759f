package analyzer

import (
	"context"
	"strings"

	"github.com/sitesage/webscan/internal/scan"
)

// Technology categories used by the signature table.
const (
	categoryFramework = "framework"
	categoryCMS       = "cms"
	categoryLibrary   = "library"
	categoryServer    = "server"
	categoryAnalytics = "analytics"
	categoryLanguage  = "language"
)

// Confidence tiers.
const (
	confidenceHigh   = "high"
	confidenceMedium = "medium"
	confidenceLow    = "low"
)

// techSignature matches one technology against the lowercased page body or a
// response header.
type techSignature struct {
	name       string
	category   string
	confidence string
	// bodyMarker is searched in the lowercased HTML; empty skips the body.
	bodyMarker string
	// header/headerMarker match a response header value; empty skips headers.
	header       string
	headerMarker string
}

// techSignatures is the fixed detection table. Order determines output order.
var techSignatures = []techSignature{
	{name: "React", category: categoryFramework, confidence: confidenceHigh, bodyMarker: "data-reactroot"},
	{name: "React", category: categoryFramework, confidence: confidenceMedium, bodyMarker: "react-dom"},
	{name: "Next.js", category: categoryFramework, confidence: confidenceHigh, bodyMarker: "__next_data__"},
	{name: "Vue.js", category: categoryFramework, confidence: confidenceHigh, bodyMarker: "data-v-app"},
	{name: "Vue.js", category: categoryFramework, confidence: confidenceMedium, bodyMarker: "vue.js"},
	{name: "Angular", category: categoryFramework, confidence: confidenceHigh, bodyMarker: "ng-version"},
	{name: "WordPress", category: categoryCMS, confidence: confidenceHigh, bodyMarker: "wp-content"},
	{name: "Drupal", category: categoryCMS, confidence: confidenceHigh, bodyMarker: "drupal.settings"},
	{name: "Shopify", category: categoryCMS, confidence: confidenceHigh, bodyMarker: "cdn.shopify.com"},
	{name: "jQuery", category: categoryLibrary, confidence: confidenceHigh, bodyMarker: "jquery"},
	{name: "Bootstrap", category: categoryLibrary, confidence: confidenceMedium, bodyMarker: "bootstrap"},
	{name: "Tailwind CSS", category: categoryLibrary, confidence: confidenceLow, bodyMarker: "tailwind"},
	{name: "Google Analytics", category: categoryAnalytics, confidence: confidenceHigh, bodyMarker: "googletagmanager.com"},
	{name: "Google Analytics", category: categoryAnalytics, confidence: confidenceMedium, bodyMarker: "google-analytics.com"},
	{name: "Cloudflare", category: categoryServer, confidence: confidenceHigh, header: "Server", headerMarker: "cloudflare"},
	{name: "nginx", category: categoryServer, confidence: confidenceHigh, header: "Server", headerMarker: "nginx"},
	{name: "Apache", category: categoryServer, confidence: confidenceHigh, header: "Server", headerMarker: "apache"},
	{name: "Express", category: categoryFramework, confidence: confidenceHigh, header: "X-Powered-By", headerMarker: "express"},
	{name: "PHP", category: categoryLanguage, confidence: confidenceHigh, header: "X-Powered-By", headerMarker: "php"},
	{name: "ASP.NET", category: categoryFramework, confidence: confidenceHigh, header: "X-Powered-By", headerMarker: "asp.net"},
	{name: "Laravel", category: categoryFramework, confidence: confidenceMedium, header: "Set-Cookie", headerMarker: "laravel_session"},
}

// TechStack matches page and header markers against the fixed signature
// table.
type TechStack struct{}

// NewTechStack creates the tech-stack analyzer.
func NewTechStack() *TechStack {
	return &TechStack{}
}

// Kind implements scan.Analyzer.
func (*TechStack) Kind() scan.AnalyzerKind {
	return scan.KindTechStack
}

// Analyze returns each matched technology once, keeping the highest
// confidence tier when multiple signatures for the same name match.
func (a *TechStack) Analyze(_ context.Context, page *scan.FetchResult) (scan.AnalyzerResult, error) {
	body := strings.ToLower(string(page.Body))

	found := make(map[string]int) // name -> index into techs
	var techs []scan.Technology

	for _, sig := range techSignatures {
		if !sig.matches(body, page) {
			continue
		}
		if idx, ok := found[sig.name]; ok {
			if confidenceRank(sig.confidence) < confidenceRank(techs[idx].Confidence) {
				techs[idx].Confidence = sig.confidence
			}
			continue
		}
		found[sig.name] = len(techs)
		techs = append(techs, scan.Technology{
			Name:       sig.name,
			Category:   sig.category,
			Confidence: sig.confidence,
		})
	}

	return scan.AnalyzerResult{
		TechStack: &scan.TechStackMetrics{Technologies: techs},
	}, nil
}

func (s techSignature) matches(lowerBody string, page *scan.FetchResult) bool {
	if s.bodyMarker != "" {
		return strings.Contains(lowerBody, s.bodyMarker)
	}
	if s.header != "" {
		for _, v := range page.Headers.Values(s.header) {
			if strings.Contains(strings.ToLower(v), s.headerMarker) {
				return true
			}
		}
	}
	return false
}

func confidenceRank(c string) int {
	switch c {
	case confidenceHigh:
		return 0
	case confidenceMedium:
		return 1
	default:
		return 2
	}
}
