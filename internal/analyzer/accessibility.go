package analyzer

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/sitesage/webscan/internal/scan"
)

// WCAG level labels reported by the accessibility analyzer.
const (
	WCAGFailsLevelA  = "Fails Level A"
	WCAGPassesLevelA = "Passes Level A (potential AA issues)"
)

// severityWeights deducted from the accessibility score per issue.
var severityWeights = map[scan.Severity]int{
	scan.SeverityCritical: 25,
	scan.SeverityHigh:     15,
	scan.SeverityMedium:   8,
	scan.SeverityLow:      3,
}

// Accessibility runs the heuristic WCAG subset over the parsed document.
// This is intentionally not a conformance checker; it surfaces the handful
// of patterns that reliably indicate Level A failures.
type Accessibility struct{}

// NewAccessibility creates the accessibility analyzer.
func NewAccessibility() *Accessibility {
	return &Accessibility{}
}

// Kind implements scan.Analyzer.
func (*Accessibility) Kind() scan.AnalyzerKind {
	return scan.KindAccessibility
}

// Analyze produces one issue per detected pattern and a severity-weighted
// score floored at 0.
func (a *Accessibility) Analyze(_ context.Context, page *scan.FetchResult) (scan.AnalyzerResult, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return scan.AnalyzerResult{}, fmt.Errorf("parse html: %w", err)
	}

	var issues []scan.Issue
	add := func(severity scan.Severity, title, detail string, count int) {
		issues = append(issues, scan.Issue{
			Source:   scan.KindAccessibility,
			Severity: severity,
			Title:    title,
			Detail:   detail,
			Count:    count,
		})
	}

	if n := countMissingAlt(doc); n > 0 {
		add(scan.SeverityCritical, "Images missing alt text",
			fmt.Sprintf("%d image(s) lack an alt attribute.", n), n)
	}
	if lang, ok := doc.Find("html").Attr("lang"); !ok || strings.TrimSpace(lang) == "" {
		add(scan.SeverityHigh, "Page language not declared",
			"The <html> element has no lang attribute.", 0)
	}
	if n := countEmptyText(doc, "button"); n > 0 {
		add(scan.SeverityCritical, "Buttons without accessible text",
			fmt.Sprintf("%d button(s) have no text content.", n), n)
	}
	inputs := doc.Find("input:not([type=hidden]), select, textarea").Length()
	labels := doc.Find("label").Length()
	if inputs > labels {
		add(scan.SeverityHigh, "Form inputs exceed label count",
			fmt.Sprintf("%d input(s) but only %d label(s).", inputs, labels), 0)
	}
	if h1 := doc.Find("h1").Length(); h1 != 1 {
		add(scan.SeverityMedium, "Heading structure problem",
			fmt.Sprintf("Expected exactly one <h1>, found %d.", h1), 0)
	}
	if n := countEmptyText(doc, "a[href]"); n > 0 {
		add(scan.SeverityHigh, "Links without accessible text",
			fmt.Sprintf("%d link(s) have no text content.", n), n)
	}
	if !hasSkipLink(doc) {
		add(scan.SeverityLow, "No skip-navigation link",
			"Keyboard users have no shortcut past repeated navigation.", 0)
	}
	if n := countNegativeTabIndex(doc); n > 0 {
		add(scan.SeverityMedium, "Negative tabindex removes elements from keyboard flow",
			fmt.Sprintf("%d element(s) use a negative tabindex.", n), n)
	}

	score := 100
	failsLevelA := false
	for _, issue := range issues {
		score -= severityWeights[issue.Severity]
		if issue.Severity == scan.SeverityCritical || issue.Severity == scan.SeverityHigh {
			failsLevelA = true
		}
	}
	if score < 0 {
		score = 0
	}
	level := WCAGPassesLevelA
	if failsLevelA {
		level = WCAGFailsLevelA
	}

	return scan.AnalyzerResult{
		Issues: issues,
		Accessibility: &scan.AccessibilityMetrics{
			Score:     score,
			WCAGLevel: level,
		},
	}, nil
}

func countMissingAlt(doc *goquery.Document) int {
	n := 0
	doc.Find("img").Each(func(_ int, sel *goquery.Selection) {
		if _, ok := sel.Attr("alt"); !ok {
			n++
		}
	})
	return n
}

// countEmptyText counts matched elements whose text is empty and which carry
// no aria-label fallback.
func countEmptyText(doc *goquery.Document, selector string) int {
	n := 0
	doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
		if strings.TrimSpace(sel.Text()) != "" {
			return
		}
		if label, ok := sel.Attr("aria-label"); ok && strings.TrimSpace(label) != "" {
			return
		}
		// An image with alt text inside a link counts as accessible text.
		if alt, ok := sel.Find("img").Attr("alt"); ok && strings.TrimSpace(alt) != "" {
			return
		}
		n++
	})
	return n
}

func hasSkipLink(doc *goquery.Document) bool {
	found := false
	doc.Find(`a[href^="#"]`).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if strings.Contains(strings.ToLower(sel.Text()), "skip") {
			found = true
			return false
		}
		return true
	})
	return found
}

func countNegativeTabIndex(doc *goquery.Document) int {
	n := 0
	doc.Find("[tabindex]").Each(func(_ int, sel *goquery.Selection) {
		raw, _ := sel.Attr("tabindex")
		if v, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil && v < 0 {
			n++
		}
	})
	return n
}
