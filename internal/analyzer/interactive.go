package analyzer

import (
	"bytes"
	"context"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/sitesage/webscan/internal/scan"
)

// maxPrimaryActions caps the button labels surfaced as primary actions.
const maxPrimaryActions = 5

var (
	buttonTagRe = regexp.MustCompile(`(?is)<button[^>]*>(.*?)</button>`)
	anchorTagRe = regexp.MustCompile(`(?i)<a\s[^>]*href=`)
	formTagRe   = regexp.MustCompile(`(?i)<form[\s>]`)
	stripTagRe  = regexp.MustCompile(`(?s)<[^>]*>`)
)

// Interactive counts buttons, links, and forms, and surfaces up to five
// button labels as the page's primary actions.
type Interactive struct{}

// NewInteractive creates the interactive-elements analyzer.
func NewInteractive() *Interactive {
	return &Interactive{}
}

// Kind implements scan.Analyzer.
func (*Interactive) Kind() scan.AnalyzerKind {
	return scan.KindInteractive
}

// Analyze parses the document with goquery; a parse failure falls back to a
// regex count producing the same shape.
func (a *Interactive) Analyze(_ context.Context, page *scan.FetchResult) (scan.AnalyzerResult, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return scan.AnalyzerResult{Interactive: a.regexCount(page.Body)}, nil
	}

	m := &scan.InteractiveMetrics{
		Buttons: doc.Find(`button, input[type=submit], input[type=button]`).Length(),
		Links:   doc.Find("a[href]").Length(),
		Forms:   doc.Find("form").Length(),
	}
	doc.Find("button").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		label := strings.TrimSpace(sel.Text())
		if label == "" {
			label, _ = sel.Attr("aria-label")
			label = strings.TrimSpace(label)
		}
		if label != "" {
			m.PrimaryActions = append(m.PrimaryActions, label)
		}
		return len(m.PrimaryActions) < maxPrimaryActions
	})

	return scan.AnalyzerResult{Interactive: m}, nil
}

func (a *Interactive) regexCount(body []byte) *scan.InteractiveMetrics {
	m := &scan.InteractiveMetrics{
		Links: len(anchorTagRe.FindAll(body, -1)),
		Forms: len(formTagRe.FindAll(body, -1)),
	}
	for _, match := range buttonTagRe.FindAllSubmatch(body, -1) {
		m.Buttons++
		if len(m.PrimaryActions) == maxPrimaryActions {
			continue
		}
		label := strings.TrimSpace(string(stripTagRe.ReplaceAll(match[1], nil)))
		if label != "" {
			m.PrimaryActions = append(m.PrimaryActions, label)
		}
	}
	return m
}
