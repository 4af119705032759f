// Package report renders a completed scan as a paginated PDF document.
package report

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"github.com/sitesage/webscan/internal/scan"
)

// Page geometry in points.
const (
	pageWidth  = 595
	pageHeight = 842
	marginPt   = 48
	lineHeight = 14
	// breakY is the cursor position past which a section break starts a new
	// page instead of running into the footer.
	breakY = pageHeight - marginPt - 3*lineHeight
)

// footerCaption closes every page.
const footerCaption = "Automated website scan. Scores are heuristic and informational."

// Generator produces the scan report. Brand appears in the page header.
type Generator struct {
	brand string
	clock scan.Clock
}

// New creates a report generator.
func New(brand string, clock scan.Clock) *Generator {
	return &Generator{brand: brand, clock: clock}
}

// Generate renders the report for one scan. The document is immutable once
// returned; callers persist the bytes and never regenerate. Section order is
// fixed regardless of how the analyzer results are ordered.
func (g *Generator) Generate(s scan.Scan, result scan.Result) (scan.ReportDocument, error) {
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           gofpdf.SizeType{Wd: pageWidth, Ht: pageHeight},
	})
	pdf.SetCreationDate(g.clock.Now())
	pdf.SetMargins(marginPt, marginPt, marginPt)
	pdf.SetAutoPageBreak(true, marginPt+lineHeight)

	pdf.SetHeaderFunc(func() {
		const third = float64(pageWidth-2*marginPt) / 3
		pdf.SetFont("Helvetica", "B", 9)
		pdf.SetTextColor(120, 120, 120)
		pdf.CellFormat(third, lineHeight, g.brand, "", 0, "L", false, 0, "")
		pdf.CellFormat(third, lineHeight, "Website Scan Report", "", 0, "C", false, 0, "")
		pdf.CellFormat(third, lineHeight, fmt.Sprintf("Page %d", pdf.PageNo()), "", 1, "R", false, 0, "")
		pdf.Ln(lineHeight / 2)
		pdf.SetTextColor(0, 0, 0)
	})
	pdf.SetFooterFunc(func() {
		pdf.SetY(-(marginPt + lineHeight))
		pdf.SetDrawColor(200, 200, 200)
		pdf.Line(marginPt, pdf.GetY(), pageWidth-marginPt, pdf.GetY())
		pdf.Ln(2)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.SetTextColor(120, 120, 120)
		pdf.CellFormat(0, lineHeight, footerCaption, "", 0, "C", false, 0, "")
		pdf.SetTextColor(0, 0, 0)
	})

	perf := resultFor(result.Analyzers, scan.KindPerformance)
	tech := resultFor(result.Analyzers, scan.KindTechStack)

	pdf.AddPage()
	g.writeOverview(pdf, s, result)
	g.writeTopIssues(pdf, result.Aggregate.TopIssues)
	g.writeSecurity(pdf, resultFor(result.Analyzers, scan.KindSecurity))
	g.writePerformance(pdf, perf)
	g.writeAccessibility(pdf, resultFor(result.Analyzers, scan.KindAccessibility), tech)
	g.writeAPISurface(pdf, resultFor(result.Analyzers, scan.KindAPISurface))
	g.writeWebVitals(pdf, perf)
	g.writeCategoryScores(pdf, perf)
	g.writeInteractive(pdf, resultFor(result.Analyzers, scan.KindInteractive))
	g.writeTechnologies(pdf, tech)
	g.writeNarrative(pdf, result.Narrative)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return scan.ReportDocument{}, fmt.Errorf("render report: %w", err)
	}

	return scan.ReportDocument{
		Bytes:       buf.Bytes(),
		Length:      buf.Len(),
		Pages:       pdf.PageCount(),
		GeneratedAt: g.clock.Now(),
	}, nil
}

func (g *Generator) writeOverview(pdf *gofpdf.Fpdf, s scan.Scan, result scan.Result) {
	pdf.SetFont("Helvetica", "B", 18)
	pdf.MultiCell(0, 22, s.TargetURL, "", "L", false)
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, lineHeight, fmt.Sprintf("Scan ID: %s", s.ID), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, lineHeight, fmt.Sprintf("Generated: %s", g.clock.Now().Format("Jan 02 2006 15:04 MST")), "", 1, "L", false, 0, "")
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 18, fmt.Sprintf("Overall Score: %d / 100", result.Aggregate.OverallScore), "", 1, "L", false, 0, "")
	pdf.Ln(6)
}

func (g *Generator) writeTopIssues(pdf *gofpdf.Fpdf, issues []scan.Issue) {
	if len(issues) == 0 {
		return
	}
	g.sectionTitle(pdf, "Top Issues")
	for _, issue := range issues {
		if pdf.GetY() > breakY {
			pdf.AddPage()
		}
		pdf.SetFont("Helvetica", "B", 10)
		title := fmt.Sprintf("[%s] %s", strings.ToUpper(string(issue.Severity)), issue.Title)
		if issue.Count > 1 {
			title = fmt.Sprintf("%s (x%d)", title, issue.Count)
		}
		pdf.MultiCell(0, lineHeight, title, "", "L", false)
		if issue.Detail != "" {
			pdf.SetFont("Helvetica", "", 9)
			pdf.MultiCell(0, lineHeight-2, issue.Detail, "", "L", false)
		}
		pdf.Ln(3)
	}
	pdf.Ln(4)
}

func (g *Generator) writeSecurity(pdf *gofpdf.Fpdf, r *scan.AnalyzerResult) {
	if r == nil {
		return
	}
	g.sectionTitle(pdf, "Security")
	if g.writeFailure(pdf, r) {
		return
	}
	g.line(pdf, fmt.Sprintf("%d of %d checks passed.", r.Security.ChecksPassed, r.Security.ChecksPerformed))
	pdf.Ln(4)
}

func (g *Generator) writePerformance(pdf *gofpdf.Fpdf, r *scan.AnalyzerResult) {
	if r == nil {
		return
	}
	g.sectionTitle(pdf, "Performance")
	if g.writeFailure(pdf, r) {
		return
	}
	g.line(pdf, fmt.Sprintf("Score %d/100 (%s strategy).", r.Performance.Score, r.Performance.Strategy))
	g.line(pdf, fmt.Sprintf("Load time %d ms, %d image(s), %d script(s), %d stylesheet(s).",
		r.Performance.LoadTimeMs, r.Performance.ImageCount, r.Performance.ScriptCount, r.Performance.StylesheetCount))
	pdf.Ln(4)
}

// writeAccessibility renders the accessibility detail plus a one-line summary
// of the detected technologies; the full technology list with categories and
// confidence tiers follows later in its own section.
func (g *Generator) writeAccessibility(pdf *gofpdf.Fpdf, r, tech *scan.AnalyzerResult) {
	if r == nil {
		return
	}
	g.sectionTitle(pdf, "Accessibility")
	if g.writeFailure(pdf, r) {
		return
	}
	g.line(pdf, fmt.Sprintf("Score %d/100. %s.", r.Accessibility.Score, r.Accessibility.WCAGLevel))
	if names := technologyNames(tech); len(names) > 0 {
		g.line(pdf, "Detected technologies: "+strings.Join(names, ", ")+".")
	}
	pdf.Ln(4)
}

func (g *Generator) writeAPISurface(pdf *gofpdf.Fpdf, r *scan.AnalyzerResult) {
	if r == nil {
		return
	}
	g.sectionTitle(pdf, "API Surface")
	if g.writeFailure(pdf, r) {
		return
	}
	if len(r.APISurface.Endpoints) == 0 {
		g.line(pdf, "No endpoints referenced by inline scripts.")
	}
	for _, endpoint := range r.APISurface.Endpoints {
		g.line(pdf, "  "+endpoint)
	}
	pdf.Ln(4)
}

// writeWebVitals always starts its own page so the vitals table never
// straddles a page break.
func (g *Generator) writeWebVitals(pdf *gofpdf.Fpdf, r *scan.AnalyzerResult) {
	if r == nil || r.Performance == nil || r.Performance.WebVitals == nil {
		return
	}
	pdf.AddPage()
	g.sectionTitle(pdf, "Core Web Vitals")
	for _, row := range webVitalRows(r.Performance.WebVitals) {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(220, lineHeight+2, row.Label, "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		value := row.Value
		if value == "" {
			value = "n/a"
		}
		pdf.CellFormat(0, lineHeight+2, value, "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)
}

func (g *Generator) writeCategoryScores(pdf *gofpdf.Fpdf, r *scan.AnalyzerResult) {
	if r == nil || r.Performance == nil || r.Performance.Categories == nil {
		return
	}
	c := r.Performance.Categories
	g.sectionTitle(pdf, "Category Scores")
	g.line(pdf, fmt.Sprintf("Performance: %d/100", c.Performance))
	g.line(pdf, fmt.Sprintf("Accessibility: %d/100", c.Accessibility))
	g.line(pdf, fmt.Sprintf("Best Practices: %d/100", c.BestPractices))
	g.line(pdf, fmt.Sprintf("SEO: %d/100", c.SEO))
	pdf.Ln(4)
}

func (g *Generator) writeInteractive(pdf *gofpdf.Fpdf, r *scan.AnalyzerResult) {
	if r == nil {
		return
	}
	g.sectionTitle(pdf, "Interactive Elements")
	if g.writeFailure(pdf, r) {
		return
	}
	g.line(pdf, fmt.Sprintf("%d button(s), %d link(s), %d form(s).",
		r.Interactive.Buttons, r.Interactive.Links, r.Interactive.Forms))
	if len(r.Interactive.PrimaryActions) > 0 {
		g.line(pdf, "Primary actions: "+strings.Join(r.Interactive.PrimaryActions, ", "))
	}
	pdf.Ln(4)
}

func (g *Generator) writeTechnologies(pdf *gofpdf.Fpdf, r *scan.AnalyzerResult) {
	if r == nil {
		return
	}
	g.sectionTitle(pdf, "Technology Stack")
	if g.writeFailure(pdf, r) {
		return
	}
	if len(r.TechStack.Technologies) == 0 {
		g.line(pdf, "No technologies detected.")
	}
	for _, tech := range r.TechStack.Technologies {
		g.line(pdf, fmt.Sprintf("  %s (%s, %s confidence)", tech.Name, tech.Category, tech.Confidence))
	}
	pdf.Ln(4)
}

func (g *Generator) writeNarrative(pdf *gofpdf.Fpdf, narrative *scan.Narrative) {
	if narrative == nil {
		return
	}
	if pdf.GetY() > breakY {
		pdf.AddPage()
	}
	g.sectionTitle(pdf, "Analysis")
	pdf.SetFont("Helvetica", "", 10)
	pdf.MultiCell(0, lineHeight, narrative.Summary, "", "L", false)
	if len(narrative.Recommendations) > 0 {
		pdf.Ln(3)
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(0, lineHeight, "Recommendations", "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		for _, rec := range narrative.Recommendations {
			pdf.MultiCell(0, lineHeight, "  - "+rec, "", "L", false)
		}
	}
}

// writeFailure emits the failed-analysis line and reports whether the result
// was a failure, in which case the section has no further detail.
func (g *Generator) writeFailure(pdf *gofpdf.Fpdf, r *scan.AnalyzerResult) bool {
	if r.Status != scan.AnalyzerFailed {
		return false
	}
	g.line(pdf, fmt.Sprintf("Analysis failed: %s", r.Error))
	pdf.Ln(4)
	return true
}

func (g *Generator) sectionTitle(pdf *gofpdf.Fpdf, title string) {
	if pdf.GetY() > breakY {
		pdf.AddPage()
	}
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 16, title, "", 1, "L", false, 0, "")
	pdf.Ln(2)
}

func (g *Generator) line(pdf *gofpdf.Fpdf, text string) {
	if pdf.GetY() > breakY {
		pdf.AddPage()
	}
	pdf.SetFont("Helvetica", "", 10)
	pdf.MultiCell(0, lineHeight, text, "", "L", false)
}

// resultFor returns the first result of the kind, preferring a completed one
// when the slice carries both a completed and a failed entry.
func resultFor(results []scan.AnalyzerResult, kind scan.AnalyzerKind) *scan.AnalyzerResult {
	var fallback *scan.AnalyzerResult
	for i := range results {
		if results[i].Kind != kind {
			continue
		}
		if results[i].Status == scan.AnalyzerCompleted {
			return &results[i]
		}
		if fallback == nil {
			fallback = &results[i]
		}
	}
	return fallback
}

func technologyNames(r *scan.AnalyzerResult) []string {
	if r == nil || r.TechStack == nil {
		return nil
	}
	names := make([]string, 0, len(r.TechStack.Technologies))
	for _, tech := range r.TechStack.Technologies {
		names = append(names, tech.Name)
	}
	return names
}

// webVitalRow is one labeled vitals table entry.
type webVitalRow struct {
	Label string
	Value string
}

// webVitalRows flattens the six vitals in display order.
func webVitalRows(v *scan.WebVitals) []webVitalRow {
	return []webVitalRow{
		{Label: "First Contentful Paint", Value: v.FirstContentfulPaint},
		{Label: "Largest Contentful Paint", Value: v.LargestContentfulPaint},
		{Label: "Time to Interactive", Value: v.TimeToInteractive},
		{Label: "Total Blocking Time", Value: v.TotalBlockingTime},
		{Label: "Cumulative Layout Shift", Value: v.CumulativeLayoutShift},
		{Label: "Speed Index", Value: v.SpeedIndex},
	}
}
