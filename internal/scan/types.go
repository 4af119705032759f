// Package scan defines core types shared across subsystems.
package scan

import (
	"net/http"
	"time"
)

// Status represents the lifecycle state of a scan.
type Status string

// Scan status values persisted in the scan store. Transitions are monotonic:
// pending -> processing -> completed|failed, never backward.
const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// AnalyzerKind identifies one of the independent page analyzers.
type AnalyzerKind string

// Analyzer kinds.
const (
	KindSecurity      AnalyzerKind = "security"
	KindPerformance   AnalyzerKind = "performance"
	KindAccessibility AnalyzerKind = "accessibility"
	KindAPISurface    AnalyzerKind = "api_surface"
	KindTechStack     AnalyzerKind = "tech_stack"
	KindInteractive   AnalyzerKind = "interactive_elements"
)

// AnalyzerStatus is the terminal state of a single analyzer run.
type AnalyzerStatus string

// Analyzer statuses. A failed analyzer carries an error string and
// zero-valued metrics; it never blocks aggregation.
const (
	AnalyzerPending   AnalyzerStatus = "pending"
	AnalyzerCompleted AnalyzerStatus = "completed"
	AnalyzerFailed    AnalyzerStatus = "failed"
)

// Severity ranks an issue. Rank order for sorting: critical < high < medium < low.
type Severity string

// Issue severities.
const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Rank returns the sort rank of a severity; lower sorts first.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityHigh:
		return 1
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 3
	default:
		return 4
	}
}

// Issue is a single finding produced by an analyzer.
type Issue struct {
	Source   AnalyzerKind `json:"source"`
	Severity Severity     `json:"severity"`
	Title    string       `json:"title"`
	Detail   string       `json:"detail,omitempty"`
	// Count carries the number of occurrences for per-count issues
	// (e.g. three images missing alt text collapse into one issue with Count=3).
	Count int `json:"count,omitempty"`
}

// FetchResult is the single fetched page all analyzers consume.
type FetchResult struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// SecurityMetrics summarizes the fixed header/script checks.
type SecurityMetrics struct {
	ChecksPerformed int `json:"checks_performed"`
	ChecksPassed    int `json:"checks_passed"`
}

// CategoryScores holds the external scoring service's category results,
// already mapped to a 0-100 scale.
type CategoryScores struct {
	Performance   int `json:"performance"`
	Accessibility int `json:"accessibility"`
	BestPractices int `json:"best_practices"`
	SEO           int `json:"seo"`
}

// WebVitals holds the six Core Web Vitals as display strings, present only
// when the external performance scoring service was used.
type WebVitals struct {
	FirstContentfulPaint   string `json:"first_contentful_paint"`
	LargestContentfulPaint string `json:"largest_contentful_paint"`
	TimeToInteractive      string `json:"time_to_interactive"`
	TotalBlockingTime      string `json:"total_blocking_time"`
	CumulativeLayoutShift  string `json:"cumulative_layout_shift"`
	SpeedIndex             string `json:"speed_index"`
}

// Performance strategy labels recorded in PerformanceMetrics.Strategy.
const (
	PerformanceStrategyHeuristic = "heuristic"
	PerformanceStrategyService   = "service"
)

// PerformanceMetrics is produced by either the heuristic or the external
// scoring-service strategy.
type PerformanceMetrics struct {
	Score           int    `json:"score"`
	Strategy        string `json:"strategy"`
	LoadTimeMs      int64  `json:"load_time_ms"`
	ImageCount      int    `json:"image_count"`
	ScriptCount     int    `json:"script_count"`
	StylesheetCount int    `json:"stylesheet_count"`
	Compressed      bool   `json:"compressed"`
	CacheControl    bool   `json:"cache_control"`

	// Populated only by the service strategy.
	Categories *CategoryScores `json:"categories,omitempty"`
	WebVitals  *WebVitals      `json:"web_vitals,omitempty"`
}

// AccessibilityMetrics summarizes the heuristic accessibility scan.
type AccessibilityMetrics struct {
	Score     int    `json:"score"`
	WCAGLevel string `json:"wcag_level"`
}

// APISurfaceMetrics lists root-relative endpoints referenced by inline scripts.
type APISurfaceMetrics struct {
	Endpoints []string `json:"endpoints"`
}

// Technology is a single detected framework/CMS/library/server.
type Technology struct {
	Name       string `json:"name"`
	Category   string `json:"category"`
	Confidence string `json:"confidence"`
}

// TechStackMetrics lists detected technologies.
type TechStackMetrics struct {
	Technologies []Technology `json:"technologies"`
}

// InteractiveMetrics counts interactive page elements.
type InteractiveMetrics struct {
	Buttons        int      `json:"buttons"`
	Links          int      `json:"links"`
	Forms          int      `json:"forms"`
	PrimaryActions []string `json:"primary_actions,omitempty"`
}

// AnalyzerResult is the write-once outcome of one analyzer run. Exactly one
// metrics field matching Kind is non-nil when Status is completed.
type AnalyzerResult struct {
	Kind   AnalyzerKind   `json:"kind"`
	Status AnalyzerStatus `json:"status"`
	Error  string         `json:"error,omitempty"`
	Issues []Issue        `json:"issues,omitempty"`

	Security      *SecurityMetrics      `json:"security,omitempty"`
	Performance   *PerformanceMetrics   `json:"performance,omitempty"`
	Accessibility *AccessibilityMetrics `json:"accessibility,omitempty"`
	APISurface    *APISurfaceMetrics    `json:"api_surface,omitempty"`
	TechStack     *TechStackMetrics     `json:"tech_stack,omitempty"`
	Interactive   *InteractiveMetrics   `json:"interactive,omitempty"`
}

// AggregateResult is the composite outcome over completed analyzers.
type AggregateResult struct {
	OverallScore int     `json:"overall_score"`
	TopIssues    []Issue `json:"top_issues"`
}

// Narrative is the optional text-completion analysis of the scan findings.
type Narrative struct {
	Summary         string   `json:"summary"`
	Recommendations []string `json:"recommendations"`
}

// ReportDocument is the paginated binary artifact for one completed scan.
// Produced at most once, immutable thereafter.
type ReportDocument struct {
	Bytes       []byte    `json:"-"`
	Length      int       `json:"length"`
	Pages       int       `json:"pages"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Result is the full payload persisted in the single terminal write.
type Result struct {
	Analyzers []AnalyzerResult `json:"analyzers"`
	Aggregate AggregateResult  `json:"aggregate"`
	Narrative *Narrative       `json:"narrative,omitempty"`
	Report    *ReportDocument  `json:"report,omitempty"`
	ReportURI string           `json:"report_uri,omitempty"`
}

// Scan is the metadata persisted for each submitted scan request.
type Scan struct {
	ID        string     `json:"id"`
	TargetURL string     `json:"target_url"`
	Status    Status     `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	ErrorText string     `json:"error_text,omitempty"`
	Result    *Result    `json:"result,omitempty"`
}

// RateLimitWindow is the single per-domain admission counter row.
type RateLimitWindow struct {
	Domain      string    `json:"domain"`
	Count       int       `json:"count"`
	WindowStart time.Time `json:"window_start"`
	LastScanAt  time.Time `json:"last_scan_at"`
}

// QueueItem wraps a scan ready to process.
type QueueItem struct {
	ScanID    string
	TargetURL string
	Submitted int64
}
