package scan

import (
	"context"
	"time"
)

// ScanStore persists scan metadata. The orchestrator is the only writer:
// one Create at intake, then at most two updates (processing-start and the
// terminal write) per scan.
type ScanStore interface {
	Create(ctx context.Context, s Scan) error
	UpdateStatus(ctx context.Context, scanID string, status Status, errText string) error
	SaveResult(ctx context.Context, scanID string, result Result, status Status, errText string) error
	Get(ctx context.Context, scanID string) (Scan, error)
}

// RateLimitStore maintains one admission window row per domain. Increment
// must be atomic per domain: compare-and-increment in the storage layer or a
// single-writer lock, never a bare read-then-write.
type RateLimitStore interface {
	// GetOrCreateWindow returns the current window for the domain, creating an
	// empty one starting at now when none exists.
	GetOrCreateWindow(ctx context.Context, domain string, now time.Time) (RateLimitWindow, error)
	// IncrementWindow atomically admits one scan: if the window is older than
	// the rolling window it resets to count=1, otherwise it increments only
	// while count < limit. The second return reports whether the scan was
	// admitted.
	IncrementWindow(ctx context.Context, domain string, now time.Time, limit int, window time.Duration) (RateLimitWindow, bool, error)
}

// BlobStore writes report artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Publisher pushes scan lifecycle events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Fetcher performs the single timeout-bounded page retrieval.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (FetchResult, error)
}

// Analyzer is the common contract over the six page analyzers. Analyze never
// panics past its boundary; implementations return an error (mapped to a
// failed AnalyzerResult by the caller) instead.
type Analyzer interface {
	Kind() AnalyzerKind
	Analyze(ctx context.Context, page *FetchResult) (AnalyzerResult, error)
}

// Narrator produces the optional narrative analysis from scan findings.
type Narrator interface {
	Narrate(ctx context.Context, scan Scan, results []AnalyzerResult, aggregate AggregateResult) (*Narrative, error)
}

// ReportGenerator serializes a completed scan into a paginated document.
type ReportGenerator interface {
	Generate(s Scan, result Result) (ReportDocument, error)
}

// Queue provides enqueue/dequeue semantics for scan jobs.
type Queue interface {
	Enqueue(ctx context.Context, item QueueItem) error
	Dequeue(ctx context.Context) (QueueItem, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces scan IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
