// Package worker implements the scan pipeline execution loop.
package worker

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/sitesage/webscan/internal/aggregate"
	"github.com/sitesage/webscan/internal/analyzer"
	"github.com/sitesage/webscan/internal/policy/ratelimit"
	"github.com/sitesage/webscan/internal/scan"
	"github.com/sitesage/webscan/internal/telemetry"
)

// Config controls Worker behavior.
type Config struct {
	BlobPrefix string
	Topic      string
}

// Worker consumes queue items and executes the scan pipeline: admission,
// fetch, the six analyzers, aggregation, optional narrative and report, then
// the single terminal write.
type Worker struct {
	queue     scan.Queue
	scanStore scan.ScanStore
	blobStore scan.BlobStore
	publisher scan.Publisher
	limiter   *ratelimit.Limiter
	fetcher   scan.Fetcher
	analyzers []scan.Analyzer
	narrator  scan.Narrator
	report    scan.ReportGenerator
	clock     scan.Clock
	cfg       Config
	logger    *zap.Logger
}

// New constructs a Worker. The narrator, report generator, blob store, and
// publisher are optional; a nil value disables that stage.
func New(
	queue scan.Queue,
	scanStore scan.ScanStore,
	blobStore scan.BlobStore,
	publisher scan.Publisher,
	limiter *ratelimit.Limiter,
	fetcher scan.Fetcher,
	analyzers []scan.Analyzer,
	narrator scan.Narrator,
	report scan.ReportGenerator,
	clock scan.Clock,
	cfg Config,
	logger *zap.Logger,
) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		queue:     queue,
		scanStore: scanStore,
		blobStore: blobStore,
		publisher: publisher,
		limiter:   limiter,
		fetcher:   fetcher,
		analyzers: analyzers,
		narrator:  narrator,
		report:    report,
		clock:     clock,
		cfg:       cfg,
		logger:    logger,
	}
}

// Run blocks, consuming queue items until the context finishes.
func (w *Worker) Run(ctx context.Context) {
	for {
		item, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Error("queue dequeue failed", zap.Error(err))
			continue
		}
		w.logger.Debug("dequeued scan", zap.String("scan_id", item.ScanID))
		w.ProcessScan(ctx, item)
	}
}

// ProcessScan runs the full pipeline for one scan. Panics anywhere in the
// pipeline mark the scan failed rather than killing the worker.
func (w *Worker) ProcessScan(ctx context.Context, item scan.QueueItem) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("scan pipeline panic",
				zap.String("scan_id", item.ScanID), zap.Any("panic", r))
			w.failScan(ctx, item.ScanID, fmt.Sprintf("internal error: %v", r))
		}
	}()

	if err := w.scanStore.UpdateStatus(ctx, item.ScanID, scan.StatusProcessing, ""); err != nil {
		w.logger.Error("mark scan processing failed",
			zap.String("scan_id", item.ScanID), zap.Error(err))
		return
	}

	domain, err := ratelimit.DomainOf(item.TargetURL)
	if err != nil {
		w.failScan(ctx, item.ScanID, err.Error())
		return
	}
	if err := w.limiter.Admit(ctx, domain); err != nil {
		w.logger.Info("scan rejected by rate limit",
			zap.String("scan_id", item.ScanID), zap.String("domain", domain))
		w.failScan(ctx, item.ScanID, err.Error())
		return
	}

	page, fetchErr := w.fetchPage(ctx, item)
	results := w.runAnalyzers(ctx, page, fetchErr)
	agg := aggregate.Compute(results)

	status := scan.StatusFailed
	errText := ""
	if anyCompleted(results) {
		status = scan.StatusCompleted
	} else {
		errText = "all analyzers failed"
		if fetchErr != nil {
			errText = fetchErr.Error()
		}
	}

	result := scan.Result{Analyzers: results, Aggregate: agg}
	if status == scan.StatusCompleted {
		result.Narrative = w.narrate(ctx, item, results, agg)
		w.attachReport(ctx, item, &result)
	}

	if err := w.scanStore.SaveResult(ctx, item.ScanID, result, status, errText); err != nil {
		w.logger.Error("save scan result failed",
			zap.String("scan_id", item.ScanID), zap.Error(err))
		// A mid-processing persistence failure is fatal to the scan: never
		// leave it stuck in processing. Best effort; a store that is fully
		// down fails this write too and the scan becomes an orphan.
		w.failScan(ctx, item.ScanID, "persistence failure")
		return
	}
	telemetry.ObserveScan(string(status))
	w.publishEvent(ctx, item, status, agg.OverallScore)
}

func (w *Worker) fetchPage(ctx context.Context, item scan.QueueItem) (*scan.FetchResult, error) {
	page, err := w.fetcher.Fetch(ctx, item.TargetURL)
	if err != nil {
		w.logger.Warn("page fetch failed",
			zap.String("scan_id", item.ScanID),
			zap.String("url", item.TargetURL),
			zap.Error(err))
		return nil, err
	}
	return &page, nil
}

// runAnalyzers executes all analyzers concurrently. Result order matches the
// configured analyzer order regardless of completion order.
func (w *Worker) runAnalyzers(ctx context.Context, page *scan.FetchResult, fetchErr error) []scan.AnalyzerResult {
	results := make([]scan.AnalyzerResult, len(w.analyzers))
	var wg sync.WaitGroup
	for i, a := range w.analyzers {
		wg.Add(1)
		go func(i int, a scan.Analyzer) {
			defer wg.Done()
			results[i] = analyzer.Run(ctx, a, page, fetchErr)
		}(i, a)
	}
	wg.Wait()
	return results
}

func (w *Worker) narrate(ctx context.Context, item scan.QueueItem, results []scan.AnalyzerResult, agg scan.AggregateResult) *scan.Narrative {
	if w.narrator == nil {
		return nil
	}
	narrative, err := w.narrator.Narrate(ctx, scan.Scan{ID: item.ScanID, TargetURL: item.TargetURL}, results, agg)
	if err != nil {
		w.logger.Warn("narrative generation failed",
			zap.String("scan_id", item.ScanID), zap.Error(err))
		return nil
	}
	return narrative
}

// attachReport generates and uploads the PDF. Both steps are non-fatal: a
// completed scan without a report is still completed.
func (w *Worker) attachReport(ctx context.Context, item scan.QueueItem, result *scan.Result) {
	if w.report == nil {
		return
	}
	doc, err := w.report.Generate(scan.Scan{ID: item.ScanID, TargetURL: item.TargetURL}, *result)
	if err != nil {
		w.logger.Warn("report generation failed",
			zap.String("scan_id", item.ScanID), zap.Error(err))
		return
	}
	result.Report = &doc

	if w.blobStore == nil {
		return
	}
	uri, err := w.blobStore.PutObject(ctx, w.buildBlobPath(item.ScanID), "application/pdf", doc.Bytes)
	if err != nil {
		w.logger.Warn("report upload failed",
			zap.String("scan_id", item.ScanID), zap.Error(err))
		return
	}
	result.ReportURI = uri
}

func (w *Worker) buildBlobPath(scanID string) string {
	prefix := strings.Trim(w.cfg.BlobPrefix, "/")
	if prefix == "" {
		return fmt.Sprintf("%s/report.pdf", scanID)
	}
	return fmt.Sprintf("%s/%s/report.pdf", prefix, scanID)
}

func (w *Worker) failScan(ctx context.Context, scanID, errText string) {
	if err := w.scanStore.UpdateStatus(ctx, scanID, scan.StatusFailed, errText); err != nil {
		w.logger.Error("mark scan failed errored",
			zap.String("scan_id", scanID), zap.Error(err))
		return
	}
	telemetry.ObserveScan(string(scan.StatusFailed))
}

func (w *Worker) publishEvent(ctx context.Context, item scan.QueueItem, status scan.Status, score int) {
	if w.publisher == nil || w.cfg.Topic == "" {
		return
	}
	event := map[string]any{
		"scan_id":       item.ScanID,
		"target_url":    item.TargetURL,
		"status":        string(status),
		"overall_score": score,
		"finished_at":   w.clock.Now(),
	}
	if _, err := w.publisher.Publish(ctx, w.cfg.Topic, event); err != nil {
		w.logger.Warn("publish scan event failed",
			zap.String("scan_id", item.ScanID), zap.Error(err))
	}
}

func anyCompleted(results []scan.AnalyzerResult) bool {
	for _, r := range results {
		if r.Status == scan.AnalyzerCompleted {
			return true
		}
	}
	return false
}
