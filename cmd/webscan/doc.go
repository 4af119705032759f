// Package main hosts the webscan service entrypoint.
//
// Architecture overview:
//   - HTTP API: internal/api.Server exposes health, metrics, and scan management endpoints. Submitted URLs are
//     validated and normalized, persisted as pending scans via the ScanStore, and enqueued for work.
//   - Dispatcher & queue: scans flow through a bounded in-memory queue sized by config.Scanner.QueueDepth and are
//     fanned out to a fixed worker pool sized by config.Scanner.Concurrency. Context cancellation stops workers
//     cleanly on shutdown.
//   - Scan pipeline: each worker admits the scan against the per-domain rolling window, performs one bounded page
//     fetch via the Colly-based fetcher, runs the six analyzers concurrently, aggregates category scores and top
//     issues, and optionally produces a narrative summary and a paginated PDF report.
//   - Persistence & fanout: scan rows live in memory or Postgres; generated reports are written to the configured
//     BlobStore (memory/local/GCS); a compact Pub/Sub notification is published per finished scan when a topic is
//     configured.
//   - Configuration & plumbing: Viper populates config from env/files; zap provides structured logging; Prometheus
//     metrics are exported via the /metrics handler.
//
// Operational notes:
//   - Concurrency model: bounded queue + fixed worker pool. Shutdown is coordinated via context cancellation
//     propagated from main through the dispatcher to workers.
//   - Rate limiting: scan admission is a rolling per-domain window enforced atomically in the rate-limit store;
//     outbound fetch pacing is a separate per-domain token bucket inside the fetcher.
//   - Observability: zap logs carry scan IDs and URLs at key transitions; Prometheus counters/histograms track API
//     and scan activity.
//
// Quick checklist:
//   - Configure env vars with the WEBSCAN_ prefix (WEBSCAN_SERVER_PORT, WEBSCAN_SCANNER_CONCURRENCY,
//     WEBSCAN_DB_DSN, WEBSCAN_STORAGE_PROVIDER, WEBSCAN_PUBSUB_PROJECT_ID, ...) or point -config at a file.
//   - Run locally: go run ./cmd/webscan -config config.yaml (or rely solely on env overrides).
//   - The server listens on the configured port and shuts down cleanly on SIGTERM with in-flight scans bounded by
//     the fetch and analyzer timeouts.
package main
