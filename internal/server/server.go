// Package server assembles the scan service and runs its lifecycle.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/sitesage/webscan/internal/analyzer"
	"github.com/sitesage/webscan/internal/analyzer/pagespeed"
	"github.com/sitesage/webscan/internal/api"
	"github.com/sitesage/webscan/internal/clock/system"
	"github.com/sitesage/webscan/internal/config"
	"github.com/sitesage/webscan/internal/dispatcher"
	collyfetcher "github.com/sitesage/webscan/internal/fetcher/colly"
	"github.com/sitesage/webscan/internal/id/uuid"
	"github.com/sitesage/webscan/internal/insight"
	"github.com/sitesage/webscan/internal/logging"
	"github.com/sitesage/webscan/internal/policy/ratelimit"
	memorypublisher "github.com/sitesage/webscan/internal/publisher/memory"
	gcppublisher "github.com/sitesage/webscan/internal/publisher/pubsub"
	queuememory "github.com/sitesage/webscan/internal/queue/memory"
	"github.com/sitesage/webscan/internal/report"
	"github.com/sitesage/webscan/internal/scan"
	gcsstorage "github.com/sitesage/webscan/internal/storage/gcs"
	localstorage "github.com/sitesage/webscan/internal/storage/local"
	memorystorage "github.com/sitesage/webscan/internal/storage/memory"
	pgstore "github.com/sitesage/webscan/internal/storage/postgres"
	"github.com/sitesage/webscan/internal/worker"
)

// App contains the application's dependencies.
type App struct {
	cfg       config.Config
	logger    *zap.Logger
	apiServer *api.Server
	dispatch  *dispatcher.Dispatcher
	queue     *queuememory.Queue

	gcsClient       *storage.Client
	pubsubPublisher *gcppublisher.Publisher
	pgScanStore     *pgstore.ScanStore
	pgRateStore     *pgstore.RateLimitStore
}

// Build creates the application's dependencies.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	zap.ReplaceGlobals(logger)

	app := &App{cfg: cfg, logger: logger}
	logger.Info("building application dependencies",
		zap.Int("port", cfg.Server.Port),
		zap.Int("concurrency", cfg.Scanner.Concurrency),
	)

	scanStore, rateStore, err := app.setupDatabase(ctx)
	if err != nil {
		return nil, err
	}
	blobStore, err := app.setupStorage(ctx)
	if err != nil {
		return nil, err
	}
	publisher, err := app.setupPublisher(ctx)
	if err != nil {
		return nil, err
	}

	clock := system.New()
	limiter := ratelimit.New(rateStore, clock, ratelimit.Config{
		MaxScans: cfg.RateLimit.MaxScans,
		Window:   cfg.RateLimitWindow(),
	})

	app.queue = queuememory.NewQueue(cfg.Scanner.QueueDepth)
	app.dispatch = app.setupDispatcher(scanStore, blobStore, publisher, limiter, clock)

	app.apiServer = api.NewServer(
		scanStore,
		app.dispatch,
		uuid.NewUUIDGenerator(),
		clock,
		cfg,
		logger.Named("api"),
	)
	return app, nil
}

// Run starts the application and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		a.logger.Info("dispatcher started")
		a.dispatch.Run(ctx)
	}()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}
	return a.Close()
}

// Close gracefully releases the application's resources.
func (a *App) Close() error {
	if a.queue != nil {
		a.queue.Close()
	}
	if a.pubsubPublisher != nil {
		if err := a.pubsubPublisher.Close(); err != nil {
			a.logger.Warn("pubsub publisher close failed", zap.Error(err))
		}
	}
	if a.gcsClient != nil {
		if err := a.gcsClient.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
	}
	if a.pgScanStore != nil {
		a.pgScanStore.Close()
	}
	if a.pgRateStore != nil {
		a.pgRateStore.Close()
	}
	if err := a.logger.Sync(); err != nil {
		a.logger.Warn("logger sync failed", zap.Error(err))
	}
	a.logger.Info("shutdown complete")
	return nil
}

func (a *App) setupDatabase(ctx context.Context) (scan.ScanStore, scan.RateLimitStore, error) {
	if a.cfg.DB.Provider != "postgres" {
		a.logger.Info("using in-memory scan and rate-limit stores")
		return memorystorage.NewScanStore(), memorystorage.NewRateLimitStore(), nil
	}

	pgCfg := pgstore.Config{
		DSN:      a.cfg.DB.DSN,
		MaxConns: int32(a.cfg.DB.MaxOpenConns),
	}
	scanStore, err := pgstore.NewScanStore(ctx, pgCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("scan store init failed: %w", err)
	}
	rateStore, err := pgstore.NewRateLimitStore(ctx, pgCfg)
	if err != nil {
		scanStore.Close()
		return nil, nil, fmt.Errorf("rate limit store init failed: %w", err)
	}
	a.pgScanStore = scanStore
	a.pgRateStore = rateStore
	a.logger.Info("using postgres scan and rate-limit stores")
	return scanStore, rateStore, nil
}

func (a *App) setupStorage(ctx context.Context) (scan.BlobStore, error) {
	switch a.cfg.Storage.Provider {
	case "gcs":
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client init failed: %w", err)
		}
		a.gcsClient = client
		blobStore, err := gcsstorage.New(client, gcsstorage.Config{Bucket: a.cfg.Storage.GCSBucket})
		if err != nil {
			return nil, fmt.Errorf("gcs blob store init failed: %w", err)
		}
		a.logger.Info("using GCS report storage", zap.String("bucket", a.cfg.Storage.GCSBucket))
		return blobStore, nil
	case "local":
		blobStore, err := localstorage.New(localstorage.Config{BaseDir: a.cfg.Storage.BaseDir})
		if err != nil {
			return nil, fmt.Errorf("local blob store init failed: %w", err)
		}
		a.logger.Info("using local report storage", zap.String("base_dir", a.cfg.Storage.BaseDir))
		return blobStore, nil
	default:
		a.logger.Info("using in-memory report storage")
		return memorystorage.NewBlobStore(), nil
	}
}

func (a *App) setupPublisher(ctx context.Context) (scan.Publisher, error) {
	if a.cfg.PubSub.Provider != "pubsub" || a.cfg.PubSub.ProjectID == "" {
		a.logger.Info("using in-memory event publisher")
		return memorypublisher.NewPublisher(), nil
	}
	publisher, err := gcppublisher.New(ctx, a.cfg.PubSub.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("pubsub publisher init failed: %w", err)
	}
	a.pubsubPublisher = publisher
	a.logger.Info("using Pub/Sub event publisher",
		zap.String("project", a.cfg.PubSub.ProjectID),
		zap.String("topic", a.cfg.PubSub.TopicName),
	)
	return publisher, nil
}

func (a *App) setupDispatcher(
	scanStore scan.ScanStore,
	blobStore scan.BlobStore,
	publisher scan.Publisher,
	limiter *ratelimit.Limiter,
	clock scan.Clock,
) *dispatcher.Dispatcher {
	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent:    a.cfg.Fetch.UserAgent,
		Timeout:      a.cfg.FetchTimeout(),
		PerDomainRPS: a.cfg.Fetch.PerDomainRPS,
		Burst:        a.cfg.Fetch.Burst,
	})

	var scoreService analyzer.ScoreService
	if a.cfg.PageSpeed.APIKey != "" {
		scoreService = pagespeed.New(pagespeed.Config{
			APIKey:   a.cfg.PageSpeed.APIKey,
			Endpoint: a.cfg.PageSpeed.Endpoint,
			Timeout:  time.Duration(a.cfg.PageSpeed.TimeoutSeconds) * time.Second,
		}, a.logger.Named("pagespeed"))
		a.logger.Info("performance scoring service enabled")
	}

	analyzers := []scan.Analyzer{
		analyzer.NewSecurity(),
		analyzer.NewPerformance(scoreService, a.logger.Named("performance")),
		analyzer.NewTechStack(),
		analyzer.NewAccessibility(),
		analyzer.NewInteractive(),
		analyzer.NewAPISurface(),
	}

	var narrator scan.Narrator
	if a.cfg.Insight.APIKey != "" {
		narrator = insight.New(insight.Config{
			APIKey:   a.cfg.Insight.APIKey,
			Endpoint: a.cfg.Insight.Endpoint,
			Model:    a.cfg.Insight.Model,
			Timeout:  time.Duration(a.cfg.Insight.TimeoutSeconds) * time.Second,
		}, a.logger.Named("insight"))
		a.logger.Info("narrative analysis enabled", zap.String("model", a.cfg.Insight.Model))
	}

	var reporter scan.ReportGenerator
	if a.cfg.Report.Enabled {
		reporter = report.New(a.cfg.Report.Brand, clock)
	}

	workerCfg := worker.Config{
		BlobPrefix: a.cfg.Storage.Prefix,
		Topic:      a.cfg.PubSub.TopicName,
	}

	workers := make([]*worker.Worker, 0, a.cfg.Scanner.Concurrency)
	for i := 0; i < a.cfg.Scanner.Concurrency; i++ {
		workers = append(workers, worker.New(
			a.queue,
			scanStore,
			blobStore,
			publisher,
			limiter,
			fetcher,
			analyzers,
			narrator,
			reporter,
			clock,
			workerCfg,
			a.logger.Named("worker").With(zap.Int("index", i)),
		))
	}
	return dispatcher.New(a.queue, workers)
}
