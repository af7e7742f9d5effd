// Package app wires all pipeline dependencies together.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/FACorreiaa/mailspend/internal/domain/classify"
	"github.com/FACorreiaa/mailspend/internal/domain/forecast"
	"github.com/FACorreiaa/mailspend/internal/domain/ingest/extractor"
	"github.com/FACorreiaa/mailspend/internal/domain/ingest/normalizer"
	"github.com/FACorreiaa/mailspend/internal/domain/ledger"
	"github.com/FACorreiaa/mailspend/internal/export"
	"github.com/FACorreiaa/mailspend/internal/mailbox"
	"github.com/FACorreiaa/mailspend/internal/pipeline"
	"github.com/FACorreiaa/mailspend/pkg/config"
	"github.com/FACorreiaa/mailspend/pkg/cron"
	"github.com/FACorreiaa/mailspend/pkg/db"
	"github.com/FACorreiaa/mailspend/pkg/metrics"
	"github.com/FACorreiaa/mailspend/pkg/money"
)

// Dependencies holds all application dependencies
type Dependencies struct {
	Config   *config.Config
	DB       *db.DB
	Logger   *slog.Logger
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics

	// Storage
	Store     ledger.Store
	Snapshots forecast.SnapshotStore
	Source    mailbox.Source
	Cursor    mailbox.CursorStore

	// Pipeline stages
	Normalizer *normalizer.Normalizer
	Extractor  *extractor.Extractor
	Semantic   *classify.SemanticClassifier
	Classifier *classify.Classifier
	Reconciler *ledger.Reconciler

	// Runners
	Orchestrator   *pipeline.Orchestrator
	Runner         *pipeline.Runner
	ForecastEngine *forecast.Engine
	ForecastRunner *pipeline.ForecastRunner
	Scheduler      *cron.Scheduler
}

// InitDependencies initializes all application dependencies
func InitDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config:   cfg,
		Logger:   logger,
		Registry: prometheus.NewRegistry(),
	}
	deps.Metrics = metrics.New(deps.Registry)

	if err := deps.initStorage(); err != nil {
		return nil, fmt.Errorf("failed to init storage: %w", err)
	}
	if err := deps.initPipeline(); err != nil {
		return nil, fmt.Errorf("failed to init pipeline: %w", err)
	}
	deps.initScheduler()

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// initStorage selects the ledger store. Without a configured database
// host the pipeline runs fully in memory, which suits one-shot CLI use
// where the CSV export is the durable artifact.
func (d *Dependencies) initStorage() error {
	dsn := d.Config.Database.DSN()
	if dsn == "" {
		d.Logger.Info("no database configured, using in-memory ledger store")
		d.Store = ledger.NewMemoryStore()
	} else {
		database, err := db.New(db.Config{
			DSN:             dsn,
			MaxConns:        25,
			MinConns:        5,
			MaxConnLifetime: 5 * time.Minute,
			MaxConnIdleTime: 10 * time.Minute,
		}, d.Logger)
		if err != nil {
			return err
		}
		d.DB = database
		d.Store = ledger.NewPostgresStore(database.Pool)
	}

	d.Snapshots = forecast.NewMemorySnapshotStore()
	d.Source = mailbox.NewDirectorySource(d.Config.Mailbox.MessageDir, d.Logger)
	d.Cursor = mailbox.NewFileCursorStore(d.Config.Mailbox.CursorPath)
	return nil
}

func (d *Dependencies) initPipeline() error {
	fallbackLocale := money.LocaleUS
	if d.Config.Classifier.FallbackLocale == "eu" {
		fallbackLocale = money.LocaleEU
	}

	d.Normalizer = normalizer.New()
	d.Extractor = extractor.New(extractor.Config{
		FallbackLocale:   fallbackLocale,
		FallbackCurrency: money.EUR,
	}, d.Logger)

	semantic, err := classify.NewSemanticClassifier()
	if err != nil {
		return err
	}
	d.Semantic = semantic
	d.Classifier = classify.New(classify.Config{
		MinConfidence:  d.Config.Classifier.MinConfidence,
		FuzzyThreshold: d.Config.Classifier.FuzzyThreshold,
	}, semantic, d.Logger)

	d.Reconciler = ledger.NewReconciler(d.Store, d.Config.Forecast.AutoConfirmScore, d.Logger)

	d.Orchestrator = pipeline.NewOrchestrator(
		d.Normalizer, d.Extractor, d.Classifier, d.Reconciler,
		d.Metrics, d.Logger,
		pipeline.Config{
			Workers:          d.Config.Pipeline.Workers,
			MaxAttempts:      d.Config.Pipeline.MaxAttempts,
			RetryBaseDelay:   d.Config.Pipeline.RetryBaseDelay,
			CapabilityPerSec: d.Config.Pipeline.CapabilityPerSec,
		},
	)
	d.Runner = pipeline.NewRunner(
		d.Source, d.Cursor, d.Orchestrator, d.Classifier, d.Store,
		d.Config.Mailbox.BatchSize, d.Logger,
	)

	d.ForecastEngine = forecast.NewEngine(
		d.Store, forecast.NewHoltForecaster(), d.Snapshots,
		forecast.Config{
			HorizonMonths:    d.Config.Forecast.HorizonMonths,
			MinHistoryMonths: d.Config.Forecast.MinHistoryMonths,
			SparseCategories: d.Config.Forecast.SparseCategories,
		}, d.Logger,
	)
	d.ForecastRunner = pipeline.NewForecastRunner(d.ForecastEngine, d.Store, d.Metrics, d.Logger)
	return nil
}

func (d *Dependencies) initScheduler() {
	d.Scheduler = cron.NewScheduler(
		func(ctx context.Context) error {
			_, err := d.RunIngest(ctx)
			return err
		},
		d.RunForecast,
		d.Logger,
	)
}

// RunIngest executes one ingestion batch and records its job stats.
func (d *Dependencies) RunIngest(ctx context.Context) (pipeline.JobStats, error) {
	// Feed committed vendor history into the semantic index so new
	// vendors classify by similarity to confirmed ones.
	history, err := d.Store.VendorHistory(ctx)
	if err != nil {
		return pipeline.JobStats{}, fmt.Errorf("failed to load vendor history: %w", err)
	}
	if err := d.Semantic.IndexVendors(history); err != nil {
		return pipeline.JobStats{}, err
	}

	stats, runErr := d.Runner.RunOnce(ctx)

	if path := d.Config.Export.JobStatsPath; path != "" {
		if err := export.AppendJobStats(path, stats); err != nil {
			d.Logger.Error("failed to record job stats", slog.Any("error", err))
		}
	}
	return stats, runErr
}

// RunForecast refreshes forecasts for materially changed categories.
func (d *Dependencies) RunForecast(ctx context.Context) error {
	return d.ForecastRunner.RunAll(ctx)
}

// ExportLedger writes the current ledger to the configured CSV path.
func (d *Dependencies) ExportLedger(ctx context.Context) (int, error) {
	rows, err := d.Store.ListAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to read ledger: %w", err)
	}
	if err := export.WriteLedgerCSV(d.Config.Export.LedgerCSVPath, rows); err != nil {
		return 0, err
	}
	return len(rows), nil
}

// MetricsHandler exposes the Prometheus registry over HTTP.
func (d *Dependencies) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(d.Registry, promhttp.HandlerOpts{})
}

// Close releases held resources.
func (d *Dependencies) Close() {
	if d.Semantic != nil {
		if err := d.Semantic.Close(); err != nil {
			d.Logger.Error("failed to close classifier index", slog.Any("error", err))
		}
	}
	if d.DB != nil {
		d.DB.Close()
	}
}
