package pipeline

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"github.com/FACorreiaa/mailspend/internal/domain/forecast"
	"github.com/FACorreiaa/mailspend/internal/domain/ledger"
	"github.com/FACorreiaa/mailspend/pkg/metrics"
)

// ForecastRunner refreshes forecasts for all ledger categories. A
// category is only refitted when its series changed since the last
// successful run, and never more than once concurrently.
type ForecastRunner struct {
	engine  *forecast.Engine
	store   ledger.Store
	metrics *metrics.Metrics
	logger  *slog.Logger

	mu         sync.Mutex
	lastSeries map[string]uint64
	inFlight   map[string]bool
}

// NewForecastRunner creates a forecast runner.
func NewForecastRunner(engine *forecast.Engine, store ledger.Store, m *metrics.Metrics, logger *slog.Logger) *ForecastRunner {
	return &ForecastRunner{
		engine:     engine,
		store:      store,
		metrics:    m,
		logger:     logger,
		lastSeries: make(map[string]uint64),
		inFlight:   make(map[string]bool),
	}
}

// RunAll refreshes every category that changed materially. Per-category
// failures are logged and counted; the sweep continues.
func (f *ForecastRunner) RunAll(ctx context.Context) error {
	categories, err := f.store.Categories(ctx)
	if err != nil {
		return fmt.Errorf("failed to list categories: %w", err)
	}

	for _, category := range categories {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := f.runCategory(ctx, category); err != nil {
			f.metrics.ForecastRuns.WithLabelValues("error").Inc()
			f.logger.Error("forecast run failed",
				slog.String("category", category),
				slog.Any("error", err),
			)
		}
	}
	return nil
}

func (f *ForecastRunner) runCategory(ctx context.Context, category string) error {
	fingerprint, err := f.seriesFingerprint(ctx, category)
	if err != nil {
		return err
	}

	f.mu.Lock()
	if f.inFlight[category] {
		f.mu.Unlock()
		f.metrics.ForecastRuns.WithLabelValues("skipped").Inc()
		return nil
	}
	if f.lastSeries[category] == fingerprint {
		f.mu.Unlock()
		f.metrics.ForecastRuns.WithLabelValues("unchanged").Inc()
		return nil
	}
	f.inFlight[category] = true
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		delete(f.inFlight, category)
		f.mu.Unlock()
	}()

	res, err := f.engine.Run(ctx, category)
	if err != nil {
		return err
	}

	if res.InsufficientHistory {
		f.metrics.ForecastRuns.WithLabelValues("insufficient_history").Inc()
		// Not marked as seen: once enough months accrue the fingerprint
		// changes anyway, but skipping the mark keeps intent obvious.
		return nil
	}

	f.mu.Lock()
	f.lastSeries[category] = fingerprint
	f.mu.Unlock()

	f.metrics.ForecastRuns.WithLabelValues("snapshot").Inc()
	f.logger.Info("forecast snapshot produced",
		slog.String("category", category),
		slog.Int64("ledger_version", res.Snapshot.LedgerVersion),
		slog.Int("horizon_months", len(res.Snapshot.Horizon)),
	)
	return nil
}

// seriesFingerprint hashes the category's monthly series so unchanged
// categories are not refitted every sweep.
func (f *ForecastRunner) seriesFingerprint(ctx context.Context, category string) (uint64, error) {
	points, err := f.store.CategorySeries(ctx, category, time.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to read series for %q: %w", category, err)
	}

	h := fnv.New64a()
	for _, p := range points {
		fmt.Fprintf(h, "%d|%d|%d;", p.Period.Unix(), p.TotalMinor, p.Count)
	}
	return h.Sum64(), nil
}
