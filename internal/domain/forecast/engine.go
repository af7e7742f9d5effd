package forecast

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"math"
	"time"

	"github.com/FACorreiaa/mailspend/internal/domain/ledger"
)

// Config controls forecast scope and preconditions.
type Config struct {
	// HorizonMonths is the number of future buckets to predict.
	HorizonMonths int
	// MinHistoryMonths is the precondition for fitting; shorter series
	// yield an insufficient-history result, not a weak forecast.
	MinHistoryMonths int
	// SparseCategories are smoothed with a moving average before
	// fitting instead of being zero-filled as-is.
	SparseCategories []string
}

// Result is the typed outcome of one forecast run. Either Snapshot is
// set or InsufficientHistory is true; neither is an error.
type Result struct {
	Snapshot            *Snapshot
	InsufficientHistory bool
	ObservedMonths      int
	RequiredMonths      int
}

// Engine runs forecasts against consistent ledger snapshots. Each run
// reads the ledger version first and derives the fitting seed from it,
// so re-running against an unchanged ledger reproduces the forecast
// bit for bit.
type Engine struct {
	store      ledger.Store
	forecaster Forecaster
	snapshots  SnapshotStore
	cfg        Config
	sparse     map[string]bool
	logger     *slog.Logger
	now        func() time.Time
}

// NewEngine creates a forecast engine.
func NewEngine(store ledger.Store, forecaster Forecaster, snapshots SnapshotStore, cfg Config, logger *slog.Logger) *Engine {
	sparse := make(map[string]bool, len(cfg.SparseCategories))
	for _, c := range cfg.SparseCategories {
		sparse[c] = true
	}
	return &Engine{
		store:      store,
		forecaster: forecaster,
		snapshots:  snapshots,
		cfg:        cfg,
		sparse:     sparse,
		logger:     logger,
		now:        time.Now,
	}
}

// Run forecasts one category. Months with no transactions count as
// zero spend; only categories marked sparse are smoothed instead.
func (e *Engine) Run(ctx context.Context, category string) (Result, error) {
	version, err := e.store.Version(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("failed to read ledger version: %w", err)
	}

	points, err := e.store.CategorySeries(ctx, category, e.now())
	if err != nil {
		return Result{}, fmt.Errorf("failed to read series for %q: %w", category, err)
	}

	filled := zeroFill(points)
	if len(filled) < e.cfg.MinHistoryMonths {
		if e.logger != nil {
			e.logger.Info("insufficient history for forecast",
				slog.String("category", category),
				slog.Int("observed_months", len(filled)),
				slog.Int("required_months", e.cfg.MinHistoryMonths),
			)
		}
		return Result{
			InsufficientHistory: true,
			ObservedMonths:      len(filled),
			RequiredMonths:      e.cfg.MinHistoryMonths,
		}, nil
	}

	values := make([]float64, len(filled))
	for i, p := range filled {
		values[i] = float64(p.TotalMinor)
	}
	if e.sparse[category] {
		values = movingAverage3(values)
	}

	seed := deriveSeed(version, category, e.cfg.HorizonMonths)
	intervals, err := e.forecaster.FitAndForecast(values, e.cfg.HorizonMonths, seed)
	if err != nil {
		return Result{}, fmt.Errorf("forecast fit failed for %q: %w", category, err)
	}

	last := filled[len(filled)-1].Period
	horizon := make([]Point, len(intervals))
	for k, iv := range intervals {
		est, lower, upper := boundPoint(iv)
		horizon[k] = Point{
			Period:   last.AddDate(0, k+1, 0),
			Estimate: est,
			Lower:    lower,
			Upper:    upper,
		}
	}

	snap := Snapshot{
		Category:      category,
		Horizon:       horizon,
		GeneratedAt:   e.now().UTC(),
		LedgerVersion: version,
	}
	if err := e.snapshots.Save(ctx, snap); err != nil {
		return Result{}, fmt.Errorf("failed to save snapshot for %q: %w", category, err)
	}

	return Result{
		Snapshot:       &snap,
		ObservedMonths: len(filled),
		RequiredMonths: e.cfg.MinHistoryMonths,
	}, nil
}

// zeroFill expands a sorted monthly series into a continuous one,
// inserting zero-spend buckets for missing months.
func zeroFill(points []ledger.SeriesPoint) []ledger.SeriesPoint {
	if len(points) == 0 {
		return nil
	}

	first := ledger.MonthStart(points[0].Period)
	last := ledger.MonthStart(points[len(points)-1].Period)

	byMonth := make(map[time.Time]ledger.SeriesPoint, len(points))
	for _, p := range points {
		byMonth[ledger.MonthStart(p.Period)] = p
	}

	var out []ledger.SeriesPoint
	for month := first; !month.After(last); month = month.AddDate(0, 1, 0) {
		if p, ok := byMonth[month]; ok {
			p.Period = month
			out = append(out, p)
		} else {
			out = append(out, ledger.SeriesPoint{Period: month})
		}
	}
	return out
}

// movingAverage3 smooths irregular series with a centered three-point
// window, shrinking to two points at the edges.
func movingAverage3(values []float64) []float64 {
	if len(values) < 3 {
		return values
	}
	out := make([]float64, len(values))
	for i := range values {
		sum, n := values[i], 1.0
		if i > 0 {
			sum += values[i-1]
			n++
		}
		if i < len(values)-1 {
			sum += values[i+1]
			n++
		}
		out[i] = sum / n
	}
	return out
}

// deriveSeed makes the stochastic parts of fitting reproducible for a
// fixed (ledger_version, category, horizon) triple.
func deriveSeed(version int64, category string, horizon int) int64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%d|%s|%d", version, category, horizon)
	return int64(h.Sum64())
}

// boundPoint converts a fitted interval to non-negative minor units.
// Spend cannot go below zero, so the estimate and lower bound are
// floored at zero; the interval keeps its fitted width by shifting up
// from the floored lower bound, so uncertainty still widens with the
// horizon when a declining trend dips negative.
func boundPoint(iv Interval) (est, lower, upper int64) {
	half := (iv.Upper - iv.Lower) / 2
	e := math.Max(iv.Estimate, 0)
	lo := math.Max(e-half, 0)
	return roundMinor(e), roundMinor(lo), roundMinor(lo + 2*half)
}

func roundMinor(v float64) int64 {
	return int64(math.Round(v))
}
