// Package forecast turns per-category ledger time series into forward
// spending estimates with uncertainty bounds. The fitting algorithm is
// a pluggable capability; the default is a Holt linear-trend model with
// bootstrapped residual intervals.
package forecast

import (
	"fmt"
	"math"
	"math/rand"
)

// Interval is one horizon bucket of a fitted forecast, in major-unit
// float space. The engine converts to minor units when assembling a
// snapshot.
type Interval struct {
	Estimate float64
	Lower    float64
	Upper    float64
}

// Forecaster is the pluggable fitting capability. Implementations must
// be deterministic for a fixed (series, horizon, seed) triple.
type Forecaster interface {
	FitAndForecast(series []float64, horizon int, seed int64) ([]Interval, error)
}

// HoltForecaster fits Holt's linear-trend exponential smoothing and
// derives interval half-widths from a seeded bootstrap over one-step
// residuals. Half-widths scale with sqrt(k), so bounds widen
// monotonically with horizon distance.
type HoltForecaster struct {
	Alpha     float64 // level smoothing
	Beta      float64 // trend smoothing
	Z         float64 // interval multiplier
	Resamples int
}

// NewHoltForecaster returns a forecaster with the default smoothing
// parameters and an 80% interval multiplier.
func NewHoltForecaster() *HoltForecaster {
	return &HoltForecaster{Alpha: 0.5, Beta: 0.3, Z: 1.28, Resamples: 200}
}

// FitAndForecast implements Forecaster.
func (f *HoltForecaster) FitAndForecast(series []float64, horizon int, seed int64) ([]Interval, error) {
	if len(series) < 2 {
		return nil, fmt.Errorf("series has %d points, need at least 2", len(series))
	}
	if horizon < 1 {
		return nil, fmt.Errorf("horizon must be positive, got %d", horizon)
	}

	level := series[0]
	trend := series[1] - series[0]
	residuals := make([]float64, 0, len(series)-1)

	for i := 1; i < len(series); i++ {
		oneStep := level + trend
		residuals = append(residuals, series[i]-oneStep)

		newLevel := f.Alpha*series[i] + (1-f.Alpha)*(level+trend)
		trend = f.Beta*(newLevel-level) + (1-f.Beta)*trend
		level = newLevel
	}

	sigma := bootstrapSigma(residuals, f.Resamples, seed)

	out := make([]Interval, horizon)
	for k := 1; k <= horizon; k++ {
		est := level + float64(k)*trend
		half := f.Z * sigma * math.Sqrt(float64(k))
		out[k-1] = Interval{Estimate: est, Lower: est - half, Upper: est + half}
	}
	return out, nil
}

// bootstrapSigma estimates residual spread by resampling with a seeded
// generator. The fixed seed makes repeated runs bit-identical.
func bootstrapSigma(residuals []float64, resamples int, seed int64) float64 {
	if len(residuals) == 0 || resamples < 1 {
		return 0
	}

	rng := rand.New(rand.NewSource(seed))
	n := float64(len(residuals))

	var total float64
	for b := 0; b < resamples; b++ {
		var sum, sumSq float64
		for range residuals {
			r := residuals[rng.Intn(len(residuals))]
			sum += r
			sumSq += r * r
		}
		mean := sum / n
		variance := sumSq/n - mean*mean
		if variance > 0 {
			total += math.Sqrt(variance)
		}
	}
	return total / float64(resamples)
}

var _ Forecaster = (*HoltForecaster)(nil)
