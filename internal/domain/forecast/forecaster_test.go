package forecast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHoltDeterministicForFixedSeed(t *testing.T) {
	f := NewHoltForecaster()
	series := []float64{100, 120, 110, 140, 130, 150}

	first, err := f.FitAndForecast(series, 6, 12345)
	require.NoError(t, err)
	second, err := f.FitAndForecast(series, 6, 12345)
	require.NoError(t, err)

	assert.Equal(t, first, second, "identical inputs and seed must be bit-identical")
}

func TestHoltBoundsWidenMonotonically(t *testing.T) {
	f := NewHoltForecaster()
	series := []float64{100, 130, 90, 160, 120, 170, 140}

	intervals, err := f.FitAndForecast(series, 8, 7)
	require.NoError(t, err)
	require.Len(t, intervals, 8)

	prevWidth := -1.0
	for _, iv := range intervals {
		width := iv.Upper - iv.Lower
		assert.GreaterOrEqual(t, width, prevWidth)
		assert.LessOrEqual(t, iv.Lower, iv.Estimate)
		assert.GreaterOrEqual(t, iv.Upper, iv.Estimate)
		prevWidth = width
	}
}

func TestHoltTracksLinearTrend(t *testing.T) {
	f := NewHoltForecaster()
	// Perfectly linear series: residuals are zero, so the point
	// forecast continues the line and bounds collapse onto it.
	series := []float64{100, 200, 300, 400, 500}

	intervals, err := f.FitAndForecast(series, 3, 1)
	require.NoError(t, err)

	assert.InDelta(t, 600, intervals[0].Estimate, 1e-6)
	assert.InDelta(t, 700, intervals[1].Estimate, 1e-6)
	assert.InDelta(t, 800, intervals[2].Estimate, 1e-6)
	assert.InDelta(t, intervals[0].Lower, intervals[0].Upper, 1e-6)
}

func TestHoltRejectsShortSeries(t *testing.T) {
	f := NewHoltForecaster()

	_, err := f.FitAndForecast([]float64{100}, 6, 1)
	assert.Error(t, err)

	_, err = f.FitAndForecast([]float64{100, 200}, 0, 1)
	assert.Error(t, err)
}
