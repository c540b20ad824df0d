package formulas

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateMaxDrawdown(t *testing.T) {
	dd := CalculateMaxDrawdown([]float64{100, 120, 90, 95, 150, 75})
	require.NotNil(t, dd)
	// Peak 150, trough after peak is 75: (150-75)/150 = 0.5. But the peak
	// that occurs before the worst relative trough is what matters; here the
	// deepest drawdown overall is (120-90)/120 = 0.25 vs (150-75)/150 = 0.5.
	assert.InDelta(t, 0.5, *dd, 1e-9)
}

func TestCalculateMaxDrawdownInsufficientData(t *testing.T) {
	assert.Nil(t, CalculateMaxDrawdown([]float64{100}))
	assert.Nil(t, CalculateMaxDrawdown(nil))
}

func TestCalculateMaxDrawdownMonotonicUp(t *testing.T) {
	dd := CalculateMaxDrawdown([]float64{10, 20, 30, 40})
	require.NotNil(t, dd)
	assert.Equal(t, 0.0, *dd)
}

func TestCalculateDrawdownMetrics(t *testing.T) {
	metrics := CalculateDrawdownMetrics([]float64{100, 150, 120, 90})
	require.NotNil(t, metrics)
	assert.InDelta(t, 0.4, metrics.MaxDrawdown, 1e-9) // (150-90)/150
	assert.InDelta(t, 0.4, metrics.CurrentDrawdown, 1e-9)
	assert.Equal(t, 150.0, metrics.PeakValue)
	assert.Equal(t, 90.0, metrics.CurrentValue)
	assert.Equal(t, 2, metrics.DaysInDrawdown) // peak at index 1, last index 3
}

func Test52WeekHighLow(t *testing.T) {
	prices := []float64{10, 50, 20, 5, 30}
	high := Calculate52WeekHigh(prices)
	low := Calculate52WeekLow(prices)
	require.NotNil(t, high)
	require.NotNil(t, low)
	assert.Equal(t, 50.0, *high)
	assert.Equal(t, 5.0, *low)
}

func TestCalculateDistanceFrom52WeekHigh(t *testing.T) {
	dist := CalculateDistanceFrom52WeekHigh([]float64{100, 80})
	require.NotNil(t, dist)
	assert.InDelta(t, 0.2, *dist, 1e-9)
}

func TestCalculateMomentum(t *testing.T) {
	m := CalculateMomentum([]float64{100, 105, 110, 121}, 3)
	require.NotNil(t, m)
	assert.InDelta(t, 0.21, *m, 1e-9)
	assert.Nil(t, CalculateMomentum([]float64{100, 110}, 5))
}

func TestCalculateVolatilityRatio(t *testing.T) {
	prices := make([]float64, 400)
	for i := range prices {
		prices[i] = 100 + float64(i%5)
	}
	ratio := CalculateVolatilityRatio(prices)
	require.NotNil(t, ratio)
	assert.Greater(t, *ratio, 0.0)
}

func TestCalculateUlcerIndex(t *testing.T) {
	ui := CalculateUlcerIndex([]float64{100, 100, 100, 100}, 4)
	require.NotNil(t, ui)
	assert.Equal(t, 0.0, *ui)

	ui2 := CalculateUlcerIndex([]float64{100, 50}, 2)
	require.NotNil(t, ui2)
	assert.True(t, *ui2 > 0 && !math.IsNaN(*ui2))

	assert.Nil(t, CalculateUlcerIndex([]float64{100}, 5))
}
