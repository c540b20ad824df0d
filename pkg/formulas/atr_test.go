package formulas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateATRInsufficientData(t *testing.T) {
	assert.Nil(t, CalculateATR([]float64{1}, []float64{1}, []float64{1}, 14))
	assert.Nil(t, CalculateATR([]float64{1, 2}, []float64{1}, []float64{1, 2}, 14))
}

func TestCalculateATRFallsBackToMeanBelowPeriod(t *testing.T) {
	high := []float64{102, 103, 104}
	low := []float64{98, 99, 100}
	close := []float64{100, 101, 102}
	atr := CalculateATR(high, low, close, 14)
	require.NotNil(t, atr)
	assert.Greater(t, *atr, 0.0)
}

func TestCalculateATRWildersSmoothing(t *testing.T) {
	n := 30
	high := make([]float64, n)
	low := make([]float64, n)
	close := make([]float64, n)
	for i := 0; i < n; i++ {
		close[i] = 100
		high[i] = 102
		low[i] = 98
	}
	atr := CalculateATR(high, low, close, 14)
	require.NotNil(t, atr)
	assert.InDelta(t, 4.0, *atr, 1e-6)
}

func TestCalculatePositionSizeRiskCapped(t *testing.T) {
	// Small risk budget relative to the notional cap: risk sizing binds.
	qty := CalculatePositionSize(100000, 0.001, 50, 49, 0, 1.5, 0.10)
	assert.InDelta(t, 100.0, qty, 1e-9) // riskBudget=100 / stopDistance=1
}

func TestCalculatePositionSizeNotionalCapped(t *testing.T) {
	// Risk sizing would allow more shares than the max-notional cap permits.
	qty := CalculatePositionSize(100000, 0.01, 50, 49, 0, 1.5, 0.10)
	assert.InDelta(t, 200.0, qty, 1e-9) // maxNotional=10000 / price=50
}

func TestCalculatePositionSizeUsesATRFloor(t *testing.T) {
	// stop distance of 1 but ATR 5 * multiplier 1.5 = 7.5 should widen the floor.
	qty := CalculatePositionSize(100000, 0.01, 50, 49, 5, 1.5, 0.10)
	assert.InDelta(t, 1000.0/7.5, qty, 1e-9)
}

func TestCalculatePositionSizeZeroCapital(t *testing.T) {
	assert.Equal(t, 0.0, CalculatePositionSize(0, 0.01, 50, 49, 0, 1.5, 0.10))
}
