package formulas

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMeanStdDevVariance(t *testing.T) {
	data := []float64{1, 2, 3, 4, 5}
	assert.InDelta(t, 3.0, Mean(data), 1e-9)
	assert.Greater(t, StdDev(data), 0.0)
	assert.Greater(t, Variance(data), 0.0)
}

func TestMeanEmpty(t *testing.T) {
	assert.Equal(t, 0.0, Mean(nil))
	assert.Equal(t, 0.0, StdDev(nil))
	assert.Equal(t, 0.0, Variance(nil))
}

func TestCalculateReturns(t *testing.T) {
	returns := CalculateReturns([]float64{100, 110, 99})
	assert.Len(t, returns, 2)
	assert.InDelta(t, 0.10, returns[0], 1e-9)
	assert.InDelta(t, -0.10, returns[1], 1e-9)
}

func TestCalculateReturnsInsufficientData(t *testing.T) {
	assert.Empty(t, CalculateReturns([]float64{100}))
}

func TestAnnualizedVolatility(t *testing.T) {
	vol := AnnualizedVolatility([]float64{0.01, -0.01, 0.02, -0.02})
	assert.Greater(t, vol, 0.0)
}

func TestCorrelationAndCovariance(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5}
	y := []float64{2, 4, 6, 8, 10}
	assert.InDelta(t, 1.0, Correlation(x, y), 1e-9)
	assert.Greater(t, Covariance(x, y), 0.0)
}

func TestCorrelationMismatchedLengths(t *testing.T) {
	assert.Equal(t, 0.0, Correlation([]float64{1, 2}, []float64{1}))
}
