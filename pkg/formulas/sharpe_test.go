package formulas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateSharpeRatio(t *testing.T) {
	returns := []float64{0.01, 0.02, -0.01, 0.015, 0.005}
	sharpe := CalculateSharpeRatio(returns, 0.02, 252)
	require.NotNil(t, sharpe)
}

func TestCalculateSharpeRatioZeroStdDev(t *testing.T) {
	returns := []float64{0.01, 0.01, 0.01}
	assert.Nil(t, CalculateSharpeRatio(returns, 0.02, 252))
}

func TestCalculateSharpeRatioInsufficientData(t *testing.T) {
	assert.Nil(t, CalculateSharpeRatio([]float64{0.01}, 0.02, 252))
}

func TestCalculateSharpeFromPrices(t *testing.T) {
	prices := []float64{100, 102, 101, 104, 103, 106}
	sharpe := CalculateSharpeFromPrices(prices, 0.04)
	require.NotNil(t, sharpe)
}

func TestCalculateSortinoRatioNoDownside(t *testing.T) {
	returns := []float64{0.01, 0.02, 0.03}
	assert.Nil(t, CalculateSortinoRatio(returns, 0.02, 0, 252))
}

func TestCalculateSortinoRatioWithDownside(t *testing.T) {
	returns := []float64{0.01, -0.02, 0.03, -0.01, 0.02}
	sortino := CalculateSortinoRatio(returns, 0.02, 0, 252)
	require.NotNil(t, sortino)
}
