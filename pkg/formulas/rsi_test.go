package formulas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateRSIInsufficientData(t *testing.T) {
	assert.Nil(t, CalculateRSI([]float64{100, 101, 102}, 14))
}

func TestCalculateRSIRange(t *testing.T) {
	closes := make([]float64, 30)
	price := 100.0
	for i := range closes {
		if i%2 == 0 {
			price += 1
		} else {
			price -= 0.5
		}
		closes[i] = price
	}
	rsi := CalculateRSI(closes, 14)
	require.NotNil(t, rsi)
	assert.GreaterOrEqual(t, *rsi, 0.0)
	assert.LessOrEqual(t, *rsi, 100.0)
}

func TestCalculateRSIAllGains(t *testing.T) {
	closes := make([]float64, 20)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	rsi := CalculateRSI(closes, 14)
	require.NotNil(t, rsi)
	assert.InDelta(t, 100.0, *rsi, 1e-6)
}
