package sentiment

import (
	"math"

	"github.com/SalomePA9/AgentFund-sub000/pkg/formulas"
)

// TemporalAnalyzer enriches a per-symbol combined-sentiment time series with
// streak, trend slope, persistence, and breakout diagnostics ahead of
// integration.
type TemporalAnalyzer struct{}

// NewTemporalAnalyzer constructs a TemporalAnalyzer.
func NewTemporalAnalyzer() *TemporalAnalyzer {
	return &TemporalAnalyzer{}
}

// TemporalEnrichment is the diagnostic bundle computed from a combined
// sentiment history.
type TemporalEnrichment struct {
	Streak      int
	TrendSlope  float64
	Persistence float64
	Breakout    bool
}

// Enrich derives streak/slope/persistence/breakout from combined sentiment
// history ordered oldest-first.
func (t *TemporalAnalyzer) Enrich(combinedHistory []float64) TemporalEnrichment {
	if len(combinedHistory) == 0 {
		return TemporalEnrichment{}
	}

	return TemporalEnrichment{
		Streak:      streak(combinedHistory),
		TrendSlope:  leastSquaresSlope(combinedHistory),
		Persistence: persistence(combinedHistory),
		Breakout:    breakout(combinedHistory),
	}
}

// streak is the signed length of the trailing run with consistent sign.
func streak(history []float64) int {
	n := len(history)
	last := history[n-1]
	if last == 0 {
		return 0
	}
	sign := 1
	if last < 0 {
		sign = -1
	}

	count := 0
	for i := n - 1; i >= 0; i-- {
		v := history[i]
		if v == 0 {
			break
		}
		vSign := 1
		if v < 0 {
			vSign = -1
		}
		if vSign != sign {
			break
		}
		count++
	}
	return sign * count
}

// leastSquaresSlope fits a line to the series (x = index) and returns its
// slope.
func leastSquaresSlope(history []float64) float64 {
	n := len(history)
	if n < 2 {
		return 0
	}

	var sumX, sumY, sumXY, sumXX float64
	for i, y := range history {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	nf := float64(n)
	denom := nf*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}
	return (nf*sumXY - sumX*sumY) / denom
}

// persistence is 1/(1+(stdev/20)^1.5), high when the series is stable.
func persistence(history []float64) float64 {
	sd := formulas.StdDev(history)
	return 1 / (1 + math.Pow(sd/20, 1.5))
}

// breakout is true when the last-3-day average differs from the prior
// average by >=30 points and crosses zero.
func breakout(history []float64) bool {
	n := len(history)
	if n < 4 {
		return false
	}

	recentN := 3
	if recentN > n {
		recentN = n
	}
	recent := history[n-recentN:]
	prior := history[:n-recentN]
	if len(prior) == 0 {
		return false
	}

	recentAvg := formulas.Mean(recent)
	priorAvg := formulas.Mean(prior)

	diff := recentAvg - priorAvg
	crossesZero := (priorAvg <= 0 && recentAvg > 0) || (priorAvg >= 0 && recentAvg < 0)
	return math.Abs(diff) >= 30 && crossesZero
}
