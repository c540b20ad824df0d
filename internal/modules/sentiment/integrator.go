// Package sentiment implements the seven-layer sentiment-factor integration
// pipeline and the temporal-enrichment stage that feeds it.
package sentiment

import (
	"math"

	"github.com/SalomePA9/AgentFund-sub000/internal/domain"
)

// RiskTilts describes the risk-on / risk-off weight tilt applied to base
// factor weights in Layer 0, keyed by factor name (momentum, value, quality,
// dividend, volatility, sentiment).
type RiskTilts map[string]float64

// DefaultRiskOnTilts favors momentum and sentiment in risk-on regimes.
var DefaultRiskOnTilts = RiskTilts{
	"momentum": 0.15, "value": -0.05, "quality": -0.05, "dividend": -0.05, "volatility": -0.05, "sentiment": 0.05,
}

// DefaultRiskOffTilts favors quality, dividend, and lower volatility in
// risk-off regimes.
var DefaultRiskOffTilts = RiskTilts{
	"momentum": -0.10, "value": 0.05, "quality": 0.10, "dividend": 0.10, "volatility": 0.05, "sentiment": -0.20,
}

// Integrator folds per-stock sentiment into factor scores via the
// seven-layer pipeline.
type Integrator struct {
	RiskOnTilts  RiskTilts
	RiskOffTilts RiskTilts
}

// NewIntegrator constructs an Integrator with the default risk tilts.
func NewIntegrator() *Integrator {
	return &Integrator{RiskOnTilts: DefaultRiskOnTilts, RiskOffTilts: DefaultRiskOffTilts}
}

// MarketContext is the optional per-stock price/MA200 pair used in Layer 7.
type MarketContext struct {
	Price float64
	MA200 float64
	Has   bool
}

// Integrate computes the integrated composite and diagnostics for every
// symbol in factorScores, given enriched sentiment and optional market
// context per symbol, and the base factor weights (agent/preset specific,
// six keys: momentum, value, quality, dividend, volatility, sentiment).
func (integ *Integrator) Integrate(
	factorScores map[string]domain.FactorScores,
	sentimentInputs map[string]domain.SentimentInput,
	marketContext map[string]MarketContext,
	baseWeights map[string]float64,
) map[string]domain.IntegratedScore {
	regimeStrength := integ.regimeStrength(sentimentInputs)
	tiltedWeights := integ.tiltedWeights(baseWeights, regimeStrength)

	out := make(map[string]domain.IntegratedScore, len(factorScores))
	for symbol, factors := range factorScores {
		sentimentInput := sentimentInputs[symbol]
		mc := marketContext[symbol]

		convergenceBonus := convergenceBonus(factors.Composite, sentimentInput.Combined)
		resonance := resonanceMultiplier(factors.Momentum, sentimentInput.Velocity)
		triangulation := triangulationConfidence(sentimentInput.News, sentimentInput.Social)
		dispersion := dispersionRisk(sentimentInput.News, sentimentInput.Social)
		temporalBonus := temporalBonus(sentimentInput)
		confluenceBonus := confluenceBonus(mc, sentimentInput.Streak)

		momentum := factors.Momentum * resonance

		weightedSum := momentum*tiltedWeights["momentum"] +
			factors.Value*tiltedWeights["value"] +
			factors.Quality*tiltedWeights["quality"] +
			factors.Dividend*tiltedWeights["dividend"] +
			factors.Volatility*tiltedWeights["volatility"] +
			sentimentNormalized(sentimentInput.Combined)*tiltedWeights["sentiment"]

		composite := weightedSum + convergenceBonus + temporalBonus + confluenceBonus
		composite = 50 + (composite-50)*triangulation*(1-0.3*dispersion)
		composite = clamp(composite, 0, 100)

		out[symbol] = domain.IntegratedScore{
			Momentum:            factors.Momentum,
			Value:               factors.Value,
			Quality:             factors.Quality,
			Dividend:            factors.Dividend,
			Volatility:          factors.Volatility,
			Sentiment:           sentimentNormalized(sentimentInput.Combined),
			ConvergenceBonus:    convergenceBonus,
			ResonanceMultiplier: resonance,
			TriangulationConf:   triangulation,
			DispersionRisk:      dispersion,
			TemporalBonus:       temporalBonus,
			ConfluenceBonus:     confluenceBonus,
			TiltedWeights:       tiltedWeights,
			Composite:           composite,
		}
	}
	return out
}

// sentimentNormalized maps a combined sentiment score in [-100, 100] to
// [0, 100] so it composes additively with the percentile factor scores.
func sentimentNormalized(combined float64) float64 {
	return clamp((combined+100)/2, 0, 100)
}

// regimeStrength aggregates combined sentiment mean and breadth across the
// universe into a signed continuous regime measure in [-1, +1].
func (integ *Integrator) regimeStrength(inputs map[string]domain.SentimentInput) float64 {
	if len(inputs) == 0 {
		return 0
	}

	var sum float64
	positive := 0
	for _, in := range inputs {
		sum += in.Combined
		if in.Combined > 0 {
			positive++
		}
	}
	agg := sum / float64(len(inputs))
	breadth := float64(positive) / float64(len(inputs))

	strength := 0.6*math.Tanh(agg/25) + 0.4*(2*breadth-1)
	strength = clamp(strength, -1, 1)
	if math.Abs(strength) < 0.05 {
		return 0
	}
	return strength
}

// tiltedWeights applies the regime tilt to base weights, clamping
// non-negative and renormalizing to sum 1.
func (integ *Integrator) tiltedWeights(base map[string]float64, regimeStrength float64) map[string]float64 {
	tilts := integ.RiskOffTilts
	if regimeStrength > 0 {
		tilts = integ.RiskOnTilts
	}
	magnitude := math.Abs(regimeStrength)

	out := make(map[string]float64, len(base))
	sum := 0.0
	for k, w := range base {
		tilted := w + tilts[k]*magnitude
		if tilted < 0 {
			tilted = 0
		}
		out[k] = tilted
		sum += tilted
	}
	if sum == 0 {
		return base
	}
	for k := range out {
		out[k] /= sum
	}
	return out
}

// convergenceBonus rewards factor and sentiment agreeing in direction.
func convergenceBonus(avgFactor, combined float64) float64 {
	return 15 * (avgFactor - 50) / 50 * combined / 100
}

// resonanceMultiplier amplifies momentum when velocity agrees in sign.
func resonanceMultiplier(momentum, velocity float64) float64 {
	sign := 0.0
	if momentum > 50 {
		sign = 1
	} else if momentum < 50 {
		sign = -1
	}
	return 1 + 0.2*sign*clamp(velocity/10, -1, 1)
}

// triangulationConfidence measures cross-source agreement between news and
// social sentiment.
func triangulationConfidence(news, social float64) float64 {
	if news == 0 && social == 0 {
		return 0.75
	}
	sameSign := (news >= 0 && social >= 0) || (news <= 0 && social <= 0)
	diff := math.Abs(news - social)
	if sameSign {
		return 1 - 0.3*diff/200
	}
	return math.Max(0.5, 0.7-0.4*diff/200)
}

// dispersionRisk measures disagreement between sentiment sources.
func dispersionRisk(news, social float64) float64 {
	if news == 0 && social == 0 {
		return 0.3
	}
	diff := math.Abs(news - social)
	return 1 - 1/(1+math.Pow(diff/60, 1.5))
}

func temporalBonus(s domain.SentimentInput) float64 {
	sign := 0.0
	if s.Streak > 0 {
		sign = 1
	} else if s.Streak < 0 {
		sign = -1
	}

	streakTerm := sign * math.Log(1+math.Abs(float64(s.Streak))) * 2 * (0.4 + 0.9*s.Persistence)
	slopeTerm := clamp(s.TrendSlope*0.5, -2, 2)

	breakoutBonus := 0.0
	if s.Breakout {
		if s.Combined >= 0 {
			breakoutBonus = 2
		} else {
			breakoutBonus = -2
		}
	}

	return clamp(streakTerm+slopeTerm+breakoutBonus, -10, 10)
}

func confluenceBonus(mc MarketContext, streak int) float64 {
	if !mc.Has || mc.MA200 == 0 {
		return 0
	}

	deviation := (mc.Price - mc.MA200) / mc.MA200
	above := mc.Price > mc.MA200
	below := mc.Price < mc.MA200

	if above && streak > 0 {
		return 12 * math.Min(1, math.Abs(float64(streak))/10) * math.Min(1, math.Abs(deviation)/0.10)
	}
	if below && streak < 0 {
		return -12 * math.Min(1, math.Abs(float64(streak))/10) * math.Min(1, math.Abs(deviation)/0.10)
	}
	// Mixed: price/trend direction disagrees with sentiment streak direction.
	if (above && streak < 0) || (below && streak > 0) {
		return -3 * math.Min(1, math.Abs(float64(streak))/10)
	}
	return 0
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
