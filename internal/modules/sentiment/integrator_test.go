package sentiment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SalomePA9/AgentFund-sub000/internal/domain"
)

var testBaseWeights = map[string]float64{
	"momentum": 0.30, "value": 0.20, "quality": 0.25, "dividend": 0.10, "volatility": 0.15, "sentiment": 0.0,
}

func TestIntegrateCompositeClampedToRange(t *testing.T) {
	integ := NewIntegrator()
	factors := map[string]domain.FactorScores{
		"AAPL": {Momentum: 95, Value: 90, Quality: 95, Dividend: 80, Volatility: 90, Composite: 92},
	}
	sentimentInputs := map[string]domain.SentimentInput{
		"AAPL": {News: 100, Social: 100, Combined: 100, Velocity: 10, Streak: 10, TrendSlope: 5, Persistence: 1, Breakout: true},
	}
	mc := map[string]MarketContext{"AAPL": {Price: 110, MA200: 100, Has: true}}

	out := integ.Integrate(factors, sentimentInputs, mc, testBaseWeights)
	require.Contains(t, out, "AAPL")
	assert.LessOrEqual(t, out["AAPL"].Composite, 100.0)
	assert.GreaterOrEqual(t, out["AAPL"].Composite, 0.0)
}

func TestIntegrateTiltedWeightsSumToOne(t *testing.T) {
	integ := NewIntegrator()
	factors := map[string]domain.FactorScores{"X": {Momentum: 50, Value: 50, Quality: 50, Dividend: 50, Volatility: 50}}
	sentimentInputs := map[string]domain.SentimentInput{"X": {Combined: 40}}

	out := integ.Integrate(factors, sentimentInputs, nil, testBaseWeights)
	sum := 0.0
	for _, v := range out["X"].TiltedWeights {
		sum += v
	}
	assert.InDelta(t, 1.0, sum, 1e-6)
}

func TestRegimeStrengthNeutralBelowThreshold(t *testing.T) {
	integ := NewIntegrator()
	inputs := map[string]domain.SentimentInput{"A": {Combined: 0.1}, "B": {Combined: -0.1}}
	assert.Equal(t, 0.0, integ.regimeStrength(inputs))
}

func TestRegimeStrengthEmptyInputs(t *testing.T) {
	integ := NewIntegrator()
	assert.Equal(t, 0.0, integ.regimeStrength(map[string]domain.SentimentInput{}))
}

func TestRegimeStrengthPositiveUsesRiskOnTilts(t *testing.T) {
	integ := NewIntegrator()
	inputs := map[string]domain.SentimentInput{
		"A": {Combined: 80}, "B": {Combined: 70}, "C": {Combined: 60},
	}
	strength := integ.regimeStrength(inputs)
	assert.Greater(t, strength, 0.0)

	tilted := integ.tiltedWeights(testBaseWeights, strength)
	// Risk-on tilts favor momentum over the base weight.
	assert.Greater(t, tilted["momentum"], testBaseWeights["momentum"])
}

func TestTiltedWeightsFallsBackToBaseWhenSumZero(t *testing.T) {
	integ := NewIntegrator()
	base := map[string]float64{"momentum": 0}
	out := integ.tiltedWeights(base, -1.0)
	assert.Equal(t, base, out)
}

func TestSentimentNormalized(t *testing.T) {
	assert.Equal(t, 0.0, sentimentNormalized(-100))
	assert.Equal(t, 100.0, sentimentNormalized(100))
	assert.Equal(t, 50.0, sentimentNormalized(0))
}

func TestConvergenceBonusSignAgreement(t *testing.T) {
	// Factor above 50 and positive sentiment reinforce each other (positive bonus).
	assert.Greater(t, convergenceBonus(80, 50), 0.0)
	// Factor below 50 and positive sentiment disagree (negative bonus).
	assert.Less(t, convergenceBonus(20, 50), 0.0)
}

func TestResonanceMultiplierSignsAndClamp(t *testing.T) {
	assert.InDelta(t, 1.2, resonanceMultiplier(80, 50), 1e-9)  // momentum>50, velocity clamped to 1
	assert.InDelta(t, 0.8, resonanceMultiplier(20, 50), 1e-9)  // momentum<50, velocity clamped to 1
	assert.InDelta(t, 1.0, resonanceMultiplier(50, 100), 1e-9) // momentum==50: no sign, no effect
}

func TestTriangulationConfidenceBothZero(t *testing.T) {
	assert.Equal(t, 0.75, triangulationConfidence(0, 0))
}

func TestTriangulationConfidenceSameSignCloseTogether(t *testing.T) {
	conf := triangulationConfidence(50, 55)
	assert.Greater(t, conf, 0.9)
}

func TestTriangulationConfidenceOppositeSigns(t *testing.T) {
	conf := triangulationConfidence(80, -80)
	assert.GreaterOrEqual(t, conf, 0.5)
	assert.Less(t, conf, 0.75)
}

func TestDispersionRiskBothZero(t *testing.T) {
	assert.Equal(t, 0.3, dispersionRisk(0, 0))
}

func TestDispersionRiskGrowsWithDisagreement(t *testing.T) {
	low := dispersionRisk(50, 55)
	high := dispersionRisk(80, -80)
	assert.Less(t, low, high)
}

func TestTemporalBonusClamped(t *testing.T) {
	bonus := temporalBonus(domain.SentimentInput{Streak: 1000, TrendSlope: 1000, Persistence: 1, Combined: 10, Breakout: true})
	assert.LessOrEqual(t, bonus, 10.0)
	assert.GreaterOrEqual(t, bonus, -10.0)
}

func TestTemporalBonusZeroStreakNoSlope(t *testing.T) {
	bonus := temporalBonus(domain.SentimentInput{Streak: 0, TrendSlope: 0, Persistence: 0})
	assert.Equal(t, 0.0, bonus)
}

func TestConfluenceBonusRequiresMarketContext(t *testing.T) {
	assert.Equal(t, 0.0, confluenceBonus(MarketContext{Has: false}, 5))
	assert.Equal(t, 0.0, confluenceBonus(MarketContext{Has: true, MA200: 0}, 5))
}

func TestConfluenceBonusAlignedAboveMA(t *testing.T) {
	bonus := confluenceBonus(MarketContext{Price: 110, MA200: 100, Has: true}, 5)
	assert.Greater(t, bonus, 0.0)
}

func TestConfluenceBonusMixedSignal(t *testing.T) {
	bonus := confluenceBonus(MarketContext{Price: 110, MA200: 100, Has: true}, -5)
	assert.Less(t, bonus, 0.0)
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0.0, clamp(-5, 0, 10))
	assert.Equal(t, 10.0, clamp(15, 0, 10))
	assert.Equal(t, 5.0, clamp(5, 0, 10))
}
