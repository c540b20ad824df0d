package macro

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SalomePA9/AgentFund-sub000/internal/domain"
)

// TestComputeScenarioS6CapAndRedistribute reproduces the documented overlay
// scenario: seasonality=80 and credit_spread=-40 renormalize to .25/.75,
// cap-and-redistribute pushes both to .50, and the resulting composite of 20
// maps to a scale factor of 1.05.
func TestComputeScenarioS6CapAndRedistribute(t *testing.T) {
	overlay := NewOverlay(DefaultConfig)
	snapshot := domain.MacroSnapshot{
		Seasonality: 80, SeasonalityAvail: true,
		CreditSpread: -40, CreditSpreadAvail: true,
	}

	result := overlay.Compute(snapshot)

	assert.InDelta(t, 0.50, result.Contributions["credit_spread"]/(-40), 1e-9)
	assert.InDelta(t, 0.50, result.Contributions["seasonality"]/80, 1e-9)
	assert.InDelta(t, 20.0, result.Composite, 1e-9)
	assert.InDelta(t, 1.05, result.ScaleFactor, 1e-9)
	assert.Equal(t, domain.RegimeNormal, result.Regime)
}

func TestRenormalizeAndCapExactWeights(t *testing.T) {
	available := map[string]float64{"seasonality": 80, "credit_spread": -40}
	weights := renormalizeAndCap(available, baseWeights)
	assert.InDelta(t, 0.25, baseWeights["seasonality"]/(baseWeights["seasonality"]+baseWeights["credit_spread"]), 1e-9)
	assert.InDelta(t, 0.50, weights["credit_spread"], 1e-9)
	assert.InDelta(t, 0.50, weights["seasonality"], 1e-9)
}

func TestComputeInsufficientSignalsIsNeutral(t *testing.T) {
	overlay := NewOverlay(DefaultConfig)
	snapshot := domain.MacroSnapshot{Seasonality: 80, SeasonalityAvail: true}

	result := overlay.Compute(snapshot)
	assert.Equal(t, 1.0, result.ScaleFactor)
	assert.Equal(t, domain.RegimeInsufficient, result.Regime)
}

func TestComputeSingleSignalCappedAtHalf(t *testing.T) {
	overlay := NewOverlay(Config{Enabled: true, MinSignals: 1, MinScale: 0.25, MaxScale: 1.25})
	snapshot := domain.MacroSnapshot{Seasonality: 100, SeasonalityAvail: true}

	result := overlay.Compute(snapshot)
	assert.InDelta(t, 0.50, result.Contributions["seasonality"]/100, 1e-9)
}

func TestComputeDisabledReturnsNeutral(t *testing.T) {
	overlay := NewOverlay(Config{Enabled: false})
	result := overlay.Compute(domain.MacroSnapshot{Seasonality: 100, SeasonalityAvail: true})
	assert.Equal(t, 1.0, result.ScaleFactor)
	assert.Equal(t, domain.RegimeNormal, result.Regime)
}

func TestComputeScaleWithinConfiguredBounds(t *testing.T) {
	overlay := NewOverlay(DefaultConfig)
	extreme := domain.MacroSnapshot{
		CreditSpread: -100, CreditSpreadAvail: true,
		VolRegime: -100, VolRegimeAvail: true,
		YieldCurve: -100, YieldCurveAvail: true,
	}
	result := overlay.Compute(extreme)
	assert.GreaterOrEqual(t, result.ScaleFactor, DefaultConfig.MinScale)
	assert.LessOrEqual(t, result.ScaleFactor, DefaultConfig.MaxScale)
	assert.Equal(t, domain.RegimeHighRisk, result.Regime)
}

func TestRegimeForThresholds(t *testing.T) {
	assert.Equal(t, domain.RegimeHighRisk, regimeFor(-41))
	assert.Equal(t, domain.RegimeElevatedRisk, regimeFor(-20))
	assert.Equal(t, domain.RegimeNormal, regimeFor(0))
	assert.Equal(t, domain.RegimeLowRisk, regimeFor(31))
}

func TestComputeDeterministic(t *testing.T) {
	overlay := NewOverlay(DefaultConfig)
	snapshot := domain.MacroSnapshot{
		CreditSpread: -25, CreditSpreadAvail: true,
		VolRegime: 10, VolRegimeAvail: true,
	}
	a := overlay.Compute(snapshot)
	b := overlay.Compute(snapshot)
	assert.Equal(t, a.ScaleFactor, b.ScaleFactor)
	assert.Equal(t, a.Regime, b.Regime)
	assert.Equal(t, a.Composite, b.Composite)
}

func TestWarningsForDeeplyNegativeSignals(t *testing.T) {
	warnings := warningsFor(map[string]float64{"credit_spread": -60}, -70)
	require.NotEmpty(t, warnings)
	assert.Contains(t, warnings, "credit spread signal deeply negative")
	assert.Contains(t, warnings, "composite macro risk severely negative")
}
