// Package strategy implements the per-agent Strategy Engine, the strategy
// framework (signals, strategies, presets, registry) and the ten-step
// safety-gated execution pipeline.
package strategy

import "github.com/SalomePA9/AgentFund-sub000/internal/domain"

// SentimentMode controls how a strategy implementation consults sentiment.
type SentimentMode string

const (
	SentimentDisabled      SentimentMode = "DISABLED"
	SentimentFilter        SentimentMode = "FILTER"
	SentimentAlpha         SentimentMode = "ALPHA"
	SentimentRiskAdjust    SentimentMode = "RISK_ADJUSTMENT"
	SentimentConfirmation  SentimentMode = "CONFIRMATION"
)

// StrategyKind names one of the five strategy implementations.
type StrategyKind string

const (
	KindTrendFollowing       StrategyKind = "trend_following"
	KindCrossSectionalFactor StrategyKind = "cross_sectional_factor"
	KindShortTermReversal    StrategyKind = "short_term_reversal"
	KindStatisticalArbitrage StrategyKind = "statistical_arbitrage"
	KindVolatilityPremium    StrategyKind = "volatility_premium"
)

// FactorWeights is the six-key (five factors + sentiment) weight map a
// preset assigns, consumed by the factor calculator and the integrator.
type FactorWeights map[string]float64

// Preset binds a user-facing strategy-type label to a strategy
// implementation, a default sentiment mode, and default factor weights.
type Preset struct {
	Strategy      StrategyKind
	SentimentMode SentimentMode
	FactorWeights FactorWeights // nil for non-cross-sectional strategies
}

// Presets is the eight-entry preset table from the strategy framework.
var Presets = map[domain.StrategyType]Preset{
	domain.StrategyMomentum: {
		Strategy: KindCrossSectionalFactor, SentimentMode: SentimentFilter,
		FactorWeights: FactorWeights{"momentum": .55, "value": .00, "quality": .10, "dividend": .00, "volatility": .10, "sentiment": .25},
	},
	domain.StrategyQualityValue: {
		Strategy: KindCrossSectionalFactor, SentimentMode: SentimentConfirmation,
		FactorWeights: FactorWeights{"momentum": .00, "value": .30, "quality": .30, "dividend": .05, "volatility": .10, "sentiment": .25},
	},
	domain.StrategyQualityMomentum: {
		Strategy: KindCrossSectionalFactor, SentimentMode: SentimentAlpha,
		FactorWeights: FactorWeights{"momentum": .30, "value": .00, "quality": .25, "dividend": .00, "volatility": .10, "sentiment": .35},
	},
	domain.StrategyDividendGrowth: {
		Strategy: KindCrossSectionalFactor, SentimentMode: SentimentFilter,
		FactorWeights: FactorWeights{"momentum": .00, "value": .15, "quality": .25, "dividend": .25, "volatility": .15, "sentiment": .20},
	},
	domain.StrategyTrendFollowing: {
		Strategy: KindTrendFollowing, SentimentMode: SentimentRiskAdjust,
	},
	domain.StrategyShortTermReversal: {
		Strategy: KindShortTermReversal, SentimentMode: SentimentConfirmation,
	},
	domain.StrategyStatisticalArbitrage: {
		Strategy: KindStatisticalArbitrage, SentimentMode: SentimentAlpha,
	},
	domain.StrategyVolatilityPremium: {
		Strategy: KindVolatilityPremium, SentimentMode: SentimentFilter,
	},
}

// ResolvedConfig is the output of mapping an agent's strategy-type label
// through Presets, with agent-specific overrides applied.
type ResolvedConfig struct {
	Strategy       StrategyKind
	SentimentMode  SentimentMode
	FactorWeights  FactorWeights
	MaxPositions   int
	ExcludeTickers []string
	SentimentWeight float64
}

// defaultSentimentWeight is used when neither the agent nor the preset
// specifies a sentiment sub-weight override.
const defaultSentimentWeight = 0.25

// Resolve maps an agent's strategy-type label and params through the preset
// table, honoring the agent's sentiment-weight override when present.
func Resolve(agent domain.Agent) (ResolvedConfig, bool) {
	preset, ok := Presets[agent.StrategyType]
	if !ok {
		return ResolvedConfig{}, false
	}

	sentimentWeight := defaultSentimentWeight
	if preset.FactorWeights != nil {
		sentimentWeight = preset.FactorWeights["sentiment"]
	}
	if agent.StrategyParams.SentimentWeight != nil {
		sentimentWeight = *agent.StrategyParams.SentimentWeight
	}

	maxPositions := agent.StrategyParams.MaxPositions
	if maxPositions <= 0 {
		maxPositions = 20
	}

	return ResolvedConfig{
		Strategy:        preset.Strategy,
		SentimentMode:   preset.SentimentMode,
		FactorWeights:   preset.FactorWeights,
		MaxPositions:    maxPositions,
		ExcludeTickers:  agent.StrategyParams.ExcludeTickers,
		SentimentWeight: sentimentWeight,
	}, true
}
