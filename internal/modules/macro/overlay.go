// Package macro computes the cross-cutting macro risk overlay applied to
// every agent's target weights in a single pipeline run.
package macro

import (
	"math"
	"time"

	"github.com/SalomePA9/AgentFund-sub000/internal/domain"
)

// Config holds the overlay's tunable knobs, sourced from environment
// configuration.
type Config struct {
	Enabled         bool
	MinSignals      int
	MinScale        float64
	MaxScale        float64
}

// DefaultConfig matches the documented defaults: min_signals=2,
// min_scale=0.25, max_scale=1.25.
var DefaultConfig = Config{Enabled: true, MinSignals: 2, MinScale: 0.25, MaxScale: 1.25}

var baseWeights = map[string]float64{
	"credit_spread":   0.30,
	"vol_regime":      0.30,
	"yield_curve":     0.20,
	"seasonality":     0.10,
	"insider_breadth": 0.10,
}

// Overlay computes the risk-scaling overlay from a MacroSnapshot.
type Overlay struct {
	cfg Config
}

// NewOverlay constructs an Overlay with the given config.
func NewOverlay(cfg Config) *Overlay {
	return &Overlay{cfg: cfg}
}

// Compute derives the OverlayResult from the five macro signals.
func (o *Overlay) Compute(snapshot domain.MacroSnapshot) domain.OverlayResult {
	if !o.cfg.Enabled {
		return domain.OverlayResult{ScaleFactor: 1.0, Regime: domain.RegimeNormal, ComputedAt: time.Now()}
	}

	available := map[string]float64{}
	if snapshot.CreditSpreadAvail {
		available["credit_spread"] = snapshot.CreditSpread
	}
	if snapshot.VolRegimeAvail {
		available["vol_regime"] = snapshot.VolRegime
	}
	if snapshot.YieldCurveAvail {
		available["yield_curve"] = snapshot.YieldCurve
	}
	if snapshot.SeasonalityAvail {
		available["seasonality"] = snapshot.Seasonality
	}
	if snapshot.InsiderBreadthAvail {
		available["insider_breadth"] = snapshot.InsiderBreadth
	}

	if len(available) < o.cfg.MinSignals {
		return domain.OverlayResult{
			ScaleFactor: 1.0,
			Regime:      domain.RegimeInsufficient,
			ComputedAt:  time.Now(),
		}
	}

	weights := renormalizeAndCap(available, baseWeights)

	composite := 0.0
	contributions := make(map[string]float64, len(available))
	for signal, value := range available {
		contribution := value * weights[signal]
		contributions[signal] = contribution
		composite += contribution
	}
	if math.IsNaN(composite) || math.IsInf(composite, 0) {
		return domain.OverlayResult{ScaleFactor: 1.0, Regime: domain.RegimeNormal, ComputedAt: time.Now()}
	}

	scale := compositeToScale(composite, o.cfg.MinScale, o.cfg.MaxScale)
	regime := regimeFor(composite)
	warnings := warningsFor(available, composite)

	return domain.OverlayResult{
		ScaleFactor:   scale,
		Composite:     composite,
		Regime:        regime,
		Contributions: contributions,
		Warnings:      warnings,
		ComputedAt:    time.Now(),
	}
}

// renormalizeAndCap renormalizes base weights across the available signals,
// then caps any weight at 0.50 and redistributes the excess to uncapped
// signals across up to 5 iterations.
func renormalizeAndCap(available map[string]float64, base map[string]float64) map[string]float64 {
	weights := make(map[string]float64, len(available))
	sum := 0.0
	for signal := range available {
		weights[signal] = base[signal]
		sum += base[signal]
	}
	if sum == 0 {
		return weights
	}
	for signal := range weights {
		weights[signal] /= sum
	}

	const cap = 0.50
	for iter := 0; iter < 5; iter++ {
		excess := 0.0
		uncapped := []string{}
		for signal, w := range weights {
			if w > cap {
				excess += w - cap
				weights[signal] = cap
			} else {
				uncapped = append(uncapped, signal)
			}
		}
		if excess == 0 || len(uncapped) == 0 {
			break
		}
		uncappedSum := 0.0
		for _, s := range uncapped {
			uncappedSum += weights[s]
		}
		if uncappedSum == 0 {
			break
		}
		for _, s := range uncapped {
			weights[s] += excess * (weights[s] / uncappedSum)
		}
	}
	return weights
}

func compositeToScale(composite, minScale, maxScale float64) float64 {
	if composite <= 0 {
		return 1 + (composite/100)*(1-minScale)
	}
	return 1 + (composite/100)*(maxScale-1)
}

func regimeFor(composite float64) domain.Regime {
	switch {
	case composite < -40:
		return domain.RegimeHighRisk
	case composite < -15:
		return domain.RegimeElevatedRisk
	case composite > 30:
		return domain.RegimeLowRisk
	default:
		return domain.RegimeNormal
	}
}

func warningsFor(available map[string]float64, composite float64) []string {
	var warnings []string
	if v, ok := available["credit_spread"]; ok && v < -50 {
		warnings = append(warnings, "credit spread signal deeply negative")
	}
	if v, ok := available["vol_regime"]; ok && v < -50 {
		warnings = append(warnings, "volatility regime signal deeply negative")
	}
	if v, ok := available["yield_curve"]; ok && v < -30 {
		warnings = append(warnings, "yield curve signal negative")
	}
	switch {
	case composite < -60:
		warnings = append(warnings, "composite macro risk severely negative")
	case composite < -30:
		warnings = append(warnings, "composite macro risk negative")
	case composite > 40:
		warnings = append(warnings, "composite macro risk strongly positive")
	}
	return warnings
}
