// Package factors computes the five percentile-ranked factor scores (and
// their weighted composite) consumed by the strategy engine and the
// sentiment integrator.
package factors

import (
	"math"

	"github.com/SalomePA9/AgentFund-sub000/internal/domain"
	"github.com/SalomePA9/AgentFund-sub000/pkg/formulas"
)

// DefaultWeights is the fallback five-key weight map used when a caller
// passes nil or an incomplete weight map; it sums to 1.
var DefaultWeights = map[string]float64{
	"momentum":   0.30,
	"value":      0.20,
	"quality":    0.25,
	"dividend":   0.10,
	"volatility": 0.15,
}

// Calculator turns a stock universe into per-symbol FactorScores.
type Calculator struct{}

// NewCalculator constructs a Calculator. It holds no state; every call is
// pure given its inputs.
func NewCalculator() *Calculator {
	return &Calculator{}
}

// Calculate computes FactorScores for every symbol in stocks. sectorMap is
// optional (nil disables sector-aware value percentiles); weights is
// optional (nil uses DefaultWeights); any supplied weights are renormalized
// to sum to 1, with unrecognized keys ignored.
func (c *Calculator) Calculate(stocks map[string]domain.Stock, sectorMap map[string]string, weights map[string]float64) map[string]domain.FactorScores {
	w := normalizeWeights(weights)

	momentumRaw := make(map[string]float64)
	peRaw := make(map[string]float64)
	pbRaw := make(map[string]float64)
	qualityRaw := make(map[string]float64)
	dividendRaw := make(map[string]float64)
	volatilityRaw := make(map[string]float64)

	for symbol, stock := range stocks {
		if m, ok := momentumRawFor(stock); ok {
			momentumRaw[symbol] = m
		}
		if pe, ok := peRawFor(stock); ok {
			peRaw[symbol] = pe
		}
		if pb, ok := pbRawFor(stock); ok {
			pbRaw[symbol] = pb
		}
		if q, ok := qualityRawComponents(stock); ok {
			qualityRaw[symbol] = q
		}
		dividendRaw[symbol] = dividendRawFor(stock)
		volatilityRaw[symbol] = volatilityRawFor(stock)
	}

	momentumPct := formulas.PercentileRank(momentumRaw)
	// Value: each of P/E and P/B is percentile-ranked across the universe on
	// its own, then inverted (cheaper = higher percentile) before blending —
	// blending the raw dollar-scale metrics first would let the one with
	// wider spread dominate, and skipping the inversion would score expensive
	// stocks as high-value.
	pePct := invertAll(percentileMaybeBySector(peRaw, sectorMap, stocks))
	pbPct := invertAll(percentileMaybeBySector(pbRaw, sectorMap, stocks))
	valuePct := blendValuePercentiles(pePct, pbPct)
	qualityPct := formulas.PercentileRank(qualityRaw)
	dividendPct := formulas.PercentileRank(dividendRaw)
	volatilityPct := invertAll(formulas.PercentileRank(volatilityRaw))

	out := make(map[string]domain.FactorScores, len(stocks))
	for symbol := range stocks {
		scores := domain.FactorScores{
			Momentum:   percentileOr50(momentumPct, symbol),
			Value:      percentileOr50(valuePct, symbol),
			Quality:    percentileOr50(qualityPct, symbol),
			Dividend:   percentileOr50(dividendPct, symbol),
			Volatility: percentileOr50(volatilityPct, symbol),
		}
		scores.Composite = scores.Momentum*w["momentum"] + scores.Value*w["value"] +
			scores.Quality*w["quality"] + scores.Dividend*w["dividend"] + scores.Volatility*w["volatility"]
		out[symbol] = scores
	}
	return out
}

func percentileOr50(pct map[string]float64, symbol string) float64 {
	if v, ok := pct[symbol]; ok {
		return v
	}
	return 50
}

func invertAll(pct map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(pct))
	for k, v := range pct {
		out[k] = formulas.InvertPercentile(v)
	}
	return out
}

func normalizeWeights(weights map[string]float64) map[string]float64 {
	keys := []string{"momentum", "value", "quality", "dividend", "volatility"}
	if weights == nil {
		return DefaultWeights
	}

	sum := 0.0
	filtered := make(map[string]float64, 5)
	for _, k := range keys {
		if v, ok := weights[k]; ok {
			filtered[k] = v
			sum += v
		}
	}
	if sum <= 0 {
		return DefaultWeights
	}
	for k := range filtered {
		filtered[k] /= sum
	}
	for _, k := range keys {
		if _, ok := filtered[k]; !ok {
			filtered[k] = 0
		}
	}
	return filtered
}

// momentumRawFor computes 0.4*(6mo return) + 0.3*(12mo-skip-1mo return) +
// 0.3*(MA-alignment score). Requires at least 126 daily closes.
func momentumRawFor(s domain.Stock) (float64, bool) {
	closes := s.Closes
	n := len(closes)
	if n < 126 {
		return 0, false
	}

	sixMonthReturn := totalReturn(closes, n-1, n-1-126)

	var twelveSkipOneReturn float64
	if n >= 252+21 {
		twelveSkipOneReturn = totalReturn(closes, n-1-21, n-1-252)
	} else {
		twelveSkipOneReturn = sixMonthReturn
	}

	alignment := maAlignmentScore(closes)

	return 0.4*sixMonthReturn + 0.3*twelveSkipOneReturn + 0.3*alignment, true
}

func totalReturn(closes []float64, to, from int) float64 {
	if from < 0 || to >= len(closes) || closes[from] == 0 {
		return 0
	}
	return (closes[to] - closes[from]) / closes[from]
}

// maAlignmentScore counts four ordered price/MA30/MA100/MA200 relations,
// contributing +0.25 when the pair is in ascending (bullish) order and -0.25
// otherwise, yielding a score in [-1, +1].
func maAlignmentScore(closes []float64) float64 {
	price := closes[len(closes)-1]
	ma30 := movingAverage(closes, 30)
	ma100 := movingAverage(closes, 100)
	ma200 := movingAverage(closes, 200)

	relations := []struct{ a, b float64 }{
		{price, ma30},
		{ma30, ma100},
		{ma100, ma200},
		{price, ma200},
	}

	score := 0.0
	for _, rel := range relations {
		if rel.a > rel.b {
			score += 0.25
		} else {
			score -= 0.25
		}
	}
	return score
}

func movingAverage(closes []float64, period int) float64 {
	n := len(closes)
	if n == 0 {
		return 0
	}
	if period > n {
		period = n
	}
	window := closes[n-period:]
	return formulas.Mean(window)
}

func peRawFor(s domain.Stock) (float64, bool) {
	pe := s.Fundamentals.PE
	if pe > 0 && pe < 200 {
		return pe, true
	}
	return 0, false
}

func pbRawFor(s domain.Stock) (float64, bool) {
	pb := s.Fundamentals.PB
	if pb > 0 && pb < 50 {
		return pb, true
	}
	return 0, false
}

// blendValuePercentiles combines the already-inverted P/E and P/B percentiles
// 0.5/0.5; a symbol missing one (out-of-range fundamental) falls back to the
// other alone.
func blendValuePercentiles(pe, pb map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(pe)+len(pb))
	for symbol, peV := range pe {
		if pbV, ok := pb[symbol]; ok {
			out[symbol] = 0.5*peV + 0.5*pbV
		} else {
			out[symbol] = peV
		}
	}
	for symbol, pbV := range pb {
		if _, ok := pe[symbol]; !ok {
			out[symbol] = pbV
		}
	}
	return out
}

func qualityRawComponents(s domain.Stock) (float64, bool) {
	f := s.Fundamentals
	roeOK := f.ROE > -0.5 && f.ROE < 1
	marginOK := f.ProfitMargin > -0.5 && f.ProfitMargin < 1
	deOK := f.DebtToEquity >= 0 && f.DebtToEquity < 10

	if !roeOK && !marginOK && !deOK {
		return 0, false
	}

	var weighted, weightSum float64
	if roeOK {
		weighted += 0.4 * f.ROE
		weightSum += 0.4
	}
	if marginOK {
		weighted += 0.3 * f.ProfitMargin
		weightSum += 0.3
	}
	if deOK {
		weighted += 0.3 * (-f.DebtToEquity) // inverted: lower debt/equity is better
		weightSum += 0.3
	}
	if weightSum == 0 {
		return 0, false
	}
	return weighted / weightSum, true
}

func dividendRawFor(s domain.Stock) float64 {
	if s.Fundamentals.DividendYield <= 0 {
		return 0
	}
	return 0.6*s.Fundamentals.DividendYield + 0.4*s.Fundamentals.DividendGrowth5Yr
}

// volatilityRawFor is ATR/price*100 with a fallback to 20-day annualized
// stdev of daily returns when there isn't enough OHLC data for ATR (this
// calculator only has closes, so it always uses the fallback path).
func volatilityRawFor(s domain.Stock) float64 {
	if s.Price <= 0 || len(s.Closes) < 21 {
		return 0
	}
	window := s.Closes[len(s.Closes)-21:]
	returns := formulas.CalculateReturns(window)
	vol := formulas.AnnualizedVolatility(returns)
	if math.IsNaN(vol) || math.IsInf(vol, 0) {
		return 0
	}
	return vol * 100
}

func percentileMaybeBySector(raw map[string]float64, sectorMap map[string]string, stocks map[string]domain.Stock) map[string]float64 {
	if sectorMap == nil {
		return formulas.PercentileRank(raw)
	}

	bySector := make(map[string]map[string]float64)
	for symbol, v := range raw {
		sector := sectorMap[symbol]
		if sector == "" {
			sector = stocks[symbol].Sector
		}
		if bySector[sector] == nil {
			bySector[sector] = make(map[string]float64)
		}
		bySector[sector][symbol] = v
	}

	out := make(map[string]float64, len(raw))
	for _, group := range bySector {
		for symbol, pct := range formulas.PercentileRank(group) {
			out[symbol] = pct
		}
	}
	return out
}
