package strategy

import (
	"sort"

	"github.com/SalomePA9/AgentFund-sub000/internal/domain"
	"github.com/SalomePA9/AgentFund-sub000/pkg/formulas"
)

// minPairCorrelation is the minimum trailing Pearson correlation a sector
// pair must show before the spread is considered a genuine co-movement
// break rather than two unrelated names drifting apart.
const minPairCorrelation = 0.5

// TargetPosition is one strategy implementation's recommendation for a
// symbol, before cash-constrained sizing and the macro overlay are applied.
type TargetPosition struct {
	Ticker         string
	Side           domain.PositionSide
	TargetWeight   float64
	SignalStrength float64
	StopLossPrice  float64
	TargetPrice    float64
	Reason         string
}

// ExecutionContext bundles what a strategy implementation needs: the
// per-agent market-data snapshot (with integrated_composite already injected
// where applicable), sentiment scores, and current holdings.
type ExecutionContext struct {
	Stocks          map[string]domain.Stock
	Sentiment       map[string]float64 // combined score per symbol, used by SignalCombiner
	CurrentPositions map[string]domain.Position
	Config          ResolvedConfig
	RiskParams      domain.RiskParams
}

// Strategy is one of the five implemented strategy families.
type Strategy interface {
	Execute(ctx ExecutionContext) []TargetPosition
}

// defaultStopPct and defaultTargetPct are the fallback stop-loss/take-profit
// distances (as a fraction of entry price) used when a strategy doesn't
// compute its own.
const defaultStopPct = 0.08
const defaultTargetPct = 0.16

func defaultStopTarget(price float64, side domain.PositionSide) (stop, target float64) {
	if side == domain.SideShort {
		return price * (1 + defaultStopPct), price * (1 - defaultTargetPct)
	}
	return price * (1 - defaultStopPct), price * (1 + defaultTargetPct)
}

// TrendFollowingStrategy trades per-symbol long/short time-series momentum,
// with weights scaled by inverse realized volatility.
type TrendFollowingStrategy struct{}

func (TrendFollowingStrategy) Execute(ctx ExecutionContext) []TargetPosition {
	gen := TimeSeriesMomentumGenerator{}
	combiner := SignalCombiner{Weights: map[SignalType]float64{SignalTimeSeriesMomentum: 1.0}, Mode: ctx.Config.SentimentMode}

	var out []TargetPosition
	for symbol, stock := range ctx.Stocks {
		if excluded(symbol, ctx.Config.ExcludeTickers) {
			continue
		}
		signal := gen.Generate(stock)
		score := combiner.Combine([]Signal{signal}, ctx.Sentiment[symbol])
		if score == 0 {
			continue
		}

		side := domain.SideLong
		if score < 0 {
			side = domain.SideShort
		}

		// Factors.Volatility is the inverted percentile (higher = calmer), so
		// the noisiest names get the smallest scale: less weight to high-vol names.
		volScale := 1 - (100-stock.Factors.Volatility)/200

		// A long momentum signal on a name already deep below its 52-week
		// high is more likely a dead-cat bounce than a trend continuation.
		if side == domain.SideLong {
			if dist := formulas.CalculateDistanceFrom52WeekHigh(stock.Closes); dist != nil && *dist > 0.30 {
				volScale *= 0.5
			}
		}

		weight := clamp01(abs(score)/100) * 0.10 * volScale
		stop, target := defaultStopTarget(stock.Price, side)

		out = append(out, TargetPosition{
			Ticker: symbol, Side: side, TargetWeight: weight, SignalStrength: abs(score),
			StopLossPrice: stop, TargetPrice: target, Reason: "trend following momentum signal",
		})
	}
	return rankAndCap(out, ctx.Config.MaxPositions)
}

// CrossSectionalFactorStrategy selects the top-N symbols by integrated
// composite (falling back to factor composite) and equal-weights them.
type CrossSectionalFactorStrategy struct{}

func (CrossSectionalFactorStrategy) Execute(ctx ExecutionContext) []TargetPosition {
	type ranked struct {
		symbol string
		score  float64
		stock  domain.Stock
	}
	var candidates []ranked
	for symbol, stock := range ctx.Stocks {
		if excluded(symbol, ctx.Config.ExcludeTickers) {
			continue
		}
		score := stock.IntegratedScore.Composite
		if score == 0 {
			score = stock.Factors.Composite
		}
		candidates = append(candidates, ranked{symbol: symbol, score: score, stock: stock})
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })

	maxPositions := ctx.Config.MaxPositions
	if maxPositions > len(candidates) {
		maxPositions = len(candidates)
	}
	top := candidates[:maxPositions]
	if len(top) == 0 {
		return nil
	}
	weight := 1.0 / float64(len(top))

	out := make([]TargetPosition, 0, len(top))
	for _, c := range top {
		stop, target := defaultStopTarget(c.stock.Price, domain.SideLong)
		out = append(out, TargetPosition{
			Ticker: c.symbol, Side: domain.SideLong, TargetWeight: weight,
			SignalStrength: clamp01(c.score/100) * 100, StopLossPrice: stop, TargetPrice: target,
			Reason: "cross-sectional factor rank",
		})
	}
	return out
}

// ShortTermReversalStrategy trades 1-5 day mean-reversion z-scores with
// tight stops.
type ShortTermReversalStrategy struct{}

func (ShortTermReversalStrategy) Execute(ctx ExecutionContext) []TargetPosition {
	gen := ShortTermReversalGenerator{}
	combiner := SignalCombiner{Weights: map[SignalType]float64{SignalShortTermReversal: 1.0}, Mode: ctx.Config.SentimentMode}

	var out []TargetPosition
	for symbol, stock := range ctx.Stocks {
		if excluded(symbol, ctx.Config.ExcludeTickers) {
			continue
		}
		signal := gen.Generate(stock)
		score := combiner.Combine([]Signal{signal}, ctx.Sentiment[symbol])
		if abs(score) < 40 {
			continue
		}

		side := domain.SideLong
		if score < 0 {
			side = domain.SideShort
		}
		weight := clamp01(abs(score)/100) * 0.05
		stop := stock.Price * 0.97
		target := stock.Price * 1.04
		if side == domain.SideShort {
			stop, target = stock.Price*1.03, stock.Price*0.96
		}

		out = append(out, TargetPosition{
			Ticker: symbol, Side: side, TargetWeight: weight, SignalStrength: abs(score),
			StopLossPrice: stop, TargetPrice: target, Reason: "short-term mean reversion signal",
		})
	}
	return rankAndCap(out, ctx.Config.MaxPositions)
}

// StatisticalArbitrageStrategy pairs symbols within the same sector on a
// z-scored spread and trades market-neutral dollar weights.
type StatisticalArbitrageStrategy struct{}

func (StatisticalArbitrageStrategy) Execute(ctx ExecutionContext) []TargetPosition {
	bySector := make(map[string][]string)
	for symbol, stock := range ctx.Stocks {
		if excluded(symbol, ctx.Config.ExcludeTickers) {
			continue
		}
		bySector[stock.Sector] = append(bySector[stock.Sector], symbol)
	}

	zGen := ZScoreGenerator{Window: 20}
	var out []TargetPosition
	for _, symbols := range bySector {
		if len(symbols) < 2 {
			continue
		}
		sort.Strings(symbols)
		for i := 0; i+1 < len(symbols); i += 2 {
			a, b := symbols[i], symbols[i+1]
			if corr := pairCorrelation(ctx.Stocks[a].Closes, ctx.Stocks[b].Closes); corr < minPairCorrelation {
				continue // not a genuine co-moving pair, the spread is just noise
			}
			zA := zGen.Generate(ctx.Stocks[a]).Value
			zB := zGen.Generate(ctx.Stocks[b]).Value
			spread := zA - zB
			if abs(spread) < 20 {
				continue
			}

			weight := clamp01(abs(spread)/100) * 0.04
			longSymbol, shortSymbol := a, b
			if spread > 0 {
				// a overextended relative to b: short a, long b.
				longSymbol, shortSymbol = b, a
			}
			longStop, longTarget := defaultStopTarget(ctx.Stocks[longSymbol].Price, domain.SideLong)
			shortStop, shortTarget := defaultStopTarget(ctx.Stocks[shortSymbol].Price, domain.SideShort)

			out = append(out,
				TargetPosition{Ticker: longSymbol, Side: domain.SideLong, TargetWeight: weight, SignalStrength: abs(spread), StopLossPrice: longStop, TargetPrice: longTarget, Reason: "statistical arbitrage pair (long leg)"},
				TargetPosition{Ticker: shortSymbol, Side: domain.SideShort, TargetWeight: weight, SignalStrength: abs(spread), StopLossPrice: shortStop, TargetPrice: shortTarget, Reason: "statistical arbitrage pair (short leg)"},
			)
		}
	}
	return rankAndCap(out, ctx.Config.MaxPositions)
}

// VolatilityPremiumStrategy systematically harvests a volatility premium
// proxy across low-volatility-factor names, gated off entirely when the
// FILTER sentiment mode detects a bearish regime (crisis gate).
type VolatilityPremiumStrategy struct{}

func (VolatilityPremiumStrategy) Execute(ctx ExecutionContext) []TargetPosition {
	aggSentiment := 0.0
	if len(ctx.Sentiment) > 0 {
		for _, v := range ctx.Sentiment {
			aggSentiment += v
		}
		aggSentiment /= float64(len(ctx.Sentiment))
	}
	if ctx.Config.SentimentMode == SentimentFilter && aggSentiment < -25 {
		return nil // crisis gate: hard stop on new vol-selling exposure
	}

	var out []TargetPosition
	for symbol, stock := range ctx.Stocks {
		if excluded(symbol, ctx.Config.ExcludeTickers) {
			continue
		}
		if stock.Factors.Volatility < 60 {
			continue // only sell premium on names scoring well on (inverted) low volatility
		}
		// Halve the weight when current volatility sits below the name's own
		// historical level (realized vol stands in for implied vol here).
		volRatioScale := 1.0
		if ratio := formulas.CalculateVolatilityRatio(stock.Closes); ratio != nil && *ratio < 1.0 {
			volRatioScale = 0.5
		}
		weight := clamp01(stock.Factors.Volatility/100) * 0.06 * volRatioScale
		stop, target := defaultStopTarget(stock.Price, domain.SideLong)
		out = append(out, TargetPosition{
			Ticker: symbol, Side: domain.SideLong, TargetWeight: weight, SignalStrength: stock.Factors.Volatility,
			StopLossPrice: stop, TargetPrice: target, Reason: "volatility premium harvesting",
		})
	}
	return rankAndCap(out, ctx.Config.MaxPositions)
}

// pairCorrelation returns the trailing Pearson correlation between two
// symbols' close series over their shared window, or 0 when either history
// is too short to compare.
func pairCorrelation(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if n < 20 {
		return 0
	}
	return formulas.Correlation(a[len(a)-n:], b[len(b)-n:])
}

func rankAndCap(positions []TargetPosition, maxPositions int) []TargetPosition {
	sort.Slice(positions, func(i, j int) bool { return positions[i].SignalStrength > positions[j].SignalStrength })
	if maxPositions > 0 && len(positions) > maxPositions {
		positions = positions[:maxPositions]
	}
	return positions
}

func excluded(symbol string, excludeList []string) bool {
	for _, e := range excludeList {
		if e == symbol {
			return true
		}
	}
	return false
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// Registry resolves a StrategyKind to its Strategy implementation.
var Registry = map[StrategyKind]Strategy{
	KindTrendFollowing:       TrendFollowingStrategy{},
	KindCrossSectionalFactor: CrossSectionalFactorStrategy{},
	KindShortTermReversal:    ShortTermReversalStrategy{},
	KindStatisticalArbitrage: StatisticalArbitrageStrategy{},
	KindVolatilityPremium:    VolatilityPremiumStrategy{},
}
