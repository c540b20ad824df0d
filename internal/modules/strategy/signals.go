package strategy

import (
	"math"

	"github.com/SalomePA9/AgentFund-sub000/internal/domain"
	"github.com/SalomePA9/AgentFund-sub000/pkg/formulas"
)

// SignalType names a signal generator family.
type SignalType string

const (
	SignalTimeSeriesMomentum  SignalType = "time_series_momentum"
	SignalCrossSectionalMom   SignalType = "cross_sectional_momentum"
	SignalValue               SignalType = "value"
	SignalQuality             SignalType = "quality"
	SignalDividendYield       SignalType = "dividend_yield"
	SignalNewsSentiment       SignalType = "news_sentiment"
	SignalSocialSentiment     SignalType = "social_sentiment"
	SignalSentimentVelocity   SignalType = "sentiment_velocity"
	SignalRealizedVolatility  SignalType = "realized_volatility"
	SignalShortTermReversal   SignalType = "short_term_reversal"
	SignalZScore              SignalType = "z_score"
)

// Signal is a single generator's output for one symbol: a value in
// [-100, +100] and its declared type.
type Signal struct {
	Type  SignalType
	Value float64
}

// Generator produces a Signal for a symbol given its stock record.
type Generator interface {
	Generate(stock domain.Stock) Signal
}

// TimeSeriesMomentumGenerator emits a signal derived from the stock's own
// factor-momentum percentile re-centered to [-100, 100].
type TimeSeriesMomentumGenerator struct{}

func (TimeSeriesMomentumGenerator) Generate(s domain.Stock) Signal {
	return Signal{Type: SignalTimeSeriesMomentum, Value: centerPercentile(s.Factors.Momentum)}
}

// CrossSectionalMomentumGenerator emits the same percentile but is meant to
// be compared across the universe by the caller, not per-symbol in
// isolation.
type CrossSectionalMomentumGenerator struct{}

func (CrossSectionalMomentumGenerator) Generate(s domain.Stock) Signal {
	return Signal{Type: SignalCrossSectionalMom, Value: centerPercentile(s.Factors.Momentum)}
}

// ValueGenerator re-centers the value factor percentile.
type ValueGenerator struct{}

func (ValueGenerator) Generate(s domain.Stock) Signal {
	return Signal{Type: SignalValue, Value: centerPercentile(s.Factors.Value)}
}

// QualityGenerator re-centers the quality factor percentile.
type QualityGenerator struct{}

func (QualityGenerator) Generate(s domain.Stock) Signal {
	return Signal{Type: SignalQuality, Value: centerPercentile(s.Factors.Quality)}
}

// DividendYieldGenerator re-centers the dividend factor percentile.
type DividendYieldGenerator struct{}

func (DividendYieldGenerator) Generate(s domain.Stock) Signal {
	return Signal{Type: SignalDividendYield, Value: centerPercentile(s.Factors.Dividend)}
}

// NewsSentimentGenerator passes through the news sentiment score.
type NewsSentimentGenerator struct{}

func (NewsSentimentGenerator) Generate(s domain.Stock) Signal {
	return Signal{Type: SignalNewsSentiment, Value: s.Sentiment.News}
}

// SocialSentimentGenerator passes through the social sentiment score.
type SocialSentimentGenerator struct{}

func (SocialSentimentGenerator) Generate(s domain.Stock) Signal {
	return Signal{Type: SignalSocialSentiment, Value: s.Sentiment.Social}
}

// SentimentVelocityGenerator scales velocity (daily point change) into the
// signal range.
type SentimentVelocityGenerator struct{}

func (SentimentVelocityGenerator) Generate(s domain.Stock) Signal {
	return Signal{Type: SignalSentimentVelocity, Value: clampSignal(s.Sentiment.Velocity * 10)}
}

// RealizedVolatilityGenerator emits the volatility factor percentile
// re-centered around zero. The factor is already inverted, so lower realized
// vol gives a higher signal.
type RealizedVolatilityGenerator struct{}

func (RealizedVolatilityGenerator) Generate(s domain.Stock) Signal {
	return Signal{Type: SignalRealizedVolatility, Value: centerPercentile(s.Factors.Volatility)}
}

// ShortTermReversalGenerator emits a z-score-like short-horizon mean
// reversion signal from the last five closes: negative recent return implies
// a positive (buy) reversal signal. The raw price-based signal is damped
// when the 14-day RSI doesn't confirm the reversal (oversold for a buy,
// overbought for a sell), since a reversal entering against RSI is more
// likely a continuation.
type ShortTermReversalGenerator struct{}

func (ShortTermReversalGenerator) Generate(s domain.Stock) Signal {
	n := len(s.Closes)
	if n < 6 {
		return Signal{Type: SignalShortTermReversal, Value: 0}
	}
	recent := (s.Closes[n-1] - s.Closes[n-6]) / s.Closes[n-6]
	value := clampSignal(-recent * 500)

	if rsi := formulas.CalculateRSI(s.Closes, 14); rsi != nil {
		confirmed := (value > 0 && *rsi <= 35) || (value < 0 && *rsi >= 65)
		if !confirmed {
			value *= 0.5
		}
	}
	return Signal{Type: SignalShortTermReversal, Value: value}
}

// ZScoreGenerator emits a standardized deviation of price from its trailing
// mean, in the signal range.
type ZScoreGenerator struct{ Window int }

func (g ZScoreGenerator) Generate(s domain.Stock) Signal {
	window := g.Window
	if window <= 0 {
		window = 20
	}
	n := len(s.Closes)
	if n < window {
		return Signal{Type: SignalZScore, Value: 0}
	}
	slice := s.Closes[n-window:]
	mean := formulas.Mean(slice)
	sd := formulas.StdDev(slice)
	if sd == 0 {
		return Signal{Type: SignalZScore, Value: 0}
	}
	z := (s.Price - mean) / sd
	return Signal{Type: SignalZScore, Value: clampSignal(z * 33)}
}

func centerPercentile(p float64) float64 {
	return (p - 50) * 2
}

func clampSignal(v float64) float64 {
	if v < -100 {
		return -100
	}
	if v > 100 {
		return 100
	}
	return v
}

// SignalCombiner blends weighted signals and a sentiment-integration mode
// into a single blended score per symbol.
type SignalCombiner struct {
	Weights map[SignalType]float64
	Mode    SentimentMode
}

// Combine blends the supplied signals per the combiner's weights, then
// applies the sentiment mode against a separately supplied sentiment signal.
func (c SignalCombiner) Combine(signals []Signal, sentimentScore float64) float64 {
	var weighted, weightSum float64
	for _, sig := range signals {
		w, ok := c.Weights[sig.Type]
		if !ok {
			continue
		}
		weighted += sig.Value * w
		weightSum += w
	}
	base := 0.0
	if weightSum > 0 {
		base = weighted / weightSum
	}

	switch c.Mode {
	case SentimentDisabled:
		return base
	case SentimentFilter:
		if sentimentScore < -30 {
			return 0
		}
		return base
	case SentimentAlpha:
		return clampSignal(base + sentimentScore*0.3)
	case SentimentRiskAdjust:
		scale := 1 - 0.3*math.Max(0, -sentimentScore/100)
		return base * scale
	case SentimentConfirmation:
		if (base > 0 && sentimentScore < 0) || (base < 0 && sentimentScore > 0) {
			return base * 0.5
		}
		return base
	default:
		return base
	}
}
