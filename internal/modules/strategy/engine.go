package strategy

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/SalomePA9/AgentFund-sub000/internal/domain"
	"github.com/SalomePA9/AgentFund-sub000/internal/modules/factors"
	"github.com/SalomePA9/AgentFund-sub000/internal/modules/sentiment"
	"github.com/SalomePA9/AgentFund-sub000/internal/store"
)

// minRebalanceIntervals gives the minimum gap between rebalances implied by
// each RebalanceFrequency, used by the Step 0b gate. Intraday has no base
// interval of its own (an explicit min_interval_hours override supplies one);
// a zero entry here is what lets "intraday, min_interval_hours=0" never skip.
var minRebalanceIntervals = map[domain.RebalanceFrequency]time.Duration{
	domain.RebalanceIntraday: 0,
	domain.RebalanceDaily:    24 * time.Hour,
	domain.RebalanceWeekly:   168 * time.Hour,
	domain.RebalanceMonthly:  672 * time.Hour,
}

// maxPositionDrift bounds the fractional notional drift from target weight
// a position can carry before the diff pass emits an increase/decrease
// action instead of treating it as held.
const maxPositionDrift = 0.01

// defaultMaxDrawdownLimit is used when an agent's risk params don't specify
// one.
const defaultMaxDrawdownLimit = 0.20

// Engine runs the ten-step per-agent strategy pipeline: circuit breaker,
// rebalance-frequency gate, config resolution, data assembly (factor scoring,
// sentiment temporal enrichment and integration), strategy execution,
// cash-constrained sizing, macro overlay application, target/current diffing,
// stop-loss/take-profit/aging overrides, and thesis enrichment.
//
// The macro overlay itself is computed once per run by the orchestrator and
// passed into RunAgent, so every agent in the same cohort sees identical
// macro treatment.
type Engine struct {
	agents     store.AgentStore
	positions  store.PositionStore
	stocks     store.StockStore
	activity   store.ActivityStore
	calculator *factors.Calculator
	temporal   *sentiment.TemporalAnalyzer
	integrator *sentiment.Integrator
	log        zerolog.Logger
}

// NewEngine constructs a strategy Engine.
func NewEngine(
	agents store.AgentStore,
	positions store.PositionStore,
	stocks store.StockStore,
	activity store.ActivityStore,
	log zerolog.Logger,
) *Engine {
	return &Engine{
		agents:     agents,
		positions:  positions,
		stocks:     stocks,
		activity:   activity,
		calculator: factors.NewCalculator(),
		temporal:   sentiment.NewTemporalAnalyzer(),
		integrator: sentiment.NewIntegrator(),
		log:        log.With().Str("component", "strategy_engine").Logger(),
	}
}

// RunAgent executes the full pipeline for one agent against a shared,
// pre-fetched stock universe snapshot and the run's single pre-computed
// macro overlay result. It only computes and diffs; order placement and
// position/cash persistence are the executor's job.
func (e *Engine) RunAgent(ctx context.Context, agentID int64, universe map[string]domain.Stock, overlayResult domain.OverlayResult) (domain.ExecutionResult, error) {
	result := domain.ExecutionResult{AgentID: agentID, ExecutedAt: time.Now()}

	agent, err := e.agents.GetAgent(ctx, agentID)
	if err != nil {
		return result, fmt.Errorf("load agent %d: %w", agentID, err)
	}

	currentPositions, err := e.positions.GetOpenPositions(ctx, agentID)
	if err != nil {
		return result, fmt.Errorf("load positions for agent %d: %w", agentID, err)
	}
	positionsByTicker := make(map[string]domain.Position, len(currentPositions))
	for _, p := range currentPositions {
		positionsByTicker[p.Ticker] = p
	}

	// Step 0: circuit breaker halts all new activity and liquidates every
	// open position when unrealized loss breaches the drawdown limit.
	if tripped, drawdown := circuitBreakerTripped(currentPositions, universe, agent.AllocatedCapital, agent.RiskParams.MaxDrawdownLimit); tripped {
		limit := agent.RiskParams.MaxDrawdownLimit
		if limit <= 0 {
			limit = defaultMaxDrawdownLimit
		}
		actions := make([]domain.OrderAction, 0, len(currentPositions))
		for _, p := range currentPositions {
			price := p.CurrentPrice
			if stock, ok := universe[p.Ticker]; ok && stock.Price > 0 {
				price = stock.Price
			}
			actions = append(actions, domain.OrderAction{
				Ticker: p.Ticker, Action: domain.ActionSell, TargetWeight: 0,
				CurrentWeight: p.CurrentWeight(agent.AllocatedCapital), SignalStrength: 100,
				Price:        price,
				ActivityHint: domain.ActivitySell,
				Reason:       fmt.Sprintf("Circuit breaker: drawdown %.1f%% exceeds %.1f%%", drawdown*100, limit*100),
			})
		}
		result.Regime = domain.RegimeCircuitBreaker
		result.OrderActions = actions
		return result, nil
	}
	if agent.Status != domain.AgentActive {
		return result, nil
	}

	// Step 0b: rebalance-frequency gate.
	due, skipReason, err := e.rebalanceDue(ctx, agent)
	if err != nil {
		return result, err
	}
	if !due {
		result.Error = skipReason
		return result, nil
	}

	// Step 1: resolve strategy config.
	cfg, ok := Resolve(agent)
	if !ok {
		result.Error = fmt.Sprintf("unrecognized strategy type %q", agent.StrategyType)
		return result, nil
	}

	// Step 2: data assembly — factor scoring, temporal enrichment, integration.
	factorScores := e.calculator.Calculate(universe, nil, cfg.FactorWeights)

	sentimentInputs := make(map[string]domain.SentimentInput, len(universe))
	marketContext := make(map[string]sentiment.MarketContext, len(universe))
	for symbol, stock := range universe {
		history, err := e.stocks.GetSentimentHistory(ctx, symbol, 30)
		if err != nil {
			e.log.Warn().Err(err).Str("symbol", symbol).Msg("sentiment history unavailable")
		}
		combinedHistory := make([]float64, len(history))
		for i, h := range history {
			combinedHistory[i] = h.Combined
		}

		input := stock.Sentiment
		enrichment := e.temporal.Enrich(combinedHistory)
		input.Streak = enrichment.Streak
		input.TrendSlope = enrichment.TrendSlope
		input.Persistence = enrichment.Persistence
		input.Breakout = enrichment.Breakout
		sentimentInputs[symbol] = input

		ma200 := movingAverage200(stock.Closes)
		marketContext[symbol] = sentiment.MarketContext{Price: stock.Price, MA200: ma200, Has: ma200 > 0}
	}

	baseWeights := cfg.FactorWeights
	if baseWeights == nil {
		baseWeights = FactorWeights{
			"momentum": factors.DefaultWeights["momentum"], "value": factors.DefaultWeights["value"],
			"quality": factors.DefaultWeights["quality"], "dividend": factors.DefaultWeights["dividend"],
			"volatility": factors.DefaultWeights["volatility"], "sentiment": cfg.SentimentWeight,
		}
	}
	integrated := e.integrator.Integrate(factorScores, sentimentInputs, marketContext, baseWeights)
	result.IntegratedScores = integrated

	// integrated_composite is injected into a shallow-copied per-agent stock
	// record: the composite is agent-specific since factor weights are.
	enriched := make(map[string]domain.Stock, len(universe))
	for symbol, stock := range universe {
		stock.Factors = factorScores[symbol]
		stock.Sentiment = sentimentInputs[symbol]
		stock.IntegratedScore = integrated[symbol]
		enriched[symbol] = stock
	}

	// Step 3: strategy execution. Cross-sectional strategies disable their
	// own sentiment handling since sentiment is already folded into the
	// integrated composite they select on.
	execCfg := cfg
	if cfg.Strategy == KindCrossSectionalFactor {
		execCfg.SentimentMode = SentimentDisabled
	}

	sentimentScores := make(map[string]float64, len(enriched))
	for symbol, input := range sentimentInputs {
		sentimentScores[symbol] = input.Combined
	}

	strategyImpl, ok := Registry[cfg.Strategy]
	if !ok {
		result.Error = fmt.Sprintf("no strategy implementation registered for %q", cfg.Strategy)
		return result, nil
	}

	targets := strategyImpl.Execute(ExecutionContext{
		Stocks: enriched, Sentiment: sentimentScores, CurrentPositions: positionsByTicker,
		Config: execCfg, RiskParams: agent.RiskParams,
	})

	// Step 4: cash-constrained sizing — target weights already sum to <=1
	// per strategy construction; clip further if allocated capital is
	// already committed to positions the strategy isn't touching.
	targets = capToAvailableCash(targets, agent, positionsByTicker)

	// Step 5: macro overlay application, using the run-wide overlay the
	// orchestrator pre-computed once for the whole agent cohort.
	result.Overlay = &overlayResult
	result.Regime = overlayResult.Regime
	for i := range targets {
		targets[i].TargetWeight *= overlayResult.ScaleFactor
	}

	targetsByTicker := make(map[string]TargetPosition, len(targets))
	for _, t := range targets {
		targetsByTicker[t.Ticker] = t
	}

	// Step 6: diff target vs current into buy/sell/hold/increase/decrease.
	actions := diffPositions(targets, positionsByTicker, enriched, agent.AllocatedCapital)

	// Step 7: stop-loss/take-profit/aging overrides take priority over the
	// diff pass's holds (they do not override a diff-driven sell, which
	// already exits the name).
	actions = applyExitOverrides(actions, currentPositions, enriched, agent.AllocatedCapital, agent.StrategyParams.MaxHoldingDays)

	// Step 8: thesis enrichment for every surviving buy/increase action.
	actions = enrichThesis(actions, targetsByTicker, enriched, integrated, cfg.Strategy, result.Regime, agent.HorizonDays)

	result.OrderActions = actions
	return result, nil
}

// circuitBreakerTripped computes the aggregate unrealized P&L across held
// positions, marked to the universe's current prices, and reports whether
// the resulting loss (as a fraction of allocated capital) breaches the
// agent's max drawdown limit (default 0.20).
func circuitBreakerTripped(positions []domain.Position, universe map[string]domain.Stock, allocatedCapital, maxDrawdownLimit float64) (bool, float64) {
	if allocatedCapital <= 0 || len(positions) == 0 {
		return false, 0
	}
	if maxDrawdownLimit <= 0 {
		maxDrawdownLimit = defaultMaxDrawdownLimit
	}

	var netPL float64
	for _, p := range positions {
		price := p.CurrentPrice
		if stock, ok := universe[p.Ticker]; ok && stock.Price > 0 {
			price = stock.Price
		}
		if p.Side == domain.SideShort {
			netPL += (p.EntryPrice - price) * p.Shares
		} else {
			netPL += (price - p.EntryPrice) * p.Shares
		}
	}
	if netPL >= 0 {
		return false, 0
	}

	drawdown := -netPL / allocatedCapital
	return drawdown >= maxDrawdownLimit, drawdown
}

func movingAverage200(closes []float64) float64 {
	n := len(closes)
	if n == 0 {
		return 0
	}
	period := 200
	if period > n {
		period = n
	}
	window := closes[n-period:]
	sum := 0.0
	for _, c := range window {
		sum += c
	}
	return sum / float64(len(window))
}

// rebalanceDue checks the agent's last rebalance activity row against its
// configured minimum interval, returning a human-readable skip reason when
// not yet due.
func (e *Engine) rebalanceDue(ctx context.Context, agent domain.Agent) (bool, string, error) {
	freq := agent.StrategyParams.RebalanceFrequency
	interval := minRebalanceIntervals[freq]
	if agent.StrategyParams.MinIntervalHours > 0 {
		interval = time.Duration(agent.StrategyParams.MinIntervalHours * float64(time.Hour))
	}
	if interval <= 0 {
		return true, "", nil
	}

	last, found, err := e.activity.LastActivityOfType(ctx, agent.ID, domain.ActivityRebalance)
	if err != nil {
		return false, "", err
	}
	if !found {
		return true, "", nil
	}

	elapsed := time.Since(last.CreatedAt)
	if elapsed >= interval {
		return true, "", nil
	}
	reason := fmt.Sprintf("Rebalance frequency is %s (min %gh) but only %.1fh since last rebalance",
		freq, interval.Hours(), elapsed.Hours())
	return false, reason, nil
}

// capToAvailableCash ensures the sum of new target weights for symbols not
// already held does not exceed the agent's available (uninvested) capital
// fraction; it scales down proportionally when it would.
func capToAvailableCash(targets []TargetPosition, agent domain.Agent, current map[string]domain.Position) []TargetPosition {
	if agent.AllocatedCapital <= 0 || agent.CashBalance <= 0 {
		if agent.CashBalance <= 0 {
			for i := range targets {
				if _, held := current[targets[i].Ticker]; !held {
					targets[i].TargetWeight = 0
				}
			}
		}
		return targets
	}

	cashFraction := agent.CashBalance / agent.AllocatedCapital

	newWeight := 0.0
	for _, t := range targets {
		if _, held := current[t.Ticker]; !held {
			newWeight += t.TargetWeight
		}
	}
	if newWeight <= cashFraction || newWeight == 0 {
		return targets
	}

	scale := cashFraction / newWeight
	for i := range targets {
		if _, held := current[targets[i].Ticker]; !held {
			targets[i].TargetWeight *= scale
		}
	}
	return targets
}

// diffPositions compares strategy targets against current holdings and
// classifies each symbol as buy/sell/increase/decrease/hold.
func diffPositions(targets []TargetPosition, current map[string]domain.Position, stocks map[string]domain.Stock, allocatedCapital float64) []domain.OrderAction {
	targetByTicker := make(map[string]TargetPosition, len(targets))
	for _, t := range targets {
		targetByTicker[t.Ticker] = t
	}

	var actions []domain.OrderAction
	for ticker, target := range targetByTicker {
		price := stocks[ticker].Price
		pos, held := current[ticker]
		if !held {
			actions = append(actions, domain.OrderAction{
				Ticker: ticker, Action: domain.ActionBuy, TargetWeight: target.TargetWeight,
				SignalStrength: target.SignalStrength, Reason: target.Reason,
				Price: price, StopLossPrice: target.StopLossPrice, TargetPrice: target.TargetPrice,
			})
			continue
		}

		currentWeight := pos.CurrentWeight(allocatedCapital)
		drift := target.TargetWeight - currentWeight
		switch {
		case drift > maxPositionDrift:
			actions = append(actions, domain.OrderAction{
				Ticker: ticker, Action: domain.ActionIncrease, TargetWeight: target.TargetWeight,
				CurrentWeight: currentWeight, SignalStrength: target.SignalStrength, Reason: target.Reason,
				Price: price, StopLossPrice: target.StopLossPrice, TargetPrice: target.TargetPrice,
			})
		case drift < -maxPositionDrift:
			actions = append(actions, domain.OrderAction{
				Ticker: ticker, Action: domain.ActionDecrease, TargetWeight: target.TargetWeight,
				CurrentWeight: currentWeight, SignalStrength: target.SignalStrength, Reason: target.Reason,
				Price: price,
			})
		default:
			actions = append(actions, domain.OrderAction{
				Ticker: ticker, Action: domain.ActionHold, TargetWeight: target.TargetWeight,
				CurrentWeight: currentWeight, SignalStrength: target.SignalStrength, Reason: "within drift tolerance",
				Price: price,
			})
		}
	}

	for ticker, pos := range current {
		if _, stillTargeted := targetByTicker[ticker]; stillTargeted {
			continue
		}
		actions = append(actions, domain.OrderAction{
			Ticker: ticker, Action: domain.ActionSell, TargetWeight: 0,
			CurrentWeight: pos.CurrentWeight(allocatedCapital), Reason: "no longer selected by strategy",
			Price: stocks[ticker].Price,
		})
	}
	return actions
}

// applyExitOverrides promotes positions that have breached their stop-loss,
// take-profit, or maximum holding period to a sell action, overriding
// whatever the diff pass decided (except a diff-driven sell, which already
// exits the name). Stop-loss takes precedence over take-profit, which takes
// precedence over aging, per §4.9.
func applyExitOverrides(actions []domain.OrderAction, positions []domain.Position, stocks map[string]domain.Stock, allocatedCapital float64, maxHoldingDaysOverride *int) []domain.OrderAction {
	byTicker := make(map[string]int, len(actions))
	for i, a := range actions {
		byTicker[a.Ticker] = i
	}

	for _, pos := range positions {
		stock, ok := stocks[pos.Ticker]
		if !ok {
			continue
		}
		price := stock.Price

		var reason string
		hint := domain.ActivitySell
		switch {
		case pos.Side == domain.SideLong && pos.StopLossPrice > 0 && price <= pos.StopLossPrice:
			reason = fmt.Sprintf("Stop-loss breached: price %.2f <= stop %.2f", price, pos.StopLossPrice)
			hint = domain.ActivityStopHit
		case pos.Side == domain.SideShort && pos.StopLossPrice > 0 && price >= pos.StopLossPrice:
			reason = fmt.Sprintf("Stop-loss breached: price %.2f >= stop %.2f", price, pos.StopLossPrice)
			hint = domain.ActivityStopHit
		case pos.Side == domain.SideLong && pos.TargetPrice > 0 && price >= pos.TargetPrice:
			reason = fmt.Sprintf("Take-profit reached: price %.2f >= target %.2f", price, pos.TargetPrice)
			hint = domain.ActivityTargetHit
		case pos.Side == domain.SideShort && pos.TargetPrice > 0 && price <= pos.TargetPrice:
			reason = fmt.Sprintf("Take-profit reached: price %.2f <= target %.2f", price, pos.TargetPrice)
			hint = domain.ActivityTargetHit
		}

		maxDays := pos.MaxHoldingDays
		if maxHoldingDaysOverride != nil {
			maxDays = *maxHoldingDaysOverride
		}
		if reason == "" && maxDays > 0 {
			heldDays := int(time.Since(pos.EntryDate).Hours() / 24)
			if heldDays >= maxDays {
				reason = fmt.Sprintf("Max holding period reached: held %dd >= %dd", heldDays, maxDays)
				hint = domain.ActivitySell
			}
		}
		if reason == "" {
			continue
		}

		action := domain.OrderAction{
			Ticker: pos.Ticker, Action: domain.ActionSell, TargetWeight: 0,
			CurrentWeight: pos.CurrentWeight(allocatedCapital), SignalStrength: 100,
			Reason: reason, Price: price, ActivityHint: hint,
		}

		if i, exists := byTicker[pos.Ticker]; exists {
			if actions[i].Action == domain.ActionSell {
				continue
			}
			actions[i] = action
		} else {
			actions = append(actions, action)
		}
	}
	return actions
}

// enrichThesis rewrites the reason string on every surviving buy/increase
// action with the full thesis: strategy name, integrated score, signal
// strength, regime, target weight, entry price, stop, target, horizon days.
func enrichThesis(
	actions []domain.OrderAction,
	targets map[string]TargetPosition,
	stocks map[string]domain.Stock,
	integrated map[string]domain.IntegratedScore,
	strategyKind StrategyKind,
	regime domain.Regime,
	horizonDays int,
) []domain.OrderAction {
	for i, a := range actions {
		if a.Action != domain.ActionBuy && a.Action != domain.ActionIncrease {
			continue
		}
		stock := stocks[a.Ticker]
		score := integrated[a.Ticker].Composite

		stop, target := a.StopLossPrice, a.TargetPrice
		if t, ok := targets[a.Ticker]; ok {
			stop, target = t.StopLossPrice, t.TargetPrice
		}

		actions[i].Reason = fmt.Sprintf(
			"%s: integrated score %.1f, signal strength %.1f, regime %s, target weight %.2f%%, entry %.2f, stop %.2f, target %.2f, horizon %dd",
			strategyKind, score, a.SignalStrength, regime, a.TargetWeight*100, stock.Price, stop, target, horizonDays,
		)
	}
	return actions
}
