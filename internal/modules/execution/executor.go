// Package execution implements the Order Executor & Position Reconciler: it
// translates an agent's order actions into broker orders, manages the GTC
// bracket-order lifecycle, and keeps position/cash state in sync with what
// the broker actually filled.
package execution

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/SalomePA9/AgentFund-sub000/internal/broker"
	"github.com/SalomePA9/AgentFund-sub000/internal/domain"
	"github.com/SalomePA9/AgentFund-sub000/internal/store"
	"github.com/SalomePA9/AgentFund-sub000/pkg/formulas"
)

// riskFreeRate is the annual risk-free rate used when summarizing a run's
// risk metrics into the rebalance activity row.
const riskFreeRate = 0.04

// atrPeriod is the lookback used for the close-only ATR approximation
// consulted as a secondary sizing sanity check (§9.1 supplemented feature).
const atrPeriod = 14

// ulcerPeriod is the lookback for the downside-risk summary folded into the
// rebalance activity row's risk metrics.
const ulcerPeriod = 14

// Executor runs the per-agent order-submission and reconciliation pass.
type Executor struct {
	agents    store.AgentStore
	positions store.PositionStore
	activity  store.ActivityStore
	log       zerolog.Logger
}

// NewExecutor constructs an Executor.
func NewExecutor(agents store.AgentStore, positions store.PositionStore, activity store.ActivityStore, log zerolog.Logger) *Executor {
	return &Executor{
		agents:    agents,
		positions: positions,
		activity:  activity,
		log:       log.With().Str("component", "order_executor").Logger(),
	}
}

// Summary is the structured per-agent outcome of one executor pass, per the
// status/counts/duration/first-error propagation policy.
type Summary struct {
	AgentID      int64
	Status       string // success, partial, warning, error
	OrdersPlaced int
	OrdersFailed int
	Deferred     bool
	FirstError   string
	Duration     time.Duration
}

// Execute runs the nine ordering steps for one agent's execution result:
// pre-checks, sells-before-buys submission, bracket-order lifecycle,
// position/cash sync, and activity logging. brk may be nil when the owning
// user has no connected brokerage credentials — in that case order
// submission is skipped entirely but circuit-breaker liquidations (sell
// actions) still sync position records locally.
func (x *Executor) Execute(ctx context.Context, agent domain.Agent, result domain.ExecutionResult, universe map[string]domain.Stock, brk broker.Broker) Summary {
	start := time.Now()
	summary := Summary{AgentID: agent.ID, Status: "success"}

	if result.Error != "" || len(result.OrderActions) == 0 {
		summary.Duration = time.Since(start)
		return summary
	}

	var sizingBasis, remainingBP float64
	marketOpen := true
	if brk != nil {
		status, err := brk.IsMarketOpen(ctx, "")
		if err != nil {
			x.log.Warn().Err(err).Int64("agent_id", agent.ID).Msg("market-hours check failed, deferring")
			summary.Status = "warning"
			summary.Deferred = true
			summary.FirstError = err.Error()
			summary.Duration = time.Since(start)
			return summary
		}
		marketOpen = status.IsOpen

		account, err := brk.GetAccount(ctx)
		if err != nil {
			x.log.Warn().Err(err).Int64("agent_id", agent.ID).Msg("get account failed, deferring")
			summary.Status = "warning"
			summary.Deferred = true
			summary.FirstError = err.Error()
			summary.Duration = time.Since(start)
			return summary
		}
		sizingBasis = math.Min(agent.AllocatedCapital, account.Equity)
		remainingBP = math.Min(account.BuyingPower, agent.AllocatedCapital)
	}

	if brk != nil && !marketOpen {
		summary.Deferred = true
		summary.Status = "warning"
		summary.Duration = time.Since(start)
		return summary
	}

	actions := orderedForExecution(result.OrderActions)

	var cashDelta float64
	var firstErr error
	placed, failed := 0, 0

	for _, action := range actions {
		switch action.Action {
		case domain.ActionBuy, domain.ActionIncrease:
			if brk == nil {
				continue // no credentials: buys/increases need a fill, skip them.
			}
			filled, err := x.submitBuySide(ctx, agent, action, sizingBasis, &remainingBP, universe[action.Ticker].Closes, brk)
			if err != nil {
				failed++
				if firstErr == nil {
					firstErr = err
				}
				x.log.Warn().Err(err).Str("ticker", action.Ticker).Str("action", string(action.Action)).Msg("order submission failed")
				continue
			}
			placed++
			cashDelta -= filled.qty * filled.price
			if err := x.syncBuySide(ctx, agent, action, filled, brk); err != nil {
				x.log.Warn().Err(err).Str("ticker", action.Ticker).Msg("position sync failed after fill")
			}

		case domain.ActionSell, domain.ActionDecrease:
			filled, err := x.submitSellSide(ctx, agent, action, brk)
			if err != nil {
				failed++
				if firstErr == nil {
					firstErr = err
				}
				x.log.Warn().Err(err).Str("ticker", action.Ticker).Str("action", string(action.Action)).Msg("order submission failed")
				continue
			}
			placed++
			cashDelta += filled.qty * filled.price
			if brk != nil {
				remainingBP += filled.qty * filled.price
			}
			if err := x.syncSellSide(ctx, agent, action, filled, brk); err != nil {
				x.log.Warn().Err(err).Str("ticker", action.Ticker).Msg("position sync failed after fill")
			}

		case domain.ActionHold:
			// no order; a "signal" activity row is written below for audit.
		}
	}

	if cashDelta != 0 {
		newCash := agent.CashBalance + cashDelta
		if newCash < 0 {
			newCash = 0
		}
		if err := x.agents.UpdateCashBalance(ctx, agent.ID, newCash); err != nil {
			x.log.Warn().Err(err).Int64("agent_id", agent.ID).Msg("cash balance sync failed")
		}
	}

	x.logActivity(ctx, agent, result, actions, universe)

	summary.OrdersPlaced = placed
	summary.OrdersFailed = failed
	if firstErr != nil {
		summary.FirstError = firstErr.Error()
		if placed > 0 {
			summary.Status = "partial"
		} else {
			summary.Status = "error"
		}
	}
	summary.Duration = time.Since(start)
	return summary
}

// orderedForExecution sorts actions sells-then-decreases first, so sells
// free buying power before buys compete for it, per §4.6/§5.
func orderedForExecution(actions []domain.OrderAction) []domain.OrderAction {
	out := make([]domain.OrderAction, len(actions))
	copy(out, actions)
	rank := map[domain.ActionType]int{
		domain.ActionSell:     0,
		domain.ActionDecrease: 1,
		domain.ActionBuy:      2,
		domain.ActionIncrease: 2,
		domain.ActionHold:     3,
	}
	sort.SliceStable(out, func(i, j int) bool { return rank[out[i].Action] < rank[out[j].Action] })
	return out
}

type fill struct {
	orderID string
	qty     float64
	price   float64
}

func (x *Executor) submitBuySide(ctx context.Context, agent domain.Agent, action domain.OrderAction, sizingBasis float64, remainingBP *float64, closes []float64, brk broker.Broker) (fill, error) {
	if action.Price <= 0 {
		return fill{}, fmt.Errorf("buy side: no price for %s", action.Ticker)
	}

	weight := action.TargetWeight
	if action.Action == domain.ActionIncrease {
		weight = action.TargetWeight - action.CurrentWeight
	}
	if weight <= 0 {
		return fill{}, fmt.Errorf("buy side: non-positive delta weight for %s", action.Ticker)
	}

	notional := weight * sizingBasis
	if notional > *remainingBP {
		notional = *remainingBP
	}
	qty := math.Floor(notional / action.Price)
	if qty <= 0 {
		return fill{}, fmt.Errorf("buy side: zero quantity for %s", action.Ticker)
	}

	if action.StopLossPrice > 0 {
		if riskQty := PositionSizeCrossCheck(sizingBasis, closes, action.Price, action.StopLossPrice); riskQty > 0 && math.Abs(riskQty-qty)/qty > 1.0 {
			x.log.Debug().Str("ticker", action.Ticker).Float64("strategy_qty", qty).Float64("risk_sized_qty", riskQty).
				Msg("risk-based position size diverges sharply from strategy sizing")
		}
	}

	limitPrice := round2(action.Price * 1.005)
	order, err := brk.PlaceLimitOrder(ctx, broker.OrderRequest{
		Symbol: action.Ticker, Qty: qty, Side: "BUY", TimeInForce: broker.TIFDay, ClientOrderID: uuid.NewString(),
	}, limitPrice)
	if err != nil {
		return fill{}, err
	}

	filledQty, filledPrice := order.FilledQty, order.FilledAvgPrice
	if filledQty == 0 {
		filledQty, filledPrice = qty, limitPrice
	}
	*remainingBP -= filledQty * filledPrice

	// Place GTC bracket child orders sized to the full resulting position.
	x.placeBracket(ctx, agent, action, order, filledQty, brk)

	return fill{orderID: order.ID, qty: filledQty, price: filledPrice}, nil
}

func (x *Executor) placeBracket(ctx context.Context, agent domain.Agent, action domain.OrderAction, entryOrder broker.Order, qty float64, brk broker.Broker) {
	if action.StopLossPrice <= 0 || action.TargetPrice <= 0 || qty <= 0 {
		return
	}

	stopOrder, err := brk.PlaceStopOrder(ctx, broker.OrderRequest{
		Symbol: action.Ticker, Qty: qty, Side: "SELL", TimeInForce: broker.TIFGTC, ClientOrderID: uuid.NewString(),
	}, round2(action.StopLossPrice))
	if err != nil {
		x.log.Warn().Err(err).Str("ticker", action.Ticker).Msg("bracket stop order failed")
	} else {
		if err := x.updateBracketStopID(ctx, agent.ID, action.Ticker, stopOrder.ID); err != nil {
			x.log.Warn().Err(err).Str("ticker", action.Ticker).Msg("failed to record bracket stop order id")
		}
	}

	if _, err := brk.PlaceLimitOrder(ctx, broker.OrderRequest{
		Symbol: action.Ticker, Qty: qty, Side: "SELL", TimeInForce: broker.TIFGTC, ClientOrderID: uuid.NewString(),
	}, round2(action.TargetPrice)); err != nil {
		x.log.Warn().Err(err).Str("ticker", action.Ticker).Msg("bracket target order failed")
	}
}

func (x *Executor) updateBracketStopID(ctx context.Context, agentID int64, ticker, stopOrderID string) error {
	positions, err := x.positions.GetOpenPositionsByTicker(ctx, agentID, ticker)
	if err != nil {
		return err
	}
	for _, p := range positions {
		if err := x.positions.UpdateBracketOrderID(ctx, p.ID, stopOrderID); err != nil {
			return err
		}
	}
	return nil
}

func (x *Executor) submitSellSide(ctx context.Context, agent domain.Agent, action domain.OrderAction, brk broker.Broker) (fill, error) {
	if brk == nil {
		// No credentials: still sync the books for circuit-breaker
		// liquidations and expired positions, just without a real fill.
		return fill{qty: 0, price: action.Price}, nil
	}

	if action.Action == domain.ActionSell {
		order, err := brk.ClosePosition(ctx, action.Ticker, nil)
		if err != nil {
			return fill{}, err
		}
		filledQty, filledPrice := order.FilledQty, order.FilledAvgPrice
		if filledPrice == 0 {
			filledPrice = action.Price
		}
		return fill{orderID: order.ID, qty: filledQty, price: filledPrice}, nil
	}

	// decrease: day-limit sell at price*0.995 for the delta share count.
	positions, err := x.positions.GetOpenPositionsByTicker(ctx, agent.ID, action.Ticker)
	if err != nil {
		return fill{}, err
	}
	var currentShares float64
	for _, p := range positions {
		currentShares += p.Shares
	}
	weightDelta := action.CurrentWeight - action.TargetWeight
	if weightDelta <= 0 || currentShares <= 0 {
		return fill{}, fmt.Errorf("decrease: non-positive delta for %s", action.Ticker)
	}
	qty := math.Floor(currentShares * (weightDelta / action.CurrentWeight))
	if qty <= 0 {
		return fill{}, fmt.Errorf("decrease: zero quantity for %s", action.Ticker)
	}

	limitPrice := round2(action.Price * 0.995)
	order, err := brk.PlaceLimitOrder(ctx, broker.OrderRequest{
		Symbol: action.Ticker, Qty: qty, Side: "SELL", TimeInForce: broker.TIFDay, ClientOrderID: uuid.NewString(),
	}, limitPrice)
	if err != nil {
		return fill{}, err
	}
	filledQty, filledPrice := order.FilledQty, order.FilledAvgPrice
	if filledQty == 0 {
		filledQty, filledPrice = qty, limitPrice
	}

	// Cancel and re-place brackets at the reduced quantity.
	remainingQty := currentShares - filledQty
	x.rebracket(ctx, agent, action, remainingQty, brk)

	return fill{orderID: order.ID, qty: filledQty, price: filledPrice}, nil
}

func (x *Executor) rebracket(ctx context.Context, agent domain.Agent, action domain.OrderAction, remainingQty float64, brk broker.Broker) {
	positions, err := x.positions.GetOpenPositionsByTicker(ctx, agent.ID, action.Ticker)
	if err != nil {
		return
	}
	for _, p := range positions {
		if p.BracketStopOrderID != "" {
			if err := brk.CancelOrder(ctx, p.BracketStopOrderID); err != nil {
				x.log.Warn().Err(err).Str("ticker", action.Ticker).Msg("bracket cancel on decrease failed")
			}
		}
		if remainingQty > 0 && p.StopLossPrice > 0 && p.TargetPrice > 0 {
			x.placeBracket(ctx, agent, domain.OrderAction{
				Ticker: action.Ticker, StopLossPrice: p.StopLossPrice, TargetPrice: p.TargetPrice,
			}, broker.Order{}, remainingQty, brk)
		}
	}
}

func (x *Executor) syncBuySide(ctx context.Context, agent domain.Agent, action domain.OrderAction, filled fill, brk broker.Broker) error {
	if action.Action == domain.ActionBuy {
		_, err := x.positions.InsertPosition(ctx, domain.Position{
			AgentID: agent.ID, Ticker: action.Ticker, Side: domain.SideLong,
			Shares: filled.qty, EntryPrice: filled.price, EntryDate: time.Now(),
			EntryRationale: action.Reason, CurrentPrice: filled.price,
			StopLossPrice: action.StopLossPrice, TargetPrice: action.TargetPrice,
			Status: domain.PositionOpen, EntryOrderID: filled.orderID,
		})
		return err
	}

	// increase: add shares to the existing open row(s).
	positions, err := x.positions.GetOpenPositionsByTicker(ctx, agent.ID, action.Ticker)
	if err != nil {
		return err
	}
	for _, p := range positions {
		if err := x.positions.UpdateShares(ctx, p.ID, p.Shares+filled.qty); err != nil {
			return err
		}
	}
	return nil
}

func (x *Executor) syncSellSide(ctx context.Context, agent domain.Agent, action domain.OrderAction, filled fill, brk broker.Broker) error {
	positions, err := x.positions.GetOpenPositionsByTicker(ctx, agent.ID, action.Ticker)
	if err != nil {
		return err
	}

	for _, p := range positions {
		if brk != nil && p.BracketStopOrderID != "" && action.Action == domain.ActionSell {
			if err := brk.CancelOrder(ctx, p.BracketStopOrderID); err != nil {
				x.log.Warn().Err(err).Str("ticker", action.Ticker).Msg("bracket cancel on sell failed")
			}
		}

		if action.Action == domain.ActionDecrease {
			remaining := p.Shares - filled.qty
			if remaining > 0 {
				if err := x.positions.UpdateShares(ctx, p.ID, remaining); err != nil {
					return err
				}
				continue
			}
		}

		exitPrice := filled.price
		if exitPrice == 0 {
			exitPrice = action.Price
		}
		realizedPL := (exitPrice - p.EntryPrice) * p.Shares
		if p.Side == domain.SideShort {
			realizedPL = (p.EntryPrice - exitPrice) * p.Shares
		}
		realizedPLPct := 0.0
		if p.EntryPrice > 0 {
			realizedPLPct = realizedPL / (p.EntryPrice * p.Shares)
		}

		if err := x.positions.ClosePosition(ctx, p.ID, exitPrice, time.Now(), action.Reason, realizedPL, realizedPLPct, filled.orderID); err != nil {
			return err
		}
	}
	return nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// logActivity writes one rebalance summary row (regime, strategy, position
// count, risk metrics) plus one row per action, typed buy/sell/signal, or
// the action's ActivityHint when set (stop/target hits, circuit-breaker
// liquidations).
func (x *Executor) logActivity(ctx context.Context, agent domain.Agent, result domain.ExecutionResult, actions []domain.OrderAction, universe map[string]domain.Stock) {
	buys, sells, holds := 0, 0, 0
	for _, a := range actions {
		switch a.Action {
		case domain.ActionBuy, domain.ActionIncrease:
			buys++
		case domain.ActionSell, domain.ActionDecrease:
			sells++
		case domain.ActionHold:
			holds++
		}
	}

	summaryDetails := map[string]interface{}{
		"regime":         string(result.Regime),
		"strategy":       string(agent.StrategyType),
		"position_count": len(actions),
		"buys":           buys,
		"sells":          sells,
		"holds":          holds,
	}
	if metrics := riskMetrics(actions, universe); metrics != nil {
		summaryDetails["risk_metrics"] = metrics
	}
	if err := x.activity.InsertActivity(ctx, domain.ActivityRow{
		ID: uuid.NewString(), AgentID: agent.ID, Type: domain.ActivityRebalance,
		Details: summaryDetails, CreatedAt: time.Now(),
	}); err != nil {
		x.log.Warn().Err(err).Int64("agent_id", agent.ID).Msg("failed to log rebalance activity")
	}

	for _, a := range actions {
		activityType := domain.ActivitySignal
		switch a.Action {
		case domain.ActionBuy, domain.ActionIncrease:
			activityType = domain.ActivityBuy
		case domain.ActionSell, domain.ActionDecrease:
			activityType = domain.ActivitySell
		}
		if a.ActivityHint != "" {
			activityType = a.ActivityHint
		}

		if err := x.activity.InsertActivity(ctx, domain.ActivityRow{
			ID: uuid.NewString(), AgentID: agent.ID, Type: activityType,
			Details: map[string]interface{}{
				"ticker": a.Ticker, "action": string(a.Action), "target_weight": a.TargetWeight,
				"current_weight": a.CurrentWeight, "signal_strength": a.SignalStrength, "reason": a.Reason,
			},
			CreatedAt: time.Now(),
		}); err != nil {
			x.log.Warn().Err(err).Str("ticker", a.Ticker).Msg("failed to log action activity")
		}
	}
}

// riskMetrics derives a lightweight per-run risk summary from each touched
// symbol's own price history: the average historical max drawdown and
// Sharpe ratio across the tickers this run's actions cover.
func riskMetrics(actions []domain.OrderAction, universe map[string]domain.Stock) map[string]interface{} {
	var drawdowns, sharpes, sortinos, ulcers []float64
	for _, a := range actions {
		closes := universe[a.Ticker].Closes
		if dd := formulas.CalculateMaxDrawdown(closes); dd != nil {
			drawdowns = append(drawdowns, *dd)
		}
		if sr := formulas.CalculateSharpeFromPrices(closes, riskFreeRate); sr != nil {
			sharpes = append(sharpes, *sr)
		}
		if returns := formulas.CalculateReturns(closes); len(returns) >= 2 {
			if sortino := formulas.CalculateSortinoRatio(returns, riskFreeRate, 0, 252); sortino != nil {
				sortinos = append(sortinos, *sortino)
			}
		}
		if ui := formulas.CalculateUlcerIndex(closes, ulcerPeriod); ui != nil {
			ulcers = append(ulcers, *ui)
		}
	}
	if len(drawdowns) == 0 && len(sharpes) == 0 && len(sortinos) == 0 && len(ulcers) == 0 {
		return nil
	}
	metrics := map[string]interface{}{}
	if len(drawdowns) > 0 {
		metrics["avg_max_drawdown"] = formulas.Mean(drawdowns)
	}
	if len(sharpes) > 0 {
		metrics["avg_sharpe_ratio"] = formulas.Mean(sharpes)
	}
	if len(sortinos) > 0 {
		metrics["avg_sortino_ratio"] = formulas.Mean(sortinos)
	}
	if len(ulcers) > 0 {
		metrics["avg_ulcer_index"] = formulas.Mean(ulcers)
	}
	return metrics
}

// PositionSizeCrossCheck computes a risk-based share count for a proposed
// buy, using a close-only ATR approximation as the stop-distance floor, and
// returns only that count. submitBuySide compares it with its own
// strategy-driven quantity and writes a debug log line when the two differ
// by more than 100% of the strategy quantity; the submitted quantity is
// never changed by it.
func PositionSizeCrossCheck(capital float64, closes []float64, entryPrice, stopPrice float64) float64 {
	if len(closes) < 2 {
		return 0
	}
	high := append([]float64(nil), closes...)
	low := append([]float64(nil), closes...)
	atr := formulas.CalculateATR(high, low, closes, atrPeriod)
	atrValue := 0.0
	if atr != nil {
		atrValue = *atr
	}
	return formulas.CalculatePositionSize(capital, 0.01, entryPrice, stopPrice, atrValue, 1.5, 0.10)
}
