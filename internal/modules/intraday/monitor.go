// Package intraday implements the frequently-scheduled live-price exit
// monitor: it enforces stop-loss, take-profit, and aging exits against
// positions between nightly pipeline runs.
package intraday

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/SalomePA9/AgentFund-sub000/internal/broker"
	"github.com/SalomePA9/AgentFund-sub000/internal/domain"
	"github.com/SalomePA9/AgentFund-sub000/internal/health"
	"github.com/SalomePA9/AgentFund-sub000/internal/store"
)

// BrokerResolver returns the connected broker for a user, or nil when that
// user has no brokerage credentials on file.
type BrokerResolver func(ctx context.Context, userID int64) broker.Broker

// Monitor runs the intraday exit-enforcement pass.
type Monitor struct {
	agents    store.AgentStore
	positions store.PositionStore
	activity  store.ActivityStore
	log       zerolog.Logger
}

// NewMonitor constructs a Monitor.
func NewMonitor(agents store.AgentStore, positions store.PositionStore, activity store.ActivityStore, log zerolog.Logger) *Monitor {
	return &Monitor{
		agents:    agents,
		positions: positions,
		activity:  activity,
		log:       log.With().Str("component", "intraday_monitor").Logger(),
	}
}

// Summary is the structured outcome of one monitor pass.
type Summary struct {
	Status        string
	AgentsScanned int
	PositionsSeen int
	ExitsTriggered int
	FirstError    string
}

// Run groups active agents by owning user to reuse broker connections, then
// walks each agent's open positions checking stop-loss, take-profit, and
// aging in priority order. Never places new entries.
func (m *Monitor) Run(ctx context.Context, resolve BrokerResolver) Summary {
	summary := Summary{Status: "success"}

	agents, err := m.agents.ListActiveAgents(ctx)
	if err != nil {
		summary.Status = "error"
		summary.FirstError = err.Error()
		return summary
	}

	byUser := make(map[int64][]domain.Agent)
	for _, a := range agents {
		byUser[a.UserID] = append(byUser[a.UserID], a)
	}

	for userID, userAgents := range byUser {
		brk := resolve(ctx, userID)
		if brk == nil {
			continue // no brokerage credentials on file for this user.
		}

		status, err := brk.IsMarketOpen(ctx, "")
		if err != nil {
			m.log.Warn().Err(err).Int64("user_id", userID).Msg("market-hours check failed")
			if summary.FirstError == "" {
				summary.FirstError = err.Error()
			}
			continue
		}
		if !status.IsOpen {
			continue
		}

		for _, agent := range userAgents {
			m.scanAgent(ctx, agent, brk, &summary)
		}
	}

	if summary.FirstError != "" && summary.ExitsTriggered == 0 {
		summary.Status = "warning"
	}
	return summary
}

func (m *Monitor) scanAgent(ctx context.Context, agent domain.Agent, brk broker.Broker, summary *Summary) {
	summary.AgentsScanned++

	positions, err := m.positions.GetOpenPositions(ctx, agent.ID)
	if err != nil {
		m.log.Warn().Err(err).Int64("agent_id", agent.ID).Msg("load open positions failed")
		if summary.FirstError == "" {
			summary.FirstError = err.Error()
		}
		return
	}

	maxHoldingOverride := agent.StrategyParams.MaxHoldingDays

	for _, pos := range positions {
		summary.PositionsSeen++

		quote, err := brk.GetLatestQuote(ctx, pos.Ticker)
		if err != nil {
			m.log.Warn().Err(err).Str("ticker", pos.Ticker).Msg("quote fetch failed")
			continue
		}
		live := (quote.Bid + quote.Ask) / 2
		if live <= 0 {
			continue
		}

		unrealizedPL := (live - pos.EntryPrice) * pos.Shares
		if pos.Side == domain.SideShort {
			unrealizedPL = (pos.EntryPrice - live) * pos.Shares
		}
		unrealizedPLPct := 0.0
		if pos.EntryPrice > 0 && pos.Shares > 0 {
			unrealizedPLPct = unrealizedPL / (pos.EntryPrice * pos.Shares)
		}
		if err := m.positions.UpdateCurrentPrice(ctx, pos.ID, live, unrealizedPL, unrealizedPLPct); err != nil {
			m.log.Warn().Err(err).Str("ticker", pos.Ticker).Msg("current price update failed")
		}

		reason, hint := exitReason(pos, live, maxHoldingOverride)
		if reason == "" {
			continue
		}

		if err := m.exit(ctx, agent, pos, live, reason, hint, brk); err != nil {
			m.log.Warn().Err(err).Str("ticker", pos.Ticker).Msg("intraday exit failed")
			if summary.FirstError == "" {
				summary.FirstError = err.Error()
			}
			continue
		}
		summary.ExitsTriggered++
	}
}

// exitReason applies the §4.9 priority order: stop-loss, then take-profit,
// then aging.
func exitReason(pos domain.Position, live float64, maxHoldingOverride *int) (string, domain.ActivityType) {
	switch {
	case pos.Side == domain.SideLong && pos.StopLossPrice > 0 && live <= pos.StopLossPrice:
		return fmt.Sprintf("Stop-loss breached: price %.2f <= stop %.2f", live, pos.StopLossPrice), domain.ActivityStopHit
	case pos.Side == domain.SideShort && pos.StopLossPrice > 0 && live >= pos.StopLossPrice:
		return fmt.Sprintf("Stop-loss breached: price %.2f >= stop %.2f", live, pos.StopLossPrice), domain.ActivityStopHit
	case pos.Side == domain.SideLong && pos.TargetPrice > 0 && live >= pos.TargetPrice:
		return fmt.Sprintf("Take-profit reached: price %.2f >= target %.2f", live, pos.TargetPrice), domain.ActivityTargetHit
	case pos.Side == domain.SideShort && pos.TargetPrice > 0 && live <= pos.TargetPrice:
		return fmt.Sprintf("Take-profit reached: price %.2f <= target %.2f", live, pos.TargetPrice), domain.ActivityTargetHit
	}

	maxDays := pos.MaxHoldingDays
	if maxHoldingOverride != nil {
		maxDays = *maxHoldingOverride
	}
	if maxDays > 0 {
		heldDays := int(time.Since(pos.EntryDate).Hours() / 24)
		if heldDays >= maxDays {
			return fmt.Sprintf("Max holding period reached: held %dd >= %dd", heldDays, maxDays), domain.ActivitySell
		}
	}
	return "", ""
}

// Job adapts Monitor.Run to the scheduler.Job contract for the frequent
// intraday exit-enforcement pass.
type Job struct {
	monitor *Monitor
	resolve BrokerResolver
	log     zerolog.Logger
}

// NewJob constructs a Job.
func NewJob(monitor *Monitor, resolve BrokerResolver, log zerolog.Logger) *Job {
	return &Job{monitor: monitor, resolve: resolve, log: log.With().Str("component", "intraday_job").Logger()}
}

func (j *Job) Name() string { return "intraday_monitor" }

// Run executes one monitor pass and logs the outcome.
func (j *Job) Run() error {
	health.LogSample(j.log, j.Name())
	summary := j.monitor.Run(context.Background(), j.resolve)
	j.log.Info().Str("status", summary.Status).Int("positions_seen", summary.PositionsSeen).
		Int("exits_triggered", summary.ExitsTriggered).Msg("intraday monitor pass complete")
	return nil
}

func (m *Monitor) exit(ctx context.Context, agent domain.Agent, pos domain.Position, live float64, reason string, hint domain.ActivityType, brk broker.Broker) error {
	if pos.BracketStopOrderID != "" {
		if err := brk.CancelOrder(ctx, pos.BracketStopOrderID); err != nil {
			m.log.Warn().Err(err).Str("ticker", pos.Ticker).Msg("bracket cancel on intraday exit failed")
		}
	}

	order, err := brk.ClosePosition(ctx, pos.Ticker, nil)
	if err != nil {
		return fmt.Errorf("close position %s: %w", pos.Ticker, err)
	}

	exitPrice := order.FilledAvgPrice
	if exitPrice == 0 {
		exitPrice = live
	}
	realizedPL := (exitPrice - pos.EntryPrice) * pos.Shares
	if pos.Side == domain.SideShort {
		realizedPL = (pos.EntryPrice - exitPrice) * pos.Shares
	}
	realizedPLPct := 0.0
	if pos.EntryPrice > 0 && pos.Shares > 0 {
		realizedPLPct = realizedPL / (pos.EntryPrice * pos.Shares)
	}

	if err := m.positions.ClosePosition(ctx, pos.ID, exitPrice, time.Now(), reason, realizedPL, realizedPLPct, order.ID); err != nil {
		return fmt.Errorf("close position record %s: %w", pos.Ticker, err)
	}

	cashDelta := exitPrice * pos.Shares
	newCash := agent.CashBalance + cashDelta
	if err := m.agents.UpdateCashBalance(ctx, agent.ID, newCash); err != nil {
		m.log.Warn().Err(err).Int64("agent_id", agent.ID).Msg("cash balance sync failed after intraday exit")
	}

	return m.activity.InsertActivity(ctx, domain.ActivityRow{
		ID: uuid.NewString(), AgentID: agent.ID, Type: hint,
		Details: map[string]interface{}{
			"ticker": pos.Ticker, "exit_price": exitPrice, "realized_pl": realizedPL,
			"realized_pl_pct": realizedPLPct, "reason": reason,
		},
		CreatedAt: time.Now(),
	})
}
