// Package orchestrator sequences the nightly pipeline: it loads the shared
// stock universe, fans the Strategy Engine and Order Executor out across
// every active agent, and rolls the per-agent outcomes up into a single
// structured run report.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/SalomePA9/AgentFund-sub000/internal/broker"
	"github.com/SalomePA9/AgentFund-sub000/internal/domain"
	"github.com/SalomePA9/AgentFund-sub000/internal/modules/execution"
	"github.com/SalomePA9/AgentFund-sub000/internal/modules/macro"
	"github.com/SalomePA9/AgentFund-sub000/internal/modules/strategy"
	"github.com/SalomePA9/AgentFund-sub000/internal/store"
)

// maxConcurrentAgents bounds how many agents run the strategy+executor
// pipeline at once, per §5's concurrency model.
const maxConcurrentAgents = 8

// BrokerResolver returns the connected broker for a user, or nil when that
// user has no brokerage credentials on file.
type BrokerResolver func(ctx context.Context, userID int64) broker.Broker

// StageResult is the structured per-stage outcome described in §7: status,
// counts, duration, and the first error encountered.
type StageResult struct {
	Name       string        `json:"name"`
	Status     string        `json:"status"` // success, partial, warning, error
	Count      int           `json:"count"`
	Duration   time.Duration `json:"duration"`
	FirstError string        `json:"first_error,omitempty"`
}

// AgentOutcome rolls up one agent's engine + executor results.
type AgentOutcome struct {
	AgentID    int64            `json:"agent_id"`
	EngineErr  string           `json:"engine_error,omitempty"`
	Regime     domain.Regime    `json:"regime"`
	ExecSummary execution.Summary `json:"exec_summary"`
}

// RunReport is the full structured result of one nightly pipeline run.
type RunReport struct {
	StartedAt time.Time      `json:"started_at"`
	Duration  time.Duration  `json:"duration"`
	Stages    []StageResult  `json:"stages"`
	Agents    []AgentOutcome `json:"agents"`
}

// Pipeline wires the Strategy Engine and Order Executor into the nightly
// run. Market-data and sentiment ingestion are out-of-scope fetcher stages;
// Pipeline assumes the stock/sentiment/macro stores are already current when
// Run is invoked and represents those two stages as pass-through bookkeeping
// so the report's stage list stays complete. The macro_data stage computes
// the overlay from the stored macro inputs.
type Pipeline struct {
	agents   store.AgentStore
	stocks   store.StockStore
	overlays store.MacroOverlayStore
	overlay  *macro.Overlay
	engine   *strategy.Engine
	executor *execution.Executor
	resolve  BrokerResolver
	log      zerolog.Logger
}

// NewPipeline constructs a Pipeline. The macro overlay is owned here (not by
// the strategy engine) so it is computed exactly once per run and shared
// identically across every agent in the cohort.
func NewPipeline(
	agents store.AgentStore,
	stocks store.StockStore,
	overlays store.MacroOverlayStore,
	overlayCfg macro.Config,
	engine *strategy.Engine,
	executor *execution.Executor,
	resolve BrokerResolver,
	log zerolog.Logger,
) *Pipeline {
	return &Pipeline{
		agents:   agents,
		stocks:   stocks,
		overlays: overlays,
		overlay:  macro.NewOverlay(overlayCfg),
		engine:   engine,
		executor: executor,
		resolve:  resolve,
		log:      log.With().Str("component", "pipeline_orchestrator").Logger(),
	}
}

// Run executes the nightly pipeline: market-data/sentiment ingestion
// (pass-through), the macro overlay (computed once for all agents), universe
// loading, factor scoring and strategy execution per agent,
// then order execution per agent. Agent failures are isolated — one agent
// erroring does not stop the others.
func (p *Pipeline) Run(ctx context.Context) RunReport {
	report := RunReport{StartedAt: time.Now()}

	report.Stages = append(report.Stages,
		passthroughStage("market_data"),
		passthroughStage("sentiment_data"),
	)

	macroStart := time.Now()
	overlayResult, err := p.computeOverlay(ctx)
	macroStage := StageResult{Name: "macro_data", Status: "success", Duration: time.Since(macroStart)}
	if err != nil {
		macroStage.Status = "error"
		macroStage.FirstError = err.Error()
		report.Stages = append(report.Stages, macroStage)
		report.Duration = time.Since(report.StartedAt)
		return report
	}
	report.Stages = append(report.Stages, macroStage)

	universeStart := time.Now()
	universe, err := p.loadUniverse(ctx)
	universeStage := StageResult{Name: "load_universe", Count: len(universe), Duration: time.Since(universeStart), Status: "success"}
	if err != nil {
		universeStage.Status = "error"
		universeStage.FirstError = err.Error()
		report.Stages = append(report.Stages, universeStage)
		report.Duration = time.Since(report.StartedAt)
		return report
	}
	report.Stages = append(report.Stages, universeStage)

	agents, err := p.agents.ListActiveAgents(ctx)
	execStart := time.Now()
	execStage := StageResult{Name: "strategy_execution", Status: "success"}
	if err != nil {
		execStage.Status = "error"
		execStage.FirstError = err.Error()
		execStage.Duration = time.Since(execStart)
		report.Stages = append(report.Stages, execStage)
		report.Duration = time.Since(report.StartedAt)
		return report
	}

	outcomes := make([]AgentOutcome, len(agents))
	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(maxConcurrentAgents)

	var mu sync.Mutex
	var firstErr error
	var errorCount, partialCount int

	for i, agent := range agents {
		i, agent := i, agent
		group.Go(func() error {
			outcome := p.runAgent(gctx, agent, universe, overlayResult)
			outcomes[i] = outcome

			mu.Lock()
			defer mu.Unlock()
			if outcome.EngineErr != "" {
				if firstErr == nil {
					firstErr = &stageError{outcome.EngineErr}
				}
			}
			switch outcome.ExecSummary.Status {
			case "error":
				errorCount++
			case "partial", "warning":
				partialCount++
			}
			return nil
		})
	}
	_ = group.Wait() // per-agent errors are captured in outcomes, never aborts the fan-out.

	execStage.Count = len(outcomes)
	execStage.Duration = time.Since(execStart)
	switch {
	case errorCount == len(outcomes) && len(outcomes) > 0:
		execStage.Status = "error"
	case errorCount > 0 || partialCount > 0:
		execStage.Status = "partial"
	}
	if firstErr != nil {
		execStage.FirstError = firstErr.Error()
	}
	report.Stages = append(report.Stages, execStage)
	report.Stages = append(report.Stages, passthroughStage("report_generation"))
	report.Agents = outcomes
	report.Duration = time.Since(report.StartedAt)
	return report
}

// runAgent runs the strategy engine then the executor for one agent,
// resolving that agent's owning user's broker connection (nil if none).
func (p *Pipeline) runAgent(ctx context.Context, agent domain.Agent, universe map[string]domain.Stock, overlayResult domain.OverlayResult) AgentOutcome {
	outcome := AgentOutcome{AgentID: agent.ID}

	result, err := p.engine.RunAgent(ctx, agent.ID, universe, overlayResult)
	if err != nil {
		outcome.EngineErr = err.Error()
		return outcome
	}
	outcome.Regime = result.Regime
	if result.Error != "" {
		outcome.EngineErr = result.Error
		return outcome
	}

	var brk broker.Broker
	if p.resolve != nil {
		brk = p.resolve(ctx, agent.UserID)
	}
	outcome.ExecSummary = p.executor.Execute(ctx, agent, result, universe, brk)
	return outcome
}

// computeOverlay builds the macro snapshot and computes the overlay exactly
// once per run, persisting the resulting state so every agent in the cohort
// applies the identical scale factor and regime.
func (p *Pipeline) computeOverlay(ctx context.Context) (domain.OverlayResult, error) {
	snapshot, err := macro.BuildSnapshot(ctx, p.overlays, time.Now())
	if err != nil {
		return domain.OverlayResult{}, fmt.Errorf("build macro snapshot: %w", err)
	}
	overlayResult := p.overlay.Compute(snapshot)

	if err := p.overlays.SaveState(ctx, domain.MacroOverlayState{
		ScaleFactor: overlayResult.ScaleFactor, Composite: overlayResult.Composite, Regime: overlayResult.Regime,
		SignalValues: overlayResult.Contributions, Warnings: overlayResult.Warnings, ComputedAt: overlayResult.ComputedAt,
	}); err != nil {
		p.log.Warn().Err(err).Msg("failed to persist macro overlay state")
	}
	return overlayResult, nil
}

// loadUniverse fetches every tracked stock along with its price history,
// the shared snapshot every agent's strategy run is diffed against.
func (p *Pipeline) loadUniverse(ctx context.Context) (map[string]domain.Stock, error) {
	stocks, err := p.stocks.ListStocks(ctx, nil)
	if err != nil {
		return nil, err
	}
	universe := make(map[string]domain.Stock, len(stocks))
	for _, s := range stocks {
		closes, err := p.stocks.GetPriceHistory(ctx, s.Symbol, 400)
		if err != nil {
			p.log.Warn().Err(err).Str("symbol", s.Symbol).Msg("price history unavailable")
		}
		s.Closes = closes
		universe[s.Symbol] = s
	}
	return universe, nil
}

func passthroughStage(name string) StageResult {
	return StageResult{Name: name, Status: "success"}
}

type stageError struct{ msg string }

func (e *stageError) Error() string { return e.msg }
