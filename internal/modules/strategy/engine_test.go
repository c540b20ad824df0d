package strategy

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SalomePA9/AgentFund-sub000/internal/domain"
)

// fakeActivityStore is a minimal in-memory store.ActivityStore for exercising
// the rebalance-frequency gate without a real database.
type fakeActivityStore struct {
	rows []domain.ActivityRow
}

func (f *fakeActivityStore) InsertActivity(ctx context.Context, row domain.ActivityRow) error {
	f.rows = append(f.rows, row)
	return nil
}

func (f *fakeActivityStore) LastActivityOfType(ctx context.Context, agentID int64, activityType domain.ActivityType) (domain.ActivityRow, bool, error) {
	var latest domain.ActivityRow
	found := false
	for _, r := range f.rows {
		if r.AgentID == agentID && r.Type == activityType {
			if !found || r.CreatedAt.After(latest.CreatedAt) {
				latest = r
				found = true
			}
		}
	}
	return latest, found, nil
}

// --- S3: circuit breaker ---

func TestCircuitBreakerTrippedAboveLimit(t *testing.T) {
	positions := []domain.Position{
		{Ticker: "AAPL", Side: domain.SideLong, Shares: 100, EntryPrice: 100},
	}
	universe := map[string]domain.Stock{"AAPL": {Symbol: "AAPL", Price: 79}}

	// Loss = (79-100)*100 = -2100; allocatedCapital=10000 -> drawdown 0.21 > 0.20 limit.
	tripped, drawdown := circuitBreakerTripped(positions, universe, 10000, 0.20)
	assert.True(t, tripped)
	assert.InDelta(t, 0.21, drawdown, 1e-9)
}

func TestCircuitBreakerNotTrippedBelowLimit(t *testing.T) {
	positions := []domain.Position{{Ticker: "AAPL", Side: domain.SideLong, Shares: 100, EntryPrice: 100}}
	universe := map[string]domain.Stock{"AAPL": {Symbol: "AAPL", Price: 95}}
	tripped, _ := circuitBreakerTripped(positions, universe, 10000, 0.20)
	assert.False(t, tripped)
}

func TestCircuitBreakerNoPositionsNeverTrips(t *testing.T) {
	tripped, _ := circuitBreakerTripped(nil, map[string]domain.Stock{}, 10000, 0.20)
	assert.False(t, tripped)
}

func TestCircuitBreakerZeroAllocatedCapitalNeverTrips(t *testing.T) {
	positions := []domain.Position{{Ticker: "AAPL", Side: domain.SideLong, Shares: 100, EntryPrice: 100}}
	tripped, _ := circuitBreakerTripped(positions, map[string]domain.Stock{"AAPL": {Price: 1}}, 0, 0.20)
	assert.False(t, tripped)
}

func TestCircuitBreakerDefaultsLimitWhenUnset(t *testing.T) {
	positions := []domain.Position{{Ticker: "AAPL", Side: domain.SideLong, Shares: 100, EntryPrice: 100}}
	universe := map[string]domain.Stock{"AAPL": {Price: 79}}
	tripped, _ := circuitBreakerTripped(positions, universe, 10000, 0) // limit <=0 -> defaultMaxDrawdownLimit (0.20)
	assert.True(t, tripped)
}

func TestCircuitBreakerShortPositionProfitNotLoss(t *testing.T) {
	positions := []domain.Position{{Ticker: "AAPL", Side: domain.SideShort, Shares: 100, EntryPrice: 100}}
	universe := map[string]domain.Stock{"AAPL": {Price: 79}} // price dropped: short position is profitable
	tripped, _ := circuitBreakerTripped(positions, universe, 10000, 0.20)
	assert.False(t, tripped)
}

// --- S1: clean buy sizing math (via diffPositions + capToAvailableCash) ---

func TestDiffPositionsNewBuy(t *testing.T) {
	targets := []TargetPosition{{Ticker: "AAPL", TargetWeight: 0.10, SignalStrength: 80, Reason: "test"}}
	universe := map[string]domain.Stock{"AAPL": {Price: 150}}

	actions := diffPositions(targets, map[string]domain.Position{}, universe, 10000)
	require.Len(t, actions, 1)
	assert.Equal(t, domain.ActionBuy, actions[0].Action)
	assert.InDelta(t, 0.10, actions[0].TargetWeight, 1e-9)
	assert.Equal(t, 150.0, actions[0].Price)
}

func TestDiffPositionsIdempotentWithinDriftTolerance(t *testing.T) {
	targets := []TargetPosition{{Ticker: "AAPL", TargetWeight: 0.10}}
	current := map[string]domain.Position{
		"AAPL": {Ticker: "AAPL", Shares: 1000, CurrentPrice: 100},
	}
	allocatedCapital := 1000 * 100 / 0.10 // currentWeight == 0.10 exactly
	actions := diffPositions(targets, current, map[string]domain.Stock{"AAPL": {Price: 100}}, allocatedCapital)
	require.Len(t, actions, 1)
	assert.Equal(t, domain.ActionHold, actions[0].Action)

	// Running the diff again against the same inputs produces the same result (idempotence).
	actions2 := diffPositions(targets, current, map[string]domain.Stock{"AAPL": {Price: 100}}, allocatedCapital)
	assert.Equal(t, actions, actions2)
}

func TestDiffPositionsSellsUnselectedHoldings(t *testing.T) {
	current := map[string]domain.Position{"OLD": {Ticker: "OLD", Shares: 10, EntryPrice: 50}}
	actions := diffPositions(nil, current, map[string]domain.Stock{"OLD": {Price: 40}}, 10000)
	require.Len(t, actions, 1)
	assert.Equal(t, domain.ActionSell, actions[0].Action)
	assert.Equal(t, "no longer selected by strategy", actions[0].Reason)
}

func TestDiffPositionsIncreaseAndDecreaseOnDrift(t *testing.T) {
	targets := []TargetPosition{
		{Ticker: "UP", TargetWeight: 0.20},
		{Ticker: "DOWN", TargetWeight: 0.02},
	}
	current := map[string]domain.Position{
		"UP":   {Ticker: "UP", Shares: 10, CurrentPrice: 100},   // currentWeight = 1000/10000 = 0.10
		"DOWN": {Ticker: "DOWN", Shares: 10, CurrentPrice: 100}, // currentWeight = 0.10
	}
	stocks := map[string]domain.Stock{"UP": {Price: 100}, "DOWN": {Price: 100}}
	actions := diffPositions(targets, current, stocks, 10000)

	byTicker := map[string]domain.OrderAction{}
	for _, a := range actions {
		byTicker[a.Ticker] = a
	}
	assert.Equal(t, domain.ActionIncrease, byTicker["UP"].Action)
	assert.Equal(t, domain.ActionDecrease, byTicker["DOWN"].Action)
}

func TestCapToAvailableCashScalesDownNewBuys(t *testing.T) {
	targets := []TargetPosition{{Ticker: "A", TargetWeight: 0.30}, {Ticker: "B", TargetWeight: 0.30}}
	agent := domain.Agent{AllocatedCapital: 10000, CashBalance: 3000} // cash fraction = 0.30
	out := capToAvailableCash(targets, agent, map[string]domain.Position{})

	sum := out[0].TargetWeight + out[1].TargetWeight
	assert.InDelta(t, 0.30, sum, 1e-9)
}

func TestCapToAvailableCashZeroCashZeroesNewBuys(t *testing.T) {
	targets := []TargetPosition{{Ticker: "A", TargetWeight: 0.30}}
	agent := domain.Agent{AllocatedCapital: 10000, CashBalance: 0}
	out := capToAvailableCash(targets, agent, map[string]domain.Position{})
	assert.Equal(t, 0.0, out[0].TargetWeight)
}

func TestCapToAvailableCashLeavesHeldPositionsUntouched(t *testing.T) {
	targets := []TargetPosition{{Ticker: "A", TargetWeight: 0.50}}
	agent := domain.Agent{AllocatedCapital: 10000, CashBalance: 0}
	current := map[string]domain.Position{"A": {Ticker: "A"}}
	out := capToAvailableCash(targets, agent, current)
	assert.InDelta(t, 0.50, out[0].TargetWeight, 1e-9)
}

// --- S4: stop-loss override message format ---

func TestApplyExitOverridesStopLossMessage(t *testing.T) {
	positions := []domain.Position{{Ticker: "AAPL", Side: domain.SideLong, StopLossPrice: 140, EntryDate: time.Now()}}
	stocks := map[string]domain.Stock{"AAPL": {Price: 135}}

	actions := applyExitOverrides(nil, positions, stocks, 10000, nil)
	require.Len(t, actions, 1)
	assert.Equal(t, domain.ActionSell, actions[0].Action)
	assert.Equal(t, domain.ActivityStopHit, actions[0].ActivityHint)
	assert.Equal(t, "Stop-loss breached: price 135.00 <= stop 140.00", actions[0].Reason)
}

func TestApplyExitOverridesTakeProfitMessage(t *testing.T) {
	positions := []domain.Position{{Ticker: "AAPL", Side: domain.SideLong, TargetPrice: 160, EntryDate: time.Now()}}
	stocks := map[string]domain.Stock{"AAPL": {Price: 165}}

	actions := applyExitOverrides(nil, positions, stocks, 10000, nil)
	require.Len(t, actions, 1)
	assert.Equal(t, "Take-profit reached: price 165.00 >= target 160.00", actions[0].Reason)
	assert.Equal(t, domain.ActivityTargetHit, actions[0].ActivityHint)
}

func TestApplyExitOverridesMaxHoldingDaysMessage(t *testing.T) {
	positions := []domain.Position{{Ticker: "AAPL", Side: domain.SideLong, EntryDate: time.Now().Add(-40 * 24 * time.Hour), MaxHoldingDays: 30}}
	stocks := map[string]domain.Stock{"AAPL": {Price: 150}}

	actions := applyExitOverrides(nil, positions, stocks, 10000, nil)
	require.Len(t, actions, 1)
	assert.Equal(t, "Max holding period reached: held 40d >= 30d", actions[0].Reason)
}

func TestApplyExitOverridesDoesNotOverrideExistingSell(t *testing.T) {
	existing := []domain.OrderAction{{Ticker: "AAPL", Action: domain.ActionSell, Reason: "no longer selected by strategy"}}
	positions := []domain.Position{{Ticker: "AAPL", Side: domain.SideLong, StopLossPrice: 140, EntryDate: time.Now()}}
	stocks := map[string]domain.Stock{"AAPL": {Price: 135}}

	actions := applyExitOverrides(existing, positions, stocks, 10000, nil)
	require.Len(t, actions, 1)
	assert.Equal(t, "no longer selected by strategy", actions[0].Reason, "a diff-driven sell already exits the name")
}

func TestApplyExitOverridesOverridesNonSellAction(t *testing.T) {
	existing := []domain.OrderAction{{Ticker: "AAPL", Action: domain.ActionHold, Reason: "within drift tolerance"}}
	positions := []domain.Position{{Ticker: "AAPL", Side: domain.SideLong, StopLossPrice: 140, EntryDate: time.Now()}}
	stocks := map[string]domain.Stock{"AAPL": {Price: 135}}

	actions := applyExitOverrides(existing, positions, stocks, 10000, nil)
	require.Len(t, actions, 1)
	assert.Equal(t, domain.ActionSell, actions[0].Action)
}

func TestApplyExitOverridesMaxHoldingDaysAgentOverride(t *testing.T) {
	override := 10
	positions := []domain.Position{{Ticker: "AAPL", Side: domain.SideLong, EntryDate: time.Now().Add(-20 * 24 * time.Hour), MaxHoldingDays: 100}}
	stocks := map[string]domain.Stock{"AAPL": {Price: 150}}

	actions := applyExitOverrides(nil, positions, stocks, 10000, &override)
	require.Len(t, actions, 1)
	assert.Contains(t, actions[0].Reason, "held 20d >= 10d")
}

// --- S5: rebalance frequency gate skip message format ---

func TestRebalanceDueNoPriorActivity(t *testing.T) {
	e := &Engine{activity: &fakeActivityStore{}}
	agent := domain.Agent{ID: 1, StrategyParams: domain.StrategyParams{RebalanceFrequency: domain.RebalanceDaily}}
	due, reason, err := e.rebalanceDue(context.Background(), agent)
	require.NoError(t, err)
	assert.True(t, due)
	assert.Empty(t, reason)
}

func TestRebalanceDueSkipMessageFormat(t *testing.T) {
	store := &fakeActivityStore{rows: []domain.ActivityRow{
		{AgentID: 1, Type: domain.ActivityRebalance, CreatedAt: time.Now().Add(-2 * time.Hour)},
	}}
	e := &Engine{activity: store}
	agent := domain.Agent{ID: 1, StrategyParams: domain.StrategyParams{RebalanceFrequency: domain.RebalanceDaily}}

	due, reason, err := e.rebalanceDue(context.Background(), agent)
	require.NoError(t, err)
	assert.False(t, due)
	assert.Contains(t, reason, "Rebalance frequency is daily (min 24h) but only 2.0h since last rebalance")
}

func TestRebalanceDueIntradayWithZeroMinIntervalNeverSkips(t *testing.T) {
	store := &fakeActivityStore{rows: []domain.ActivityRow{
		{AgentID: 1, Type: domain.ActivityRebalance, CreatedAt: time.Now()},
	}}
	e := &Engine{activity: store}
	agent := domain.Agent{ID: 1, StrategyParams: domain.StrategyParams{RebalanceFrequency: domain.RebalanceIntraday}}

	due, _, err := e.rebalanceDue(context.Background(), agent)
	require.NoError(t, err)
	assert.True(t, due)
}

func TestRebalanceDueHonorsMinIntervalHoursOverride(t *testing.T) {
	store := &fakeActivityStore{rows: []domain.ActivityRow{
		{AgentID: 1, Type: domain.ActivityRebalance, CreatedAt: time.Now().Add(-1 * time.Hour)},
	}}
	e := &Engine{activity: store}
	agent := domain.Agent{ID: 1, StrategyParams: domain.StrategyParams{RebalanceFrequency: domain.RebalanceWeekly, MinIntervalHours: 0.5}}

	due, _, err := e.rebalanceDue(context.Background(), agent)
	require.NoError(t, err)
	assert.True(t, due, "a 0.5h override should already be satisfied after 1h")
}

// --- S2: macro risk reduction applied to target weights ---

func TestOverlayScaleMultipliesTargetWeight(t *testing.T) {
	targets := []TargetPosition{{Ticker: "AAPL", TargetWeight: 0.20}, {Ticker: "MSFT", TargetWeight: 0.10}}
	scale := 0.60
	for i := range targets {
		targets[i].TargetWeight *= scale
	}
	assert.InDelta(t, 0.12, targets[0].TargetWeight, 1e-9)
	assert.InDelta(t, 0.06, targets[1].TargetWeight, 1e-9)
}

func TestMovingAverage200UsesShorterWindowWhenFewerCloses(t *testing.T) {
	closes := []float64{10, 20, 30}
	assert.InDelta(t, 20.0, movingAverage200(closes), 1e-9)
}

func TestMovingAverage200Empty(t *testing.T) {
	assert.Equal(t, 0.0, movingAverage200(nil))
}

func TestEnrichThesisOnlyRewritesBuyAndIncrease(t *testing.T) {
	actions := []domain.OrderAction{
		{Ticker: "AAPL", Action: domain.ActionBuy, TargetWeight: 0.10},
		{Ticker: "MSFT", Action: domain.ActionSell, Reason: "no longer selected by strategy"},
	}
	targets := map[string]TargetPosition{"AAPL": {StopLossPrice: 90, TargetPrice: 120}}
	stocks := map[string]domain.Stock{"AAPL": {Price: 100}}
	integrated := map[string]domain.IntegratedScore{"AAPL": {Composite: 75}}

	out := enrichThesis(actions, targets, stocks, integrated, KindCrossSectionalFactor, domain.RegimeNormal, 30)
	assert.Contains(t, out[0].Reason, "cross_sectional_factor: integrated score 75.0")
	assert.Equal(t, "no longer selected by strategy", out[1].Reason, "sell reasons are left untouched")
}
