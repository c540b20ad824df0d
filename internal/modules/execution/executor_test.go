package execution

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SalomePA9/AgentFund-sub000/internal/domain"
)

func TestOrderedForExecutionSellsAndDecreasesBeforeBuys(t *testing.T) {
	actions := []domain.OrderAction{
		{Ticker: "BUY1", Action: domain.ActionBuy},
		{Ticker: "HOLD1", Action: domain.ActionHold},
		{Ticker: "SELL1", Action: domain.ActionSell},
		{Ticker: "INCREASE1", Action: domain.ActionIncrease},
		{Ticker: "DECREASE1", Action: domain.ActionDecrease},
	}
	out := orderedForExecution(actions)
	require.Len(t, out, 5)

	rankOf := func(ticker string) int {
		for i, a := range out {
			if a.Ticker == ticker {
				return i
			}
		}
		t.Fatalf("ticker %s missing from ordered output", ticker)
		return -1
	}

	assert.Less(t, rankOf("SELL1"), rankOf("BUY1"))
	assert.Less(t, rankOf("DECREASE1"), rankOf("BUY1"))
	assert.Less(t, rankOf("SELL1"), rankOf("HOLD1"))
	assert.Less(t, rankOf("BUY1"), rankOf("HOLD1"))
}

func TestOrderedForExecutionDoesNotMutateInput(t *testing.T) {
	actions := []domain.OrderAction{{Ticker: "A", Action: domain.ActionBuy}, {Ticker: "B", Action: domain.ActionSell}}
	_ = orderedForExecution(actions)
	assert.Equal(t, "A", actions[0].Ticker, "orderedForExecution must copy before sorting")
}

func TestRound2(t *testing.T) {
	assert.Equal(t, 10.12, round2(10.1234))
	assert.Equal(t, 10.13, round2(10.126))
	assert.Equal(t, 0.0, round2(0.0001))
}

func TestPositionSizeCrossCheckInsufficientCloses(t *testing.T) {
	assert.Equal(t, 0.0, PositionSizeCrossCheck(100000, []float64{100}, 50, 49))
}

func TestPositionSizeCrossCheckPositive(t *testing.T) {
	closes := make([]float64, 20)
	for i := range closes {
		closes[i] = 100
	}
	qty := PositionSizeCrossCheck(100000, closes, 100, 95)
	assert.Greater(t, qty, 0.0)
}

func TestRiskMetricsNilWhenNoUsableHistory(t *testing.T) {
	actions := []domain.OrderAction{{Ticker: "AAPL", Action: domain.ActionBuy}}
	universe := map[string]domain.Stock{"AAPL": {Symbol: "AAPL"}} // no closes
	assert.Nil(t, riskMetrics(actions, universe))
}

func TestRiskMetricsPopulatedFromPriceHistory(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100 + float64(i%5)
	}
	actions := []domain.OrderAction{{Ticker: "AAPL", Action: domain.ActionBuy}}
	universe := map[string]domain.Stock{"AAPL": {Symbol: "AAPL", Closes: closes}}

	metrics := riskMetrics(actions, universe)
	require.NotNil(t, metrics)
	assert.Contains(t, metrics, "avg_max_drawdown")
}

func TestExecuteNoOpWhenResultHasErrorOrNoActions(t *testing.T) {
	x := &Executor{}
	summary := x.Execute(nil, domain.Agent{}, domain.ExecutionResult{Error: "unrecognized strategy type"}, nil, nil)
	assert.Equal(t, "success", summary.Status)
	assert.Equal(t, 0, summary.OrdersPlaced)

	summary = x.Execute(nil, domain.Agent{}, domain.ExecutionResult{}, nil, nil)
	assert.Equal(t, "success", summary.Status)
	assert.False(t, summary.Deferred)
}
