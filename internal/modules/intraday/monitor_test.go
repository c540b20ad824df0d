package intraday

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/SalomePA9/AgentFund-sub000/internal/domain"
)

func TestExitReasonStopLossLong(t *testing.T) {
	pos := domain.Position{Side: domain.SideLong, StopLossPrice: 140, EntryDate: time.Now()}
	reason, hint := exitReason(pos, 135, nil)
	assert.Equal(t, "Stop-loss breached: price 135.00 <= stop 140.00", reason)
	assert.Equal(t, domain.ActivityStopHit, hint)
}

func TestExitReasonStopLossShort(t *testing.T) {
	pos := domain.Position{Side: domain.SideShort, StopLossPrice: 110, EntryDate: time.Now()}
	reason, hint := exitReason(pos, 115, nil)
	assert.Equal(t, "Stop-loss breached: price 115.00 >= stop 110.00", reason)
	assert.Equal(t, domain.ActivityStopHit, hint)
}

func TestExitReasonTakeProfitLong(t *testing.T) {
	pos := domain.Position{Side: domain.SideLong, TargetPrice: 160, EntryDate: time.Now()}
	reason, hint := exitReason(pos, 165, nil)
	assert.Equal(t, "Take-profit reached: price 165.00 >= target 160.00", reason)
	assert.Equal(t, domain.ActivityTargetHit, hint)
}

func TestExitReasonTakeProfitShort(t *testing.T) {
	pos := domain.Position{Side: domain.SideShort, TargetPrice: 90, EntryDate: time.Now()}
	reason, hint := exitReason(pos, 85, nil)
	assert.Equal(t, "Take-profit reached: price 85.00 <= target 90.00", reason)
	assert.Equal(t, domain.ActivityTargetHit, hint)
}

func TestExitReasonStopTakesPriorityOverTargetWhenBothBreached(t *testing.T) {
	// A long position whose stop and target have both somehow been crossed
	// by the same quote: stop-loss is checked first per priority order.
	pos := domain.Position{Side: domain.SideLong, StopLossPrice: 140, TargetPrice: 120, EntryDate: time.Now()}
	reason, hint := exitReason(pos, 130, nil)
	assert.Contains(t, reason, "Stop-loss breached")
	assert.Equal(t, domain.ActivityStopHit, hint)
}

func TestExitReasonAgingWhenNoStopOrTargetBreach(t *testing.T) {
	pos := domain.Position{
		Side: domain.SideLong, StopLossPrice: 50, TargetPrice: 500,
		MaxHoldingDays: 30, EntryDate: time.Now().Add(-40 * 24 * time.Hour),
	}
	reason, hint := exitReason(pos, 150, nil)
	assert.Equal(t, "Max holding period reached: held 40d >= 30d", reason)
	assert.Equal(t, domain.ActivitySell, hint)
}

func TestExitReasonAgingOverrideFromAgentParams(t *testing.T) {
	override := 5
	pos := domain.Position{Side: domain.SideLong, MaxHoldingDays: 100, EntryDate: time.Now().Add(-10 * 24 * time.Hour)}
	reason, _ := exitReason(pos, 150, &override)
	assert.Contains(t, reason, "held 10d >= 5d")
}

func TestExitReasonNoneWhenWithinBounds(t *testing.T) {
	pos := domain.Position{
		Side: domain.SideLong, StopLossPrice: 90, TargetPrice: 120,
		MaxHoldingDays: 30, EntryDate: time.Now(),
	}
	reason, hint := exitReason(pos, 100, nil)
	assert.Empty(t, reason)
	assert.Empty(t, hint)
}

func TestExitReasonZeroStopOrTargetNeverTriggers(t *testing.T) {
	pos := domain.Position{Side: domain.SideLong, StopLossPrice: 0, TargetPrice: 0, EntryDate: time.Now()}
	reason, _ := exitReason(pos, 0.01, nil)
	assert.Empty(t, reason)
}

func TestJobName(t *testing.T) {
	j := NewJob(nil, nil, zerolog.Nop())
	assert.Equal(t, "intraday_monitor", j.Name())
}
