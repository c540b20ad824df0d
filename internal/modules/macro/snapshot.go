package macro

import (
	"context"
	"time"

	"github.com/SalomePA9/AgentFund-sub000/internal/domain"
	"github.com/SalomePA9/AgentFund-sub000/internal/store"
)

// Indicator names persisted by the (out-of-scope) macro-data fetcher and
// consulted here; seasonality is computed in-process instead of fetched.
const (
	IndicatorCreditSpread   = "credit_spread_signal"
	IndicatorVolRegime      = "vol_regime_signal"
	IndicatorYieldCurve     = "yield_curve_signal"
	IndicatorInsiderBreadth = "insider_breadth_signal"
)

// BuildSnapshot assembles a MacroSnapshot from persisted macro-indicator
// rows (credit spread, volatility regime, yield curve, insider breadth) and
// a deterministically computed seasonality signal.
func BuildSnapshot(ctx context.Context, indicators store.MacroOverlayStore, now time.Time) (domain.MacroSnapshot, error) {
	snapshot := domain.MacroSnapshot{
		Seasonality:      SeasonalitySignal(now),
		SeasonalityAvail: true,
	}

	if v, ok, err := indicators.GetIndicator(ctx, IndicatorCreditSpread); err != nil {
		return domain.MacroSnapshot{}, err
	} else if ok {
		snapshot.CreditSpread = v
		snapshot.CreditSpreadAvail = true
	}

	if v, ok, err := indicators.GetIndicator(ctx, IndicatorVolRegime); err != nil {
		return domain.MacroSnapshot{}, err
	} else if ok {
		snapshot.VolRegime = v
		snapshot.VolRegimeAvail = true
	}

	if v, ok, err := indicators.GetIndicator(ctx, IndicatorYieldCurve); err != nil {
		return domain.MacroSnapshot{}, err
	} else if ok {
		snapshot.YieldCurve = v
		snapshot.YieldCurveAvail = true
	}

	if v, ok, err := indicators.GetIndicator(ctx, IndicatorInsiderBreadth); err != nil {
		return domain.MacroSnapshot{}, err
	} else if ok {
		snapshot.InsiderBreadth = v
		snapshot.InsiderBreadthAvail = true
	}

	return snapshot, nil
}
