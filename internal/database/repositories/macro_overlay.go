package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/SalomePA9/AgentFund-sub000/internal/domain"
)

// MacroOverlayRepository is the modernc.org/sqlite-backed implementation of
// store.MacroOverlayStore.
type MacroOverlayRepository struct {
	BaseRepository
}

// NewMacroOverlayRepository constructs a MacroOverlayRepository.
func NewMacroOverlayRepository(db *sql.DB, log zerolog.Logger) *MacroOverlayRepository {
	return &MacroOverlayRepository{BaseRepository: NewBase(db, log, "macro_overlay_repository")}
}

func (r *MacroOverlayRepository) SaveState(ctx context.Context, state domain.MacroOverlayState) error {
	signalsJSON, err := json.Marshal(state.SignalValues)
	if err != nil {
		return fmt.Errorf("encode macro overlay signal values: %w", err)
	}
	warningsJSON, err := json.Marshal(state.Warnings)
	if err != nil {
		return fmt.Errorf("encode macro overlay warnings: %w", err)
	}

	_, err = r.DB().ExecContext(ctx, `
		INSERT INTO macro_risk_overlay_state (scale_factor, composite, regime, signal_values, warnings, computed_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		state.ScaleFactor, state.Composite, state.Regime, string(signalsJSON), string(warningsJSON), state.ComputedAt)
	if err != nil {
		return fmt.Errorf("save macro overlay state: %w", err)
	}
	return nil
}

func (r *MacroOverlayRepository) LatestState(ctx context.Context) (domain.MacroOverlayState, bool, error) {
	row := r.DB().QueryRowContext(ctx, `
		SELECT id, scale_factor, composite, regime, signal_values, warnings, computed_at
		FROM macro_risk_overlay_state ORDER BY computed_at DESC LIMIT 1`)

	var s domain.MacroOverlayState
	var signalsJSON, warningsJSON string
	if err := row.Scan(&s.ID, &s.ScaleFactor, &s.Composite, &s.Regime, &signalsJSON, &warningsJSON, &s.ComputedAt); err != nil {
		if err == sql.ErrNoRows {
			return domain.MacroOverlayState{}, false, nil
		}
		return domain.MacroOverlayState{}, false, fmt.Errorf("latest macro overlay state: %w", err)
	}

	if err := json.Unmarshal([]byte(signalsJSON), &s.SignalValues); err != nil {
		return domain.MacroOverlayState{}, false, fmt.Errorf("decode macro overlay signal values: %w", err)
	}
	if err := json.Unmarshal([]byte(warningsJSON), &s.Warnings); err != nil {
		return domain.MacroOverlayState{}, false, fmt.Errorf("decode macro overlay warnings: %w", err)
	}
	return s, true, nil
}

func (r *MacroOverlayRepository) GetIndicator(ctx context.Context, name string) (float64, bool, error) {
	row := r.DB().QueryRowContext(ctx, `SELECT value FROM macro_indicators WHERE indicator_name = ?`, name)
	var value float64
	if err := row.Scan(&value); err != nil {
		if err == sql.ErrNoRows {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("get indicator %s: %w", name, err)
	}
	return value, true, nil
}

func (r *MacroOverlayRepository) UpsertIndicator(ctx context.Context, name string, value float64) error {
	_, err := r.DB().ExecContext(ctx, `
		INSERT INTO macro_indicators (indicator_name, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(indicator_name) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		name, value)
	if err != nil {
		return fmt.Errorf("upsert indicator %s: %w", name, err)
	}
	return nil
}
