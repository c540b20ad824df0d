package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/SalomePA9/AgentFund-sub000/internal/domain"
)

// PositionRepository is the modernc.org/sqlite-backed implementation of
// store.PositionStore.
type PositionRepository struct {
	BaseRepository
}

// NewPositionRepository constructs a PositionRepository.
func NewPositionRepository(db *sql.DB, log zerolog.Logger) *PositionRepository {
	return &PositionRepository{BaseRepository: NewBase(db, log, "position_repository")}
}

const positionColumns = `id, agent_id, ticker, side, shares, entry_price, entry_date, entry_rationale,
	current_price, stop_loss_price, target_price, max_holding_days, status,
	exit_price, exit_date, exit_rationale, realized_pl, realized_pl_pct,
	entry_order_id, exit_order_id, bracket_stop_order_id`

func scanPosition(row interface{ Scan(...interface{}) error }) (domain.Position, error) {
	var p domain.Position
	var stopLoss, targetPrice sql.NullFloat64
	var maxHoldingDays sql.NullInt64
	var exitPrice, realizedPL, realizedPLPct sql.NullFloat64
	var exitDate sql.NullTime
	var exitRationale, entryOrderID, exitOrderID, bracketStopOrderID sql.NullString

	if err := row.Scan(&p.ID, &p.AgentID, &p.Ticker, &p.Side, &p.Shares, &p.EntryPrice, &p.EntryDate,
		&p.EntryRationale, &p.CurrentPrice, &stopLoss, &targetPrice, &maxHoldingDays, &p.Status,
		&exitPrice, &exitDate, &exitRationale, &realizedPL, &realizedPLPct,
		&entryOrderID, &exitOrderID, &bracketStopOrderID); err != nil {
		return domain.Position{}, err
	}

	p.StopLossPrice = stopLoss.Float64
	p.TargetPrice = targetPrice.Float64
	p.MaxHoldingDays = int(maxHoldingDays.Int64)
	p.EntryOrderID = entryOrderID.String
	p.ExitOrderID = exitOrderID.String
	p.BracketStopOrderID = bracketStopOrderID.String
	p.ExitRationale = exitRationale.String

	if exitPrice.Valid {
		v := exitPrice.Float64
		p.ExitPrice = &v
	}
	if exitDate.Valid {
		v := exitDate.Time
		p.ExitDate = &v
	}
	if realizedPL.Valid {
		v := realizedPL.Float64
		p.RealizedPL = &v
	}
	if realizedPLPct.Valid {
		v := realizedPLPct.Float64
		p.RealizedPLPct = &v
	}

	return p, nil
}

func (r *PositionRepository) GetOpenPositions(ctx context.Context, agentID int64) ([]domain.Position, error) {
	query := fmt.Sprintf("SELECT %s FROM positions WHERE agent_id = ? AND status = ?", positionColumns)
	rows, err := r.DB().QueryContext(ctx, query, agentID, domain.PositionOpen)
	if err != nil {
		return nil, fmt.Errorf("get open positions for agent %d: %w", agentID, err)
	}
	defer rows.Close()
	return scanPositions(rows)
}

func (r *PositionRepository) GetOpenPositionsByTicker(ctx context.Context, agentID int64, ticker string) ([]domain.Position, error) {
	query := fmt.Sprintf("SELECT %s FROM positions WHERE agent_id = ? AND ticker = ? AND status = ?", positionColumns)
	rows, err := r.DB().QueryContext(ctx, query, agentID, ticker, domain.PositionOpen)
	if err != nil {
		return nil, fmt.Errorf("get open positions for agent %d ticker %s: %w", agentID, ticker, err)
	}
	defer rows.Close()
	return scanPositions(rows)
}

func scanPositions(rows *sql.Rows) ([]domain.Position, error) {
	var out []domain.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("scan position row: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PositionRepository) InsertPosition(ctx context.Context, pos domain.Position) (int64, error) {
	res, err := r.DB().ExecContext(ctx, `
		INSERT INTO positions (agent_id, ticker, side, shares, entry_price, entry_date, entry_rationale,
			current_price, stop_loss_price, target_price, max_holding_days, status, entry_order_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		pos.AgentID, pos.Ticker, pos.Side, pos.Shares, pos.EntryPrice, pos.EntryDate, pos.EntryRationale,
		pos.EntryPrice, pos.StopLossPrice, pos.TargetPrice, pos.MaxHoldingDays, domain.PositionOpen, pos.EntryOrderID)
	if err != nil {
		return 0, fmt.Errorf("insert position for agent %d ticker %s: %w", pos.AgentID, pos.Ticker, err)
	}
	return res.LastInsertId()
}

func (r *PositionRepository) UpdateShares(ctx context.Context, id int64, shares float64) error {
	_, err := r.DB().ExecContext(ctx, `UPDATE positions SET shares = ? WHERE id = ?`, shares, id)
	if err != nil {
		return fmt.Errorf("update position %d shares: %w", id, err)
	}
	return nil
}

func (r *PositionRepository) UpdateCurrentPrice(ctx context.Context, id int64, currentPrice float64, unrealizedPL, unrealizedPLPct float64) error {
	_, err := r.DB().ExecContext(ctx, `UPDATE positions SET current_price = ? WHERE id = ?`, currentPrice, id)
	if err != nil {
		return fmt.Errorf("update position %d current price: %w", id, err)
	}
	return nil
}

func (r *PositionRepository) UpdateBracketOrderID(ctx context.Context, id int64, bracketStopOrderID string) error {
	_, err := r.DB().ExecContext(ctx, `UPDATE positions SET bracket_stop_order_id = ? WHERE id = ?`, bracketStopOrderID, id)
	if err != nil {
		return fmt.Errorf("update position %d bracket order id: %w", id, err)
	}
	return nil
}

func (r *PositionRepository) ClosePosition(ctx context.Context, id int64, exitPrice float64, exitDate time.Time, exitRationale string, realizedPL, realizedPLPct float64, exitOrderID string) error {
	_, err := r.DB().ExecContext(ctx, `
		UPDATE positions
		SET status = ?, exit_price = ?, exit_date = ?, exit_rationale = ?, realized_pl = ?, realized_pl_pct = ?, exit_order_id = ?
		WHERE id = ?`,
		domain.PositionClosed, exitPrice, exitDate, exitRationale, realizedPL, realizedPLPct, exitOrderID, id)
	if err != nil {
		return fmt.Errorf("close position %d: %w", id, err)
	}
	return nil
}
