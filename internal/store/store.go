// Package store declares the narrow, per-concern persistence contracts the
// core depends on. Each interface is backed by a concrete
// modernc.org/sqlite implementation in internal/database/repositories; the
// core itself only ever depends on these interfaces, never the concrete
// types, so tests can substitute fakes per concern.
package store

import (
	"context"
	"time"

	"github.com/SalomePA9/AgentFund-sub000/internal/domain"
)

// AgentStore persists Agent configuration and status.
type AgentStore interface {
	GetAgent(ctx context.Context, id int64) (domain.Agent, error)
	ListActiveAgents(ctx context.Context) ([]domain.Agent, error)
	ListAgentsByUser(ctx context.Context, userID int64) ([]domain.Agent, error)
	UpdateStatus(ctx context.Context, id int64, status domain.AgentStatus) error
	UpdateCashBalance(ctx context.Context, id int64, cashBalance float64) error
}

// PositionStore persists Position rows for agents.
type PositionStore interface {
	GetOpenPositions(ctx context.Context, agentID int64) ([]domain.Position, error)
	GetOpenPositionsByTicker(ctx context.Context, agentID int64, ticker string) ([]domain.Position, error)
	InsertPosition(ctx context.Context, pos domain.Position) (int64, error)
	UpdateShares(ctx context.Context, id int64, shares float64) error
	UpdateCurrentPrice(ctx context.Context, id int64, currentPrice float64, unrealizedPL, unrealizedPLPct float64) error
	UpdateBracketOrderID(ctx context.Context, id int64, bracketStopOrderID string) error
	ClosePosition(ctx context.Context, id int64, exitPrice float64, exitDate time.Time, exitRationale string, realizedPL, realizedPLPct float64, exitOrderID string) error
}

// UserStore reads the credential fields the core consults to resolve a
// broker connection; authentication and credential management themselves
// are an external collaborator's job.
type UserStore interface {
	GetUser(ctx context.Context, id int64) (domain.User, error)
}

// StockStore reads the shared, read-only-during-execution stock universe.
type StockStore interface {
	GetStock(ctx context.Context, symbol string) (domain.Stock, error)
	ListStocks(ctx context.Context, symbols []string) ([]domain.Stock, error)
	UpsertStock(ctx context.Context, s domain.Stock) error
	GetPriceHistory(ctx context.Context, symbol string, maxDays int) ([]float64, error)
	GetSentimentHistory(ctx context.Context, symbol string, lookbackDays int) ([]domain.SentimentInput, error)
}

// ActivityStore appends audit rows for agent actions.
type ActivityStore interface {
	InsertActivity(ctx context.Context, row domain.ActivityRow) error
	LastActivityOfType(ctx context.Context, agentID int64, activityType domain.ActivityType) (domain.ActivityRow, bool, error)
}

// MacroOverlayStore persists the process-singleton-per-run overlay snapshot.
type MacroOverlayStore interface {
	SaveState(ctx context.Context, state domain.MacroOverlayState) error
	LatestState(ctx context.Context) (domain.MacroOverlayState, bool, error)
	GetIndicator(ctx context.Context, name string) (float64, bool, error)
	UpsertIndicator(ctx context.Context, name string, value float64) error
}
