package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/SalomePA9/AgentFund-sub000/internal/domain"
)

// AgentRepository is the modernc.org/sqlite-backed implementation of
// store.AgentStore.
type AgentRepository struct {
	BaseRepository
}

// NewAgentRepository constructs an AgentRepository.
func NewAgentRepository(db *sql.DB, log zerolog.Logger) *AgentRepository {
	return &AgentRepository{BaseRepository: NewBase(db, log, "agent_repository")}
}

const agentColumns = `id, user_id, name, persona, status, strategy_type, strategy_params, risk_params,
	allocated_capital, cash_balance, horizon_days, created_at, end_date`

func scanAgent(row interface{ Scan(...interface{}) error }) (domain.Agent, error) {
	var a domain.Agent
	var strategyParamsJSON, riskParamsJSON string
	var endDate sql.NullTime

	if err := row.Scan(&a.ID, &a.UserID, &a.Name, &a.Persona, &a.Status, &a.StrategyType,
		&strategyParamsJSON, &riskParamsJSON, &a.AllocatedCapital, &a.CashBalance,
		&a.HorizonDays, &a.CreatedAt, &endDate); err != nil {
		return domain.Agent{}, err
	}

	dec := json.NewDecoder(strings.NewReader(strategyParamsJSON))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&a.StrategyParams); err != nil {
		return domain.Agent{}, fmt.Errorf("decode strategy_params: %w", err)
	}
	if err := json.Unmarshal([]byte(riskParamsJSON), &a.RiskParams); err != nil {
		return domain.Agent{}, fmt.Errorf("decode risk_params: %w", err)
	}
	if endDate.Valid {
		a.EndDate = &endDate.Time
	}
	return a, nil
}

func (r *AgentRepository) GetAgent(ctx context.Context, id int64) (domain.Agent, error) {
	query := fmt.Sprintf("SELECT %s FROM agents WHERE id = ?", agentColumns)
	row := r.DB().QueryRowContext(ctx, query, id)
	agent, err := scanAgent(row)
	if err != nil {
		return domain.Agent{}, fmt.Errorf("get agent %d: %w", id, err)
	}
	return agent, nil
}

func (r *AgentRepository) ListActiveAgents(ctx context.Context) ([]domain.Agent, error) {
	query := fmt.Sprintf("SELECT %s FROM agents WHERE status = ?", agentColumns)
	rows, err := r.DB().QueryContext(ctx, query, domain.AgentActive)
	if err != nil {
		return nil, fmt.Errorf("list active agents: %w", err)
	}
	defer rows.Close()
	return scanAgents(rows)
}

func (r *AgentRepository) ListAgentsByUser(ctx context.Context, userID int64) ([]domain.Agent, error) {
	query := fmt.Sprintf("SELECT %s FROM agents WHERE user_id = ?", agentColumns)
	rows, err := r.DB().QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list agents for user %d: %w", userID, err)
	}
	defer rows.Close()
	return scanAgents(rows)
}

func scanAgents(rows *sql.Rows) ([]domain.Agent, error) {
	var agents []domain.Agent
	for rows.Next() {
		agent, err := scanAgent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan agent row: %w", err)
		}
		agents = append(agents, agent)
	}
	return agents, rows.Err()
}

func (r *AgentRepository) UpdateStatus(ctx context.Context, id int64, status domain.AgentStatus) error {
	_, err := r.DB().ExecContext(ctx, `UPDATE agents SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("update agent %d status: %w", id, err)
	}
	return nil
}

func (r *AgentRepository) UpdateCashBalance(ctx context.Context, id int64, cashBalance float64) error {
	_, err := r.DB().ExecContext(ctx, `UPDATE agents SET cash_balance = ? WHERE id = ?`, cashBalance, id)
	if err != nil {
		return fmt.Errorf("update agent %d cash balance: %w", id, err)
	}
	return nil
}
