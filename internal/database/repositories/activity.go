package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/SalomePA9/AgentFund-sub000/internal/domain"
)

// ActivityRepository is the modernc.org/sqlite-backed implementation of
// store.ActivityStore.
type ActivityRepository struct {
	BaseRepository
}

// NewActivityRepository constructs an ActivityRepository.
func NewActivityRepository(db *sql.DB, log zerolog.Logger) *ActivityRepository {
	return &ActivityRepository{BaseRepository: NewBase(db, log, "activity_repository")}
}

func (r *ActivityRepository) InsertActivity(ctx context.Context, row domain.ActivityRow) error {
	detailsJSON, err := json.Marshal(row.Details)
	if err != nil {
		return fmt.Errorf("encode activity details for agent %d: %w", row.AgentID, err)
	}

	_, err = r.DB().ExecContext(ctx, `
		INSERT INTO agent_activity (id, agent_id, type, details, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		row.ID, row.AgentID, row.Type, string(detailsJSON), row.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert activity for agent %d: %w", row.AgentID, err)
	}
	return nil
}

func (r *ActivityRepository) LastActivityOfType(ctx context.Context, agentID int64, activityType domain.ActivityType) (domain.ActivityRow, bool, error) {
	row := r.DB().QueryRowContext(ctx, `
		SELECT id, agent_id, type, details, created_at FROM agent_activity
		WHERE agent_id = ? AND type = ?
		ORDER BY created_at DESC LIMIT 1`, agentID, activityType)

	var a domain.ActivityRow
	var detailsJSON string
	if err := row.Scan(&a.ID, &a.AgentID, &a.Type, &detailsJSON, &a.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return domain.ActivityRow{}, false, nil
		}
		return domain.ActivityRow{}, false, fmt.Errorf("last activity for agent %d type %s: %w", agentID, activityType, err)
	}

	if err := json.Unmarshal([]byte(detailsJSON), &a.Details); err != nil {
		return domain.ActivityRow{}, false, fmt.Errorf("decode activity details: %w", err)
	}
	return a, true, nil
}
