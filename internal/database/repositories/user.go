package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/SalomePA9/AgentFund-sub000/internal/domain"
)

// UserRepository is the modernc.org/sqlite-backed implementation of
// store.UserStore.
type UserRepository struct {
	BaseRepository
}

// NewUserRepository constructs a UserRepository.
func NewUserRepository(db *sql.DB, log zerolog.Logger) *UserRepository {
	return &UserRepository{BaseRepository: NewBase(db, log, "user_repository")}
}

const userColumns = `id, email, broker_api_key, broker_api_secret, total_capital, created_at`

func (r *UserRepository) GetUser(ctx context.Context, id int64) (domain.User, error) {
	query := fmt.Sprintf("SELECT %s FROM users WHERE id = ?", userColumns)
	row := r.DB().QueryRowContext(ctx, query, id)

	var u domain.User
	var apiKey, apiSecret sql.NullString
	if err := row.Scan(&u.ID, &u.Email, &apiKey, &apiSecret, &u.TotalCapital, &u.CreatedAt); err != nil {
		return domain.User{}, fmt.Errorf("get user %d: %w", id, err)
	}
	u.BrokerAPIKey = apiKey.String
	u.BrokerAPISecret = apiSecret.String
	return u, nil
}
