package repositories

import (
	"database/sql"

	"github.com/rs/zerolog"
)

// BaseRepository embeds the shared connection and logger every concrete
// repository needs; concrete repositories compose it rather than duplicating
// the db/log plumbing.
type BaseRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewBase constructs a BaseRepository bound to the given connection, with
// the logger pre-bound with a component field for the caller's table family.
func NewBase(db *sql.DB, log zerolog.Logger, component string) BaseRepository {
	return BaseRepository{
		db:  db,
		log: log.With().Str("component", component).Logger(),
	}
}

// DB returns the underlying connection for queries the embedding repository
// issues directly.
func (b *BaseRepository) DB() *sql.DB {
	return b.db
}

// Log returns the repository's bound logger.
func (b *BaseRepository) Log() zerolog.Logger {
	return b.log
}
