// Package pg persists the engagement engine in PostgreSQL. Each domain gets
// its own store type because the service interfaces overlap in method names;
// all of them share one connection pool.
package pg

import (
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

type Store struct {
	db *sql.DB
}

func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Tuned pool defaults; adjust under load tests
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// NewStore wraps an existing pool, mainly for tests.
func NewStore(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

// Scores returns the ledger-backed store.
func (s *Store) Scores() *ScoreStore { return &ScoreStore{db: s.db} }

// Polls returns the ballot-backed store.
func (s *Store) Polls() *PollStore { return &PollStore{db: s.db} }

// Alerts returns the alert-backed store.
func (s *Store) Alerts() *AlertStore { return &AlertStore{db: s.db} }

// isUniqueViolation reports whether the error is a unique-constraint breach.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
