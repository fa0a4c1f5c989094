package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository wraps the pgx pool.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func nullString(val string) interface{} {
	if val == "" {
		return nil
	}
	return val
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
