package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

const counterRetries = 3

// IncrementDailyCounter bumps the counter row for day and returns the new value. The
// first call of a day inserts the row with 1. The upsert holds the row lock for the
// whole statement, so concurrent callers always see distinct values.
func (r *Repository) IncrementDailyCounter(ctx context.Context, day time.Time) (int, error) {
	date := day.Format("2006-01-02")
	var lastErr error
	for attempt := 0; attempt < counterRetries; attempt++ {
		var seq int
		err := r.pool.QueryRow(ctx, `
INSERT INTO order_numbers (order_date, last_seq)
VALUES ($1::date, 1)
ON CONFLICT (order_date) DO UPDATE SET
	last_seq = order_numbers.last_seq + 1,
	updated_at = now()
RETURNING last_seq;`, date).Scan(&seq)
		if err == nil {
			return seq, nil
		}
		if !isRetryable(err) {
			return 0, err
		}
		lastErr = err
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
	}
	return 0, fmt.Errorf("increment order counter for %s: %w", date, lastErr)
}

// isRetryable matches serialization failures and deadlocks.
func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}
