package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"donato/backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

var (
	ErrContributionNotFound = errors.New("contribution not found")
	ErrDuplicateToken       = errors.New("contribution token already used")
)

const contributionColumns = `id::text, email, amount::text, currency, transaction_id, order_number, token, check_id, status, qr_url, created_at`

// InsertContribution stores an approved contribution. When the transaction is already
// recorded it returns the existing row and false.
func (r *Repository) InsertContribution(ctx context.Context, c models.Contribution) (models.Contribution, bool, error) {
	row := r.pool.QueryRow(ctx, `
INSERT INTO contributions (email, amount, currency, transaction_id, order_number, token, check_id, status, qr_url)
VALUES ($1, $2::numeric, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (transaction_id) DO NOTHING
RETURNING `+contributionColumns+`;`,
		nullString(strings.TrimSpace(c.Email)),
		c.Amount.StringFixed(2),
		strings.ToUpper(strings.TrimSpace(c.Currency)),
		strings.TrimSpace(c.TransactionID),
		strings.TrimSpace(c.OrderNumber),
		c.Token,
		strings.TrimSpace(c.CheckID),
		c.Status,
		nullString(c.QRURL),
	)
	out, err := scanContribution(row)
	if err == nil {
		return out, true, nil
	}
	if isUniqueViolation(err) {
		return models.Contribution{}, false, ErrDuplicateToken
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return models.Contribution{}, false, err
	}

	existing, err := r.GetContributionByTransactionID(ctx, c.TransactionID)
	if err != nil {
		return models.Contribution{}, false, fmt.Errorf("load recorded contribution: %w", err)
	}
	return existing, false, nil
}

// GetContributionByTransactionID loads a contribution by gateway transaction id.
func (r *Repository) GetContributionByTransactionID(ctx context.Context, transactionID string) (models.Contribution, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+contributionColumns+` FROM contributions WHERE transaction_id = $1`, strings.TrimSpace(transactionID))
	out, err := scanContribution(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Contribution{}, ErrContributionNotFound
	}
	return out, err
}

// GetContributionByToken loads a contribution by its issued token.
func (r *Repository) GetContributionByToken(ctx context.Context, token string) (models.Contribution, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+contributionColumns+` FROM contributions WHERE token = $1`, strings.TrimSpace(token))
	out, err := scanContribution(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Contribution{}, ErrContributionNotFound
	}
	return out, err
}

// ListContributionsByOrderNumber is used by reconciliation to find rows for a gateway order.
func (r *Repository) ListContributionsByOrderNumber(ctx context.Context, orderNumber string) ([]models.Contribution, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+contributionColumns+` FROM contributions WHERE order_number = $1 ORDER BY created_at`, strings.TrimSpace(orderNumber))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Contribution
	for rows.Next() {
		c, err := scanContribution(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanContribution(row pgx.Row) (models.Contribution, error) {
	var out models.Contribution
	var email sql.NullString
	var amount string
	var qrURL sql.NullString
	if err := row.Scan(
		&out.ID,
		&email,
		&amount,
		&out.Currency,
		&out.TransactionID,
		&out.OrderNumber,
		&out.Token,
		&out.CheckID,
		&out.Status,
		&qrURL,
		&out.CreatedAt,
	); err != nil {
		return out, err
	}
	parsed, err := decimal.NewFromString(amount)
	if err != nil {
		return out, fmt.Errorf("parse stored amount %q: %w", amount, err)
	}
	out.Amount = parsed
	out.Email = email.String
	out.QRURL = qrURL.String
	return out, nil
}
