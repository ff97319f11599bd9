// Package postgresrepo is a PostgreSQL-backed refresh token ledger over
// database/sql (pgx stdlib driver).
package postgresrepo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/clockwrk/authcore/token/refresh"
)

var _ refresh.Repo = (*PostgresRefreshTokenRepo)(nil)

type PostgresRefreshTokenRepo struct {
	db *sql.DB
}

func New(db *sql.DB) *PostgresRefreshTokenRepo {
	return &PostgresRefreshTokenRepo{db: db}
}

func (r *PostgresRefreshTokenRepo) Save(ctx context.Context, record *refresh.Record) error {
	query := `
		INSERT INTO refresh_tokens (id, account_id, token, expires_at, revoked)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := r.db.ExecContext(ctx, query,
		record.ID, record.AccountID, record.Token, record.ExpiresAt, record.Revoked); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRefreshTokenRepo) Get(ctx context.Context, token string) (*refresh.Record, error) {
	query := `
		SELECT id, account_id, expires_at, revoked
		FROM refresh_tokens
		WHERE token = $1
	`
	record := &refresh.Record{Token: token}
	err := r.db.QueryRowContext(ctx, query, token).Scan(
		&record.ID, &record.AccountID, &record.ExpiresAt, &record.Revoked)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, refresh.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return record, nil
}

func (r *PostgresRefreshTokenRepo) RevokeAllForAccount(ctx context.Context, accountID string) error {
	query := `
		UPDATE refresh_tokens
		SET revoked = TRUE
		WHERE account_id = $1 AND NOT revoked
	`
	if _, err := r.db.ExecContext(ctx, query, accountID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRefreshTokenRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	query := `
		DELETE FROM refresh_tokens
		WHERE expires_at <= $1 OR revoked
	`
	res, err := r.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return deleted, nil
}
