// Package postgresrepo is a PostgreSQL-backed account repository over
// database/sql (pgx stdlib driver).
package postgresrepo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/clockwrk/authcore/accounts"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

var _ accounts.Repo = (*PostgresAccountRepo)(nil)

type PostgresAccountRepo struct {
	db *sql.DB
}

func New(db *sql.DB) *PostgresAccountRepo {
	return &PostgresAccountRepo{db: db}
}

func (r *PostgresAccountRepo) Create(ctx context.Context, account *accounts.Account) error {
	if account.ID == "" {
		account.ID = uuid.New().String()
	}
	query := `
		INSERT INTO accounts (id, email, password_hash, name, profile_picture_url, email_verified, otp, otp_expiry, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.ExecContext(ctx, query,
		account.ID, account.Email, account.PasswordHash, account.Name,
		account.ProfilePictureURL, account.EmailVerified,
		nullString(account.OTP), nullTime(account.OTPExpiry), account.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return accounts.ErrDuplicateEmail
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresAccountRepo) Update(ctx context.Context, account *accounts.Account) error {
	query := `
		UPDATE accounts
		SET email = $2, password_hash = $3, name = $4, profile_picture_url = $5,
		    email_verified = $6, otp = $7, otp_expiry = $8
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, query,
		account.ID, account.Email, account.PasswordHash, account.Name,
		account.ProfilePictureURL, account.EmailVerified,
		nullString(account.OTP), nullTime(account.OTPExpiry))
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return accounts.ErrNotFound
	}
	return nil
}

func (r *PostgresAccountRepo) GetByEmail(ctx context.Context, email string) (*accounts.Account, error) {
	return r.get(ctx, "email", email)
}

func (r *PostgresAccountRepo) GetByID(ctx context.Context, id string) (*accounts.Account, error) {
	return r.get(ctx, "id", id)
}

func (r *PostgresAccountRepo) get(ctx context.Context, column, value string) (*accounts.Account, error) {
	query := fmt.Sprintf(`
		SELECT id, email, password_hash, name, profile_picture_url, email_verified, otp, otp_expiry, created_at
		FROM accounts
		WHERE %s = $1
	`, column)

	account := &accounts.Account{}
	var otp sql.NullString
	var otpExpiry sql.NullTime
	err := r.db.QueryRowContext(ctx, query, value).Scan(
		&account.ID, &account.Email, &account.PasswordHash, &account.Name,
		&account.ProfilePictureURL, &account.EmailVerified, &otp, &otpExpiry,
		&account.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, accounts.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	account.OTP = otp.String
	if otpExpiry.Valid {
		account.OTPExpiry = otpExpiry.Time
	}
	return account, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

// isUniqueViolation matches the Postgres unique_violation SQLSTATE.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
