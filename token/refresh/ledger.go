// Package refresh keeps the persisted record of issued refresh tokens per
// account: the ledger consulted on every refresh, revoked as a chain on
// fresh login, and swept of dead rows as housekeeping.
package refresh

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Record represents one issued refresh token. The token string, once
// persisted, is immutable; only Revoked may flip true. There is no
// un-revoke operation.
type Record struct {
	ID        string    // Unique record identifier
	AccountID string    // Owning account
	Token     string    // Opaque token string, unique
	ExpiresAt time.Time // Absolute expiry
	Revoked   bool
}

// Valid reports whether the record may still be exchanged for access
// tokens at the given instant.
func (r *Record) Valid(now time.Time) bool {
	return !r.Revoked && now.Before(r.ExpiresAt)
}

// Ledger wraps a Repo with the issuance-side operations the orchestrator
// needs.
type Ledger struct {
	repo    Repo
	nowTime func() time.Time
}

type LedgerOption func(*Ledger)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) LedgerOption {
	return func(l *Ledger) {
		l.nowTime = nowFunc
	}
}

func NewLedger(repo Repo, options ...LedgerOption) *Ledger {
	l := &Ledger{
		repo:    repo,
		nowTime: time.Now,
	}
	for _, opt := range options {
		opt(l)
	}
	return l
}

// Persist records a newly issued refresh token for the account.
func (l *Ledger) Persist(ctx context.Context, accountID, token string, ttl time.Duration) (*Record, error) {
	record := &Record{
		ID:        uuid.New().String(),
		AccountID: accountID,
		Token:     token,
		ExpiresAt: l.nowTime().Add(ttl),
	}
	if err := l.repo.Save(ctx, record); err != nil {
		return nil, errors.Wrap(err, "[Ledger.Persist] repo.Save")
	}
	return record, nil
}

// Find looks up a single token. ErrNotFound is returned for tokens unknown
// to the ledger.
func (l *Ledger) Find(ctx context.Context, token string) (*Record, error) {
	return l.repo.Get(ctx, token)
}

// RevokeAll marks every non-revoked record for the account as revoked,
// invalidating the prior refresh chain on fresh login. A revoked token
// never becomes valid again.
func (l *Ledger) RevokeAll(ctx context.Context, accountID string) error {
	if err := l.repo.RevokeAllForAccount(ctx, accountID); err != nil {
		return errors.Wrap(err, "[Ledger.RevokeAll] repo.RevokeAllForAccount")
	}
	return nil
}

// SweepExpired bulk-deletes records past expiry or already revoked. It only
// touches rows no longer consulted for validity, so it is safe to run
// concurrently with issuance and lookup, and is idempotent.
func (l *Ledger) SweepExpired(ctx context.Context) (int64, error) {
	return l.repo.DeleteExpired(ctx, l.nowTime())
}
