package refresh

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned for token strings unknown to the ledger.
var ErrNotFound = errors.New("refresh token not found")

// Repo manages server-side storage of refresh token records, keyed by the
// opaque token string.
type Repo interface {
	Save(ctx context.Context, record *Record) error
	Get(ctx context.Context, token string) (*Record, error)
	RevokeAllForAccount(ctx context.Context, accountID string) error

	// DeleteExpired removes records past expiry or revoked, returning the
	// number deleted.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
