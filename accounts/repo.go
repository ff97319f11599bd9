package accounts

import (
	"context"
	"errors"
)

var (
	ErrNotFound       = errors.New("account not found")
	ErrDuplicateEmail = errors.New("email already registered")
)

// Repo persists accounts. Implementations must enforce email uniqueness and
// are assumed transactional at single-call granularity.
type Repo interface {
	Create(ctx context.Context, account *Account) error
	Update(ctx context.Context, account *Account) error
	GetByEmail(ctx context.Context, email string) (*Account, error)
	GetByID(ctx context.Context, id string) (*Account, error)
}
