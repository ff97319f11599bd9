package refreshrepofake

import (
	"context"
	"sync"
	"time"

	"github.com/clockwrk/authcore/token/refresh"
)

var _ refresh.Repo = (*FakeRefreshTokenRepo)(nil)

type FakeRefreshTokenRepo struct {
	records map[string]*refresh.Record // keyed by token string
	lock    sync.RWMutex
}

func NewFakeRefreshTokenRepo() *FakeRefreshTokenRepo {
	return &FakeRefreshTokenRepo{
		records: make(map[string]*refresh.Record),
	}
}

func (tr *FakeRefreshTokenRepo) Save(_ context.Context, record *refresh.Record) error {
	tr.lock.Lock()
	defer tr.lock.Unlock()

	stored := *record
	tr.records[record.Token] = &stored
	return nil
}

func (tr *FakeRefreshTokenRepo) Get(_ context.Context, token string) (*refresh.Record, error) {
	tr.lock.RLock()
	defer tr.lock.RUnlock()

	stored, ok := tr.records[token]
	if !ok {
		return nil, refresh.ErrNotFound
	}
	record := *stored
	return &record, nil
}

func (tr *FakeRefreshTokenRepo) RevokeAllForAccount(_ context.Context, accountID string) error {
	tr.lock.Lock()
	defer tr.lock.Unlock()

	for _, record := range tr.records {
		if record.AccountID == accountID {
			record.Revoked = true
		}
	}
	return nil
}

func (tr *FakeRefreshTokenRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	tr.lock.Lock()
	defer tr.lock.Unlock()

	var deleted int64
	for token, record := range tr.records {
		if record.Revoked || !now.Before(record.ExpiresAt) {
			delete(tr.records, token)
			deleted++
		}
	}
	return deleted, nil
}
