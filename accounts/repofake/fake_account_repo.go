package accountrepofake

import (
	"context"
	"sync"

	"github.com/clockwrk/authcore/accounts"
	"github.com/google/uuid"
)

var _ accounts.Repo = (*FakeAccountRepo)(nil)

type FakeAccountRepo struct {
	accounts map[string]*accounts.Account
	emailIDs map[string]string // email to account id
	lock     sync.RWMutex
}

func NewFakeAccountRepo() *FakeAccountRepo {
	return &FakeAccountRepo{
		accounts: make(map[string]*accounts.Account),
		emailIDs: make(map[string]string),
	}
}

func (ar *FakeAccountRepo) Create(_ context.Context, account *accounts.Account) error {
	ar.lock.Lock()
	defer ar.lock.Unlock()

	if _, ok := ar.emailIDs[account.Email]; ok {
		return accounts.ErrDuplicateEmail
	}
	if account.ID == "" {
		account.ID = uuid.New().String()
	}
	stored := *account
	ar.accounts[account.ID] = &stored
	ar.emailIDs[account.Email] = account.ID
	return nil
}

func (ar *FakeAccountRepo) Update(_ context.Context, account *accounts.Account) error {
	ar.lock.Lock()
	defer ar.lock.Unlock()

	previous, ok := ar.accounts[account.ID]
	if !ok {
		return accounts.ErrNotFound
	}
	if previous.Email != account.Email {
		if _, taken := ar.emailIDs[account.Email]; taken {
			return accounts.ErrDuplicateEmail
		}
		delete(ar.emailIDs, previous.Email)
	}
	stored := *account
	ar.accounts[account.ID] = &stored
	ar.emailIDs[account.Email] = account.ID
	return nil
}

func (ar *FakeAccountRepo) GetByEmail(_ context.Context, email string) (*accounts.Account, error) {
	ar.lock.RLock()
	defer ar.lock.RUnlock()

	id, ok := ar.emailIDs[email]
	if !ok {
		return nil, accounts.ErrNotFound
	}
	account := *ar.accounts[id]
	return &account, nil
}

func (ar *FakeAccountRepo) GetByID(_ context.Context, id string) (*accounts.Account, error) {
	ar.lock.RLock()
	defer ar.lock.RUnlock()

	stored, ok := ar.accounts[id]
	if !ok {
		return nil, accounts.ErrNotFound
	}
	account := *stored
	return &account, nil
}
