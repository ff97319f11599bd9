package refresh_test

import (
	"context"
	"testing"
	"time"

	"github.com/clockwrk/authcore/token/refresh"
	refreshrepofake "github.com/clockwrk/authcore/token/refresh/repofake"
	"github.com/stretchr/testify/require"
)

const (
	testAccountID = "account-1"
	testTokenTTL  = 7 * 24 * time.Hour
)

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type ledgerFixture struct {
	repo   *refreshrepofake.FakeRefreshTokenRepo
	ledger *refresh.Ledger
	now    time.Time
}

func setupLedgerFixture(t *testing.T) *ledgerFixture {
	t.Helper()
	f := &ledgerFixture{
		repo: refreshrepofake.NewFakeRefreshTokenRepo(),
		now:  fixedNow,
	}
	f.ledger = refresh.NewLedger(f.repo, refresh.WithNowTime(func() time.Time { return f.now }))
	return f
}

func TestPersistAndFind(t *testing.T) {
	f := setupLedgerFixture(t)
	ctx := context.Background()

	record, err := f.ledger.Persist(ctx, testAccountID, "token-1", testTokenTTL)
	require.NoError(t, err)
	require.NotEmpty(t, record.ID)
	require.Equal(t, testAccountID, record.AccountID)
	require.Equal(t, fixedNow.Add(testTokenTTL), record.ExpiresAt)
	require.True(t, record.Valid(f.now))

	found, err := f.ledger.Find(ctx, "token-1")
	require.NoError(t, err)
	require.Equal(t, record.ID, found.ID)
}

func TestFindUnknownToken(t *testing.T) {
	f := setupLedgerFixture(t)

	_, err := f.ledger.Find(context.Background(), "never-issued")
	require.ErrorIs(t, err, refresh.ErrNotFound)
}

func TestRecordValidity(t *testing.T) {
	record := &refresh.Record{ExpiresAt: fixedNow.Add(time.Hour)}

	require.True(t, record.Valid(fixedNow))
	require.False(t, record.Valid(fixedNow.Add(time.Hour)), "expiry instant is exclusive")
	require.False(t, record.Valid(fixedNow.Add(2*time.Hour)))

	record.Revoked = true
	require.False(t, record.Valid(fixedNow))
}

func TestRevokeAllFlipsWholeChain(t *testing.T) {
	f := setupLedgerFixture(t)
	ctx := context.Background()

	_, err := f.ledger.Persist(ctx, testAccountID, "token-1", testTokenTTL)
	require.NoError(t, err)
	_, err = f.ledger.Persist(ctx, testAccountID, "token-2", testTokenTTL)
	require.NoError(t, err)
	other, err := f.ledger.Persist(ctx, "account-2", "token-3", testTokenTTL)
	require.NoError(t, err)

	require.NoError(t, f.ledger.RevokeAll(ctx, testAccountID))

	for _, token := range []string{"token-1", "token-2"} {
		record, err := f.ledger.Find(ctx, token)
		require.NoError(t, err)
		require.True(t, record.Revoked)
		require.False(t, record.Valid(f.now))
	}

	// Another account's chain is untouched.
	found, err := f.ledger.Find(ctx, other.Token)
	require.NoError(t, err)
	require.False(t, found.Revoked)
}

func TestRevokeAllIsIdempotent(t *testing.T) {
	f := setupLedgerFixture(t)
	ctx := context.Background()

	_, err := f.ledger.Persist(ctx, testAccountID, "token-1", testTokenTTL)
	require.NoError(t, err)

	require.NoError(t, f.ledger.RevokeAll(ctx, testAccountID))
	require.NoError(t, f.ledger.RevokeAll(ctx, testAccountID))

	record, err := f.ledger.Find(ctx, "token-1")
	require.NoError(t, err)
	require.True(t, record.Revoked)
}

func TestSweepExpiredDeletesDeadRecordsOnly(t *testing.T) {
	f := setupLedgerFixture(t)
	ctx := context.Background()

	_, err := f.ledger.Persist(ctx, testAccountID, "live", testTokenTTL)
	require.NoError(t, err)
	_, err = f.ledger.Persist(ctx, testAccountID, "short", time.Minute)
	require.NoError(t, err)
	_, err = f.ledger.Persist(ctx, "account-2", "revoked", testTokenTTL)
	require.NoError(t, err)
	require.NoError(t, f.ledger.RevokeAll(ctx, "account-2"))

	f.now = f.now.Add(time.Hour)

	deleted, err := f.ledger.SweepExpired(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(2), deleted)

	_, err = f.ledger.Find(ctx, "short")
	require.ErrorIs(t, err, refresh.ErrNotFound)
	_, err = f.ledger.Find(ctx, "revoked")
	require.ErrorIs(t, err, refresh.ErrNotFound)

	live, err := f.ledger.Find(ctx, "live")
	require.NoError(t, err)
	require.True(t, live.Valid(f.now))

	// Nothing left to sweep.
	deleted, err = f.ledger.SweepExpired(ctx)
	require.NoError(t, err)
	require.Zero(t, deleted)
}
