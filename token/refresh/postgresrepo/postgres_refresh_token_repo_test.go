package postgresrepo

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/clockwrk/authcore/token/refresh"
)

const (
	testRecordID  = "5f7a0b60-68a7-4dd7-8c5e-4c2d1f0a9b21"
	testAccountID = "0b5f0b32-9b2e-4a64-9a9e-2f9e5a3c1d10"
	testToken     = "opaque-refresh-token"
)

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func setupMock(t *testing.T) (*PostgresRefreshTokenRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return New(db), mock
}

func TestSave(t *testing.T) {
	repo, mock := setupMock(t)
	record := &refresh.Record{
		ID:        testRecordID,
		AccountID: testAccountID,
		Token:     testToken,
		ExpiresAt: fixedNow.Add(7 * 24 * time.Hour),
	}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO refresh_tokens")).
		WithArgs(record.ID, record.AccountID, record.Token, record.ExpiresAt, false).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Save(context.Background(), record))
}

func TestSaveDBError(t *testing.T) {
	repo, mock := setupMock(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO refresh_tokens")).
		WillReturnError(errors.New("connection refused"))

	err := repo.Save(context.Background(), &refresh.Record{ID: testRecordID})
	require.Error(t, err)
}

func TestGet(t *testing.T) {
	repo, mock := setupMock(t)
	expiresAt := fixedNow.Add(7 * 24 * time.Hour)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE token = $1")).
		WithArgs(testToken).
		WillReturnRows(sqlmock.NewRows([]string{"id", "account_id", "expires_at", "revoked"}).
			AddRow(testRecordID, testAccountID, expiresAt, false))

	record, err := repo.Get(context.Background(), testToken)
	require.NoError(t, err)
	require.Equal(t, testRecordID, record.ID)
	require.Equal(t, testAccountID, record.AccountID)
	require.Equal(t, testToken, record.Token)
	require.Equal(t, expiresAt, record.ExpiresAt)
	require.True(t, record.Valid(fixedNow))
}

func TestGetNotFound(t *testing.T) {
	repo, mock := setupMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE token = $1")).
		WithArgs(testToken).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), testToken)
	require.ErrorIs(t, err, refresh.ErrNotFound)
}

func TestGetRevokedRecord(t *testing.T) {
	repo, mock := setupMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE token = $1")).
		WithArgs(testToken).
		WillReturnRows(sqlmock.NewRows([]string{"id", "account_id", "expires_at", "revoked"}).
			AddRow(testRecordID, testAccountID, fixedNow.Add(time.Hour), true))

	record, err := repo.Get(context.Background(), testToken)
	require.NoError(t, err)
	require.True(t, record.Revoked)
	require.False(t, record.Valid(fixedNow))
}

func TestRevokeAllForAccount(t *testing.T) {
	repo, mock := setupMock(t)

	mock.ExpectExec(regexp.QuoteMeta("SET revoked = TRUE")).
		WithArgs(testAccountID).
		WillReturnResult(sqlmock.NewResult(0, 3))

	require.NoError(t, repo.RevokeAllForAccount(context.Background(), testAccountID))
}

func TestDeleteExpired(t *testing.T) {
	repo, mock := setupMock(t)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM refresh_tokens")).
		WithArgs(fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 5))

	deleted, err := repo.DeleteExpired(context.Background(), fixedNow)
	require.NoError(t, err)
	require.Equal(t, int64(5), deleted)
}
