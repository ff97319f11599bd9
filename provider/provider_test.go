package provider_test

import (
	"context"
	"testing"
	"time"

	"github.com/clockwrk/authcore/accounts"
	accountrepofake "github.com/clockwrk/authcore/accounts/repofake"
	"github.com/clockwrk/authcore/provider"
	"github.com/stretchr/testify/require"
)

const (
	testUserEmail = "john.doe@example.com"
	testUserName  = "John Doe"
)

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestResolver(repo accounts.Repo) *provider.Resolver {
	return provider.NewResolver(repo, provider.WithNowTime(func() time.Time { return fixedNow }))
}

func TestResolveCreatesVerifiedAccount(t *testing.T) {
	repo := accountrepofake.NewFakeAccountRepo()
	resolver := newTestResolver(repo)
	ctx := context.Background()

	account, err := resolver.Resolve(ctx, provider.Profile{
		Email:   testUserEmail,
		Name:    testUserName,
		Picture: "https://pics.example.com/1.png",
	})
	require.NoError(t, err)
	require.NotEmpty(t, account.ID)
	require.Equal(t, testUserEmail, account.Email)
	require.Equal(t, testUserName, account.Name)
	require.True(t, account.EmailVerified)
	require.Equal(t, fixedNow, account.CreatedAt)

	// The generated hash blocks password login.
	require.NotEmpty(t, account.PasswordHash)
	require.False(t, accounts.CheckPasswordHash("", account.PasswordHash))
}

func TestResolveDerivesNameFromEmail(t *testing.T) {
	repo := accountrepofake.NewFakeAccountRepo()
	resolver := newTestResolver(repo)

	account, err := resolver.Resolve(context.Background(), provider.Profile{Email: testUserEmail})
	require.NoError(t, err)
	require.Equal(t, "john.doe", account.Name)
}

func TestResolveExistingAccountUpdatesPictureOnly(t *testing.T) {
	repo := accountrepofake.NewFakeAccountRepo()
	resolver := newTestResolver(repo)
	ctx := context.Background()

	hash, err := accounts.HashPassword("Password1")
	require.NoError(t, err)
	existing := &accounts.Account{
		Email:         testUserEmail,
		PasswordHash:  hash,
		Name:          testUserName,
		EmailVerified: true,
	}
	require.NoError(t, repo.Create(ctx, existing))

	resolved, err := resolver.Resolve(ctx, provider.Profile{
		Email:   testUserEmail,
		Name:    "Provider Name",
		Picture: "https://pics.example.com/2.png",
	})
	require.NoError(t, err)
	require.Equal(t, existing.ID, resolved.ID)
	require.Equal(t, "https://pics.example.com/2.png", resolved.ProfilePictureURL)

	// Name and password hash are left alone.
	stored, err := repo.GetByEmail(ctx, testUserEmail)
	require.NoError(t, err)
	require.Equal(t, testUserName, stored.Name)
	require.True(t, accounts.CheckPasswordHash("Password1", stored.PasswordHash))
}

func TestResolveSamePictureSkipsUpdate(t *testing.T) {
	repo := accountrepofake.NewFakeAccountRepo()
	resolver := newTestResolver(repo)
	ctx := context.Background()

	first, err := resolver.Resolve(ctx, provider.Profile{
		Email:   testUserEmail,
		Picture: "https://pics.example.com/1.png",
	})
	require.NoError(t, err)

	second, err := resolver.Resolve(ctx, provider.Profile{
		Email:   testUserEmail,
		Picture: "https://pics.example.com/1.png",
	})
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, first.ProfilePictureURL, second.ProfilePictureURL)
}

func TestResolveRequiresEmail(t *testing.T) {
	repo := accountrepofake.NewFakeAccountRepo()
	resolver := newTestResolver(repo)

	_, err := resolver.Resolve(context.Background(), provider.Profile{Name: testUserName})
	require.ErrorIs(t, err, provider.ErrNoEmail)
}

func TestResolveEmailIsCaseSensitive(t *testing.T) {
	repo := accountrepofake.NewFakeAccountRepo()
	resolver := newTestResolver(repo)
	ctx := context.Background()

	lower, err := resolver.Resolve(ctx, provider.Profile{Email: testUserEmail})
	require.NoError(t, err)
	upper, err := resolver.Resolve(ctx, provider.Profile{Email: "John.Doe@example.com"})
	require.NoError(t, err)

	// Differing case resolves to a distinct identity.
	require.NotEqual(t, lower.ID, upper.ID)
}
