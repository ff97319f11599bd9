// Package provider maps identity-provider-asserted profiles onto local
// accounts.
package provider

import (
	"context"
	"errors"
	"time"

	"github.com/clockwrk/authcore/accounts"
	pkgerrors "github.com/pkg/errors"
)

// ErrNoEmail is returned when the provider asserts no email address. Email
// is the required join key; there is no fallback identity.
var ErrNoEmail = errors.New("provider asserted no email")

// Profile is the identity a provider delivers after its own handshake.
// This core only consumes the resulting profile; the handshake itself
// lives in provider/oidc or a host-specific adapter.
type Profile struct {
	Email   string
	Name    string
	Picture string
}

// Resolver maps a provider profile to a local account, creating one if
// absent.
type Resolver struct {
	repo    accounts.Repo
	nowTime func() time.Time
}

type ResolverOption func(*Resolver)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) ResolverOption {
	return func(r *Resolver) {
		r.nowTime = nowFunc
	}
}

func NewResolver(repo accounts.Repo, options ...ResolverOption) *Resolver {
	r := &Resolver{
		repo:    repo,
		nowTime: time.Now,
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

// Resolve looks the profile up by email. Absent accounts are created
// verified (provider identities are pre-verified) with an unusable password
// hash, and persisted before returning so a concurrent lookup observes a
// consistent account. Existing accounts only have their picture refreshed;
// EmailVerified is never downgraded and the password hash of a possibly
// password-based account is never overwritten.
func (r *Resolver) Resolve(ctx context.Context, profile Profile) (*accounts.Account, error) {
	if profile.Email == "" {
		return nil, ErrNoEmail
	}

	account, err := r.repo.GetByEmail(ctx, profile.Email)
	switch {
	case err == nil:
		if profile.Picture != "" && profile.Picture != account.ProfilePictureURL {
			account.ProfilePictureURL = profile.Picture
			if err := r.repo.Update(ctx, account); err != nil {
				return nil, pkgerrors.Wrap(err, "[Resolver.Resolve] update picture")
			}
		}
		return account, nil

	case errors.Is(err, accounts.ErrNotFound):
		// fall through to creation

	default:
		return nil, pkgerrors.Wrap(err, "[Resolver.Resolve] repo.GetByEmail")
	}

	hash, err := accounts.UnusablePasswordHash()
	if err != nil {
		return nil, pkgerrors.Wrap(err, "[Resolver.Resolve] unusable hash")
	}

	name := profile.Name
	if name == "" {
		name = accounts.NameFromEmail(profile.Email)
	}

	account = &accounts.Account{
		Email:             profile.Email,
		PasswordHash:      hash,
		Name:              name,
		ProfilePictureURL: profile.Picture,
		EmailVerified:     true,
		CreatedAt:         r.nowTime(),
	}
	if err := r.repo.Create(ctx, account); err != nil {
		if errors.Is(err, accounts.ErrDuplicateEmail) {
			// Lost a creation race; the winner's account is the identity.
			return r.repo.GetByEmail(ctx, profile.Email)
		}
		return nil, pkgerrors.Wrap(err, "[Resolver.Resolve] repo.Create")
	}
	return account, nil
}
