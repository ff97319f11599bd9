// Package otp issues and validates time-boxed, single-use numeric login
// codes bound to an account.
package otp

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/clockwrk/authcore/accounts"
	pkgerrors "github.com/pkg/errors"
)

const (
	// Digits is the fixed code length.
	Digits = 6

	// DefaultTTL is the absolute lifetime of a code from issuance.
	DefaultTTL = 5 * time.Minute
)

var (
	ErrNoPending = errors.New("no code pending")
	ErrExpired   = errors.New("code expired")
	ErrMismatch  = errors.New("code mismatch")
)

var codeSpace = big.NewInt(1_000_000) // 10^Digits

// Generate returns a zero-padded 6-digit decimal code from a
// cryptographically secure random source.
func Generate() (string, error) {
	n, err := rand.Int(rand.Reader, codeSpace)
	if err != nil {
		return "", pkgerrors.Wrap(err, "[otp.Generate] rand.Int")
	}
	return fmt.Sprintf("%0*d", Digits, n), nil
}

// Issuer binds codes to accounts and validates them against the account's
// current state.
type Issuer struct {
	repo    accounts.Repo
	ttl     time.Duration
	nowTime func() time.Time
}

type IssuerOption func(*Issuer)

// WithTTL overrides the code lifetime.
func WithTTL(ttl time.Duration) IssuerOption {
	return func(i *Issuer) {
		i.ttl = ttl
	}
}

// WithNowTime sets the now time function (primarily for testing).
func WithNowTime(nowFunc func() time.Time) IssuerOption {
	return func(i *Issuer) {
		i.nowTime = nowFunc
	}
}

func NewIssuer(repo accounts.Repo, options ...IssuerOption) *Issuer {
	issuer := &Issuer{
		repo:    repo,
		ttl:     DefaultTTL,
		nowTime: time.Now,
	}
	for _, opt := range options {
		opt(issuer)
	}
	return issuer
}

// Issue generates a fresh code for the account and persists it, overwriting
// any pending code rather than stacking multiple outstanding ones.
func (i *Issuer) Issue(ctx context.Context, account *accounts.Account) (string, error) {
	code, err := Generate()
	if err != nil {
		return "", err
	}
	account.SetOTP(code, i.nowTime().Add(i.ttl))
	if err := i.repo.Update(ctx, account); err != nil {
		return "", pkgerrors.Wrap(err, "[Issuer.Issue] repo.Update")
	}
	return code, nil
}

// Validate checks the supplied code against the account's pending one. The
// account is re-read at validation time so a newer Issue invalidates an
// in-flight validation of an older code. In order:
//   - ErrNoPending when no code is pending
//   - ErrExpired when the window has passed; the pending code is cleared
//   - ErrMismatch when the code does not match; the pending code is kept so
//     the caller may retry within the window
//
// On a match the code and expiry are cleared atomically with the account
// update and the current account state is returned.
func (i *Issuer) Validate(ctx context.Context, email, code string) (*accounts.Account, error) {
	account, err := i.repo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	if !account.HasPendingOTP() {
		return nil, ErrNoPending
	}

	if i.nowTime().After(account.OTPExpiry) {
		account.ClearOTP()
		if err := i.repo.Update(ctx, account); err != nil {
			return nil, pkgerrors.Wrap(err, "[Issuer.Validate] clear expired code")
		}
		return nil, ErrExpired
	}

	if account.OTP != code {
		return nil, ErrMismatch
	}

	account.ClearOTP()
	if err := i.repo.Update(ctx, account); err != nil {
		return nil, pkgerrors.Wrap(err, "[Issuer.Validate] consume code")
	}
	return account, nil
}
