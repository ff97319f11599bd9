// Package auth composes the credential hasher, OTP issuer, token issuer,
// refresh token ledger and identity resolver into the register, login,
// refresh and provider-login flows.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/clockwrk/authcore/accounts"
	"github.com/clockwrk/authcore/mailer"
	"github.com/clockwrk/authcore/otp"
	"github.com/clockwrk/authcore/provider"
	"github.com/clockwrk/authcore/token"
	"github.com/clockwrk/authcore/token/refresh"
	"github.com/rs/zerolog"
)

const (
	signupMailSubject = "Verify your email"
	loginMailSubject  = "Your Login OTP"
)

// Repos holds all repository dependencies for the Service.
type Repos struct {
	Accounts      accounts.Repo
	RefreshTokens refresh.Repo
}

// Result is the outcome of a token-issuing operation. When the account's
// email is not verified yet, VerificationRequired is set instead of tokens.
type Result struct {
	AccessToken          string `json:"access_token,omitempty"`
	RefreshToken         string `json:"refresh_token,omitempty"`
	VerificationRequired bool   `json:"verification_required,omitempty"`
}

// Service is the authentication orchestrator. Identity context is passed
// explicitly into every call; there is no ambient request-scoped principal.
type Service struct {
	repos    Repos
	tokens   *token.Issuer
	codes    *otp.Issuer
	resolver *provider.Resolver
	ledger   *refresh.Ledger
	mail     mailer.Mailer
	logger   zerolog.Logger
	nowTime  func() time.Time
	otpTTL   time.Duration
}

// ServiceOption defines a function type to modify the Service instance.
type ServiceOption func(*Service)

// WithNowTime sets the now time function (primarily for testing). The same
// clock is shared with the OTP issuer and the ledger.
func WithNowTime(nowFunc func() time.Time) ServiceOption {
	return func(s *Service) {
		s.nowTime = nowFunc
	}
}

// WithOTPTTL overrides the one-time-code lifetime.
func WithOTPTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		s.otpTTL = ttl
	}
}

// WithLogger sets the structured logger. Defaults to a no-op logger.
func WithLogger(logger zerolog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService initializes the orchestrator with required dependencies.
func NewService(repos Repos, tokens *token.Issuer, mail mailer.Mailer, options ...ServiceOption) (*Service, error) {
	if repos.Accounts == nil {
		return nil, errors.New("[NewService] Accounts repo is required")
	}
	if repos.RefreshTokens == nil {
		return nil, errors.New("[NewService] RefreshTokens repo is required")
	}
	if tokens == nil {
		return nil, errors.New("[NewService] token issuer is required")
	}
	if mail == nil {
		return nil, errors.New("[NewService] mailer is required")
	}

	s := &Service{
		repos:   repos,
		tokens:  tokens,
		mail:    mail,
		logger:  zerolog.Nop(),
		nowTime: time.Now,
		otpTTL:  otp.DefaultTTL,
	}

	for _, opt := range options {
		opt(s)
	}

	s.codes = otp.NewIssuer(repos.Accounts, otp.WithNowTime(s.nowTime), otp.WithTTL(s.otpTTL))
	s.resolver = provider.NewResolver(repos.Accounts, provider.WithNowTime(s.nowTime))
	s.ledger = refresh.NewLedger(repos.RefreshTokens, refresh.WithNowTime(s.nowTime))

	return s, nil
}

// Ledger exposes the refresh token ledger for host-driven housekeeping
// (periodic SweepExpired).
func (s *Service) Ledger() *refresh.Ledger {
	return s.ledger
}

// Register creates an unverified account and sends a verification code. No
// tokens are issued until the email is verified.
func (s *Service) Register(ctx context.Context, email, password, name string) (*Result, error) {
	if email == "" {
		return nil, newError(KindBadRequest, "email is required")
	}
	if err := accounts.ValidatePasswordStrength(password); err != nil {
		return nil, wrapError(KindBadRequest, err.Error(), err)
	}

	_, err := s.repos.Accounts.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return nil, newError(KindConflict, "email already registered")
	case errors.Is(err, accounts.ErrNotFound):
		// proceed
	default:
		return nil, s.internal(err, "Register GetByEmail")
	}

	hash, err := accounts.HashPassword(password)
	if err != nil {
		return nil, s.internal(err, "Register HashPassword")
	}

	account := &accounts.Account{
		Email:        email,
		PasswordHash: hash,
		Name:         name,
		CreatedAt:    s.nowTime(),
	}
	if err := s.repos.Accounts.Create(ctx, account); err != nil {
		if errors.Is(err, accounts.ErrDuplicateEmail) {
			return nil, newError(KindConflict, "email already registered")
		}
		return nil, s.internal(err, "Register Create")
	}

	if err := s.issueAndSendOTP(ctx, account, signupMailSubject); err != nil {
		return nil, err
	}

	s.logger.Info().Str("account_id", account.ID).Msg("account registered, verification pending")
	return &Result{VerificationRequired: true}, nil
}

// Authenticate performs password login. Unverified accounts receive a fresh
// verification code instead of tokens.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*Result, error) {
	account, err := s.repos.Accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, accounts.ErrNotFound) {
			// Indistinguishable from a bad password; no account enumeration.
			return nil, newError(KindUnauthorized, "invalid credentials")
		}
		return nil, s.internal(err, "Authenticate GetByEmail")
	}

	if !accounts.CheckPasswordHash(password, account.PasswordHash) {
		return nil, newError(KindUnauthorized, "invalid credentials")
	}

	if !account.EmailVerified {
		if err := s.issueAndSendOTP(ctx, account, signupMailSubject); err != nil {
			return nil, err
		}
		return &Result{VerificationRequired: true}, nil
	}

	return s.issueTokens(ctx, account)
}

// SendOTP issues a passwordless login code for an existing account. Unknown
// emails fail NotFound; there is no silent auto-provisioning.
func (s *Service) SendOTP(ctx context.Context, email string) error {
	account, err := s.repos.Accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, accounts.ErrNotFound) {
			return newError(KindNotFound, "no account for email")
		}
		return s.internal(err, "SendOTP GetByEmail")
	}
	return s.issueAndSendOTP(ctx, account, loginMailSubject)
}

// VerifyOTP validates a pending login code and issues tokens, marking the
// account verified if it was not already.
func (s *Service) VerifyOTP(ctx context.Context, email, code string) (*Result, error) {
	return s.verifyCode(ctx, email, code)
}

// VerifySignupEmail validates the code sent on registration. Validation and
// outcome are identical to VerifyOTP: the account transitions to verified
// and a fresh token pair is issued.
func (s *Service) VerifySignupEmail(ctx context.Context, email, code string) (*Result, error) {
	return s.verifyCode(ctx, email, code)
}

func (s *Service) verifyCode(ctx context.Context, email, code string) (*Result, error) {
	account, err := s.codes.Validate(ctx, email, code)
	if err != nil {
		switch {
		case errors.Is(err, accounts.ErrNotFound):
			return nil, newError(KindNotFound, "no account for email")
		case errors.Is(err, otp.ErrNoPending):
			return nil, newError(KindBadRequest, "no code pending")
		case errors.Is(err, otp.ErrExpired):
			return nil, newError(KindBadRequest, "code expired")
		case errors.Is(err, otp.ErrMismatch):
			return nil, newError(KindBadRequest, "invalid code")
		default:
			return nil, s.internal(err, "verifyCode Validate")
		}
	}

	if !account.EmailVerified {
		account.EmailVerified = true
		if err := s.repos.Accounts.Update(ctx, account); err != nil {
			return nil, s.internal(err, "verifyCode mark verified")
		}
		s.logger.Info().Str("account_id", account.ID).Msg("email verified")
	}

	return s.issueTokens(ctx, account)
}

// Refresh exchanges a valid refresh token for a new access token. The
// refresh token itself is kept; rotation happens only on fresh login.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*Result, error) {
	email, err := s.tokens.RefreshSubject(refreshToken)
	if err != nil {
		return nil, newError(KindUnauthorized, "invalid refresh token")
	}

	account, err := s.repos.Accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, accounts.ErrNotFound) {
			return nil, newError(KindUnauthorized, "invalid refresh token")
		}
		return nil, s.internal(err, "Refresh GetByEmail")
	}

	record, err := s.ledger.Find(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, refresh.ErrNotFound) {
			return nil, newError(KindUnauthorized, "invalid refresh token")
		}
		return nil, s.internal(err, "Refresh ledger.Find")
	}
	if record.AccountID != account.ID || !record.Valid(s.nowTime()) {
		return nil, newError(KindUnauthorized, "invalid refresh token")
	}

	accessToken, err := s.tokens.IssueAccess(account.Email)
	if err != nil {
		return nil, s.internal(err, "Refresh IssueAccess")
	}

	return &Result{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

// ProviderLogin resolves a provider-asserted profile to an account and
// issues tokens exactly as password login's success path.
func (s *Service) ProviderLogin(ctx context.Context, profile provider.Profile) (*Result, error) {
	account, err := s.resolver.Resolve(ctx, profile)
	if err != nil {
		if errors.Is(err, provider.ErrNoEmail) {
			return nil, newError(KindProvider, "provider asserted no email")
		}
		return nil, s.internal(err, "ProviderLogin Resolve")
	}
	return s.issueTokens(ctx, account)
}

// issueTokens mints a fresh access+refresh pair, revokes the prior refresh
// chain and persists the new record. Revoke-then-persist leaves at most the
// single update boundary where no valid token is visible; a revoked token
// never re-validates.
func (s *Service) issueTokens(ctx context.Context, account *accounts.Account) (*Result, error) {
	accessToken, err := s.tokens.IssueAccess(account.Email)
	if err != nil {
		return nil, s.internal(err, "issueTokens IssueAccess")
	}
	refreshToken, err := s.tokens.IssueRefresh(account.Email)
	if err != nil {
		return nil, s.internal(err, "issueTokens IssueRefresh")
	}

	if err := s.ledger.RevokeAll(ctx, account.ID); err != nil {
		return nil, s.internal(err, "issueTokens RevokeAll")
	}
	if _, err := s.ledger.Persist(ctx, account.ID, refreshToken, s.tokens.RefreshExpiry()); err != nil {
		return nil, s.internal(err, "issueTokens Persist")
	}

	s.logger.Debug().Str("account_id", account.ID).Msg("refresh chain rotated")
	return &Result{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

func (s *Service) issueAndSendOTP(ctx context.Context, account *accounts.Account, subject string) error {
	code, err := s.codes.Issue(ctx, account)
	if err != nil {
		return s.internal(err, "issueAndSendOTP Issue")
	}

	body := fmt.Sprintf("Your OTP is: %s", code)
	if err := s.mail.Send(ctx, account.Email, subject, body); err != nil {
		// Fire-and-forget: delivery failure is logged, not retried and not
		// surfaced to the caller.
		s.logger.Warn().Err(err).Str("account_id", account.ID).Msg("otp mail delivery failed")
	}
	return nil
}

// internal logs the full fault server-side and returns the generic
// internal failure, leaking no detail to the caller.
func (s *Service) internal(err error, op string) *Error {
	s.logger.Error().Err(err).Str("op", op).Msg("internal failure")
	return wrapError(KindInternal, "internal error", err)
}
