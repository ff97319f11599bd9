// Package token mints and verifies the signed access and refresh tokens
// carrying identity claims and expiry.
package token

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Token classes carried in the "use" claim so a refresh token can never be
// presented where an access token is expected, and vice versa.
const (
	classAccess  = "access"
	classRefresh = "refresh"
)

// ErrInvalidToken is returned for any verification failure: bad signature,
// expired, malformed, or wrong token class. Callers map it to an
// authentication error; it never carries the underlying crypto detail.
var ErrInvalidToken = errors.New("invalid token")

// Issuer creates and cryptographically verifies access and refresh tokens.
// Tampering is detectable from the signature alone, without a database
// round trip.
type Issuer struct {
	signer        Signer
	issuer        string
	accessExpiry  time.Duration
	refreshExpiry time.Duration
	nowTime       func() time.Time
}

type IssuerOption func(*Issuer)

// WithExpiries sets the access and refresh token lifetimes.
func WithExpiries(accessExpiry, refreshExpiry time.Duration) IssuerOption {
	return func(i *Issuer) {
		i.accessExpiry = accessExpiry
		i.refreshExpiry = refreshExpiry
	}
}

// WithIssuer sets the iss claim value.
func WithIssuer(issuer string) IssuerOption {
	return func(i *Issuer) {
		i.issuer = issuer
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) IssuerOption {
	return func(i *Issuer) {
		i.nowTime = nowFunc
	}
}

func NewIssuer(signer Signer, options ...IssuerOption) *Issuer {
	i := &Issuer{
		signer:        signer,
		issuer:        "authcore",
		accessExpiry:  time.Hour,
		refreshExpiry: 7 * 24 * time.Hour,
		nowTime:       time.Now,
	}
	for _, opt := range options {
		opt(i)
	}
	return i
}

// AccessExpiry returns the configured access token lifetime.
func (i *Issuer) AccessExpiry() time.Duration {
	return i.accessExpiry
}

// RefreshExpiry returns the configured refresh token lifetime.
func (i *Issuer) RefreshExpiry() time.Duration {
	return i.refreshExpiry
}

// IssueAccess mints a short-lived access token for the identity.
func (i *Issuer) IssueAccess(email string) (string, error) {
	return i.sign(email, classAccess, i.accessExpiry)
}

// IssueRefresh mints a long-lived refresh token for the identity.
func (i *Issuer) IssueRefresh(email string) (string, error) {
	return i.sign(email, classRefresh, i.refreshExpiry)
}

func (i *Issuer) sign(email, class string, expiry time.Duration) (string, error) {
	now := i.nowTime()
	claims := jwt.MapClaims{
		"iss": i.issuer,
		"sub": email,
		"use": class,
		"iat": now.Unix(),
		"exp": now.Add(expiry).Unix(),
		"jti": uuid.New().String(),
	}
	signed, err := i.signer.Sign(claims)
	if err != nil {
		return "", errors.Wrap(err, "[Issuer.sign] signer.Sign")
	}
	return signed, nil
}

// Verify checks signature, expiry and subject match. Any failure is
// reported as false; it never panics on malformed input.
func (i *Issuer) Verify(rawToken, expectedEmail string) bool {
	subject, _, err := i.parse(rawToken)
	if err != nil {
		return false
	}
	return subject == expectedEmail
}

// Subject extracts the identity a verified token was issued to. It returns
// ErrInvalidToken when the signature is bad, the token is expired, or the
// payload is malformed.
func (i *Issuer) Subject(rawToken string) (string, error) {
	subject, _, err := i.parse(rawToken)
	if err != nil {
		return "", err
	}
	return subject, nil
}

// RefreshSubject is Subject restricted to refresh tokens, so an access
// token can not be replayed against the refresh operation.
func (i *Issuer) RefreshSubject(rawToken string) (string, error) {
	subject, class, err := i.parse(rawToken)
	if err != nil {
		return "", err
	}
	if class != classRefresh {
		return "", ErrInvalidToken
	}
	return subject, nil
}

func (i *Issuer) parse(rawToken string) (subject, class string, err error) {
	if strings.TrimSpace(rawToken) == "" {
		return "", "", ErrInvalidToken
	}

	parsed, err := jwt.Parse(rawToken, i.signer.GetVerificationKey,
		jwt.WithIssuer(i.issuer),
		jwt.WithTimeFunc(i.nowTime),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !parsed.Valid {
		return "", "", ErrInvalidToken
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return "", "", ErrInvalidToken
	}

	subject, _ = claims["sub"].(string)
	class, _ = claims["use"].(string)
	if subject == "" {
		return "", "", ErrInvalidToken
	}
	return subject, class, nil
}
