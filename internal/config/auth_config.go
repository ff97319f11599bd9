package config

import "time"

type AuthConfig interface {
	GetSigningSecret() string
	GetTokenIssuer() string
	GetAccessTokenExpiry() time.Duration
	GetRefreshTokenExpiry() time.Duration
	GetOTPExpiry() time.Duration
}

type Auth struct{}

var _ AuthConfig = Auth{}

func (Auth) GetSigningSecret() string {
	return GetEnv("SIGNING_SECRET", "")
}

func (Auth) GetTokenIssuer() string {
	return GetEnv("TOKEN_ISSUER", "authcore")
}

func (Auth) GetAccessTokenExpiry() time.Duration {
	return 1 * time.Hour
}

func (Auth) GetRefreshTokenExpiry() time.Duration {
	return 7 * 24 * time.Hour
}

func (Auth) GetOTPExpiry() time.Duration {
	return 5 * time.Minute
}
