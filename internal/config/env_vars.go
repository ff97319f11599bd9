package config

import (
	"fmt"
	"os"
)

const (
	portEnvVar = "PORT"
	appNameVar = "APP_NAME"
)

type EnvVars struct{}

var _ EnvConfig = EnvVars{}

func (EnvVars) GetPort() string {
	port := GetEnv(portEnvVar, "8080")
	if port != "" && port[0] != ':' {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "Authcore")
}

func (EnvVars) GetSmtpPassword() string {
	return GetEnv("SMTP_PASSWORD", "")
}

func (EnvVars) GetSmtpAccount() string {
	return GetEnv("SMTP_ACCOUNT", "")
}

func (EnvVars) GetSmtpHost() string {
	return GetEnv("SMTP_HOST", "smtp.gmail.com")
}

func (EnvVars) GetSmtpPort() string {
	return GetEnv("SMTP_PORT", "587")
}

// GetPostgresDSN returns the database connection string. Empty selects the
// in-memory stores.
func (EnvVars) GetPostgresDSN() string {
	return GetEnv("POSTGRES_DSN", "")
}

// GetRedisAddr returns the Redis address for the refresh token ledger.
// Empty keeps the ledger in the primary store.
func (EnvVars) GetRedisAddr() string {
	return GetEnv("REDIS_ADDR", "")
}

// GetBaseURL returns the externally visible base URL of this service, used
// for the OIDC redirect URI.
func (EnvVars) GetBaseURL() string {
	return GetEnv("BASE_URL", "http://localhost:8080")
}

// GetFrontendURL is where provider logins redirect back to with tokens.
func (EnvVars) GetFrontendURL() string {
	return GetEnv("FRONTEND_URL", "http://localhost:4200")
}

func (EnvVars) GetOidcIssuerURL() string {
	return GetEnv("OIDC_ISSUER_URL", "")
}

func (EnvVars) GetOidcClientID() string {
	return GetEnv("OIDC_CLIENT_ID", "")
}

func (EnvVars) GetOidcClientSecret() string {
	return GetEnv("OIDC_CLIENT_SECRET", "")
}

func (EnvVars) GetEnv() string {
	env := os.Getenv("ENV")
	if env == "" {
		return "DEV"
	}
	return env
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}
