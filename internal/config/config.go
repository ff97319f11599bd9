package config

type Config interface {
	EnvConfig
	AuthConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetSmtpHost() string
	GetSmtpPort() string
	GetSmtpPassword() string
	GetSmtpAccount() string
	GetPostgresDSN() string
	GetRedisAddr() string
	GetBaseURL() string
	GetFrontendURL() string
	GetOidcIssuerURL() string
	GetOidcClientID() string
	GetOidcClientSecret() string
}

type mainConfig struct {
	EnvVars
	Auth
}

func New() Config {
	return mainConfig{}
}
