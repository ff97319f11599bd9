package main

import (
	"context"
	"database/sql"
	"os"
	"time"

	"github.com/clockwrk/authcore/accounts"
	accountpg "github.com/clockwrk/authcore/accounts/postgresrepo"
	accountrepofake "github.com/clockwrk/authcore/accounts/repofake"
	"github.com/clockwrk/authcore/auth"
	"github.com/clockwrk/authcore/internal/config"
	"github.com/clockwrk/authcore/internal/postgres"
	"github.com/clockwrk/authcore/mailer"
	"github.com/clockwrk/authcore/provider/oidc"
	"github.com/clockwrk/authcore/token"
	"github.com/clockwrk/authcore/token/refresh"
	refreshpg "github.com/clockwrk/authcore/token/refresh/postgresrepo"
	"github.com/clockwrk/authcore/token/refresh/redisrepo"
	refreshrepofake "github.com/clockwrk/authcore/token/refresh/repofake"
	"github.com/pkg/errors"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const sweepInterval = time.Hour

// host wires the authentication core to its collaborators: stores, mailer,
// identity provider and the HTTP edge.
type host struct {
	config    config.Config
	logger    zerolog.Logger
	service   *auth.Service
	exchanger *oidc.Exchanger
	db        *sql.DB
	mux       *httpMux
}

func newHost(c config.Config) (*host, error) {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	if c.GetEnv() != "DEV" {
		logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}

	h := &host{config: c, logger: logger}

	accountRepo, refreshRepo, err := h.openStores()
	if err != nil {
		return nil, err
	}

	secret := c.GetSigningSecret()
	if secret == "" {
		if c.GetEnv() != "DEV" {
			return nil, errors.New("SIGNING_SECRET is required outside DEV")
		}
		secret = "dev-signing-secret"
		logger.Warn().Msg("SIGNING_SECRET unset, using development default")
	}

	issuer := token.NewIssuer(token.NewHMACSigner(secret),
		token.WithIssuer(c.GetTokenIssuer()),
		token.WithExpiries(c.GetAccessTokenExpiry(), c.GetRefreshTokenExpiry()),
	)

	var mail mailer.Mailer
	if c.GetSmtpAccount() != "" {
		mail = mailer.NewSMTP(c.GetSmtpHost(), c.GetSmtpPort(), c.GetSmtpAccount(), c.GetSmtpPassword())
	} else {
		mail = mailer.NewLog(logger)
	}

	service, err := auth.NewService(
		auth.Repos{Accounts: accountRepo, RefreshTokens: refreshRepo},
		issuer,
		mail,
		auth.WithLogger(logger),
		auth.WithOTPTTL(c.GetOTPExpiry()),
	)
	if err != nil {
		return nil, errors.Wrap(err, "auth.NewService")
	}
	h.service = service

	if issuerURL := c.GetOidcIssuerURL(); issuerURL != "" {
		redirectURL := c.GetBaseURL() + routeOAuthCallback
		exchanger, err := oidc.NewExchanger(context.Background(), issuerURL,
			c.GetOidcClientID(), c.GetOidcClientSecret(), redirectURL)
		if err != nil {
			return nil, errors.Wrap(err, "oidc.NewExchanger")
		}
		h.exchanger = exchanger
	}

	h.mux = h.initRoutes()
	return h, nil
}

func (h *host) openStores() (accounts.Repo, refresh.Repo, error) {
	var accountRepo accounts.Repo
	var refreshRepo refresh.Repo

	if dsn := h.config.GetPostgresDSN(); dsn != "" {
		db, err := postgres.Open(context.Background(), dsn)
		if err != nil {
			return nil, nil, errors.Wrap(err, "postgres.Open")
		}
		h.db = db
		accountRepo = accountpg.New(db)
		refreshRepo = refreshpg.New(db)
	} else {
		h.logger.Warn().Msg("POSTGRES_DSN unset, using in-memory stores")
		accountRepo = accountrepofake.NewFakeAccountRepo()
		refreshRepo = refreshrepofake.NewFakeRefreshTokenRepo()
	}

	if addr := h.config.GetRedisAddr(); addr != "" {
		client := goredis.NewClient(&goredis.Options{Addr: addr})
		refreshRepo = redisrepo.New(client)
	}

	return accountRepo, refreshRepo, nil
}

// sweepLoop periodically deletes refresh token records that are expired or
// revoked. Safe to run concurrently with issuance and lookup.
func (h *host) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for range ticker.C {
		deleted, err := h.service.Ledger().SweepExpired(context.Background())
		if err != nil {
			h.logger.Error().Err(err).Msg("refresh token sweep failed")
			continue
		}
		if deleted > 0 {
			h.logger.Info().Int64("deleted", deleted).Msg("swept refresh tokens")
		}
	}
}

func (h *host) Close() {
	if h.db != nil {
		_ = h.db.Close()
	}
}
