// Package oidc exchanges an OpenID Connect authorization code for a
// verified provider profile. It is the host-facing edge of provider login;
// the redirect plumbing around it stays in the host service.
package oidc

import (
	"context"

	"github.com/clockwrk/authcore/provider"
	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"
)

// Exchanger holds the provider discovery document and OAuth2 client
// configuration for one upstream identity provider.
type Exchanger struct {
	provider     *gooidc.Provider
	oauth2Config *oauth2.Config
}

func NewExchanger(ctx context.Context, issuerURL, clientID, clientSecret, redirectURL string) (*Exchanger, error) {
	oidcProvider, err := gooidc.NewProvider(ctx, issuerURL)
	if err != nil {
		return nil, errors.Wrap(err, "[NewExchanger] provider discovery")
	}

	return &Exchanger{
		provider: oidcProvider,
		oauth2Config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     oidcProvider.Endpoint(),
			Scopes:       []string{gooidc.ScopeOpenID, "profile", "email"},
		},
	}, nil
}

// AuthCodeURL builds the upstream authorization URL carrying state and
// nonce.
func (e *Exchanger) AuthCodeURL(state, nonce string) string {
	return e.oauth2Config.AuthCodeURL(state, gooidc.Nonce(nonce))
}

// Exchange swaps the authorization code for tokens, verifies the ID token
// signature and nonce, and extracts the asserted profile.
func (e *Exchanger) Exchange(ctx context.Context, code, nonce string) (provider.Profile, error) {
	oauth2Token, err := e.oauth2Config.Exchange(ctx, code)
	if err != nil {
		return provider.Profile{}, errors.Wrap(err, "[Exchanger.Exchange] token exchange")
	}

	rawIDToken, ok := oauth2Token.Extra("id_token").(string)
	if !ok {
		return provider.Profile{}, errors.New("[Exchanger.Exchange] no ID token in response")
	}

	idToken, err := e.provider.Verifier(&gooidc.Config{
		ClientID: e.oauth2Config.ClientID,
	}).Verify(ctx, rawIDToken)
	if err != nil {
		return provider.Profile{}, errors.Wrap(err, "[Exchanger.Exchange] ID token verification")
	}

	var claims struct {
		Nonce   string `json:"nonce"`
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return provider.Profile{}, errors.Wrap(err, "[Exchanger.Exchange] extract claims")
	}

	// Validate nonce to prevent replay attacks
	if nonce != "" && claims.Nonce != nonce {
		return provider.Profile{}, errors.New("[Exchanger.Exchange] invalid nonce")
	}

	return provider.Profile{
		Email:   claims.Email,
		Name:    claims.Name,
		Picture: claims.Picture,
	}, nil
}
