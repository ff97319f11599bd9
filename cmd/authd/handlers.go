package main

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/clockwrk/authcore/auth"
)

const (
	routeRegister      = "POST /api/auth/register"
	routeAuthenticate  = "POST /api/auth/authenticate"
	routeSendOTP       = "POST /api/auth/otp/send"
	routeVerifyOTP     = "POST /api/auth/otp/verify"
	routeVerifySignup  = "POST /api/auth/signup/verify"
	routeRefresh       = "POST /api/auth/refresh"
	routeOAuthLogin    = "/api/auth/oauth2/login"
	routeOAuthCallback = "/api/auth/oauth2/callback"
)

type httpMux struct {
	*http.ServeMux
}

func (h *host) initRoutes() *httpMux {
	mux := http.NewServeMux()
	mux.HandleFunc(routeRegister, h.registerHandler)
	mux.HandleFunc(routeAuthenticate, h.authenticateHandler)
	mux.HandleFunc(routeSendOTP, h.sendOTPHandler)
	mux.HandleFunc(routeVerifyOTP, h.verifyOTPHandler)
	mux.HandleFunc(routeVerifySignup, h.verifySignupHandler)
	mux.HandleFunc(routeRefresh, h.refreshHandler)
	if h.exchanger != nil {
		mux.HandleFunc("GET "+routeOAuthLogin, h.oauthLoginHandler)
		mux.HandleFunc("GET "+routeOAuthCallback, h.oauthCallbackHandler)
	}
	return &httpMux{mux}
}

func (h *host) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name,omitempty"`
}

type otpRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp,omitempty"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (h *host) registerHandler(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decode(w, r, &req) {
		return
	}
	result, err := h.service.Register(r.Context(), req.Email, req.Password, req.Name)
	h.respond(w, result, err)
}

func (h *host) authenticateHandler(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decode(w, r, &req) {
		return
	}
	result, err := h.service.Authenticate(r.Context(), req.Email, req.Password)
	h.respond(w, result, err)
}

func (h *host) sendOTPHandler(w http.ResponseWriter, r *http.Request) {
	var req otpRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.service.SendOTP(r.Context(), req.Email); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *host) verifyOTPHandler(w http.ResponseWriter, r *http.Request) {
	var req otpRequest
	if !decode(w, r, &req) {
		return
	}
	result, err := h.service.VerifyOTP(r.Context(), req.Email, req.OTP)
	h.respond(w, result, err)
}

func (h *host) verifySignupHandler(w http.ResponseWriter, r *http.Request) {
	var req otpRequest
	if !decode(w, r, &req) {
		return
	}
	result, err := h.service.VerifySignupEmail(r.Context(), req.Email, req.OTP)
	h.respond(w, result, err)
}

func (h *host) refreshHandler(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decode(w, r, &req) {
		return
	}
	result, err := h.service.Refresh(r.Context(), req.RefreshToken)
	h.respond(w, result, err)
}

func (h *host) oauthLoginHandler(w http.ResponseWriter, r *http.Request) {
	state := randomValue()
	nonce := randomValue()
	http.SetCookie(w, &http.Cookie{Name: "oauth_state", Value: state, Path: routeOAuthCallback, HttpOnly: true, MaxAge: 600})
	http.SetCookie(w, &http.Cookie{Name: "oauth_nonce", Value: nonce, Path: routeOAuthCallback, HttpOnly: true, MaxAge: 600})
	http.Redirect(w, r, h.exchanger.AuthCodeURL(state, nonce), http.StatusFound)
}

func (h *host) oauthCallbackHandler(w http.ResponseWriter, r *http.Request) {
	stateCookie, err := r.Cookie("oauth_state")
	if err != nil || r.FormValue("state") != stateCookie.Value {
		http.Error(w, "Invalid state parameter", http.StatusBadRequest)
		return
	}
	nonceCookie, err := r.Cookie("oauth_nonce")
	if err != nil {
		http.Error(w, "Missing nonce", http.StatusBadRequest)
		return
	}

	profile, err := h.exchanger.Exchange(r.Context(), r.FormValue("code"), nonceCookie.Value)
	if err != nil {
		h.logger.Error().Err(err).Msg("oauth exchange failed")
		http.Redirect(w, r, h.config.GetFrontendURL()+"/login?error=oauth_failed", http.StatusFound)
		return
	}

	result, err := h.service.ProviderLogin(r.Context(), profile)
	if err != nil {
		h.logger.Error().Err(err).Msg("provider login failed")
		http.Redirect(w, r, h.config.GetFrontendURL()+"/login?error=oauth_email_missing", http.StatusFound)
		return
	}

	redirect := h.config.GetFrontendURL() + "/oauth2/redirect?" + url.Values{
		"token":        {result.AccessToken},
		"refreshToken": {result.RefreshToken},
	}.Encode()
	http.Redirect(w, r, redirect, http.StatusFound)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

func (h *host) respond(w http.ResponseWriter, result *auth.Result, err error) {
	if err != nil {
		h.respondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(result)
}

// respondError maps failure kinds to HTTP statuses. Internal detail is
// already logged by the service; the body carries only the kind's message.
func (h *host) respondError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	message := "internal error"

	switch auth.KindOf(err) {
	case auth.KindConflict:
		status, message = http.StatusConflict, err.Error()
	case auth.KindBadRequest:
		status, message = http.StatusBadRequest, err.Error()
	case auth.KindUnauthorized:
		status, message = http.StatusUnauthorized, err.Error()
	case auth.KindNotFound:
		status, message = http.StatusNotFound, err.Error()
	case auth.KindForbidden:
		status, message = http.StatusForbidden, err.Error()
	case auth.KindProvider:
		status, message = http.StatusBadGateway, err.Error()
	}

	http.Error(w, message, status)
}

func randomValue() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}
