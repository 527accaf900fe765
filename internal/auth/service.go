package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/surpresalabs/surpresa/internal/config"
	httperrors "github.com/surpresalabs/surpresa/internal/http/errors"
	"github.com/surpresalabs/surpresa/internal/store"
)

const stateCookieName = "surpresa_oauth_state"

// Service owns the OIDC sign-in hand-off. Everything before the redirect and
// after the callback runs in separate requests, so no state is held in memory
// between the two: the state nonce travels in a short-lived cookie, and any
// captured creation intent travels in its own cookie until a session exists.
type Service struct {
	cfg      *config.Config
	store    *store.Store
	sessions *SessionManager

	oauth    oauth2.Config
	verifier *oidc.IDTokenVerifier
}

func NewService(ctx context.Context, cfg *config.Config, stor *store.Store, sessions *SessionManager) (*Service, error) {
	provider, err := oidc.NewProvider(ctx, cfg.OAuth.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("discover oidc provider: %w", err)
	}

	redirectURL := strings.TrimRight(cfg.BaseURL, "/") + cfg.OAuth.RedirectPath

	return &Service{
		cfg:      cfg,
		store:    stor,
		sessions: sessions,
		oauth: oauth2.Config{
			ClientID:     cfg.OAuth.ClientID,
			ClientSecret: cfg.OAuth.ClientSecret,
			Endpoint:     provider.Endpoint(),
			RedirectURL:  redirectURL,
			Scopes:       []string{oidc.ScopeOpenID, "email", "profile"},
		},
		verifier: provider.Verifier(&oidc.Config{ClientID: cfg.OAuth.ClientID}),
	}, nil
}

// BeginOAuth starts the sign-in flow. An optional "next" query parameter is
// round-tripped through the state so the callback can land the user back
// where the funnel sent them.
func (s *Service) BeginOAuth(w http.ResponseWriter, r *http.Request) {
	nonce, err := randomToken()
	if err != nil {
		httperrors.InternalError(w, r, err, "failed to generate oauth state")
		return
	}

	next := sanitizeNext(r.URL.Query().Get("next"))
	state := nonce + "|" + next

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    nonce,
		Path:     "/",
		MaxAge:   300,
		HttpOnly: true,
		Secure:   s.sessions.Secure(),
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, s.oauth.AuthCodeURL(state), http.StatusFound)
}

// HandleOAuthCallback completes the flow: validates state, exchanges the
// code, verifies the ID token, upserts the user, and issues a session. The
// user lands on "next" (default /calendars), where any pending creation
// intent is drained.
func (s *Service) HandleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	stateCookie, err := r.Cookie(stateCookieName)
	if err != nil {
		http.Error(w, "missing oauth state", http.StatusBadRequest)
		return
	}
	http.SetCookie(w, &http.Cookie{Name: stateCookieName, Value: "", Path: "/", MaxAge: -1})

	nonce, next, ok := strings.Cut(r.URL.Query().Get("state"), "|")
	if !ok || nonce != stateCookie.Value {
		http.Error(w, "invalid oauth state", http.StatusBadRequest)
		return
	}
	next = sanitizeNext(next)

	token, err := s.oauth.Exchange(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		httperrors.InternalError(w, r, err, "oauth code exchange failed")
		return
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		http.Error(w, "missing id token", http.StatusBadGateway)
		return
	}

	idToken, err := s.verifier.Verify(r.Context(), rawIDToken)
	if err != nil {
		httperrors.InternalError(w, r, err, "id token verification failed")
		return
	}

	var claims struct {
		Email string `json:"email"`
	}
	if err := idToken.Claims(&claims); err != nil {
		httperrors.InternalError(w, r, err, "failed to parse id token claims")
		return
	}

	user, err := s.store.Users.UpsertOAuthUser(r.Context(), idToken.Subject, claims.Email)
	if err != nil {
		httperrors.InternalError(w, r, err, "failed to persist user")
		return
	}

	if err := s.sessions.Issue(w, user.ID); err != nil {
		httperrors.InternalError(w, r, err, "failed to issue session")
		return
	}

	http.Redirect(w, r, next, http.StatusFound)
}

// RequireSession loads the current user or redirects to login.
func (s *Service) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := s.lookupUser(r)
		if !ok {
			target := "/auth/login?next=" + url.QueryEscape(r.URL.RequestURI())
			http.Redirect(w, r, target, http.StatusFound)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

// OptionalSession attaches the user when a valid session exists but never
// blocks: visitor-facing pages serve anonymous viewers too.
func (s *Service) OptionalSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user, ok := s.lookupUser(r); ok {
			r = r.WithContext(WithUser(r.Context(), user))
		}
		next.ServeHTTP(w, r)
	})
}

// ClearSession removes the session cookie.
func (s *Service) ClearSession(w http.ResponseWriter) {
	s.sessions.Clear(w)
}

func (s *Service) lookupUser(r *http.Request) (*store.User, bool) {
	userID, ok := s.sessions.CurrentUserID(r)
	if !ok {
		return nil, false
	}
	user, err := s.store.Users.GetByID(r.Context(), userID)
	if err != nil {
		return nil, false
	}
	return user, true
}

func sanitizeNext(next string) string {
	// Only same-site absolute paths are allowed as redirect targets.
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") {
		return "/calendars"
	}
	return next
}

func randomToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
