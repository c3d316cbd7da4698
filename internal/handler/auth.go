package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/authors-haven/internal/auth"
	"github.com/sakif/authors-haven/internal/service"
)

const stateCookie = "oauth_state"

// AuthHandler runs the social login flow.
//
// HANDLER RESPONSIBILITIES:
//   - HandleGitHubLogin    → redirect the browser to the provider's consent page
//   - HandleGitHubCallback → exchange the code for a profile, sign the user in
//
// The browser ends up back at the site root either way. Failures are
// reported in the query string (?auth=denied, ?auth=error&reason=...)
// because the page that started the flow is no longer there to receive JSON.
type AuthHandler struct {
	provider   auth.IdentityProvider
	auth       *service.AuthService
	sessionTTL time.Duration
	logger     *slog.Logger
}

func NewAuthHandler(
	provider auth.IdentityProvider,
	authService *service.AuthService,
	sessionTTL time.Duration,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		provider:   provider,
		auth:       authService,
		sessionTTL: sessionTTL,
		logger:     logger,
	}
}

// HandleGitHubLogin redirects to the provider with a fresh state value.
//
// HTTP: GET /auth/github/login
//
// The state is also stored in a short-lived HttpOnly cookie; the callback
// only proceeds when the two match, which proves this server started the
// flow.
func (h *AuthHandler) HandleGitHubLogin(w http.ResponseWriter, r *http.Request) {
	state := xid.New().String()

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.provider.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGitHubCallback completes the login.
//
// HTTP: GET /auth/github/callback?code=xxx&state=yyy
//
// FLOW:
//  1. Check the state against the cookie
//  2. Exchange the code for a profile
//  3. Find or create the account by email
//  4. Store the session credential in an HttpOnly cookie
//  5. Redirect to the site root
func (h *AuthHandler) HandleGitHubCallback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	cookie, err := r.Cookie(stateCookie)
	if err != nil || cookie.Value == "" || query.Get("state") != cookie.Value {
		h.logger.WarnContext(r.Context(), "auth callback: state mismatch")
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}

	// Single use.
	http.SetCookie(w, &http.Cookie{Name: stateCookie, Value: "", Path: "/", MaxAge: -1})

	if errParam := query.Get("error"); errParam != "" {
		h.logger.InfoContext(r.Context(), "auth callback: user denied authorization",
			slog.String("error", errParam),
		)
		http.Redirect(w, r, "/?auth=denied", http.StatusSeeOther)
		return
	}

	code := query.Get("code")
	if code == "" {
		http.Error(w, "missing OAuth code", http.StatusBadRequest)
		return
	}

	profile, err := h.provider.Exchange(r.Context(), code)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "auth callback: exchange failed", slog.String("error", err.Error()))
		http.Redirect(w, r, "/?auth=error&reason=exchange_failed", http.StatusSeeOther)
		return
	}

	result, err := h.auth.LoginWithProfile(r.Context(), profile)
	if errors.Is(err, service.ErrEmailMissing) {
		h.logger.InfoContext(r.Context(), "auth callback: profile has no email",
			slog.String("provider", profile.Provider),
			slog.String("externalID", profile.ExternalID),
		)
		http.Redirect(w, r, "/?auth=error&reason=email_missing", http.StatusSeeOther)
		return
	}
	if err != nil {
		h.logger.ErrorContext(r.Context(), "auth callback: login failed", slog.String("error", err.Error()))
		http.Redirect(w, r, "/?auth=error&reason=login_failed", http.StatusSeeOther)
		return
	}

	http.SetCookie(w, auth.SessionCookieFor(result.Token, int(h.sessionTTL.Seconds())))
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
