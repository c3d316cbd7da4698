package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/authors-haven/internal/apperror"
	"github.com/sakif/authors-haven/internal/auth"
	"github.com/sakif/authors-haven/internal/guard"
	"github.com/sakif/authors-haven/internal/model"
	"github.com/sakif/authors-haven/internal/service"
)

// AuthPayload is returned by sign-up and sign-in.
type AuthPayload struct {
	Token string        `json:"token"`
	User  model.Profile `json:"user"`
}

// UserHandler serves the account routes under /users. Request bodies have
// already been decoded and validated by the route's guards.
type UserHandler struct {
	auth       *service.AuthService
	sessionTTL time.Duration
	logger     *slog.Logger
}

func NewUserHandler(authService *service.AuthService, sessionTTL time.Duration, logger *slog.Logger) *UserHandler {
	return &UserHandler{auth: authService, sessionTTL: sessionTTL, logger: logger}
}

// HandleSignUp creates an account.
//
// HTTP: POST /users/signup
func (h *UserHandler) HandleSignUp(w http.ResponseWriter, r *http.Request, c guard.Context) {
	in, ok := guard.BodyAs[service.SignUpInput](c)
	if !ok {
		WriteError(w, r, apperror.ValidationFailed("body", "missing sign-up details"))
		return
	}

	result, err := h.auth.SignUp(r.Context(), in)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	h.setSession(w, result.Token)
	Respond(w, http.StatusCreated, "user created successfully", h.payload(result))
}

// HandleSignIn checks credentials and starts a session.
//
// HTTP: POST /users/signin
func (h *UserHandler) HandleSignIn(w http.ResponseWriter, r *http.Request, c guard.Context) {
	in, ok := guard.BodyAs[service.SignInInput](c)
	if !ok {
		WriteError(w, r, apperror.ValidationFailed("body", "missing sign-in details"))
		return
	}

	result, err := h.auth.SignIn(r.Context(), in.Email, in.Password)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	h.setSession(w, result.Token)
	Respond(w, http.StatusOK, "signed in successfully", h.payload(result))
}

// HandleSignOut clears the session cookie. Issued credentials stay valid
// until they expire.
//
// HTTP: POST /users/signout
func (h *UserHandler) HandleSignOut(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, auth.SessionCookieFor("", -1))
	Respond[any](w, http.StatusOK, "signed out")
}

// HandleForgotPassword emails a reset link.
//
// HTTP: POST /users/forgot-password
func (h *UserHandler) HandleForgotPassword(w http.ResponseWriter, r *http.Request, c guard.Context) {
	in, ok := guard.BodyAs[service.EmailInput](c)
	if !ok {
		WriteError(w, r, apperror.ValidationFailed("email", "email is required"))
		return
	}

	if err := h.auth.ForgotPassword(r.Context(), in.Email); err != nil {
		WriteError(w, r, err)
		return
	}
	Respond[any](w, http.StatusOK, "a password reset link has been sent to your email")
}

// HandleResetPassword sets a new password with the credential from the
// reset link.
//
// HTTP: PUT /users/reset-password/{token}
func (h *UserHandler) HandleResetPassword(w http.ResponseWriter, r *http.Request, c guard.Context) {
	in, ok := guard.BodyAs[service.PasswordInput](c)
	if !ok {
		WriteError(w, r, apperror.ValidationFailed("password", "password is required"))
		return
	}

	if err := h.auth.ResetPassword(r.Context(), chi.URLParam(r, "token"), in.Password); err != nil {
		WriteError(w, r, err)
		return
	}
	Respond[any](w, http.StatusCreated, "password reset successfully")
}

func (h *UserHandler) setSession(w http.ResponseWriter, token string) {
	http.SetCookie(w, auth.SessionCookieFor(token, int(h.sessionTTL.Seconds())))
}

func (h *UserHandler) payload(result *service.AuthResult) AuthPayload {
	return AuthPayload{Token: result.Token, User: result.User.Profile()}
}
