// Package service — authentication business logic.
//
// AuthService sits between the HTTP handlers and the repository/auth utilities:
//
//	handler → AuthService → UserRepository (DB)
//	                      ↘ TokenService (JWT)
//	                      ↘ PasswordService (bcrypt)
//	                      ↘ Mailer (reset email, fire-and-forget)
//
// PASSWORD RESET STATES:
//
//	Active ──ForgotPassword──▶ Issued ──ResetPassword──▶ Used
//	   ▲                         │  ▲                      │
//	   │                         └──┘ ForgotPassword       │
//	   └──────────────── ForgotPassword ◀──────────────────┘
//
// ForgotPassword arms the row with a fresh token id (jti) and mails a reset
// credential that carries it. ResetPassword commits only if the row is still
// unused and still armed with that jti, in a single conditional UPDATE, so a
// credential commits at most once and a newer request supersedes an older one.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/sakif/authors-haven/internal/apperror"
	"github.com/sakif/authors-haven/internal/auth"
	"github.com/sakif/authors-haven/internal/model"
	"github.com/sakif/authors-haven/internal/notify"
	"github.com/sakif/authors-haven/internal/repository"
)

// ErrEmailMissing is returned by LoginWithProfile when the provider gave no
// usable email address.
var ErrEmailMissing = errors.New("service/auth: social profile has no email address")

// Mailer queues an outbound message without waiting for delivery.
type Mailer interface {
	Dispatch(ctx context.Context, msg notify.Message) bool
}

// AuthService handles the authentication business logic.
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	mailer    Mailer
	resetURL  string
	logger    *slog.Logger
}

// NewAuthService wires an AuthService. resetURL is the page that receives
// the reset credential as its last path segment.
func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	mailer Mailer,
	resetURL string,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		mailer:    mailer,
		resetURL:  strings.TrimRight(resetURL, "/"),
		logger:    logger,
	}
}

// AuthResult bundles the user record and the issued session credential.
type AuthResult struct {
	User  *model.User
	Token string
}

// SignUp creates a local account and signs it in.
func (s *AuthService) SignUp(ctx context.Context, in SignUpInput) (*AuthResult, error) {
	if err := ValidateSignUp(in); err != nil {
		return nil, err
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Firstname:    strings.TrimSpace(in.Firstname),
		Lastname:     strings.TrimSpace(in.Lastname),
		Username:     strings.TrimSpace(in.Username),
		Email:        in.Email,
		PasswordHash: hash,
		RoleID:       model.RoleUser,
		Provider:     "local",
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("service/auth: creating user: %w", err)
	}

	s.logger.InfoContext(ctx, "user signed up", slog.String("userID", user.ID))
	return s.session(user)
}

// SignIn checks an email and password. An unknown email and a wrong
// password fail the same way.
func (s *AuthService) SignIn(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.InvalidCredentials()
		}
		return nil, fmt.Errorf("service/auth: looking up user: %w", err)
	}

	// Accounts created through a social login have no password.
	if user.PasswordHash == "" {
		return nil, apperror.InvalidCredentials()
	}

	ok, err := s.passwords.Matches(user.PasswordHash, password)
	if err != nil {
		return nil, fmt.Errorf("service/auth: checking password for %s: %w", user.ID, err)
	}
	if !ok {
		s.logger.InfoContext(ctx, "sign-in rejected", slog.String("userID", user.ID))
		return nil, apperror.InvalidCredentials()
	}

	return s.session(user)
}

// Authenticate resolves a session credential to the user it names.
func (s *AuthService) Authenticate(ctx context.Context, credential string) (*model.User, error) {
	claims, err := s.tokens.VerifySession(credential)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetUserByID(ctx, claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: loading session user: %w", err)
	}
	return user, nil
}

// ForgotPassword arms a reset for the account and emails the link.
// Delivery happens in the background; its outcome does not reach the caller.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return err
	}

	tokenID := uuid.NewString()
	if err := s.users.ArmPasswordReset(ctx, user.ID, tokenID); err != nil {
		return fmt.Errorf("service/auth: arming reset for %s: %w", user.ID, err)
	}

	credential, err := s.tokens.IssueReset(user.ID, user.Email, tokenID)
	if err != nil {
		return fmt.Errorf("service/auth: issuing reset credential: %w", err)
	}

	link := s.resetURL + "/" + credential
	s.mailer.Dispatch(ctx, notify.PasswordReset(user.Email, link, s.tokens.ResetTTL()))

	s.logger.InfoContext(ctx, "password reset requested", slog.String("userID", user.ID))
	return nil
}

// ResetPassword sets a new password using a reset credential.
func (s *AuthService) ResetPassword(ctx context.Context, credential, newPassword string) error {
	claims, err := s.tokens.VerifyReset(credential)
	if err != nil {
		return err
	}

	user, err := s.users.GetUserByID(ctx, claims.UserID)
	if err != nil {
		return err
	}
	if !strings.EqualFold(user.Email, claims.Email) {
		return apperror.NotFound("user", claims.Email)
	}

	if user.ResetUsed {
		return apperror.TokenAlreadyUsed()
	}
	if user.ResetTokenID != claims.ID {
		return apperror.TokenInvalid("reset link has been replaced by a newer one")
	}

	if err := ValidatePassword(newPassword); err != nil {
		return err
	}
	hash, err := s.passwords.Hash(newPassword)
	if err != nil {
		return err
	}

	committed, err := s.users.CommitPasswordReset(ctx, user.ID, user.Email, claims.ID, hash)
	if err != nil {
		return fmt.Errorf("service/auth: committing reset for %s: %w", user.ID, err)
	}
	if !committed {
		// Another request with the same credential won the race.
		return apperror.TokenAlreadyUsed()
	}

	s.logger.InfoContext(ctx, "password reset", slog.String("userID", user.ID))
	return nil
}

// LoginWithProfile signs in the account matching the profile's email,
// creating it on first use.
func (s *AuthService) LoginWithProfile(ctx context.Context, profile *auth.Profile) (*AuthResult, error) {
	if profile == nil {
		return nil, fmt.Errorf("service/auth: profile must not be nil")
	}

	email := profile.PrimaryEmail()
	if email == "" {
		return nil, ErrEmailMissing
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
	case errors.Is(err, apperror.ErrNotFound):
		first, last := splitName(profile.DisplayName)
		user = &model.User{
			Firstname:  first,
			Lastname:   last,
			Email:      email,
			RoleID:     model.RoleUser,
			Provider:   profile.Provider,
			ExternalID: profile.ExternalID,
			Image:      profile.Photo,
		}
		if err := s.users.CreateUser(ctx, user); err != nil {
			return nil, fmt.Errorf("service/auth: creating user from %s profile: %w", profile.Provider, err)
		}
		s.logger.InfoContext(ctx, "user registered via social login",
			slog.String("userID", user.ID),
			slog.String("provider", profile.Provider),
		)
	default:
		return nil, fmt.Errorf("service/auth: looking up %s profile: %w", profile.Provider, err)
	}

	return s.session(user)
}

func (s *AuthService) session(user *model.User) (*AuthResult, error) {
	token, err := s.tokens.IssueSession(user.ID, user.RoleID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: issuing session for %s: %w", user.ID, err)
	}
	return &AuthResult{User: user, Token: token}, nil
}

func splitName(display string) (string, string) {
	first, last, _ := strings.Cut(strings.TrimSpace(display), " ")
	return first, strings.TrimSpace(last)
}
