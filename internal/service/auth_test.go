package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sakif/authors-haven/internal/apperror"
	"github.com/sakif/authors-haven/internal/auth"
)

const testResetURL = "http://app.test/reset-password"

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type authFixture struct {
	svc    *AuthService
	repo   *fakeUserRepo
	mailer *fakeMailer
	tokens *auth.TokenService
	clock  *testClock
}

func newTestAuthService(t *testing.T) *authFixture {
	t.Helper()

	clock := &testClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	ts, err := auth.NewTokenService("test-secret-at-least-16-chars!!", auth.WithClock(clock.Now))
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}

	repo := newFakeUserRepo()
	mailer := &fakeMailer{}
	// Cost 4 is the bcrypt minimum and keeps the tests fast.
	svc := NewAuthService(repo, ts, auth.NewPasswordServiceForTest(4), mailer, testResetURL+"/", discardLogger())
	return &authFixture{svc: svc, repo: repo, mailer: mailer, tokens: ts, clock: clock}
}

func validSignUp(email string) SignUpInput {
	return SignUpInput{
		Firstname: "Ada",
		Lastname:  "Lovelace",
		Email:     email,
		Password:  "analytical1",
	}
}

// resetCredential extracts the credential from the last reset email.
func (f *authFixture) resetCredential(t *testing.T) string {
	t.Helper()
	msg, ok := f.mailer.last()
	if !ok {
		t.Fatal("no reset email was dispatched")
	}
	for _, line := range strings.Split(msg.Body, "\n") {
		if strings.HasPrefix(line, testResetURL+"/") {
			return strings.TrimPrefix(line, testResetURL+"/")
		}
	}
	t.Fatalf("reset email has no link: %q", msg.Body)
	return ""
}

func assertIs(t *testing.T, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("error = %v, want %v", err, target)
	}
}

// =========================================================================
// SignUp / SignIn
// =========================================================================

func TestSignUp_IssuesSessionForNewUser(t *testing.T) {
	f := newTestAuthService(t)

	result, err := f.svc.SignUp(context.Background(), validSignUp("Ada@Example.com"))
	if err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}
	if result.User.Email != "ada@example.com" {
		t.Errorf("Email = %q, want lowercased", result.User.Email)
	}
	if result.User.PasswordHash == "analytical1" || result.User.PasswordHash == "" {
		t.Error("password must be stored hashed")
	}

	claims, err := f.tokens.VerifySession(result.Token)
	if err != nil {
		t.Fatalf("VerifySession() error = %v", err)
	}
	if claims.UserID != result.User.ID {
		t.Errorf("claims.UserID = %q, want %q", claims.UserID, result.User.ID)
	}
}

func TestSignUp_DuplicateEmailConflicts(t *testing.T) {
	f := newTestAuthService(t)

	if _, err := f.svc.SignUp(context.Background(), validSignUp("ada@example.com")); err != nil {
		t.Fatalf("first SignUp() error = %v", err)
	}
	_, err := f.svc.SignUp(context.Background(), validSignUp("ADA@example.com"))
	assertIs(t, err, apperror.ErrConflict)
}

func TestSignUp_RejectsInvalidInput(t *testing.T) {
	f := newTestAuthService(t)

	in := validSignUp("not-an-email")
	_, err := f.svc.SignUp(context.Background(), in)
	assertIs(t, err, apperror.ErrValidation)
	if f.repo.created != 0 {
		t.Error("no user should be created on validation failure")
	}
}

func TestSignIn(t *testing.T) {
	f := newTestAuthService(t)
	ctx := context.Background()
	if _, err := f.svc.SignUp(ctx, validSignUp("ada@example.com")); err != nil {
		t.Fatalf("setup: %v", err)
	}

	tests := []struct {
		name     string
		email    string
		password string
		wantErr  error
	}{
		{"correct credentials", "ada@example.com", "analytical1", nil},
		{"email is case-insensitive", "ADA@EXAMPLE.COM", "analytical1", nil},
		{"wrong password", "ada@example.com", "analytical2", apperror.ErrInvalidCredentials},
		{"unknown email", "bob@example.com", "analytical1", apperror.ErrInvalidCredentials},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result, err := f.svc.SignIn(ctx, tc.email, tc.password)
			if tc.wantErr != nil {
				assertIs(t, err, tc.wantErr)
				return
			}
			if err != nil {
				t.Fatalf("SignIn() error = %v", err)
			}
			if result.Token == "" {
				t.Error("SignIn() returned empty token")
			}
		})
	}
}

func TestSignIn_SocialAccountHasNoPassword(t *testing.T) {
	f := newTestAuthService(t)
	ctx := context.Background()

	_, err := f.svc.LoginWithProfile(ctx, &auth.Profile{Provider: "github", ExternalID: "1", Emails: []string{"octo@example.com"}})
	if err != nil {
		t.Fatalf("setup: %v", err)
	}

	_, err = f.svc.SignIn(ctx, "octo@example.com", "")
	assertIs(t, err, apperror.ErrInvalidCredentials)
}

func TestAuthenticate(t *testing.T) {
	f := newTestAuthService(t)
	ctx := context.Background()

	result, err := f.svc.SignUp(ctx, validSignUp("ada@example.com"))
	if err != nil {
		t.Fatalf("setup: %v", err)
	}

	user, err := f.svc.Authenticate(ctx, result.Token)
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if user.ID != result.User.ID {
		t.Errorf("user.ID = %q, want %q", user.ID, result.User.ID)
	}

	_, err = f.svc.Authenticate(ctx, "this.is.garbage")
	assertIs(t, err, apperror.ErrTokenInvalid)
}

// =========================================================================
// PASSWORD RESET
// =========================================================================

func TestForgotPassword_UnknownEmail(t *testing.T) {
	f := newTestAuthService(t)

	err := f.svc.ForgotPassword(context.Background(), "nobody@example.com")
	assertIs(t, err, apperror.ErrNotFound)
	if _, ok := f.mailer.last(); ok {
		t.Error("no email should be sent for an unknown address")
	}
}

func TestForgotPassword_ArmsAndMails(t *testing.T) {
	f := newTestAuthService(t)
	ctx := context.Background()
	signed, _ := f.svc.SignUp(ctx, validSignUp("ada@example.com"))

	if err := f.svc.ForgotPassword(ctx, "ada@example.com"); err != nil {
		t.Fatalf("ForgotPassword() error = %v", err)
	}

	msg, _ := f.mailer.last()
	if msg.Recipient != "ada@example.com" {
		t.Errorf("Recipient = %q", msg.Recipient)
	}

	claims, err := f.tokens.VerifyReset(f.resetCredential(t))
	if err != nil {
		t.Fatalf("VerifyReset() error = %v", err)
	}
	stored, _ := f.repo.GetUserByID(ctx, signed.User.ID)
	if stored.ResetTokenID != claims.ID {
		t.Errorf("ResetTokenID = %q, want jti %q", stored.ResetTokenID, claims.ID)
	}
	if stored.ResetUsed {
		t.Error("ResetUsed should be cleared when a reset is armed")
	}
}

func TestResetPassword_SucceedsOnceThenRejectsReplay(t *testing.T) {
	f := newTestAuthService(t)
	ctx := context.Background()
	f.svc.SignUp(ctx, validSignUp("ada@example.com"))
	f.svc.ForgotPassword(ctx, "ada@example.com")
	credential := f.resetCredential(t)

	if err := f.svc.ResetPassword(ctx, credential, "difference2"); err != nil {
		t.Fatalf("ResetPassword() error = %v", err)
	}

	if _, err := f.svc.SignIn(ctx, "ada@example.com", "difference2"); err != nil {
		t.Errorf("SignIn with new password error = %v", err)
	}
	if _, err := f.svc.SignIn(ctx, "ada@example.com", "analytical1"); !errors.Is(err, apperror.ErrInvalidCredentials) {
		t.Errorf("old password should stop working, got %v", err)
	}

	err := f.svc.ResetPassword(ctx, credential, "another3pass")
	assertIs(t, err, apperror.ErrTokenAlreadyUsed)
}

func TestResetPassword_NewRequestSupersedesOld(t *testing.T) {
	f := newTestAuthService(t)
	ctx := context.Background()
	f.svc.SignUp(ctx, validSignUp("ada@example.com"))

	f.svc.ForgotPassword(ctx, "ada@example.com")
	first := f.resetCredential(t)
	f.svc.ForgotPassword(ctx, "ada@example.com")
	second := f.resetCredential(t)

	err := f.svc.ResetPassword(ctx, first, "difference2")
	assertIs(t, err, apperror.ErrTokenInvalid)

	if err := f.svc.ResetPassword(ctx, second, "difference2"); err != nil {
		t.Fatalf("ResetPassword(second) error = %v", err)
	}
}

func TestResetPassword_ReArmAfterUse(t *testing.T) {
	f := newTestAuthService(t)
	ctx := context.Background()
	f.svc.SignUp(ctx, validSignUp("ada@example.com"))

	f.svc.ForgotPassword(ctx, "ada@example.com")
	if err := f.svc.ResetPassword(ctx, f.resetCredential(t), "difference2"); err != nil {
		t.Fatalf("first reset: %v", err)
	}

	f.svc.ForgotPassword(ctx, "ada@example.com")
	if err := f.svc.ResetPassword(ctx, f.resetCredential(t), "difference3"); err != nil {
		t.Fatalf("second reset: %v", err)
	}
}

func TestResetPassword_Expired(t *testing.T) {
	f := newTestAuthService(t)
	ctx := context.Background()
	f.svc.SignUp(ctx, validSignUp("ada@example.com"))
	f.svc.ForgotPassword(ctx, "ada@example.com")
	credential := f.resetCredential(t)

	f.clock.Advance(f.tokens.ResetTTL())

	err := f.svc.ResetPassword(ctx, credential, "difference2")
	assertIs(t, err, apperror.ErrTokenExpired)
}

func TestResetPassword_RejectsSessionCredential(t *testing.T) {
	f := newTestAuthService(t)
	ctx := context.Background()
	signed, _ := f.svc.SignUp(ctx, validSignUp("ada@example.com"))

	err := f.svc.ResetPassword(ctx, signed.Token, "difference2")
	assertIs(t, err, apperror.ErrTokenInvalid)
}

func TestResetPassword_WeakPasswordLeavesResetArmed(t *testing.T) {
	f := newTestAuthService(t)
	ctx := context.Background()
	f.svc.SignUp(ctx, validSignUp("ada@example.com"))
	f.svc.ForgotPassword(ctx, "ada@example.com")
	credential := f.resetCredential(t)

	err := f.svc.ResetPassword(ctx, credential, "short")
	assertIs(t, err, apperror.ErrValidation)

	if err := f.svc.ResetPassword(ctx, credential, "difference2"); err != nil {
		t.Fatalf("ResetPassword() after validation failure error = %v", err)
	}
}

func TestResetPassword_ConcurrentSingleWinner(t *testing.T) {
	f := newTestAuthService(t)
	ctx := context.Background()
	f.svc.SignUp(ctx, validSignUp("ada@example.com"))
	f.svc.ForgotPassword(ctx, "ada@example.com")
	credential := f.resetCredential(t)

	const n = 8
	var wins, used atomic.Int32
	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := f.svc.ResetPassword(ctx, credential, "difference2")
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, apperror.ErrTokenAlreadyUsed):
				used.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if wins.Load() != 1 {
		t.Errorf("wins = %d, want exactly 1", wins.Load())
	}
	if used.Load() != n-1 {
		t.Errorf("already-used = %d, want %d", used.Load(), n-1)
	}
}

// =========================================================================
// SOCIAL LOGIN
// =========================================================================

func TestLoginWithProfile_CreatesThenReuses(t *testing.T) {
	f := newTestAuthService(t)
	ctx := context.Background()
	profile := &auth.Profile{
		Provider:    "github",
		ExternalID:  "42",
		DisplayName: "The Octocat",
		Emails:      []string{"octo@example.com"},
		Photo:       "https://avatars/42",
	}

	first, err := f.svc.LoginWithProfile(ctx, profile)
	if err != nil {
		t.Fatalf("LoginWithProfile() error = %v", err)
	}
	if first.User.Firstname != "The" || first.User.Lastname != "Octocat" {
		t.Errorf("name = %q %q", first.User.Firstname, first.User.Lastname)
	}

	second, err := f.svc.LoginWithProfile(ctx, profile)
	if err != nil {
		t.Fatalf("second LoginWithProfile() error = %v", err)
	}
	if second.User.ID != first.User.ID {
		t.Errorf("second login created a new user %q", second.User.ID)
	}
	if f.repo.created != 1 {
		t.Errorf("created = %d, want 1", f.repo.created)
	}
}

func TestLoginWithProfile_LinksExistingLocalAccount(t *testing.T) {
	f := newTestAuthService(t)
	ctx := context.Background()
	local, _ := f.svc.SignUp(ctx, validSignUp("ada@example.com"))

	result, err := f.svc.LoginWithProfile(ctx, &auth.Profile{Provider: "github", Emails: []string{"Ada@example.com"}})
	if err != nil {
		t.Fatalf("LoginWithProfile() error = %v", err)
	}
	if result.User.ID != local.User.ID {
		t.Errorf("user = %q, want existing %q", result.User.ID, local.User.ID)
	}
}

func TestLoginWithProfile_NoEmail(t *testing.T) {
	f := newTestAuthService(t)

	_, err := f.svc.LoginWithProfile(context.Background(), &auth.Profile{Provider: "github", ExternalID: "9"})
	assertIs(t, err, ErrEmailMissing)

	_, err = f.svc.LoginWithProfile(context.Background(), nil)
	if err == nil {
		t.Fatal("LoginWithProfile(nil) should fail")
	}
}

func TestLoginWithProfile_RepositoryError(t *testing.T) {
	f := newTestAuthService(t)
	f.repo.getErr = errors.New("database is on fire")

	_, err := f.svc.LoginWithProfile(context.Background(), &auth.Profile{Provider: "github", Emails: []string{"a@example.com"}})
	if err == nil {
		t.Fatal("LoginWithProfile() should propagate repository errors")
	}
}
