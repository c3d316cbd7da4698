package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/authors-haven/internal/auth"
	"github.com/sakif/authors-haven/internal/config"
	"github.com/sakif/authors-haven/internal/notify"
)

const resetPage = "http://app.test/reset-password"

// inbox is a Notifier that hands each message to the test.
type inbox chan notify.Message

func (in inbox) Send(_ context.Context, msg notify.Message) error {
	in <- msg
	return nil
}

func (in inbox) next(t *testing.T) notify.Message {
	t.Helper()
	select {
	case msg := <-in:
		return msg
	case <-time.After(5 * time.Second):
		t.Fatal("no email was delivered")
		return notify.Message{}
	}
}

// resetToken pulls the credential out of a reset email.
func resetToken(t *testing.T, msg notify.Message) string {
	t.Helper()
	for _, line := range strings.Split(msg.Body, "\n") {
		if token, ok := strings.CutPrefix(line, resetPage+"/"); ok {
			return token
		}
	}
	t.Fatalf("no reset link in %q", msg.Body)
	return ""
}

func newTestServer(t *testing.T, extra map[string]string, opts ...Option) (*Server, inbox) {
	t.Helper()

	vars := map[string]string{
		"JWT_SECRET":         "server-test-secret-0123456789",
		"DB_PATH":            ":memory:",
		"IMAGE_DIR":          t.TempDir(),
		"RESET_PASSWORD_URL": resetPage,
	}
	for k, v := range extra {
		vars[k] = v
	}
	cfg, err := config.LoadFrom(vars)
	require.NoError(t, err)

	mail := make(inbox, 8)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	opts = append([]Option{
		WithNotifier(mail),
		WithPasswordService(auth.NewPasswordServiceForTest(4)),
	}, opts...)

	srv, err := New(context.Background(), cfg, logger, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { srv.Close() })
	return srv, mail
}

type response struct {
	Code    int
	Status  int               `json:"status"`
	Message string            `json:"message"`
	Data    []json.RawMessage `json:"data"`
}

func call(t *testing.T, srv *Server, method, path, token string, body any) response {
	t.Helper()

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	res := response{Code: rr.Code}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res), rr.Body.String())
	return res
}

func tokenFrom(t *testing.T, res response) string {
	t.Helper()
	require.NotEmpty(t, res.Data)
	var payload struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(res.Data[0], &payload))
	return payload.Token
}

// =========================================================================
// END TO END
// =========================================================================

func TestPasswordResetScenario(t *testing.T) {
	srv, mail := newTestServer(t, nil)

	res := call(t, srv, http.MethodPost, "/users/signup", "", map[string]string{
		"firstname": "Ada", "lastname": "Lovelace", "email": "ada@example.com", "password": "analytical1",
	})
	require.Equal(t, http.StatusCreated, res.Code, res.Message)

	res = call(t, srv, http.MethodPost, "/users/signin", "", map[string]string{
		"email": "ada@example.com", "password": "analytical1",
	})
	require.Equal(t, http.StatusOK, res.Code, res.Message)

	res = call(t, srv, http.MethodPost, "/users/forgot-password", "", map[string]string{"email": "ada@example.com"})
	require.Equal(t, http.StatusOK, res.Code, res.Message)

	msg := mail.next(t)
	assert.Equal(t, "ada@example.com", msg.Recipient)
	token := resetToken(t, msg)

	res = call(t, srv, http.MethodPut, "/users/reset-password/"+token, "", map[string]string{"password": "difference2"})
	require.Equal(t, http.StatusCreated, res.Code, res.Message)

	res = call(t, srv, http.MethodPut, "/users/reset-password/"+token, "", map[string]string{"password": "another3one"})
	assert.Equal(t, http.StatusConflict, res.Code, "a reset link works once")

	res = call(t, srv, http.MethodPost, "/users/signin", "", map[string]string{
		"email": "ada@example.com", "password": "analytical1",
	})
	assert.Equal(t, http.StatusBadRequest, res.Code, "old password no longer works")

	res = call(t, srv, http.MethodPost, "/users/signin", "", map[string]string{
		"email": "ada@example.com", "password": "difference2",
	})
	assert.Equal(t, http.StatusOK, res.Code)
}

func TestPasswordReset_ExpiredLink(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	srv, mail := newTestServer(t, map[string]string{"RESET_TTL": "10m"}, WithClock(clock))

	call(t, srv, http.MethodPost, "/users/signup", "", map[string]string{
		"firstname": "Ada", "lastname": "Lovelace", "email": "ada@example.com", "password": "analytical1",
	})
	call(t, srv, http.MethodPost, "/users/forgot-password", "", map[string]string{"email": "ada@example.com"})
	token := resetToken(t, mail.next(t))

	now = now.Add(10 * time.Minute)

	res := call(t, srv, http.MethodPut, "/users/reset-password/"+token, "", map[string]string{"password": "difference2"})
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Equal(t, "token has expired", res.Message)
}

func TestForgotPassword_UnknownEmail(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	res := call(t, srv, http.MethodPost, "/users/forgot-password", "", map[string]string{"email": "ghost@example.com"})
	assert.Equal(t, http.StatusNotFound, res.Code)
}

func TestArticleWithImage_ServedAndDeleted(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	res := call(t, srv, http.MethodPost, "/users/signup", "", map[string]string{
		"firstname": "Ada", "lastname": "Lovelace", "email": "ada@example.com", "password": "analytical1",
	})
	token := tokenFrom(t, res)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("title", "Pictures"))
	require.NoError(t, mw.WriteField("body", "A post with an image"))
	part, err := mw.CreateFormFile("image", "cover.png")
	require.NoError(t, err)
	part.Write([]byte("not really a png"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/articles", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var created response
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))
	var article struct {
		Slug  string `json:"slug"`
		Image string `json:"image"`
	}
	require.NoError(t, json.Unmarshal(created.Data[0], &article))
	require.True(t, strings.HasPrefix(article.Image, "/images/"), article.Image)

	img := httptest.NewRecorder()
	srv.Handler().ServeHTTP(img, httptest.NewRequest(http.MethodGet, article.Image, nil))
	assert.Equal(t, http.StatusOK, img.Code)
	assert.Equal(t, "not really a png", img.Body.String())

	res = call(t, srv, http.MethodDelete, "/articles/"+article.Slug, token, nil)
	require.Equal(t, http.StatusOK, res.Code)

	img = httptest.NewRecorder()
	srv.Handler().ServeHTTP(img, httptest.NewRequest(http.MethodGet, article.Image, nil))
	assert.Equal(t, http.StatusNotFound, img.Code)
}

func TestRoutes_EnvelopeForUnknownRoute(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	res := call(t, srv, http.MethodGet, "/nowhere", "", nil)
	assert.Equal(t, http.StatusNotFound, res.Code)
	assert.Equal(t, http.StatusNotFound, res.Status)

	res = call(t, srv, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, res.Code)
}

func TestSocialRoutes_OnlyWhenConfigured(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	res := call(t, srv, http.MethodGet, "/auth/github/login", "", nil)
	assert.Equal(t, http.StatusNotFound, res.Code)

	srv, _ = newTestServer(t, map[string]string{"GITHUB_CLIENT_ID": "id", "GITHUB_CLIENT_SECRET": "secret"})
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/auth/github/login", nil))
	assert.Equal(t, http.StatusTemporaryRedirect, rr.Code)
	assert.Contains(t, rr.Header().Get("Location"), "github.com")
}
