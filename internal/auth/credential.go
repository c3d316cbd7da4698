package auth

import (
	"net/http"
	"strings"
)

// SessionCookie is the cookie that carries a session credential for
// browser clients. API clients send "Authorization: Bearer <credential>".
const SessionCookie = "token"

// CredentialFromRequest returns the session credential presented with r.
// The Authorization header wins over the cookie when both are present.
func CredentialFromRequest(r *http.Request) (string, bool) {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, cred, ok := strings.Cut(h, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") {
			return "", false
		}
		cred = strings.TrimSpace(cred)
		return cred, cred != ""
	}

	cookie, err := r.Cookie(SessionCookie)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}

// SessionCookieFor builds the HttpOnly cookie that stores credential.
func SessionCookieFor(credential string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookie,
		Value:    credential,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}
