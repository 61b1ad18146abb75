// internal/session/session.go
//
// Refresh-token cookie helpers.
//
// Context
//   Access tokens travel in the Authorization header and live in client
//   memory.  The refresh token rides in an HttpOnly, SameSite=Strict cookie
//   scoped to the auth API, so page scripts never see it and cross-site
//   requests never carry it.  These helpers are the only code that touches
//   the cookie; components/auth relies on this small API.
//
//------------------------------------------------------------------------------

package session

import (
	"net/http"
	"strings"
	"time"
)

const (
	CookieName = "refreshToken"
	cookiePath = "/api/auth"
)

// SetRefresh stores tok for ttl.  secure marks the cookie HTTPS-only; it is
// forced on when the request itself arrived over TLS.
func SetRefresh(w http.ResponseWriter, r *http.Request, tok string, ttl time.Duration, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    tok,
		Path:     cookiePath,
		HttpOnly: true,
		Secure:   secure || r.TLS != nil,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   int(ttl / time.Second),
	})
}

// ClearRefresh expires the cookie.
func ClearRefresh(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     cookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// Refresh returns the refresh token, if any.
func Refresh(r *http.Request) (string, bool) {
	c, err := r.Cookie(CookieName)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}

// Bearer returns the token in an "Authorization: Bearer …" header.
func Bearer(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, tok, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	tok = strings.TrimSpace(tok)
	return tok, tok != ""
}
