// internal/auth/context.go
//
// Request-scoped user helpers and the bearer-token guard.
//
// Usage
// -----
//     r.With(auth.RequireUser(accounts)).Get("/profile", h)
//
//     // Downstream code retrieves the user.
//     u, ok := auth.User(r.Context())
//
// Notes
// -----
// • The guard answers 401 when no Bearer token is sent and 403 when the
//   token is invalid, expired, or names a user that no longer exists.
// • Oxford commas, two spaces after periods.

package auth

import (
	"context"
	"net/http"

	"github.com/yanizio/agriportal/internal/account"
	"github.com/yanizio/agriportal/internal/form"
	"github.com/yanizio/agriportal/internal/session"
)

// userKey is unexported to avoid context-key collisions.
type userKey struct{}

// WithUser returns a new context carrying u.
func WithUser(ctx context.Context, u *account.User) context.Context {
	return context.WithValue(ctx, userKey{}, u)
}

// User extracts the authenticated user from ctx.
func User(ctx context.Context) (*account.User, bool) {
	u, ok := ctx.Value(userKey{}).(*account.User)
	return u, ok && u != nil
}

// Profiler resolves an access token to its user.
type Profiler interface {
	Profile(ctx context.Context, accessToken string) (*account.User, error)
}

// RequireUser authenticates the Bearer token through p.
func RequireUser(p Profiler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok, ok := session.Bearer(r)
			if !ok {
				form.WriteError(w, http.StatusUnauthorized, "Access token required")
				return
			}
			u, err := p.Profile(r.Context(), tok)
			if err != nil {
				form.WriteError(w, http.StatusForbidden, "Invalid or expired token")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
		})
	}
}
