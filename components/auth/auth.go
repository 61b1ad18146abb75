// components/auth/auth.go
//
// Agriportal authentication component – JSON account API.
//
// Routes
//   POST /api/auth/register   create an account                    201
//   POST /api/auth/login      refresh cookie plus access token     200
//   POST /api/auth/logout     clear the refresh cookie             200
//   POST /api/auth/refresh    rotate tokens from the cookie        200
//   GET  /api/auth/profile    current user (Bearer)                200
//   POST /api/auth/password   change password (Bearer)             200
//
// Bodies are JSON or urlencoded and are read with form.ReadValues, so the
// same decoding rules apply here as on the form endpoints.  Field problems
// answer in the `errors` envelope; everything else in `error`.
//
//------------------------------------------------------------------------------

package auth

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/yanizio/agriportal/internal/account"
	authctx "github.com/yanizio/agriportal/internal/auth"
	"github.com/yanizio/agriportal/internal/component"
	"github.com/yanizio/agriportal/internal/form"
	"github.com/yanizio/agriportal/internal/session"
)

// Compile-time assertions.
var (
	_ component.Component   = (*Component)(nil)
	_ component.Initializer = (*Component)(nil)
)

// Component serves the account API.
type Component struct {
	accounts *account.Service
	secure   bool
	log      *zap.SugaredLogger
}

/*────────────────── component.Component methods ───────────────────────────*/

// Name returns the canonical component key.
func (c *Component) Name() string { return "auth" }

// Init requires an account service.
func (c *Component) Init(d component.Deps) error {
	if d.Accounts == nil {
		return errors.New("auth component needs Accounts")
	}
	c.accounts = d.Accounts
	c.secure = d.SecureCookies
	c.log = d.Log
	if c.log == nil {
		c.log = zap.S()
	}
	return nil
}

// Routes mounts the API under /api/auth.
func (c *Component) Routes(r chi.Router) {
	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", c.register)
		r.Post("/login", c.login)
		r.Post("/logout", c.logout)
		r.Post("/refresh", c.refresh)
		r.Group(func(r chi.Router) {
			r.Use(authctx.RequireUser(c.accounts))
			r.Get("/profile", c.profile)
			r.Post("/password", c.password)
		})
	})
}

// Register component at program start.
func init() { component.Register(&Component{}) }

/*──────────────────────────── Handlers ─────────────────────────────────────*/

func (c *Component) register(w http.ResponseWriter, r *http.Request) {
	vals, ok := c.read(w, r)
	if !ok {
		return
	}
	_, err := c.accounts.Register(r.Context(), account.Registration{
		Username: vals.Get("username"),
		Email:    vals.Get("email"),
		Password: vals["password"],
		Role:     vals.Get("role"),
	})
	if errors.Is(err, account.ErrEmailTaken) {
		err = &account.FieldError{Field: "email", Message: "User with this email already exists"}
	}
	if c.fail(w, err) {
		return
	}
	form.WriteSuccess(w, http.StatusCreated, map[string]any{"message": "User registered successfully"})
}

func (c *Component) login(w http.ResponseWriter, r *http.Request) {
	vals, ok := c.read(w, r)
	if !ok {
		return
	}
	sess, err := c.accounts.Login(r.Context(), vals.Get("email"), vals["password"])
	switch {
	case errors.Is(err, account.ErrInvalidCredentials):
		form.WriteError(w, http.StatusBadRequest, "Invalid email or password")
		return
	case errors.Is(err, account.ErrInactive):
		form.WriteError(w, http.StatusForbidden, "This account is disabled.")
		return
	case c.fail(w, err):
		return
	}
	session.SetRefresh(w, r, sess.RefreshToken, c.accounts.Tokens().RefreshTTL(), c.secure)
	form.WriteSuccess(w, http.StatusOK, map[string]any{
		"message":     "Login successful",
		"accessToken": sess.AccessToken,
		"user":        userView(sess.User),
	})
}

func (c *Component) logout(w http.ResponseWriter, _ *http.Request) {
	session.ClearRefresh(w, c.secure)
	form.WriteSuccess(w, http.StatusOK, map[string]any{"message": "Logged out successfully"})
}

func (c *Component) refresh(w http.ResponseWriter, r *http.Request) {
	tok, ok := session.Refresh(r)
	if !ok {
		form.WriteError(w, http.StatusUnauthorized, "Refresh token not found")
		return
	}
	sess, err := c.accounts.Refresh(r.Context(), tok)
	if errors.Is(err, account.ErrInvalidToken) || errors.Is(err, account.ErrInactive) {
		session.ClearRefresh(w, c.secure)
		form.WriteError(w, http.StatusForbidden, "Invalid refresh token")
		return
	}
	if c.fail(w, err) {
		return
	}
	session.SetRefresh(w, r, sess.RefreshToken, c.accounts.Tokens().RefreshTTL(), c.secure)
	form.WriteSuccess(w, http.StatusOK, map[string]any{"accessToken": sess.AccessToken})
}

func (c *Component) profile(w http.ResponseWriter, r *http.Request) {
	u, _ := authctx.User(r.Context())
	form.WriteSuccess(w, http.StatusOK, map[string]any{"user": userView(u)})
}

func (c *Component) password(w http.ResponseWriter, r *http.Request) {
	u, _ := authctx.User(r.Context())
	vals, ok := c.read(w, r)
	if !ok {
		return
	}
	err := c.accounts.ChangePassword(r.Context(), u.ID, vals["currentPassword"], vals["newPassword"])
	if c.fail(w, err) {
		return
	}
	form.WriteSuccess(w, http.StatusOK, map[string]any{"message": "Password updated"})
}

/*──────────────────────────── helpers ─────────────────────────────────────*/

// read decodes the body, answering 400 itself on failure.
func (c *Component) read(w http.ResponseWriter, r *http.Request) (form.Values, bool) {
	vals, err := form.ReadValues(r)
	if err != nil {
		c.log.Debugw("unreadable auth body", "path", r.URL.Path, "err", err)
		form.WriteError(w, http.StatusBadRequest, "The request could not be read.")
		return nil, false
	}
	return vals, true
}

// fail writes err and reports whether it did.  A nil err writes nothing.
func (c *Component) fail(w http.ResponseWriter, err error) bool {
	if err == nil {
		return false
	}
	var fe *account.FieldError
	if errors.As(err, &fe) {
		form.WriteFieldErrors(w, form.ResultFrom(map[string]string{fe.Field: fe.Message}, nil))
		return true
	}
	c.log.Errorw("auth request failed", "err", err)
	form.WriteError(w, http.StatusInternalServerError, "Something went wrong.  Please try again.")
	return true
}

func userView(u *account.User) map[string]any {
	if u == nil {
		return nil
	}
	return map[string]any{
		"id":       u.ID,
		"username": u.Username,
		"email":    u.Email,
		"role":     string(u.Role),
	}
}
