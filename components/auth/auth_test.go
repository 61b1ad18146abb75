package auth

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"

	"github.com/yanizio/agriportal/internal/account/accounttest"
	"github.com/yanizio/agriportal/internal/component"
	"github.com/yanizio/agriportal/internal/session"
)

func newTestRouter(t *testing.T) (http.Handler, *accounttest.MemStore) {
	t.Helper()
	svc, st, err := accounttest.Service()
	if err != nil {
		t.Fatalf("accounts: %v", err)
	}
	c := &Component{}
	if err := c.Init(component.Deps{Accounts: svc, Log: zap.NewNop().Sugar()}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	r := chi.NewRouter()
	c.Routes(r)
	return r, st
}

type call struct {
	method, path string
	body         map[string]string
	bearer       string
	cookie       *http.Cookie
}

func do(t *testing.T, h http.Handler, c call) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if c.body != nil {
		_ = json.NewEncoder(&buf).Encode(c.body)
	}
	req := httptest.NewRequest(c.method, c.path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if c.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearer)
	}
	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	return rec, out
}

func refreshCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == session.CookieName {
			return c
		}
	}
	return nil
}

var farmer = map[string]string{
	"username": "kiran",
	"email":    "kiran@example.com",
	"password": "Paddy2024x",
	"role":     "farmer",
}

func TestRegister(t *testing.T) {
	h, _ := newTestRouter(t)

	rec, out := do(t, h, call{method: http.MethodPost, path: "/api/auth/register", body: farmer})
	if rec.Code != http.StatusCreated || out["message"] != "User registered successfully" {
		t.Fatalf("register: %d %v", rec.Code, out)
	}

	rec, out = do(t, h, call{method: http.MethodPost, path: "/api/auth/register", body: farmer})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("duplicate: %d", rec.Code)
	}
	if diff := cmp.Diff(map[string]any{"email": "User with this email already exists"}, out["errors"]); diff != "" {
		t.Fatalf("duplicate errors (-want +got):\n%s", diff)
	}

	weak := map[string]string{"username": "x", "email": "x@example.com", "password": "short"}
	rec, out = do(t, h, call{method: http.MethodPost, path: "/api/auth/register", body: weak})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("weak: %d", rec.Code)
	}
	if diff := cmp.Diff(map[string]any{"password": "Password must be at least 8 characters long"}, out["errors"]); diff != "" {
		t.Fatalf("weak errors (-want +got):\n%s", diff)
	}

	long := map[string]string{"username": strings.Repeat("k", 41), "email": "k@example.com", "password": "Paddy2024x"}
	rec, out = do(t, h, call{method: http.MethodPost, path: "/api/auth/register", body: long})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("long username: %d", rec.Code)
	}
	if diff := cmp.Diff(map[string]any{"username": "Username must be at most 40 characters"}, out["errors"]); diff != "" {
		t.Fatalf("long username errors (-want +got):\n%s", diff)
	}

	long = map[string]string{"username": "k", "email": "k@example.com", "password": "Aa1" + strings.Repeat("x", 80)}
	rec, out = do(t, h, call{method: http.MethodPost, path: "/api/auth/register", body: long})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("long password: %d", rec.Code)
	}
	if diff := cmp.Diff(map[string]any{"password": "Password is too long"}, out["errors"]); diff != "" {
		t.Fatalf("long password errors (-want +got):\n%s", diff)
	}
}

func TestLoginRefreshLogout(t *testing.T) {
	h, _ := newTestRouter(t)
	do(t, h, call{method: http.MethodPost, path: "/api/auth/register", body: farmer})

	rec, out := do(t, h, call{method: http.MethodPost, path: "/api/auth/login",
		body: map[string]string{"email": "KIRAN@example.com", "password": "Paddy2024x"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("login: %d %v", rec.Code, out)
	}
	access, _ := out["accessToken"].(string)
	ck := refreshCookie(rec)
	if access == "" || ck == nil || !ck.HttpOnly || ck.Path != "/api/auth" {
		t.Fatalf("login result: token %q cookie %+v", access, ck)
	}

	rec, out = do(t, h, call{method: http.MethodGet, path: "/api/auth/profile", bearer: access})
	user, _ := out["user"].(map[string]any)
	if rec.Code != http.StatusOK || user["username"] != "kiran" || user["role"] != "farmer" {
		t.Fatalf("profile: %d %v", rec.Code, out)
	}

	rec, out = do(t, h, call{method: http.MethodPost, path: "/api/auth/refresh", cookie: ck})
	if rec.Code != http.StatusOK || out["accessToken"] == nil || refreshCookie(rec) == nil {
		t.Fatalf("refresh: %d %v", rec.Code, out)
	}

	rec, _ = do(t, h, call{method: http.MethodPost, path: "/api/auth/logout"})
	if c := refreshCookie(rec); rec.Code != http.StatusOK || c == nil || c.MaxAge >= 0 {
		t.Fatalf("logout: %d %+v", rec.Code, c)
	}
}

func TestLogin_Failures(t *testing.T) {
	h, st := newTestRouter(t)
	do(t, h, call{method: http.MethodPost, path: "/api/auth/register", body: farmer})

	rec, out := do(t, h, call{method: http.MethodPost, path: "/api/auth/login",
		body: map[string]string{"email": "kiran@example.com", "password": "nope"}})
	if rec.Code != http.StatusBadRequest || out["error"] != "Invalid email or password" {
		t.Fatalf("wrong password: %d %v", rec.Code, out)
	}

	u, err := st.ByEmail(t.Context(), "kiran@example.com")
	if err != nil {
		t.Fatal(err)
	}
	st.SetActive(u.ID, false)
	rec, _ = do(t, h, call{method: http.MethodPost, path: "/api/auth/login",
		body: map[string]string{"email": "kiran@example.com", "password": "Paddy2024x"}})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("inactive: %d", rec.Code)
	}
}

func TestRefresh_Failures(t *testing.T) {
	h, _ := newTestRouter(t)

	rec, out := do(t, h, call{method: http.MethodPost, path: "/api/auth/refresh"})
	if rec.Code != http.StatusUnauthorized || out["error"] != "Refresh token not found" {
		t.Fatalf("no cookie: %d %v", rec.Code, out)
	}
	rec, out = do(t, h, call{method: http.MethodPost, path: "/api/auth/refresh",
		cookie: &http.Cookie{Name: session.CookieName, Value: "garbage"}})
	if rec.Code != http.StatusForbidden || out["error"] != "Invalid refresh token" {
		t.Fatalf("bad cookie: %d %v", rec.Code, out)
	}
}

func TestProfile_Guard(t *testing.T) {
	h, _ := newTestRouter(t)
	if rec, _ := do(t, h, call{method: http.MethodGet, path: "/api/auth/profile"}); rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token: %d", rec.Code)
	}
	if rec, _ := do(t, h, call{method: http.MethodGet, path: "/api/auth/profile", bearer: "x.y.z"}); rec.Code != http.StatusForbidden {
		t.Fatalf("bad token: %d", rec.Code)
	}
}

func TestChangePassword(t *testing.T) {
	h, _ := newTestRouter(t)
	do(t, h, call{method: http.MethodPost, path: "/api/auth/register", body: farmer})
	_, out := do(t, h, call{method: http.MethodPost, path: "/api/auth/login",
		body: map[string]string{"email": "kiran@example.com", "password": "Paddy2024x"}})
	access, _ := out["accessToken"].(string)

	rec, out := do(t, h, call{method: http.MethodPost, path: "/api/auth/password", bearer: access,
		body: map[string]string{"currentPassword": "wrong", "newPassword": "Wheat2025y"}})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("wrong current: %d", rec.Code)
	}
	if diff := cmp.Diff(map[string]any{"currentPassword": "Current password is incorrect"}, out["errors"]); diff != "" {
		t.Fatalf("errors (-want +got):\n%s", diff)
	}

	rec, _ = do(t, h, call{method: http.MethodPost, path: "/api/auth/password", bearer: access,
		body: map[string]string{"currentPassword": "Paddy2024x", "newPassword": "Wheat2025y"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("change: %d", rec.Code)
	}
	rec, _ = do(t, h, call{method: http.MethodPost, path: "/api/auth/login",
		body: map[string]string{"email": "kiran@example.com", "password": "Wheat2025y"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("login with new password: %d", rec.Code)
	}
}
