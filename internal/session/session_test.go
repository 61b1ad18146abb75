package session

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRefreshCookie(t *testing.T) {
	w := httptest.NewRecorder()
	SetRefresh(w, httptest.NewRequest(http.MethodPost, "/api/auth/login", nil), "tok", 7*24*time.Hour, true)

	res := w.Result()
	cs := res.Cookies()
	if len(cs) != 1 {
		t.Fatalf("cookies = %d", len(cs))
	}
	c := cs[0]
	if c.Name != CookieName || !c.HttpOnly || !c.Secure || c.SameSite != http.SameSiteStrictMode || c.MaxAge != 604800 {
		t.Fatalf("cookie = %+v", c)
	}

	r := httptest.NewRequest(http.MethodPost, "/api/auth/refresh", nil)
	r.AddCookie(&http.Cookie{Name: CookieName, Value: "tok"})
	if got, ok := Refresh(r); !ok || got != "tok" {
		t.Fatalf("Refresh = %q, %v", got, ok)
	}
	if _, ok := Refresh(httptest.NewRequest(http.MethodPost, "/", nil)); ok {
		t.Fatalf("Refresh without cookie reported ok")
	}

	w = httptest.NewRecorder()
	ClearRefresh(w, false)
	if c := w.Result().Cookies()[0]; c.MaxAge >= 0 {
		t.Fatalf("clear cookie MaxAge = %d", c.MaxAge)
	}
}

func TestBearer(t *testing.T) {
	cases := map[string]string{
		"Bearer abc": "abc",
		"bearer xyz": "xyz",
		"Basic abc":  "",
		"Bearer ":    "",
		"":           "",
	}
	for h, want := range cases {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		if h != "" {
			r.Header.Set("Authorization", h)
		}
		got, ok := Bearer(r)
		if got != want || ok != (want != "") {
			t.Errorf("%q: got %q, %v", h, got, ok)
		}
	}
}
