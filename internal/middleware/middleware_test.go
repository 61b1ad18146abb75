package middleware

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/yanizio/agriportal/internal/metrics"
)

var ok = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
})

func TestForceHTTPS(t *testing.T) {
	h := ForceHTTPS(true)(ok)

	r := httptest.NewRequest(http.MethodGet, "http://agri.example.com/forms/crop-yield?x=1", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	if w.Code != http.StatusPermanentRedirect || w.Header().Get("Location") != "https://agri.example.com/forms/crop-yield?x=1" {
		t.Fatalf("redirect = %d %q", w.Code, w.Header().Get("Location"))
	}

	for _, r := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "http://localhost:8080/", nil),
		func() *http.Request {
			r := httptest.NewRequest(http.MethodGet, "http://agri.example.com/", nil)
			r.Header.Set("X-Forwarded-Proto", "https")
			return r
		}(),
		func() *http.Request {
			r := httptest.NewRequest(http.MethodGet, "https://agri.example.com/", nil)
			r.TLS = &tls.ConnectionState{}
			return r
		}(),
	} {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		if w.Code != http.StatusNoContent {
			t.Errorf("%s: code = %d", r.URL, w.Code)
		}
	}

	w = httptest.NewRecorder()
	ForceHTTPS(false)(ok).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "http://agri.example.com/", nil))
	if w.Code != http.StatusNoContent {
		t.Fatalf("disabled redirect: %d", w.Code)
	}
}

func TestSecurity(t *testing.T) {
	w := httptest.NewRecorder()
	Security(ok).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	for _, h := range []string{"Strict-Transport-Security", "Content-Security-Policy", "X-Frame-Options", "X-Content-Type-Options"} {
		if w.Header().Get(h) == "" {
			t.Errorf("missing %s", h)
		}
	}
}

func TestRequestLog(t *testing.T) {
	before := testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues("GET", "2xx"))
	w := httptest.NewRecorder()
	RequestLog(zap.NewNop().Sugar())(ok).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	after := testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues("GET", "2xx"))
	if after != before+1 {
		t.Fatalf("counter = %v, want %v", after, before+1)
	}
}

func TestStatusClass(t *testing.T) {
	for code, want := range map[int]string{200: "2xx", 302: "3xx", 404: "4xx", 503: "5xx", 42: "other"} {
		if got := statusClass(code); got != want {
			t.Errorf("statusClass(%d) = %q", code, got)
		}
	}
}
