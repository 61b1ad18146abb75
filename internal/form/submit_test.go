// internal/form/submit_test.go
//
// Unit-tests for the Submitter and DecodeOutcome.
//
// Context
// -------
// Each test stands up an httptest server that answers one canonical shape
// (or misbehaves) and asserts the Outcome the Submitter maps it to.
//
// Notes
// -----
// • Retry waits are shrunk to milliseconds so the 429 test stays fast.

package form

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
)

func testSubmitter(opts ...SubmitterOption) *Submitter {
	base := []SubmitterOption{
		WithSubmitLogger(zap.NewNop().Sugar()),
		WithRetry(2, time.Millisecond, 5*time.Millisecond),
	}
	return NewSubmitter(append(base, opts...)...)
}

func serve(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSubmit_SuccessFlag(t *testing.T) {
	var got map[string]any
	var ctype string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctype = r.Header.Get("Content-Type")
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = io.WriteString(w, `{"success":true,"prediction":42}`)
	}))
	defer srv.Close()

	out := testSubmitter().Submit(context.Background(), Request{
		Endpoint: srv.URL,
		Payload:  map[string]any{"crop": "wheat", "area": 10.0},
	})
	s, ok := out.(Success)
	if !ok {
		t.Fatalf("outcome = %#v, want Success", out)
	}
	if s.Payload["prediction"] != 42.0 {
		t.Fatalf("prediction = %v", s.Payload["prediction"])
	}
	if ctype != "application/json" {
		t.Fatalf("content-type = %q", ctype)
	}
	if diff := cmp.Diff(map[string]any{"crop": "wheat", "area": 10.0}, got); diff != "" {
		t.Fatalf("request body (-want +got):\n%s", diff)
	}
}

func TestSubmit_FieldErrorsOn400(t *testing.T) {
	srv := serve(t, http.StatusBadRequest, `{"errors":{"area":"out of range"}}`)
	out := testSubmitter().Submit(context.Background(), Request{Endpoint: srv.URL})
	fe, ok := out.(FieldErrors)
	if !ok {
		t.Fatalf("outcome = %#v, want FieldErrors", out)
	}
	if diff := cmp.Diff(map[string]string{"area": "out of range"}, fe.Errors); diff != "" {
		t.Fatalf("errors (-want +got):\n%s", diff)
	}
	if fe.Status != http.StatusBadRequest {
		t.Fatalf("status = %d", fe.Status)
	}
}

func TestSubmit_ServerErrorMessage(t *testing.T) {
	srv := serve(t, http.StatusInternalServerError, `{"success":false,"error":"model unavailable"}`)
	out := testSubmitter().Submit(context.Background(), Request{Endpoint: srv.URL})
	te, ok := out.(*TransportError)
	if !ok {
		t.Fatalf("outcome = %#v, want TransportError", out)
	}
	if te.Message != "model unavailable" || te.Status != 500 || te.Kind != KindTransport {
		t.Fatalf("transport error = %+v", te)
	}
}

func TestSubmit_MalformedJSON(t *testing.T) {
	srv := serve(t, http.StatusOK, `<html>oops</html>`)
	out := testSubmitter().Submit(context.Background(), Request{Endpoint: srv.URL})
	te, ok := out.(*TransportError)
	if !ok || te.Message != MsgMalformed {
		t.Fatalf("outcome = %#v", out)
	}
}

func TestSubmit_UnexpectedShape(t *testing.T) {
	srv := serve(t, http.StatusOK, `{"crop":"wheat"}`)
	out := testSubmitter().Submit(context.Background(), Request{Endpoint: srv.URL, Expect: []string{"prediction"}})
	te, ok := out.(*TransportError)
	if !ok || te.Kind != KindUnexpectedShape || te.Message != MsgUnexpected {
		t.Fatalf("outcome = %#v", out)
	}
}

func TestSubmit_ExpectKeysMeanSuccess(t *testing.T) {
	srv := serve(t, http.StatusOK, `{"crop":"wheat","prediction":3.5}`)
	out := testSubmitter().Submit(context.Background(), Request{Endpoint: srv.URL, Expect: []string{"prediction"}})
	if _, ok := out.(Success); !ok {
		t.Fatalf("outcome = %#v, want Success", out)
	}
}

func TestSubmit_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	start := time.Now()
	out := testSubmitter(WithTimeout(50*time.Millisecond)).Submit(context.Background(), Request{Endpoint: srv.URL})
	te, ok := out.(*TransportError)
	if !ok || te.Message != MsgTimeout {
		t.Fatalf("outcome = %#v, want timeout", out)
	}
	if !errors.Is(te, context.DeadlineExceeded) {
		t.Fatalf("error chain lacks DeadlineExceeded: %v", te.Err)
	}
	if time.Since(start) > 2*time.Second {
		t.Fatalf("timeout not enforced")
	}
}

func TestSubmit_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	out := testSubmitter().Submit(context.Background(), Request{Endpoint: url})
	te, ok := out.(*TransportError)
	if !ok || te.Message != MsgNetwork || te.Status != 0 {
		t.Fatalf("outcome = %#v, want network error", out)
	}
}

func TestSubmit_RetriesTooManyRequests(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = io.WriteString(w, `{"success":true}`)
	}))
	defer srv.Close()

	out := testSubmitter().Submit(context.Background(), Request{Endpoint: srv.URL, Payload: map[string]any{"a": "b"}})
	if _, ok := out.(Success); !ok {
		t.Fatalf("outcome = %#v, want Success after retries", out)
	}
	if n := calls.Load(); n != 3 {
		t.Fatalf("calls = %d, want 3", n)
	}
}

func TestSubmit_TooManyRequestsExhausted(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"error":"Rate limit reached"}`)
	}))
	defer srv.Close()

	out := testSubmitter().Submit(context.Background(), Request{Endpoint: srv.URL})
	te, ok := out.(*TransportError)
	if !ok || te.Status != http.StatusTooManyRequests || te.Message != "Rate limit reached" {
		t.Fatalf("outcome = %#v", out)
	}
	if n := calls.Load(); n != 3 {
		t.Fatalf("calls = %d, want 1 + 2 retries", n)
	}
}

func TestSubmit_NoRetryOnServerError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_ = testSubmitter().Submit(context.Background(), Request{Endpoint: srv.URL})
	if n := calls.Load(); n != 1 {
		t.Fatalf("calls = %d, want 1", n)
	}
}

func TestSubmit_Multipart(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 16); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		got = map[string]string{}
		for k, v := range r.MultipartForm.Value {
			got[k] = v[0]
		}
		if r.Header.Get("X-CSRFToken") != "tok" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		_, _ = io.WriteString(w, `{"success":true}`)
	}))
	defer srv.Close()

	out := testSubmitter().Submit(context.Background(), Request{
		Endpoint: srv.URL,
		Encoding: EncodingMultipart,
		Headers:  map[string]string{"X-CSRFToken": "tok"},
		Payload:  map[string]any{"crop": "rice", "area": 2.5, "year": 2024.0},
	})
	if _, ok := out.(Success); !ok {
		t.Fatalf("outcome = %#v", out)
	}
	want := map[string]string{"crop": "rice", "area": "2.5", "year": "2024"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("fields (-want +got):\n%s", diff)
	}
}

func TestDecodeOutcome(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		expect []string
		want   string // "success", "fields", or a TransportError message
	}{
		{"success flag", 200, `{"success":true}`, nil, "success"},
		{"success false", 200, `{"success":false,"error":"Unknown crop: X"}`, nil, "Unknown crop: X"},
		{"errors on 200", 200, `{"errors":{"crop":"bad"}}`, nil, "fields"},
		{"error list", 422, `{"errors":[{"param":"email","msg":"taken"}]}`, nil, "fields"},
		{"empty errors", 400, `{"errors":{},"error":"Bad input"}`, nil, "Bad input"},
		{"message fallback", 404, `{"message":"No such form"}`, nil, "No such form"},
		{"generic", 502, `{}`, nil, "Request failed (HTTP 502).  Please try again."},
		{"html 500", 500, `<h1>err</h1>`, nil, "Request failed (HTTP 500).  Please try again."},
		{"array body", 200, `[1,2]`, nil, MsgMalformed},
		{"null body", 200, `null`, nil, MsgMalformed},
		{"no markers", 200, `{"ok":1}`, nil, MsgUnexpected},
		{"expect partial", 200, `{"a":1}`, []string{"a", "b"}, MsgUnexpected},
	}
	for _, c := range cases {
		out := DecodeOutcome(c.status, []byte(c.body), c.expect)
		var got string
		switch o := out.(type) {
		case Success:
			got = "success"
		case FieldErrors:
			got = "fields"
		case *TransportError:
			got = o.Message
		}
		if got != c.want {
			t.Errorf("%s: got %q, want %q", c.name, got, c.want)
		}
		if out.StatusCode() != c.status {
			t.Errorf("%s: status = %d", c.name, out.StatusCode())
		}
	}
}
