// internal/form/submit.go
//
// Agriportal – Forms subsystem: the submission step.
//
// Context
//   Submitter sends a validated payload to a form’s endpoint and maps the
//   reply onto an Outcome.  It is built on go-retryablehttp over a pooled
//   cleanhttp transport.  Only 429 Too Many Requests is retried, with
//   exponential backoff that honours Retry-After; every other failure
//   resolves on the first attempt so the user sees it promptly.  Each call
//   carries a deadline, and a deadline hit resolves to a TransportError
//   rather than a stuck form.
//
// Response mapping (DecodeOutcome)
//   •  Body is not JSON                       → TransportError.
//   •  Body has a non-empty `errors` mapping   → FieldErrors, any status.
//   •  Status outside 2xx                      → TransportError with the
//      server’s `error` (else `message`, else a generic text).
//   •  `success: true`                        → Success.
//   •  `success: false`                       → TransportError.
//   •  Every Expect key present                → Success.
//   •  Anything else                           → TransportError of kind
//      unexpected_shape.
//
//------------------------------------------------------------------------------

package form

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
)

const (
	MsgNetwork       = "Network error.  Please check your connection and try again."
	MsgTimeout       = "The server took too long to respond.  Please try again."
	MsgRequestFailed = "Request failed.  Please try again."
	MsgMalformed     = "The server sent an unreadable response.  Please try again."
	MsgUnexpected    = "Invalid response from server."

	DefaultSubmitTimeout = 15 * time.Second
	DefaultRetryMax      = 3

	maxResponseBytes = 1 << 20
)

// Request is one outbound submission.
type Request struct {
	Endpoint string
	Method   string
	Encoding Encoding
	Headers  map[string]string
	Payload  map[string]any
	Expect   []string
}

// Submitter performs submissions.  It is safe for concurrent use.
type Submitter struct {
	client  *retryablehttp.Client
	timeout time.Duration
	log     *zap.SugaredLogger
}

// SubmitterOption customises a Submitter.
type SubmitterOption func(*Submitter)

// WithTimeout bounds each Submit call.
func WithTimeout(d time.Duration) SubmitterOption {
	return func(s *Submitter) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithRetry sets how often a 429 is retried and the backoff window.
func WithRetry(max int, waitMin, waitMax time.Duration) SubmitterOption {
	return func(s *Submitter) {
		s.client.RetryMax = max
		if waitMin > 0 {
			s.client.RetryWaitMin = waitMin
		}
		if waitMax > 0 {
			s.client.RetryWaitMax = waitMax
		}
	}
}

// WithHTTPClient replaces the underlying transport client.
func WithHTTPClient(c *http.Client) SubmitterOption {
	return func(s *Submitter) { s.client.HTTPClient = c }
}

// WithSubmitLogger routes retry and submission logs to l.
func WithSubmitLogger(l *zap.SugaredLogger) SubmitterOption {
	return func(s *Submitter) { s.log = l }
}

// NewSubmitter returns a Submitter with a 15 s deadline and three 429
// retries.
func NewSubmitter(opts ...SubmitterOption) *Submitter {
	rc := retryablehttp.NewClient()
	rc.HTTPClient = cleanhttp.DefaultPooledClient()
	rc.RetryMax = DefaultRetryMax
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 8 * time.Second
	rc.CheckRetry = retryOnTooManyRequests
	rc.Backoff = retryablehttp.DefaultBackoff
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	s := &Submitter{client: rc, timeout: DefaultSubmitTimeout, log: zap.S()}
	for _, o := range opts {
		o(s)
	}
	rc.Logger = leveledLogger{s.log}
	return s
}

// retryOnTooManyRequests retries 429 only.  Transport errors and other
// statuses are final.
func retryOnTooManyRequests(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil || resp == nil {
		return false, nil
	}
	return resp.StatusCode == http.StatusTooManyRequests, nil
}

// Submit sends req and maps the reply.  It never returns nil.
func (s *Submitter) Submit(ctx context.Context, req Request) Outcome {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	std, err := NewHTTPRequest(ctx, req)
	if err != nil {
		return &TransportError{Kind: KindTransport, Message: MsgRequestFailed, Err: err}
	}
	hreq, err := retryablehttp.FromRequest(std)
	if err != nil {
		return &TransportError{Kind: KindTransport, Message: MsgRequestFailed, Err: err}
	}

	resp, err := s.client.Do(hreq)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		return s.failure(ctx, req.Endpoint, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return s.failure(ctx, req.Endpoint, err)
	}
	return DecodeOutcome(resp.StatusCode, raw, req.Expect)
}

// NewHTTPRequest encodes req as a plain *http.Request.  Callers that
// dispatch in-process use it directly; Submitter wraps it for retries.
func NewHTTPRequest(ctx context.Context, req Request) (*http.Request, error) {
	body, ctype, err := encodeBody(req)
	if err != nil {
		return nil, err
	}
	method := req.Method
	if method == "" {
		method = http.MethodPost
	}
	hreq, err := http.NewRequestWithContext(ctx, method, req.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	hreq.Header.Set("Content-Type", ctype)
	hreq.Header.Set("Accept", "application/json")
	for k, v := range req.Headers {
		hreq.Header.Set(k, v)
	}
	return hreq, nil
}

// failure classifies a transport-level error.
func (s *Submitter) failure(ctx context.Context, endpoint string, err error) Outcome {
	msg := MsgNetwork
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		msg = MsgTimeout
	}
	s.log.Warnw("form submission failed", "endpoint", endpoint, "error", err)
	return &TransportError{Kind: KindTransport, Message: msg, Err: err}
}

// -----------------------------------------------------------------------------
// Encoding
// -----------------------------------------------------------------------------

func encodeBody(req Request) ([]byte, string, error) {
	switch req.Encoding {
	case EncodingMultipart:
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		keys := make([]string, 0, len(req.Payload))
		for k := range req.Payload {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if err := mw.WriteField(k, formatValue(req.Payload[k])); err != nil {
				return nil, "", err
			}
		}
		if err := mw.Close(); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), mw.FormDataContentType(), nil
	default:
		b, err := json.Marshal(req.Payload)
		if err != nil {
			return nil, "", fmt.Errorf("encode payload: %w", err)
		}
		return b, "application/json", nil
	}
}

func formatValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return FormatNumber(t)
	case int:
		return strconv.Itoa(t)
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}

// -----------------------------------------------------------------------------
// Decoding
// -----------------------------------------------------------------------------

// DecodeOutcome maps a status and body onto an Outcome.  It is pure so the
// mapping can be tested without a server.
func DecodeOutcome(status int, body []byte, expect []string) Outcome {
	ok2xx := status >= 200 && status < 300

	var env map[string]any
	if err := json.Unmarshal(body, &env); err != nil || env == nil {
		if !ok2xx {
			return &TransportError{Status: status, Kind: KindTransport, Message: statusMessage(status), Err: err}
		}
		return &TransportError{Status: status, Kind: KindTransport, Message: MsgMalformed, Err: err}
	}

	if fe := fieldErrors(env["errors"]); len(fe) > 0 {
		return FieldErrors{Status: status, Errors: fe}
	}

	if !ok2xx {
		return &TransportError{Status: status, Kind: KindTransport, Message: serverMessage(env, statusMessage(status))}
	}

	if flag, ok := env["success"].(bool); ok {
		if flag {
			return Success{Status: status, Payload: env}
		}
		return &TransportError{Status: status, Kind: KindTransport, Message: serverMessage(env, MsgRequestFailed)}
	}

	if len(expect) > 0 {
		all := true
		for _, k := range expect {
			if _, ok := env[k]; !ok {
				all = false
				break
			}
		}
		if all {
			return Success{Status: status, Payload: env}
		}
	}

	return &TransportError{Status: status, Kind: KindUnexpectedShape, Message: MsgUnexpected}
}

// fieldErrors accepts `{"field": "msg"}` and the list form
// `[{"field": "...", "message": "..."}]` (also `param`/`path` and `msg`).
func fieldErrors(v any) map[string]string {
	out := make(map[string]string)
	switch t := v.(type) {
	case map[string]any:
		for k, m := range t {
			if s := messageOf(m); s != "" {
				out[k] = s
			}
		}
	case []any:
		for _, e := range t {
			obj, ok := e.(map[string]any)
			if !ok {
				continue
			}
			name := firstString(obj, "field", "param", "path")
			msg := firstString(obj, "message", "msg")
			if name != "" && msg != "" {
				if _, dup := out[name]; !dup {
					out[name] = msg
				}
			}
		}
	}
	return out
}

// messageOf flattens a message value; lists yield their first string.
func messageOf(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []any:
		for _, e := range t {
			if s, ok := e.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

func firstString(obj map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := obj[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func serverMessage(env map[string]any, fallback string) string {
	if s := firstString(env, "error", "message"); s != "" {
		return s
	}
	return fallback
}

func statusMessage(status int) string {
	if status == 0 {
		return MsgRequestFailed
	}
	return fmt.Sprintf("Request failed (HTTP %d).  Please try again.", status)
}

// -----------------------------------------------------------------------------
// Logging adapter
// -----------------------------------------------------------------------------

// leveledLogger adapts zap to retryablehttp.LeveledLogger.
type leveledLogger struct{ s *zap.SugaredLogger }

func (l leveledLogger) Error(msg string, kv ...interface{}) { l.s.Errorw(msg, kv...) }
func (l leveledLogger) Info(msg string, kv ...interface{})  { l.s.Debugw(msg, kv...) }
func (l leveledLogger) Debug(msg string, kv ...interface{}) { l.s.Debugw(msg, kv...) }
func (l leveledLogger) Warn(msg string, kv ...interface{})  { l.s.Warnw(msg, kv...) }
