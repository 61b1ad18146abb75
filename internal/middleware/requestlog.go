// internal/middleware/requestlog.go
//
// Access log and request counter.
//
// Each request produces one zap line (method, path, status, bytes, elapsed,
// and the bot flag from requestinfo when Enrich is mounted ahead of it) and one
// increment of http_requests_total{method,class}.  Status classes are
// "2xx" through "5xx" to keep label cardinality fixed.

package middleware

import (
	"net/http"
	"strconv"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/yanizio/agriportal/internal/metrics"
	"github.com/yanizio/agriportal/internal/requestinfo"
)

// RequestLog returns access-log middleware writing to log.
func RequestLog(log *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, statusClass(status)).Inc()

			fields := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"bytes", ww.BytesWritten(),
				"elapsed_ms", time.Since(start).Milliseconds(),
				"req_id", chimw.GetReqID(r.Context()),
			}
			if info := requestinfo.FromContext(r.Context()); info != nil {
				fields = append(fields, "bot", info.UA.IsBot, "device", info.UA.Device)
			}
			if status >= 500 {
				log.Warnw("request", fields...)
				return
			}
			log.Infow("request", fields...)
		})
	}
}

func statusClass(code int) string {
	if code < 100 || code > 599 {
		return "other"
	}
	return strconv.Itoa(code/100) + "xx"
}
