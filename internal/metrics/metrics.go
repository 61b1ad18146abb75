// Package metrics holds Prometheus instruments that are used across the
// portal.  All collectors are registered with the global registry, so
// importing this package in main.go is enough to expose them on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	FormAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "form_attempts_total",
			Help: "Submit attempts by form and terminal phase.",
		}, []string{"form", "phase"})

	FormAttemptSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "form_attempt_seconds",
			Help:    "Wall time of submit attempts that reached the network.",
			Buckets: prometheus.DefBuckets,
		}, []string{"form"})

	FormBusyRejectsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "form_busy_rejects_total",
			Help: "Submit triggers ignored because an attempt was in flight.",
		}, []string{"form"})

	ServerSubmissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "form_server_submissions_total",
			Help: "Submissions received by form endpoints, by response status.",
		}, []string{"form", "status"})

	AccountEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "account_events_total",
			Help: "Account operations by event and result.",
		}, []string{"event", "result"})

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests served, by method and status class.",
		}, []string{"method", "class"})
)

func init() {
	prometheus.MustRegister(
		FormAttemptsTotal,
		FormAttemptSeconds,
		FormBusyRejectsTotal,
		ServerSubmissionsTotal,
		AccountEventsTotal,
		HTTPRequestsTotal,
	)
}
