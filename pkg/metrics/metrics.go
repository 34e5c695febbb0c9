package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts records sign-in attempts by result (success|failure|unverified).
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hireflow_auth_attempts_total",
			Help: "Total number of sign-in attempts",
		},
		[]string{"result"},
	)

	// SessionVerifications counts session checks by outcome (valid|invalid).
	SessionVerifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hireflow_session_verifications_total",
			Help: "Total number of session token verifications",
		},
		[]string{"result"},
	)

	// RoleChecks counts role guard evaluations and their outcome (allow|deny).
	RoleChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hireflow_role_checks_total",
			Help: "Total number of role guard checks",
		},
		[]string{"role", "result"},
	)

	// MailDeliveries counts outbound email attempts by template and result (sent|failed|disabled).
	MailDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hireflow_mail_deliveries_total",
			Help: "Total number of outbound email attempts",
		},
		[]string{"template", "result"},
	)

	// APILatency measures HTTP request latencies. Sign-in paths run bcrypt, so
	// the buckets extend past the defaults.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hireflow_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	RequestsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hireflow_http_requests_in_flight",
		Help: "Requests currently being served",
	})
)
