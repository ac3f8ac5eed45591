// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "chainauth"

// Verification results that are not error codes
const (
	ResultSuccess = "success"
)

var (
	ChallengesIssued = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "challenges_issued_total",
		Help:      "Challenges issued to identities.",
	})

	ChallengesSwept = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "challenges_swept_total",
		Help:      "Expired challenges removed by the periodic sweep.",
	})

	Verifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "verifications_total",
		Help:      "Verification attempts by result code.",
	}, []string{"result"})

	RateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "verifications_rate_limited_total",
		Help:      "Verification attempts rejected by the rate limiter.",
	})

	Proofs = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "proofs_total",
		Help:      "Login proof recording outcomes.",
	}, []string{"status"})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by route and status.",
	}, []string{"method", "route", "status"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})
)

// ObserveVerification counts one verification outcome
func ObserveVerification(result string) {
	Verifications.WithLabelValues(result).Inc()
}

// ObserveProof counts one proof recording outcome
func ObserveProof(status string) {
	Proofs.WithLabelValues(status).Inc()
}

// ObserveHTTP records one served request
func ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	HTTPDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// Handler serves the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}
