package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequestsTotal   *prometheus.CounterVec
	httpLatencySeconds  *prometheus.HistogramVec
	votesTotal          *prometheus.CounterVec
	voteRetriesTotal    prometheus.Counter
	voteLatencySeconds  prometheus.Histogram
	submissionsTotal    *prometheus.CounterVec
	mailDeliveriesTotal *prometheus.CounterVec
	rateLimitedTotal    *prometheus.CounterVec
	resultsCacheTotal   *prometheus.CounterVec
	liveClientsActive   prometheus.Gauge
)

// RegisterMetrics initialises the Prometheus collectors used by the contest API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Latency distribution for HTTP requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 5.0},
		}, []string{"method", "route"})

		votesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "contest_votes_total",
			Help: "Committed votes by audit action.",
		}, []string{"action"})

		voteRetriesTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "contest_vote_retries_total",
			Help: "Vote transactions replayed after a conflict.",
		})

		voteLatencySeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "contest_vote_duration_seconds",
			Help:    "Time spent committing a vote including retries.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		})

		submissionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "contest_submissions_total",
			Help: "Contest applications by outcome.",
		}, []string{"outcome"})

		mailDeliveriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "contest_mail_deliveries_total",
			Help: "Outbound mail attempts by kind and status.",
		}, []string{"kind", "status"})

		rateLimitedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "contest_rate_limited_total",
			Help: "Requests rejected by a rate limiter.",
		}, []string{"scope"})

		resultsCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "contest_results_cache_total",
			Help: "Results cache lookups by outcome.",
		}, []string{"outcome"})

		liveClientsActive = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "contest_live_clients_active",
			Help: "Connected live results websocket clients.",
		})

		prometheus.MustRegister(
			httpRequestsTotal, httpLatencySeconds,
			votesTotal, voteRetriesTotal, voteLatencySeconds,
			submissionsTotal, mailDeliveriesTotal, rateLimitedTotal,
			resultsCacheTotal, liveClientsActive,
		)
	})
}

// HTTPRequests exposes the request counter.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the request latency histogram.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// VotesCast exposes the committed vote counter.
func VotesCast() *prometheus.CounterVec {
	RegisterMetrics()
	return votesTotal
}

// VoteRetries exposes the transaction replay counter.
func VoteRetries() prometheus.Counter {
	RegisterMetrics()
	return voteRetriesTotal
}

// VoteLatency exposes the vote commit latency histogram.
func VoteLatency() prometheus.Histogram {
	RegisterMetrics()
	return voteLatencySeconds
}

// Submissions exposes the application outcome counter.
func Submissions() *prometheus.CounterVec {
	RegisterMetrics()
	return submissionsTotal
}

// MailDeliveries exposes the outbound mail counter.
func MailDeliveries() *prometheus.CounterVec {
	RegisterMetrics()
	return mailDeliveriesTotal
}

// RateLimited exposes the limiter rejection counter.
func RateLimited() *prometheus.CounterVec {
	RegisterMetrics()
	return rateLimitedTotal
}

// ResultsCache exposes the ranking cache hit/miss counter.
func ResultsCache() *prometheus.CounterVec {
	RegisterMetrics()
	return resultsCacheTotal
}

// LiveClients exposes the websocket client gauge.
func LiveClients() prometheus.Gauge {
	RegisterMetrics()
	return liveClientsActive
}
