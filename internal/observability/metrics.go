package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce        sync.Once
	httpRequestsTotal   *prometheus.CounterVec
	httpLatencySeconds  *prometheus.HistogramVec
	httpErrorsTotal     *prometheus.CounterVec
	sessionsActive      prometheus.Gauge
	eventsDelivered     *prometheus.CounterVec
	requestsDispatched  *prometheus.CounterVec
	messagesSentTotal   prometheus.Counter
	starsSpentTotal     prometheus.Counter
	giftTradesTotal     *prometheus.CounterVec
	callsStartedTotal   *prometheus.CounterVec
	uploadRequests      *prometheus.CounterVec
	uploadRejected      *prometheus.CounterVec
	uploadLatency       prometheus.Histogram
)

// RegisterMetrics initialises the Prometheus collectors.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gchat_http_requests_total",
			Help: "Total number of HTTP API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gchat_http_latency_seconds",
			Help:    "Latency distribution for HTTP API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gchat_http_errors_total",
			Help: "Total number of error responses returned by HTTP endpoints.",
		}, []string{"method", "route", "status"})

		sessionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gchat_sessions_active",
			Help: "Number of live websocket sessions on this node.",
		})

		eventsDelivered = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gchat_events_delivered_total",
			Help: "Total number of events delivered to sessions, by event type.",
		}, []string{"event"})

		requestsDispatched = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gchat_requests_dispatched_total",
			Help: "Total number of inbound websocket requests dispatched, by request type and outcome.",
		}, []string{"request", "outcome"})

		messagesSentTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gchat_messages_sent_total",
			Help: "Total number of chat messages persisted.",
		})

		starsSpentTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gchat_stars_spent_total",
			Help: "Total stars debited through purchases, trades and transfers.",
		})

		giftTradesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gchat_gift_trades_total",
			Help: "Total gift ownership changes, by transaction type.",
		}, []string{"type"})

		callsStartedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gchat_calls_started_total",
			Help: "Total calls started, by call type.",
		}, []string{"call_type"})

		uploadRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gchat_upload_requests_total",
			Help: "Total accepted uploads, by detected type.",
		}, []string{"type"})

		uploadRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gchat_upload_rejected_total",
			Help: "Total rejected uploads, by rejection reason.",
		}, []string{"reason"})

		uploadLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "gchat_upload_latency_seconds",
			Help:    "Latency distribution for upload processing.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		})

		prometheus.MustRegister(
			httpRequestsTotal, httpLatencySeconds, httpErrorsTotal,
			sessionsActive, eventsDelivered, requestsDispatched,
			messagesSentTotal, starsSpentTotal, giftTradesTotal, callsStartedTotal,
			uploadRequests, uploadRejected, uploadLatency,
		)
	})
}

// HTTPRequests exposes the counter for HTTP requests.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram for HTTP requests.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// HTTPErrors exposes the counter for HTTP error responses.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

// SessionsActive exposes the live session gauge.
func SessionsActive() prometheus.Gauge {
	RegisterMetrics()
	return sessionsActive
}

// EventsDelivered exposes the per-event delivery counter.
func EventsDelivered() *prometheus.CounterVec {
	RegisterMetrics()
	return eventsDelivered
}

// RequestsDispatched exposes the inbound request counter.
func RequestsDispatched() *prometheus.CounterVec {
	RegisterMetrics()
	return requestsDispatched
}

// MessagesSent exposes the persisted message counter.
func MessagesSent() prometheus.Counter {
	RegisterMetrics()
	return messagesSentTotal
}

// StarsSpent exposes the star spend counter.
func StarsSpent() prometheus.Counter {
	RegisterMetrics()
	return starsSpentTotal
}

// GiftTrades exposes the gift transaction counter.
func GiftTrades() *prometheus.CounterVec {
	RegisterMetrics()
	return giftTradesTotal
}

// CallsStarted exposes the call counter.
func CallsStarted() *prometheus.CounterVec {
	RegisterMetrics()
	return callsStartedTotal
}

// UploadRequests exposes the accepted upload counter.
func UploadRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return uploadRequests
}

// UploadRejected exposes the rejected upload counter.
func UploadRejected() *prometheus.CounterVec {
	RegisterMetrics()
	return uploadRejected
}

// UploadLatency exposes the upload latency histogram.
func UploadLatency() prometheus.Histogram {
	RegisterMetrics()
	return uploadLatency
}
