package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "uwbranging"

// Negotiation outcomes.
const (
	OutcomeConfigured   = "configured"
	OutcomeIncompatible = "incompatible"
	OutcomeDuplicate    = "duplicate"
	OutcomeEngineError  = "engine_error"
	OutcomeLost         = "lost"
)

// Payload drop reasons.
const (
	DropMalformed  = "malformed"
	DropUnbound    = "unbound"
	DropUnexpected = "unexpected"
	DropUnknownTID = "unknown_tid"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total admin HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Admin HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
	negotiations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "oob",
			Name:      "negotiation_total",
			Help:      "OOB negotiation attempts by outcome.",
		},
		[]string{"role", "outcome"},
	)
	payloadDrops = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "oob",
			Name:      "payload_dropped_total",
			Help:      "OOB payloads discarded without surfacing to the application.",
		},
		[]string{"role", "reason"},
	)
	sendFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "oob",
			Name:      "send_failures_total",
			Help:      "OOB payload sends rejected by the transport.",
		},
		[]string{"role"},
	)
	sessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "mux",
			Name:      "sessions_active",
			Help:      "Ranging sessions currently owned by the multiplexer.",
		},
	)
	rangingSamples = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mux",
			Name:      "ranging_samples_total",
			Help:      "Ranging samples forwarded to the application.",
		},
		[]string{"kind"},
	)
	rangingStartFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mux",
			Name:      "ranging_start_failures_total",
			Help:      "Ranging sessions the engine refused to start.",
		},
	)
	addressCollisions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mux",
			Name:      "address_collisions_total",
			Help:      "Session offers rejected because the peer address was already taken.",
		},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			httpDuration,
			negotiations,
			payloadDrops,
			sendFailures,
			sessionsActive,
			rangingSamples,
			rangingStartFailures,
			addressCollisions,
		)
	})
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}

func RecordNegotiation(role, outcome string) {
	RegisterMetrics()
	negotiations.WithLabelValues(role, outcome).Inc()
}

func RecordPayloadDropped(role, reason string) {
	RegisterMetrics()
	payloadDrops.WithLabelValues(role, reason).Inc()
}

func RecordSendFailure(role string) {
	RegisterMetrics()
	sendFailures.WithLabelValues(role).Inc()
}

func RecordSessionStarted() {
	RegisterMetrics()
	sessionsActive.Inc()
}

func RecordSessionEnded() {
	RegisterMetrics()
	sessionsActive.Dec()
}

func RecordRangingSample(kind string) {
	RegisterMetrics()
	rangingSamples.WithLabelValues(kind).Inc()
}

func RecordRangingStartFailure() {
	RegisterMetrics()
	rangingStartFailures.Inc()
}

func RecordAddressCollision() {
	RegisterMetrics()
	addressCollisions.Inc()
}
