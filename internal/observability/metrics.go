package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry *prometheus.Registry

	// Samples applied to the accumulators. Watch for: sudden drops (station
	// or host engine down).
	SamplesConsumedTotal prometheus.Counter

	// Samples dropped by the bounded queue. Watch for: sustained non-zero
	// rate = consumer loop falling behind.
	SamplesDroppedTotal prometheus.Counter

	// Archive summaries applied as reseeds.
	SummariesConsumedTotal prometheus.Counter

	// Malformed inbound items skipped. Watch for: host integration bugs.
	MalformedItemsTotal prometheus.Counter

	// Snapshot documents built and handed to the fan-out.
	PublishesTotal prometheus.Counter

	// Per-sink publication outcomes.
	SinkPublishTotal *prometheus.CounterVec

	// Snapshot build + fan-out latency.
	PublishDuration prometheus.Histogram

	// Forecast text refresh failures. The previous cached text keeps being
	// served while this climbs.
	ForecastRefreshFailuresTotal prometheus.Counter

	// Current inbound queue depth.
	QueueDepth prometheus.Gauge

	// Unix time of the last successful publication. Watch for: staleness.
	LastPublishTimestamp prometheus.Gauge

	// HTTP sink circuit breaker state (0 closed, 1 open, 2 half-open).
	CircuitBreakerState *prometheus.GaugeVec

	// Documents accepted/rejected by the companion receiver.
	ReceiverDocumentsTotal *prometheus.CounterVec
)

func init() {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	SamplesConsumedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "samplesConsumedTotal",
		Help: "Total number of loop samples applied to the accumulators",
	})
	SamplesDroppedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "samplesDroppedTotal",
		Help: "Total number of inbound items dropped by the bounded queue",
	})
	SummariesConsumedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "summariesConsumedTotal",
		Help: "Total number of archive summaries applied as reseeds",
	})
	MalformedItemsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "malformedItemsTotal",
		Help: "Total number of malformed inbound items skipped",
	})
	PublishesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "publishesTotal",
		Help: "Total number of snapshot documents built",
	})
	SinkPublishTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sinkPublishTotal",
			Help: "Per-sink publication outcomes",
		},
		[]string{"sink", "outcome"},
	)
	PublishDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "publishDurationSeconds",
		Help:    "Snapshot build and fan-out latency in seconds",
		Buckets: prometheus.DefBuckets,
	})
	ForecastRefreshFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "forecastRefreshFailuresTotal",
		Help: "Total number of failed forecast text refreshes",
	})
	QueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "queueDepth",
		Help: "Current inbound queue depth",
	})
	LastPublishTimestamp = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "lastPublishTimestampSeconds",
		Help: "Unix time of the last successful snapshot publication",
	})
	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuitBreakerState",
			Help: "Circuit breaker state: 0 closed, 1 open, 2 half-open",
		},
		[]string{"component"},
	)
	ReceiverDocumentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "receiverDocumentsTotal",
			Help: "Documents handled by the companion receiver",
		},
		[]string{"outcome"},
	)

	registry.MustRegister(
		SamplesConsumedTotal,
		SamplesDroppedTotal,
		SummariesConsumedTotal,
		MalformedItemsTotal,
		PublishesTotal,
		SinkPublishTotal,
		PublishDuration,
		ForecastRefreshFailuresTotal,
		QueueDepth,
		LastPublishTimestamp,
		CircuitBreakerState,
		ReceiverDocumentsTotal,
	)
}

// MetricsHandler returns the Prometheus scrape handler for the service
// registry.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// RecordSinkSuccess records a successful publication for a sink.
func RecordSinkSuccess(sink string) {
	SinkPublishTotal.WithLabelValues(sink, "success").Inc()
}

// RecordSinkFailure records a failed publication for a sink.
func RecordSinkFailure(sink string) {
	SinkPublishTotal.WithLabelValues(sink, "failure").Inc()
}

// RecordSinkSkipped records a publication skipped by a sink's own interval
// gate or an open circuit.
func RecordSinkSkipped(sink string) {
	SinkPublishTotal.WithLabelValues(sink, "skipped").Inc()
}

// SetCircuitBreakerState records a breaker state change for a component.
func SetCircuitBreakerState(component string, state int) {
	CircuitBreakerState.WithLabelValues(component).Set(float64(state))
}
