package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "eventscout"

// Collector exposes Prometheus metrics for inbound HTTP requests and for the
// ingest and publish passes. A nil *Collector is valid and records nothing.
type Collector struct {
	registry        *prometheus.Registry
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec

	postsRetrieved  prometheus.Counter
	postsRejected   *prometheus.CounterVec
	drafts          *prometheus.CounterVec
	draftsInvalid   prometheus.Counter
	ingestOutcomes  *prometheus.CounterVec
	searchFailures  *prometheus.CounterVec
	passDuration    *prometheus.HistogramVec
	publishOutcomes *prometheus.CounterVec
}

// New constructs a collector on its own registry.
func New() (*Collector, error) {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Latency distribution for inbound HTTP requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of inbound HTTP requests.",
		}, []string{"method", "path", "status"}),
		postsRetrieved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "posts_retrieved_total",
			Help:      "Posts returned by the search API.",
		}),
		postsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "posts_rejected_total",
			Help:      "Posts dropped by a classifier gate.",
		}, []string{"gate"}),
		drafts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "drafts_total",
			Help:      "Event drafts produced, by extraction strategy.",
		}, []string{"strategy"}),
		draftsInvalid: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "drafts_invalid_total",
			Help:      "Drafts rejected by validation.",
		}),
		ingestOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "events_total",
			Help:      "Bulk ingest outcomes per draft.",
		}, []string{"outcome"}),
		searchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "search_failures_total",
			Help:      "Searches that failed after retries.",
		}, []string{"reason"}),
		passDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "pass_duration_seconds",
			Help:      "Duration of ingest and publish passes.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"pass"}),
		publishOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "publish",
			Name:      "posts_total",
			Help:      "Publish attempts by outcome.",
		}, []string{"outcome"}),
	}

	for _, collector := range []prometheus.Collector{
		c.requestDuration,
		c.requestTotal,
		c.postsRetrieved,
		c.postsRejected,
		c.drafts,
		c.draftsInvalid,
		c.ingestOutcomes,
		c.searchFailures,
		c.passDuration,
		c.publishOutcomes,
	} {
		if err := registry.Register(collector); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// Handler returns an HTTP handler for exposing Prometheus metrics.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler to record HTTP metrics.
func (c *Collector) InstrumentHandler(next http.Handler) http.Handler {
	if c == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(rw.status)
		path := r.URL.Path

		c.requestTotal.WithLabelValues(r.Method, path, status).Inc()
		c.requestDuration.WithLabelValues(r.Method, path, status).Observe(duration)
	})
}

// PostsRetrieved counts posts returned by one search.
func (c *Collector) PostsRetrieved(n int) {
	if c == nil {
		return
	}
	c.postsRetrieved.Add(float64(n))
}

// PostRejected counts a post dropped by the named gate.
func (c *Collector) PostRejected(gate string) {
	if c == nil {
		return
	}
	c.postsRejected.WithLabelValues(gate).Inc()
}

// DraftExtracted counts a draft produced by the named strategy.
func (c *Collector) DraftExtracted(strategy string) {
	if c == nil {
		return
	}
	c.drafts.WithLabelValues(strategy).Inc()
}

// DraftInvalid counts a draft rejected by validation.
func (c *Collector) DraftInvalid() {
	if c == nil {
		return
	}
	c.draftsInvalid.Inc()
}

// Ingested records the stats of one bulk ingest.
func (c *Collector) Ingested(created, duplicates, failed int) {
	if c == nil {
		return
	}
	c.ingestOutcomes.WithLabelValues("created").Add(float64(created))
	c.ingestOutcomes.WithLabelValues("duplicate").Add(float64(duplicates))
	c.ingestOutcomes.WithLabelValues("failed").Add(float64(failed))
}

// SearchFailed counts a query that failed for the given reason.
func (c *Collector) SearchFailed(reason string) {
	if c == nil {
		return
	}
	c.searchFailures.WithLabelValues(reason).Inc()
}

// PassCompleted records how long an ingest or publish pass ran.
func (c *Collector) PassCompleted(pass string, d time.Duration) {
	if c == nil {
		return
	}
	c.passDuration.WithLabelValues(pass).Observe(d.Seconds())
}

// Published counts a publish attempt by outcome ("posted" or "failed").
func (c *Collector) Published(outcome string) {
	if c == nil {
		return
	}
	c.publishOutcomes.WithLabelValues(outcome).Inc()
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (w *responseWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
