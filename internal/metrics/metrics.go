package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ouvidoria"

// Metrics groups the process counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	inbound            *prometheus.CounterVec
	replies            *prometheus.CounterVec
	submissions        prometheus.Counter
	submissionFailures prometheus.Counter
	lookups            *prometheus.CounterVec
	fallbacks          *prometheus.CounterVec
	duplicates         prometheus.Counter
	rateLimited        prometheus.Counter
	liveSessions       prometheus.Gauge
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		inbound: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "inbound_messages_total",
			Help: "Inbound messages by source.",
		}, []string{"source"}),
		replies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "replies_sent_total",
			Help: "Outbound replies by source and result.",
		}, []string{"source", "result"}),
		submissions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "submissions_total",
			Help: "Reports persisted.",
		}),
		submissionFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "submission_failures_total",
			Help: "Report inserts that failed and left the session at confirmation.",
		}),
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "lookups_total",
			Help: "Protocol lookups by result.",
		}, []string{"result"}),
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "intelligence_fallbacks_total",
			Help: "Text intelligence calls that failed open, by operation.",
		}, []string{"operation"}),
		duplicates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "duplicate_messages_total",
			Help: "Redelivered gateway messages dropped.",
		}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "rate_limited_messages_total",
			Help: "Inbound messages dropped by the per-sender limiter.",
		}),
		liveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "live_sessions",
			Help: "Sessions currently held by the session store.",
		}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.inbound, m.replies, m.submissions, m.submissionFailures,
		m.lookups, m.fallbacks, m.duplicates, m.rateLimited, m.liveSessions,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) Inbound(source string) {
	if m != nil {
		m.inbound.WithLabelValues(source).Inc()
	}
}

func (m *Metrics) Reply(source string, ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.replies.WithLabelValues(source, result).Inc()
}

func (m *Metrics) Submission() {
	if m != nil {
		m.submissions.Inc()
	}
}

func (m *Metrics) SubmissionFailure() {
	if m != nil {
		m.submissionFailures.Inc()
	}
}

// Lookup records a lookup outcome: found, not_found or error.
func (m *Metrics) Lookup(result string) {
	if m != nil {
		m.lookups.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) Fallback(operation string) {
	if m != nil {
		m.fallbacks.WithLabelValues(operation).Inc()
	}
}

func (m *Metrics) Duplicate() {
	if m != nil {
		m.duplicates.Inc()
	}
}

func (m *Metrics) RateLimited() {
	if m != nil {
		m.rateLimited.Inc()
	}
}

func (m *Metrics) SetLiveSessions(n int) {
	if m != nil {
		m.liveSessions.Set(float64(n))
	}
}
