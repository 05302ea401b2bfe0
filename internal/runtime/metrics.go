package runtime

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics holds the service counters on a private registry.
type Metrics struct {
	Registry *prometheus.Registry

	Requests        *prometheus.CounterVec
	Extractions     *prometheus.CounterVec
	Renders         prometheus.Counter
	LLMCalls        *prometheus.CounterVec
	WorkflowCalls   *prometheus.CounterVec
	EventsPublished *prometheus.CounterVec
	LLMLatency      prometheus.Histogram
}

// NewMetrics registers every collector plus the Go and process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lrps", Name: "http_requests_total", Help: "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
		Extractions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lrps", Name: "extractions_total", Help: "JSON extractions by outcome.",
		}, []string{"outcome"}),
		Renders: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lrps", Name: "attention_renders_total", Help: "Attention trees rendered.",
		}),
		LLMCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lrps", Name: "llm_calls_total", Help: "Chat completion calls by outcome.",
		}, []string{"outcome"}),
		WorkflowCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lrps", Name: "workflow_calls_total", Help: "n8n API calls by operation and outcome.",
		}, []string{"op", "outcome"}),
		EventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lrps", Name: "events_published_total", Help: "Pub/sub events by type and outcome.",
		}, []string{"event_type", "outcome"}),
		LLMLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "lrps", Name: "llm_latency_seconds", Help: "Chat completion latency.",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 8),
		}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.Requests, m.Extractions, m.Renders, m.LLMCalls, m.WorkflowCalls, m.EventsPublished, m.LLMLatency,
	)
	return m
}

// Outcome maps an error to the "ok"/"error" label value.
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
