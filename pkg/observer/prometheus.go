package observer

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus is the default Observer backend. Metrics are registered on a
// private registry so tests can run multiple instances without collisions.
type Prometheus struct {
	registry *prometheus.Registry

	agentStarts  *prometheus.CounterVec
	llmRequests  *prometheus.CounterVec
	llmResponses *prometheus.CounterVec
	llmDuration  *prometheus.HistogramVec
	latency      prometheus.Histogram
	errors       *prometheus.CounterVec
}

// NewPrometheus creates a backend with all metrics registered.
func NewPrometheus() *Prometheus {
	p := &Prometheus{
		registry: prometheus.NewRegistry(),
		agentStarts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nightjar_agent_starts_total",
			Help: "Agent invocations started.",
		}, []string{"provider", "model"}),
		llmRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nightjar_llm_requests_total",
			Help: "Outbound LLM provider calls.",
		}, []string{"provider", "model"}),
		llmResponses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nightjar_llm_responses_total",
			Help: "LLM provider responses by outcome.",
		}, []string{"provider", "model", "success"}),
		llmDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "nightjar_llm_duration_seconds",
			Help:    "LLM provider call duration.",
			Buckets: prometheus.DefBuckets,
		}, []string{"provider", "model"}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "nightjar_request_latency_seconds",
			Help:    "End-to-end gateway request latency.",
			Buckets: prometheus.DefBuckets,
		}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nightjar_errors_total",
			Help: "Component errors.",
		}, []string{"component"}),
	}
	p.registry.MustRegister(p.agentStarts, p.llmRequests, p.llmResponses,
		p.llmDuration, p.latency, p.errors)
	return p
}

// Handler serves the registry in Prometheus text exposition format for
// GET /metrics.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

func (p *Prometheus) AgentStart(provider, model string) {
	p.agentStarts.WithLabelValues(provider, model).Inc()
}

func (p *Prometheus) LlmRequest(provider, model string, messageCount int) {
	p.llmRequests.WithLabelValues(provider, model).Inc()
}

func (p *Prometheus) LlmResponse(provider, model string, d time.Duration, success bool, errorMessage string) {
	outcome := "false"
	if success {
		outcome = "true"
	}
	p.llmResponses.WithLabelValues(provider, model, outcome).Inc()
	p.llmDuration.WithLabelValues(provider, model).Observe(d.Seconds())
}

func (p *Prometheus) AgentEnd(provider, model string, d time.Duration) {}

func (p *Prometheus) RequestLatency(d time.Duration) {
	p.latency.Observe(d.Seconds())
}

func (p *Prometheus) Error(component, message string) {
	p.errors.WithLabelValues(component).Inc()
}
