// Package observer records lifecycle events and latency metrics around agent
// invocations. The gateway emits a fixed event sequence per request
// (AgentStart, LlmRequest, LlmResponse, AgentEnd, plus Error on failure); the
// backend decides what to do with it.
package observer

import (
	"log/slog"
	"time"
)

// Observer receives the per-request event stream. Implementations must be
// safe for concurrent use; every HTTP request and every worker tick reports
// through the same instance.
type Observer interface {
	// AgentStart marks the beginning of an agent invocation.
	AgentStart(provider, model string)
	// LlmRequest records an outbound provider call with its message count.
	LlmRequest(provider, model string, messageCount int)
	// LlmResponse records the provider outcome. errorMessage must already be
	// sanitized by the caller; the observer stores it verbatim.
	LlmResponse(provider, model string, duration time.Duration, success bool, errorMessage string)
	// AgentEnd marks the end of an agent invocation.
	AgentEnd(provider, model string, duration time.Duration)
	// RequestLatency records end-to-end request duration.
	RequestLatency(duration time.Duration)
	// Error records a component-scoped failure outside the request sequence.
	Error(component, message string)
}

// Noop discards every event. Used when observability is configured off and in
// tests that do not assert on metrics.
type Noop struct{}

func (Noop) AgentStart(string, string)                                  {}
func (Noop) LlmRequest(string, string, int)                             {}
func (Noop) LlmResponse(string, string, time.Duration, bool, string)    {}
func (Noop) AgentEnd(string, string, time.Duration)                     {}
func (Noop) RequestLatency(time.Duration)                               {}
func (Noop) Error(string, string)                                       {}

// Logging wraps another observer and mirrors error events to slog. Success
// events stay silent to keep request logs readable.
type Logging struct {
	Next   Observer
	Logger *slog.Logger
}

func (l *Logging) AgentStart(provider, model string) { l.Next.AgentStart(provider, model) }

func (l *Logging) LlmRequest(provider, model string, messageCount int) {
	l.Next.LlmRequest(provider, model, messageCount)
}

func (l *Logging) LlmResponse(provider, model string, d time.Duration, success bool, errorMessage string) {
	if !success {
		l.Logger.Warn("llm call failed", "provider", provider, "model", model,
			"duration_ms", d.Milliseconds(), "error", errorMessage)
	}
	l.Next.LlmResponse(provider, model, d, success, errorMessage)
}

func (l *Logging) AgentEnd(provider, model string, d time.Duration) {
	l.Next.AgentEnd(provider, model, d)
}

func (l *Logging) RequestLatency(d time.Duration) { l.Next.RequestLatency(d) }

func (l *Logging) Error(component, message string) {
	l.Logger.Error("component error", "component", component, "error", message)
	l.Next.Error(component, message)
}
