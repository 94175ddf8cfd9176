package agent

import (
	"context"
	"log/slog"
	"time"

	"github.com/nightjar-ai/nightjar/pkg/config"
	"github.com/nightjar-ai/nightjar/pkg/masking"
	"github.com/nightjar-ai/nightjar/pkg/observer"
)

// Dispatcher wraps agent invocations with the observer event sequence:
// AgentStart, LlmRequest, then LlmResponse / RequestLatency / AgentEnd on
// completion, plus a gateway-scoped Error event on failure. Error text is
// redacted before it reaches the observer or the caller.
type Dispatcher struct {
	Provider Provider
	Agent    Agent
	Observer observer.Observer
	Redactor *masking.Redactor
	Logger   *slog.Logger
}

// SimpleChat runs a tool-less provider call for the webhook endpoint.
func (d *Dispatcher) SimpleChat(ctx context.Context, cfg *config.Config, message string) (string, error) {
	return d.observe(ctx, cfg, message, func(ctx context.Context) (string, error) {
		return SimpleChat(ctx, d.Provider, cfg, message)
	})
}

// ToolsChat runs the agent's full tool loop for channel messages.
func (d *Dispatcher) ToolsChat(ctx context.Context, cfg *config.Config, message string) (string, error) {
	return d.observe(ctx, cfg, message, func(ctx context.Context) (string, error) {
		return d.Agent.Process(ctx, cfg, message)
	})
}

func (d *Dispatcher) observe(ctx context.Context, cfg *config.Config, message string, invoke func(context.Context) (string, error)) (string, error) {
	provider := cfg.DefaultProvider
	if provider == "" {
		provider = "unknown"
	}
	model := cfg.DefaultModel

	started := time.Now()
	d.Observer.AgentStart(provider, model)
	d.Observer.LlmRequest(provider, model, 1)

	reply, err := invoke(ctx)
	duration := time.Since(started)

	if err != nil {
		sanitized := d.Redactor.Sanitize(err.Error())
		d.Observer.LlmResponse(provider, model, duration, false, sanitized)
		d.Observer.RequestLatency(duration)
		d.Observer.Error("gateway", sanitized)
		d.Observer.AgentEnd(provider, model, duration)
		d.Logger.Error("agent invocation failed",
			"provider", provider, "model", model, "error", sanitized)
		return "", err
	}

	d.Observer.LlmResponse(provider, model, duration, true, "")
	d.Observer.RequestLatency(duration)
	d.Observer.AgentEnd(provider, model, duration)
	return reply, nil
}
