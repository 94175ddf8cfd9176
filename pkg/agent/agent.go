// Package agent defines the LLM invocation contracts. The gateway speaks to
// the assistant through two doors: simple chat (one provider call, no tools)
// for webhook requests, and Process (the full tool loop, owned by the agent
// daemon) for channel messages.
package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/nightjar-ai/nightjar/pkg/config"
)

// Message is one turn in a chat history.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is a single provider invocation.
type ChatRequest struct {
	Model       string    `json:"model"`
	Temperature float64   `json:"temperature"`
	System      string    `json:"system,omitempty"`
	Messages    []Message `json:"messages"`
}

// Provider performs one chat completion without tools.
type Provider interface {
	Chat(ctx context.Context, req ChatRequest) (string, error)
}

// Agent runs the full tool loop for a message and returns the final reply.
type Agent interface {
	Process(ctx context.Context, cfg *config.Config, message string) (string, error)
}

// SimpleChat sends one user message through the provider with the standard
// system prompt. Used by the webhook handler; channel handlers go through
// Agent.Process instead.
func SimpleChat(ctx context.Context, p Provider, cfg *config.Config, message string) (string, error) {
	reply, err := p.Chat(ctx, ChatRequest{
		Model:       cfg.DefaultModel,
		Temperature: cfg.DefaultTemperature,
		System:      BuildSystemPrompt(cfg.WorkspaceDir, cfg.DefaultModel),
		Messages:    []Message{{Role: "user", Content: message}},
	})
	if err != nil {
		return "", fmt.Errorf("provider chat: %w", err)
	}
	return reply, nil
}

// BuildSystemPrompt advertises the workspace location and active model so the
// assistant can reference its own files and capabilities.
func BuildSystemPrompt(workspaceDir, model string) string {
	var b strings.Builder
	b.WriteString("You are a personal assistant running locally.\n")
	b.WriteString("Workspace: " + workspaceDir + "\n")
	b.WriteString("Model: " + model + "\n")
	b.WriteString("Answer concisely. Files under the workspace are yours to reference.")
	return b.String()
}
