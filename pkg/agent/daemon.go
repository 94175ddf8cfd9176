package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/nightjar-ai/nightjar/pkg/config"
)

// DaemonClient talks to the supervised agent daemon over HTTP. It implements
// both Provider (POST /api/agent/chat) and Agent (POST /api/agent/process).
type DaemonClient struct {
	baseURL string
	http    *http.Client
}

// NewDaemonClient points at the agent daemon's base URL.
func NewDaemonClient(baseURL string) *DaemonClient {
	return &DaemonClient{
		baseURL: baseURL,
		// Tool loops can be slow; the request context still bounds each call.
		http: &http.Client{Timeout: 10 * time.Minute},
	}
}

// Chat performs a tool-less completion.
func (d *DaemonClient) Chat(ctx context.Context, req ChatRequest) (string, error) {
	return d.post(ctx, "/api/agent/chat", req)
}

// Process runs the daemon's full tool loop.
func (d *DaemonClient) Process(ctx context.Context, cfg *config.Config, message string) (string, error) {
	return d.post(ctx, "/api/agent/process", map[string]any{
		"message":     message,
		"model":       cfg.DefaultModel,
		"temperature": cfg.DefaultTemperature,
	})
}

func (d *DaemonClient) post(ctx context.Context, path string, payload any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode agent request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("build agent request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("agent daemon request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("read agent response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("agent daemon returned %d: %s", resp.StatusCode, truncate(string(body), 500))
	}

	var out struct {
		Reply string `json:"reply"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("decode agent response: %w", err)
	}
	return out.Reply, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
