package sidecar

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nightjar-ai/nightjar/pkg/version"
)

// GatewayClient is the sidecar's loopback HTTP client for the gateway: health
// probing, pairing, and minting additional tokens for other devices.
type GatewayClient struct {
	baseURL string
	httpc   *http.Client
}

// NewGatewayClient targets the gateway at baseURL (e.g. http://127.0.0.1:3000).
func NewGatewayClient(baseURL string) *GatewayClient {
	return &GatewayClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{Timeout: 800 * time.Millisecond},
	}
}

func (g *GatewayClient) newRequest(ctx context.Context, method, path string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", version.UserAgent())
	return req, nil
}

// WaitReady polls /health every 250ms until the gateway answers or ctx
// expires.
func (g *GatewayClient) WaitReady(ctx context.Context) error {
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		req, err := g.newRequest(ctx, http.MethodGet, "/health")
		if err != nil {
			return err
		}
		resp, err := g.httpc.Do(req)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode < 300 {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("gateway did not become healthy in time: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

// TokenValid probes /health with the bearer token. The health route itself is
// unauthenticated, so validity is checked by the gateway accepting the header
// without rejecting the request.
func (g *GatewayClient) TokenValid(ctx context.Context, token string) bool {
	req, err := g.newRequest(ctx, http.MethodGet, "/api/chat/messages?limit=1")
	if err != nil {
		return false
	}
	req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(token))
	resp, err := g.httpc.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode != http.StatusUnauthorized
}

type pairResponse struct {
	Token string `json:"token"`
}

type newCodeResponse struct {
	Code string `json:"code"`
}

// PairWithCode exchanges a one-time code for a bearer token via POST /pair.
func (g *GatewayClient) PairWithCode(ctx context.Context, code string) (string, error) {
	req, err := g.newRequest(ctx, http.MethodPost, "/pair")
	if err != nil {
		return "", err
	}
	req.Header.Set("X-Pairing-Code", code)
	resp, err := g.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("call gateway /pair: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("gateway /pair failed (%d): %s", resp.StatusCode, body)
	}
	var parsed pairResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("parse /pair response: %w", err)
	}
	if strings.TrimSpace(parsed.Token) == "" {
		return "", fmt.Errorf("gateway returned an empty bearer token")
	}
	return parsed.Token, nil
}

// MintToken asks an already-paired gateway for a fresh one-time code and
// immediately redeems it, producing an additional bearer token for another
// device.
func (g *GatewayClient) MintToken(ctx context.Context, existingToken string) (string, error) {
	req, err := g.newRequest(ctx, http.MethodPost, "/pair/new-code")
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(existingToken))
	resp, err := g.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("call gateway /pair/new-code: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("gateway /pair/new-code failed (%d): %s", resp.StatusCode, body)
	}
	var parsed newCodeResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("parse /pair/new-code response: %w", err)
	}
	return g.PairWithCode(ctx, parsed.Code)
}

// MergeLines combines the gateway's own banner lines with the agent daemon's
// scanned output into one stream for BootstrapToken. Banner lines are
// delivered first; the returned channel closes once both sources are
// exhausted or ctx ends. daemon may be nil when no agent is supervised.
func MergeLines(ctx context.Context, banner []string, daemon <-chan string) <-chan string {
	out := make(chan string, len(banner)+16)
	go func() {
		defer close(out)
		for _, line := range banner {
			select {
			case out <- line:
			case <-ctx.Done():
				return
			}
		}
		if daemon == nil {
			return
		}
		for {
			select {
			case line, ok := <-daemon:
				if !ok {
					return
				}
				select {
				case out <- line:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// BootstrapToken establishes the desktop bearer token. A valid keyring token
// short-circuits; otherwise daemon output lines are watched for a pairing
// code, which is redeemed and persisted. Returns "" when no code appeared
// before ctx expired — the gateway still works, only authenticated sidecar
// calls are off.
func (g *GatewayClient) BootstrapToken(ctx context.Context, lines <-chan string) (string, error) {
	if err := g.WaitReady(ctx); err != nil {
		return "", err
	}

	if existing := LoadGatewayToken(); existing != "" && g.TokenValid(ctx, existing) {
		return existing, nil
	}

	for {
		select {
		case <-ctx.Done():
			return "", nil
		case line, ok := <-lines:
			if !ok {
				return "", nil
			}
			code := ExtractPairingCode(line)
			if code == "" {
				continue
			}
			token, err := g.PairWithCode(ctx, code)
			if err != nil {
				return "", err
			}
			if err := SaveGatewayToken(token); err != nil {
				return token, fmt.Errorf("persist gateway token to keyring: %w", err)
			}
			return token, nil
		}
	}
}
