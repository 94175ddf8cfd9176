// Package pocketbase is a minimal REST client for the DocStore daemon. It
// speaks the PocketBase record API: list with paging, create, and partial
// update, all against a single collection namespace.
package pocketbase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/nightjar-ai/nightjar/pkg/version"
)

// DefaultBaseURL is where the supervised DocStore daemon listens.
const DefaultBaseURL = "http://127.0.0.1:8090"

// Record is one DocStore record. Field access goes through the typed getters
// so missing or mistyped fields degrade to zero values instead of panics.
type Record map[string]any

// GetString returns the string value of a field, or "" when absent or not a
// string.
func (r Record) GetString(key string) string {
	if v, ok := r[key].(string); ok {
		return v
	}
	return ""
}

// ID returns the record id.
func (r Record) ID() string { return r.GetString("id") }

// StatusError is a non-2xx DocStore response. The body is kept for logs but
// truncated so a misbehaving upstream cannot flood them.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("docstore returned %d: %s", e.Code, e.Body)
}

// Client talks to one DocStore instance. Safe for concurrent use.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New creates a client. token may be empty for an unauthenticated daemon.
func New(baseURL, token string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// BaseURL returns the configured DocStore address.
func (c *Client) BaseURL() string { return c.baseURL }

// Health probes GET /api/health.
func (c *Client) Health(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "/api/health", nil)
	return err
}

// ListRecords fetches one page of records from a collection.
func (c *Client) ListRecords(ctx context.Context, collection string, page, perPage int) ([]Record, error) {
	path := "/api/collections/" + collection + "/records?page=" + strconv.Itoa(page) +
		"&perPage=" + strconv.Itoa(perPage)
	body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var out struct {
		Items []Record `json:"items"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode record list: %w", err)
	}
	return out.Items, nil
}

// CreateRecord inserts a record and returns the stored version.
func (c *Client) CreateRecord(ctx context.Context, collection string, fields map[string]any) (Record, error) {
	body, err := c.do(ctx, http.MethodPost, "/api/collections/"+collection+"/records", fields)
	if err != nil {
		return nil, err
	}
	return decodeRecord(body)
}

// PatchRecord partially updates a record and returns the stored version.
func (c *Client) PatchRecord(ctx context.Context, collection, id string, fields map[string]any) (Record, error) {
	body, err := c.do(ctx, http.MethodPatch, "/api/collections/"+collection+"/records/"+id, fields)
	if err != nil {
		return nil, err
	}
	return decodeRecord(body)
}

func decodeRecord(body []byte) (Record, error) {
	var rec Record
	if err := json.Unmarshal(body, &rec); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return rec, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload map[string]any) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", version.UserAgent())
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("docstore request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read docstore response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Code: resp.StatusCode, Body: truncate(string(body), 500)}
	}
	return body, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
