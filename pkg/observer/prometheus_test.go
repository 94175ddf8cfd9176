package observer

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusExposesRecordedEvents(t *testing.T) {
	p := NewPrometheus()

	p.AgentStart("openrouter", "test/model")
	p.LlmRequest("openrouter", "test/model", 1)
	p.LlmResponse("openrouter", "test/model", 120*time.Millisecond, true, "")
	p.RequestLatency(150 * time.Millisecond)
	p.AgentEnd("openrouter", "test/model", 150*time.Millisecond)
	p.Error("gateway", "boom")

	rec := httptest.NewRecorder()
	p.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	text := string(body)

	assert.Contains(t, text, `nightjar_agent_starts_total{model="test/model",provider="openrouter"} 1`)
	assert.Contains(t, text, `nightjar_llm_responses_total{model="test/model",provider="openrouter",success="true"} 1`)
	assert.Contains(t, text, "nightjar_request_latency_seconds_count 1")
	assert.Contains(t, text, `nightjar_errors_total{component="gateway"} 1`)
}

func TestNoopImplementsObserver(t *testing.T) {
	var o Observer = Noop{}
	o.AgentStart("p", "m")
	o.LlmResponse("p", "m", time.Second, false, "err")
	o.Error("gateway", "x")
}
