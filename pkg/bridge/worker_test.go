package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nightjar-ai/nightjar/pkg/config"
	"github.com/nightjar-ai/nightjar/pkg/cron"
	"github.com/nightjar-ai/nightjar/pkg/pocketbase"
)

// mockDocStore is an in-process DocStore speaking just enough of the record
// API for the worker.
type mockDocStore struct {
	mu        sync.Mutex
	records   []map[string]any
	nextID    int
	failPatch bool
	srv       *httptest.Server
}

func newMockDocStore(t *testing.T) *mockDocStore {
	t.Helper()
	m := &mockDocStore{}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/collections/chat_messages/records", m.handleCollection)
	mux.HandleFunc("/api/collections/chat_messages/records/", m.handleRecord)
	m.srv = httptest.NewServer(mux)
	t.Cleanup(m.srv.Close)
	return m
}

func (m *mockDocStore) add(fields map[string]any) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	id := fmt.Sprintf("rec%d", m.nextID)
	fields["id"] = id
	m.records = append(m.records, fields)
	return id
}

func (m *mockDocStore) get(id string) map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r["id"] == id {
			out := map[string]any{}
			for k, v := range r {
				out[k] = v
			}
			return out
		}
	}
	return nil
}

func (m *mockDocStore) find(pred func(map[string]any) bool) []map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []map[string]any
	for _, r := range m.records {
		if pred(r) {
			out = append(out, r)
		}
	}
	return out
}

func (m *mockDocStore) handleCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		m.mu.Lock()
		items := append([]map[string]any{}, m.records...)
		m.mu.Unlock()
		// Single page; the worker stops paging when a page is short.
		_ = json.NewEncoder(w).Encode(map[string]any{"items": items})
	case http.MethodPost:
		var fields map[string]any
		_ = json.NewDecoder(r.Body).Decode(&fields)
		m.add(fields)
		_ = json.NewEncoder(w).Encode(fields)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (m *mockDocStore) handleRecord(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPatch {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	m.mu.Lock()
	fail := m.failPatch
	m.mu.Unlock()
	if fail {
		http.Error(w, "docstore down", http.StatusInternalServerError)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/collections/chat_messages/records/")
	var fields map[string]any
	_ = json.NewDecoder(r.Body).Decode(&fields)

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range m.records {
		if rec["id"] == id {
			for k, v := range fields {
				rec[k] = v
			}
			_ = json.NewEncoder(w).Encode(rec)
			return
		}
	}
	http.Error(w, "not found", http.StatusNotFound)
}

type stubAgent struct {
	fn func(ctx context.Context, message string) (string, error)
}

func (s *stubAgent) Process(ctx context.Context, cfg *config.Config, message string) (string, error) {
	return s.fn(ctx, message)
}

func newTestWorker(t *testing.T, store *mockDocStore, ag *stubAgent) (*Worker, *cron.Scheduler) {
	t.Helper()
	sched, err := cron.NewScheduler(t.TempDir(), slog.Default())
	require.NoError(t, err)

	w := NewWorker(WorkerDeps{
		Client:    pocketbase.New(store.srv.URL, ""),
		Config:    config.Default(t.TempDir()),
		Agent:     ag,
		Scheduler: sched,
		Logger:    slog.Default(),
	})
	return w, sched
}

func pendingUser(content, threadID string) map[string]any {
	return map[string]any{
		"threadId": threadID,
		"role":     "user",
		"content":  content,
		"status":   "pending",
	}
}

func TestTickReminderPath(t *testing.T) {
	store := newMockDocStore(t)
	srcID := store.add(pendingUser("/remind 1m stretch", "t"))

	w, sched := newTestWorker(t, store, &stubAgent{fn: func(context.Context, string) (string, error) {
		t.Fatal("agent must not run for reminders")
		return "", nil
	}})

	before := time.Now()
	w.tick(context.Background())

	jobs := sched.Jobs()
	require.Len(t, jobs, 1)
	job := jobs[0]
	assert.WithinDuration(t, before.Add(time.Minute), job.RunAt, 5*time.Second)
	assert.Equal(t, "PB chat reminder: stretch", job.Name)
	require.NotNil(t, job.Delivery)
	assert.Equal(t, "announce", job.Delivery.Mode)
	assert.Equal(t, "pocketbase", job.Delivery.Channel)
	assert.Equal(t, "t", job.Delivery.To)
	assert.True(t, job.Delivery.BestEffort)

	src := store.get(srcID)
	assert.Equal(t, "done", src["status"])

	replies := store.find(func(r map[string]any) bool { return r["role"] == "assistant" })
	require.Len(t, replies, 1)
	assert.Equal(t, srcID, replies[0]["replyToId"])
	assert.Equal(t, sourceReminder, replies[0]["source"])
	content := replies[0]["content"].(string)
	assert.Contains(t, content, "Scheduled reminder")
	assert.Contains(t, content, "1 minute")
	assert.Contains(t, content, job.ID)
}

func TestTickAgentPath(t *testing.T) {
	store := newMockDocStore(t)
	srcID := store.add(pendingUser("how are you?", "thread-9"))

	var gotMessage string
	w, _ := newTestWorker(t, store, &stubAgent{fn: func(ctx context.Context, msg string) (string, error) {
		gotMessage = msg
		return "doing fine", nil
	}})
	w.tick(context.Background())

	assert.Equal(t, "how are you?", gotMessage)
	assert.Equal(t, "done", store.get(srcID)["status"])

	replies := store.find(func(r map[string]any) bool { return r["role"] == "assistant" })
	require.Len(t, replies, 1)
	assert.Equal(t, "doing fine", replies[0]["content"])
	assert.Equal(t, sourceAgent, replies[0]["source"])
	assert.Equal(t, "thread-9", replies[0]["threadId"])
}

func TestTickAgentEmptyReply(t *testing.T) {
	store := newMockDocStore(t)
	store.add(pendingUser("hello", "t"))

	w, _ := newTestWorker(t, store, &stubAgent{fn: func(context.Context, string) (string, error) {
		return "   ", nil
	}})
	w.tick(context.Background())

	replies := store.find(func(r map[string]any) bool { return r["role"] == "assistant" })
	require.Len(t, replies, 1)
	assert.Equal(t, "(empty response)", replies[0]["content"])
}

func TestTickAgentFailureSanitized(t *testing.T) {
	store := newMockDocStore(t)
	srcID := store.add(pendingUser("hello", "t"))

	w, _ := newTestWorker(t, store, &stubAgent{fn: func(context.Context, string) (string, error) {
		return "", fmt.Errorf("provider rejected api_key=supersecret12345")
	}})
	w.tick(context.Background())

	src := store.get(srcID)
	assert.Equal(t, "error", src["status"])

	replies := store.find(func(r map[string]any) bool { return r["role"] == "assistant" })
	require.Len(t, replies, 1)
	assert.Equal(t, "error", replies[0]["status"])
	content := replies[0]["content"].(string)
	assert.NotContains(t, content, "supersecret12345")
	assert.Contains(t, content, "provider rejected")
}

func TestTickEmptyContentIsTerminalError(t *testing.T) {
	store := newMockDocStore(t)
	srcID := store.add(pendingUser("   ", "t"))

	w, _ := newTestWorker(t, store, &stubAgent{fn: func(context.Context, string) (string, error) {
		t.Fatal("agent must not run for empty content")
		return "", nil
	}})
	w.tick(context.Background())

	src := store.get(srcID)
	assert.Equal(t, "error", src["status"])
	assert.Empty(t, store.find(func(r map[string]any) bool { return r["role"] == "assistant" }))
}

func TestTickSkipsNonPendingAndNonUser(t *testing.T) {
	store := newMockDocStore(t)
	store.add(map[string]any{"role": "assistant", "content": "old reply", "status": "done"})
	store.add(map[string]any{"role": "user", "content": "claimed", "status": "processing"})
	store.add(pendingUser("fresh", "t"))

	var calls int
	w, _ := newTestWorker(t, store, &stubAgent{fn: func(ctx context.Context, msg string) (string, error) {
		calls++
		return "ok", nil
	}})
	w.tick(context.Background())

	assert.Equal(t, 1, calls)
}

func TestTickCapsRecordsPerTick(t *testing.T) {
	store := newMockDocStore(t)
	for i := 0; i < maxRecordsPerTick+4; i++ {
		store.add(pendingUser(fmt.Sprintf("msg %d", i), "t"))
	}

	var calls int
	w, _ := newTestWorker(t, store, &stubAgent{fn: func(context.Context, string) (string, error) {
		calls++
		return "ok", nil
	}})
	w.tick(context.Background())

	assert.Equal(t, maxRecordsPerTick, calls)
}

func TestTickAbortsWhenClaimFails(t *testing.T) {
	store := newMockDocStore(t)
	store.add(pendingUser("one", "t"))
	store.add(pendingUser("two", "t"))
	store.failPatch = true

	w, _ := newTestWorker(t, store, &stubAgent{fn: func(context.Context, string) (string, error) {
		t.Fatal("agent must not run when the claim fails")
		return "", nil
	}})
	w.tick(context.Background())

	assert.Empty(t, store.find(func(r map[string]any) bool { return r["role"] == "assistant" }))
}

func TestWorkerIntervalDefaults(t *testing.T) {
	store := newMockDocStore(t)

	w := NewWorker(WorkerDeps{
		Client: pocketbase.New(store.srv.URL, ""),
		Config: config.Default(t.TempDir()),
		Agent:  &stubAgent{fn: func(context.Context, string) (string, error) { return "", nil }},
		Logger: slog.Default(),
	})
	assert.Equal(t, DefaultPollInterval, w.interval)

	w = NewWorker(WorkerDeps{
		Client:       pocketbase.New(store.srv.URL, ""),
		Config:       config.Default(t.TempDir()),
		Agent:        &stubAgent{fn: func(context.Context, string) (string, error) { return "", nil }},
		Logger:       slog.Default(),
		PollInterval: 10 * time.Millisecond,
	})
	assert.Equal(t, MinPollInterval, w.interval)
}
