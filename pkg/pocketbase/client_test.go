package pocketbase

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListRecords(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/collections/chat_messages/records", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		assert.Equal(t, "30", r.URL.Query().Get("perPage"))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"items": []map[string]any{
				{"id": "r1", "content": "hello"},
				{"id": "r2", "content": "world"},
			},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, "tok")
	items, err := c.ListRecords(context.Background(), "chat_messages", 2, 30)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "r1", items[0].ID())
	assert.Equal(t, "hello", items[0].GetString("content"))
}

func TestCreateAndPatchRecord(t *testing.T) {
	var gotMethod, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		var fields map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&fields))
		fields["id"] = "new-id"
		_ = json.NewEncoder(w).Encode(fields)
	}))
	defer srv.Close()

	c := New(srv.URL, "")

	rec, err := c.CreateRecord(context.Background(), "chat_messages", map[string]any{"content": "hi"})
	require.NoError(t, err)
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "/api/collections/chat_messages/records", gotPath)
	assert.Equal(t, "hi", rec.GetString("content"))

	rec, err = c.PatchRecord(context.Background(), "chat_messages", "abc", map[string]any{"status": "done"})
	require.NoError(t, err)
	assert.Equal(t, http.MethodPatch, gotMethod)
	assert.Equal(t, "/api/collections/chat_messages/records/abc", gotPath)
	assert.Equal(t, "done", rec.GetString("status"))
}

func TestStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such collection", http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	_, err := c.ListRecords(context.Background(), "missing", 1, 30)

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusNotFound, se.Code)
	assert.Contains(t, se.Body, "no such collection")
}

func TestHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/health", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	assert.NoError(t, New(srv.URL, "").Health(context.Background()))
}

func TestRecordGettersTolerateMissingFields(t *testing.T) {
	rec := Record{"count": 3}
	assert.Equal(t, "", rec.GetString("missing"))
	assert.Equal(t, "", rec.GetString("count"))
	assert.Equal(t, "", rec.ID())
}
