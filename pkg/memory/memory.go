// Package memory persists conversation snippets so the assistant can recall
// prior turns across restarts. The gateway auto-saves inbound messages here
// when memory.auto_save is enabled; failures are the caller's to ignore.
package memory

import (
	"context"
	"time"
)

// Categories partition stored entries.
const (
	CategoryConversation = "conversation"
)

// Entry is one stored memory item.
type Entry struct {
	Key       string
	Category  string
	SessionID string
	Content   string
	CreatedAt time.Time
}

// Memory is the storage contract. Implementations must be safe for concurrent
// use; the HTTP handlers and the chat worker write through the same instance.
type Memory interface {
	Store(ctx context.Context, entry Entry) error
	Recall(ctx context.Context, sessionID string, limit int) ([]Entry, error)
	Close() error
}
