package gateway

import (
	"sync"
	"time"
)

// DefaultIdempotencyMaxKeys bounds the idempotency map when unconfigured.
const DefaultIdempotencyMaxKeys = 10000

// IdempotencyStore remembers request keys for a TTL so client retries can be
// answered without re-running the work.
type IdempotencyStore struct {
	ttl     time.Duration
	maxKeys int

	mu   sync.Mutex
	keys map[string]time.Time
	now  func() time.Time
}

// NewIdempotencyStore creates a store. maxKeys 0 means the default cap; any
// value is clamped to at least 1.
func NewIdempotencyStore(ttl time.Duration, maxKeys int) *IdempotencyStore {
	if maxKeys == 0 {
		maxKeys = DefaultIdempotencyMaxKeys
	}
	if maxKeys < 1 {
		maxKeys = 1
	}
	return &IdempotencyStore{
		ttl:     ttl,
		maxKeys: maxKeys,
		keys:    make(map[string]time.Time),
		now:     time.Now,
	}
}

// RecordIfNew returns true when key has not been seen within the TTL and
// records it. Expiry runs before the decision, so a key older than the TTL
// counts as new again.
func (s *IdempotencyStore) RecordIfNew(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for k, insertedAt := range s.keys {
		if now.Sub(insertedAt) >= s.ttl {
			delete(s.keys, k)
		}
	}

	if _, seen := s.keys[key]; seen {
		return false
	}

	if len(s.keys) >= s.maxKeys {
		var oldestKey string
		var oldestAt time.Time
		first := true
		for k, insertedAt := range s.keys {
			if first || insertedAt.Before(oldestAt) {
				oldestKey, oldestAt = k, insertedAt
				first = false
			}
		}
		delete(s.keys, oldestKey)
	}

	s.keys[key] = now
	return true
}

// Len reports current key cardinality.
func (s *IdempotencyStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.keys)
}
