package gateway

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRecordIfNewDeduplicates(t *testing.T) {
	s := NewIdempotencyStore(10*time.Minute, 100)

	assert.True(t, s.RecordIfNew("k1"))
	assert.False(t, s.RecordIfNew("k1"))
	assert.True(t, s.RecordIfNew("k2"))
	assert.Equal(t, 2, s.Len())
}

func TestRecordIfNewExpiresAfterTTL(t *testing.T) {
	s := NewIdempotencyStore(10*time.Minute, 100)
	now := time.Unix(1000, 0)
	s.now = func() time.Time { return now }

	assert.True(t, s.RecordIfNew("k"))
	now = now.Add(9 * time.Minute)
	assert.False(t, s.RecordIfNew("k"))

	now = now.Add(2 * time.Minute)
	assert.True(t, s.RecordIfNew("k"), "key older than the TTL counts as new")
}

func TestRecordIfNewEvictsOldestAtCapacity(t *testing.T) {
	s := NewIdempotencyStore(time.Hour, 3)
	now := time.Unix(1000, 0)
	s.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		assert.True(t, s.RecordIfNew(fmt.Sprintf("k%d", i)))
		now = now.Add(time.Second)
	}
	assert.True(t, s.RecordIfNew("k3"))
	assert.Equal(t, 3, s.Len())

	// k0 was evicted; recording it again succeeds.
	assert.True(t, s.RecordIfNew("k0"))
	// k3 is still present.
	assert.False(t, s.RecordIfNew("k3"))
}
