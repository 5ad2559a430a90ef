package billing

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// StoredResult is the verbatim outcome of a completed purchase: the
// exact status and body the caller originally received.
type StoredResult struct {
	Status        int
	Body          []byte
	TransactionID string
}

type idemKey struct {
	credentialID uuid.UUID
	key          string
}

type idemEntry struct {
	result    *StoredResult
	expiresAt time.Time
	inFlight  bool
}

// IdempotencyCache deduplicates retried purchase requests. A Miss
// grants an exclusive execution lease; a concurrent caller presenting
// the same key while the lease is outstanding gets
// ErrIdempotencyConflict instead of a second execution.
type IdempotencyCache struct {
	mu          sync.Mutex
	entries     map[idemKey]*idemEntry
	ttl         time.Duration
	lastCleanup time.Time
	now         func() time.Time
}

// NewIdempotencyCache creates a cache whose stored results expire after
// ttl (the replay validity window).
func NewIdempotencyCache(ttl time.Duration) *IdempotencyCache {
	return &IdempotencyCache{
		entries: make(map[idemKey]*idemEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Lease is the exclusive right to execute for one (credential, key)
// pair. It must resolve through Complete or Fail.
type Lease struct {
	cache *IdempotencyCache
	key   idemKey
}

// CheckOrRegister returns the stored result for a replayed key, or a
// lease when this caller should execute. While another lease for the
// same key is outstanding it returns ErrIdempotencyConflict.
func (c *IdempotencyCache) CheckOrRegister(credentialID uuid.UUID, key string) (*StoredResult, *Lease, error) {
	k := idemKey{credentialID: credentialID, key: key}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if entry, ok := c.entries[k]; ok {
		if entry.inFlight {
			return nil, nil, ErrIdempotencyConflict
		}
		if now.Before(entry.expiresAt) {
			return entry.result, nil, nil
		}
		delete(c.entries, k)
	}

	c.entries[k] = &idemEntry{inFlight: true}
	c.cleanupLocked(now)
	return nil, &Lease{cache: c, key: k}, nil
}

// Complete stores the result for replay within the validity window and
// releases the lease.
func (l *Lease) Complete(result *StoredResult) {
	c := l.cache
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[l.key] = &idemEntry{
		result:    result,
		expiresAt: c.now().Add(c.ttl),
	}
}

// Fail releases the lease without storing a result, so the caller may
// retry with the same key.
func (l *Lease) Fail() {
	c := l.cache
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, l.key)
}

// cleanupLocked lazily drops expired entries. Must be called with the
// lock held.
func (c *IdempotencyCache) cleanupLocked(now time.Time) {
	if now.Sub(c.lastCleanup) < time.Minute {
		return
	}
	c.lastCleanup = now
	for k, entry := range c.entries {
		if !entry.inFlight && now.After(entry.expiresAt) {
			delete(c.entries, k)
		}
	}
}
