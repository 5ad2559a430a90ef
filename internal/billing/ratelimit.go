package billing

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

type bucketKey struct {
	credentialID uuid.UUID
	providerID   string
}

// RateLimiter gates billed calls with one token bucket per
// (credential, provider) pair: capacity is the configured burst, refill
// is the per-minute limit. It is evaluated before any ledger work and
// is independent of ledger state.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[bucketKey]*rate.Limiter
	limit   rate.Limit
	burst   int
}

// Decision is the outcome of a rate limit check.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// NewRateLimiter creates a limiter refilling perMinute tokens per
// minute with the given burst capacity.
func NewRateLimiter(perMinute, burst int) *RateLimiter {
	return &RateLimiter{
		buckets: make(map[bucketKey]*rate.Limiter),
		limit:   rate.Limit(float64(perMinute) / 60.0),
		burst:   burst,
	}
}

// Allow consumes one token for the pair if available.
func (r *RateLimiter) Allow(credentialID uuid.UUID, providerID string) Decision {
	lim := r.bucket(bucketKey{credentialID: credentialID, providerID: providerID})

	if lim.Allow() {
		remaining := int(lim.Tokens())
		if remaining < 0 {
			remaining = 0
		}
		return Decision{Allowed: true, Remaining: remaining}
	}

	// Time until one full token is available again.
	missing := 1.0 - lim.Tokens()
	retryAfter := time.Duration(missing / float64(r.limit) * float64(time.Second))
	if retryAfter < 0 {
		retryAfter = 0
	}
	return Decision{Allowed: false, Remaining: 0, RetryAfter: retryAfter}
}

func (r *RateLimiter) bucket(k bucketKey) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	lim, ok := r.buckets[k]
	if !ok {
		lim = rate.NewLimiter(r.limit, r.burst)
		r.buckets[k] = lim
	}
	return lim
}
