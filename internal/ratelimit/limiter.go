// Package ratelimit provides in-memory token-bucket admission control keyed
// by client identity.
package ratelimit

import (
	"sync"
	"time"
)

const (
	// sweepInterval is how often idle buckets are reclaimed.
	sweepInterval = 5 * time.Minute
)

// Result is the outcome of an admission check. A denied request is a
// structured refusal, not an error; the transport layer turns it into a
// throttling response.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// bucket tracks one identity's token balance.
type bucket struct {
	tokens     int
	lastRefill time.Time
}

// Limiter is a per-identity token bucket. Buckets are created lazily on first
// sight of a key and reclaimed by a periodic sweep once idle beyond twice the
// window.
type Limiter struct {
	mu          sync.Mutex
	buckets     map[string]*bucket
	maxRequests int
	window      time.Duration

	sweepStop chan struct{}
	sweepOnce sync.Once

	// now is swappable for tests.
	now func() time.Time
}

// New creates a limiter admitting maxRequests per window per identity and
// starts the background sweep.
func New(maxRequests int, window time.Duration) *Limiter {
	l := &Limiter{
		buckets:     make(map[string]*bucket),
		maxRequests: maxRequests,
		window:      window,
		sweepStop:   make(chan struct{}),
		now:         time.Now,
	}
	go l.sweepLoop()
	return l
}

// Check consumes one token for identity if available.
func (l *Limiter) Check(identity string) Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	b, ok := l.buckets[identity]
	if !ok {
		// First sight: seed a full bucket and consume this request's token.
		b = &bucket{tokens: l.maxRequests - 1, lastRefill: now}
		l.buckets[identity] = b
		return Result{Allowed: true, Remaining: b.tokens, ResetAt: now.Add(l.window)}
	}

	// Refill proportionally to elapsed time since the last refill.
	elapsed := now.Sub(b.lastRefill)
	if refill := int(int64(elapsed) * int64(l.maxRequests) / int64(l.window)); refill > 0 {
		b.tokens += refill
		if b.tokens > l.maxRequests {
			b.tokens = l.maxRequests
		}
		b.lastRefill = now
	}

	if b.tokens <= 0 {
		return Result{Allowed: false, Remaining: 0, ResetAt: b.lastRefill.Add(l.window)}
	}

	b.tokens--
	return Result{Allowed: true, Remaining: b.tokens, ResetAt: b.lastRefill.Add(l.window)}
}

// Reset clears state for one identity.
func (l *Limiter) Reset(identity string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.buckets, identity)
}

// ResetAll clears all buckets.
func (l *Limiter) ResetAll() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buckets = make(map[string]*bucket)
}

// Close stops the background sweep.
func (l *Limiter) Close() {
	l.sweepOnce.Do(func() { close(l.sweepStop) })
}

func (l *Limiter) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.sweepStop:
			return
		case <-ticker.C:
			l.sweep()
		}
	}
}

// sweep evicts buckets untouched for more than twice the window.
func (l *Limiter) sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-2 * l.window)
	for key, b := range l.buckets {
		if b.lastRefill.Before(cutoff) {
			delete(l.buckets, key)
		}
	}
}
