package ratelimit

import "sync"

// StreamLimiter bounds the number of concurrent long-lived streaming
// subscriptions per identity.
type StreamLimiter struct {
	mu     sync.Mutex
	active map[string]int
	max    int
}

// NewStreamLimiter creates a limiter admitting up to max concurrent streams
// per identity.
func NewStreamLimiter(max int) *StreamLimiter {
	return &StreamLimiter{
		active: make(map[string]int),
		max:    max,
	}
}

// Acquire reserves a stream slot for identity. On success the returned
// release function must be called exactly once when the stream ends.
func (l *StreamLimiter) Acquire(identity string) (release func(), ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.active[identity] >= l.max {
		return nil, false
	}
	l.active[identity]++

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			l.active[identity]--
			if l.active[identity] <= 0 {
				delete(l.active, identity)
			}
		})
	}, true
}

// Max returns the per-identity stream cap.
func (l *StreamLimiter) Max() int {
	return l.max
}

// Active returns the number of live streams for identity.
func (l *StreamLimiter) Active(identity string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active[identity]
}
