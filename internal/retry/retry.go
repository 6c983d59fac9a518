// Package retry provides a bounded exponential-backoff combinator for
// retryable failure classes.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	// DefaultInitialInterval is the first backoff delay.
	DefaultInitialInterval = 50 * time.Millisecond
	// DefaultMaxRetries is the retry ceiling after the initial attempt.
	DefaultMaxRetries = 5
)

// Predicate reports whether an error belongs to the retryable failure class.
type Predicate func(error) bool

// Policy is a reusable retry policy bound to a predicate.
type Policy struct {
	initial    time.Duration
	maxRetries uint64
	retryable  Predicate
}

// NewPolicy creates a policy retrying only errors matched by retryable.
func NewPolicy(retryable Predicate) *Policy {
	return &Policy{
		initial:    DefaultInitialInterval,
		maxRetries: DefaultMaxRetries,
		retryable:  retryable,
	}
}

// WithInitialInterval overrides the first backoff delay.
func (p *Policy) WithInitialInterval(d time.Duration) *Policy {
	p.initial = d
	return p
}

// WithMaxRetries overrides the retry ceiling.
func (p *Policy) WithMaxRetries(n uint64) *Policy {
	p.maxRetries = n
	return p
}

// Do runs op, retrying with exponential backoff while op returns an error in
// the retryable class. Any other error is wrapped as permanent and returned
// immediately. Context cancellation stops the retry loop.
func (p *Policy) Do(ctx context.Context, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.initial
	b.Multiplier = 2.0
	b.MaxElapsedTime = 0 // bounded by retry count, not wall clock
	b.Reset()

	wrapped := func() error {
		err := op()
		if err == nil {
			return nil
		}
		if p.retryable(err) {
			return err
		}
		return backoff.Permanent(err)
	}

	return backoff.Retry(wrapped, backoff.WithContext(backoff.WithMaxRetries(b, p.maxRetries), ctx))
}
