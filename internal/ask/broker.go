package ask

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/parley-ai/parley/internal/logging"
)

// outcome is the one-shot result of a pending question.
type outcome struct {
	answer string
	err    error
}

// PendingAsk is a registered question awaiting resolution. It is resolved or
// rejected exactly once.
type PendingAsk struct {
	ID        string
	SessionID string
	Question  Question
	CreatedAt time.Time

	result chan outcome
	timer  *time.Timer
}

// Wait blocks until the question is answered, rejected, timed out or the
// context is done.
func (p *PendingAsk) Wait(ctx context.Context) (string, error) {
	select {
	case out := <-p.result:
		return out.answer, out.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Broker is the remote-mode question broker: Create registers a pending
// entry, and a separate caller later resolves or rejects it by id.
type Broker struct {
	mu      sync.Mutex
	pending map[string]*PendingAsk
	timeout time.Duration

	sweepStop chan struct{}
	sweepOnce sync.Once
}

// NewBroker creates a broker with the default timeout and starts the stale
// sweep.
func NewBroker() *Broker {
	return NewBrokerWithTimeout(DefaultTimeout)
}

// NewBrokerWithTimeout creates a broker with a custom timeout (tests).
func NewBrokerWithTimeout(timeout time.Duration) *Broker {
	b := &Broker{
		pending:   make(map[string]*PendingAsk),
		timeout:   timeout,
		sweepStop: make(chan struct{}),
	}
	go b.sweepLoop()
	return b
}

// Create registers a pending question and returns the handle the asking tool
// waits on. The entry is force-rejected once the timeout elapses.
func (b *Broker) Create(sessionID string, question Question) *PendingAsk {
	p := &PendingAsk{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Question:  question,
		CreatedAt: time.Now(),
		result:    make(chan outcome, 1),
	}

	// The timer is armed in the same critical section that publishes the
	// entry, so a settle that finds the entry always observes the timer.
	// The expiry callback takes b.mu and cannot run before the unlock.
	b.mu.Lock()
	p.timer = time.AfterFunc(b.timeout, func() {
		b.Reject(p.ID, fmt.Errorf("question %s timed out after %s", p.ID, b.timeout))
	})
	b.pending[p.ID] = p
	b.mu.Unlock()

	return p
}

// NewBrokerHandler bridges embedded mode onto a Broker: each question is
// registered as a pending entry for a remote caller to settle, and the
// handler suspends until that settlement arrives.
func NewBrokerHandler(b *Broker) Handler {
	return func(ctx context.Context, sessionID string, question Question) ([]string, error) {
		p := b.Create(sessionID, question)
		answer, err := p.Wait(ctx)
		if err != nil {
			return nil, err
		}
		return []string{answer}, nil
	}
}

// Resolve answers a pending question. At most one resolution wins; the loser
// is a no-op returning false.
func (b *Broker) Resolve(questionID string, answers []string) bool {
	return b.finish(questionID, outcome{answer: joinAnswers(answers)})
}

// Reject fails a pending question with err. Returns false if the question is
// unknown or already settled.
func (b *Broker) Reject(questionID string, err error) bool {
	return b.finish(questionID, outcome{err: err})
}

func (b *Broker) finish(questionID string, out outcome) bool {
	b.mu.Lock()
	p, ok := b.pending[questionID]
	if ok {
		delete(b.pending, questionID)
	}
	b.mu.Unlock()

	if !ok {
		return false
	}
	if p.timer != nil {
		p.timer.Stop()
	}
	p.result <- out
	return true
}

// PendingForSession lists pending question ids for a session.
func (b *Broker) PendingForSession(sessionID string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	var ids []string
	for id, p := range b.pending {
		if p.SessionID == sessionID {
			ids = append(ids, id)
		}
	}
	return ids
}

// Get returns a pending question by id.
func (b *Broker) Get(questionID string) (*PendingAsk, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.pending[questionID]
	return p, ok
}

// Close stops the sweep and rejects everything still pending.
func (b *Broker) Close() {
	b.sweepOnce.Do(func() { close(b.sweepStop) })

	b.mu.Lock()
	ids := make([]string, 0, len(b.pending))
	for id := range b.pending {
		ids = append(ids, id)
	}
	b.mu.Unlock()

	for _, id := range ids {
		b.Reject(id, fmt.Errorf("broker shutting down"))
	}
}

func (b *Broker) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.sweepStop:
			return
		case <-ticker.C:
			b.sweepStale()
		}
	}
}

// sweepStale force-rejects entries whose per-entry timer was somehow lost.
func (b *Broker) sweepStale() {
	cutoff := time.Now().Add(-(b.timeout + sweepInterval))

	b.mu.Lock()
	var stale []string
	for id, p := range b.pending {
		if p.CreatedAt.Before(cutoff) {
			stale = append(stale, id)
		}
	}
	b.mu.Unlock()

	for _, id := range stale {
		logging.Warn().Str("questionID", id).Msg("force-rejecting stale pending question")
		b.Reject(id, fmt.Errorf("question %s expired without resolution", id))
	}
}
