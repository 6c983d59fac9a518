package ask

import (
	"context"
	"sync"

	"github.com/parley-ai/parley/internal/logging"
)

// Handler answers a question on behalf of the user in embedded mode. It
// returns the selected answers; an error stands in for a UI failure.
type Handler func(ctx context.Context, sessionID string, question Question) ([]string, error)

// queuedAsk is one enqueued question and its waiter.
type queuedAsk struct {
	ctx       context.Context
	sessionID string
	question  Question
	result    chan outcome
}

// Service is the embedded-mode broker: questions are placed on a FIFO queue
// and a single in-flight worker drains them one at a time through the
// registered handler.
type Service struct {
	mu       sync.Mutex
	handler  Handler
	queue    []*queuedAsk
	draining bool

	// notify observes queue-length changes so a UI can render pending counts.
	notify func(n int)
}

// NewService creates an embedded ask service with no handler registered.
func NewService() *Service {
	return &Service{}
}

// SetHandler registers the answer handler.
func (s *Service) SetHandler(h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = h
}

// ClearHandler removes the handler.
func (s *Service) ClearHandler() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = nil
}

// SetQueueNotifier registers a callback invoked with the queue length on
// every change.
func (s *Service) SetQueueNotifier(fn func(n int)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notify = fn
}

// QueueLength returns the number of questions waiting or in flight.
func (s *Service) QueueLength() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Ask enqueues a question and blocks until it is answered or ctx is done.
// Asking with no handler registered is a programmer error: embedded mode is
// only reachable from interactive contexts that install one at startup.
func (s *Service) Ask(ctx context.Context, sessionID string, question Question) (string, error) {
	s.mu.Lock()
	if s.handler == nil {
		s.mu.Unlock()
		panic("ask: no handler registered")
	}

	q := &queuedAsk{
		ctx:       ctx,
		sessionID: sessionID,
		question:  question,
		result:    make(chan outcome, 1),
	}
	s.queue = append(s.queue, q)
	notify, n := s.notify, len(s.queue)
	start := !s.draining
	if start {
		s.draining = true
	}
	s.mu.Unlock()

	if notify != nil {
		notify(n)
	}
	if start {
		go s.drain()
	}

	select {
	case out := <-q.result:
		return out.answer, out.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// drain processes the queue one question at a time until it is empty.
func (s *Service) drain() {
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.draining = false
			s.mu.Unlock()
			return
		}
		q := s.queue[0]
		handler := s.handler
		s.mu.Unlock()

		answer := s.invoke(handler, q)

		s.mu.Lock()
		s.queue = s.queue[1:]
		notify, n := s.notify, len(s.queue)
		s.mu.Unlock()

		q.result <- outcome{answer: answer}
		if notify != nil {
			notify(n)
		}
	}
}

// invoke runs the handler for one question. Handler errors resolve to an
// empty answer rather than a rejection so a UI glitch never deadlocks the
// caller.
func (s *Service) invoke(handler Handler, q *queuedAsk) string {
	if handler == nil {
		return ""
	}
	answers, err := handler(q.ctx, q.sessionID, q.question)
	if err != nil {
		logging.Warn().Err(err).Msg("ask handler failed; resolving with empty answer")
		return ""
	}
	return joinAnswers(answers)
}
