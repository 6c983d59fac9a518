// Package session orchestrates turn execution: it persists user and
// assistant messages, drives the provider stream, and emits ordered
// lifecycle events.
package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/parley-ai/parley/internal/ask"
	"github.com/parley-ai/parley/internal/event"
	"github.com/parley-ai/parley/internal/provider"
	"github.com/parley-ai/parley/internal/store"
	"github.com/parley-ai/parley/pkg/types"
)

// Service owns session CRUD and turn streaming.
type Service struct {
	store     *store.Store
	providers *provider.Registry
	bus       *event.Bus
	asks      *ask.Service

	// turns tracks in-flight streaming turns by session id so Abort can
	// cancel them.
	mu    sync.Mutex
	turns map[string]context.CancelFunc
}

// NewService creates a session service. asks may be nil when interactive
// questions are not configured.
func NewService(st *store.Store, providers *provider.Registry, bus *event.Bus, asks *ask.Service) *Service {
	return &Service{
		store:     st,
		providers: providers,
		bus:       bus,
		asks:      asks,
		turns:     make(map[string]context.CancelFunc),
	}
}

// Ask suspends the caller on an interactive question raised for a session,
// returning the answer once one arrives.
func (s *Service) Ask(ctx context.Context, sessionID string, question ask.Question) (string, error) {
	if s.asks == nil {
		return "", fmt.Errorf("interactive questions are not configured")
	}
	return s.asks.Ask(ctx, sessionID, question)
}

// Create creates a session for a provider/model pair and announces it on the
// bus.
func (s *Service) Create(ctx context.Context, providerID, modelID string) (*types.Session, error) {
	sess, err := s.store.CreateSession(ctx, providerID, modelID)
	if err != nil {
		return nil, err
	}

	s.bus.Publish(event.Event{
		Type: event.SessionCreated,
		Data: event.SessionCreatedData{Info: sess},
	})

	return sess, nil
}

// Get loads a session with its full message graph.
func (s *Service) Get(ctx context.Context, sessionID string) (*types.Session, error) {
	return s.store.GetSessionByID(ctx, sessionID)
}

// Recent lists sessions most recently updated first.
func (s *Service) Recent(ctx context.Context, limit, offset int) ([]*types.Session, error) {
	return s.store.GetRecentSessions(ctx, limit, offset)
}

// Last returns the most recently updated session.
func (s *Service) Last(ctx context.Context) (*types.Session, error) {
	return s.store.GetLastSession(ctx)
}

// Search finds sessions whose title matches query.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]*types.Session, error) {
	return s.store.SearchSessionsByTitle(ctx, query, limit)
}

// UpdateTitle renames a session and announces the update.
func (s *Service) UpdateTitle(ctx context.Context, sessionID, title string) error {
	if err := s.store.UpdateSessionTitle(ctx, sessionID, title); err != nil {
		return err
	}

	sess, err := s.store.GetSessionByID(ctx, sessionID)
	if err != nil {
		return err
	}

	s.bus.Publish(event.Event{
		Type: event.SessionUpdated,
		Data: event.SessionUpdatedData{Info: sess},
	})
	return nil
}

// Delete aborts any in-flight turn, removes the session and all owned rows,
// and announces the deletion.
func (s *Service) Delete(ctx context.Context, sessionID string) error {
	s.Abort(sessionID)

	if err := s.store.DeleteSession(ctx, sessionID); err != nil {
		return err
	}

	s.bus.Publish(event.Event{
		Type: event.SessionDeleted,
		Data: event.SessionDeletedData{SessionID: sessionID},
	})
	return nil
}

// GetTodos returns the live todo list for a session.
func (s *Service) GetTodos(ctx context.Context, sessionID string) ([]types.Todo, error) {
	return s.store.GetTodos(ctx, sessionID)
}

// ReplaceTodos swaps the session's todo list wholesale and announces it.
func (s *Service) ReplaceTodos(ctx context.Context, sessionID string, todos []types.Todo, nextTodoID int64) error {
	if err := s.store.UpdateTodos(ctx, sessionID, todos, nextTodoID); err != nil {
		return err
	}

	s.bus.Publish(event.Event{
		Type: event.TodosReplaced,
		Data: event.TodosReplacedData{SessionID: sessionID, Todos: todos},
	})
	return nil
}

// Abort cancels the in-flight turn for a session, if any. The turn still
// persists whatever partial output it has buffered.
func (s *Service) Abort(sessionID string) {
	s.mu.Lock()
	cancel, ok := s.turns[sessionID]
	if ok {
		delete(s.turns, sessionID)
	}
	s.mu.Unlock()

	if ok {
		cancel()
	}
}

func (s *Service) registerTurn(sessionID string, cancel context.CancelFunc) {
	s.mu.Lock()
	s.turns[sessionID] = cancel
	s.mu.Unlock()
}

func (s *Service) unregisterTurn(sessionID string) {
	s.mu.Lock()
	delete(s.turns, sessionID)
	s.mu.Unlock()
}

func generateID() string {
	return ulid.Make().String()
}
