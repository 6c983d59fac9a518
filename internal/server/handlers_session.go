package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/parley-ai/parley/internal/provider"
	"github.com/parley-ai/parley/internal/session"
	"github.com/parley-ai/parley/internal/store"
	"github.com/parley-ai/parley/pkg/types"
)

type createSessionRequest struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())
		return
	}
	if req.Provider == "" || req.Model == "" {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "provider and model are required")
		return
	}
	if _, err := s.providers.Get(req.Provider); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())
		return
	}

	sess, err := s.sessions.Create(r.Context(), req.Provider, req.Model)
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Get(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	sessions, err := s.sessions.Recent(r.Context(), limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (s *Server) searchSessions(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "missing query parameter q")
		return
	}

	sessions, err := s.sessions.Search(r.Context(), query, queryInt(r, "limit", 20))
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (s *Server) getLastSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Last(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

type updateSessionRequest struct {
	Title string `json:"title"`
}

func (s *Server) updateSession(w http.ResponseWriter, r *http.Request) {
	var req updateSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())
		return
	}
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "title is required")
		return
	}

	sessionID := chi.URLParam(r, "sessionID")
	if err := s.sessions.UpdateTitle(r.Context(), sessionID, req.Title); err != nil {
		writeStoreError(w, err)
		return
	}
	writeSuccess(w)
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Delete(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		writeStoreError(w, err)
		return
	}
	writeSuccess(w)
}

func (s *Server) abortSession(w http.ResponseWriter, r *http.Request) {
	s.sessions.Abort(chi.URLParam(r, "sessionID"))
	writeSuccess(w)
}

type sendMessageRequest struct {
	Message     string              `json:"message"`
	Model       *types.ModelRef     `json:"model,omitempty"`
	Attachments []string            `json:"attachments,omitempty"`
	Tools       []provider.ToolInfo `json:"tools,omitempty"`
}

// sendMessage runs one streaming turn, relaying each lifecycle event as an
// SSE event named by its type. Client disconnect aborts the turn; partial
// output is still persisted.
func (s *Server) sendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "message is required")
		return
	}

	turn := session.TurnRequest{
		SessionID:   chi.URLParam(r, "sessionID"),
		UserMessage: req.Message,
		Attachments: req.Attachments,
		Tools:       req.Tools,
	}
	if req.Model != nil {
		turn.ProviderID = req.Model.ProviderID
		turn.ModelID = req.Model.ModelID
	}

	sseHeaders(w)
	sse, err := newSSEWriter(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}
	w.WriteHeader(http.StatusOK)
	sse.flusher.Flush()

	for ev := range s.sessions.StreamTurn(r.Context(), turn) {
		if err := sse.writeEvent(string(ev.Type), ev); err != nil {
			// Client gone; the request context cancels the turn.
			return
		}
	}
}

type replaceTodosRequest struct {
	Todos      []types.Todo `json:"todos"`
	NextTodoID int64        `json:"nextTodoId"`
}

func (s *Server) getTodos(w http.ResponseWriter, r *http.Request) {
	todos, err := s.sessions.GetTodos(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, todos)
}

func (s *Server) replaceTodos(w http.ResponseWriter, r *http.Request) {
	var req replaceTodosRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())
		return
	}

	sessionID := chi.URLParam(r, "sessionID")
	if err := s.sessions.ReplaceTodos(r.Context(), sessionID, req.Todos, req.NextTodoID); err != nil {
		writeStoreError(w, err)
		return
	}
	writeSuccess(w)
}

func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, err.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
