package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/parley-ai/parley/internal/ask"
)

type askQuestionRequest struct {
	Prompt      string       `json:"prompt"`
	Header      string       `json:"header,omitempty"`
	MultiSelect bool         `json:"multiSelect,omitempty"`
	Options     []ask.Option `json:"options,omitempty"`
}

// askQuestion registers an interactive question and suspends the request
// until a remote caller settles it. A rejection or timeout resolves to an
// empty answer.
func (s *Server) askQuestion(w http.ResponseWriter, r *http.Request) {
	var req askQuestionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())
		return
	}
	if req.Prompt == "" {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "prompt is required")
		return
	}

	answer, err := s.sessions.Ask(r.Context(), chi.URLParam(r, "sessionID"), ask.Question{
		Prompt:      req.Prompt,
		Header:      req.Header,
		MultiSelect: req.MultiSelect,
		Options:     req.Options,
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			// Asker gone; nothing left to answer.
			return
		}
		writeError(w, http.StatusServiceUnavailable, ErrCodeInternalError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"answer": answer})
}

type resolveAskRequest struct {
	Answers []string `json:"answers"`
}

func (s *Server) resolveAsk(w http.ResponseWriter, r *http.Request) {
	var req resolveAskRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())
		return
	}

	questionID := chi.URLParam(r, "questionID")
	if !s.broker.Resolve(questionID, req.Answers) {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "question not found or already settled")
		return
	}
	writeSuccess(w)
}

type rejectAskRequest struct {
	Reason string `json:"reason,omitempty"`
}

func (s *Server) rejectAsk(w http.ResponseWriter, r *http.Request) {
	var req rejectAskRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())
		return
	}
	if req.Reason == "" {
		req.Reason = "rejected by user"
	}

	questionID := chi.URLParam(r, "questionID")
	if !s.broker.Reject(questionID, errors.New(req.Reason)) {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "question not found or already settled")
		return
	}
	writeSuccess(w)
}

// pendingAskView is the client-facing shape of a pending question.
type pendingAskView struct {
	ID        string `json:"id"`
	SessionID string `json:"sessionId"`
	Prompt    string `json:"prompt"`
	CreatedAt int64  `json:"createdAt"`
}

func (s *Server) listPendingAsks(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	views := []pendingAskView{}
	for _, id := range s.broker.PendingForSession(sessionID) {
		if p, ok := s.broker.Get(id); ok {
			views = append(views, pendingAskView{
				ID:        p.ID,
				SessionID: p.SessionID,
				Prompt:    p.Question.Prompt,
				CreatedAt: p.CreatedAt.UnixMilli(),
			})
		}
	}
	writeJSON(w, http.StatusOK, views)
}
