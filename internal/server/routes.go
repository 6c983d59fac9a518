package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) setupRoutes() {
	r := s.router

	r.Get("/healthz", s.healthz)

	r.Route("/session", func(r chi.Router) {
		r.Get("/", s.listSessions)
		r.Post("/", rateLimited(s.limiter, s.createSession))
		r.Get("/search", s.searchSessions)
		r.Get("/last", s.getLastSession)

		r.Route("/{sessionID}", func(r chi.Router) {
			r.Get("/", s.getSession)
			r.Patch("/", rateLimited(s.limiter, s.updateSession))
			r.Delete("/", rateLimited(s.strictLimiter, s.deleteSession))

			r.Post("/message", rateLimited(s.limiter, streamLimited(s.streams, s.sendMessage)))
			r.Post("/abort", s.abortSession)

			r.Get("/todo", s.getTodos)
			r.Put("/todo", rateLimited(s.limiter, s.replaceTodos))

			r.Get("/ask", s.listPendingAsks)
			r.Post("/ask", rateLimited(s.limiter, s.askQuestion))
		})
	})

	r.Route("/ask", func(r chi.Router) {
		r.Post("/{questionID}/resolve", rateLimited(s.limiter, s.resolveAsk))
		r.Post("/{questionID}/reject", rateLimited(s.limiter, s.rejectAsk))
	})

	r.Get("/config", s.getConfig)
	r.Get("/provider", s.listProviders)

	// Global event feed (SSE).
	r.Get("/event", streamLimited(s.streams, s.globalEvents))
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
