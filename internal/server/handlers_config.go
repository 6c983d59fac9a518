package server

import (
	"net/http"

	"github.com/parley-ai/parley/pkg/types"
)

// getConfig returns the effective configuration with provider secrets
// redacted.
func (s *Server) getConfig(w http.ResponseWriter, r *http.Request) {
	cfg := *s.appConfig
	cfg.Provider = make(map[string]types.ProviderConfig, len(s.appConfig.Provider))
	for name, p := range s.appConfig.Provider {
		if p.APIKey != "" {
			p.APIKey = "***"
		}
		cfg.Provider[name] = p
	}
	writeJSON(w, http.StatusOK, cfg)
}

// providerView describes one configured provider and its models.
type providerView struct {
	ID     string           `json:"id"`
	Name   string           `json:"name"`
	Models []map[string]any `json:"models"`
}

func (s *Server) listProviders(w http.ResponseWriter, r *http.Request) {
	views := []providerView{}
	for _, p := range s.providers.List() {
		view := providerView{ID: p.ID(), Name: p.Name()}
		for _, m := range p.Models() {
			view.Models = append(view.Models, map[string]any{
				"id":              m.ID,
				"name":            m.Name,
				"contextLength":   m.ContextLength,
				"maxOutputTokens": m.MaxOutputTokens,
			})
		}
		views = append(views, view)
	}
	writeJSON(w, http.StatusOK, views)
}
