package provider

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/parley-ai/parley/internal/logging"
	"github.com/parley-ai/parley/pkg/types"
)

// Registry holds all configured providers.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
	config    *types.Config
}

// NewRegistry creates an empty registry.
func NewRegistry(config *types.Config) *Registry {
	return &Registry{
		providers: make(map[string]Provider),
		config:    config,
	}
}

// Register adds a provider, replacing any existing one with the same ID.
func (r *Registry) Register(provider Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[provider.ID()] = provider
}

// Get retrieves a provider by ID.
func (r *Registry) Get(providerID string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	provider, ok := r.providers[providerID]
	if !ok {
		return nil, fmt.Errorf("provider not found: %s", providerID)
	}
	return provider, nil
}

// List returns all registered providers.
func (r *Registry) List() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	providers := make([]Provider, 0, len(r.providers))
	for _, p := range r.providers {
		providers = append(providers, p)
	}
	return providers
}

// GetModel retrieves one model from one provider.
func (r *Registry) GetModel(providerID, modelID string) (*Model, error) {
	provider, err := r.Get(providerID)
	if err != nil {
		return nil, err
	}

	for _, m := range provider.Models() {
		if m.ID == modelID {
			return &m, nil
		}
	}

	return nil, fmt.Errorf("model not found: %s/%s", providerID, modelID)
}

// AllModels returns every model across providers, best first.
func (r *Registry) AllModels() []Model {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var models []Model
	for _, p := range r.providers {
		models = append(models, p.Models()...)
	}

	sort.Slice(models, func(i, j int) bool {
		return modelPriority(models[i].ID) > modelPriority(models[j].ID)
	})

	return models
}

// DefaultModel resolves the configured model, falling back to Claude Sonnet
// and then to the best available model.
func (r *Registry) DefaultModel() (*Model, error) {
	if r.config != nil && r.config.Model != "" {
		providerID, modelID := ParseModelString(r.config.Model)
		return r.GetModel(providerID, modelID)
	}

	m, err := r.GetModel("anthropic", defaultAnthropicModel)
	if err == nil {
		return m, nil
	}

	models := r.AllModels()
	if len(models) == 0 {
		return nil, fmt.Errorf("no models available")
	}
	return &models[0], nil
}

// ParseModelString splits "provider/model". A bare model id yields an empty
// provider.
func ParseModelString(s string) (providerID, modelID string) {
	parts := strings.SplitN(s, "/", 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return "", s
}

func modelPriority(modelID string) int {
	switch {
	case strings.Contains(modelID, "gpt-5"):
		return 100
	case strings.Contains(modelID, "claude-sonnet-4"):
		return 90
	case strings.Contains(modelID, "claude-opus"):
		return 85
	case strings.Contains(modelID, "gpt-4o"):
		return 80
	case strings.Contains(modelID, "claude-3-5"):
		return 75
	default:
		return 50
	}
}

// InitializeProviders builds a registry from config. A provider with no API
// key, a failed constructor, or the Disabled flag is skipped.
func InitializeProviders(ctx context.Context, config *types.Config) (*Registry, error) {
	registry := NewRegistry(config)

	if cfg, ok := config.Provider["anthropic"]; ok && cfg.APIKey != "" && !cfg.Disabled {
		provider, err := NewAnthropicProvider(ctx, &AnthropicConfig{
			APIKey:    cfg.APIKey,
			BaseURL:   cfg.BaseURL,
			Model:     cfg.Model,
			MaxTokens: 8192,
		})
		if err != nil {
			logging.Warn().Err(err).Msg("skipping anthropic provider")
		} else {
			registry.Register(provider)
		}
	}

	if cfg, ok := config.Provider["openai"]; ok && cfg.APIKey != "" && !cfg.Disabled {
		provider, err := NewOpenAIProvider(ctx, &OpenAIConfig{
			APIKey:    cfg.APIKey,
			BaseURL:   cfg.BaseURL,
			Model:     cfg.Model,
			MaxTokens: 4096,
		})
		if err != nil {
			logging.Warn().Err(err).Msg("skipping openai provider")
		} else {
			registry.Register(provider)
		}
	}

	return registry, nil
}
