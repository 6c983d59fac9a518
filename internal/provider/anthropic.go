package provider

import (
	"context"
	"fmt"
	"os"

	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino/components/model"
)

const defaultAnthropicModel = "claude-sonnet-4-20250514"

// AnthropicProvider serves Anthropic Claude models.
type AnthropicProvider struct {
	chatModel model.ToolCallingChatModel
	models    []Model
	config    *AnthropicConfig
}

// AnthropicConfig configures the Anthropic provider.
type AnthropicConfig struct {
	// ID overrides the provider identifier; defaults to "anthropic".
	ID        string
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
}

// NewAnthropicProvider creates an Anthropic provider backed by the Claude
// chat model. The API key falls back to ANTHROPIC_API_KEY.
func NewAnthropicProvider(ctx context.Context, config *AnthropicConfig) (*AnthropicProvider, error) {
	apiKey := config.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY not set")
	}

	modelID := config.Model
	if modelID == "" {
		modelID = defaultAnthropicModel
	}

	cfg := &claude.Config{
		APIKey:    apiKey,
		Model:     modelID,
		MaxTokens: config.MaxTokens,
	}
	if config.BaseURL != "" {
		cfg.BaseURL = &config.BaseURL
	}

	chatModel, err := claude.NewChatModel(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Claude model: %w", err)
	}

	return &AnthropicProvider{
		chatModel: chatModel,
		models:    anthropicModels(),
		config:    config,
	}, nil
}

// ID returns the provider identifier.
func (p *AnthropicProvider) ID() string {
	if p.config.ID != "" {
		return p.config.ID
	}
	return "anthropic"
}

// Name returns the human-readable provider name.
func (p *AnthropicProvider) Name() string { return "Anthropic" }

// Models returns the list of available models.
func (p *AnthropicProvider) Models() []Model {
	return p.models
}

// ChatModel returns the underlying Eino chat model.
func (p *AnthropicProvider) ChatModel() model.ToolCallingChatModel {
	return p.chatModel
}

// CreateCompletion opens a streaming completion, binding tools first when the
// request carries any.
func (p *AnthropicProvider) CreateCompletion(ctx context.Context, req *CompletionRequest) (*CompletionStream, error) {
	chatModel := p.chatModel
	if len(req.Tools) > 0 {
		var err error
		chatModel, err = chatModel.WithTools(req.Tools)
		if err != nil {
			return nil, fmt.Errorf("failed to bind tools: %w", err)
		}
	}

	stream, err := chatModel.Stream(ctx, req.Messages,
		model.WithMaxTokens(req.MaxTokens),
		model.WithTemperature(float32(req.Temperature)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create stream: %w", err)
	}

	return NewCompletionStream(stream), nil
}

func anthropicModels() []Model {
	return []Model{
		{
			ID:              "claude-sonnet-4-20250514",
			Name:            "Claude Sonnet 4",
			ProviderID:      "anthropic",
			ContextLength:   200000,
			MaxOutputTokens: 64000,
			SupportsTools:   true,
		},
		{
			ID:                "claude-opus-4-20250514",
			Name:              "Claude Opus 4",
			ProviderID:        "anthropic",
			ContextLength:     200000,
			MaxOutputTokens:   32000,
			SupportsTools:     true,
			SupportsReasoning: true,
		},
		{
			ID:              "claude-3-5-sonnet-20241022",
			Name:            "Claude 3.5 Sonnet",
			ProviderID:      "anthropic",
			ContextLength:   200000,
			MaxOutputTokens: 8192,
			SupportsTools:   true,
		},
		{
			ID:              "claude-3-5-haiku-20241022",
			Name:            "Claude 3.5 Haiku",
			ProviderID:      "anthropic",
			ContextLength:   200000,
			MaxOutputTokens: 8192,
			SupportsTools:   true,
		},
	}
}
