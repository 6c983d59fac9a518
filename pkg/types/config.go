package types

// Config is the merged server configuration.
type Config struct {
	// Model is the default model in "provider/model" form.
	Model string `json:"model,omitempty" yaml:"model,omitempty"`

	// DataDir is the directory holding the SQLite database.
	DataDir string `json:"dataDir,omitempty" yaml:"dataDir,omitempty"`

	// LogLevel is one of DEBUG, INFO, WARN, ERROR, FATAL.
	LogLevel string `json:"logLevel,omitempty" yaml:"logLevel,omitempty"`

	Provider map[string]ProviderConfig `json:"provider,omitempty" yaml:"provider,omitempty"`

	Server    ServerConfig    `json:"server,omitempty" yaml:"server,omitempty"`
	RateLimit RateLimitConfig `json:"rateLimit,omitempty" yaml:"rateLimit,omitempty"`
}

// ProviderConfig configures a single LLM provider.
type ProviderConfig struct {
	APIKey  string `json:"apiKey,omitempty" yaml:"apiKey,omitempty"`
	BaseURL string `json:"baseURL,omitempty" yaml:"baseURL,omitempty"`
	Model   string `json:"model,omitempty" yaml:"model,omitempty"`

	// Disabled removes the provider from the registry without deleting its
	// configuration.
	Disabled bool `json:"disabled,omitempty" yaml:"disabled,omitempty"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Port       int  `json:"port,omitempty" yaml:"port,omitempty"`
	EnableCORS bool `json:"enableCORS,omitempty" yaml:"enableCORS,omitempty"`
}

// RateLimitConfig configures the per-identity token buckets.
type RateLimitConfig struct {
	// Requests per window for the default (mutating) class.
	MaxRequests int `json:"maxRequests,omitempty" yaml:"maxRequests,omitempty"`
	// Window length in milliseconds.
	WindowMs int64 `json:"windowMs,omitempty" yaml:"windowMs,omitempty"`
	// Requests per window for destructive operations.
	StrictMaxRequests int `json:"strictMaxRequests,omitempty" yaml:"strictMaxRequests,omitempty"`
	// Concurrent streaming subscriptions allowed per identity.
	MaxStreams int `json:"maxStreams,omitempty" yaml:"maxStreams,omitempty"`
}
