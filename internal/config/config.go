// Package config loads and watches the server configuration.
//
// Configuration is read from a JSON, JSONC, or YAML file, with {env:VAR}
// placeholders interpolated and a final layer of environment variable
// overrides applied on top.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/parley-ai/parley/pkg/types"
)

// Default limits applied when the file and environment say nothing.
const (
	DefaultPort              = 4096
	DefaultMaxRequests       = 60
	DefaultWindowMs          = 60_000
	DefaultStrictMaxRequests = 10
	DefaultMaxStreams        = 5
)

var envPattern = regexp.MustCompile(`\{env:([^}]+)\}`)

// Load reads configuration. An empty path searches the default locations;
// a missing file is not an error, the defaults plus environment apply.
func Load(path string) (*types.Config, error) {
	config := defaults()

	if path == "" {
		path = FindConfigFile()
	}
	if path != "" {
		if err := loadFile(path, config); err != nil {
			return nil, fmt.Errorf("loading config %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)
	return config, nil
}

func defaults() *types.Config {
	home, _ := os.UserHomeDir()
	return &types.Config{
		LogLevel: "INFO",
		DataDir:  filepath.Join(home, ".parley"),
		Provider: make(map[string]types.ProviderConfig),
		Server: types.ServerConfig{
			Port: DefaultPort,
		},
		RateLimit: types.RateLimitConfig{
			MaxRequests:       DefaultMaxRequests,
			WindowMs:          DefaultWindowMs,
			StrictMaxRequests: DefaultStrictMaxRequests,
			MaxStreams:        DefaultMaxStreams,
		},
	}
}

// FindConfigFile probes the working directory, then the user config dir.
// It returns the empty string when no config file exists.
func FindConfigFile() string {
	candidates := []string{
		"parley.json",
		"parley.jsonc",
		"parley.yaml",
		"parley.yml",
	}
	if configDir, err := os.UserConfigDir(); err == nil {
		for _, name := range candidates {
			candidates = append(candidates, filepath.Join(configDir, "parley", name))
		}
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// loadFile decodes one config file over the current config, so absent keys
// keep their existing values.
func loadFile(path string, config *types.Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	data = interpolate(data)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, config)
	default:
		// JSONC comments and trailing commas are tolerated.
		return json.Unmarshal(jsonc.ToJSON(data), config)
	}
}

// interpolate expands {env:VAR_NAME} placeholders.
func interpolate(data []byte) []byte {
	return envPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		name := envPattern.FindSubmatch(match)[1]
		return []byte(os.Getenv(string(name)))
	})
}

// applyEnvOverrides layers environment variables on top of the file values.
func applyEnvOverrides(config *types.Config) {
	providerEnv := map[string]string{
		"anthropic": "ANTHROPIC_API_KEY",
		"openai":    "OPENAI_API_KEY",
	}
	for name, envVar := range providerEnv {
		apiKey := os.Getenv(envVar)
		if apiKey == "" {
			continue
		}
		p := config.Provider[name]
		if p.APIKey == "" {
			p.APIKey = apiKey
		}
		config.Provider[name] = p
	}

	if model := os.Getenv("PARLEY_MODEL"); model != "" {
		config.Model = model
	}
	if level := os.Getenv("PARLEY_LOG_LEVEL"); level != "" {
		config.LogLevel = level
	}
	if dataDir := os.Getenv("PARLEY_DATA_DIR"); dataDir != "" {
		config.DataDir = dataDir
	}
	if port := os.Getenv("PARLEY_PORT"); port != "" {
		if n, err := strconv.Atoi(port); err == nil {
			config.Server.Port = n
		}
	}
}
