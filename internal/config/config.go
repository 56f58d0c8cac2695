// Package config handles VitaRoute configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pragasv/sola-labs-demo/internal/email"
)

// DefaultSearchPaths returns the config file search order used when no
// explicit path is given: ./config.yaml, ~/.config/vitaroute/config.yaml,
// /etc/vitaroute/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"config.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "vitaroute", "config.yaml"))
	}

	return append(paths, "/etc/vitaroute/config.yaml")
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise the first existing entry of DefaultSearchPaths is returned.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all VitaRoute configuration.
type Config struct {
	Listen     ListenConfig     `yaml:"listen"`
	LogLevel   string           `yaml:"log_level"`
	LogFormat  string           `yaml:"log_format"`
	DataDir    string           `yaml:"data_dir"`
	CORS       CORSConfig       `yaml:"cors"`
	OpenAI     OpenAIConfig     `yaml:"openai"`
	Anthropic  AnthropicConfig  `yaml:"anthropic"`
	Ollama     OllamaConfig     `yaml:"ollama"`
	Models     ModelsConfig     `yaml:"models"`
	Embeddings EmbeddingsConfig `yaml:"embeddings"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Memory     MemoryConfig     `yaml:"memory"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Email      email.Config     `yaml:"email"`
	APICall    APICallConfig    `yaml:"api_call"`
}

// ListenConfig defines the API server settings.
type ListenConfig struct {
	Address string `yaml:"address"`
	Port    int    `yaml:"port"`
}

// CORSConfig lists browser origins allowed to call the API.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// OpenAIConfig covers OpenAI and any endpoint speaking the same chat
// completions protocol (Azure OpenAI v1, vLLM, LiteLLM).
type OpenAIConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	// AuthHeader names the header carrying the key. Azure uses "api-key";
	// empty means a bearer Authorization header.
	AuthHeader string `yaml:"auth_header"`
}

// Configured reports whether an API key is present.
func (c OpenAIConfig) Configured() bool { return c.APIKey != "" }

// AnthropicConfig defines Anthropic API settings.
type AnthropicConfig struct {
	APIKey string `yaml:"api_key"`
}

// OllamaConfig points at a local Ollama server.
type OllamaConfig struct {
	URL string `yaml:"url"`
}

// ModelsConfig names the model used at each stage of a run and which
// provider serves each model.
type ModelsConfig struct {
	// Router classifies requests and extracts structured results.
	Router string `yaml:"router"`
	// Tools selects and parameterises tool calls.
	Tools string `yaml:"tools"`
	// Synthesis writes the final answer and its summary.
	Synthesis string `yaml:"synthesis"`
	// Creative produces persona reactions.
	Creative string `yaml:"creative"`
	// DefaultProvider serves any model not listed in Providers.
	DefaultProvider string `yaml:"default_provider"`
	// Providers maps a model name to "openai", "anthropic" or "ollama".
	Providers map[string]string `yaml:"providers"`
}

// EmbeddingsConfig selects the query embedding service for the local
// passage index.
type EmbeddingsConfig struct {
	// Provider is "ollama", "genai" or empty to disable.
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	URL      string `yaml:"url"`
	APIKey   string `yaml:"api_key"`
	TaskType string `yaml:"task_type"`
}

// RetrievalConfig selects the passage search backend.
type RetrievalConfig struct {
	// Backend is "sqlite", "azure" or "none".
	Backend    string            `yaml:"backend"`
	TopK       int               `yaml:"top_k"`
	SQLitePath string            `yaml:"sqlite_path"`
	Azure      AzureSearchConfig `yaml:"azure"`
}

// AzureSearchConfig holds Azure AI Search connection settings.
type AzureSearchConfig struct {
	Endpoint    string `yaml:"endpoint"`
	Index       string `yaml:"index"`
	APIKey      string `yaml:"api_key"`
	APIVersion  string `yaml:"api_version"`
	VectorField string `yaml:"vector_field"`
}

// MemoryConfig defines where conversation memory lives.
type MemoryConfig struct {
	// Backend is "file", "sqlite" or "memory".
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
	Recent  int    `yaml:"recent"`
	// ClearOnRequest empties memory at the start of every top-level
	// request. Defaults to true.
	ClearOnRequest *bool `yaml:"clear_on_request"`
}

// ShouldClear resolves the ClearOnRequest default.
func (m MemoryConfig) ShouldClear() bool {
	return m.ClearOnRequest == nil || *m.ClearOnRequest
}

// MetricsConfig defines where per-step telemetry rows are written.
// Either sink may be empty to disable it.
type MetricsConfig struct {
	CSVPath    string `yaml:"csv_path"`
	SQLitePath string `yaml:"sqlite_path"`
}

// APICallConfig bounds the call_API tool.
type APICallConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

// Load reads configuration from a YAML file, expanding ${VAR} references
// from the environment, then applies defaults and validates.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	expanded := os.ExpandEnv(string(data))

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a configuration suitable for local use with no file.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Listen.Port == 0 {
		c.Listen.Port = 8080
	}
	if c.DataDir == "" {
		c.DataDir = "./data"
	}
	if len(c.CORS.AllowedOrigins) == 0 {
		c.CORS.AllowedOrigins = []string{"http://localhost:5173", "http://localhost:3000"}
	}
	if c.OpenAI.BaseURL == "" {
		c.OpenAI.BaseURL = "https://api.openai.com/v1"
	}
	if c.Ollama.URL == "" {
		c.Ollama.URL = "http://localhost:11434"
	}

	if c.Models.Router == "" {
		c.Models.Router = "gpt-4o-mini"
	}
	if c.Models.Tools == "" {
		c.Models.Tools = "gpt-4"
	}
	if c.Models.Synthesis == "" {
		c.Models.Synthesis = c.Models.Router
	}
	if c.Models.Creative == "" {
		c.Models.Creative = c.Models.Router
	}
	if c.Models.DefaultProvider == "" {
		c.Models.DefaultProvider = "openai"
	}

	if c.Embeddings.Provider == "ollama" {
		if c.Embeddings.URL == "" {
			c.Embeddings.URL = c.Ollama.URL
		}
		if c.Embeddings.Model == "" {
			c.Embeddings.Model = "nomic-embed-text"
		}
	}

	if c.Retrieval.Backend == "" {
		c.Retrieval.Backend = "sqlite"
	}
	if c.Retrieval.TopK == 0 {
		c.Retrieval.TopK = 3
	}
	if c.Retrieval.SQLitePath == "" {
		c.Retrieval.SQLitePath = filepath.Join(c.DataDir, "passages.db")
	}
	if c.Retrieval.Azure.APIVersion == "" {
		c.Retrieval.Azure.APIVersion = "2024-07-01"
	}
	if c.Retrieval.Azure.VectorField == "" {
		c.Retrieval.Azure.VectorField = "embedding"
	}

	if c.Memory.Backend == "" {
		c.Memory.Backend = "file"
	}
	if c.Memory.Path == "" {
		switch c.Memory.Backend {
		case "sqlite":
			c.Memory.Path = filepath.Join(c.DataDir, "memory.db")
		default:
			c.Memory.Path = filepath.Join(c.DataDir, "memory.json")
		}
	}
	if c.Memory.Recent == 0 {
		c.Memory.Recent = 5
	}

	if c.Metrics.CSVPath == "" {
		c.Metrics.CSVPath = filepath.Join(c.DataDir, "metrics.csv")
	}

	if c.APICall.Timeout == 0 {
		c.APICall.Timeout = 30 * time.Second
	}

	c.Email.ApplyDefaults()
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.Listen.Port < 1 || c.Listen.Port > 65535 {
		return fmt.Errorf("listen.port %d out of range (1-65535)", c.Listen.Port)
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "text", "json":
	default:
		return fmt.Errorf("log_format %q must be text or json", c.LogFormat)
	}

	providers := map[string]bool{"openai": true, "anthropic": true, "ollama": true}
	if !providers[c.Models.DefaultProvider] {
		return fmt.Errorf("models.default_provider %q is not one of openai, anthropic, ollama", c.Models.DefaultProvider)
	}
	for model, p := range c.Models.Providers {
		if !providers[p] {
			return fmt.Errorf("models.providers[%s] = %q is not one of openai, anthropic, ollama", model, p)
		}
	}

	switch c.Embeddings.Provider {
	case "", "ollama":
	case "genai":
		if c.Embeddings.APIKey == "" {
			return fmt.Errorf("embeddings.api_key is required for the genai provider")
		}
	default:
		return fmt.Errorf("embeddings.provider %q must be ollama or genai", c.Embeddings.Provider)
	}

	switch c.Retrieval.Backend {
	case "sqlite", "none":
	case "azure":
		if c.Retrieval.Azure.Endpoint == "" || c.Retrieval.Azure.Index == "" {
			return fmt.Errorf("retrieval.azure.endpoint and retrieval.azure.index are required for the azure backend")
		}
	default:
		return fmt.Errorf("retrieval.backend %q must be sqlite, azure or none", c.Retrieval.Backend)
	}
	if c.Retrieval.TopK < 1 {
		return fmt.Errorf("retrieval.top_k must be positive")
	}

	switch c.Memory.Backend {
	case "file", "sqlite", "memory":
	default:
		return fmt.Errorf("memory.backend %q must be file, sqlite or memory", c.Memory.Backend)
	}
	if c.Memory.Recent < 1 {
		return fmt.Errorf("memory.recent must be positive")
	}

	return c.Email.Validate()
}

// ProviderFor returns the provider that serves model.
func (c *Config) ProviderFor(model string) string {
	if p, ok := c.Models.Providers[model]; ok {
		return p
	}
	return c.Models.DefaultProvider
}
