// Package config defines the lorekeep configuration file format and its
// loader. Values come from YAML with environment overrides; credential
// fields may reference environment variables as ${VAR}.
package config

// Config is the root configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server,omitempty"`
	Providers ProvidersConfig `yaml:"providers,omitempty"`
	WebSearch WebSearchConfig `yaml:"webSearch,omitempty"`
	Retrieval RetrievalConfig `yaml:"retrieval,omitempty"`
	Agent     AgentConfig     `yaml:"agent,omitempty"`
	Store     StoreConfig     `yaml:"store,omitempty"`
	Logging   LoggingConfig   `yaml:"logging,omitempty"`
}

// ServerConfig controls the HTTP/WebSocket gateway.
type ServerConfig struct {
	Host string `yaml:"host,omitempty"`
	Port int    `yaml:"port,omitempty"`
}

// ProvidersConfig names the model endpoints.
type ProvidersConfig struct {
	Completion ProviderConfig `yaml:"completion,omitempty"`
	Embedding  ProviderConfig `yaml:"embedding,omitempty"`
	Rerank     RerankConfig   `yaml:"rerank,omitempty"`
}

// ProviderConfig is one OpenAI-compatible endpoint.
type ProviderConfig struct {
	BaseURL string `yaml:"baseUrl,omitempty"`
	APIKey  string `yaml:"apiKey,omitempty"`
	Model   string `yaml:"model,omitempty"`
}

// RerankConfig configures the optional cross-encoder. An empty BaseURL
// disables reranking.
type RerankConfig struct {
	BaseURL string `yaml:"baseUrl,omitempty"`
	APIKey  string `yaml:"apiKey,omitempty"`
	Model   string `yaml:"model,omitempty"`
	TopN    int    `yaml:"topN,omitempty"`
}

// WebSearchConfig configures the web search provider. An empty BaseURL
// disables the web tools.
type WebSearchConfig struct {
	BaseURL string `yaml:"baseUrl,omitempty"`
	APIKey  string `yaml:"apiKey,omitempty"`
}

// RetrievalConfig tunes document retrieval.
type RetrievalConfig struct {
	TopK int   `yaml:"topK,omitempty"`
	HyDE *bool `yaml:"hyde,omitempty"` // nil means enabled
}

// AgentConfig tunes the turn orchestrator.
type AgentConfig struct {
	MaxContextMessages int             `yaml:"maxContextMessages,omitempty"`
	TurnTimeoutSeconds int             `yaml:"turnTimeoutSeconds,omitempty"` // 0 disables the deadline
	Features           map[string]bool `yaml:"features,omitempty"`
}

// StoreConfig locates the SQLite database.
type StoreConfig struct {
	Path string `yaml:"path,omitempty"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level string `yaml:"level,omitempty"` // "debug" | "info" | "warn" | "error"
}

// HyDEEnabled resolves the tri-state hyde flag.
func (r RetrievalConfig) HyDEEnabled() bool {
	return r.HyDE == nil || *r.HyDE
}
