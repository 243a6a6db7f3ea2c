package config

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR_NAME} patterns in strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvVars replaces ${VAR} patterns with environment variable
// values. Unset variables are left unchanged.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := match[2 : len(match)-1]
		if val, ok := os.LookupEnv(name); ok {
			return val
		}
		return match
	})
}

// expandSensitiveFields processes environment variable references in
// credential fields so API keys can be stored as ${ENV_VAR}.
func expandSensitiveFields(cfg *Config) {
	cfg.Providers.Completion.APIKey = expandEnvVars(cfg.Providers.Completion.APIKey)
	cfg.Providers.Embedding.APIKey = expandEnvVars(cfg.Providers.Embedding.APIKey)
	cfg.Providers.Rerank.APIKey = expandEnvVars(cfg.Providers.Rerank.APIKey)
	cfg.WebSearch.APIKey = expandEnvVars(cfg.WebSearch.APIKey)
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Server: ServerConfig{Host: "127.0.0.1", Port: 8790},
		Retrieval: RetrievalConfig{
			TopK: 5,
		},
		Agent: AgentConfig{
			MaxContextMessages: 50,
			Features: map[string]bool{
				"strategy.fast":     true,
				"strategy.thorough": true,
				"strategy.auto":     true,
			},
		},
		Store:   StoreConfig{Path: "lorekeep.db"},
		Logging: LoggingConfig{Level: "info"},
	}
}

// applyDefaults fills zero values left after unmarshalling.
func applyDefaults(cfg *Config) {
	d := Defaults()
	if cfg.Server.Host == "" {
		cfg.Server.Host = d.Server.Host
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = d.Server.Port
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = d.Retrieval.TopK
	}
	if cfg.Agent.MaxContextMessages == 0 {
		cfg.Agent.MaxContextMessages = d.Agent.MaxContextMessages
	}
	if cfg.Agent.Features == nil {
		cfg.Agent.Features = d.Agent.Features
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = d.Store.Path
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = d.Logging.Level
	}
}

// Load reads the config file and returns a merged Config. A missing
// file produces defaults only.
func Load(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}

	applyDefaults(&cfg)
	expandSensitiveFields(&cfg)
	return cfg, nil
}
