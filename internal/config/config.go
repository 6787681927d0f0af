package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/artemis/ai-modernizer/internal/observability"
)

// ProviderConfig holds credentials and model identifiers for one model
// provider family.
type ProviderConfig struct {
	Key   string `json:"key,omitempty"`
	Model string `json:"model,omitempty"`
}

// Config holds all application configuration.
type Config struct {
	// Server configuration
	HTTPAddr string `json:"http_addr"`

	// Worker pool configuration
	WorkerPoolSize int `json:"worker_pool_size"`

	// Retry configuration
	MaxRetryAttempts int `json:"max_retry_attempts"`

	// Sandbox configuration
	SandboxTimeoutSeconds int    `json:"sandbox_timeout_seconds"`
	SandboxCleanup        bool   `json:"sandbox_cleanup"`
	DockerHost            string `json:"docker_host"`

	// Registry probe configuration
	RegistryProbeConcurrency int `json:"registry_probe_concurrency"`

	// Model provider configuration
	ModelProvider string                    `json:"model_provider"`
	Providers     map[string]ProviderConfig `json:"providers"`

	// Code hosting
	CodeHostToken string `json:"code_host_token,omitempty"`

	// Logging configuration
	LogLevel string `json:"log_level"`

	// Data directory for state
	DataDir string `json:"data_dir"`

	mu sync.RWMutex
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		HTTPAddr:                 ":8080",
		WorkerPoolSize:           4,
		MaxRetryAttempts:         3,
		SandboxTimeoutSeconds:    300,
		SandboxCleanup:           true,
		DockerHost:               "",
		RegistryProbeConcurrency: 8,
		ModelProvider:            "mock",
		Providers:                make(map[string]ProviderConfig),
		LogLevel:                 "info",
		DataDir:                  "", // not read by any component
	}
}

// LoadConfig loads configuration from a file or returns default config.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		homeDir, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(homeDir, ".ai-modernizer", "config.json")
		}
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// LoadConfigFromEnv overlays recognized environment variables onto cfg.
func LoadConfigFromEnv(cfg *Config) {
	cfg.mu.Lock()
	defer cfg.mu.Unlock()

	if v := os.Getenv("MODEL_PROVIDER"); v != "" {
		cfg.ModelProvider = v
	}
	if v := os.Getenv("CODE_HOST_TOKEN"); v != "" {
		cfg.CodeHostToken = v
	}
	if v := os.Getenv("SANDBOX_CLEANUP"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.SandboxCleanup = b
		}
	}
	if v := os.Getenv("SANDBOX_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.SandboxTimeoutSeconds = n
		}
	}
	if v := os.Getenv("MAX_RETRY_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxRetryAttempts = n
		}
	}
	if v := os.Getenv("WORKER_POOL_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.WorkerPoolSize = n
		}
	}

	if cfg.Providers == nil {
		cfg.Providers = make(map[string]ProviderConfig)
	}
	for _, family := range []string{"REASONING", "EFFICIENT"} {
		key := os.Getenv("PROVIDER_" + family + "_KEY")
		model := os.Getenv("PROVIDER_" + family + "_MODEL")
		if key == "" && model == "" {
			continue
		}
		entry := cfg.Providers[family]
		if key != "" {
			entry.Key = key
		}
		if model != "" {
			entry.Model = model
		}
		cfg.Providers[family] = entry
	}
}

// SandboxTimeout returns the sandbox timeout as a time.Duration.
func (c *Config) SandboxTimeout() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.SandboxTimeoutSeconds <= 0 {
		return 300 * time.Second
	}
	return time.Duration(c.SandboxTimeoutSeconds) * time.Second
}

// Provider returns the provider config for name, and whether it was found.
func (c *Config) Provider(name string) (ProviderConfig, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.Providers[name]
	return p, ok
}

// Save saves the configuration to a file using a temp-file-then-rename swap.
func (c *Config) Save(path string) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if path == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, ".ai-modernizer", "config.json")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename config file: %w", err)
	}

	return nil
}

func applyDefaults(cfg *Config) {
	defaults := DefaultConfig()

	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = defaults.HTTPAddr
	}
	if cfg.WorkerPoolSize == 0 {
		cfg.WorkerPoolSize = defaults.WorkerPoolSize
	}
	if cfg.MaxRetryAttempts == 0 {
		cfg.MaxRetryAttempts = defaults.MaxRetryAttempts
	}
	if cfg.SandboxTimeoutSeconds == 0 {
		cfg.SandboxTimeoutSeconds = defaults.SandboxTimeoutSeconds
	}
	if cfg.RegistryProbeConcurrency == 0 {
		cfg.RegistryProbeConcurrency = defaults.RegistryProbeConcurrency
	}
	if cfg.ModelProvider == "" {
		cfg.ModelProvider = defaults.ModelProvider
	}
	if cfg.Providers == nil {
		cfg.Providers = make(map[string]ProviderConfig)
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = defaults.LogLevel
	}
}

// Redact returns a redacted copy of the config for logging.
func (c *Config) Redact() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	providers := make(map[string]ProviderConfig, len(c.Providers))
	for name, p := range c.Providers {
		redacted := p
		if redacted.Key != "" {
			redacted.Key = "***REDACTED***"
		}
		providers[name] = redacted
	}

	codeHostToken := ""
	if c.CodeHostToken != "" {
		codeHostToken = "***REDACTED***"
	}

	return map[string]interface{}{
		"http_addr":                  c.HTTPAddr,
		"worker_pool_size":           c.WorkerPoolSize,
		"max_retry_attempts":         c.MaxRetryAttempts,
		"sandbox_timeout_seconds":    c.SandboxTimeoutSeconds,
		"sandbox_cleanup":            c.SandboxCleanup,
		"docker_host":                observability.RedactString(c.DockerHost),
		"registry_probe_concurrency": c.RegistryProbeConcurrency,
		"model_provider":             c.ModelProvider,
		"providers":                  providers,
		"code_host_token":            codeHostToken,
		"log_level":                  c.LogLevel,
	}
}

// HasCodeHostToken reports whether a code-host credential is configured.
func (c *Config) HasCodeHostToken() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.CodeHostToken != ""
}
