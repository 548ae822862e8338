package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Embedding modes.
const (
	// EmbeddingModeHash derives a deterministic pseudo-random unit vector
	// from a hash of the text. No model dependency.
	EmbeddingModeHash = "hash"
	// EmbeddingModeOpenAI encodes text via an OpenAI-compatible embedding API.
	EmbeddingModeOpenAI = "openai"
)

// Config holds the querydex resolver configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Cache     CacheConfig     `yaml:"cache"`
	Cold      ColdConfig      `yaml:"cold"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Provider  ProviderConfig  `yaml:"provider"`
	Resolver  ResolverConfig  `yaml:"resolver"`
	Auth      AuthConfig      `yaml:"auth"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds volatile-cache (Redis) connection settings.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	ConnectTimeoutMS int      `yaml:"connect_timeout_ms"`
	ReadTimeoutMS    int      `yaml:"read_timeout_ms"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// CacheConfig holds hot-cache (exact + semantic) settings.
type CacheConfig struct {
	TTLSec int `yaml:"ttl_sec"`
	KNNK   int `yaml:"knn_k"`
	// MinScore gates acceptance of the best semantic neighbor (cosine
	// similarity in [0,1]). Zero accepts the top hit unconditionally.
	MinScore float64 `yaml:"min_score"`
}

// ColdConfig holds durable-cache settings.
type ColdConfig struct {
	Path string `yaml:"path"`
}

// EmbeddingConfig holds embedding settings.
type EmbeddingConfig struct {
	Mode       string `yaml:"mode"` // hash, openai
	Dimensions int    `yaml:"dimensions"`
	Model      string `yaml:"model"`
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
}

// ProviderConfig holds live search provider (SearXNG) settings.
type ProviderConfig struct {
	BaseURL           string `yaml:"base_url"`
	Language          string `yaml:"language"`
	SafeSearch        int    `yaml:"safe_search"`
	MaxResults        int    `yaml:"max_results"`
	ConnectTimeoutMS  int    `yaml:"connect_timeout_ms"`
	RequestTimeoutSec int    `yaml:"request_timeout_sec"`
}

// ResolverConfig holds resolver orchestration settings.
type ResolverConfig struct {
	MaxParallel int `yaml:"max_parallel"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.ConnectTimeoutMS <= 0 {
		c.Database.ConnectTimeoutMS = 1000
	}
	if c.Database.ReadTimeoutMS <= 0 {
		c.Database.ReadTimeoutMS = 2000
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Cache.TTLSec == 0 {
		c.Cache.TTLSec = 2 * 60 * 60
	}
	if c.Cache.KNNK <= 0 {
		c.Cache.KNNK = 3
	}
	if c.Cold.Path == "" {
		c.Cold.Path = "querydex.db"
	}
	if c.Embedding.Mode == "" {
		c.Embedding.Mode = EmbeddingModeHash
	}
	if c.Embedding.Dimensions == 0 {
		c.Embedding.Dimensions = 384
	}
	if c.Provider.Language == "" {
		c.Provider.Language = "en"
	}
	if c.Provider.MaxResults <= 0 {
		c.Provider.MaxResults = 8
	}
	if c.Provider.ConnectTimeoutMS <= 0 {
		c.Provider.ConnectTimeoutMS = 3000
	}
	if c.Provider.RequestTimeoutSec <= 0 {
		c.Provider.RequestTimeoutSec = 20
	}
	if c.Resolver.MaxParallel <= 0 {
		c.Resolver.MaxParallel = 3
	}
}

// Validate checks the configuration for correctness. Invalid dimension or TTL
// is rejected here, at startup, rather than at first use.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}
	if c.Cache.TTLSec < 0 {
		return fmt.Errorf("cache.ttl_sec must not be negative, got %d", c.Cache.TTLSec)
	}
	if c.Cache.MinScore < 0 || c.Cache.MinScore > 1 {
		return fmt.Errorf("cache.min_score must be in [0,1], got %g", c.Cache.MinScore)
	}
	if c.Embedding.Dimensions <= 0 {
		return fmt.Errorf("embedding.dimensions must be positive, got %d", c.Embedding.Dimensions)
	}
	switch c.Embedding.Mode {
	case EmbeddingModeHash:
	case EmbeddingModeOpenAI:
		if c.Embedding.Model == "" {
			return fmt.Errorf("embedding.model is required for mode %q", EmbeddingModeOpenAI)
		}
	default:
		return fmt.Errorf("embedding.mode must be %q or %q, got %q",
			EmbeddingModeHash, EmbeddingModeOpenAI, c.Embedding.Mode)
	}
	if c.Provider.BaseURL == "" {
		return fmt.Errorf("provider.base_url is required")
	}
	if c.Provider.SafeSearch < 0 || c.Provider.SafeSearch > 2 {
		return fmt.Errorf("provider.safe_search must be 0, 1 or 2, got %d", c.Provider.SafeSearch)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
