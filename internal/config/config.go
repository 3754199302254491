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

// Config holds the topicdex service configuration.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Cache    CacheConfig    `yaml:"cache"`
	Analysis AnalysisConfig `yaml:"analysis"`
	LLM      LLMConfig      `yaml:"llm"`
	Auth     AuthConfig     `yaml:"auth"`
	Logging  LoggingConfig  `yaml:"logging"`
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
	Port            int   `yaml:"port"`
	ReadTimeoutSec  int   `yaml:"read_timeout_sec"`
	WriteTimeoutSec int   `yaml:"write_timeout_sec"`
	ShutdownSec     int   `yaml:"shutdown_timeout_sec"`
	MaxBodyBytes    int64 `yaml:"max_body_bytes"`
}

// DatabaseConfig holds the key-value store connection used by the result cache.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // valkey, redis (default: valkey)
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// SQLiteConfig holds session storage settings.
type SQLiteConfig struct {
	Path string `yaml:"path"` // ":memory:" keeps sessions in memory
}

// CacheConfig holds result cache settings.
type CacheConfig struct {
	Enabled   bool   `yaml:"enabled"`
	TTLSec    int    `yaml:"ttl_sec"`
	KeyPrefix string `yaml:"key_prefix"`
}

// AnalysisConfig holds engine defaults. Zero values take the engine defaults.
type AnalysisConfig struct {
	NumTopics          int     `yaml:"num_topics"` // 0 = automatic
	MaxTopics          int     `yaml:"max_topics"`
	MaxFeatures        int     `yaml:"max_features"`
	Weighting          string  `yaml:"weighting"` // tfidf, count
	NgramMax           int     `yaml:"ngram_max"`
	MinDF              int     `yaml:"min_df"`
	MaxDF              float64 `yaml:"max_df"`
	SecondaryThreshold float64 `yaml:"secondary_threshold"`
	ConsensusThreshold float64 `yaml:"consensus_threshold"`
	MixedThreshold     float64 `yaml:"mixed_threshold"`
	Selection          string  `yaml:"selection"` // silhouette, perplexity
	Seed               int64   `yaml:"seed"`
	LDAMaxIter         int     `yaml:"lda_max_iter"`
	NMFMaxIter         int     `yaml:"nmf_max_iter"`
	Keywords           int     `yaml:"n_keywords"`
	MaxTerms           int     `yaml:"max_terms"`
	Workers            int     `yaml:"workers"`
	LexiconPath        string  `yaml:"lexicon_path"`
	MaxDocuments       int     `yaml:"max_documents"`
	DefaultPageSize    int     `yaml:"default_page_size"`
	MaxPageSize        int     `yaml:"max_page_size"`
}

// LLMConfig holds the chat model settings of the LLM pipeline.
type LLMConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Provider    string  `yaml:"provider"`
	BaseURL     string  `yaml:"base_url"`
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	TimeoutSec  int     `yaml:"timeout_sec"`
	MaxRetries  int     `yaml:"max_retries"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
	BatchSize   int     `yaml:"batch_size"`
}

// Load reads configuration from a YAML file by environment name (local, dev, test, prod).
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

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
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
		c.HTTP.WriteTimeoutSec = 300
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.HTTP.MaxBodyBytes <= 0 {
		c.HTTP.MaxBodyBytes = 10 << 20
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "valkey"
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.SQLite.Path == "" {
		c.SQLite.Path = "data/topicdex.db"
	}
	if c.Cache.TTLSec <= 0 {
		c.Cache.TTLSec = 86400
	}
	if c.Cache.KeyPrefix == "" {
		c.Cache.KeyPrefix = "topicdex:result:"
	}
	if c.Analysis.MaxDocuments <= 0 {
		c.Analysis.MaxDocuments = 1000
	}
	if c.Analysis.DefaultPageSize <= 0 {
		c.Analysis.DefaultPageSize = 20
	}
	if c.Analysis.MaxPageSize <= 0 {
		c.Analysis.MaxPageSize = 100
	}
	if c.LLM.Provider == "" {
		c.LLM.Provider = "openai"
	}
	if c.LLM.TimeoutSec <= 0 {
		c.LLM.TimeoutSec = 120
	}
	if c.LLM.MaxRetries <= 0 {
		c.LLM.MaxRetries = 3
	}
	if c.LLM.Temperature <= 0 {
		c.LLM.Temperature = 0.3
	}
	if c.LLM.MaxTokens <= 0 {
		c.LLM.MaxTokens = 4000
	}
	if c.LLM.BatchSize <= 0 {
		c.LLM.BatchSize = 20
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	switch c.Database.Driver {
	case "valkey", "redis":
	default:
		return fmt.Errorf("database.driver must be \"valkey\" or \"redis\", got %q", c.Database.Driver)
	}
	if c.Cache.Enabled && len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required when cache is enabled")
	}
	if err := c.Analysis.validate(); err != nil {
		return err
	}
	if c.LLM.Enabled {
		if c.LLM.BaseURL == "" {
			return fmt.Errorf("llm.base_url is required when llm is enabled")
		}
		if c.LLM.Model == "" {
			return fmt.Errorf("llm.model is required when llm is enabled")
		}
	}
	return nil
}

func (a *AnalysisConfig) validate() error {
	switch a.Weighting {
	case "", "tfidf", "count":
	default:
		return fmt.Errorf("analysis.weighting must be \"tfidf\" or \"count\", got %q", a.Weighting)
	}
	switch a.Selection {
	case "", "silhouette", "perplexity":
	default:
		return fmt.Errorf("analysis.selection must be \"silhouette\" or \"perplexity\", got %q", a.Selection)
	}
	if a.NumTopics < 0 || a.MaxTopics < 0 {
		return fmt.Errorf("analysis topic counts must be non-negative")
	}
	ranges := []struct {
		name string
		v    float64
	}{
		{"max_df", a.MaxDF},
		{"secondary_threshold", a.SecondaryThreshold},
		{"consensus_threshold", a.ConsensusThreshold},
		{"mixed_threshold", a.MixedThreshold},
	}
	for _, r := range ranges {
		if r.v < 0 || r.v > 1 {
			return fmt.Errorf("analysis.%s must be within [0, 1], got %v", r.name, r.v)
		}
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
