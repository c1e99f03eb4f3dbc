// Package config loads and validates weave configuration.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config represents the complete weave configuration
type Config struct {
	Version  int    `json:"version" mapstructure:"version"`
	RepoRoot string `json:"repoRoot" mapstructure:"repoRoot"`

	LLM       LLMConfig       `json:"llm" mapstructure:"llm"`
	Inference InferenceConfig `json:"inference" mapstructure:"inference"`
	Logging   LoggingConfig   `json:"logging" mapstructure:"logging"`
}

// LLMConfig contains completion-endpoint configuration
type LLMConfig struct {
	// BaseURL is the OpenAI-compatible chat completions endpoint root
	BaseURL string `json:"baseUrl" mapstructure:"baseUrl"`

	// Model is the model identifier sent with every request
	Model string `json:"model" mapstructure:"model"`

	// APIKeyEnv names the environment variable holding the API key.
	// The key itself is never written to the config file.
	APIKeyEnv string `json:"apiKeyEnv" mapstructure:"apiKeyEnv"`

	// MaxTokens caps the completion size per request
	MaxTokens int `json:"maxTokens" mapstructure:"maxTokens"`

	// TimeoutMs bounds a single completion round-trip
	TimeoutMs int `json:"timeoutMs" mapstructure:"timeoutMs"`
}

// InferenceConfig contains interaction-inference tuning
type InferenceConfig struct {
	// BatchSize is the number of call-graph edges per semantic prompt
	BatchSize int `json:"batchSize" mapstructure:"batchSize"`

	// CoverageTarget is the relationship coverage percent the gate loop drives toward
	CoverageTarget float64 `json:"coverageTarget" mapstructure:"coverageTarget"`

	// MaxGateRetries bounds targeted-inference passes
	MaxGateRetries int `json:"maxGateRetries" mapstructure:"maxGateRetries"`

	// FanInMinInferred is the minimum inbound llm-inferred edge count
	// before a module is even considered for fan-in anomaly cleanup
	FanInMinInferred int `json:"fanInMinInferred" mapstructure:"fanInMinInferred"`

	// FanInRatio is the multiple of inbound AST edges above which
	// inbound llm-inferred edges are treated as hallucinated convergence
	FanInRatio float64 `json:"fanInRatio" mapstructure:"fanInRatio"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Format string `json:"format" mapstructure:"format"`
	Level  string `json:"level" mapstructure:"level"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Version:  1,
		RepoRoot: ".",
		LLM: LLMConfig{
			BaseURL:   "http://localhost:11434/v1",
			Model:     "qwen2.5-coder:14b",
			APIKeyEnv: "WEAVE_API_KEY",
			MaxTokens: 4000,
			TimeoutMs: 120000,
		},
		Inference: InferenceConfig{
			BatchSize:        10,
			CoverageTarget:   90.0,
			MaxGateRetries:   2,
			FanInMinInferred: 4,
			FanInRatio:       3.0,
		},
		Logging: LoggingConfig{
			Format: "human",
			Level:  "info",
		},
	}
}

// LoadConfig loads configuration from .weave/config.json, falling back to
// defaults when no config file exists. WEAVE_* environment variables
// override file values.
func LoadConfig(repoRoot string) (*Config, error) {
	v := viper.New()

	def := DefaultConfig()
	v.SetDefault("version", def.Version)
	v.SetDefault("repoRoot", def.RepoRoot)
	v.SetDefault("llm.baseUrl", def.LLM.BaseURL)
	v.SetDefault("llm.model", def.LLM.Model)
	v.SetDefault("llm.apiKeyEnv", def.LLM.APIKeyEnv)
	v.SetDefault("llm.maxTokens", def.LLM.MaxTokens)
	v.SetDefault("llm.timeoutMs", def.LLM.TimeoutMs)
	v.SetDefault("inference.batchSize", def.Inference.BatchSize)
	v.SetDefault("inference.coverageTarget", def.Inference.CoverageTarget)
	v.SetDefault("inference.maxGateRetries", def.Inference.MaxGateRetries)
	v.SetDefault("inference.fanInMinInferred", def.Inference.FanInMinInferred)
	v.SetDefault("inference.fanInRatio", def.Inference.FanInRatio)
	v.SetDefault("logging.format", def.Logging.Format)
	v.SetDefault("logging.level", def.Logging.Level)

	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(filepath.Join(repoRoot, ".weave"))
	v.SetEnvPrefix("WEAVE")
	// Nested keys use dots internally; env names use underscores, so
	// inference.batchSize reads from WEAVE_INFERENCE_BATCHSIZE.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		// No config file: defaults plus env overrides still apply
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the configuration to .weave/config.json
func (c *Config) Save(repoRoot string) error {
	dir := filepath.Join(repoRoot, ".weave")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(dir, "config.json"), []byte(string(data)+"\n"), 0644)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Inference.BatchSize <= 0 {
		return &ConfigError{Field: "inference.batchSize", Message: "must be positive"}
	}
	if c.Inference.CoverageTarget < 0 || c.Inference.CoverageTarget > 100 {
		return &ConfigError{Field: "inference.coverageTarget", Message: "must be between 0 and 100"}
	}
	if c.Inference.MaxGateRetries < 0 {
		return &ConfigError{Field: "inference.maxGateRetries", Message: "must not be negative"}
	}
	if c.Inference.FanInRatio <= 0 {
		return &ConfigError{Field: "inference.fanInRatio", Message: "must be positive"}
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}
