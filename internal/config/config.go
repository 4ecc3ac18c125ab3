// Package config holds the explicit configuration struct passed to the
// pipeline constructor. There is no hidden process-wide state: everything the
// pipeline needs (provider, budget, digest behavior, logging) is resolved
// here, and env vars are applied in one documented pass.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"docsift/internal/logging"
)

// Config holds all docsift configuration.
type Config struct {
	LLM     LLMConfig      `yaml:"llm"`
	Budget  BudgetConfig   `yaml:"budget"`
	Digest  DigestConfig   `yaml:"digest"`
	Logging logging.Config `yaml:"logging"`
}

// LLMConfig configures the generative-model client.
type LLMConfig struct {
	Provider    string  `yaml:"provider"` // dashscope, gemini, mock, none
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	BaseURL     string  `yaml:"base_url"`
	Timeout     string  `yaml:"timeout"` // Go duration string, default 120s
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// BudgetConfig is the invocation budget shared by every bounded call for a
// pipeline's lifetime. It is read-only after construction; concurrency is
// enforced through a counting permit, never by mutating this struct.
type BudgetConfig struct {
	MaxConcurrent int `yaml:"max_concurrent"`
	RetryLimit    int `yaml:"retry_limit"`
}

// DigestConfig configures the theory digest stage.
type DigestConfig struct {
	// PrefixLines bounds the narrative excerpt taken from the document head.
	PrefixLines int `yaml:"prefix_lines"`
	// SummarizeFull sends the whole document to the model instead of only
	// the excerpt. The excerpt remains the fallback payload either way.
	SummarizeFull bool `yaml:"summarize_full"`
}

// Default returns the configuration used when no file is given. The model
// defaults mirror the DashScope deployment this tool was built against.
func Default() Config {
	return Config{
		LLM: LLMConfig{
			Provider:    "none",
			Model:       "qwen3-235b-a22b-instruct-2507",
			Timeout:     "120s",
			Temperature: 0.2,
			MaxTokens:   2000,
		},
		Budget: BudgetConfig{
			MaxConcurrent: 3,
			RetryLimit:    1,
		},
		Digest: DigestConfig{
			PrefixLines: 20,
		},
		Logging: logging.Config{
			Level: "info",
		},
	}
}

// Load reads a yaml config file, layering it over defaults, then applies env
// overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config: %w", err)
		}
	}
	cfg.ApplyEnvOverrides()
	return cfg, nil
}

// ApplyEnvOverrides resolves API keys and model overrides from the
// environment. A key env var selects its provider only when none was chosen
// explicitly.
func (c *Config) ApplyEnvOverrides() {
	if key := os.Getenv("DASHSCOPE_API_KEY"); key != "" {
		if c.LLM.APIKey == "" {
			c.LLM.APIKey = key
		}
		if c.LLM.Provider == "" || c.LLM.Provider == "none" {
			c.LLM.Provider = "dashscope"
		}
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		if c.LLM.APIKey == "" {
			c.LLM.APIKey = key
		}
		if c.LLM.Provider == "" || c.LLM.Provider == "none" {
			c.LLM.Provider = "gemini"
		}
	}
	if model := os.Getenv("DOCSIFT_MODEL"); model != "" {
		c.LLM.Model = model
	}
}

// Validate checks construction-time constraints. Violations abort before any
// document is processed.
func (c *Config) Validate() error {
	if c.Budget.MaxConcurrent <= 0 {
		return fmt.Errorf("budget.max_concurrent must be positive, got %d", c.Budget.MaxConcurrent)
	}
	if c.Budget.RetryLimit < 0 {
		return fmt.Errorf("budget.retry_limit must not be negative, got %d", c.Budget.RetryLimit)
	}
	if c.Digest.PrefixLines <= 0 {
		return fmt.Errorf("digest.prefix_lines must be positive, got %d", c.Digest.PrefixLines)
	}
	if c.LLM.Timeout != "" {
		if _, err := time.ParseDuration(c.LLM.Timeout); err != nil {
			return fmt.Errorf("llm.timeout is not a duration: %w", err)
		}
	}
	return nil
}

// LLMTimeout returns the parsed client timeout, falling back to 120s.
func (c *Config) LLMTimeout() time.Duration {
	d, err := time.ParseDuration(c.LLM.Timeout)
	if err != nil || d <= 0 {
		return 120 * time.Second
	}
	return d
}
