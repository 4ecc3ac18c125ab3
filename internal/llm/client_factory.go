package llm

import (
	"context"
	"fmt"
	"time"

	"docsift/internal/config"
)

// NewClient resolves a provider client from configuration. Provider "none"
// (or empty) returns nil: the pipeline then runs extraction-only, with stages
// falling back to their raw payloads.
func NewClient(ctx context.Context, cfg config.LLMConfig) (Client, error) {
	switch cfg.Provider {
	case "", "none":
		return nil, nil
	case "mock":
		return NewMockClient(), nil
	case "dashscope":
		dc := DefaultDashScopeConfig(cfg.APIKey)
		if cfg.Model != "" {
			dc.Model = cfg.Model
		}
		if cfg.BaseURL != "" {
			dc.BaseURL = cfg.BaseURL
		}
		if cfg.Temperature > 0 {
			dc.Temperature = cfg.Temperature
		}
		if cfg.MaxTokens > 0 {
			dc.MaxTokens = cfg.MaxTokens
		}
		if d, err := time.ParseDuration(cfg.Timeout); err == nil && d > 0 {
			dc.Timeout = d
		}
		return NewDashScopeClientWithConfig(dc), nil
	case "gemini":
		return NewGeminiClient(ctx, GeminiConfig{
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
		})
	default:
		return nil, fmt.Errorf("unknown LLM provider: %q", cfg.Provider)
	}
}
