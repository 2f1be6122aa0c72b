package factory

import (
	"fmt"
	"time"

	"docubot-be/pkg/llm"
	"docubot-be/pkg/llm/ollama"
	"docubot-be/pkg/llm/openai"
)

type Config struct {
	Provider    string // "ollama" or "openai"
	Model       string
	BaseURL     string
	APIKey      string
	Timeout     time.Duration
	Temperature float64
	MaxTokens   int
}

// NewLLMProvider builds the configured backend wrapped in a circuit breaker.
func NewLLMProvider(cfg Config) (llm.LLMProvider, error) {
	defaults := llm.Options{Temperature: cfg.Temperature, MaxTokens: cfg.MaxTokens}

	var provider llm.LLMProvider
	switch cfg.Provider {
	case "ollama":
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434"
		}
		provider = ollama.NewOllamaProvider(baseURL, cfg.Model, cfg.Timeout, defaults)
	case "openai":
		provider = openai.NewProvider(cfg.BaseURL, cfg.APIKey, cfg.Model, cfg.Timeout, defaults)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}

	return llm.NewBreakerProvider(provider, llm.BreakerSettings{Name: "llm-" + cfg.Provider}), nil
}
