package embedding

import (
	"fmt"
	"time"
)

type Config struct {
	Provider  string // "openai" or "ollama"
	BaseURL   string
	APIKey    string
	Model     string
	Timeout   time.Duration
	Normalize bool
}

func NewService(cfg Config) (Service, error) {
	var svc Service
	switch cfg.Provider {
	case "openai", "":
		svc = NewOpenAIProvider(cfg.BaseURL, cfg.APIKey, cfg.Model, cfg.Timeout)
	case "ollama":
		svc = NewOllamaProvider(cfg.BaseURL, cfg.Model, cfg.Timeout)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}

	if cfg.Normalize {
		svc = NewNormalizing(svc)
	}
	return svc, nil
}
