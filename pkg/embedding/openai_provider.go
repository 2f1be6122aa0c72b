package embedding

import (
	"context"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"

	"docubot-be/pkg/apperror"
)

// OpenAIProvider talks to any OpenAI compatible /v1/embeddings endpoint,
// including Ollama's compatibility layer.
type OpenAIProvider struct {
	client *openai.Client
	model  string
}

func NewOpenAIProvider(baseURL, apiKey, model string, timeout time.Duration) *OpenAIProvider {
	if baseURL == "" {
		baseURL = "http://localhost:11434/v1"
	}
	if model == "" {
		model = "nomic-embed-text:latest"
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	cfg.HTTPClient = &http.Client{Timeout: timeout}

	return &OpenAIProvider{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

func (p *OpenAIProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input: []string{text},
		Model: openai.EmbeddingModel(p.model),
	})
	if err != nil {
		return nil, apperror.Wrap(apperror.ErrEmbeddingService, "create embeddings", err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, emptyEmbedding("embedding endpoint")
	}
	return resp.Data[0].Embedding, nil
}
