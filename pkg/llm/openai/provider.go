package openai

import (
	"context"
	"net/http"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"docubot-be/pkg/apperror"
	"docubot-be/pkg/llm"
)

// Provider talks to any OpenAI compatible chat completions endpoint.
type Provider struct {
	client   *goopenai.Client
	model    string
	defaults llm.Options
}

var _ llm.LLMProvider = &Provider{}

func NewProvider(baseURL, apiKey, model string, timeout time.Duration, defaults llm.Options) *Provider {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	cfg := goopenai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	cfg.HTTPClient = &http.Client{Timeout: timeout}

	return &Provider{
		client:   goopenai.NewClientWithConfig(cfg),
		model:    model,
		defaults: defaults,
	}
}

func (p *Provider) Chat(ctx context.Context, history []llm.Message, opts ...llm.Option) (string, error) {
	options := llm.ApplyOptions(p.defaults, opts...)

	model := p.model
	if options.Model != "" {
		model = options.Model
	}

	messages := make([]goopenai.ChatCompletionMessage, len(history))
	for i, msg := range history {
		messages[i] = goopenai.ChatCompletionMessage{Role: msg.Role, Content: msg.Content}
	}

	resp, err := p.client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: float32(options.Temperature),
		MaxTokens:   options.MaxTokens,
	})
	if err != nil {
		return "", apperror.Wrap(apperror.ErrCompletionService, "chat completion", err)
	}
	if len(resp.Choices) == 0 {
		return "", apperror.New(apperror.ErrCompletionService, "chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func (p *Provider) Generate(ctx context.Context, prompt string, opts ...llm.Option) (string, error) {
	return p.Chat(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}}, opts...)
}
