// Package session answers a user's question from that user's indexed
// documents plus their recent conversation.
package session

import (
	"context"
	"errors"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"docubot-be/internal/pkg/logger"
	"docubot-be/pkg/apperror"
	"docubot-be/pkg/llm"
	"docubot-be/pkg/store"
	"docubot-be/pkg/utils"
	"docubot-be/pkg/vectorstore"
)

const module = "RetrievalSession"

const (
	DefaultSystemPrompt   = "You are a helpful customer support assistant."
	DefaultFallbackAnswer = "Sorry, I couldn't get a response."
)

type RetrievalStatus string

const (
	RetrievalHit   RetrievalStatus = "hit"
	RetrievalEmpty RetrievalStatus = "empty"
)

type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

type Retriever interface {
	Query(ctx context.Context, userID string, vector []float32, k int) ([]vectorstore.SearchResult, error)
}

type HistoryRepository interface {
	Get(userID string) (*store.Conversation, bool)
	Save(conv *store.Conversation)
	Delete(userID string)
}

type Config struct {
	TopK           int
	HistoryWindow  int
	SystemPrompt   string
	FallbackAnswer string
	// NativeContextRole sends retrieved passages as their own turn with the
	// "context" role, after the history window. This is the message layout
	// the bot was first built around. The default sends a "Context:" system
	// message instead, because OpenAI-compatible endpoints reject unknown roles.
	NativeContextRole bool
}

type Answer struct {
	Text      string
	Context   string
	Retrieval RetrievalStatus
	Passages  []vectorstore.SearchResult
	Fallback  bool
}

type Session struct {
	embedder  QueryEmbedder
	retriever Retriever
	completer llm.LLMProvider
	history   HistoryRepository
	cfg       Config
	locks     *utils.KeyedMutex
	logger    logger.ILogger
}

func New(embedder QueryEmbedder, retriever Retriever, completer llm.LLMProvider, history HistoryRepository, cfg Config, log logger.ILogger) *Session {
	if cfg.TopK <= 0 {
		cfg.TopK = 3
	}
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = 6
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = DefaultSystemPrompt
	}
	if cfg.FallbackAnswer == "" {
		cfg.FallbackAnswer = DefaultFallbackAnswer
	}
	return &Session{
		embedder:  embedder,
		retriever: retriever,
		completer: completer,
		history:   history,
		cfg:       cfg,
		locks:     utils.NewKeyedMutex(),
		logger:    log,
	}
}

// Ask records the query, retrieves up to TopK passages and asks the completion
// backend. Completion failures yield the fallback answer instead of an error.
// Embedding and storage failures are returned; the user turn stays recorded.
func (s *Session) Ask(ctx context.Context, userID, query string) (*Answer, []llm.Message, error) {
	if err := vectorstore.ValidateUserID(userID); err != nil {
		return nil, nil, err
	}
	if strings.TrimSpace(query) == "" {
		return nil, nil, apperror.New(apperror.ErrInvalidInput, "query is required")
	}

	ctx, span := otel.Tracer("docubot-be/rag").Start(ctx, "rag.ask",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	unlock := s.locks.Lock(userID)
	defer unlock()

	conv := s.conversation(userID)
	conv.Append(llm.Message{Role: llm.RoleUser, Content: query})
	s.history.Save(conv)

	vec, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "embed query")
		return nil, nil, err
	}

	answer := &Answer{Retrieval: RetrievalEmpty}
	results, err := s.retriever.Query(ctx, userID, vec, s.cfg.TopK)
	switch {
	case errors.Is(err, apperror.ErrEmptyStore):
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, "retrieve")
		return nil, nil, err
	default:
		answer.Passages = results
		answer.Context = vectorstore.JoinTexts(results)
		if len(results) > 0 {
			answer.Retrieval = RetrievalHit
		}
	}

	messages := s.buildMessages(conv, answer.Context)
	text, err := s.completer.Chat(ctx, messages)
	if err == nil && strings.TrimSpace(text) == "" {
		err = apperror.New(apperror.ErrCompletionService, "empty completion")
	}
	if err != nil {
		s.logger.Warn(module, "Completion failed, using fallback", map[string]interface{}{
			"user_id": userID,
			"error":   err.Error(),
		})
		span.RecordError(err)
		text = s.cfg.FallbackAnswer
		answer.Fallback = true
	}
	answer.Text = text

	conv.Append(llm.Message{Role: llm.RoleAssistant, Content: text})
	s.history.Save(conv)

	span.SetAttributes(
		attribute.Int("rag.retrieved", len(answer.Passages)),
		attribute.Bool("rag.fallback", answer.Fallback),
	)
	s.logger.Info(module, "Question answered", map[string]interface{}{
		"user_id":   userID,
		"retrieved": len(answer.Passages),
		"retrieval": string(answer.Retrieval),
		"fallback":  answer.Fallback,
	})

	return answer, conv.Recent(0), nil
}

// History returns a copy of the user's conversation, oldest first.
func (s *Session) History(userID string) []llm.Message {
	unlock := s.locks.Lock(userID)
	defer unlock()

	conv, found := s.history.Get(userID)
	if !found {
		return []llm.Message{}
	}
	return conv.Recent(0)
}

func (s *Session) Reset(userID string) {
	unlock := s.locks.Lock(userID)
	defer unlock()
	s.history.Delete(userID)
}

func (s *Session) conversation(userID string) *store.Conversation {
	if conv, found := s.history.Get(userID); found {
		return conv
	}
	return store.NewConversation(userID)
}

func (s *Session) buildMessages(conv *store.Conversation, retrieved string) []llm.Message {
	window := conv.Recent(s.cfg.HistoryWindow)

	messages := make([]llm.Message, 0, len(window)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: s.cfg.SystemPrompt})
	messages = append(messages, window...)

	if s.cfg.NativeContextRole {
		messages = append(messages, llm.Message{Role: llm.RoleContext, Content: retrieved})
	} else {
		messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: "Context: " + retrieved})
	}
	return messages
}
