package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docubot-be/internal/pkg/logger"
	"docubot-be/internal/repository/memory"
	"docubot-be/pkg/apperror"
	"docubot-be/pkg/llm"
	"docubot-be/pkg/vectorstore"
)

// keywordEmbedder maps text onto fixed topic axes so searches are deterministic.
type keywordEmbedder struct {
	err error
}

var topics = []string{"refund", "shipping", "warranty"}

func (k *keywordEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	if k.err != nil {
		return nil, k.err
	}
	return embedKeywords(text), nil
}

func embedKeywords(text string) []float32 {
	vec := make([]float32, len(topics))
	lower := strings.ToLower(text)
	for i, topic := range topics {
		if strings.Contains(lower, topic) {
			vec[i] = 1
		}
	}
	return vec
}

type recordingCompleter struct {
	reply    string
	err      error
	messages [][]llm.Message
}

func (r *recordingCompleter) Chat(_ context.Context, history []llm.Message, _ ...llm.Option) (string, error) {
	r.messages = append(r.messages, history)
	return r.reply, r.err
}

func (r *recordingCompleter) Generate(ctx context.Context, prompt string, opts ...llm.Option) (string, error) {
	return r.Chat(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}}, opts...)
}

func (r *recordingCompleter) last() []llm.Message {
	return r.messages[len(r.messages)-1]
}

type fixture struct {
	session   *Session
	stores    *vectorstore.Manager
	completer *recordingCompleter
	embedder  *keywordEmbedder
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()

	stores, err := vectorstore.NewManager(vectorstore.NewMemoryBackend(), 8, logger.NewNop())
	require.NoError(t, err)

	f := &fixture{
		stores:    stores,
		completer: &recordingCompleter{reply: "Refunds are processed within 5 days."},
		embedder:  &keywordEmbedder{},
	}
	f.session = New(f.embedder, stores, f.completer, memory.NewConversationRepository(time.Hour), cfg, logger.NewNop())
	return f
}

func (f *fixture) index(t *testing.T, userID string, passages ...string) {
	t.Helper()
	vectors := make([][]float32, len(passages))
	for i, p := range passages {
		vectors[i] = embedKeywords(p)
	}
	_, err := f.stores.Ingest(context.Background(), userID, "faq.txt", passages, vectors)
	require.NoError(t, err)
}

func TestAskAnswersFromIndexedPassages(t *testing.T) {
	f := newFixture(t, Config{})
	f.index(t, "alice", "Refunds are processed in 5 days", "Shipping is free over $50", "Warranty lasts one year")

	answer, history, err := f.session.Ask(context.Background(), "alice", "How long do refunds take?")
	require.NoError(t, err)

	assert.Equal(t, "Refunds are processed within 5 days.", answer.Text)
	assert.Equal(t, RetrievalHit, answer.Retrieval)
	assert.False(t, answer.Fallback)
	require.Len(t, answer.Passages, 3)
	assert.Equal(t, "Refunds are processed in 5 days", answer.Passages[0].Passage.Text)
	assert.True(t, strings.HasPrefix(answer.Context, "Refunds are processed in 5 days "))

	assert.Equal(t, []llm.Message{
		{Role: llm.RoleUser, Content: "How long do refunds take?"},
		{Role: llm.RoleAssistant, Content: "Refunds are processed within 5 days."},
	}, history)

	sent := f.completer.last()
	require.Len(t, sent, 3)
	assert.Equal(t, llm.Message{Role: llm.RoleSystem, Content: DefaultSystemPrompt}, sent[0])
	assert.Equal(t, llm.RoleUser, sent[1].Role)
	assert.Equal(t, llm.RoleSystem, sent[2].Role)
	assert.Equal(t, "Context: "+answer.Context, sent[2].Content)
}

func TestAskNativeContextRole(t *testing.T) {
	f := newFixture(t, Config{NativeContextRole: true})
	f.index(t, "alice", "Refunds are processed in 5 days")

	_, _, err := f.session.Ask(context.Background(), "alice", "refund?")
	require.NoError(t, err)

	sent := f.completer.last()
	require.Len(t, sent, 3)
	assert.Equal(t, llm.RoleSystem, sent[0].Role)
	assert.Equal(t, llm.Message{Role: llm.RoleUser, Content: "refund?"}, sent[1])
	assert.Equal(t, llm.Message{Role: llm.RoleContext, Content: "Refunds are processed in 5 days"}, sent[2])
	for _, m := range sent {
		assert.NotContains(t, m.Content, "Context: ")
	}
}

func TestAskFallsBackWhenCompletionFails(t *testing.T) {
	f := newFixture(t, Config{})
	f.index(t, "alice", "Refunds are processed in 5 days")
	f.completer.err = apperror.New(apperror.ErrCompletionService, "timeout")

	answer, history, err := f.session.Ask(context.Background(), "alice", "refund?")
	require.NoError(t, err)

	assert.Equal(t, DefaultFallbackAnswer, answer.Text)
	assert.True(t, answer.Fallback)
	assert.Equal(t, llm.Message{Role: llm.RoleAssistant, Content: DefaultFallbackAnswer}, history[len(history)-1])
}

func TestAskFallsBackOnBlankCompletion(t *testing.T) {
	f := newFixture(t, Config{FallbackAnswer: "try again"})
	f.completer.reply = "  "

	answer, _, err := f.session.Ask(context.Background(), "alice", "refund?")
	require.NoError(t, err)
	assert.Equal(t, "try again", answer.Text)
}

func TestAskWithoutStoreUsesEmptyContext(t *testing.T) {
	f := newFixture(t, Config{})

	answer, _, err := f.session.Ask(context.Background(), "nobody", "refund?")
	require.NoError(t, err)

	assert.Equal(t, RetrievalEmpty, answer.Retrieval)
	assert.Empty(t, answer.Passages)
	assert.Equal(t, "", answer.Context)
	assert.Equal(t, "Context: ", f.completer.last()[2].Content)
}

func TestAskPropagatesEmbeddingError(t *testing.T) {
	f := newFixture(t, Config{})
	f.embedder.err = apperror.New(apperror.ErrEmbeddingService, "down")

	_, _, err := f.session.Ask(context.Background(), "alice", "refund?")
	assert.ErrorIs(t, err, apperror.ErrEmbeddingService)
	assert.Empty(t, f.completer.messages)

	// the user turn stays recorded
	assert.Equal(t, []llm.Message{{Role: llm.RoleUser, Content: "refund?"}}, f.session.History("alice"))
}

func TestAskPropagatesStorageError(t *testing.T) {
	f := newFixture(t, Config{})
	f.index(t, "alice", "Refunds are processed in 5 days")
	f.session.retriever = retrieverFunc(func(context.Context, string, []float32, int) ([]vectorstore.SearchResult, error) {
		return nil, errors.New("disk error")
	})

	_, _, err := f.session.Ask(context.Background(), "alice", "refund?")
	assert.EqualError(t, err, "disk error")
}

type retrieverFunc func(ctx context.Context, userID string, vector []float32, k int) ([]vectorstore.SearchResult, error)

func (f retrieverFunc) Query(ctx context.Context, userID string, vector []float32, k int) ([]vectorstore.SearchResult, error) {
	return f(ctx, userID, vector, k)
}

func TestAskRespectsTopK(t *testing.T) {
	f := newFixture(t, Config{TopK: 1})
	f.index(t, "alice", "Refunds are processed in 5 days", "Shipping is free", "Warranty lasts one year")

	answer, _, err := f.session.Ask(context.Background(), "alice", "shipping cost")
	require.NoError(t, err)
	require.Len(t, answer.Passages, 1)
	assert.Equal(t, "Shipping is free", answer.Context)
}

func TestAskBoundsHistoryWindow(t *testing.T) {
	f := newFixture(t, Config{HistoryWindow: 4})

	for i := 0; i < 5; i++ {
		_, _, err := f.session.Ask(context.Background(), "alice", fmt.Sprintf("question %d", i))
		require.NoError(t, err)
	}

	sent := f.completer.last()
	// system + 4 history turns + context
	require.Len(t, sent, 6)
	assert.Equal(t, llm.RoleAssistant, sent[1].Role)
	assert.Equal(t, "question 3", sent[2].Content)
	assert.Equal(t, "question 4", sent[4].Content)
	assert.Len(t, f.session.History("alice"), 10)
}

func TestAskValidatesInput(t *testing.T) {
	f := newFixture(t, Config{})

	_, _, err := f.session.Ask(context.Background(), "alice", "  ")
	assert.ErrorIs(t, err, apperror.ErrInvalidInput)

	_, _, err = f.session.Ask(context.Background(), "../bob", "hi")
	assert.ErrorIs(t, err, apperror.ErrInvalidInput)
}

func TestHistoryIsolationAndReset(t *testing.T) {
	f := newFixture(t, Config{})

	_, _, err := f.session.Ask(context.Background(), "alice", "refund?")
	require.NoError(t, err)

	assert.Len(t, f.session.History("alice"), 2)
	assert.Empty(t, f.session.History("bob"))

	f.session.Reset("alice")
	assert.Empty(t, f.session.History("alice"))
}
