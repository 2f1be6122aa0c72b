package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docubot-be/internal/dto"
	"docubot-be/internal/pkg/logger"
	"docubot-be/internal/repository/memory"
	"docubot-be/pkg/apperror"
	"docubot-be/pkg/embedding"
	"docubot-be/pkg/events"
	"docubot-be/pkg/extractor"
	"docubot-be/pkg/listening"
	"docubot-be/pkg/llm"
	"docubot-be/pkg/rag/session"
	"docubot-be/pkg/utils"
	"docubot-be/pkg/vectorstore"
)

var topics = []string{"refund", "shipping", "warranty"}

type keywordService struct {
	err error
}

func (k *keywordService) Embed(_ context.Context, text string) ([]float32, error) {
	if k.err != nil {
		return nil, k.err
	}
	vec := make([]float32, len(topics))
	lower := strings.ToLower(text)
	for i, topic := range topics {
		if strings.Contains(lower, topic) {
			vec[i] = 1
		}
	}
	return vec, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recordingPublisher) Publish(_ context.Context, event events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingPublisher) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.EventType())
	}
	return out
}

type fixedCompleter struct {
	reply string
	err   error
}

func (f *fixedCompleter) Chat(context.Context, []llm.Message, ...llm.Option) (string, error) {
	return f.reply, f.err
}

func (f *fixedCompleter) Generate(context.Context, string, ...llm.Option) (string, error) {
	return f.reply, f.err
}

type pipeline struct {
	documents IDocumentService
	chat      IChatService
	embedSvc  *keywordService
	publisher *recordingPublisher
	completer *fixedCompleter
}

func newPipeline(t *testing.T) *pipeline {
	t.Helper()
	log := logger.NewNop()

	manager, err := vectorstore.NewManager(vectorstore.NewMemoryBackend(), 8, log)
	require.NoError(t, err)

	p := &pipeline{
		embedSvc:  &keywordService{},
		publisher: &recordingPublisher{},
		completer: &fixedCompleter{reply: "Refunds take 5 days."},
	}
	strategy := embedding.NewStrategy(embedding.ModePerText, p.embedSvc)
	p.documents = NewDocumentService(
		extractor.New(log),
		strategy,
		manager,
		p.publisher,
		SplitConfig{Policy: utils.SplitSentence, ChunkSize: 500, ChunkOverlap: 50},
		log,
	)
	sess := session.New(strategy, manager, p.completer, memory.NewConversationRepository(time.Hour), session.Config{}, log)
	p.chat = NewChatService(sess)
	return p
}

func TestIndexThenAsk(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()

	doc := "Refunds are processed in 5 days. Shipping takes a week. Warranty lasts a year."
	res, err := p.documents.Index(ctx, "alice", "faq.txt", strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, 3, res.Passages)
	assert.Equal(t, 3, res.Total)
	assert.Equal(t, 3, res.Dimension)
	assert.True(t, res.Created)
	assert.Equal(t, []string{events.TypeDocumentIndexed}, p.publisher.types())

	answer, err := p.chat.Ask(ctx, &dto.AskRequest{UserID: "alice", Query: "How long do refunds take?"})
	require.NoError(t, err)
	assert.Equal(t, "Refunds take 5 days.", answer.Answer)
	assert.Equal(t, "hit", answer.Retrieval)
	require.NotEmpty(t, answer.Passages)
	assert.Equal(t, "Refunds are processed in 5 days", answer.Passages[0].Text)
	assert.Equal(t, "faq.txt", answer.Passages[0].Source)
	require.Len(t, answer.History, 2)
	assert.Equal(t, llm.RoleUser, answer.History[0].Role)
	assert.Equal(t, llm.RoleAssistant, answer.History[1].Role)

	history, err := p.chat.History(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, history.History, 2)

	require.NoError(t, p.chat.Reset(ctx, "alice"))
	history, err = p.chat.History(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, history.History)
}

func TestIndexPDFThenAsk(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()

	pdf := buildPDF(t, "Refunds are processed in 5 days. Shipping takes a week.")
	res, err := p.documents.Index(ctx, "alice", "policy.pdf", bytes.NewReader(pdf))
	require.NoError(t, err)
	assert.Positive(t, res.Passages)
	assert.True(t, res.Created)
	assert.Equal(t, []string{events.TypeDocumentIndexed}, p.publisher.types())

	answer, err := p.chat.Ask(ctx, &dto.AskRequest{UserID: "alice", Query: "How long do refunds take?"})
	require.NoError(t, err)
	assert.Equal(t, "Refunds take 5 days.", answer.Answer)
	assert.Equal(t, "hit", answer.Retrieval)
	require.NotEmpty(t, answer.Passages)
	assert.Contains(t, answer.Passages[0].Text, "Refunds are processed in 5 days")
	assert.Equal(t, "policy.pdf", answer.Passages[0].Source)
}

func TestIndexSecondDocumentAppends(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()

	_, err := p.documents.Index(ctx, "alice", "a.txt", strings.NewReader("Refunds are quick."))
	require.NoError(t, err)
	res, err := p.documents.Index(ctx, "alice", "b.txt", strings.NewReader("Shipping is slow."))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Passages)
	assert.Equal(t, 2, res.Total)
	assert.False(t, res.Created)

	stats, err := p.documents.Stats(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Passages)

	require.NoError(t, p.documents.Delete(ctx, "alice"))
	stats, err = p.documents.Stats(ctx, "alice")
	require.NoError(t, err)
	assert.Zero(t, stats.Passages)
}

func TestIndexBlankDocumentAddsNothing(t *testing.T) {
	p := newPipeline(t)

	res, err := p.documents.Index(context.Background(), "alice", "blank.txt", strings.NewReader("  \n\n "))
	require.NoError(t, err)
	assert.Zero(t, res.Passages)
	assert.Zero(t, res.Total)
	assert.Empty(t, p.publisher.types())
}

func TestIndexErrors(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()

	_, err := p.documents.Index(ctx, "alice", "deck.pptx", strings.NewReader("x"))
	assert.ErrorIs(t, err, apperror.ErrUnsupportedFormat)

	_, err = p.documents.Index(ctx, "../etc", "a.txt", strings.NewReader("x"))
	assert.ErrorIs(t, err, apperror.ErrInvalidInput)

	p.embedSvc.err = apperror.New(apperror.ErrEmbeddingService, "down")
	_, err = p.documents.Index(ctx, "alice", "a.txt", strings.NewReader("Refunds."))
	assert.ErrorIs(t, err, apperror.ErrEmbeddingService)

	stats, err := p.documents.Stats(ctx, "alice")
	require.NoError(t, err)
	assert.Zero(t, stats.Passages)
}

func TestAskWithoutDocuments(t *testing.T) {
	p := newPipeline(t)

	answer, err := p.chat.Ask(context.Background(), &dto.AskRequest{UserID: "bob", Query: "refund?"})
	require.NoError(t, err)
	assert.Equal(t, "empty", answer.Retrieval)
	assert.Empty(t, answer.Context)
}

func TestAskCompletionFailureFallsBack(t *testing.T) {
	p := newPipeline(t)
	p.completer.err = errors.New("connection refused")

	answer, err := p.chat.Ask(context.Background(), &dto.AskRequest{UserID: "bob", Query: "refund?"})
	require.NoError(t, err)
	assert.True(t, answer.Fallback)
	assert.Equal(t, session.DefaultFallbackAnswer, answer.Answer)
}

func TestConversationStartEnd(t *testing.T) {
	publisher := &recordingPublisher{}
	ctrl := listening.NewController(
		listening.SinkFunc(func(context.Context, listening.CaptureEvent) error { return nil }),
		listening.Config{Interval: 5 * time.Millisecond, StopTimeout: time.Second},
		logger.NewNop(),
	)
	svc := NewConversationService(ctrl, publisher, logger.NewNop())
	ctx := context.Background()

	res, err := svc.Start(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, res.Started)
	assert.Equal(t, "listening", res.State)

	res, err = svc.Start(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, res.Started)
	assert.Equal(t, []string{"alice"}, svc.Active(ctx).Users)

	res, err = svc.End(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "idle", res.State)

	res, err = svc.End(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "idle", res.State)

	assert.Equal(t, []string{events.TypeConversationStarted, events.TypeConversationEnded}, publisher.types())

	_, err = svc.Start(ctx, "")
	assert.ErrorIs(t, err, apperror.ErrInvalidInput)
}

type forwarderFunc func(ev listening.CaptureEvent)

func (f forwarderFunc) DeliverCapture(ev listening.CaptureEvent) { f(ev) }

func TestConsumerForwardsCaptureEvents(t *testing.T) {
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	defer pubSub.Close()

	got := make(chan listening.CaptureEvent, 1)
	consumer := NewConsumerService(pubSub, "capture.events", forwarderFunc(func(ev listening.CaptureEvent) {
		got <- ev
	}), logger.NewNop(), logger.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, consumer.Consume(ctx))

	sink := listening.NewWatermillSink(pubSub, "capture.events")
	require.NoError(t, sink.Emit(ctx, listening.CaptureEvent{UserID: "alice", Seq: 7, At: time.Now()}))

	select {
	case ev := <-got:
		assert.Equal(t, "alice", ev.UserID)
		assert.Equal(t, uint64(7), ev.Seq)
	case <-time.After(2 * time.Second):
		t.Fatal("capture event not forwarded")
	}
}

// buildPDF writes a single page PDF showing text in Helvetica.
func buildPDF(t *testing.T, text string) []byte {
	t.Helper()

	stream := fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", text)
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 4 0 R /Resources << /Font << /F1 5 0 R >> >> >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")

	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xrefAt := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xrefAt)

	return buf.Bytes()
}
