// Package embedding maps text to dense vectors.
//
// A Service is one remote embedding call. An Embedder is what the indexing
// and query paths consume; PerText calls the Service once per input while
// Bound replays a single vector for every input.
package embedding

import (
	"context"
	"fmt"

	"docubot-be/pkg/apperror"
)

// Service performs exactly one external embedding request per call.
type Service interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Mode selects how passages of one document are embedded.
type Mode string

const (
	ModePerText Mode = "per_text"
	ModeBound   Mode = "bound"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModePerText, "":
		return ModePerText, nil
	case ModeBound:
		return ModeBound, nil
	default:
		return "", fmt.Errorf("unknown embedding mode %q", s)
	}
}

// PerText embeds every text with its own Service call.
type PerText struct {
	svc Service
}

func NewPerText(svc Service) *PerText {
	return &PerText{svc: svc}
}

func (p *PerText) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))
	for i, text := range texts {
		vec, err := p.svc.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embed passage %d: %w", i, err)
		}
		vectors = append(vectors, vec)
	}
	return vectors, nil
}

func (p *PerText) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return p.svc.Embed(ctx, text)
}

// Bound returns the vector it was built with for any input.
type Bound struct {
	vector []float32
}

func NewBound(vector []float32) *Bound {
	return &Bound{vector: vector}
}

// Bind embeds text once and binds the result.
func Bind(ctx context.Context, svc Service, text string) (*Bound, error) {
	vec, err := svc.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	return NewBound(vec), nil
}

func (b *Bound) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = b.copyVector()
	}
	return vectors, nil
}

func (b *Bound) EmbedQuery(context.Context, string) ([]float32, error) {
	return b.copyVector(), nil
}

func (b *Bound) copyVector() []float32 {
	out := make([]float32, len(b.vector))
	copy(out, b.vector)
	return out
}

// Strategy is the mode-aware entry point used by ingestion and retrieval.
type Strategy struct {
	Mode    Mode
	Service Service
}

func NewStrategy(mode Mode, svc Service) *Strategy {
	return &Strategy{Mode: mode, Service: svc}
}

// EmbedDocument returns one vector per passage. In bound mode fullText is
// embedded once and that vector is shared by every passage.
func (s *Strategy) EmbedDocument(ctx context.Context, fullText string, passages []string) ([][]float32, error) {
	if s.Mode == ModeBound {
		bound, err := Bind(ctx, s.Service, fullText)
		if err != nil {
			return nil, err
		}
		return bound.EmbedDocuments(ctx, passages)
	}
	return NewPerText(s.Service).EmbedDocuments(ctx, passages)
}

// EmbedQuery embeds a query with a single call in either mode.
func (s *Strategy) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	return s.Service.Embed(ctx, query)
}

// Normalizing scales every vector from the wrapped Service to unit length.
type Normalizing struct {
	next Service
}

func NewNormalizing(next Service) *Normalizing {
	return &Normalizing{next: next}
}

func (n *Normalizing) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := n.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	return normalizeVector(vec), nil
}

func emptyEmbedding(provider string) error {
	return apperror.Newf(apperror.ErrEmbeddingService, "%s returned no embedding", provider)
}
