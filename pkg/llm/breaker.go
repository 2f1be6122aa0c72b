package llm

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"

	"docubot-be/pkg/apperror"
)

// BreakerProvider stops calling a failing backend for a cool-down period.
// While open, calls fail fast with ErrCompletionService.
type BreakerProvider struct {
	next LLMProvider
	cb   *gobreaker.CircuitBreaker
}

type BreakerSettings struct {
	Name             string
	MaxFailures      uint32
	OpenTimeout      time.Duration
	HalfOpenRequests uint32
}

func NewBreakerProvider(next LLMProvider, s BreakerSettings) *BreakerProvider {
	if s.MaxFailures == 0 {
		s.MaxFailures = 5
	}
	if s.OpenTimeout <= 0 {
		s.OpenTimeout = 30 * time.Second
	}
	if s.HalfOpenRequests == 0 {
		s.HalfOpenRequests = 1
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: s.HalfOpenRequests,
		Timeout:     s.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= s.MaxFailures
		},
		IsSuccessful: func(err error) bool {
			// a caller giving up is not a backend failure
			return err == nil || errors.Is(err, context.Canceled)
		},
	})

	return &BreakerProvider{next: next, cb: cb}
}

func (b *BreakerProvider) Chat(ctx context.Context, history []Message, opts ...Option) (string, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.Chat(ctx, history, opts...)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", apperror.Wrap(apperror.ErrCompletionService, "circuit open", err)
		}
		return "", err
	}
	return out.(string), nil
}

func (b *BreakerProvider) Generate(ctx context.Context, prompt string, opts ...Option) (string, error) {
	return b.Chat(ctx, []Message{{Role: RoleUser, Content: prompt}}, opts...)
}

func (b *BreakerProvider) State() string {
	return b.cb.State().String()
}
