// Package apperror holds the error kinds shared by the retrieval pipeline.
// Callers match on them with errors.Is; detail is attached with New and Wrap.
package apperror

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput is returned for a missing upload, empty content or a malformed identifier.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedFormat is returned when a filename has no known extension.
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrExtraction wraps a parser failure for a recognised format.
	ErrExtraction = errors.New("extraction failed")

	// ErrEmbeddingService covers transport failures, non-success status and
	// responses without an embedding.
	ErrEmbeddingService = errors.New("embedding service error")

	// ErrDimensionMismatch is returned when a vector size disagrees with its store.
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrLengthMismatch is returned when texts and vectors are not paired one to one.
	ErrLengthMismatch = errors.New("length mismatch")

	// ErrEmptyStore is returned when searching a store that holds no passages.
	ErrEmptyStore = errors.New("empty store")

	// ErrCompletionService covers failures of the completion backend.
	ErrCompletionService = errors.New("completion service error")

	// ErrStopTimeout is returned when a capture loop does not exit within the stop deadline.
	ErrStopTimeout = errors.New("stop timeout")
)

// New returns an error of the given kind carrying msg.
func New(kind error, msg string) error {
	return fmt.Errorf("%w: %s", kind, msg)
}

// Newf is New with formatting.
func Newf(kind error, format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))
}

// Wrap classifies err under kind. Both remain reachable through errors.Is.
func Wrap(kind error, msg string, err error) error {
	if err == nil {
		return New(kind, msg)
	}
	return fmt.Errorf("%w: %s: %w", kind, msg, err)
}

// Kind reports which known kind err belongs to, or nil.
func Kind(err error) error {
	for _, k := range []error{
		ErrInvalidInput,
		ErrUnsupportedFormat,
		ErrExtraction,
		ErrEmbeddingService,
		ErrDimensionMismatch,
		ErrLengthMismatch,
		ErrEmptyStore,
		ErrCompletionService,
		ErrStopTimeout,
	} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
