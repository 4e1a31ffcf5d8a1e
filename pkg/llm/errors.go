package llm

import (
	"errors"
	"fmt"
)

// EmbeddingError wraps a failure from an embedding provider. Transient
// failures (timeouts, rate limits, 5xx responses) may be retried.
type EmbeddingError struct {
	Provider  string
	Transient bool
	Err       error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embedding provider %s: %v", e.Provider, e.Err)
}

func (e *EmbeddingError) Unwrap() error { return e.Err }

// GenerationError wraps a failure from a chat provider.
type GenerationError struct {
	Provider  string
	Transient bool
	Err       error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("chat provider %s: %v", e.Provider, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// IsTransient reports whether err is a provider error marked as transient.
func IsTransient(err error) bool {
	var ee *EmbeddingError
	if errors.As(err, &ee) {
		return ee.Transient
	}
	var ge *GenerationError
	if errors.As(err, &ge) {
		return ge.Transient
	}
	return false
}
