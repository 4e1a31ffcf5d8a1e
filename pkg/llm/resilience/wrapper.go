package resilience

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/kart-io/docchat/pkg/llm"
)

// ResilientEmbeddingProvider wraps an embedding provider with retries.
type ResilientEmbeddingProvider struct {
	provider llm.EmbeddingProvider
	retry    *RetryConfig
}

// NewResilientEmbeddingProvider creates a retrying embedding provider.
func NewResilientEmbeddingProvider(provider llm.EmbeddingProvider, retryConfig *RetryConfig) *ResilientEmbeddingProvider {
	if retryConfig == nil {
		retryConfig = DefaultRetryConfig()
	}
	if retryConfig.RetryableErrors == nil {
		retryConfig.RetryableErrors = IsRetryableError
	}

	return &ResilientEmbeddingProvider{
		provider: provider,
		retry:    retryConfig,
	}
}

// Embed generates embeddings for a batch of texts with retries.
func (r *ResilientEmbeddingProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	var result [][]float32

	err := RetryWithBackoff(ctx, r.retry, func() error {
		var callErr error
		result, callErr = r.provider.Embed(ctx, texts)
		return callErr
	})

	return result, err
}

// EmbedSingle generates an embedding for a single text with retries.
func (r *ResilientEmbeddingProvider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	var result []float32

	err := RetryWithBackoff(ctx, r.retry, func() error {
		var callErr error
		result, callErr = r.provider.EmbedSingle(ctx, text)
		return callErr
	})

	return result, err
}

// Name returns the provider name.
func (r *ResilientEmbeddingProvider) Name() string {
	return r.provider.Name() + "-resilient"
}

// ResilientChatProvider wraps a chat provider with retries.
type ResilientChatProvider struct {
	provider llm.ChatProvider
	retry    *RetryConfig
}

// NewResilientChatProvider creates a retrying chat provider.
func NewResilientChatProvider(provider llm.ChatProvider, retryConfig *RetryConfig) *ResilientChatProvider {
	if retryConfig == nil {
		retryConfig = DefaultRetryConfig()
	}
	if retryConfig.RetryableErrors == nil {
		retryConfig.RetryableErrors = IsRetryableError
	}

	return &ResilientChatProvider{
		provider: provider,
		retry:    retryConfig,
	}
}

// Chat runs a multi-turn conversation with retries.
func (r *ResilientChatProvider) Chat(ctx context.Context, messages []llm.Message) (string, error) {
	var result string

	err := RetryWithBackoff(ctx, r.retry, func() error {
		var callErr error
		result, callErr = r.provider.Chat(ctx, messages)
		return callErr
	})

	return result, err
}

// Generate produces a single-turn completion with retries.
func (r *ResilientChatProvider) Generate(ctx context.Context, prompt string, systemPrompt string) (string, error) {
	var result string

	err := RetryWithBackoff(ctx, r.retry, func() error {
		var callErr error
		result, callErr = r.provider.Generate(ctx, prompt, systemPrompt)
		return callErr
	})

	return result, err
}

// Name returns the provider name.
func (r *ResilientChatProvider) Name() string {
	return r.provider.Name() + "-resilient"
}

// IsRetryableError classifies an error as retryable or not.
// Provider errors carry an explicit transient flag; otherwise network
// timeouts, connection failures, and throttling responses are retryable.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	// Typed provider errors classify themselves.
	var ee *llm.EmbeddingError
	if errors.As(err, &ee) {
		return ee.Transient
	}
	var ge *llm.GenerationError
	if errors.As(err, &ge) {
		return ge.Transient
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	errMsg := err.Error()
	switch {
	case strings.Contains(errMsg, "status code 5"):
		return true
	case strings.Contains(errMsg, "status code 429"), strings.Contains(errMsg, "rate limit"):
		return true
	case strings.Contains(errMsg, "status code 408"):
		return true
	case strings.Contains(errMsg, "EOF"), strings.Contains(errMsg, "connection reset"):
		return true
	}

	return false
}
