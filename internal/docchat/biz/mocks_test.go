package biz

import (
	"context"
	"hash/fnv"
	"sync"

	"github.com/kart-io/docchat/pkg/llm"
)

// mockEmbedder produces deterministic embeddings derived from the text, so
// identical texts map to identical vectors and different texts almost
// always differ. Safe for concurrent use.
type mockEmbedder struct {
	dim int

	mu    sync.Mutex
	err   error
	calls int
}

func newMockEmbedder(dim int) *mockEmbedder {
	return &mockEmbedder{dim: dim}
}

func (m *mockEmbedder) failWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *mockEmbedder) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *mockEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	m.calls++
	err := m.err
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}

	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = m.vector(t)
	}
	return out, nil
}

func (m *mockEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	vecs, err := m.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (m *mockEmbedder) Name() string { return "mock-embedder" }

func (m *mockEmbedder) vector(text string) []float32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum32()

	v := make([]float32, m.dim)
	for i := range v {
		seed = seed*1664525 + 1013904223
		v[i] = float32(seed%1000)/1000.0 + 0.001
	}
	return v
}

// mockChat returns a canned response, a canned error, or delegates to fn.
// Prompts are recorded for inspection.
type mockChat struct {
	response string
	err      error
	fn       func(prompt, systemPrompt string) (string, error)

	mu      sync.Mutex
	prompts []string
}

func (m *mockChat) Chat(ctx context.Context, messages []llm.Message) (string, error) {
	var prompt string
	if len(messages) > 0 {
		prompt = messages[len(messages)-1].Content
	}
	return m.Generate(ctx, prompt, "")
}

func (m *mockChat) Generate(_ context.Context, prompt, systemPrompt string) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()

	if m.fn != nil {
		return m.fn(prompt, systemPrompt)
	}
	if m.err != nil {
		return "", m.err
	}
	return m.response, nil
}

func (m *mockChat) Name() string { return "mock-chat" }

func (m *mockChat) promptCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

func (m *mockChat) lastPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.prompts) == 0 {
		return ""
	}
	return m.prompts[len(m.prompts)-1]
}
