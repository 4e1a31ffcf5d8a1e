package store

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// MemoryIndex is the default in-process vector index. It holds the embedded
// chunks of one document and serves exact brute-force cosine search, which
// is plenty for single-document corpora.
type MemoryIndex struct {
	mu         sync.RWMutex
	documentID string
	chunks     []Chunk
	vectors    [][]float32
	norms      []float64
	dim        int
}

// NewMemoryIndex creates an empty in-memory index.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{}
}

// Name identifies the backend.
func (m *MemoryIndex) Name() string { return "memory" }

// Build validates and precomputes everything before taking the write lock,
// so concurrent searches either see the old content or the complete new
// content, never a partial state.
func (m *MemoryIndex) Build(_ context.Context, documentID string, chunks []Chunk, embeddings [][]float32) error {
	if len(chunks) != len(embeddings) {
		return fmt.Errorf("chunk/embedding count mismatch: %d vs %d", len(chunks), len(embeddings))
	}
	if len(chunks) == 0 {
		return fmt.Errorf("cannot build an index from zero chunks")
	}

	dim := len(embeddings[0])
	if dim == 0 {
		return fmt.Errorf("%w: empty embedding", ErrDimensionMismatch)
	}

	vectors := make([][]float32, len(embeddings))
	norms := make([]float64, len(embeddings))
	for i, e := range embeddings {
		if len(e) != dim {
			return fmt.Errorf("%w: embedding %d has dimension %d, want %d",
				ErrDimensionMismatch, i, len(e), dim)
		}
		vec := make([]float32, dim)
		copy(vec, e)
		vectors[i] = vec

		var norm float64
		for _, v := range vec {
			norm += float64(v) * float64(v)
		}
		norms[i] = math.Sqrt(norm)
	}

	copied := make([]Chunk, len(chunks))
	copy(copied, chunks)

	m.mu.Lock()
	m.documentID = documentID
	m.chunks = copied
	m.vectors = vectors
	m.norms = norms
	m.dim = dim
	m.mu.Unlock()

	return nil
}

// Search scores every chunk against the query embedding and returns the
// topK nearest by cosine distance. Equal distances are ordered by chunk
// index so results are deterministic.
func (m *MemoryIndex) Search(_ context.Context, embedding []float32, topK int) ([]SearchResult, error) {
	if topK <= 0 {
		return []SearchResult{}, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.chunks) == 0 {
		return []SearchResult{}, nil
	}
	if len(embedding) != m.dim {
		return nil, fmt.Errorf("%w: query has dimension %d, index has %d",
			ErrDimensionMismatch, len(embedding), m.dim)
	}

	var queryNorm float64
	for _, v := range embedding {
		queryNorm += float64(v) * float64(v)
	}
	queryNorm = math.Sqrt(queryNorm)

	results := make([]SearchResult, len(m.chunks))
	for i := range m.chunks {
		results[i] = SearchResult{
			Chunk:    m.chunks[i],
			Distance: cosineDistance(embedding, m.vectors[i], queryNorm, m.norms[i]),
		}
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Distance != results[j].Distance {
			return results[i].Distance < results[j].Distance
		}
		return results[i].Chunk.Index < results[j].Chunk.Index
	})

	if topK < len(results) {
		results = results[:topK]
	}
	return results, nil
}

// Count returns the number of indexed chunks.
func (m *MemoryIndex) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.chunks), nil
}

// Close is a no-op for the in-memory backend.
func (m *MemoryIndex) Close(_ context.Context) error { return nil }

// cosineDistance computes 1 - cosine similarity. Zero-norm vectors are
// treated as maximally distant.
func cosineDistance(a, b []float32, normA, normB float64) float32 {
	if normA == 0 || normB == 0 {
		return 1
	}

	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}

	return float32(1 - dot/(normA*normB))
}
