// Package store defines the vector index abstraction and its backends.
package store

import (
	"context"
	"errors"
)

var (
	// ErrDimensionMismatch is returned when an embedding's dimension does
	// not match the dimension the index was built with.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrEmptyIndex is returned by operations that require an indexed
	// document when none has been indexed yet.
	ErrEmptyIndex = errors.New("no document has been indexed")
)

// Chunk is one contiguous span of document text.
type Chunk struct {
	// ID uniquely identifies the chunk within the document.
	ID string `json:"id"`

	// DocumentID is the owning document's ID.
	DocumentID string `json:"document_id"`

	// Index is the chunk's position in the split sequence, starting at 0.
	Index int `json:"index"`

	// Content is the chunk text.
	Content string `json:"content"`

	// Start and End are the chunk's rune offsets in the document text.
	// Consecutive chunks overlap: Start of chunk n+1 is End of chunk n
	// minus the configured overlap.
	Start int `json:"start"`
	End   int `json:"end"`
}

// SearchResult is one retrieved chunk with its cosine distance from the
// query embedding. Distance is 1 - cosine similarity, so 0 is an exact
// directional match and smaller is closer.
type SearchResult struct {
	Chunk    Chunk   `json:"chunk"`
	Distance float32 `json:"distance"`
}

// VectorIndex stores the embedded chunks of exactly one document.
//
// Build is all-or-nothing: either the full chunk set becomes visible
// atomically or the index keeps its previous content. Search never observes
// a partially built state.
type VectorIndex interface {
	// Name identifies the backend.
	Name() string

	// Build replaces the index content with the given chunks and their
	// embeddings. len(chunks) must equal len(embeddings) and all
	// embeddings must share one dimension.
	Build(ctx context.Context, documentID string, chunks []Chunk, embeddings [][]float32) error

	// Search returns up to topK chunks nearest to the query embedding,
	// ordered by ascending distance with ties broken by ascending chunk
	// index. Searching an empty index returns an empty slice.
	Search(ctx context.Context, embedding []float32, topK int) ([]SearchResult, error)

	// Count returns the number of indexed chunks.
	Count(ctx context.Context) (int, error)

	// Close releases backend resources.
	Close(ctx context.Context) error
}
