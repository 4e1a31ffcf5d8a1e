package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildTestIndex(t *testing.T) *MemoryIndex {
	t.Helper()

	idx := NewMemoryIndex()
	chunks := []Chunk{
		{ID: "d-0000", DocumentID: "d", Index: 0, Content: "alpha", Start: 0, End: 5},
		{ID: "d-0001", DocumentID: "d", Index: 1, Content: "beta", Start: 5, End: 9},
		{ID: "d-0002", DocumentID: "d", Index: 2, Content: "gamma", Start: 9, End: 14},
	}
	embeddings := [][]float32{
		{1, 0, 0},
		{0, 1, 0},
		{0.7071, 0.7071, 0},
	}
	require.NoError(t, idx.Build(context.Background(), "d", chunks, embeddings))
	return idx
}

func TestMemoryIndex_SearchOrdering(t *testing.T) {
	idx := buildTestIndex(t)

	results, err := idx.Search(context.Background(), []float32{1, 0, 0}, 3)
	require.NoError(t, err)
	require.Len(t, results, 3)

	// Exact match first with distance ~0, then the diagonal, then the
	// orthogonal vector.
	assert.Equal(t, "d-0000", results[0].Chunk.ID)
	assert.InDelta(t, 0.0, results[0].Distance, 1e-5)
	assert.Equal(t, "d-0002", results[1].Chunk.ID)
	assert.Equal(t, "d-0001", results[2].Chunk.ID)

	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i].Distance, results[i-1].Distance)
	}
}

func TestMemoryIndex_TopKTruncation(t *testing.T) {
	idx := buildTestIndex(t)

	results, err := idx.Search(context.Background(), []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	assert.Len(t, results, 2)

	results, err = idx.Search(context.Background(), []float32{1, 0, 0}, 10)
	require.NoError(t, err)
	assert.Len(t, results, 3)
}

func TestMemoryIndex_TieBreakByChunkIndex(t *testing.T) {
	idx := NewMemoryIndex()
	chunks := []Chunk{
		{ID: "d-0000", Index: 0, Content: "a"},
		{ID: "d-0001", Index: 1, Content: "b"},
		{ID: "d-0002", Index: 2, Content: "c"},
	}
	// Identical vectors: every distance ties, document order must win.
	embeddings := [][]float32{{1, 1}, {1, 1}, {1, 1}}
	require.NoError(t, idx.Build(context.Background(), "d", chunks, embeddings))

	results, err := idx.Search(context.Background(), []float32{1, 1}, 3)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, 0, results[0].Chunk.Index)
	assert.Equal(t, 1, results[1].Chunk.Index)
	assert.Equal(t, 2, results[2].Chunk.Index)
}

func TestMemoryIndex_EmptyIndex(t *testing.T) {
	idx := NewMemoryIndex()

	results, err := idx.Search(context.Background(), []float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, results)

	n, err := idx.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMemoryIndex_DimensionMismatch(t *testing.T) {
	idx := buildTestIndex(t)

	_, err := idx.Search(context.Background(), []float32{1, 0}, 3)
	assert.True(t, errors.Is(err, ErrDimensionMismatch))
}

func TestMemoryIndex_BuildValidation(t *testing.T) {
	idx := NewMemoryIndex()

	chunks := []Chunk{{ID: "d-0000"}, {ID: "d-0001"}}

	// Count mismatch.
	err := idx.Build(context.Background(), "d", chunks, [][]float32{{1, 0}})
	assert.Error(t, err)

	// Ragged dimensions.
	err = idx.Build(context.Background(), "d", chunks, [][]float32{{1, 0}, {1, 0, 0}})
	assert.Error(t, err)

	// A failed build leaves the index empty.
	n, err := idx.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMemoryIndex_RebuildReplaces(t *testing.T) {
	idx := buildTestIndex(t)

	chunks := []Chunk{{ID: "e-0000", DocumentID: "e", Index: 0, Content: "delta"}}
	require.NoError(t, idx.Build(context.Background(), "e", chunks, [][]float32{{0, 0, 1}}))

	n, err := idx.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	results, err := idx.Search(context.Background(), []float32{0, 0, 1}, 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "e-0000", results[0].Chunk.ID)
}

func TestMemoryIndex_ZeroVectorQuery(t *testing.T) {
	idx := buildTestIndex(t)

	// A zero query has no direction; every chunk is maximally distant but
	// the search still succeeds.
	results, err := idx.Search(context.Background(), []float32{0, 0, 0}, 3)
	require.NoError(t, err)
	require.Len(t, results, 3)
	for _, r := range results {
		assert.InDelta(t, 1.0, r.Distance, 1e-5)
	}
}
