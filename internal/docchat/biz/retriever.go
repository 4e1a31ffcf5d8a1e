package biz

import (
	"context"
	"time"

	"github.com/kart-io/docchat/internal/docchat/metrics"
	"github.com/kart-io/docchat/internal/docchat/store"
	"github.com/kart-io/docchat/pkg/llm"
)

// DefaultTopK is the default number of chunks retrieved per question.
const DefaultTopK = 4

// Retriever embeds a question and finds its nearest chunks in an index.
type Retriever struct {
	embedder llm.EmbeddingProvider
	topK     int
	metrics  *metrics.Metrics
}

// NewRetriever creates a retriever. Non-positive topK falls back to the
// default.
func NewRetriever(embedder llm.EmbeddingProvider, topK int) *Retriever {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Retriever{
		embedder: embedder,
		topK:     topK,
		metrics:  metrics.Get(),
	}
}

// Retrieve returns up to topK chunks nearest to the question, nearest
// first. An index with no content yields store.ErrEmptyIndex.
func (r *Retriever) Retrieve(ctx context.Context, idx store.VectorIndex, question string) ([]store.SearchResult, error) {
	count, err := idx.Count(ctx)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, store.ErrEmptyIndex
	}

	start := time.Now()

	vec, err := r.embedder.EmbedSingle(ctx, question)
	if err != nil {
		return nil, err
	}

	results, err := idx.Search(ctx, vec, r.topK)
	if err != nil {
		return nil, err
	}

	r.metrics.RecordRetrieval(time.Since(start))

	return results, nil
}

// TopK returns the configured retrieval width.
func (r *Retriever) TopK() int { return r.topK }
