package biz

import (
	"context"
	"fmt"
	"sync"

	"github.com/kart-io/logger"
	"github.com/panjf2000/ants/v2"

	"github.com/kart-io/docchat/internal/docchat/store"
	"github.com/kart-io/docchat/internal/model"
	"github.com/kart-io/docchat/pkg/llm"
)

const (
	// DefaultEmbedBatchSize is how many chunks go into one embedding call.
	DefaultEmbedBatchSize = 16

	// DefaultEmbedWorkers is how many embedding calls run concurrently.
	DefaultEmbedWorkers = 4
)

// Indexer turns a document's text into an indexed chunk set. The whole
// operation is all-or-nothing: if any chunk fails to embed, nothing is
// written to the index.
type Indexer struct {
	chunker   *Chunker
	embedder  llm.EmbeddingProvider
	batchSize int
	pool      *ants.Pool
}

// NewIndexer creates an indexer with a worker pool for embedding batches.
func NewIndexer(chunker *Chunker, embedder llm.EmbeddingProvider, batchSize, workers int) (*Indexer, error) {
	if batchSize <= 0 {
		batchSize = DefaultEmbedBatchSize
	}
	if workers <= 0 {
		workers = DefaultEmbedWorkers
	}

	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, fmt.Errorf("create embedding worker pool: %w", err)
	}

	return &Indexer{
		chunker:   chunker,
		embedder:  embedder,
		batchSize: batchSize,
		pool:      pool,
	}, nil
}

// Index splits the document, embeds every chunk, and builds the target
// index. On any error the index keeps its previous content.
func (ix *Indexer) Index(ctx context.Context, doc *model.Document, idx store.VectorIndex) ([]store.Chunk, error) {
	chunks, err := ix.chunker.Split(doc.ID, doc.Text)
	if err != nil {
		return nil, err
	}

	embeddings, err := ix.embedAll(ctx, chunks)
	if err != nil {
		return nil, err
	}

	if err := idx.Build(ctx, doc.ID, chunks, embeddings); err != nil {
		return nil, err
	}

	logger.Infow("document indexed",
		"document_id", doc.ID,
		"chunks", len(chunks),
		"backend", idx.Name(),
	)

	return chunks, nil
}

// embedAll embeds the chunks in batches on the worker pool. Results land in
// a preallocated slice by offset so chunk order is preserved regardless of
// completion order. The first error wins and cancels the remaining batches.
func (ix *Indexer) embedAll(ctx context.Context, chunks []store.Chunk) ([][]float32, error) {
	embeddings := make([][]float32, len(chunks))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)

	for begin := 0; begin < len(chunks); begin += ix.batchSize {
		end := begin + ix.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}

		batch := chunks[begin:end]
		offset := begin

		wg.Add(1)
		submitErr := ix.pool.Submit(func() {
			defer wg.Done()

			if ctx.Err() != nil {
				return
			}

			texts := make([]string, len(batch))
			for i, c := range batch {
				texts[i] = c.Content
			}

			vecs, err := ix.embedder.Embed(ctx, texts)
			if err != nil {
				errOnce.Do(func() {
					firstErr = err
					cancel()
				})
				return
			}
			if len(vecs) != len(batch) {
				errOnce.Do(func() {
					firstErr = fmt.Errorf("embedding batch at %d: got %d vectors for %d texts",
						offset, len(vecs), len(batch))
					cancel()
				})
				return
			}

			copy(embeddings[offset:], vecs)
		})
		if submitErr != nil {
			wg.Done()
			errOnce.Do(func() {
				firstErr = fmt.Errorf("submit embedding batch: %w", submitErr)
				cancel()
			})
			break
		}
	}

	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return embeddings, nil
}

// Chunker exposes the underlying chunker configuration.
func (ix *Indexer) Chunker() *Chunker { return ix.chunker }

// Close releases the worker pool.
func (ix *Indexer) Close() {
	ix.pool.Release()
}
