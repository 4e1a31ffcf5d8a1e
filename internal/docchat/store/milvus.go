package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/milvus-io/milvus/client/v2/entity"

	"github.com/kart-io/docchat/pkg/component/milvus"
)

// chunk content longer than this cannot be stored in the VARCHAR field.
const maxContentLen = 65535

// MilvusIndex is a VectorIndex backed by a Milvus collection. It behaves
// exactly like MemoryIndex from the caller's perspective: Build populates a
// fresh collection, Search returns cosine distances. Each index owns its
// own collection, named after the document under a shared prefix, so
// building a new index never touches the collection a live session is
// still searching.
type MilvusIndex struct {
	client *milvus.Client
	prefix string

	mu         sync.RWMutex
	collection string
	dim        int
	n          int
}

// NewMilvusIndex creates a Milvus-backed index. The collection itself is
// created by Build once the document is known.
func NewMilvusIndex(client *milvus.Client, prefix string) *MilvusIndex {
	return &MilvusIndex{
		client: client,
		prefix: prefix,
	}
}

// Name identifies the backend.
func (m *MilvusIndex) Name() string { return "milvus" }

// collectionName derives the per-document collection name. Milvus accepts
// only letters, digits, and underscores in collection names, so anything
// else in the document ID maps to an underscore.
func collectionName(prefix, documentID string) string {
	var sb strings.Builder
	sb.WriteString(prefix)
	sb.WriteByte('_')
	for _, r := range documentID {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			sb.WriteRune(r)
		default:
			sb.WriteByte('_')
		}
	}
	return sb.String()
}

// Build creates a dedicated collection for the document and inserts all
// chunks into it. A previous index keeps serving from its own collection
// while this runs; on insert failure only the new collection is removed.
func (m *MilvusIndex) Build(ctx context.Context, documentID string, chunks []Chunk, embeddings [][]float32) error {
	if len(chunks) != len(embeddings) {
		return fmt.Errorf("chunk/embedding count mismatch: %d vs %d", len(chunks), len(embeddings))
	}
	if len(chunks) == 0 {
		return fmt.Errorf("cannot build an index from zero chunks")
	}

	dim := len(embeddings[0])
	for i, e := range embeddings {
		if len(e) != dim {
			return fmt.Errorf("%w: embedding %d has dimension %d, want %d",
				ErrDimensionMismatch, i, len(e), dim)
		}
	}
	for _, c := range chunks {
		if len(c.Content) > maxContentLen {
			return fmt.Errorf("chunk %s content exceeds %d bytes", c.ID, maxContentLen)
		}
	}

	name := collectionName(m.prefix, documentID)

	// A leftover collection with this name can only come from a crashed
	// build of the same document; replace it.
	exists, err := m.client.HasCollection(ctx, name)
	if err != nil {
		return err
	}
	if exists {
		if err := m.client.DropCollection(ctx, name); err != nil {
			return err
		}
	}

	if err := m.client.CreateCollection(ctx, &milvus.CollectionSchema{
		Name:        name,
		Description: "document chat chunks",
		Dimension:   dim,
		MetaFields: []milvus.MetaField{
			{Name: "chunk_id", DataType: entity.FieldTypeVarChar, MaxLen: 128},
			{Name: "document_id", DataType: entity.FieldTypeVarChar, MaxLen: 128},
			{Name: "chunk_index", DataType: entity.FieldTypeInt64},
			{Name: "content", DataType: entity.FieldTypeVarChar, MaxLen: maxContentLen},
			{Name: "start_pos", DataType: entity.FieldTypeInt64},
			{Name: "end_pos", DataType: entity.FieldTypeInt64},
		},
	}); err != nil {
		return err
	}

	data := &milvus.InsertData{
		Embeddings: embeddings,
		Metadata: map[string][]any{
			"chunk_id":    make([]any, len(chunks)),
			"document_id": make([]any, len(chunks)),
			"chunk_index": make([]any, len(chunks)),
			"content":     make([]any, len(chunks)),
			"start_pos":   make([]any, len(chunks)),
			"end_pos":     make([]any, len(chunks)),
		},
	}
	for i, c := range chunks {
		data.Metadata["chunk_id"][i] = c.ID
		data.Metadata["document_id"][i] = c.DocumentID
		data.Metadata["chunk_index"][i] = int64(c.Index)
		data.Metadata["content"][i] = c.Content
		data.Metadata["start_pos"][i] = int64(c.Start)
		data.Metadata["end_pos"][i] = int64(c.End)
	}

	if _, err := m.client.Insert(ctx, name, data); err != nil {
		// Remove the half-built collection so the next search does not
		// observe partial content.
		_ = m.client.DropCollection(ctx, name)
		return err
	}

	m.mu.Lock()
	m.collection = name
	m.dim = dim
	m.n = len(chunks)
	m.mu.Unlock()

	return nil
}

var outputFields = []string{"chunk_id", "document_id", "chunk_index", "content", "start_pos", "end_pos"}

// Search queries the collection and converts Milvus COSINE similarity
// scores to cosine distances. Ties are re-broken by chunk index locally
// because Milvus gives no ordering guarantee for equal scores.
func (m *MilvusIndex) Search(ctx context.Context, embedding []float32, topK int) ([]SearchResult, error) {
	if topK <= 0 {
		return []SearchResult{}, nil
	}

	m.mu.RLock()
	name, dim, n := m.collection, m.dim, m.n
	m.mu.RUnlock()

	if name == "" || n == 0 {
		return []SearchResult{}, nil
	}
	if len(embedding) != dim {
		return nil, fmt.Errorf("%w: query has dimension %d, index has %d",
			ErrDimensionMismatch, len(embedding), dim)
	}

	raw, err := m.client.Search(ctx, name, embedding, topK, outputFields)
	if err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, len(raw))
	for _, r := range raw {
		chunk := Chunk{}
		if v, ok := r.Metadata["chunk_id"].(string); ok {
			chunk.ID = v
		}
		if v, ok := r.Metadata["document_id"].(string); ok {
			chunk.DocumentID = v
		}
		if v, ok := r.Metadata["chunk_index"].(int64); ok {
			chunk.Index = int(v)
		}
		if v, ok := r.Metadata["content"].(string); ok {
			chunk.Content = v
		}
		if v, ok := r.Metadata["start_pos"].(int64); ok {
			chunk.Start = int(v)
		}
		if v, ok := r.Metadata["end_pos"].(int64); ok {
			chunk.End = int(v)
		}

		results = append(results, SearchResult{
			Chunk:    chunk,
			Distance: 1 - r.Score,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Distance != results[j].Distance {
			return results[i].Distance < results[j].Distance
		}
		return results[i].Chunk.Index < results[j].Chunk.Index
	})

	return results, nil
}

// Count returns the number of indexed chunks.
func (m *MilvusIndex) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.n, nil
}

// Close drops this index's own collection; the client itself is shared and
// closed by the server shutdown path.
func (m *MilvusIndex) Close(ctx context.Context) error {
	m.mu.Lock()
	name := m.collection
	m.collection = ""
	m.n = 0
	m.mu.Unlock()

	if name == "" {
		return nil
	}
	return m.client.DropCollection(ctx, name)
}
