// Package biz implements the document chat pipeline: splitting, indexing,
// retrieval, answering, summarization, and question suggestion.
package biz

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/kart-io/docchat/internal/docchat/extract"
	"github.com/kart-io/docchat/internal/docchat/store"
)

// Chunker splits document text into overlapping chunks measured in Unicode
// characters. Cut points prefer paragraph breaks, then sentence ends, then
// word boundaries, falling back to a hard cut.
type Chunker struct {
	size    int
	overlap int
}

// NewChunker creates a chunker. size must be positive and overlap must be
// smaller than size.
func NewChunker(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("chunk overlap must be in [0, %d), got %d", size, overlap)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Split cuts text into chunks of at most the configured size, each
// overlapping its predecessor by exactly the configured overlap. Offsets
// are rune positions, so concatenating the chunks with the overlap removed
// reproduces the input exactly.
func (c *Chunker) Split(documentID, text string) ([]store.Chunk, error) {
	if strings.TrimSpace(text) == "" {
		return nil, extract.ErrEmptyText
	}

	runes := []rune(text)
	if len(runes) <= c.size {
		return []store.Chunk{{
			ID:         chunkID(documentID, 0),
			DocumentID: documentID,
			Index:      0,
			Content:    text,
			Start:      0,
			End:        len(runes),
		}}, nil
	}

	var chunks []store.Chunk
	start := 0
	for {
		end := start + c.size
		if end >= len(runes) {
			chunks = append(chunks, makeChunk(documentID, len(chunks), runes, start, len(runes)))
			break
		}

		cut := c.cutPoint(runes, start, end)
		// The next chunk starts at cut-overlap; the cut must leave room
		// to move forward or splitting would loop.
		if cut-c.overlap <= start {
			cut = end
		}

		chunks = append(chunks, makeChunk(documentID, len(chunks), runes, start, cut))
		start = cut - c.overlap
	}

	return chunks, nil
}

// Size returns the configured chunk size.
func (c *Chunker) Size() int { return c.size }

// Overlap returns the configured overlap.
func (c *Chunker) Overlap() int { return c.overlap }

// cutPoint searches backward from end for the best boundary to cut at.
// It never cuts below half the chunk size, so heavily fragmented text still
// produces reasonably sized chunks.
func (c *Chunker) cutPoint(runes []rune, start, end int) int {
	limit := start + c.size/2
	if limit <= start {
		limit = start + 1
	}

	// Paragraph break: cut right after a blank line.
	for i := end; i > limit; i-- {
		if runes[i-1] == '\n' && runes[i-2] == '\n' {
			return i
		}
	}

	// Sentence end: terminal punctuation followed by whitespace, or a
	// full-width terminator.
	for i := end; i > limit; i-- {
		r := runes[i-1]
		if r == '。' || r == '！' || r == '？' {
			return i
		}
		if (r == '.' || r == '!' || r == '?') && unicode.IsSpace(runes[i]) {
			return i
		}
	}

	// Word boundary.
	for i := end; i > limit; i-- {
		if unicode.IsSpace(runes[i-1]) {
			return i
		}
	}

	// Hard cut.
	return end
}

func makeChunk(documentID string, index int, runes []rune, start, end int) store.Chunk {
	return store.Chunk{
		ID:         chunkID(documentID, index),
		DocumentID: documentID,
		Index:      index,
		Content:    string(runes[start:end]),
		Start:      start,
		End:        end,
	}
}

func chunkID(documentID string, index int) string {
	return fmt.Sprintf("%s-%04d", documentID, index)
}
