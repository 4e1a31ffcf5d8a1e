package biz

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kart-io/docchat/internal/docchat/metrics"
	"github.com/kart-io/docchat/internal/docchat/store"
	"github.com/kart-io/docchat/internal/model"
	"github.com/kart-io/docchat/pkg/llm"
)

// DefaultSystemPrompt instructs the model to answer only from the provided
// document excerpts.
const DefaultSystemPrompt = `You are an assistant answering questions about a single document.
Answer using only the information in the provided excerpts. If the excerpts
do not contain the answer, say you cannot find it in the document. Be
concise and answer in the language of the question.`

// DefaultPromptTemplate renders the retrieval context, conversation
// history, and the question into the user prompt.
const DefaultPromptTemplate = `Document excerpts:
{{context}}

{{history}}Question: {{question}}`

// AnswerEngine generates grounded answers from retrieved chunks.
type AnswerEngine struct {
	chat         llm.ChatProvider
	systemPrompt string
	template     string
	metrics      *metrics.Metrics
}

// NewAnswerEngine creates an answer engine. Empty prompt arguments fall
// back to the defaults.
func NewAnswerEngine(chat llm.ChatProvider, systemPrompt, template string) *AnswerEngine {
	if systemPrompt == "" {
		systemPrompt = DefaultSystemPrompt
	}
	if template == "" {
		template = DefaultPromptTemplate
	}
	return &AnswerEngine{
		chat:         chat,
		systemPrompt: systemPrompt,
		template:     template,
		metrics:      metrics.Get(),
	}
}

// Answer builds the prompt from the retrieved chunks and history and asks
// the chat provider. The returned sources reference the chunks that were
// given to the model, in retrieval order.
func (e *AnswerEngine) Answer(ctx context.Context, question string, history []model.Turn, results []store.SearchResult) (string, []model.ChunkRef, error) {
	deduped := dedupeResults(results)

	prompt := e.template
	prompt = strings.ReplaceAll(prompt, "{{context}}", renderContext(deduped))
	prompt = strings.ReplaceAll(prompt, "{{history}}", renderHistory(history))
	prompt = strings.ReplaceAll(prompt, "{{question}}", question)

	start := time.Now()
	answer, err := e.chat.Generate(ctx, prompt, e.systemPrompt)
	e.metrics.RecordLLMCall(time.Since(start), err)
	if err != nil {
		return "", nil, err
	}

	sources := make([]model.ChunkRef, len(deduped))
	for i, r := range deduped {
		sources[i] = model.ChunkRef{
			ChunkID:  r.Chunk.ID,
			Index:    r.Chunk.Index,
			Content:  r.Chunk.Content,
			Distance: r.Distance,
		}
	}

	return strings.TrimSpace(answer), sources, nil
}

// dedupeResults drops repeated chunks, keeping the first (nearest)
// occurrence of each chunk ID.
func dedupeResults(results []store.SearchResult) []store.SearchResult {
	seen := make(map[string]bool, len(results))
	out := make([]store.SearchResult, 0, len(results))
	for _, r := range results {
		if seen[r.Chunk.ID] {
			continue
		}
		seen[r.Chunk.ID] = true
		out = append(out, r)
	}
	return out
}

// renderContext concatenates the chunk texts in retrieval order. When two
// retrieved chunks cover overlapping spans of the document, the repeated
// edge of the later chunk is trimmed using the rune offsets, whichever
// side the overlap falls on, so the model never sees the same passage
// twice.
func renderContext(results []store.SearchResult) string {
	type span struct{ start, end int }
	var covered []span

	var sb strings.Builder
	n := 0
	for _, r := range results {
		start, end := r.Chunk.Start, r.Chunk.End

		// Longest covered prefix of this chunk's span. Iterate to a
		// fixpoint because covered spans are not sorted.
		trimmed := start
		for changed := true; changed; {
			changed = false
			for _, s := range covered {
				if s.start <= trimmed && trimmed < s.end {
					trimmed = s.end
					changed = true
				}
			}
		}

		// Longest covered suffix, same fixpoint from the other edge. This
		// clips the repeat when the higher-index chunk ranked nearer and
		// was rendered first.
		clipped := end
		for changed := true; changed; {
			changed = false
			for _, s := range covered {
				if s.start < clipped && clipped <= s.end {
					clipped = s.start
					changed = true
				}
			}
		}
		if trimmed >= clipped {
			continue // fully contained in already included text
		}

		content := r.Chunk.Content
		if trimmed > start || clipped < end {
			content = string([]rune(content)[trimmed-start : clipped-start])
		}

		if n > 0 {
			sb.WriteString("\n---\n")
		}
		sb.WriteString(fmt.Sprintf("[%d] ", r.Chunk.Index+1))
		sb.WriteString(content)
		n++

		covered = append(covered, span{start: trimmed, end: clipped})
	}

	return sb.String()
}

// renderHistory formats prior turns oldest first, ready to sit above the
// question. Returns "" when there is no history.
func renderHistory(history []model.Turn) string {
	if len(history) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("Conversation so far:\n")
	for _, t := range history {
		sb.WriteString("Q: ")
		sb.WriteString(t.Question)
		sb.WriteString("\nA: ")
		sb.WriteString(t.Answer)
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
	return sb.String()
}
