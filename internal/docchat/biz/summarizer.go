package biz

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/kart-io/logger"

	"github.com/kart-io/docchat/internal/docchat/metrics"
	"github.com/kart-io/docchat/pkg/llm"
)

const (
	// DefaultSummaryBudget is the largest text (in Unicode characters)
	// summarized in a single call.
	DefaultSummaryBudget = 8000

	// maxSummaryRounds bounds the reduce iterations. Each round shrinks
	// the material, so hitting the bound means the model is not
	// compressing and there is no point continuing.
	maxSummaryRounds = 8
)

const summarySystemPrompt = `You summarize documents. Write a clear, factual
summary of the provided text in a few short paragraphs. Do not add
information that is not in the text. Answer in the language of the text.`

const partialSummaryPrompt = `Summarize the following part of a larger
document in a short paragraph, keeping every important fact:

%s`

const mergeSummaryPrompt = `The following are summaries of consecutive
parts of one document. Merge them into a single coherent summary:

%s`

// Summarizer produces a document summary with iterative map-reduce: pieces
// that fit the budget are summarized directly, larger documents are
// summarized part by part and the partial summaries merged, repeating
// until one summary remains.
type Summarizer struct {
	chat    llm.ChatProvider
	budget  int
	metrics *metrics.Metrics
}

// NewSummarizer creates a summarizer. Non-positive budgets fall back to
// the default.
func NewSummarizer(chat llm.ChatProvider, budget int) *Summarizer {
	if budget <= 0 {
		budget = DefaultSummaryBudget
	}
	return &Summarizer{
		chat:    chat,
		budget:  budget,
		metrics: metrics.Get(),
	}
}

// Summarize returns a summary of text. Small documents take one call;
// large ones are processed in budget-sized groups, iteratively, never
// recursively, so arbitrarily large inputs use bounded prompt sizes.
func (s *Summarizer) Summarize(ctx context.Context, text string) (string, error) {
	if utf8.RuneCountInString(text) <= s.budget {
		return s.generate(ctx, fmt.Sprintf(partialSummaryPrompt, text))
	}

	parts := splitByBudget(text, s.budget)

	for round := 0; len(parts) > 1; round++ {
		if round >= maxSummaryRounds {
			return "", fmt.Errorf("summary did not converge after %d rounds (%d parts left)",
				maxSummaryRounds, len(parts))
		}

		logger.Infow("summary round", "round", round, "parts", len(parts))

		groups := groupByBudget(parts, s.budget)
		next := make([]string, 0, len(groups))
		for _, group := range groups {
			material := strings.Join(group, "\n\n")
			prompt := partialSummaryPrompt
			if len(group) > 1 || round > 0 {
				prompt = mergeSummaryPrompt
			}
			summary, err := s.generate(ctx, fmt.Sprintf(prompt, material))
			if err != nil {
				return "", err
			}
			next = append(next, summary)
		}

		// Groups of budget-sized parts map one-to-one in the first round,
		// so progress is measured by total size, not part count.
		if totalRunes(next) >= totalRunes(parts) {
			return "", fmt.Errorf("summary is not shrinking: %d runes became %d",
				totalRunes(parts), totalRunes(next))
		}
		parts = next
	}

	return parts[0], nil
}

func (s *Summarizer) generate(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	out, err := s.chat.Generate(ctx, prompt, summarySystemPrompt)
	s.metrics.RecordLLMCall(time.Since(start), err)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func totalRunes(parts []string) int {
	n := 0
	for _, p := range parts {
		n += utf8.RuneCountInString(p)
	}
	return n
}

// splitByBudget cuts text into pieces of at most budget runes, preferring
// paragraph boundaries.
func splitByBudget(text string, budget int) []string {
	runes := []rune(text)
	var parts []string

	for start := 0; start < len(runes); {
		end := start + budget
		if end >= len(runes) {
			parts = append(parts, string(runes[start:]))
			break
		}

		cut := end
		for i := end; i > start+budget/2; i-- {
			if runes[i-1] == '\n' {
				cut = i
				break
			}
		}

		parts = append(parts, string(runes[start:cut]))
		start = cut
	}

	return parts
}

// groupByBudget packs consecutive parts into groups whose combined length
// stays within budget. Oversized single parts form their own group.
func groupByBudget(parts []string, budget int) [][]string {
	var groups [][]string
	var current []string
	size := 0

	for _, p := range parts {
		n := utf8.RuneCountInString(p)
		if len(current) > 0 && size+n > budget {
			groups = append(groups, current)
			current = nil
			size = 0
		}
		current = append(current, p)
		size += n
	}
	if len(current) > 0 {
		groups = append(groups, current)
	}

	return groups
}
