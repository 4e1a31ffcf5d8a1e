package biz

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/docchat/internal/docchat/metrics"
	"github.com/kart-io/docchat/pkg/llm"
)

// DefaultQuestionCount is how many suggested questions are requested.
const DefaultQuestionCount = 4

const suggestSystemPrompt = `You help readers explore a document by
proposing questions the document can answer.`

const suggestPromptTemplate = `Based on this document summary, propose %d
short, specific questions the document can answer. Write one question per
line with no numbering or bullets. Answer in the language of the summary.

Summary:
%s`

// QuestionSuggester proposes questions an uploaded document can answer.
// Suggestion is a best-effort nicety: it never fails the request, a
// generation error just yields an empty list.
type QuestionSuggester struct {
	chat    llm.ChatProvider
	count   int
	metrics *metrics.Metrics
}

// NewQuestionSuggester creates a suggester. Non-positive counts fall back
// to the default.
func NewQuestionSuggester(chat llm.ChatProvider, count int) *QuestionSuggester {
	if count <= 0 {
		count = DefaultQuestionCount
	}
	return &QuestionSuggester{
		chat:    chat,
		count:   count,
		metrics: metrics.Get(),
	}
}

// Suggest returns up to the configured number of questions derived from
// the document summary. On any failure it logs and returns an empty slice.
func (q *QuestionSuggester) Suggest(ctx context.Context, summary string) []string {
	prompt := fmt.Sprintf(suggestPromptTemplate, q.count, summary)

	start := time.Now()
	out, err := q.chat.Generate(ctx, prompt, suggestSystemPrompt)
	q.metrics.RecordLLMCall(time.Since(start), err)
	if err != nil {
		logger.Warnw("question suggestion failed", "error", err.Error())
		return []string{}
	}

	questions := parseQuestions(out, q.count)
	if len(questions) == 0 {
		logger.Warnw("question suggestion returned no usable lines")
	}
	return questions
}

// parseQuestions extracts question lines, stripping any numbering or
// bullets the model added despite the instructions.
func parseQuestions(out string, limit int) []string {
	questions := make([]string, 0, limit)

	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "-*•0123456789.) ")
		if line == "" {
			continue
		}
		questions = append(questions, line)
		if len(questions) == limit {
			break
		}
	}

	return questions
}
