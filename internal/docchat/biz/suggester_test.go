package biz

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuestionSuggester_Suggest(t *testing.T) {
	chat := &mockChat{response: "What is the topic?\nWho wrote it?\nWhen was it published?"}
	q := NewQuestionSuggester(chat, 4)

	questions := q.Suggest(context.Background(), "a summary")
	assert.Equal(t, []string{
		"What is the topic?",
		"Who wrote it?",
		"When was it published?",
	}, questions)
}

func TestQuestionSuggester_StripsNumberingAndBullets(t *testing.T) {
	chat := &mockChat{response: "1. What is the topic?\n2) Who wrote it?\n- When was it published?\n• Where does it apply?"}
	q := NewQuestionSuggester(chat, 4)

	questions := q.Suggest(context.Background(), "a summary")
	assert.Equal(t, []string{
		"What is the topic?",
		"Who wrote it?",
		"When was it published?",
		"Where does it apply?",
	}, questions)
}

func TestQuestionSuggester_CapsAtCount(t *testing.T) {
	chat := &mockChat{response: "q1?\nq2?\nq3?\nq4?\nq5?\nq6?"}
	q := NewQuestionSuggester(chat, 3)

	questions := q.Suggest(context.Background(), "a summary")
	require.Len(t, questions, 3)
}

func TestQuestionSuggester_SkipsBlankLines(t *testing.T) {
	chat := &mockChat{response: "\n\nq1?\n   \nq2?\n\n"}
	q := NewQuestionSuggester(chat, 4)

	assert.Equal(t, []string{"q1?", "q2?"}, q.Suggest(context.Background(), "a summary"))
}

func TestQuestionSuggester_FailureYieldsEmptyList(t *testing.T) {
	chat := &mockChat{err: errors.New("model offline")}
	q := NewQuestionSuggester(chat, 4)

	questions := q.Suggest(context.Background(), "a summary")
	assert.NotNil(t, questions)
	assert.Empty(t, questions)
}
