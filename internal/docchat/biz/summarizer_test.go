package biz

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarizer_SmallTextOneCall(t *testing.T) {
	chat := &mockChat{response: " A short summary. "}
	s := NewSummarizer(chat, 100)

	summary, err := s.Summarize(context.Background(), "A small document that fits the budget.")
	require.NoError(t, err)
	assert.Equal(t, "A short summary.", summary)
	assert.Equal(t, 1, chat.promptCount())
}

func TestSummarizer_LargeTextMapReduce(t *testing.T) {
	chat := &mockChat{response: "part summary"}
	s := NewSummarizer(chat, 100)

	// Well over budget: forces a split and at least one merge round.
	text := strings.Repeat("A line of document text that says something.\n", 12)
	require.Greater(t, len([]rune(text)), 400)

	summary, err := s.Summarize(context.Background(), text)
	require.NoError(t, err)
	assert.Equal(t, "part summary", summary)
	assert.Greater(t, chat.promptCount(), 2, "map-reduce must take several calls")
}

func TestSummarizer_LargeTextConverges(t *testing.T) {
	calls := 0
	chat := &mockChat{fn: func(prompt, _ string) (string, error) {
		calls++
		return "s", nil
	}}
	s := NewSummarizer(chat, 50)

	text := strings.Repeat("Ten runes.\n", 100)
	summary, err := s.Summarize(context.Background(), text)
	require.NoError(t, err)
	assert.Equal(t, "s", summary)
	assert.Greater(t, calls, 5)
}

func TestSummarizer_NotShrinkingFails(t *testing.T) {
	// Every "summary" is as large as the budget, so no round can make
	// progress and the summarizer must give up instead of looping.
	chat := &mockChat{response: strings.Repeat("x", 60)}
	s := NewSummarizer(chat, 50)

	text := strings.Repeat("Ten runes.\n", 20)
	_, err := s.Summarize(context.Background(), text)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not shrinking")
}

func TestSummarizer_GenerationErrorPropagates(t *testing.T) {
	chat := &mockChat{err: errors.New("model offline")}
	s := NewSummarizer(chat, 100)

	_, err := s.Summarize(context.Background(), "small text")
	assert.Error(t, err)

	_, err = s.Summarize(context.Background(), strings.Repeat("line\n", 100))
	assert.Error(t, err)
}

func TestSplitByBudget(t *testing.T) {
	text := strings.Repeat("0123456789\n", 10) // 110 runes

	parts := splitByBudget(text, 40)
	require.Greater(t, len(parts), 1)

	assert.Equal(t, text, strings.Join(parts, ""))
	for i, p := range parts {
		assert.LessOrEqual(t, len([]rune(p)), 40, "part %d", i)
	}
	// Newline-preferring cut: parts except the last end on a line break.
	for i := 0; i < len(parts)-1; i++ {
		assert.True(t, strings.HasSuffix(parts[i], "\n"), "part %d should end at a newline", i)
	}
}

func TestGroupByBudget(t *testing.T) {
	parts := []string{
		strings.Repeat("a", 30),
		strings.Repeat("b", 30),
		strings.Repeat("c", 30),
		strings.Repeat("d", 90), // over budget on its own
		strings.Repeat("e", 10),
	}

	groups := groupByBudget(parts, 70)
	require.Len(t, groups, 4)
	assert.Len(t, groups[0], 2) // a+b = 60 fits, c would overflow
	assert.Len(t, groups[1], 1) // c alone, d would overflow
	assert.Len(t, groups[2], 1) // oversized d forms its own group
	assert.Len(t, groups[3], 1) // e cannot join the oversized group

	// Flattened order is preserved.
	var flat []string
	for _, g := range groups {
		flat = append(flat, g...)
	}
	assert.Equal(t, parts, flat)
}
