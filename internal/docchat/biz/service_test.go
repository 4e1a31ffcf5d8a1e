package biz

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/docchat/internal/docchat/extract"
	"github.com/kart-io/docchat/internal/docchat/store"
)

func newTestService(t *testing.T, embedder *mockEmbedder, chat *mockChat) *Service {
	t.Helper()

	chunker, err := NewChunker(60, 10)
	require.NoError(t, err)
	indexer, err := NewIndexer(chunker, embedder, 4, 2)
	require.NoError(t, err)

	svc := NewService(ServiceConfig{
		Session:   NewSession(3),
		Extractor: extract.NewManager(),
		Indexer:   indexer,
		Retriever: NewRetriever(embedder, 2),
		Answerer:  NewAnswerEngine(chat, "", ""),
		Summarize: NewSummarizer(chat, 200),
		Suggester: NewQuestionSuggester(chat, 3),
		NewIndex:  func() store.VectorIndex { return store.NewMemoryIndex() },
	})
	t.Cleanup(func() { svc.Close(context.Background()) })
	return svc
}

var testDocText = []byte(strings.Repeat("The capital of France is Paris. The Seine flows through it. ", 6))

func TestService_AskBeforeUpload(t *testing.T) {
	svc := newTestService(t, newMockEmbedder(8), &mockChat{response: "ok"})

	_, err := svc.Ask(context.Background(), "anything?")
	assert.True(t, errors.Is(err, store.ErrEmptyIndex))

	_, err = svc.Summary(context.Background())
	assert.True(t, errors.Is(err, store.ErrEmptyIndex))

	_, err = svc.SuggestedQuestions(context.Background())
	assert.True(t, errors.Is(err, store.ErrEmptyIndex))
}

func TestService_UploadAndAsk(t *testing.T) {
	chat := &mockChat{response: "Paris."}
	svc := newTestService(t, newMockEmbedder(8), chat)
	ctx := context.Background()

	result, err := svc.Upload(ctx, "france.txt", testDocText)
	require.NoError(t, err)
	assert.Equal(t, "france.txt", result.Document.Name)
	assert.Equal(t, ".txt", result.Document.Format)
	assert.Greater(t, result.ChunkCount, 1)

	answer, err := svc.Ask(ctx, "What is the capital?")
	require.NoError(t, err)
	assert.Equal(t, "Paris.", answer.Text)
	assert.NotEmpty(t, answer.Sources)

	history, err := svc.History(ctx)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "What is the capital?", history[0].Question)
}

func TestService_EmptyQuestion(t *testing.T) {
	svc := newTestService(t, newMockEmbedder(8), &mockChat{response: "ok"})
	ctx := context.Background()

	_, err := svc.Upload(ctx, "doc.txt", testDocText)
	require.NoError(t, err)

	_, err = svc.Ask(ctx, "   ")
	assert.True(t, errors.Is(err, ErrEmptyQuestion))
}

func TestService_UnsupportedFormat(t *testing.T) {
	svc := newTestService(t, newMockEmbedder(8), &mockChat{response: "ok"})

	_, err := svc.Upload(context.Background(), "doc.exe", []byte("binary"))
	assert.True(t, errors.Is(err, extract.ErrUnsupportedFormat))
}

func TestService_ReuploadResetsConversation(t *testing.T) {
	chat := &mockChat{response: "ok"}
	svc := newTestService(t, newMockEmbedder(8), chat)
	ctx := context.Background()

	_, err := svc.Upload(ctx, "one.txt", testDocText)
	require.NoError(t, err)
	_, err = svc.Ask(ctx, "q1?")
	require.NoError(t, err)

	_, err = svc.Upload(ctx, "two.txt", []byte(strings.Repeat("Completely different content here. ", 8)))
	require.NoError(t, err)

	history, err := svc.History(ctx)
	require.NoError(t, err)
	assert.Empty(t, history, "a new document starts a new conversation")

	status := svc.Status(ctx)
	assert.Equal(t, "two.txt", status.Document.Name)
}

func TestService_FailedUploadKeepsOldDocument(t *testing.T) {
	embedder := newMockEmbedder(8)
	svc := newTestService(t, embedder, &mockChat{response: "ok"})
	ctx := context.Background()

	_, err := svc.Upload(ctx, "good.txt", testDocText)
	require.NoError(t, err)

	embedder.failWith(errors.New("embedding backend down"))
	_, err = svc.Upload(ctx, "bad.txt", testDocText)
	require.Error(t, err)

	// The old document is still active and queryable.
	embedder.failWith(nil)
	status := svc.Status(ctx)
	assert.Equal(t, "good.txt", status.Document.Name)

	_, err = svc.Ask(ctx, "still there?")
	assert.NoError(t, err)
}

func TestService_SummaryCachedInSession(t *testing.T) {
	chat := &mockChat{response: "A summary."}
	svc := newTestService(t, newMockEmbedder(8), chat)
	ctx := context.Background()

	_, err := svc.Upload(ctx, "doc.txt", testDocText)
	require.NoError(t, err)

	s1, err := svc.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, "A summary.", s1)
	calls := chat.promptCount()

	s2, err := svc.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, s1, s2)
	assert.Equal(t, calls, chat.promptCount(), "second summary must come from the session cache")
}

func TestService_SuggestedQuestions(t *testing.T) {
	chat := &mockChat{response: "One?\nTwo?"}
	svc := newTestService(t, newMockEmbedder(8), chat)
	ctx := context.Background()

	_, err := svc.Upload(ctx, "doc.txt", testDocText)
	require.NoError(t, err)

	questions, err := svc.SuggestedQuestions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"One?", "Two?"}, questions)

	calls := chat.promptCount()
	again, err := svc.SuggestedQuestions(ctx)
	require.NoError(t, err)
	assert.Equal(t, questions, again)
	assert.Equal(t, calls, chat.promptCount())
}

func TestService_SuggestedQuestionsDegradeOnSummaryFailure(t *testing.T) {
	chat := &mockChat{err: errors.New("model offline")}
	svc := newTestService(t, newMockEmbedder(8), chat)
	ctx := context.Background()

	_, err := svc.Upload(ctx, "doc.txt", testDocText)
	require.NoError(t, err)

	questions, err := svc.SuggestedQuestions(ctx)
	require.NoError(t, err, "suggestion must not fail the request")
	assert.Empty(t, questions)
}

func TestService_HistoryBeforeUploadIsEmpty(t *testing.T) {
	svc := newTestService(t, newMockEmbedder(8), &mockChat{response: "ok"})

	history, err := svc.History(context.Background())
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestService_HistoryEviction(t *testing.T) {
	chat := &mockChat{response: "ok"}
	svc := newTestService(t, newMockEmbedder(8), chat)
	ctx := context.Background()

	_, err := svc.Upload(ctx, "doc.txt", testDocText)
	require.NoError(t, err)

	for _, q := range []string{"q1?", "q2?", "q3?", "q4?", "q5?"} {
		_, err = svc.Ask(ctx, q)
		require.NoError(t, err)
	}

	history, err := svc.History(ctx)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, "q3?", history[0].Question)
	assert.Equal(t, "q5?", history[2].Question)
}

func TestService_Status(t *testing.T) {
	svc := newTestService(t, newMockEmbedder(8), &mockChat{response: "ok"})
	ctx := context.Background()

	status := svc.Status(ctx)
	assert.Nil(t, status.Document)
	assert.False(t, status.Building)
	assert.NotNil(t, status.Metrics)

	_, err := svc.Upload(ctx, "doc.txt", testDocText)
	require.NoError(t, err)

	status = svc.Status(ctx)
	require.NotNil(t, status.Document)
	assert.Equal(t, "memory", status.Backend)
}
