package handler_test

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/docchat/internal/docchat/biz"
	"github.com/kart-io/docchat/internal/docchat/extract"
	"github.com/kart-io/docchat/internal/docchat/handler"
	"github.com/kart-io/docchat/internal/docchat/router"
	"github.com/kart-io/docchat/internal/docchat/store"
	"github.com/kart-io/docchat/pkg/llm"
	"github.com/kart-io/docchat/pkg/utils/json"
)

type stubEmbedder struct{}

func (stubEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, 4)
		for j, r := range t {
			v[j%4] += float32(r%13) + 1
		}
		out[i] = v
	}
	return out, nil
}

func (s stubEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	vecs, err := s.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (stubEmbedder) Name() string { return "stub" }

type stubChat struct{ response string }

func (s stubChat) Chat(_ context.Context, _ []llm.Message) (string, error) {
	return s.response, nil
}

func (s stubChat) Generate(_ context.Context, _, _ string) (string, error) {
	return s.response, nil
}

func (stubChat) Name() string { return "stub" }

func newTestRouter(t *testing.T, maxUpload int64) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	chunker, err := biz.NewChunker(60, 10)
	require.NoError(t, err)
	indexer, err := biz.NewIndexer(chunker, stubEmbedder{}, 4, 2)
	require.NoError(t, err)

	chat := stubChat{response: "An answer."}
	svc := biz.NewService(biz.ServiceConfig{
		Session:   biz.NewSession(5),
		Extractor: extract.NewManager(),
		Indexer:   indexer,
		Retriever: biz.NewRetriever(stubEmbedder{}, 2),
		Answerer:  biz.NewAnswerEngine(chat, "", ""),
		Summarize: biz.NewSummarizer(chat, 1000),
		Suggester: biz.NewQuestionSuggester(chat, 3),
		NewIndex:  func() store.VectorIndex { return store.NewMemoryIndex() },
	})
	t.Cleanup(func() { svc.Close(context.Background()) })

	engine := gin.New()
	router.Register(engine, handler.NewDocChatHandler(svc, maxUpload))
	return engine
}

func uploadRequest(t *testing.T, filename string, content []byte) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/documents", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func doUpload(t *testing.T, engine *gin.Engine) {
	t.Helper()
	content := []byte(strings.Repeat("The capital of France is Paris. ", 10))
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, uploadRequest(t, "france.txt", content))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestUpload(t *testing.T) {
	engine := newTestRouter(t, 0)

	content := []byte(strings.Repeat("The capital of France is Paris. ", 10))
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, uploadRequest(t, "france.txt", content))

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp handler.SuccessResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Zero(t, resp.Code)
	assert.NotNil(t, resp.Data)
}

func TestUpload_MissingFile(t *testing.T) {
	engine := newTestRouter(t, 0)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/documents", nil)
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpload_UnsupportedFormat(t *testing.T) {
	engine := newTestRouter(t, 0)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, uploadRequest(t, "binary.exe", []byte("data")))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpload_TooLarge(t *testing.T) {
	engine := newTestRouter(t, 64)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, uploadRequest(t, "big.txt", bytes.Repeat([]byte("x"), 1024)))

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestAsk_BeforeUpload(t *testing.T) {
	engine := newTestRouter(t, 0)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/ask",
		strings.NewReader(`{"question":"anything?"}`))
	req.Header.Set("Content-Type", "application/json")
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAsk(t *testing.T) {
	engine := newTestRouter(t, 0)
	doUpload(t, engine)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/ask",
		strings.NewReader(`{"question":"What is the capital?"}`))
	req.Header.Set("Content-Type", "application/json")
	engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "An answer.")
}

func TestAsk_MissingQuestion(t *testing.T) {
	engine := newTestRouter(t, 0)
	doUpload(t, engine)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/ask", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSummary(t *testing.T) {
	engine := newTestRouter(t, 0)
	doUpload(t, engine)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/documents/summary", nil))

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "summary")
}

func TestSuggestedQuestions(t *testing.T) {
	engine := newTestRouter(t, 0)
	doUpload(t, engine)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/documents/suggested-questions", nil))

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "questions")
}

func TestHistory(t *testing.T) {
	engine := newTestRouter(t, 0)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/chat/history", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "turns")
}

func TestStatusAndHealthz(t *testing.T) {
	engine := newTestRouter(t, 0)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/status", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "building")
}
