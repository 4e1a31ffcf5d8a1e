package biz

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/kart-io/logger"
	"github.com/oklog/ulid/v2"

	"github.com/kart-io/docchat/internal/docchat/extract"
	"github.com/kart-io/docchat/internal/docchat/metrics"
	"github.com/kart-io/docchat/internal/docchat/store"
	"github.com/kart-io/docchat/internal/model"
	"github.com/kart-io/docchat/pkg/utils/textutil"
)

// ErrEmptyQuestion is returned when the question is blank.
var ErrEmptyQuestion = errors.New("question must not be empty")

// IndexFactory creates a fresh, empty vector index for a new document.
type IndexFactory func() store.VectorIndex

// Service is the document chat facade used by the HTTP handlers. It owns
// one session: one document, one index, one conversation.
type Service struct {
	session   *Session
	extractor *extract.Manager
	indexer   *Indexer
	retriever *Retriever
	answerer  *AnswerEngine
	summarize *Summarizer
	suggester *QuestionSuggester
	cache     *DocumentCache // nil when Redis is not configured
	newIndex  IndexFactory
	metrics   *metrics.Metrics
}

// ServiceConfig wires the service's collaborators.
type ServiceConfig struct {
	Session   *Session
	Extractor *extract.Manager
	Indexer   *Indexer
	Retriever *Retriever
	Answerer  *AnswerEngine
	Summarize *Summarizer
	Suggester *QuestionSuggester
	Cache     *DocumentCache
	NewIndex  IndexFactory
}

// NewService assembles the service.
func NewService(cfg ServiceConfig) *Service {
	return &Service{
		session:   cfg.Session,
		extractor: cfg.Extractor,
		indexer:   cfg.Indexer,
		retriever: cfg.Retriever,
		answerer:  cfg.Answerer,
		summarize: cfg.Summarize,
		suggester: cfg.Suggester,
		cache:     cfg.Cache,
		newIndex:  cfg.NewIndex,
		metrics:   metrics.Get(),
	}
}

// Upload extracts, chunks, embeds, and indexes a new document, then swaps
// it in as the active document and resets the conversation. On any failure
// the previous document stays active and fully queryable. Only one upload
// may be indexing at a time; concurrent uploads get ErrBuildInProgress.
func (s *Service) Upload(ctx context.Context, filename string, data []byte) (*model.UploadResult, error) {
	if !s.session.TryBeginBuild() {
		return nil, ErrBuildInProgress
	}
	defer s.session.EndBuild()

	result, err := s.upload(ctx, filename, data)
	if err != nil {
		s.metrics.RecordUpload(0, err)
		return nil, err
	}
	s.metrics.RecordUpload(result.ChunkCount, nil)
	return result, nil
}

func (s *Service) upload(ctx context.Context, filename string, data []byte) (*model.UploadResult, error) {
	text, format, err := s.extractor.Extract(filename, data)
	if err != nil {
		return nil, err
	}

	doc := &model.Document{
		ID:          ulid.Make().String(),
		Name:        filename,
		Format:      format,
		Size:        int64(len(data)),
		Chars:       len([]rune(text)),
		ContentHash: textutil.HashString(text),
		Text:        text,
		UploadedAt:  time.Now(),
	}

	index := s.newIndex()
	chunks, err := s.indexer.Index(ctx, doc, index)
	if err != nil {
		// The new index is discarded; the session still holds the old one.
		_ = index.Close(ctx)
		return nil, err
	}
	doc.ChunkCount = len(chunks)

	epoch := s.session.Replace(ctx, doc, index)

	logger.Infow("document replaced",
		"document_id", doc.ID,
		"name", doc.Name,
		"format", doc.Format,
		"chars", doc.Chars,
		"chunks", doc.ChunkCount,
		"epoch", epoch,
	)

	return &model.UploadResult{Document: doc, ChunkCount: doc.ChunkCount}, nil
}

// Ask answers a question about the active document using retrieved chunks
// and the conversation so far. The turn is appended to the conversation
// only after the answer is produced; failed asks leave no trace. If the
// document is replaced mid-flight the answer is discarded with
// ErrSessionReplaced.
func (s *Service) Ask(ctx context.Context, question string) (*model.Answer, error) {
	answer, err := s.ask(ctx, question)
	s.metrics.RecordAsk(err)
	return answer, err
}

func (s *Service) ask(ctx context.Context, question string) (*model.Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}

	snap, err := s.session.Snapshot()
	if err != nil {
		return nil, err
	}

	history := snap.Memory.Turns()

	results, err := s.retriever.Retrieve(ctx, snap.Index, question)
	if err != nil {
		return nil, err
	}

	text, sources, err := s.answerer.Answer(ctx, question, history, results)
	if err != nil {
		return nil, err
	}

	if err := s.session.CommitTurn(snap.Epoch, question, text); err != nil {
		s.metrics.RecordStaleAsk()
		return nil, err
	}

	return &model.Answer{Text: text, Sources: sources}, nil
}

// Summary returns the document summary, generating it on first request.
// The result is cached in the session and, when Redis is configured, by
// content hash so identical re-uploads skip regeneration.
func (s *Service) Summary(ctx context.Context) (string, error) {
	snap, err := s.session.Snapshot()
	if err != nil {
		return "", err
	}

	if summary, ok := s.session.Summary(); ok {
		return summary, nil
	}

	if s.cache != nil {
		if summary, ok := s.cache.GetSummary(ctx, snap.Document.ContentHash); ok {
			_ = s.session.SetSummary(snap.Epoch, summary)
			return summary, nil
		}
	}

	summary, err := s.summarize.Summarize(ctx, snap.Document.Text)
	if err != nil {
		return "", err
	}

	if err := s.session.SetSummary(snap.Epoch, summary); err != nil {
		return "", err
	}
	if s.cache != nil {
		s.cache.SetSummary(ctx, snap.Document.ContentHash, summary)
	}

	return summary, nil
}

// SuggestedQuestions returns questions the document can answer. Generation
// failures degrade to an empty list; the endpoint never errors once a
// document is uploaded.
func (s *Service) SuggestedQuestions(ctx context.Context) ([]string, error) {
	snap, err := s.session.Snapshot()
	if err != nil {
		return nil, err
	}

	if questions, ok := s.session.Questions(); ok {
		return questions, nil
	}

	if s.cache != nil {
		if questions, ok := s.cache.GetQuestions(ctx, snap.Document.ContentHash); ok {
			_ = s.session.SetQuestions(snap.Epoch, questions)
			return questions, nil
		}
	}

	// Questions are grounded on the summary; generate it if needed.
	summary, err := s.Summary(ctx)
	if err != nil {
		logger.Warnw("cannot summarize for question suggestion", "error", err.Error())
		return []string{}, nil
	}

	questions := s.suggester.Suggest(ctx, summary)
	if len(questions) > 0 {
		_ = s.session.SetQuestions(snap.Epoch, questions)
		if s.cache != nil {
			s.cache.SetQuestions(ctx, snap.Document.ContentHash, questions)
		}
	}

	return questions, nil
}

// History returns the conversation turns, oldest first. With no document
// uploaded the history is empty.
func (s *Service) History(ctx context.Context) ([]model.Turn, error) {
	snap, err := s.session.Snapshot()
	if err != nil {
		if errors.Is(err, store.ErrEmptyIndex) {
			return []model.Turn{}, nil
		}
		return nil, err
	}
	return snap.Memory.Turns(), nil
}

// Status describes the service state for the status endpoint.
type Status struct {
	Document *model.Document `json:"document,omitempty"`
	Building bool            `json:"building"`
	Turns    int             `json:"turns"`
	Backend  string          `json:"backend,omitempty"`
	Metrics  map[string]any  `json:"metrics"`
}

// Status reports the current document, build state, and metrics snapshot.
func (s *Service) Status(ctx context.Context) *Status {
	status := &Status{
		Building: s.session.Building(),
		Metrics:  s.metrics.Snapshot(),
	}

	snap, err := s.session.Snapshot()
	if err == nil {
		status.Document = snap.Document
		status.Turns = snap.Memory.Len()
		status.Backend = snap.Index.Name()
	}

	return status
}

// Close releases the service's resources.
func (s *Service) Close(ctx context.Context) {
	s.indexer.Close()
	snap, err := s.session.Snapshot()
	if err == nil {
		_ = snap.Index.Close(ctx)
	}
}
