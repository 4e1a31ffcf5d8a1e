package biz

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/kart-io/docchat/internal/docchat/store"
	"github.com/kart-io/docchat/internal/model"
)

var (
	// ErrBuildInProgress is returned when an upload arrives while another
	// document is still being indexed.
	ErrBuildInProgress = errors.New("a document is already being indexed")

	// ErrSessionReplaced is returned when an in-flight operation finishes
	// after its document was replaced by a newer upload.
	ErrSessionReplaced = errors.New("document was replaced during the operation")
)

// Session holds the single active document, its index, and the
// conversation bound to it. Replacing the document swaps all three
// atomically under a write lock; readers take consistent snapshots under
// the read lock.
//
// Each successful replace mints a new epoch (a ULID). Operations capture
// the epoch with their snapshot and re-check it before committing results,
// so answers computed against a replaced document are discarded.
type Session struct {
	mu        sync.RWMutex
	epoch     string
	doc       *model.Document
	index     store.VectorIndex
	memory    *ConversationMemory
	summary   string
	questions []string

	historySize int
	building    atomic.Bool
	entropy     *ulid.MonotonicEntropy
	entropyMu   sync.Mutex
}

// Snapshot is a consistent view of the session at one point in time.
type Snapshot struct {
	Epoch    string
	Document *model.Document
	Index    store.VectorIndex
	Memory   *ConversationMemory
}

// NewSession creates an empty session.
func NewSession(historySize int) *Session {
	return &Session{
		historySize: historySize,
		entropy:     ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
	}
}

// TryBeginBuild claims the single build slot. It returns false if another
// build is in flight.
func (s *Session) TryBeginBuild() bool {
	return s.building.CompareAndSwap(false, true)
}

// EndBuild releases the build slot.
func (s *Session) EndBuild() {
	s.building.Store(false)
}

// Building reports whether an upload is currently being indexed.
func (s *Session) Building() bool {
	return s.building.Load()
}

// Replace installs a new document and index, resets the conversation, and
// mints a new epoch. The previous index is closed outside the lock.
func (s *Session) Replace(ctx context.Context, doc *model.Document, index store.VectorIndex) string {
	epoch := s.newEpoch()
	memory := NewConversationMemory(s.historySize)

	s.mu.Lock()
	old := s.index
	s.epoch = epoch
	s.doc = doc
	s.index = index
	s.memory = memory
	s.summary = ""
	s.questions = nil
	s.mu.Unlock()

	if old != nil && old != index {
		_ = old.Close(ctx)
	}

	return epoch
}

// Snapshot returns the current epoch, document, index, and memory. It
// fails with store.ErrEmptyIndex when no document has been uploaded.
func (s *Session) Snapshot() (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.doc == nil {
		return nil, store.ErrEmptyIndex
	}

	return &Snapshot{
		Epoch:    s.epoch,
		Document: s.doc,
		Index:    s.index,
		Memory:   s.memory,
	}, nil
}

// CommitTurn appends a completed turn if the session still belongs to the
// given epoch. A stale epoch yields ErrSessionReplaced and the turn is
// discarded.
func (s *Session) CommitTurn(epoch, question, answer string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.epoch != epoch {
		return ErrSessionReplaced
	}
	s.memory.Append(question, answer)
	return nil
}

// Summary returns the cached summary for the current document, if any.
func (s *Session) Summary() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.summary, s.summary != ""
}

// SetSummary caches a summary if the epoch still matches.
func (s *Session) SetSummary(epoch, summary string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.epoch != epoch {
		return ErrSessionReplaced
	}
	s.summary = summary
	return nil
}

// Questions returns the cached suggested questions, if any.
func (s *Session) Questions() ([]string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.questions == nil {
		return nil, false
	}
	out := make([]string, len(s.questions))
	copy(out, s.questions)
	return out, true
}

// SetQuestions caches suggested questions if the epoch still matches.
func (s *Session) SetQuestions(epoch string, questions []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.epoch != epoch {
		return ErrSessionReplaced
	}
	s.questions = questions
	return nil
}

// Document returns the current document, or nil.
func (s *Session) Document() *model.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc
}

func (s *Session) newEpoch() string {
	s.entropyMu.Lock()
	defer s.entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}
