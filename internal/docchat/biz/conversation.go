package biz

import (
	"sync"
	"time"

	"github.com/kart-io/docchat/internal/model"
)

// DefaultHistorySize is the default conversation window.
const DefaultHistorySize = 10

// ConversationMemory is a bounded FIFO window of completed turns. When the
// window is full, appending evicts the oldest turn. A turn is appended
// atomically: readers never observe a question without its answer.
type ConversationMemory struct {
	mu       sync.RWMutex
	capacity int
	turns    []model.Turn
}

// NewConversationMemory creates a memory holding at most capacity turns.
// Non-positive capacities fall back to the default.
func NewConversationMemory(capacity int) *ConversationMemory {
	if capacity <= 0 {
		capacity = DefaultHistorySize
	}
	return &ConversationMemory{
		capacity: capacity,
		turns:    make([]model.Turn, 0, capacity),
	}
}

// Append records a completed question/answer pair, evicting the oldest
// turn when the window is full.
func (m *ConversationMemory) Append(question, answer string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.turns) == m.capacity {
		copy(m.turns, m.turns[1:])
		m.turns = m.turns[:m.capacity-1]
	}
	m.turns = append(m.turns, model.Turn{
		Question: question,
		Answer:   answer,
		AskedAt:  time.Now(),
	})
}

// Turns returns the turns oldest first. The slice is a copy.
func (m *ConversationMemory) Turns() []model.Turn {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]model.Turn, len(m.turns))
	copy(out, m.turns)
	return out
}

// Len returns the number of stored turns.
func (m *ConversationMemory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.turns)
}

// Capacity returns the window size.
func (m *ConversationMemory) Capacity() int {
	return m.capacity
}

// Clear discards all turns.
func (m *ConversationMemory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns = m.turns[:0]
}
