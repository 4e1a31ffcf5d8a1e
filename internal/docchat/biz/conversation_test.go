package biz

import (
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConversationMemory_AppendAndTurns(t *testing.T) {
	m := NewConversationMemory(3)

	m.Append("q1", "a1")
	m.Append("q2", "a2")

	turns := m.Turns()
	require.Len(t, turns, 2)
	assert.Equal(t, "q1", turns[0].Question)
	assert.Equal(t, "a2", turns[1].Answer)
	assert.Equal(t, 2, m.Len())
	assert.Equal(t, 3, m.Capacity())
}

func TestConversationMemory_FIFOEviction(t *testing.T) {
	m := NewConversationMemory(3)

	for i := 1; i <= 7; i++ {
		m.Append(fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i))
	}

	turns := m.Turns()
	require.Len(t, turns, 3)
	assert.Equal(t, "q5", turns[0].Question)
	assert.Equal(t, "q6", turns[1].Question)
	assert.Equal(t, "q7", turns[2].Question)
}

// Any append sequence must leave exactly the most recent min(n, capacity)
// turns, oldest first.
func TestConversationMemory_FIFORandomizedSequences(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for trial := 0; trial < 50; trial++ {
		capacity := 1 + rng.Intn(6)
		appends := rng.Intn(20)
		m := NewConversationMemory(capacity)

		for i := 0; i < appends; i++ {
			m.Append(fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i))
		}

		want := appends
		if want > capacity {
			want = capacity
		}
		turns := m.Turns()
		require.Len(t, turns, want, "capacity=%d appends=%d", capacity, appends)

		for j, turn := range turns {
			i := appends - want + j
			assert.Equal(t, fmt.Sprintf("q%d", i), turn.Question, "capacity=%d appends=%d", capacity, appends)
			assert.Equal(t, fmt.Sprintf("a%d", i), turn.Answer, "capacity=%d appends=%d", capacity, appends)
		}
	}
}

func TestConversationMemory_Clear(t *testing.T) {
	m := NewConversationMemory(2)
	m.Append("q", "a")
	m.Clear()

	assert.Zero(t, m.Len())
	assert.Empty(t, m.Turns())
}

func TestConversationMemory_TurnsReturnsCopy(t *testing.T) {
	m := NewConversationMemory(2)
	m.Append("q", "a")

	turns := m.Turns()
	turns[0].Question = "mutated"

	assert.Equal(t, "q", m.Turns()[0].Question)
}

func TestConversationMemory_ConcurrentAppend(t *testing.T) {
	m := NewConversationMemory(8)

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				m.Append(fmt.Sprintf("q%d-%d", g, i), "a")
			}
		}(g)
	}
	wg.Wait()

	assert.Equal(t, 8, m.Len())
}
