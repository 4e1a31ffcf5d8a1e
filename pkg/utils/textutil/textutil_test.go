package textutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, CosineSimilarity([]float32{1, 2, 3}, []float32{1, 2, 3}), 1e-9)
	assert.InDelta(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, CosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-9)

	// Scale invariance.
	assert.InDelta(t, 1.0, CosineSimilarity([]float32{1, 1}, []float32{10, 10}), 1e-9)

	// Degenerate inputs.
	assert.Zero(t, CosineSimilarity(nil, nil))
	assert.Zero(t, CosineSimilarity([]float32{1, 2}, []float32{1}))
	assert.Zero(t, CosineSimilarity([]float32{0, 0}, []float32{1, 1}))
}

func TestHashString(t *testing.T) {
	h1 := HashString("hello")
	h2 := HashString("hello")
	h3 := HashString("hello ")

	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, h3)
	assert.Len(t, h1, 64)
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "hello", TruncateString("hello", 10))
	assert.Equal(t, "hel", TruncateString("hello", 3))
	assert.Equal(t, "hél", TruncateString("héllo", 3))
	assert.Equal(t, "中文", TruncateString("中文测试", 2))
	assert.Equal(t, "", TruncateString("x", 0))
}

func TestCollapseWhitespace(t *testing.T) {
	in := "line one  \n\n\n\nline two\t\nline three\r\n\r\nline four\n\n"
	want := "line one\n\nline two\nline three\n\nline four"
	assert.Equal(t, want, CollapseWhitespace(in))
}
