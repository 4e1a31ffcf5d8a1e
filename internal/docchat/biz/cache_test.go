package biz

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skip("redis is not available, skipping cache tests")
	}
	client.FlushDB(ctx)

	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestDocumentCache_Summary(t *testing.T) {
	client := setupTestRedis(t)
	cache := NewDocumentCache(client, "test", time.Minute)
	ctx := context.Background()

	_, ok := cache.GetSummary(ctx, "hash1")
	assert.False(t, ok)

	cache.SetSummary(ctx, "hash1", "a summary")

	summary, ok := cache.GetSummary(ctx, "hash1")
	require.True(t, ok)
	assert.Equal(t, "a summary", summary)

	// Different content hashes do not collide.
	_, ok = cache.GetSummary(ctx, "hash2")
	assert.False(t, ok)
}

func TestDocumentCache_Questions(t *testing.T) {
	client := setupTestRedis(t)
	cache := NewDocumentCache(client, "test", time.Minute)
	ctx := context.Background()

	_, ok := cache.GetQuestions(ctx, "hash1")
	assert.False(t, ok)

	questions := []string{"one?", "two?"}
	cache.SetQuestions(ctx, "hash1", questions)

	got, ok := cache.GetQuestions(ctx, "hash1")
	require.True(t, ok)
	assert.Equal(t, questions, got)
}

func TestDocumentCache_MalformedEntry(t *testing.T) {
	client := setupTestRedis(t)
	cache := NewDocumentCache(client, "test", time.Minute)
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, "test:doc:hash1:questions", "not json", time.Minute).Err())

	_, ok := cache.GetQuestions(ctx, "hash1")
	assert.False(t, ok)
}

func TestDocumentCache_TTL(t *testing.T) {
	client := setupTestRedis(t)
	cache := NewDocumentCache(client, "test", time.Minute)
	ctx := context.Background()

	cache.SetSummary(ctx, "hash1", "a summary")

	ttl, err := client.TTL(ctx, "test:doc:hash1:summary").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 30*time.Second)
}
