package biz

import (
	"context"
	"errors"
	"time"

	"github.com/kart-io/logger"
	"github.com/redis/go-redis/v9"

	"github.com/kart-io/docchat/internal/docchat/metrics"
	"github.com/kart-io/docchat/pkg/utils/json"
)

// DefaultCacheTTL is how long derived artifacts stay cached.
const DefaultCacheTTL = 24 * time.Hour

// DocumentCache stores derived artifacts (summary, suggested questions) in
// Redis, keyed by the document's content hash. Re-uploading identical
// content then skips the expensive generation calls. Answers are never
// cached: they depend on the conversation history.
//
// The cache is best-effort; Redis being down degrades to regeneration.
type DocumentCache struct {
	rdb     *redis.Client
	ttl     time.Duration
	prefix  string
	metrics *metrics.Metrics
}

// NewDocumentCache creates a cache. Non-positive TTL falls back to the
// default.
func NewDocumentCache(rdb *redis.Client, prefix string, ttl time.Duration) *DocumentCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if prefix == "" {
		prefix = "docchat"
	}
	return &DocumentCache{
		rdb:     rdb,
		ttl:     ttl,
		prefix:  prefix,
		metrics: metrics.Get(),
	}
}

// GetSummary returns the cached summary for a content hash.
func (c *DocumentCache) GetSummary(ctx context.Context, contentHash string) (string, bool) {
	val, err := c.rdb.Get(ctx, c.key(contentHash, "summary")).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.Warnw("summary cache read failed", "error", err.Error())
		}
		c.metrics.RecordCacheLookup(false)
		return "", false
	}
	c.metrics.RecordCacheLookup(true)
	return val, true
}

// SetSummary stores a summary for a content hash.
func (c *DocumentCache) SetSummary(ctx context.Context, contentHash, summary string) {
	if err := c.rdb.Set(ctx, c.key(contentHash, "summary"), summary, c.ttl).Err(); err != nil {
		logger.Warnw("summary cache write failed", "error", err.Error())
	}
}

// GetQuestions returns the cached suggested questions for a content hash.
func (c *DocumentCache) GetQuestions(ctx context.Context, contentHash string) ([]string, bool) {
	val, err := c.rdb.Get(ctx, c.key(contentHash, "questions")).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.Warnw("questions cache read failed", "error", err.Error())
		}
		c.metrics.RecordCacheLookup(false)
		return nil, false
	}

	var questions []string
	if err := json.Unmarshal([]byte(val), &questions); err != nil {
		logger.Warnw("questions cache entry is malformed", "error", err.Error())
		c.metrics.RecordCacheLookup(false)
		return nil, false
	}

	c.metrics.RecordCacheLookup(true)
	return questions, true
}

// SetQuestions stores suggested questions for a content hash.
func (c *DocumentCache) SetQuestions(ctx context.Context, contentHash string, questions []string) {
	data, err := json.Marshal(questions)
	if err != nil {
		logger.Warnw("questions cache marshal failed", "error", err.Error())
		return
	}
	if err := c.rdb.Set(ctx, c.key(contentHash, "questions"), string(data), c.ttl).Err(); err != nil {
		logger.Warnw("questions cache write failed", "error", err.Error())
	}
}

func (c *DocumentCache) key(contentHash, kind string) string {
	return c.prefix + ":doc:" + contentHash + ":" + kind
}
