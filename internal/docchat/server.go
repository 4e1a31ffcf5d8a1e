package docchat

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kart-io/docchat/internal/docchat/biz"
	"github.com/kart-io/docchat/internal/docchat/extract"
	"github.com/kart-io/docchat/internal/docchat/handler"
	"github.com/kart-io/docchat/internal/docchat/router"
	"github.com/kart-io/docchat/internal/docchat/store"
	milvuscomp "github.com/kart-io/docchat/pkg/component/milvus"
	"github.com/kart-io/docchat/pkg/llm"
	"github.com/kart-io/docchat/pkg/llm/resilience"
)

// Server hosts the document chat HTTP service and owns its external
// connections.
type Server struct {
	httpSrv *http.Server
	service *biz.Service

	milvusClose func()
	redisClose  func()
}

// NewServer assembles the full service from validated options.
func NewServer(opts *Options) (*Server, error) {
	embedProvider, err := llm.NewEmbeddingProvider(opts.Embedding.Provider, opts.Embedding.ToConfigMap())
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding provider: %w", err)
	}
	chatProvider, err := llm.NewChatProvider(opts.Chat.Provider, opts.Chat.ToConfigMap())
	if err != nil {
		return nil, fmt.Errorf("failed to create chat provider: %w", err)
	}

	embedRetry := retryConfigFor(opts.Embedding.MaxRetries)
	chatRetry := retryConfigFor(opts.Chat.MaxRetries)
	embedder := llm.EmbeddingProvider(resilience.NewResilientEmbeddingProvider(embedProvider, embedRetry))
	chat := llm.ChatProvider(resilience.NewResilientChatProvider(chatProvider, chatRetry))
	logger.Infow("LLM providers initialized",
		"embedding.provider", opts.Embedding.Provider,
		"embedding.model", opts.Embedding.Model,
		"chat.provider", opts.Chat.Provider,
		"chat.model", opts.Chat.Model,
	)

	srv := &Server{}

	newIndex, err := srv.buildIndexFactory(opts)
	if err != nil {
		return nil, err
	}

	cache, err := srv.buildCache(opts)
	if err != nil {
		return nil, err
	}

	chunker, err := biz.NewChunker(opts.DocChat.ChunkSize, opts.DocChat.ChunkOverlap)
	if err != nil {
		return nil, fmt.Errorf("invalid chunking configuration: %w", err)
	}
	indexer, err := biz.NewIndexer(chunker, embedder, opts.DocChat.EmbedBatchSize, opts.DocChat.EmbedWorkers)
	if err != nil {
		return nil, fmt.Errorf("failed to create indexer: %w", err)
	}

	service := biz.NewService(biz.ServiceConfig{
		Session:   biz.NewSession(opts.DocChat.HistorySize),
		Extractor: extract.NewManager(),
		Indexer:   indexer,
		Retriever: biz.NewRetriever(embedder, opts.DocChat.TopK),
		Answerer:  biz.NewAnswerEngine(chat, opts.DocChat.SystemPrompt, opts.DocChat.PromptTemplate),
		Summarize: biz.NewSummarizer(chat, opts.DocChat.SummaryBudget),
		Suggester: biz.NewQuestionSuggester(chat, opts.DocChat.QuestionCount),
		Cache:     cache,
		NewIndex:  newIndex,
	})
	srv.service = service
	logger.Infow("Document chat service initialized",
		"store.backend", opts.Store.Backend,
		"cache.enabled", opts.Cache.Enabled,
		"chunk.size", opts.DocChat.ChunkSize,
		"chunk.overlap", opts.DocChat.ChunkOverlap,
		"top_k", opts.DocChat.TopK,
	)

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger())

	h := handler.NewDocChatHandler(service, opts.DocChat.MaxUploadSize)
	router.Register(engine, h)

	srv.httpSrv = &http.Server{
		Addr:         opts.HTTP.Addr,
		Handler:      engine,
		ReadTimeout:  opts.HTTP.ReadTimeout,
		WriteTimeout: opts.HTTP.WriteTimeout,
		IdleTimeout:  opts.HTTP.IdleTimeout,
	}
	return srv, nil
}

// buildIndexFactory returns the factory that mints a fresh vector index
// for each uploaded document.
func (s *Server) buildIndexFactory(opts *Options) (biz.IndexFactory, error) {
	switch opts.Store.Backend {
	case StoreBackendMilvus:
		client, err := milvuscomp.New(opts.Store.Milvus)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to milvus: %w", err)
		}
		s.milvusClose = func() { _ = client.Close(context.Background()) }
		prefix := opts.Store.Collection
		logger.Infow("Milvus index backend ready", "address", opts.Store.Milvus.Address, "collection_prefix", prefix)
		return func() store.VectorIndex {
			return store.NewMilvusIndex(client, prefix)
		}, nil
	default:
		return func() store.VectorIndex {
			return store.NewMemoryIndex()
		}, nil
	}
}

// buildCache returns the Redis-backed summary cache, or nil when caching
// is disabled.
func (s *Server) buildCache(opts *Options) (*biz.DocumentCache, error) {
	if !opts.Cache.Enabled {
		return nil, nil
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:         opts.Cache.Redis.Addr(),
		Password:     opts.Cache.Redis.Password,
		DB:           opts.Cache.Redis.Database,
		MaxRetries:   opts.Cache.Redis.MaxRetries,
		PoolSize:     opts.Cache.Redis.PoolSize,
		DialTimeout:  opts.Cache.Redis.DialTimeout,
		ReadTimeout:  opts.Cache.Redis.ReadTimeout,
		WriteTimeout: opts.Cache.Redis.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), opts.Cache.Redis.DialTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", opts.Cache.Redis.Addr(), err)
	}
	s.redisClose = func() { _ = rdb.Close() }
	logger.Infow("Redis cache connected", "addr", opts.Cache.Redis.Addr(), "ttl", opts.Cache.TTL)

	return biz.NewDocumentCache(rdb, opts.Cache.Prefix, opts.Cache.TTL), nil
}

// Run serves HTTP until the context is canceled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Infow("HTTP server listening", "addr", s.httpSrv.Addr)
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		s.cleanup()
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	err := s.httpSrv.Shutdown(shutdownCtx)
	<-errCh
	s.cleanup()
	return err
}

func (s *Server) cleanup() {
	if s.service != nil {
		s.service.Close(context.Background())
	}
	if s.milvusClose != nil {
		s.milvusClose()
	}
	if s.redisClose != nil {
		s.redisClose()
	}
}

func retryConfigFor(maxAttempts int) *resilience.RetryConfig {
	cfg := resilience.DefaultRetryConfig()
	if maxAttempts > 0 {
		cfg.MaxAttempts = maxAttempts
	}
	return cfg
}

// requestLogger logs one line per request with latency and status.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Infow("HTTP request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		)
	}
}
