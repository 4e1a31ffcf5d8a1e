// Package docchat assembles the document chat service configuration and
// server.
package docchat

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/docchat/internal/docchat/biz"
	"github.com/kart-io/docchat/internal/docchat/handler"
	"github.com/kart-io/docchat/pkg/app"
	llmopts "github.com/kart-io/docchat/pkg/options/llm"
	logopts "github.com/kart-io/docchat/pkg/options/logger"
	milvusopts "github.com/kart-io/docchat/pkg/options/milvus"
	redisopts "github.com/kart-io/docchat/pkg/options/redis"
	httpopts "github.com/kart-io/docchat/pkg/options/server/http"
)

var _ app.CliOptions = (*Options)(nil)

// Store backends.
const (
	StoreBackendMemory = "memory"
	StoreBackendMilvus = "milvus"
)

// Options holds the full service configuration.
type Options struct {
	HTTP      *httpopts.Options        `json:"http" mapstructure:"http"`
	Log       *logopts.Options         `json:"log" mapstructure:"log"`
	Embedding *llmopts.ProviderOptions `json:"embedding" mapstructure:"embedding"`
	Chat      *llmopts.ProviderOptions `json:"chat" mapstructure:"chat"`
	DocChat   *DocChatOptions          `json:"docchat" mapstructure:"docchat"`
	Store     *StoreOptions            `json:"store" mapstructure:"store"`
	Cache     *CacheOptions            `json:"cache" mapstructure:"cache"`
}

// DocChatOptions tunes the chunking, retrieval, and conversation pipeline.
type DocChatOptions struct {
	// ChunkSize is the chunk size in runes.
	ChunkSize int `json:"chunk-size" mapstructure:"chunk-size"`

	// ChunkOverlap is the overlap between adjacent chunks in runes.
	ChunkOverlap int `json:"chunk-overlap" mapstructure:"chunk-overlap"`

	// TopK is the number of chunks retrieved per question.
	TopK int `json:"top-k" mapstructure:"top-k"`

	// HistorySize is the number of conversation turns to keep.
	HistorySize int `json:"history-size" mapstructure:"history-size"`

	// SummaryBudget is the per-call rune budget for summarization.
	SummaryBudget int `json:"summary-budget" mapstructure:"summary-budget"`

	// QuestionCount is the number of suggested questions to generate.
	QuestionCount int `json:"question-count" mapstructure:"question-count"`

	// MaxUploadSize caps the accepted document size in bytes.
	MaxUploadSize int64 `json:"max-upload-size" mapstructure:"max-upload-size"`

	// EmbedBatchSize is the number of chunks embedded per provider call.
	EmbedBatchSize int `json:"embed-batch-size" mapstructure:"embed-batch-size"`

	// EmbedWorkers is the number of concurrent embedding workers.
	EmbedWorkers int `json:"embed-workers" mapstructure:"embed-workers"`

	// SystemPrompt overrides the default answering system prompt.
	SystemPrompt string `json:"system-prompt" mapstructure:"system-prompt"`

	// PromptTemplate overrides the default answering prompt template.
	PromptTemplate string `json:"prompt-template" mapstructure:"prompt-template"`
}

// StoreOptions selects and configures the vector index backend.
type StoreOptions struct {
	// Backend is the vector index backend (memory, milvus).
	Backend string `json:"backend" mapstructure:"backend"`

	// Collection is the Milvus collection name prefix; each uploaded
	// document gets its own collection under it.
	Collection string `json:"collection" mapstructure:"collection"`

	Milvus *milvusopts.Options `json:"milvus" mapstructure:"milvus"`
}

// CacheOptions configures the optional Redis summary cache.
type CacheOptions struct {
	// Enabled turns the cache on.
	Enabled bool `json:"enabled" mapstructure:"enabled"`

	// TTL is the cache entry lifetime.
	TTL time.Duration `json:"ttl" mapstructure:"ttl"`

	// Prefix namespaces cache keys.
	Prefix string `json:"prefix" mapstructure:"prefix"`

	Redis *redisopts.Options `json:"redis" mapstructure:"redis"`
}

// NewOptions creates Options with sensible defaults.
func NewOptions() *Options {
	return &Options{
		HTTP:      httpopts.NewOptions(),
		Log:       logopts.NewOptions(),
		Embedding: llmopts.NewEmbeddingOptions(),
		Chat:      llmopts.NewChatOptions(),
		DocChat: &DocChatOptions{
			ChunkSize:      512,
			ChunkOverlap:   50,
			TopK:           biz.DefaultTopK,
			HistorySize:    biz.DefaultHistorySize,
			SummaryBudget:  biz.DefaultSummaryBudget,
			QuestionCount:  biz.DefaultQuestionCount,
			MaxUploadSize:  handler.DefaultMaxUploadSize,
			EmbedBatchSize: biz.DefaultEmbedBatchSize,
			EmbedWorkers:   biz.DefaultEmbedWorkers,
		},
		Store: &StoreOptions{
			Backend:    StoreBackendMemory,
			Collection: "docchat_chunks",
			Milvus:     milvusopts.NewOptions(),
		},
		Cache: &CacheOptions{
			Enabled: false,
			TTL:     biz.DefaultCacheTTL,
			Prefix:  "docchat",
			Redis:   redisopts.NewOptions(),
		},
	}
}

// AddFlags adds all service flags to the flagset.
func (o *Options) AddFlags(fs *pflag.FlagSet) {
	o.HTTP.AddFlags(fs)
	o.Log.AddFlags(fs)
	o.Embedding.AddFlags(fs, "embedding")
	o.Chat.AddFlags(fs, "chat")

	fs.IntVar(&o.DocChat.ChunkSize, "docchat.chunk-size", o.DocChat.ChunkSize, "Chunk size in runes.")
	fs.IntVar(&o.DocChat.ChunkOverlap, "docchat.chunk-overlap", o.DocChat.ChunkOverlap, "Overlap between adjacent chunks in runes.")
	fs.IntVar(&o.DocChat.TopK, "docchat.top-k", o.DocChat.TopK, "Number of chunks retrieved per question.")
	fs.IntVar(&o.DocChat.HistorySize, "docchat.history-size", o.DocChat.HistorySize, "Number of conversation turns to keep.")
	fs.IntVar(&o.DocChat.SummaryBudget, "docchat.summary-budget", o.DocChat.SummaryBudget, "Per-call rune budget for summarization.")
	fs.IntVar(&o.DocChat.QuestionCount, "docchat.question-count", o.DocChat.QuestionCount, "Number of suggested questions to generate.")
	fs.Int64Var(&o.DocChat.MaxUploadSize, "docchat.max-upload-size", o.DocChat.MaxUploadSize, "Maximum accepted document size in bytes.")
	fs.IntVar(&o.DocChat.EmbedBatchSize, "docchat.embed-batch-size", o.DocChat.EmbedBatchSize, "Chunks embedded per provider call.")
	fs.IntVar(&o.DocChat.EmbedWorkers, "docchat.embed-workers", o.DocChat.EmbedWorkers, "Concurrent embedding workers.")
	fs.StringVar(&o.DocChat.SystemPrompt, "docchat.system-prompt", o.DocChat.SystemPrompt, "Override the answering system prompt.")
	fs.StringVar(&o.DocChat.PromptTemplate, "docchat.prompt-template", o.DocChat.PromptTemplate, "Override the answering prompt template.")

	fs.StringVar(&o.Store.Backend, "store.backend", o.Store.Backend, "Vector index backend (memory, milvus).")
	fs.StringVar(&o.Store.Collection, "store.collection", o.Store.Collection, "Milvus collection name prefix.")
	o.Store.Milvus.AddFlags(fs, "store")

	fs.BoolVar(&o.Cache.Enabled, "cache.enabled", o.Cache.Enabled, "Enable the Redis summary cache.")
	fs.DurationVar(&o.Cache.TTL, "cache.ttl", o.Cache.TTL, "Cache entry lifetime.")
	fs.StringVar(&o.Cache.Prefix, "cache.prefix", o.Cache.Prefix, "Cache key prefix.")
	o.Cache.Redis.AddFlags(fs, "cache")
}

// Validate validates all option sections.
func (o *Options) Validate() error {
	var errs []error

	errs = append(errs, o.HTTP.Validate()...)
	if err := o.Log.Validate(); err != nil {
		errs = append(errs, err)
	}
	errs = append(errs, o.Embedding.Validate()...)
	errs = append(errs, o.Chat.Validate()...)

	if o.DocChat.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("docchat.chunk-size must be positive"))
	}
	if o.DocChat.ChunkOverlap < 0 || o.DocChat.ChunkOverlap >= o.DocChat.ChunkSize {
		errs = append(errs, fmt.Errorf("docchat.chunk-overlap must be in [0, chunk-size)"))
	}
	if o.DocChat.TopK <= 0 {
		errs = append(errs, fmt.Errorf("docchat.top-k must be positive"))
	}
	if o.DocChat.HistorySize <= 0 {
		errs = append(errs, fmt.Errorf("docchat.history-size must be positive"))
	}
	if o.DocChat.MaxUploadSize <= 0 {
		errs = append(errs, fmt.Errorf("docchat.max-upload-size must be positive"))
	}

	switch o.Store.Backend {
	case StoreBackendMemory:
	case StoreBackendMilvus:
		errs = append(errs, o.Store.Milvus.Validate()...)
		if o.Store.Collection == "" {
			errs = append(errs, fmt.Errorf("store.collection is required for the milvus backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store backend %q (memory, milvus)", o.Store.Backend))
	}

	if o.Cache.Enabled {
		errs = append(errs, o.Cache.Redis.Validate()...)
		if o.Cache.TTL <= 0 {
			errs = append(errs, fmt.Errorf("cache.ttl must be positive when the cache is enabled"))
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("invalid configuration: %v", errs)
}

// Complete fills in derived defaults.
func (o *Options) Complete() error {
	if err := o.Log.Complete(); err != nil {
		return err
	}
	if err := o.HTTP.Complete(); err != nil {
		return err
	}
	if err := o.Embedding.Complete(); err != nil {
		return err
	}
	if err := o.Chat.Complete(); err != nil {
		return err
	}
	if o.DocChat.SummaryBudget <= 0 {
		o.DocChat.SummaryBudget = biz.DefaultSummaryBudget
	}
	if o.DocChat.QuestionCount <= 0 {
		o.DocChat.QuestionCount = biz.DefaultQuestionCount
	}
	if o.DocChat.EmbedBatchSize <= 0 {
		o.DocChat.EmbedBatchSize = biz.DefaultEmbedBatchSize
	}
	if o.DocChat.EmbedWorkers <= 0 {
		o.DocChat.EmbedWorkers = biz.DefaultEmbedWorkers
	}
	return nil
}
