package docchat

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptions_DefaultsValidate(t *testing.T) {
	opts := NewOptions()
	require.NoError(t, opts.Complete())
	assert.NoError(t, opts.Validate())
}

func TestOptions_InvalidChunking(t *testing.T) {
	opts := NewOptions()
	opts.DocChat.ChunkSize = 0
	assert.Error(t, opts.Validate())

	opts = NewOptions()
	opts.DocChat.ChunkOverlap = opts.DocChat.ChunkSize
	assert.Error(t, opts.Validate())
}

func TestOptions_UnknownBackend(t *testing.T) {
	opts := NewOptions()
	opts.Store.Backend = "cassandra"
	assert.Error(t, opts.Validate())
}

func TestOptions_MilvusBackendNeedsAddress(t *testing.T) {
	opts := NewOptions()
	opts.Store.Backend = StoreBackendMilvus
	opts.Store.Milvus.Address = ""
	assert.Error(t, opts.Validate())

	opts.Store.Milvus.Address = "localhost:19530"
	assert.NoError(t, opts.Validate())
}

func TestOptions_OpenAIRequiresAPIKey(t *testing.T) {
	opts := NewOptions()
	opts.Chat.Provider = "openai"
	opts.Chat.APIKey = ""
	assert.Error(t, opts.Validate())

	opts.Chat.APIKey = "sk-test"
	assert.NoError(t, opts.Validate())
}

func TestOptions_AddFlags(t *testing.T) {
	opts := NewOptions()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	opts.AddFlags(fs)

	for _, name := range []string{
		"http.addr", "log.level",
		"embedding.llm.provider", "chat.llm.model",
		"docchat.chunk-size", "docchat.top-k",
		"store.backend", "store.milvus.address",
		"cache.enabled", "cache.redis.host",
	} {
		assert.NotNil(t, fs.Lookup(name), name)
	}

	require.NoError(t, fs.Parse([]string{"--docchat.chunk-size=256", "--chat.llm.model=llama3"}))
	assert.Equal(t, 256, opts.DocChat.ChunkSize)
	assert.Equal(t, "llama3", opts.Chat.Model)
}
