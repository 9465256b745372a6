package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag is the single source of truth for a CLI flag.
// Commands reference flags by registry key rather than hard-coding names,
// shorthands, defaults, and descriptions inline. This prevents flag drift
// when the same logical flag appears on multiple commands (e.g., --embedding-model
// on both "docqa ingest" and "docqa serve").
type Flag struct {
	// Name is the long flag name (e.g. "docs").
	Name string

	// Shorthand is the one-letter short flag (e.g. "d"). Empty for no shorthand.
	Shorthand string

	// ViperKey is the dotted config key this flag maps to (e.g. "documents.root").
	ViperKey string

	// Description is the help text shown in --help output.
	Description string
}

// FlagSet is a mapping of flag names to Flag structs that hold their name,
// shorthand, viper key, etc.
type FlagSet map[string]Flag

// Flag registry keys.
// Use these constants when calling AddStringFlag, AddUintFlag,
// and BindRegisteredFlags to avoid typos or drift from one command to another.
const (
	FlagDocs            = "docs"
	FlagChunkSize       = "chunk-size"
	FlagChunkOverlap    = "chunk-overlap"
	FlagVectorStoreProv = "vector-store-provider"
	FlagVectorStoreTgt  = "vector-store-target"
	FlagVectorStorePath = "vector-store-path"
	FlagCollection      = "collection"
	FlagEmbeddingProv   = "embedding-provider"
	FlagEmbeddingTgt    = "embedding-target"
	FlagEmbeddingModel  = "embedding-model"
	FlagEmbeddingDims   = "embedding-dimensions"
	FlagBatchSize       = "batch-size"
	FlagRateLimit       = "rate-limit"
	FlagLLMProvider     = "llm-provider"
	FlagLLMTarget       = "llm-target"
	FlagLLMModel        = "llm-model"
	FlagTopK            = "top-k"
	FlagListen          = "listen"
	FlagAPITarget       = "api-target"
	FlagEventStreamProv = "event-stream-provider"
	FlagEventTopic      = "event-topic"
)

// Flags is the registry shared by every docqa command.
var Flags = FlagSet{
	FlagDocs: {
		Name: "docs", Shorthand: "d", ViperKey: "documents.root",
		Description: "Directory containing the documents to ingest",
	},
	FlagChunkSize: {
		Name: "chunk-size", ViperKey: "chunking.size",
		Description: "Maximum chunk length in characters",
	},
	FlagChunkOverlap: {
		Name: "chunk-overlap", ViperKey: "chunking.overlap",
		Description: "Characters shared between consecutive chunks",
	},
	FlagVectorStoreProv: {
		Name: "vector-store-provider", ViperKey: "vector_store.provider",
		Description: "Vector store provider (sqlite, chroma, qdrant, postgres, memory)",
	},
	FlagVectorStoreTgt: {
		Name: "vector-store-target", ViperKey: "vector_store.target",
		Description: "Vector store URL or DSN for remote providers",
	},
	FlagVectorStorePath: {
		Name: "vector-store-path", ViperKey: "vector_store.path",
		Description: "Index file path for the sqlite provider (default .docqa/index.sqlite)",
	},
	FlagCollection: {
		Name: "collection", ViperKey: "vector_store.collection",
		Description: "Collection or table name used by remote vector stores",
	},
	FlagEmbeddingProv: {
		Name: "embedding-provider", ViperKey: "embedding.provider",
		Description: "Embedding provider (ollama, openai)",
	},
	FlagEmbeddingTgt: {
		Name: "embedding-target", ViperKey: "embedding.target",
		Description: "Embedding provider URL",
	},
	FlagEmbeddingModel: {
		Name: "embedding-model", ViperKey: "embedding.model",
		Description: "Embedding model name",
	},
	FlagEmbeddingDims: {
		Name: "embedding-dimensions", ViperKey: "embedding.dimensions",
		Description: "Embedding vector dimensions",
	},
	FlagBatchSize: {
		Name: "batch-size", ViperKey: "embedding.batch_size",
		Description: "Number of texts sent per embedding request",
	},
	FlagRateLimit: {
		Name: "rate-limit", ViperKey: "embedding.rate_limit",
		Description: "Maximum embedding requests per second (0 = unlimited)",
	},
	FlagLLMProvider: {
		Name: "llm-provider", ViperKey: "llm.provider",
		Description: "Generation provider (ollama, openai, anthropic)",
	},
	FlagLLMTarget: {
		Name: "llm-target", ViperKey: "llm.target",
		Description: "Generation provider URL",
	},
	FlagLLMModel: {
		Name: "llm-model", ViperKey: "llm.model",
		Description: "Generation model name",
	},
	FlagTopK: {
		Name: "top-k", Shorthand: "k", ViperKey: "retrieval.top_k",
		Description: "Number of chunks retrieved per question",
	},
	FlagListen: {
		Name: "listen", Shorthand: "l", ViperKey: "api.listen",
		Description: "Address for the API server to listen on",
	},
	FlagAPITarget: {
		Name: "api-target", ViperKey: "client.api_target",
		Description: "docqa API server URL",
	},
	FlagEventStreamProv: {
		Name: "event-stream-provider", ViperKey: "event_stream.provider",
		Description: "Event stream provider (nop, kafka)",
	},
	FlagEventTopic: {
		Name: "event-topic", ViperKey: "event_stream.topic",
		Description: "Topic that pipeline events are published to",
	},
}

// AddStringFlag registers a string flag on cmd from the given FlagSet.
// The flag's name, shorthand, default, and description all come from the
// FlagSet entry so they cannot drift across commands.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaultString(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().StringVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().StringVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddUintFlag registers a uint flag on cmd from the given FlagSet.
func AddUintFlag(cmd *cobra.Command, fs FlagSet, registryKey string, target *uint) {
	def, ok := fs[registryKey]
	if !ok {
		return
	}

	defaultVal := defaultUint(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().UintVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().UintVar(target, def.Name, defaultVal, def.Description)
	}
}

// BindRegisteredFlags binds already-registered flags to viper using definitions
// from the given FlagSet. Call this in PreRunE after InitViper to connect flags
// to the viper precedence chain (flag > env > config file > default).
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, registryKeys []string) {
	for _, registryKey := range registryKeys {
		def, ok := fs[registryKey]
		if !ok {
			continue
		}

		f := cmd.Flags().Lookup(def.Name)
		if f == nil {
			continue
		}

		_ = v.BindPFlag(def.ViperKey, f)
	}
}

// defaultString returns the default string value for a viper key from NewDefaultConfig.
func defaultString(viperKey string) string {
	v := viper.New()
	setViperDefaults(v)
	return v.GetString(viperKey)
}

// defaultUint returns the default uint value for a viper key from NewDefaultConfig.
func defaultUint(viperKey string) uint {
	v := viper.New()
	setViperDefaults(v)
	return v.GetUint(viperKey)
}
