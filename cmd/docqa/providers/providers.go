// Package providers builds the configured embedder, vector index, generator
// and event publisher for docqa commands.
package providers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/docqa/pkg/config"
	"github.com/papercomputeco/docqa/pkg/credentials"
	"github.com/papercomputeco/docqa/pkg/dotdir"
	"github.com/papercomputeco/docqa/pkg/embeddings"
	embeddingutils "github.com/papercomputeco/docqa/pkg/embeddings/utils"
	"github.com/papercomputeco/docqa/pkg/eventstream"
	eventstreamutils "github.com/papercomputeco/docqa/pkg/eventstream/utils"
	"github.com/papercomputeco/docqa/pkg/llm"
	llmutils "github.com/papercomputeco/docqa/pkg/llm/utils"
	"github.com/papercomputeco/docqa/pkg/vector"
	vectorutils "github.com/papercomputeco/docqa/pkg/vector/utils"
)

// ResolveConfig layers defaults, config.toml, DOCQA_* environment variables
// and the command's registered flags, then validates the result.
func ResolveConfig(cmd *cobra.Command, flagKeys []string) (*config.Config, error) {
	configDir, _ := cmd.Flags().GetString("config-dir")

	v, err := config.InitViper(configDir)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	config.BindRegisteredFlags(v, cmd, config.Flags, flagKeys)

	cfg := config.FromViper(v)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// IndexPath returns vector_store.path, or the index file inside the
// resolved .docqa/ directory when it is unset.
func IndexPath(cfg *config.Config, configDir string) (string, error) {
	if cfg.VectorStore.Path != "" {
		return cfg.VectorStore.Path, nil
	}
	return dotdir.NewManager().IndexPath(configDir)
}

// IndexTarget describes where the index lives, for logs and events.
func IndexTarget(cfg *config.Config, configDir string) string {
	switch cfg.VectorStore.Provider {
	case "sqlite", "sqlitevec":
		path, err := IndexPath(cfg, configDir)
		if err != nil {
			return cfg.VectorStore.Provider
		}
		return "sqlite:" + path
	case "memory", "inmemory":
		return "memory"
	default:
		return cfg.VectorStore.Provider + ":" + cfg.VectorStore.Collection
	}
}

// NewEmbedder builds the configured embedder, resolving its API key.
func NewEmbedder(cfg *config.Config, configDir string) (embeddings.Embedder, error) {
	apiKey, err := resolveKey(cfg.Embedding.Provider, cfg.Embedding.APIKey, configDir)
	if err != nil {
		return nil, err
	}

	return embeddingutils.NewEmbedder(&embeddingutils.NewEmbedderOpts{
		ProviderType: cfg.Embedding.Provider,
		TargetURL:    cfg.Embedding.Target,
		Model:        cfg.Embedding.Model,
		Dimensions:   cfg.Embedding.Dimensions,
		BatchSize:    cfg.Embedding.BatchSize,
		RateLimit:    cfg.Embedding.RateLimit,
		APIKey:       apiKey,
	})
}

// NewGenerator builds the configured generator, resolving its API key.
func NewGenerator(cfg *config.Config, configDir string) (llm.Generator, error) {
	apiKey, err := resolveKey(cfg.LLM.Provider, cfg.LLM.APIKey, configDir)
	if err != nil {
		return nil, err
	}

	return llmutils.NewGenerator(&llmutils.NewGeneratorOpts{
		ProviderType: cfg.LLM.Provider,
		TargetURL:    cfg.LLM.Target,
		Model:        cfg.LLM.Model,
		Temperature:  cfg.LLM.Temperature,
		APIKey:       apiKey,
	})
}

// NewVectorDriver opens the configured index in the given mode.
func NewVectorDriver(ctx context.Context, cfg *config.Config, configDir string, mode vector.Mode, logger *slog.Logger) (vector.Driver, error) {
	opts, err := vectorDriverOpts(cfg, configDir, mode, logger)
	if err != nil {
		return nil, err
	}
	return vectorutils.NewVectorDriver(ctx, opts)
}

func vectorDriverOpts(cfg *config.Config, configDir string, mode vector.Mode, logger *slog.Logger) (*vectorutils.NewVectorDriverOpts, error) {
	opts := &vectorutils.NewVectorDriverOpts{
		ProviderType: cfg.VectorStore.Provider,
		TargetURL:    cfg.VectorStore.Target,
		Collection:   cfg.VectorStore.Collection,
		APIKey:       cfg.VectorStore.APIKey,
		Dimensions:   cfg.Embedding.Dimensions,
		Mode:         mode,
		Logger:       logger,
	}

	if cfg.VectorStore.Provider == "sqlite" || cfg.VectorStore.Provider == "sqlitevec" {
		path, err := IndexPath(cfg, configDir)
		if err != nil {
			return nil, err
		}
		opts.Path = path
	}

	return opts, nil
}

// NewPublisher builds the configured event publisher.
func NewPublisher(cfg *config.Config) (eventstream.Publisher, error) {
	return eventstreamutils.NewPublisher(&eventstreamutils.NewPublisherOpts{
		ProviderType: cfg.EventStream.Provider,
		Brokers:      cfg.EventStream.Brokers,
		Topic:        cfg.EventStream.Topic,
	})
}

func resolveKey(provider, explicit, configDir string) (string, error) {
	if explicit == "" && !credentials.IsSupportedProvider(provider) {
		return "", nil
	}

	mgr, err := credentials.NewManager(configDir)
	if err != nil {
		return "", fmt.Errorf("loading credentials: %w", err)
	}
	return mgr.Resolve(provider, explicit)
}
