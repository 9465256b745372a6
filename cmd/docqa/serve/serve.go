// Package servecmder provides the serve command, which loads the persisted
// index and runs the question answering API.
package servecmder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/docqa/api"
	"github.com/papercomputeco/docqa/cmd/docqa/providers"
	"github.com/papercomputeco/docqa/pkg/answer"
	"github.com/papercomputeco/docqa/pkg/config"
	"github.com/papercomputeco/docqa/pkg/embeddings"
	"github.com/papercomputeco/docqa/pkg/eventstream/worker"
	"github.com/papercomputeco/docqa/pkg/llm"
	"github.com/papercomputeco/docqa/pkg/logger"
	"github.com/papercomputeco/docqa/pkg/prompt"
	"github.com/papercomputeco/docqa/pkg/retriever"
	"github.com/papercomputeco/docqa/pkg/vector"
)

type serveCommander struct {
	flags      serveFlags
	disableMCP bool
	jsonLogs   bool
	logFile    string

	cfg       *config.Config
	configDir string
	debug     bool

	logger *slog.Logger
}

type serveFlags struct {
	listen          string
	vectorStoreProv string
	vectorStoreTgt  string
	vectorStorePath string
	collection      string
	embeddingProv   string
	embeddingTgt    string
	embeddingModel  string
	embeddingDims   uint
	llmProvider     string
	llmTarget       string
	llmModel        string
	topK            uint
	eventStreamProv string
	eventTopic      string
}

var serveFlagKeys = []string{
	config.FlagListen,
	config.FlagVectorStoreProv,
	config.FlagVectorStoreTgt,
	config.FlagVectorStorePath,
	config.FlagCollection,
	config.FlagEmbeddingProv,
	config.FlagEmbeddingTgt,
	config.FlagEmbeddingModel,
	config.FlagEmbeddingDims,
	config.FlagLLMProvider,
	config.FlagLLMTarget,
	config.FlagLLMModel,
	config.FlagTopK,
	config.FlagEventStreamProv,
	config.FlagEventTopic,
}

const serveLongDesc string = `Run the docqa API server.

The server starts listening immediately and loads the index built by
"docqa ingest" in the background; /ready reports 503 and /ask answers with
kind "not_ready" until loading completes. A missing index stops the server.

Endpoints:
  GET  /        service banner
  GET  /ping    liveness
  GET  /ready   readiness
  POST /ask     {"question": "..."} -> answer and source documents
  /mcp          MCP streamable HTTP endpoint with an "ask" tool

Examples:
  docqa serve
  docqa serve --listen :9000 --top-k 5
  docqa serve --llm-provider anthropic --llm-model claude-3-5-haiku-latest`

const serveShortDesc string = "Run the docqa API server"

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")

			cfg, err := providers.ResolveConfig(cmd, serveFlagKeys)
			if err != nil {
				return err
			}
			cmder.cfg = cfg
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return cmder.run(ctx)
		},
	}

	f := &cmder.flags
	config.AddStringFlag(cmd, config.Flags, config.FlagListen, &f.listen)
	config.AddStringFlag(cmd, config.Flags, config.FlagVectorStoreProv, &f.vectorStoreProv)
	config.AddStringFlag(cmd, config.Flags, config.FlagVectorStoreTgt, &f.vectorStoreTgt)
	config.AddStringFlag(cmd, config.Flags, config.FlagVectorStorePath, &f.vectorStorePath)
	config.AddStringFlag(cmd, config.Flags, config.FlagCollection, &f.collection)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingProv, &f.embeddingProv)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingTgt, &f.embeddingTgt)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingModel, &f.embeddingModel)
	config.AddUintFlag(cmd, config.Flags, config.FlagEmbeddingDims, &f.embeddingDims)
	config.AddStringFlag(cmd, config.Flags, config.FlagLLMProvider, &f.llmProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagLLMTarget, &f.llmTarget)
	config.AddStringFlag(cmd, config.Flags, config.FlagLLMModel, &f.llmModel)
	config.AddUintFlag(cmd, config.Flags, config.FlagTopK, &f.topK)
	config.AddStringFlag(cmd, config.Flags, config.FlagEventStreamProv, &f.eventStreamProv)
	config.AddStringFlag(cmd, config.Flags, config.FlagEventTopic, &f.eventTopic)
	cmd.Flags().BoolVar(&cmder.disableMCP, "no-mcp", false, "Disable the /mcp endpoint")
	cmd.Flags().BoolVar(&cmder.jsonLogs, "json-logs", false, "Write logs as JSON")
	cmd.Flags().StringVar(&cmder.logFile, "log-file", "", "Also append JSON logs to this file")

	return cmd
}

func (c *serveCommander) run(ctx context.Context) error {
	closeLog, err := c.setupLogger()
	if err != nil {
		return err
	}
	defer closeLog()

	server, err := api.NewServer(api.Config{
		ListenAddr: c.cfg.API.Listen,
		DisableMCP: c.disableMCP,
	}, c.logger)
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", c.cfg.API.Listen)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", c.cfg.API.Listen, err)
	}

	errCh := make(chan error, 2)
	go func() {
		if err := server.Serve(ln); err != nil {
			errCh <- fmt.Errorf("api server: %w", err)
		}
	}()

	loadCtx, cancelLoad := context.WithCancel(ctx)
	defer cancelLoad()

	loaded := make(chan *services, 1)
	go func() {
		svc, err := c.loadServices(loadCtx)
		if err != nil {
			errCh <- fmt.Errorf("loading answer pipeline: %w", err)
			loaded <- nil
			return
		}
		server.SetPipeline(svc.pipeline)
		loaded <- svc
	}()

	var runErr error
	select {
	case <-ctx.Done():
		c.logger.Info("shutting down")
	case runErr = <-errCh:
		c.logger.Error("server stopped", logger.Err(runErr))
	}

	if err := server.Shutdown(); err != nil {
		c.logger.Warn("api server shutdown", logger.Err(err))
	}
	_ = ln.Close()

	cancelLoad()
	if svc := <-loaded; svc != nil {
		if err := svc.Close(); err != nil {
			c.logger.Warn("closing services", logger.Err(err))
		}
	}

	return runErr
}

// services owns everything the answer pipeline holds open.
type services struct {
	index     vector.Driver
	embedder  embeddings.Embedder
	generator llm.Generator
	events    *worker.Pool
	pipeline  *answer.Pipeline
}

func (c *serveCommander) loadServices(ctx context.Context) (*services, error) {
	svc := &services{}
	ok := false
	defer func() {
		if !ok {
			_ = svc.Close()
		}
	}()

	var err error
	svc.index, err = providers.NewVectorDriver(ctx, c.cfg, c.configDir, vector.ModeLoad, c.logger)
	if err != nil {
		return nil, err
	}

	count, err := svc.index.Count(ctx)
	if err != nil {
		return nil, err
	}
	c.logger.Info("loaded vector index",
		"target", providers.IndexTarget(c.cfg, c.configDir),
		"entries", count,
	)

	svc.embedder, err = providers.NewEmbedder(c.cfg, c.configDir)
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}

	svc.generator, err = providers.NewGenerator(c.cfg, c.configDir)
	if err != nil {
		return nil, fmt.Errorf("creating generator: %w", err)
	}

	publisher, err := providers.NewPublisher(c.cfg)
	if err != nil {
		return nil, fmt.Errorf("creating event publisher: %w", err)
	}
	svc.events, err = worker.NewPool(&worker.Config{
		Publisher: publisher,
		Logger:    c.logger,
	})
	if err != nil {
		_ = publisher.Close()
		return nil, err
	}

	r, err := retriever.New(retriever.Config{
		Embedder: svc.embedder,
		Index:    svc.index,
		K:        int(c.cfg.Retrieval.TopK),
		Logger:   c.logger,
	})
	if err != nil {
		return nil, err
	}

	svc.pipeline, err = answer.New(answer.Config{
		Retriever: r,
		Prompt:    prompt.NewBuilder(),
		Generator: svc.generator,
		Events:    svc.events,
		Logger:    c.logger,
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("answer pipeline configured",
		"llm_provider", c.cfg.LLM.Provider,
		"llm_model", c.cfg.LLM.Model,
		"embedding_provider", c.cfg.Embedding.Provider,
		"embedding_model", c.cfg.Embedding.Model,
		"top_k", r.K(),
	)

	ok = true
	return svc, nil
}

// Close drains pending events before closing the clients and the index.
func (s *services) Close() error {
	var errs []error
	if s.events != nil {
		errs = append(errs, s.events.Close())
	}
	if s.generator != nil {
		errs = append(errs, s.generator.Close())
	}
	if s.embedder != nil {
		errs = append(errs, s.embedder.Close())
	}
	if s.index != nil {
		errs = append(errs, s.index.Close())
	}
	return errors.Join(errs...)
}

// setupLogger builds the console logger and, with --log-file, tees records as
// JSON into the file.
func (c *serveCommander) setupLogger() (func(), error) {
	console := logger.New(
		logger.WithDebug(c.debug),
		logger.WithJSON(c.jsonLogs),
	)
	if c.logFile == "" {
		c.logger = console
		return func() {}, nil
	}

	f, err := os.OpenFile(c.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}

	c.logger = logger.Multi(console, logger.New(
		logger.WithDebug(c.debug),
		logger.WithJSON(true),
		logger.WithWriter(f),
	))

	return func() { _ = f.Close() }, nil
}
