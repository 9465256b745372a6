// Package ingestcmder provides the ingest command, which builds the vector
// index from a documents directory.
package ingestcmder

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/docqa/cmd/docqa/providers"
	"github.com/papercomputeco/docqa/pkg/chunker"
	"github.com/papercomputeco/docqa/pkg/cliui"
	"github.com/papercomputeco/docqa/pkg/config"
	"github.com/papercomputeco/docqa/pkg/document"
	"github.com/papercomputeco/docqa/pkg/ingest"
	"github.com/papercomputeco/docqa/pkg/logger"
	"github.com/papercomputeco/docqa/pkg/vector"
)

type ingestCommander struct {
	flags ingestFlags

	cfg       *config.Config
	configDir string
	debug     bool

	out      io.Writer
	logger   *slog.Logger
	progress *progress
}

// ingestFlags holds flag targets. Values reach the config through viper.
type ingestFlags struct {
	docs            string
	chunkSize       uint
	chunkOverlap    uint
	vectorStoreProv string
	vectorStoreTgt  string
	vectorStorePath string
	collection      string
	embeddingProv   string
	embeddingTgt    string
	embeddingModel  string
	embeddingDims   uint
	batchSize       uint
	rateLimit       uint
	eventStreamProv string
	eventTopic      string
}

var ingestFlagKeys = []string{
	config.FlagDocs,
	config.FlagChunkSize,
	config.FlagChunkOverlap,
	config.FlagVectorStoreProv,
	config.FlagVectorStoreTgt,
	config.FlagVectorStorePath,
	config.FlagCollection,
	config.FlagEmbeddingProv,
	config.FlagEmbeddingTgt,
	config.FlagEmbeddingModel,
	config.FlagEmbeddingDims,
	config.FlagBatchSize,
	config.FlagRateLimit,
	config.FlagEventStreamProv,
	config.FlagEventTopic,
}

const ingestLongDesc string = `Build the vector index from a documents directory.

Walks the documents directory (.pdf, .docx, .txt, .md), splits every document
into overlapping chunks, embeds them and persists the index. With the default
sqlite vector store the index is written to .docqa/index.sqlite; a failed run
leaves any previous index untouched.

Run "docqa serve" afterwards to answer questions over the index.

Examples:
  docqa ingest
  docqa ingest --docs ./manuals
  docqa ingest --docs ./manuals --chunk-size 800 --chunk-overlap 100
  docqa ingest --embedding-provider openai --embedding-model text-embedding-3-small`

const ingestShortDesc string = "Build the vector index from documents"

func NewIngestCmd() *cobra.Command {
	cmder := &ingestCommander{}

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: ingestShortDesc,
		Long:  ingestLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")

			cfg, err := providers.ResolveConfig(cmd, ingestFlagKeys)
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
			cmder.out = cmd.OutOrStdout()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return cmder.run(ctx)
		},
	}

	f := &cmder.flags
	config.AddStringFlag(cmd, config.Flags, config.FlagDocs, &f.docs)
	config.AddUintFlag(cmd, config.Flags, config.FlagChunkSize, &f.chunkSize)
	config.AddUintFlag(cmd, config.Flags, config.FlagChunkOverlap, &f.chunkOverlap)
	config.AddStringFlag(cmd, config.Flags, config.FlagVectorStoreProv, &f.vectorStoreProv)
	config.AddStringFlag(cmd, config.Flags, config.FlagVectorStoreTgt, &f.vectorStoreTgt)
	config.AddStringFlag(cmd, config.Flags, config.FlagVectorStorePath, &f.vectorStorePath)
	config.AddStringFlag(cmd, config.Flags, config.FlagCollection, &f.collection)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingProv, &f.embeddingProv)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingTgt, &f.embeddingTgt)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingModel, &f.embeddingModel)
	config.AddUintFlag(cmd, config.Flags, config.FlagEmbeddingDims, &f.embeddingDims)
	config.AddUintFlag(cmd, config.Flags, config.FlagBatchSize, &f.batchSize)
	config.AddUintFlag(cmd, config.Flags, config.FlagRateLimit, &f.rateLimit)
	config.AddStringFlag(cmd, config.Flags, config.FlagEventStreamProv, &f.eventStreamProv)
	config.AddStringFlag(cmd, config.Flags, config.FlagEventTopic, &f.eventTopic)

	return cmd
}

func (c *ingestCommander) run(ctx context.Context) error {
	level := slog.LevelWarn
	if c.debug {
		level = slog.LevelDebug
	}
	c.logger = logger.New(
		logger.WithLevel(level),
		logger.WithPretty(true),
		logger.WithWriter(os.Stderr),
	)

	pipeline, closeAll, err := c.newPipeline()
	if err != nil {
		return err
	}
	defer closeAll()

	fmt.Fprintf(c.out, "\n  %s %s\n\n",
		cliui.HeaderStyle.Render("Ingesting"),
		cliui.KeyStyle.Render(c.cfg.Documents.Root),
	)

	result, err := c.progress.track(func() (*ingest.Result, error) {
		return pipeline.Run(ctx)
	})
	if err != nil {
		return err
	}

	c.printSummary(result)
	return nil
}

func (c *ingestCommander) newPipeline() (*ingest.Pipeline, func(), error) {
	splitter, err := chunker.New(chunker.Config{
		Size:    int(c.cfg.Chunking.Size),
		Overlap: int(c.cfg.Chunking.Overlap),
	})
	if err != nil {
		return nil, nil, err
	}

	embedder, err := providers.NewEmbedder(c.cfg, c.configDir)
	if err != nil {
		return nil, nil, fmt.Errorf("creating embedder: %w", err)
	}

	publisher, err := providers.NewPublisher(c.cfg)
	if err != nil {
		_ = embedder.Close()
		return nil, nil, fmt.Errorf("creating event publisher: %w", err)
	}

	closeAll := func() {
		if err := publisher.Close(); err != nil {
			c.logger.Warn("closing event publisher", logger.Err(err))
		}
		if err := embedder.Close(); err != nil {
			c.logger.Warn("closing embedder", logger.Err(err))
		}
	}

	c.progress = newProgress(c.out)

	pipeline, err := ingest.New(ingest.Config{
		DocumentsRoot: c.cfg.Documents.Root,
		Loader: document.NewDirLoader(document.DirLoaderConfig{
			Extensions: c.cfg.Documents.Extensions,
			Logger:     c.logger,
		}),
		Splitter: splitter,
		Embedder: embedder,
		OpenIndex: func(ctx context.Context) (vector.Driver, error) {
			return providers.NewVectorDriver(ctx, c.cfg, c.configDir, vector.ModeBuild, c.logger)
		},
		VectorStore:   providers.IndexTarget(c.cfg, c.configDir),
		Publisher:     publisher,
		OnStateChange: c.progress.onState,
		Logger:        c.logger,
	})
	if err != nil {
		closeAll()
		return nil, nil, err
	}

	return pipeline, closeAll, nil
}

func (c *ingestCommander) printSummary(result *ingest.Result) {
	fmt.Fprintf(c.out, "\n  %s Indexed %s chunks from %s documents %s\n",
		cliui.SuccessMark,
		cliui.ValueStyle.Render(fmt.Sprint(result.Chunks)),
		cliui.ValueStyle.Render(fmt.Sprint(result.Documents)),
		cliui.StepStyle.Render("("+cliui.FormatDuration(result.Duration)+")"),
	)
	fmt.Fprintf(c.out, "  %s %s\n",
		cliui.DimStyle.Render("Index:"),
		providers.IndexTarget(c.cfg, c.configDir),
	)

	if result.EmptyDocuments > 0 {
		fmt.Fprintf(c.out, "  %s %d documents had no text\n",
			cliui.WarnStyle.Render("!"), result.EmptyDocuments)
	}
	for _, s := range result.Skipped {
		fmt.Fprintf(c.out, "  %s skipped %s %s\n",
			cliui.WarnStyle.Render("!"), s.Path, cliui.DimStyle.Render(s.Err.Error()))
	}
	fmt.Fprintln(c.out)
}

// progress renders each pipeline step as a cliui.Step spinner line.
type progress struct {
	out    io.Writer
	states chan ingest.State
}

func newProgress(out io.Writer) *progress {
	return &progress{out: out, states: make(chan ingest.State, 16)}
}

func (p *progress) onState(s ingest.State) {
	p.states <- s
}

// track runs the pipeline in the background and keeps one step line
// spinning until the pipeline moves past that step. The last step is
// marked with the run's error.
func (p *progress) track(run func() (*ingest.Result, error)) (*ingest.Result, error) {
	var (
		result *ingest.Result
		runErr error
	)
	go func() {
		result, runErr = run()
		close(p.states)
	}()

	step, ok := p.nextStep()
	for ok {
		_ = cliui.Step(p.out, stepLabel(step), func() error {
			step, ok = p.nextStep()
			if !ok {
				return runErr
			}
			return nil
		})
	}

	return result, runErr
}

// nextStep returns the next working state, or false once the run is over.
func (p *progress) nextStep() (ingest.State, bool) {
	for s := range p.states {
		if s != ingest.StateIdle && !s.Terminal() {
			return s, true
		}
	}
	return ingest.StateIdle, false
}

func stepLabel(s ingest.State) string {
	switch s {
	case ingest.StateLoadingDocuments:
		return "Loading documents"
	case ingest.StateChunking:
		return "Splitting into chunks"
	case ingest.StateEmbedding:
		return "Embedding chunks"
	case ingest.StatePersisting:
		return "Persisting index"
	default:
		return s.String()
	}
}
