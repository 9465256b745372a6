// Package ingest runs the offline pipeline that turns a documents directory
// into a persisted vector index.
//
// A run moves through LoadingDocuments, Chunking, Embedding and Persisting.
// Any failing step ends the run in StateFailed and leaves no index behind:
// the index is only opened once every earlier step has succeeded, and a
// build that is closed without Persist is discarded by its driver.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/papercomputeco/docqa/pkg/chunker"
	"github.com/papercomputeco/docqa/pkg/document"
	"github.com/papercomputeco/docqa/pkg/embeddings"
	"github.com/papercomputeco/docqa/pkg/eventstream"
	"github.com/papercomputeco/docqa/pkg/vector"
)

// IndexFactory opens the target index in vector.ModeBuild.
type IndexFactory func(ctx context.Context) (vector.Driver, error)

// Config configures a Pipeline.
type Config struct {
	// DocumentsRoot is the directory walked for documents.
	DocumentsRoot string

	Loader   *document.DirLoader
	Splitter *chunker.Splitter
	Embedder embeddings.Embedder

	// OpenIndex is called once, at the start of the Persisting step.
	OpenIndex IndexFactory

	// VectorStore names the index target in the emitted event.
	VectorStore string

	// Publisher receives an index built event after a successful run.
	// Optional.
	Publisher eventstream.Publisher

	// OnStateChange is called on every transition. Optional.
	OnStateChange func(State)

	Logger *slog.Logger
}

// Result summarizes a successful run.
type Result struct {
	Documents      int
	EmptyDocuments int
	Chunks         int
	Skipped        []document.SkippedFile
	Duration       time.Duration
}

// Pipeline is the ingestion state machine.
type Pipeline struct {
	config Config
	logger *slog.Logger
	state  atomic.Int32
	runMu  sync.Mutex
}

// New validates c and creates an idle Pipeline.
func New(c Config) (*Pipeline, error) {
	switch {
	case c.DocumentsRoot == "":
		return nil, errors.New("ingest requires a documents root")
	case c.Splitter == nil:
		return nil, errors.New("ingest requires a splitter")
	case c.Embedder == nil:
		return nil, errors.New("ingest requires an embedder")
	case c.OpenIndex == nil:
		return nil, errors.New("ingest requires an index factory")
	}

	logger := c.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if c.Loader == nil {
		c.Loader = document.NewDirLoader(document.DirLoaderConfig{Logger: logger})
	}

	return &Pipeline{config: c, logger: logger}, nil
}

// State returns the current step. Safe for concurrent use.
func (p *Pipeline) State() State {
	return State(p.state.Load())
}

func (p *Pipeline) transition(s State) {
	p.state.Store(int32(s))
	p.logger.Debug("ingestion state", "state", s.String())
	if p.config.OnStateChange != nil {
		p.config.OnStateChange(s)
	}
}

func (p *Pipeline) fail(err error) error {
	step := p.State()
	p.transition(StateFailed)
	return &StepError{State: step, Err: err}
}

// Run executes the whole pipeline. A run that fails can be repeated from
// scratch; there is no partial or resumable ingestion.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	if !p.runMu.TryLock() {
		return nil, ErrRunning
	}
	defer p.runMu.Unlock()

	start := time.Now()
	p.transition(StateIdle)
	result := &Result{}

	p.transition(StateLoadingDocuments)
	docs, err := p.load(ctx, result)
	if err != nil {
		return nil, p.fail(err)
	}

	p.transition(StateChunking)
	chunks, err := p.chunk(docs, result)
	if err != nil {
		return nil, p.fail(err)
	}

	p.transition(StateEmbedding)
	if err := p.embed(ctx, chunks); err != nil {
		return nil, p.fail(err)
	}

	p.transition(StatePersisting)
	if err := p.persist(ctx, chunks); err != nil {
		return nil, p.fail(err)
	}

	result.Duration = time.Since(start)
	p.transition(StateDone)

	p.logger.Info("ingestion complete",
		"documents", result.Documents,
		"chunks", result.Chunks,
		"skipped_files", len(result.Skipped),
		"duration", result.Duration,
	)
	p.publish(ctx, result)

	return result, nil
}

func (p *Pipeline) load(ctx context.Context, result *Result) ([]document.Document, error) {
	loaded, err := p.config.Loader.Load(ctx, p.config.DocumentsRoot)
	if err != nil {
		return nil, err
	}

	result.Skipped = loaded.Skipped
	result.Documents = len(loaded.Documents)
	if len(loaded.Documents) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoDocuments, p.config.DocumentsRoot)
	}

	p.logger.Info("loaded documents", "count", len(loaded.Documents), "skipped", len(loaded.Skipped))
	return loaded.Documents, nil
}

func (p *Pipeline) chunk(docs []document.Document, result *Result) ([]chunker.Chunk, error) {
	var chunks []chunker.Chunk
	for _, doc := range docs {
		split, err := p.config.Splitter.Split(doc)
		if errors.Is(err, chunker.ErrEmptyInput) {
			p.logger.Warn("skipping empty document", "source", doc.Metadata.Source, "page", doc.Metadata.PageLabel())
			result.EmptyDocuments++
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("split %s: %w", doc.Metadata.Source, err)
		}
		chunks = append(chunks, split...)
	}

	if len(chunks) == 0 {
		return nil, ErrEmptyCorpus
	}

	result.Chunks = len(chunks)
	p.logger.Info("split documents", "chunks", len(chunks))
	return chunks, nil
}

func (p *Pipeline) embed(ctx context.Context, chunks []chunker.Chunk) error {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vecs, err := p.config.Embedder.EmbedMany(ctx, texts)
	if err != nil {
		return err
	}
	if len(vecs) != len(chunks) {
		return &embeddings.ServiceError{
			Err: fmt.Errorf("got %d embeddings for %d chunks", len(vecs), len(chunks)),
		}
	}

	for i := range chunks {
		chunks[i].Embedding = vecs[i]
	}
	return nil
}

func (p *Pipeline) persist(ctx context.Context, chunks []chunker.Chunk) (err error) {
	index, err := p.config.OpenIndex(ctx)
	if err != nil {
		return fmt.Errorf("open index: %w", err)
	}
	defer func() {
		if cerr := index.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close index: %w", cerr)
		}
	}()

	entries := make([]vector.Entry, len(chunks))
	for i, c := range chunks {
		entries[i] = vector.Entry{
			ID:        c.ID,
			Text:      c.Text,
			Source:    c.Metadata.Source,
			Page:      c.Metadata.Page,
			Embedding: c.Embedding,
		}
	}

	if err := index.InsertAll(ctx, entries); err != nil {
		return fmt.Errorf("insert chunks: %w", err)
	}
	if err := index.Persist(ctx); err != nil {
		return fmt.Errorf("persist index: %w", err)
	}
	return nil
}

func (p *Pipeline) publish(ctx context.Context, result *Result) {
	if p.config.Publisher == nil {
		return
	}

	skipped := make([]string, 0, len(result.Skipped))
	for _, s := range result.Skipped {
		skipped = append(skipped, s.Path)
	}

	event := eventstream.NewEvent(eventstream.EventTypeIndexBuilt, eventstream.IndexBuiltPayload{
		DocumentsRoot: p.config.DocumentsRoot,
		Documents:     result.Documents,
		Chunks:        result.Chunks,
		SkippedFiles:  skipped,
		VectorStore:   p.config.VectorStore,
		DurationMs:    result.Duration.Milliseconds(),
	})
	if err := p.config.Publisher.Publish(ctx, event); err != nil {
		p.logger.Warn("failed to publish index built event", "error", err)
	}
}
