// Package chroma provides a Chroma vector database driver implementation.
package chroma

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/papercomputeco/docqa/pkg/vector"
)

const (
	// DefaultCollectionName is the default collection name for storing docqa embeddings.
	DefaultCollectionName = "docqa"

	// DefaultMaxRetries is the number of connection attempts made while
	// Chroma is starting up.
	DefaultMaxRetries = 5

	// DefaultRetryDelay is the initial delay between connection attempts.
	DefaultRetryDelay = 500 * time.Millisecond

	// DefaultMaxRetryDelay caps the exponential backoff.
	DefaultMaxRetryDelay = 5 * time.Second

	// addBatchSize bounds the number of entries per add request.
	addBatchSize = 256

	metaSource = "source"
	metaPage   = "page"
	metaSeq    = "seq"
)

// errNotFound marks a 404 from Chroma so it is not retried.
var errNotFound = errors.New("not found")

// Driver implements vector.Driver using Chroma's REST API.
type Driver struct {
	baseURL        string
	collectionName string
	collectionID   string
	mode           vector.Mode
	nextSeq        int64
	persisted      bool
	httpClient     *http.Client
	logger         *slog.Logger
}

// Config holds configuration for the Chroma driver.
type Config struct {
	// URL is the Chroma server URL (e.g., "http://localhost:8000").
	URL string

	// CollectionName is the name of the collection to use.
	// Defaults to DefaultCollectionName if empty.
	CollectionName string

	// Mode selects between recreating the collection and loading it.
	Mode vector.Mode

	// MaxRetries is the number of connection attempts. Defaults to DefaultMaxRetries.
	MaxRetries int

	// RetryDelay is the initial backoff. Defaults to DefaultRetryDelay.
	RetryDelay time.Duration

	// MaxRetryDelay caps the backoff. Defaults to DefaultMaxRetryDelay.
	MaxRetryDelay time.Duration

	HTTPClient *http.Client
}

// NewDriver creates a new Chroma vector driver.
//
// In build mode the collection is dropped and recreated with the cosine
// space. In load mode the collection must already exist.
func NewDriver(c Config, logger *slog.Logger) (*Driver, error) {
	if c.URL == "" {
		return nil, errors.New("chroma URL is required")
	}

	collectionName := c.CollectionName
	if collectionName == "" {
		collectionName = DefaultCollectionName
	}

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}

	d := &Driver{
		baseURL:        c.URL,
		collectionName: collectionName,
		mode:           c.Mode,
		httpClient:     httpClient,
		logger:         logger,
	}

	maxRetries := c.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	delay := c.RetryDelay
	if delay <= 0 {
		delay = DefaultRetryDelay
	}
	maxDelay := c.MaxRetryDelay
	if maxDelay <= 0 {
		maxDelay = DefaultMaxRetryDelay
	}

	ctx := context.Background()
	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		lastErr = d.connect(ctx)
		if lastErr == nil {
			break
		}
		if errors.Is(lastErr, vector.ErrIndexNotFound) {
			return nil, lastErr
		}

		logger.Warn("chroma not ready",
			"attempt", attempt,
			"max_attempts", maxRetries,
			"error", lastErr,
		)

		if attempt < maxRetries {
			time.Sleep(delay)
			delay = min(delay*2, maxDelay)
		}
	}
	if lastErr != nil {
		return nil, fmt.Errorf("%w: after %d attempts: %v", vector.ErrConnection, maxRetries, lastErr)
	}

	logger.Info("connected to Chroma",
		"url", c.URL,
		"collection", collectionName,
		"collection_id", d.collectionID,
		"mode", c.Mode.String(),
	)

	return d, nil
}

func (d *Driver) collectionsURL() string {
	return d.baseURL + "/api/v2/tenants/default_tenant/databases/default_database/collections"
}

func (d *Driver) collectionURL(suffix string) string {
	return d.collectionsURL() + "/" + url.PathEscape(d.collectionID) + suffix
}

func (d *Driver) connect(ctx context.Context) error {
	switch d.mode {
	case vector.ModeLoad:
		col, err := d.getCollection(ctx)
		if errors.Is(err, errNotFound) {
			return fmt.Errorf("%w: chroma collection %q", vector.ErrIndexNotFound, d.collectionName)
		}
		if err != nil {
			return err
		}
		if space, ok := col.Metadata["hnsw:space"].(string); ok && space != vector.Metric {
			return fmt.Errorf("%w: chroma collection %q uses %q space", vector.ErrIndexNotFound, d.collectionName, space)
		}
		d.collectionID = col.ID
		d.persisted = true
		return nil

	case vector.ModeBuild:
		if err := d.deleteCollection(ctx); err != nil && !errors.Is(err, errNotFound) {
			return err
		}
		col, err := d.createCollection(ctx)
		if err != nil {
			return err
		}
		d.collectionID = col.ID
		return nil

	default:
		return fmt.Errorf("unsupported mode %d", d.mode)
	}
}

// do sends a JSON request and decodes a JSON response into out when non-nil.
func (d *Driver) do(ctx context.Context, method, u string, body, out any) error {
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		reader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return errNotFound
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("chroma returned status %d: %s", resp.StatusCode, string(respBody))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func (d *Driver) getCollection(ctx context.Context) (*chromaCollection, error) {
	var col chromaCollection
	err := d.do(ctx, http.MethodGet, d.collectionsURL()+"/"+url.PathEscape(d.collectionName), nil, &col)
	if err != nil {
		return nil, err
	}
	return &col, nil
}

func (d *Driver) createCollection(ctx context.Context) (*chromaCollection, error) {
	var col chromaCollection
	err := d.do(ctx, http.MethodPost, d.collectionsURL(), chromaCreateRequest{
		Name:     d.collectionName,
		Metadata: map[string]any{"hnsw:space": vector.Metric},
	}, &col)
	if err != nil {
		return nil, fmt.Errorf("creating collection %q: %w", d.collectionName, err)
	}
	return &col, nil
}

func (d *Driver) deleteCollection(ctx context.Context) error {
	return d.do(ctx, http.MethodDelete, d.collectionsURL()+"/"+url.PathEscape(d.collectionName), nil, nil)
}

// InsertAll adds entries in batches, recording their insertion sequence.
func (d *Driver) InsertAll(ctx context.Context, entries []vector.Entry) error {
	if d.mode != vector.ModeBuild || d.persisted {
		return vector.ErrReadOnly
	}

	for start := 0; start < len(entries); start += addBatchSize {
		batch := entries[start:min(start+addBatchSize, len(entries))]

		req := chromaAddRequest{
			IDs:        make([]string, len(batch)),
			Embeddings: make([][]float32, len(batch)),
			Metadatas:  make([]map[string]any, len(batch)),
			Documents:  make([]string, len(batch)),
		}
		for i, e := range batch {
			meta := map[string]any{
				metaSource: e.Source,
				metaSeq:    d.nextSeq + int64(i),
			}
			if e.Page != nil {
				meta[metaPage] = *e.Page
			}
			req.IDs[i] = e.ID
			req.Embeddings[i] = e.Embedding
			req.Metadatas[i] = meta
			req.Documents[i] = e.Text
		}

		if err := d.do(ctx, http.MethodPost, d.collectionURL("/add"), req, nil); err != nil {
			return fmt.Errorf("adding entries: %w", err)
		}
		d.nextSeq += int64(len(batch))
	}

	d.logger.Debug("added entries to chroma",
		"count", len(entries),
	)

	return nil
}

// Persist marks the build complete. Chroma stores entries durably as they
// are added.
func (d *Driver) Persist(context.Context) error {
	d.persisted = true
	return nil
}

// Query finds the k most similar entries to the given embedding.
func (d *Driver) Query(ctx context.Context, embedding []float32, k int) ([]vector.QueryResult, error) {
	results := []vector.QueryResult{}
	if k <= 0 {
		return results, nil
	}

	var queryResp chromaQueryResponse
	err := d.do(ctx, http.MethodPost, d.collectionURL("/query"), chromaQueryRequest{
		QueryEmbeddings: [][]float32{embedding},
		NResults:        k,
		Include:         []string{"metadatas", "distances", "documents"},
	}, &queryResp)
	if err != nil {
		return nil, fmt.Errorf("querying chroma: %w", err)
	}

	// Process first group (we only query with one embedding)
	if len(queryResp.IDs) == 0 || len(queryResp.IDs[0]) == 0 {
		return results, nil
	}

	ids := queryResp.IDs[0]
	var (
		distances []float32
		metadatas []map[string]any
		documents []string
	)
	if len(queryResp.Distances) > 0 {
		distances = queryResp.Distances[0]
	}
	if len(queryResp.Metadatas) > 0 {
		metadatas = queryResp.Metadatas[0]
	}
	if len(queryResp.Documents) > 0 {
		documents = queryResp.Documents[0]
	}

	seqs := make([]int64, len(ids))
	for i, id := range ids {
		r := vector.QueryResult{Entry: vector.Entry{ID: id}}

		if i < len(documents) {
			r.Text = documents[i]
		}
		if i < len(metadatas) && metadatas[i] != nil {
			r.Source, _ = metadatas[i][metaSource].(string)
			// JSON numbers decode as float64.
			if p, ok := metadatas[i][metaPage].(float64); ok {
				page := int(p)
				r.Page = &page
			}
			if s, ok := metadatas[i][metaSeq].(float64); ok {
				seqs[i] = int64(s)
			}
		}

		// The collection uses the cosine space: distance = 1 - similarity.
		if i < len(distances) {
			r.Score = 1 - distances[i]
		}

		results = append(results, r)
	}

	vector.SortResults(results, func(i int) int64 { return seqs[i] })

	d.logger.Debug("queried chroma",
		"results", len(results),
	)

	return vector.Truncate(results, k), nil
}

// Count returns the number of entries in the collection.
func (d *Driver) Count(ctx context.Context) (int, error) {
	var n int
	if err := d.do(ctx, http.MethodGet, d.collectionURL("/count"), nil, &n); err != nil {
		return 0, fmt.Errorf("counting chroma entries: %w", err)
	}
	return n, nil
}

// Close drops an unpersisted build collection.
func (d *Driver) Close() error {
	if d.mode == vector.ModeBuild && !d.persisted {
		if err := d.deleteCollection(context.Background()); err != nil && !errors.Is(err, errNotFound) {
			return fmt.Errorf("discarding unpersisted collection: %w", err)
		}
	}
	return nil
}

var _ vector.Driver = (*Driver)(nil)
