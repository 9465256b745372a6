// Package qdrant provides a vector driver backed by a Qdrant collection.
package qdrant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"

	"github.com/qdrant/go-client/qdrant"

	"github.com/papercomputeco/docqa/pkg/vector"
)

const (
	// DefaultCollectionName is the default collection for docqa chunks.
	DefaultCollectionName = "docqa"

	// DefaultPort is Qdrant's gRPC port.
	DefaultPort = 6334

	upsertBatchSize = 256

	payloadChunkID = "chunk_id"
	payloadText    = "text"
	payloadSource  = "source"
	payloadPage    = "page"
)

// Driver implements vector.Driver on a Qdrant collection. Point IDs are the
// insertion sequence, so ID order is insertion order.
type Driver struct {
	client     *qdrant.Client
	collection string
	mode       vector.Mode
	dims       uint64
	created    bool
	nextID     uint64
	persisted  bool
	logger     *slog.Logger
}

// Config holds configuration for the Qdrant driver.
type Config struct {
	// Target is "host" or "host:port" of the gRPC endpoint.
	Target string

	APIKey string
	UseTLS bool

	// CollectionName defaults to DefaultCollectionName.
	CollectionName string

	Mode vector.Mode

	// Dimensions is the vector size. Zero takes the first inserted embedding's length.
	Dimensions uint
}

// ParseTarget splits "host[:port]" and applies DefaultPort.
func ParseTarget(target string) (string, int, error) {
	if target == "" {
		return "", 0, errors.New("qdrant target is required")
	}

	host, portStr, err := net.SplitHostPort(target)
	if err != nil {
		// No port present.
		return target, DefaultPort, nil
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid qdrant port %q: %w", portStr, err)
	}

	return host, port, nil
}

// NewDriver connects to Qdrant. Build mode drops the collection; it is
// recreated with cosine distance once the vector size is known. Load mode
// requires the collection to exist.
func NewDriver(ctx context.Context, c Config, logger *slog.Logger) (*Driver, error) {
	host, port, err := ParseTarget(c.Target)
	if err != nil {
		return nil, err
	}

	collection := c.CollectionName
	if collection == "" {
		collection = DefaultCollectionName
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: c.APIKey,
		UseTLS: c.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", vector.ErrConnection, err)
	}

	d := &Driver{
		client:     client,
		collection: collection,
		mode:       c.Mode,
		dims:       uint64(c.Dimensions),
		logger:     logger,
	}

	exists, err := client.CollectionExists(ctx, collection)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: checking collection %q: %v", vector.ErrConnection, collection, err)
	}

	switch c.Mode {
	case vector.ModeLoad:
		if !exists {
			client.Close()
			return nil, fmt.Errorf("%w: qdrant collection %q", vector.ErrIndexNotFound, collection)
		}
		d.persisted = true
		d.created = true

	case vector.ModeBuild:
		if exists {
			if err := client.DeleteCollection(ctx, collection); err != nil {
				client.Close()
				return nil, fmt.Errorf("dropping collection %q: %w", collection, err)
			}
		}
		if d.dims > 0 {
			if err := d.createCollection(ctx); err != nil {
				client.Close()
				return nil, err
			}
		}

	default:
		client.Close()
		return nil, fmt.Errorf("unsupported mode %d", c.Mode)
	}

	logger.Info("connected to Qdrant",
		"host", host,
		"port", port,
		"collection", collection,
		"mode", c.Mode.String(),
	)

	return d, nil
}

func (d *Driver) createCollection(ctx context.Context) error {
	err := d.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: d.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     d.dims,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("creating collection %q: %w", d.collection, err)
	}
	d.created = true
	return nil
}

// InsertAll upserts entries in batches and waits for each to be applied.
func (d *Driver) InsertAll(ctx context.Context, entries []vector.Entry) error {
	if d.mode != vector.ModeBuild || d.persisted {
		return vector.ErrReadOnly
	}
	if len(entries) == 0 {
		return nil
	}

	if !d.created {
		if d.dims == 0 {
			d.dims = uint64(len(entries[0].Embedding))
		}
		if err := d.createCollection(ctx); err != nil {
			return err
		}
	}

	for start := 0; start < len(entries); start += upsertBatchSize {
		batch := entries[start:min(start+upsertBatchSize, len(entries))]

		points := make([]*qdrant.PointStruct, len(batch))
		for i, e := range batch {
			if uint64(len(e.Embedding)) != d.dims {
				return fmt.Errorf("%w: entry %s has %d dimensions, index has %d",
					vector.ErrDimensionMismatch, e.ID, len(e.Embedding), d.dims)
			}
			points[i] = &qdrant.PointStruct{
				Id:      qdrant.NewIDNum(d.nextID + uint64(i)),
				Vectors: qdrant.NewVectors(e.Embedding...),
				Payload: qdrant.NewValueMap(payloadFor(e)),
			}
		}

		if _, err := d.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: d.collection,
			Wait:           qdrant.PtrOf(true),
			Points:         points,
		}); err != nil {
			return fmt.Errorf("upserting points: %w", err)
		}
		d.nextID += uint64(len(batch))
	}

	d.logger.Debug("upserted entries into qdrant",
		"count", len(entries),
	)

	return nil
}

func payloadFor(e vector.Entry) map[string]any {
	payload := map[string]any{
		payloadChunkID: e.ID,
		payloadText:    e.Text,
		payloadSource:  e.Source,
	}
	if e.Page != nil {
		payload[payloadPage] = int64(*e.Page)
	}
	return payload
}

// Persist marks the build complete. Upserts are already durable.
func (d *Driver) Persist(ctx context.Context) error {
	if d.persisted {
		return nil
	}
	if !d.created && d.dims > 0 {
		if err := d.createCollection(ctx); err != nil {
			return err
		}
	}
	d.persisted = true
	return nil
}

// Query finds the k most similar entries to the given embedding.
func (d *Driver) Query(ctx context.Context, embedding []float32, k int) ([]vector.QueryResult, error) {
	results := []vector.QueryResult{}
	if k <= 0 || !d.created {
		return results, nil
	}

	points, err := d.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: d.collection,
		Query:          qdrant.NewQuery(embedding...),
		Limit:          qdrant.PtrOf(uint64(k)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("querying qdrant: %w", err)
	}

	seqs := make([]int64, len(points))
	for i, p := range points {
		r := vector.QueryResult{Score: p.GetScore()}
		payload := p.GetPayload()

		r.ID = payload[payloadChunkID].GetStringValue()
		r.Text = payload[payloadText].GetStringValue()
		r.Source = payload[payloadSource].GetStringValue()
		if v, ok := payload[payloadPage]; ok {
			page := int(v.GetIntegerValue())
			r.Page = &page
		}

		seqs[i] = int64(p.GetId().GetNum())
		results = append(results, r)
	}

	vector.SortResults(results, func(i int) int64 { return seqs[i] })

	return results, nil
}

// Count returns the exact number of points in the collection.
func (d *Driver) Count(ctx context.Context) (int, error) {
	if !d.created {
		return 0, nil
	}

	n, err := d.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: d.collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("counting qdrant points: %w", err)
	}
	return int(n), nil
}

// Close drops an unpersisted build and closes the gRPC connection.
func (d *Driver) Close() error {
	var err error
	if d.mode == vector.ModeBuild && !d.persisted && d.created {
		if delErr := d.client.DeleteCollection(context.Background(), d.collection); delErr != nil {
			err = fmt.Errorf("discarding unpersisted collection: %w", delErr)
		}
	}

	if closeErr := d.client.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}

var _ vector.Driver = (*Driver)(nil)
