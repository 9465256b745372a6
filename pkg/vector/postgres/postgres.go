// Package postgres provides a vector driver on PostgreSQL with the pgvector
// extension.
//
// A build writes into a staging table inside one transaction; Persist swaps
// it in place of the live table and commits, so readers never observe a
// partial index.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/papercomputeco/docqa/pkg/vector"
)

const (
	// DefaultTableName is the default table for docqa chunks.
	DefaultTableName = "docqa_chunks"

	stagingSuffix = "_staging"
)

// Driver implements vector.Driver on a pgvector table.
type Driver struct {
	pool      *pgxpool.Pool
	tx        pgx.Tx
	table     string
	mode      vector.Mode
	dims      int
	nextSeq   int64
	persisted bool
	logger    *slog.Logger
}

// Config holds configuration for the Postgres driver.
type Config struct {
	// DSN is a libpq connection string or postgres:// URL.
	DSN string

	// TableName defaults to DefaultTableName.
	TableName string

	Mode vector.Mode

	// Dimensions is the vector size. Zero takes the first inserted embedding's length.
	Dimensions uint
}

// NewDriver connects to Postgres and prepares the table for the mode.
func NewDriver(ctx context.Context, c Config, logger *slog.Logger) (*Driver, error) {
	if c.DSN == "" {
		return nil, errors.New("postgres DSN is required")
	}

	table := c.TableName
	if table == "" {
		table = DefaultTableName
	}

	pool, err := pgxpool.New(ctx, c.DSN)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", vector.ErrConnection, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: %v", vector.ErrConnection, err)
	}

	d := &Driver{
		pool:   pool,
		table:  table,
		mode:   c.Mode,
		dims:   int(c.Dimensions),
		logger: logger,
	}

	switch c.Mode {
	case vector.ModeLoad:
		err = d.openLoad(ctx)
	case vector.ModeBuild:
		err = d.openBuild(ctx)
	default:
		err = fmt.Errorf("unsupported mode %d", c.Mode)
	}
	if err != nil {
		pool.Close()
		return nil, err
	}

	logger.Info("connected to Postgres",
		"table", table,
		"mode", c.Mode.String(),
	)

	return d, nil
}

func (d *Driver) ident(suffix string) string {
	return pgx.Identifier{d.table + suffix}.Sanitize()
}

func (d *Driver) openLoad(ctx context.Context) error {
	var regclass *string
	if err := d.pool.QueryRow(ctx, `SELECT to_regclass($1)::text`, d.table).Scan(&regclass); err != nil {
		return fmt.Errorf("checking table %q: %w", d.table, err)
	}
	if regclass == nil {
		return fmt.Errorf("%w: postgres table %q", vector.ErrIndexNotFound, d.table)
	}

	// vector_dims on any row reports the column size; an empty table has none.
	var dims *int
	err := d.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT vector_dims(embedding) FROM %s LIMIT 1`, d.ident("")),
	).Scan(&dims)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: reading %q: %v", vector.ErrIndexNotFound, d.table, err)
	}
	if dims != nil {
		if d.dims != 0 && d.dims != *dims {
			return fmt.Errorf("%w: index has %d dimensions, configured %d", vector.ErrDimensionMismatch, *dims, d.dims)
		}
		d.dims = *dims
	}

	d.persisted = true
	return nil
}

func (d *Driver) openBuild(ctx context.Context) error {
	if _, err := d.pool.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		return fmt.Errorf("enabling pgvector: %w", err)
	}

	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning build transaction: %w", err)
	}

	if _, err := tx.Exec(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s`, d.ident(stagingSuffix))); err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("dropping staging table: %w", err)
	}

	d.tx = tx

	if d.dims > 0 {
		return d.createStaging(ctx)
	}
	return nil
}

func (d *Driver) createStaging(ctx context.Context) error {
	_, err := d.tx.Exec(ctx, fmt.Sprintf(`
		CREATE TABLE %s (
			seq BIGINT NOT NULL,
			chunk_id TEXT NOT NULL,
			text TEXT NOT NULL,
			source TEXT NOT NULL,
			page INTEGER,
			embedding vector(%d) NOT NULL
		)`, d.ident(stagingSuffix), d.dims))
	if err != nil {
		return fmt.Errorf("creating staging table: %w", err)
	}
	return nil
}

// InsertAll queues entries into the staging table.
func (d *Driver) InsertAll(ctx context.Context, entries []vector.Entry) error {
	if d.mode != vector.ModeBuild || d.persisted {
		return vector.ErrReadOnly
	}
	if len(entries) == 0 {
		return nil
	}

	if d.dims == 0 {
		d.dims = len(entries[0].Embedding)
		if err := d.createStaging(ctx); err != nil {
			return err
		}
	}

	insert := fmt.Sprintf(
		`INSERT INTO %s (seq, chunk_id, text, source, page, embedding) VALUES ($1, $2, $3, $4, $5, $6::vector)`,
		d.ident(stagingSuffix),
	)

	batch := &pgx.Batch{}
	for i, e := range entries {
		if len(e.Embedding) != d.dims {
			return fmt.Errorf("%w: entry %s has %d dimensions, index has %d",
				vector.ErrDimensionMismatch, e.ID, len(e.Embedding), d.dims)
		}
		batch.Queue(insert, d.nextSeq+int64(i), e.ID, e.Text, e.Source, e.Page, pgvector.NewVector(e.Embedding))
	}

	if err := d.tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("inserting entries: %w", err)
	}
	d.nextSeq += int64(len(entries))

	d.logger.Debug("inserted entries into postgres staging table",
		"count", len(entries),
	)

	return nil
}

// Persist replaces the live table with the staging table and commits.
func (d *Driver) Persist(ctx context.Context) error {
	if d.persisted {
		return nil
	}

	if d.dims == 0 {
		// Nothing was inserted and no size is known: an empty single-column
		// table still lets load mode find the index.
		d.dims = 1
		if err := d.createStaging(ctx); err != nil {
			return err
		}
	}

	stmts := []string{
		fmt.Sprintf(`DROP TABLE IF EXISTS %s`, d.ident("")),
		fmt.Sprintf(`ALTER TABLE %s RENAME TO %s`, d.ident(stagingSuffix), d.ident("")),
	}
	for _, stmt := range stmts {
		if _, err := d.tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("swapping in built table: %w", err)
		}
	}

	if err := d.tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing build: %w", err)
	}
	d.tx = nil
	d.persisted = true

	d.logger.Info("postgres index persisted",
		"table", d.table,
		"entries", d.nextSeq,
	)

	return nil
}

// Query orders by cosine distance, then by insertion sequence.
func (d *Driver) Query(ctx context.Context, embedding []float32, k int) ([]vector.QueryResult, error) {
	results := []vector.QueryResult{}
	if k <= 0 {
		return results, nil
	}
	if d.dims != 0 && len(embedding) != d.dims {
		return nil, fmt.Errorf("%w: query has %d dimensions, index has %d",
			vector.ErrDimensionMismatch, len(embedding), d.dims)
	}

	rows, err := d.pool.Query(ctx, fmt.Sprintf(`
		SELECT chunk_id, text, source, page, 1 - (embedding <=> $1::vector) AS score
		FROM %s
		ORDER BY embedding <=> $1::vector, seq
		LIMIT $2`, d.ident("")),
		pgvector.NewVector(embedding), k,
	)
	if err != nil {
		return nil, fmt.Errorf("querying postgres: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			r     vector.QueryResult
			page  *int32
			score float64
		)
		if err := rows.Scan(&r.ID, &r.Text, &r.Source, &page, &score); err != nil {
			return nil, fmt.Errorf("scanning query result: %w", err)
		}
		if page != nil {
			p := int(*page)
			r.Page = &p
		}
		r.Score = float32(score)
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating query results: %w", err)
	}

	return results, nil
}

// Count returns the number of rows in the live table.
func (d *Driver) Count(ctx context.Context) (int, error) {
	var n int
	if err := d.pool.QueryRow(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, d.ident(""))).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting rows: %w", err)
	}
	return n, nil
}

// Close rolls back an unpersisted build and closes the pool.
func (d *Driver) Close() error {
	var err error
	if d.tx != nil {
		err = d.tx.Rollback(context.Background())
		d.tx = nil
	}
	d.pool.Close()
	return err
}

var _ vector.Driver = (*Driver)(nil)
