// Package sqlitevec provides a SQLite-backed vector driver using sqlite-vec.
//
// The index is a single SQLite file. A build writes to "<path>.building" and
// Persist renames it over path, so an interrupted build never replaces or
// creates the index a server loads.
package sqlitevec

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"github.com/papercomputeco/docqa/pkg/vector"
)

const (
	buildingSuffix = ".building"

	schemaVersion = "1"
)

// Driver implements vector.Driver using SQLite with sqlite-vec.
type Driver struct {
	mu        sync.RWMutex
	db        *sql.DB
	path      string
	mode      vector.Mode
	dims      int
	nextRowID int64
	persisted bool
	logger    *slog.Logger
}

// Config holds configuration for the SQLite vec driver.
type Config struct {
	// Path is the location of the persisted index file.
	Path string

	// Mode selects between building a fresh index and loading a persisted one.
	Mode vector.Mode

	// Dimensions is the expected embedding length. Zero takes the length of
	// the first inserted embedding (build) or the recorded one (load).
	Dimensions uint
}

// NewDriver opens the index at c.Path in the requested mode.
func NewDriver(c Config, logger *slog.Logger) (*Driver, error) {
	// enable connection to have sqlite-vec extension
	sqlite_vec.Auto()

	if c.Path == "" {
		return nil, errors.New("index path is required")
	}

	d := &Driver{
		path:   c.Path,
		mode:   c.Mode,
		dims:   int(c.Dimensions),
		logger: logger,
	}

	var err error
	switch c.Mode {
	case vector.ModeBuild:
		err = d.openBuild()
	case vector.ModeLoad:
		err = d.openLoad()
	default:
		err = fmt.Errorf("unsupported mode %d", c.Mode)
	}
	if err != nil {
		return nil, err
	}

	return d, nil
}

func (d *Driver) buildingPath() string {
	return d.path + buildingSuffix
}

func (d *Driver) openBuild() error {
	if err := os.MkdirAll(filepath.Dir(d.path), 0o755); err != nil {
		return fmt.Errorf("creating index directory: %w", err)
	}

	// Leftovers from an interrupted build are discarded.
	tmp := d.buildingPath()
	for _, p := range []string{tmp, tmp + "-journal", tmp + "-wal", tmp + "-shm"} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("removing stale build file %s: %w", p, err)
		}
	}

	db, err := sql.Open("sqlite3", tmp)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)

	var vecVersion string
	if err := db.QueryRow("SELECT vec_version()").Scan(&vecVersion); err != nil {
		db.Close()
		return fmt.Errorf("sqlite-vec not available: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE docqa_meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
		CREATE TABLE chunks (
			rowid INTEGER PRIMARY KEY,
			chunk_id TEXT NOT NULL UNIQUE,
			text TEXT NOT NULL,
			source TEXT NOT NULL,
			page INTEGER
		);
	`)
	if err != nil {
		db.Close()
		return fmt.Errorf("creating index tables: %w", err)
	}

	d.db = db
	d.nextRowID = 1

	d.logger.Info("sqlite-vec index build started",
		"path", tmp,
		"vec_version", vecVersion,
	)

	return nil
}

func (d *Driver) openLoad() error {
	info, err := os.Stat(d.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", vector.ErrIndexNotFound, d.path)
		}
		return fmt.Errorf("checking index file: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", vector.ErrIndexNotFound, d.path)
	}

	db, err := sql.Open("sqlite3", "file:"+d.path+"?mode=ro")
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}

	meta, err := readMeta(db)
	if err != nil {
		db.Close()
		return fmt.Errorf("%w: %s: %v", vector.ErrIndexNotFound, d.path, err)
	}

	if meta["metric"] != vector.Metric {
		db.Close()
		return fmt.Errorf("%w: %s uses metric %q", vector.ErrIndexNotFound, d.path, meta["metric"])
	}

	dims, err := strconv.Atoi(meta["dimensions"])
	if err != nil {
		db.Close()
		return fmt.Errorf("%w: %s: invalid dimensions: %v", vector.ErrIndexNotFound, d.path, err)
	}
	if d.dims != 0 && dims != 0 && d.dims != dims {
		db.Close()
		return fmt.Errorf("%w: index has %d dimensions, configured %d", vector.ErrDimensionMismatch, dims, d.dims)
	}

	d.db = db
	d.dims = dims
	d.persisted = true

	d.logger.Info("sqlite-vec index loaded",
		"path", d.path,
		"dimensions", dims,
	)

	return nil
}

func readMeta(db *sql.DB) (map[string]string, error) {
	rows, err := db.Query(`SELECT key, value FROM docqa_meta`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	meta := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		meta[k] = v
	}
	return meta, rows.Err()
}

// createVecTable creates the vec0 table once the dimension is known.
func (d *Driver) createVecTable(ctx context.Context, dims int) error {
	createVec := fmt.Sprintf(
		`CREATE VIRTUAL TABLE vec_chunks USING vec0(embedding float[%d] distance_metric=%s)`,
		dims, vector.Metric,
	)
	if _, err := d.db.ExecContext(ctx, createVec); err != nil {
		return fmt.Errorf("creating vec0 table: %w", err)
	}
	d.dims = dims
	return nil
}

// serializeFloat32 converts a float32 slice to a little-endian byte slice
// suitable for sqlite-vec BLOB format.
func serializeFloat32(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// InsertAll stores entries with consecutive rowids so rowid order is
// insertion order.
func (d *Driver) InsertAll(ctx context.Context, entries []vector.Entry) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.mode != vector.ModeBuild || d.persisted {
		return vector.ErrReadOnly
	}
	if len(entries) == 0 {
		return nil
	}

	if !d.hasVecTable(ctx) {
		dims := d.dims
		if dims == 0 {
			dims = len(entries[0].Embedding)
		}
		if dims == 0 {
			return fmt.Errorf("%w: empty embedding for %s", vector.ErrDimensionMismatch, entries[0].ID)
		}
		if err := d.createVecTable(ctx, dims); err != nil {
			return err
		}
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	rowID := d.nextRowID
	for _, e := range entries {
		if len(e.Embedding) != d.dims {
			return fmt.Errorf("%w: entry %s has %d dimensions, index has %d",
				vector.ErrDimensionMismatch, e.ID, len(e.Embedding), d.dims)
		}

		var page sql.NullInt64
		if e.Page != nil {
			page = sql.NullInt64{Int64: int64(*e.Page), Valid: true}
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO chunks(rowid, chunk_id, text, source, page) VALUES (?, ?, ?, ?, ?)`,
			rowID, e.ID, e.Text, e.Source, page,
		); err != nil {
			return fmt.Errorf("inserting chunk %s: %w", e.ID, err)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO vec_chunks(rowid, embedding) VALUES (?, ?)`,
			rowID, serializeFloat32(e.Embedding),
		); err != nil {
			return fmt.Errorf("inserting embedding for chunk %s: %w", e.ID, err)
		}

		rowID++
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	d.nextRowID = rowID

	d.logger.Debug("inserted entries into sqlite-vec",
		"count", len(entries),
	)

	return nil
}

func (d *Driver) hasVecTable(ctx context.Context) bool {
	var name string
	err := d.db.QueryRowContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'vec_chunks'`,
	).Scan(&name)
	return err == nil
}

// Persist records the index metadata and moves the build file into place.
func (d *Driver) Persist(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.persisted {
		return nil
	}

	if d.dims > 0 && !d.hasVecTable(ctx) {
		if err := d.createVecTable(ctx, d.dims); err != nil {
			return err
		}
	}

	meta := map[string]string{
		"schema_version": schemaVersion,
		"metric":         vector.Metric,
		"dimensions":     strconv.Itoa(d.dims),
	}
	for k, v := range meta {
		if _, err := d.db.ExecContext(ctx,
			`INSERT INTO docqa_meta(key, value) VALUES (?, ?)`, k, v,
		); err != nil {
			return fmt.Errorf("writing index metadata: %w", err)
		}
	}

	if err := d.db.Close(); err != nil {
		return fmt.Errorf("closing build database: %w", err)
	}
	d.db = nil

	if err := os.Rename(d.buildingPath(), d.path); err != nil {
		return fmt.Errorf("moving index into place: %w", err)
	}

	d.mode = vector.ModeLoad
	if err := d.openLoad(); err != nil {
		return fmt.Errorf("reopening persisted index: %w", err)
	}

	d.logger.Info("sqlite-vec index persisted",
		"path", d.path,
		"entries", d.nextRowID-1,
	)

	return nil
}

// Query finds the k most similar entries to the given embedding.
func (d *Driver) Query(ctx context.Context, embedding []float32, k int) ([]vector.QueryResult, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	results := []vector.QueryResult{}
	if k <= 0 || d.dims == 0 {
		return results, nil
	}
	if len(embedding) != d.dims {
		return nil, fmt.Errorf("%w: query has %d dimensions, index has %d",
			vector.ErrDimensionMismatch, len(embedding), d.dims)
	}

	// KNN query via vec0 MATCH, then JOIN back to the chunk rows.
	rows, err := d.db.QueryContext(ctx, `
		SELECT
			c.rowid,
			c.chunk_id,
			c.text,
			c.source,
			c.page,
			v.distance
		FROM vec_chunks v
		INNER JOIN chunks c ON c.rowid = v.rowid
		WHERE v.embedding MATCH ?
			AND v.k = ?
		ORDER BY v.distance, c.rowid
	`, serializeFloat32(embedding), k)
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}
	defer rows.Close()

	var seqs []int64
	for rows.Next() {
		var (
			rowID    int64
			r        vector.QueryResult
			page     sql.NullInt64
			distance float64
		)
		if err := rows.Scan(&rowID, &r.ID, &r.Text, &r.Source, &page, &distance); err != nil {
			return nil, fmt.Errorf("scanning query result: %w", err)
		}
		if page.Valid {
			p := int(page.Int64)
			r.Page = &p
		}

		// sqlite-vec reports cosine distance.
		r.Score = float32(1 - distance)

		results = append(results, r)
		seqs = append(seqs, rowID)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating query results: %w", err)
	}

	vector.SortResults(results, func(i int) int64 { return seqs[i] })

	return results, nil
}

// Count returns the number of indexed chunks.
func (d *Driver) Count(ctx context.Context) (int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var n int
	if err := d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting chunks: %w", err)
	}
	return n, nil
}

// Close releases the database handle. An unpersisted build is removed.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var err error
	if d.db != nil {
		err = d.db.Close()
		d.db = nil
	}

	if d.mode == vector.ModeBuild && !d.persisted {
		tmp := d.buildingPath()
		for _, p := range []string{tmp, tmp + "-journal"} {
			if rmErr := os.Remove(p); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) && err == nil {
				err = fmt.Errorf("removing unpersisted build: %w", rmErr)
			}
		}
	}

	return err
}

var _ vector.Driver = (*Driver)(nil)
