package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	_ "modernc.org/sqlite" // pure Go driver, no CGO

	rerrors "github.com/Aman-CERP/tfrag/internal/errors"
)

const schema = `
CREATE TABLE IF NOT EXISTS chunks (
	collection  TEXT    NOT NULL,
	id          TEXT    NOT NULL,
	source      TEXT    NOT NULL,
	chunk_index INTEGER NOT NULL,
	document    TEXT    NOT NULL,
	embedding   BLOB    NOT NULL,
	PRIMARY KEY (collection, id)
);
CREATE INDEX IF NOT EXISTS idx_chunks_source ON chunks(collection, source);
`

// Options configures a SQLiteCollection.
type Options struct {
	// Path is the database file. Empty opens an in-memory database.
	Path string

	// Collection names the logical collection inside the database.
	Collection string

	M        int
	EfSearch int
}

// SQLiteCollection stores entries in SQLite and mirrors their vectors in an
// HNSW graph for Query. The table is authoritative; the graph is rebuilt
// from it on open.
type SQLiteCollection struct {
	mu     sync.RWMutex
	db     *sql.DB
	name   string
	path   string
	index  *vectorIndex
	closed bool
}

var _ Collection = (*SQLiteCollection)(nil)

// Open opens or creates the collection and loads its vectors.
func Open(ctx context.Context, opts Options) (*SQLiteCollection, error) {
	if opts.Collection == "" {
		return nil, rerrors.ValidationError("collection name is required", nil)
	}

	dsn := ":memory:"
	if opts.Path != "" {
		if err := os.MkdirAll(filepath.Dir(opts.Path), 0o755); err != nil {
			return nil, rerrors.New(rerrors.ErrCodeStoreOpen, fmt.Sprintf("create store directory for %s", opts.Path), err)
		}
		dsn = opts.Path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, rerrors.New(rerrors.ErrCodeStoreOpen, fmt.Sprintf("open store %s", dsn), err)
	}
	// Single connection: one writer, and :memory: stays one database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, rerrors.New(rerrors.ErrCodeStoreOpen, "configure store", err)
		}
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, rerrors.New(rerrors.ErrCodeCorruptIndex, fmt.Sprintf("create schema in %s", dsn), err).
			WithSuggestion("remove the store directory and run `tfrag index --rebuild`")
	}

	c := &SQLiteCollection{
		db:    db,
		name:  opts.Collection,
		path:  opts.Path,
		index: newVectorIndex(opts.M, opts.EfSearch),
	}
	if err := c.load(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	slog.Debug("store_opened",
		slog.String("path", dsn),
		slog.String("collection", c.name),
		slog.Int("entries", c.index.len()))
	return c, nil
}

func (c *SQLiteCollection) load(ctx context.Context) error {
	rows, err := c.db.QueryContext(ctx,
		`SELECT id, embedding FROM chunks WHERE collection = ? ORDER BY id`, c.name)
	if err != nil {
		return rerrors.New(rerrors.ErrCodeCorruptIndex, "load vectors", err)
	}
	defer func() { _ = rows.Close() }()

	dims := 0
	for rows.Next() {
		var id string
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return rerrors.New(rerrors.ErrCodeCorruptIndex, "scan vector row", err)
		}
		vec, err := decodeVector(blob)
		if err != nil {
			return rerrors.New(rerrors.ErrCodeCorruptIndex, fmt.Sprintf("decode vector %s", id), err)
		}
		if dims == 0 {
			dims = len(vec)
		} else if len(vec) != dims {
			return rerrors.New(rerrors.ErrCodeCorruptIndex,
				fmt.Sprintf("vector %s has %d dimensions, collection has %d", id, len(vec), dims), nil).
				WithSuggestion("run `tfrag index --rebuild`")
		}
		c.index.add(id, vec)
	}
	return rows.Err()
}

// Name returns the collection name.
func (c *SQLiteCollection) Name() string { return c.name }

// Dimensions returns the vector length of stored entries, or 0 when empty.
func (c *SQLiteCollection) Dimensions() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.index.dims()
}

func (c *SQLiteCollection) checkOpen() error {
	if c.closed {
		return rerrors.InternalError("store is closed", nil)
	}
	return nil
}

// Upsert writes entries in one transaction. Vectors must all share the
// collection's dimension.
func (c *SQLiteCollection) Upsert(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	source := entries[0].Source

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkOpen(); err != nil {
		return err
	}

	dims := c.index.dims()
	for _, e := range entries {
		if e.ID == "" {
			return rerrors.StoreMutationError("upsert", e.Source, fmt.Errorf("empty entry id"))
		}
		if dims == 0 {
			dims = len(e.Vector)
		}
		if len(e.Vector) == 0 || len(e.Vector) != dims {
			return rerrors.StoreMutationError("upsert", e.Source, ErrDimensionMismatch{Expected: dims, Got: len(e.Vector)})
		}
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return rerrors.StoreMutationError("upsert", source, err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (collection, id, source, chunk_index, document, embedding)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (collection, id) DO UPDATE SET
			source = excluded.source,
			chunk_index = excluded.chunk_index,
			document = excluded.document,
			embedding = excluded.embedding`)
	if err != nil {
		return rerrors.StoreMutationError("upsert", source, err)
	}
	defer func() { _ = stmt.Close() }()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, c.name, e.ID, e.Source, e.Index, e.Document, encodeVector(e.Vector)); err != nil {
			return rerrors.StoreMutationError("upsert", e.Source, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return rerrors.StoreMutationError("upsert", source, err)
	}

	for _, e := range entries {
		c.index.add(e.ID, e.Vector)
	}
	return nil
}

// Query returns the k nearest entries to vector.
func (c *SQLiteCollection) Query(ctx context.Context, vector []float32, k int) ([]Hit, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	if c.index.len() == 0 || k <= 0 {
		return []Hit{}, nil
	}
	if dims := c.index.dims(); len(vector) != dims {
		return nil, rerrors.New(rerrors.ErrCodeDimensionMismatch,
			ErrDimensionMismatch{Expected: dims, Got: len(vector)}.Error(), nil).
			WithSuggestion("the query embedder differs from the one used for indexing; run `tfrag index --rebuild`")
	}

	ranked := c.index.search(vector, k)
	if len(ranked) == 0 {
		return []Hit{}, nil
	}

	ids := make([]any, 0, len(ranked)+1)
	ids = append(ids, c.name)
	for _, r := range ranked {
		ids = append(ids, r.id)
	}
	rows, err := c.db.QueryContext(ctx,
		`SELECT id, source, chunk_index, document FROM chunks WHERE collection = ? AND id IN (`+
			placeholders(len(ranked))+`)`, ids...)
	if err != nil {
		return nil, rerrors.New(rerrors.ErrCodeQueryFailed, "fetch query hits", err)
	}
	defer func() { _ = rows.Close() }()

	byID := make(map[string]Hit, len(ranked))
	for rows.Next() {
		var h Hit
		if err := rows.Scan(&h.ID, &h.Source, &h.Index, &h.Document); err != nil {
			return nil, rerrors.New(rerrors.ErrCodeQueryFailed, "scan query hit", err)
		}
		byID[h.ID] = h
	}
	if err := rows.Err(); err != nil {
		return nil, rerrors.New(rerrors.ErrCodeQueryFailed, "read query hits", err)
	}

	hits := make([]Hit, 0, len(ranked))
	for _, r := range ranked {
		h, ok := byID[r.id]
		if !ok {
			continue
		}
		h.Distance = r.distance
		h.Score = distanceToScore(r.distance)
		hits = append(hits, h)
	}
	return hits, nil
}

// DeleteByIDs removes entries by chunk identity. Unknown IDs are ignored.
func (c *SQLiteCollection) DeleteByIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkOpen(); err != nil {
		return err
	}

	args := make([]any, 0, len(ids)+1)
	args = append(args, c.name)
	for _, id := range ids {
		args = append(args, id)
	}
	if _, err := c.db.ExecContext(ctx,
		`DELETE FROM chunks WHERE collection = ? AND id IN (`+placeholders(len(ids))+`)`, args...); err != nil {
		return rerrors.StoreMutationError("delete", strings.Join(ids, ","), err)
	}
	for _, id := range ids {
		c.index.remove(id)
	}
	return nil
}

// DeleteBySource removes every entry derived from path.
func (c *SQLiteCollection) DeleteBySource(ctx context.Context, path string) (int, error) {
	return c.DeleteWhere(ctx, Filter{Source: path})
}

// DeleteWhere removes entries matching f and returns how many were removed.
func (c *SQLiteCollection) DeleteWhere(ctx context.Context, f Filter) (int, error) {
	if f.Empty() {
		return 0, rerrors.ValidationError("delete filter is empty; use Clear to remove every entry", nil)
	}
	where := []string{"collection = ?"}
	args := []any{c.name}
	if f.Source != "" {
		where = append(where, "source = ?")
		args = append(args, f.Source)
	}
	if f.SourcePrefix != "" {
		where = append(where, "substr(source, 1, ?) = ?")
		args = append(args, len(f.SourcePrefix), f.SourcePrefix)
	}
	cond := strings.Join(where, " AND ")
	label := f.Source
	if label == "" {
		label = f.SourcePrefix + "*"
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkOpen(); err != nil {
		return 0, err
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, rerrors.StoreMutationError("delete", label, err)
	}
	defer func() { _ = tx.Rollback() }()

	ids, err := queryIDs(ctx, tx, `SELECT id FROM chunks WHERE `+cond, args...)
	if err != nil {
		return 0, rerrors.StoreMutationError("delete", label, err)
	}
	if len(ids) == 0 {
		return 0, nil
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE `+cond, args...); err != nil {
		return 0, rerrors.StoreMutationError("delete", label, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, rerrors.StoreMutationError("delete", label, err)
	}
	for _, id := range ids {
		c.index.remove(id)
	}
	return len(ids), nil
}

// ListIDs returns every chunk identity in the collection, sorted.
func (c *SQLiteCollection) ListIDs(ctx context.Context) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	ids, err := queryIDs(ctx, c.db, `SELECT id FROM chunks WHERE collection = ? ORDER BY id`, c.name)
	if err != nil {
		return nil, rerrors.New(rerrors.ErrCodeQueryFailed, "list ids", err)
	}
	return ids, nil
}

// Sources returns the distinct document paths with their chunk counts.
func (c *SQLiteCollection) Sources(ctx context.Context) (map[string]int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	rows, err := c.db.QueryContext(ctx,
		`SELECT source, COUNT(*) FROM chunks WHERE collection = ? GROUP BY source`, c.name)
	if err != nil {
		return nil, rerrors.New(rerrors.ErrCodeQueryFailed, "list sources", err)
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string]int)
	for rows.Next() {
		var src string
		var n int
		if err := rows.Scan(&src, &n); err != nil {
			return nil, rerrors.New(rerrors.ErrCodeQueryFailed, "scan source", err)
		}
		out[src] = n
	}
	return out, rows.Err()
}

// Clear removes every entry of the collection. Other collections in the
// same database are untouched.
func (c *SQLiteCollection) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkOpen(); err != nil {
		return err
	}
	if _, err := c.db.ExecContext(ctx, `DELETE FROM chunks WHERE collection = ?`, c.name); err != nil {
		return rerrors.StoreMutationError("clear", c.name, err)
	}
	c.index.reset()
	return nil
}

// Count returns the number of entries.
func (c *SQLiteCollection) Count(ctx context.Context) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if err := c.checkOpen(); err != nil {
		return 0, err
	}
	var n int
	if err := c.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM chunks WHERE collection = ?`, c.name).Scan(&n); err != nil {
		return 0, rerrors.New(rerrors.ErrCodeQueryFailed, "count entries", err)
	}
	return n, nil
}

// Close checkpoints the WAL and closes the database.
func (c *SQLiteCollection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if c.path != "" {
		_, _ = c.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	}
	return c.db.Close()
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func queryIDs(ctx context.Context, q querier, query string, args ...any) ([]string, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.Strings(ids)
	return ids, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// encodeVector stores a vector as little-endian float32s.
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(x))
	}
	return buf
}

func decodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("embedding blob length %d is not a multiple of 4", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v, nil
}
