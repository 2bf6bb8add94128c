// Package store holds chunk text, embeddings and source metadata in a SQLite
// table, with an in-memory HNSW graph for similarity queries.
package store

import (
	"context"
	"fmt"
)

// Entry is one vector-store record. ID is the chunk identity and Source the
// document path it was derived from.
type Entry struct {
	ID       string
	Source   string
	Index    int
	Document string
	Vector   []float32
}

// Hit is a ranked query result. Score is cosine similarity mapped to [0, 1].
type Hit struct {
	ID       string
	Source   string
	Index    int
	Document string
	Score    float32
	Distance float32
}

// Filter selects entries by metadata. Set fields are combined with AND.
type Filter struct {
	Source       string
	SourcePrefix string
}

// Empty reports whether the filter would match every entry.
func (f Filter) Empty() bool {
	return f.Source == "" && f.SourcePrefix == ""
}

// Collection is the set of vector-store operations the synchronizer and the
// query path rely on. All deletes are idempotent.
type Collection interface {
	// Upsert inserts or replaces entries by ID.
	Upsert(ctx context.Context, entries []Entry) error

	// Query returns up to k entries nearest to vector, best first.
	Query(ctx context.Context, vector []float32, k int) ([]Hit, error)

	DeleteByIDs(ctx context.Context, ids []string) error

	// DeleteBySource removes every entry whose source equals path.
	DeleteBySource(ctx context.Context, path string) (int, error)

	// DeleteWhere removes entries matching f. An empty filter is rejected;
	// use Clear to empty the collection.
	DeleteWhere(ctx context.Context, f Filter) (int, error)

	ListIDs(ctx context.Context) ([]string, error)

	// Clear removes every entry of the collection.
	Clear(ctx context.Context) error

	Count(ctx context.Context) (int, error)

	Close() error
}

// ErrDimensionMismatch reports a vector whose length differs from the
// collection's.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}
