package vectorstore

import (
	"context"

	"github.com/calenlabs/ragbook/core"
)

// CollectionInfo describes a collection's fixed schema and current size.
type CollectionInfo struct {
	Name      string
	Dimension int
	Points    int
}

// Store persists (vector, payload) records and performs top-k
// nearest-neighbor search. Implementations must be thread-safe and must
// never truncate or pad vectors: a dimension mismatch is a schema error.
type Store interface {
	// EnsureCollection creates the collection if absent. If it already
	// exists with a different vector dimension, fails with a schema error;
	// the collection is never silently recreated or resized.
	EnsureCollection(ctx context.Context, name string, dimension int) error

	// DeleteCollection removes the collection and all its records.
	// Deleting an absent collection is not an error.
	DeleteCollection(ctx context.Context, name string) error

	// Upsert writes records keyed by their identifier; re-upserting an
	// identifier replaces the record. Fails with a schema error if any
	// vector's dimension differs from the collection's.
	Upsert(ctx context.Context, collection string, records []core.Record) error

	// Search returns at most topK records ordered by descending similarity
	// score, ties broken by insertion order (stable).
	Search(ctx context.Context, collection string, vector []float32, topK int) ([]core.Hit, error)

	// Info reports the collection's dimension and point count.
	// Returns ErrCollectionNotFound if the collection does not exist.
	Info(ctx context.Context, collection string) (*CollectionInfo, error)

	// Close releases resources held by the store.
	Close() error
}
