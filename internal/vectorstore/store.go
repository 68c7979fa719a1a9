// Package vectorstore manages per-tenant chunk collections over a vector
// search engine.
//
// Two implementations exist: the Weaviate store (hybrid vector + BM25 search
// blended by alpha) and the Qdrant store (pure vector similarity). The
// active implementation is selected by configuration; see New.
package vectorstore

import (
	"context"

	"github.com/fyrsmithlabs/ragd/internal/kb"
)

// Store is the per-tenant collection lifecycle over a search engine.
//
// All failures of the underlying engine surface as kb.ErrIndex. A Store must
// be safe for concurrent use by independent requests; it holds no per-request
// state.
type Store interface {
	// EnsureCollection creates the tenant's collection if it does not exist.
	// Idempotent.
	EnsureCollection(ctx context.Context, tenantID int64) error

	// InsertChunks inserts a batch of chunks into the tenant's collection,
	// creating it first if needed. Returns the number of chunks inserted.
	// The batch is not atomic: a mid-batch failure may leave a partial
	// insert, and still returns kb.ErrIndex.
	InsertChunks(ctx context.Context, tenantID int64, chunks []kb.Chunk) (int, error)

	// HybridSearch returns up to limit results for the query, blending
	// vector similarity and keyword relevance by alpha (0 = pure keyword,
	// 1 = pure vector). Alpha is passed to the engine as given; clamping is
	// the caller's responsibility. A missing collection yields an empty
	// result, not an error.
	HybridSearch(ctx context.Context, tenantID int64, query string, vector []float32, alpha float32, limit int) ([]kb.SearchResult, error)

	// DeleteByDocument removes every chunk of the given document from the
	// tenant's collection. A missing collection is a no-op.
	DeleteByDocument(ctx context.Context, tenantID, documentID int64) error

	// Health reports whether the engine is reachable.
	Health(ctx context.Context) error

	// Close releases the engine connection.
	Close() error
}
