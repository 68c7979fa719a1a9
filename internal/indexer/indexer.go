// Package indexer orchestrates document ingestion: split the document into
// chunks, embed every chunk in one batch, and write the chunks with their
// vectors to the tenant's collection.
package indexer

import (
	"context"
	"fmt"

	"github.com/fyrsmithlabs/ragd/internal/kb"
	"go.uber.org/zap"
)

// Splitter breaks document text into chunks.
type Splitter interface {
	Split(text string) []string
}

// Embedder produces vectors for chunk texts.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

// Store persists chunks into per-tenant collections.
type Store interface {
	InsertChunks(ctx context.Context, tenantID int64, chunks []kb.Chunk) (int, error)
	DeleteByDocument(ctx context.Context, tenantID, documentID int64) error
}

// Service runs the indexing pipeline.
type Service struct {
	splitter Splitter
	embedder Embedder
	store    Store
	logger   *zap.Logger
}

// NewService creates an indexing service.
func NewService(splitter Splitter, embedder Embedder, store Store, logger *zap.Logger) (*Service, error) {
	if splitter == nil {
		return nil, fmt.Errorf("splitter is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &Service{splitter: splitter, embedder: embedder, store: store, logger: logger}, nil
}

// ProcessDocument splits, embeds, and stores one document, returning the
// number of chunks written. Empty or whitespace-only content indexes zero
// chunks and touches no downstream service. Errors from the embedding and
// store stages keep their service kind; anything else is reported as a
// document processing failure carrying the tenant and document ids.
func (s *Service) ProcessDocument(ctx context.Context, tenantID, documentID int64, title, content string) (int, error) {
	parts := s.splitter.Split(content)
	if len(parts) == 0 {
		s.logger.Info("document produced no chunks, skipping",
			zap.Int64("tenant_id", tenantID),
			zap.Int64("doc_id", documentID),
		)
		return 0, nil
	}

	vectors, err := s.embedder.EmbedDocuments(ctx, parts)
	if err != nil {
		return 0, s.wrapUnknown(tenantID, documentID, err)
	}
	if len(vectors) != len(parts) {
		return 0, s.wrapUnknown(tenantID, documentID,
			fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(parts)))
	}

	chunks := make([]kb.Chunk, len(parts))
	for i, text := range parts {
		chunks[i] = kb.Chunk{
			DocumentID: documentID,
			ChunkIndex: i,
			Title:      title,
			Text:       text,
			Vector:     vectors[i],
		}
	}

	count, err := s.store.InsertChunks(ctx, tenantID, chunks)
	if err != nil {
		return 0, s.wrapUnknown(tenantID, documentID, err)
	}

	s.logger.Info("document indexed",
		zap.Int64("tenant_id", tenantID),
		zap.Int64("doc_id", documentID),
		zap.Int("chunks", count),
	)
	return count, nil
}

// DeleteDocument removes every chunk of a document from the tenant's
// collection. Reindexing a changed document is delete followed by
// ProcessDocument; the two steps are not atomic, so a concurrent query may
// briefly see the document absent.
//
// Store errors propagate unchanged; deletion is a direct delegation, not a
// processing step.
func (s *Service) DeleteDocument(ctx context.Context, tenantID, documentID int64) error {
	if err := s.store.DeleteByDocument(ctx, tenantID, documentID); err != nil {
		return err
	}
	s.logger.Info("document deleted",
		zap.Int64("tenant_id", tenantID),
		zap.Int64("doc_id", documentID),
	)
	return nil
}

// wrapUnknown passes through errors that already carry a service kind and
// wraps anything else as a processing failure for this document.
func (s *Service) wrapUnknown(tenantID, documentID int64, err error) error {
	if kb.IsServiceError(err) {
		return err
	}
	return &kb.ProcessingError{TenantID: tenantID, DocumentID: documentID, Err: err}
}
