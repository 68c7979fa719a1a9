// Package retriever orchestrates query answering: embed the query, run a
// hybrid search over the tenant's collection, optionally rerank with a
// cross-encoder, and optionally generate a grounded answer.
package retriever

import (
	"context"
	"fmt"

	"github.com/fyrsmithlabs/ragd/internal/kb"
	"go.uber.org/zap"
)

// QueryEmbedder produces a vector for a query string.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Searcher runs hybrid search over a tenant's collection.
type Searcher interface {
	HybridSearch(ctx context.Context, tenantID int64, query string, vector []float32, alpha float32, limit int) ([]kb.SearchResult, error)
}

// Reranker re-scores candidates. See the reranker package.
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []kb.SearchResult, topN int) ([]kb.SearchResult, error)
}

// AnswerGenerator produces an answer from retrieved chunks.
type AnswerGenerator interface {
	Generate(ctx context.Context, query string, results []kb.SearchResult) (string, error)
}

// Config tunes the retrieval pipeline.
type Config struct {
	// DefaultAlpha balances the hybrid search when a request does not set
	// one. 0 is pure keyword, 1 is pure vector.
	DefaultAlpha float32

	// DefaultTopK is the result count when a request does not set one.
	DefaultTopK int

	// RerankEnabled turns on the second-stage reranker.
	RerankEnabled bool

	// RerankTopK is the first-stage fetch depth feeding the reranker.
	RerankTopK int

	// RerankTopN is the final result count after reranking.
	RerankTopN int

	// RerankDegrade makes a reranker failure non-fatal: the first-stage
	// order is kept, truncated to RerankTopN. Off by default so ranking
	// quality does not silently regress.
	RerankDegrade bool
}

// Request is one retrieval request.
type Request struct {
	TenantID int64

	Query string

	// Alpha overrides Config.DefaultAlpha when set. Clamped to [0, 1].
	Alpha *float32

	// TopK overrides Config.DefaultTopK when positive.
	TopK int

	// GenerateAnswer asks for a grounded answer alongside the results.
	GenerateAnswer bool
}

// Result is the retrieval outcome.
type Result struct {
	Results []kb.SearchResult

	// Answer is set only when requested and generation succeeded.
	Answer *string
}

// Service runs the retrieval pipeline. The reranker and answerer may be nil
// when their features are disabled.
type Service struct {
	embedder QueryEmbedder
	searcher Searcher
	reranker Reranker
	answerer AnswerGenerator
	cfg      Config
	logger   *zap.Logger
}

// NewService creates a retrieval service.
func NewService(embedder QueryEmbedder, searcher Searcher, reranker Reranker, answerer AnswerGenerator, cfg Config, logger *zap.Logger) (*Service, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if searcher == nil {
		return nil, fmt.Errorf("searcher is required")
	}
	if cfg.RerankEnabled && reranker == nil {
		return nil, fmt.Errorf("reranking enabled but no reranker provided")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if cfg.DefaultTopK <= 0 {
		cfg.DefaultTopK = 5
	}
	return &Service{
		embedder: embedder,
		searcher: searcher,
		reranker: reranker,
		answerer: answerer,
		cfg:      cfg,
		logger:   logger,
	}, nil
}

// Retrieve answers one request. Embedding, search, and (unless degradation
// is enabled) rerank failures propagate with their service kind; answer
// generation failures are logged and the answer omitted, never failing the
// request.
func (s *Service) Retrieve(ctx context.Context, req Request) (Result, error) {
	topK := req.TopK
	if topK <= 0 {
		topK = s.cfg.DefaultTopK
	}
	alpha := s.resolveAlpha(req.Alpha)

	vector, err := s.embedder.EmbedQuery(ctx, req.Query)
	if err != nil {
		return Result{}, err
	}

	// With reranking on, fetch a deeper candidate pool for the
	// cross-encoder to choose from.
	fetchLimit := topK
	if s.cfg.RerankEnabled && s.cfg.RerankTopK > 0 {
		fetchLimit = s.cfg.RerankTopK
	}

	results, err := s.searcher.HybridSearch(ctx, req.TenantID, req.Query, vector, alpha, fetchLimit)
	if err != nil {
		return Result{}, err
	}

	if s.cfg.RerankEnabled && len(results) > 0 {
		results, err = s.rerank(ctx, req.Query, results, topK)
		if err != nil {
			return Result{}, err
		}
	}

	res := Result{Results: results}

	if req.GenerateAnswer && s.answerer != nil && len(results) > 0 {
		answer, err := s.answerer.Generate(ctx, req.Query, results)
		if err != nil {
			s.logger.Warn("answer generation failed, returning results without answer",
				zap.Int64("tenant_id", req.TenantID),
				zap.Error(err),
			)
		} else {
			res.Answer = &answer
		}
	}

	return res, nil
}

// rerank applies the cross-encoder, degrading to truncated first-stage
// order when configured to tolerate reranker outages.
func (s *Service) rerank(ctx context.Context, query string, results []kb.SearchResult, topK int) ([]kb.SearchResult, error) {
	topN := s.cfg.RerankTopN
	if topN <= 0 {
		topN = topK
	}

	reranked, err := s.reranker.Rerank(ctx, query, results, topN)
	if err == nil {
		return reranked, nil
	}
	if !s.cfg.RerankDegrade {
		return nil, err
	}

	s.logger.Warn("reranker failed, falling back to first stage order", zap.Error(err))
	if len(results) > topN {
		results = results[:topN]
	}
	return results, nil
}

// resolveAlpha picks the request override or the default and clamps it to
// the valid hybrid range.
func (s *Service) resolveAlpha(override *float32) float32 {
	alpha := s.cfg.DefaultAlpha
	if override != nil {
		alpha = *override
	}
	if alpha < 0 {
		return 0
	}
	if alpha > 1 {
		return 1
	}
	return alpha
}
