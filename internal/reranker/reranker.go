// Package reranker provides second-pass re-scoring of retrieval candidates.
//
// A reranker scores each (query, chunk) pair with a higher-precision
// relevance model than the first-stage hybrid search, then truncates to the
// configured final result count. The Bedrock provider calls the Cohere
// Rerank cross-encoder; the lexical provider is a local term-overlap
// fallback for deployments without Bedrock access.
package reranker

import (
	"context"
	"errors"
	"fmt"

	"github.com/fyrsmithlabs/ragd/internal/kb"
	"go.uber.org/zap"
)

// ErrInvalidConfig indicates invalid reranker configuration.
var ErrInvalidConfig = errors.New("invalid configuration")

// Reranker re-scores candidates by relevance to a query.
type Reranker interface {
	// Rerank returns a new, re-ordered slice of at most topN results whose
	// scores are replaced by the reranker's relevance scores. The input
	// slice and its elements are never mutated. Empty candidates yield an
	// empty result with no external call.
	Rerank(ctx context.Context, query string, candidates []kb.SearchResult, topN int) ([]kb.SearchResult, error)

	// Close releases any resources held by the reranker.
	Close() error
}

// Supported reranker providers.
const (
	ProviderBedrock = "bedrock"
	ProviderLexical = "lexical"
)

// Config selects and configures the reranker implementation.
type Config struct {
	// Provider is "bedrock" or "lexical".
	Provider string

	// Region is the AWS region for the Bedrock provider.
	Region string

	// ModelID is the Bedrock model id, e.g. "cohere.rerank-v3-5:0".
	ModelID string
}

// New creates the reranker selected by cfg.Provider.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (Reranker, error) {
	switch cfg.Provider {
	case ProviderBedrock, "":
		return NewBedrockReranker(ctx, cfg, logger)
	case ProviderLexical:
		return NewLexicalReranker(logger), nil
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, cfg.Provider)
	}
}
