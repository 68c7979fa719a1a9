// Package embeddings provides embedding generation via an OpenAI-compatible
// provider.
//
// The service wraps langchaingo's embeddings abstraction, so it works with
// both the OpenAI API and self-hosted OpenAI-compatible servers (TEI, vLLM).
// All provider failures are normalized onto kb.ErrEmbedding; callers branch
// on the kind, never on provider-specific errors.
package embeddings

import (
	"context"
	"errors"
	"fmt"

	"github.com/fyrsmithlabs/ragd/internal/kb"
	lcembeddings "github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

// ErrInvalidConfig indicates invalid configuration.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds configuration for the embedding service.
type Config struct {
	// BaseURL is the base URL for the embedding API.
	// For OpenAI: https://api.openai.com/v1
	BaseURL string

	// Model is the embedding model, e.g. text-embedding-3-small.
	Model string

	// APIKey is the provider API key. Optional for self-hosted servers.
	APIKey string
}

// Validate validates the configuration.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("%w: base URL required", ErrInvalidConfig)
	}
	if c.Model == "" {
		return fmt.Errorf("%w: model required", ErrInvalidConfig)
	}
	return nil
}

// Service generates embeddings. It holds only the provider client and is
// safe for concurrent use by independent requests.
type Service struct {
	embedder lcembeddings.Embedder
	config   Config
}

// NewService creates an embedding service backed by an OpenAI-compatible
// provider.
func NewService(config Config) (*Service, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	apiKey := config.APIKey
	if apiKey == "" {
		// langchaingo requires a token even for unauthenticated servers.
		apiKey = "placeholder"
	}

	llm, err := openai.New(
		openai.WithBaseURL(config.BaseURL),
		openai.WithEmbeddingModel(config.Model),
		openai.WithToken(apiKey),
	)
	if err != nil {
		return nil, fmt.Errorf("creating OpenAI client: %w", err)
	}

	embedder, err := lcembeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}

	return &Service{embedder: embedder, config: config}, nil
}

// newServiceWith wires an existing embedder. Used by tests.
func newServiceWith(embedder lcembeddings.Embedder, config Config) *Service {
	return &Service{embedder: embedder, config: config}
}

// EmbedDocuments generates one vector per input text, in input order. An
// empty input returns an empty result without calling the provider.
func (s *Service) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", kb.ErrEmbedding, err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: provider returned %d vectors for %d texts", kb.ErrEmbedding, len(vectors), len(texts))
	}
	return vectors, nil
}

// EmbedQuery generates the embedding for a single text. It is the batch call
// applied to one element.
func (s *Service) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := s.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("%w: provider returned no vector", kb.ErrEmbedding)
	}
	return vectors[0], nil
}
