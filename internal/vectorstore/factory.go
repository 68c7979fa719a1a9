package vectorstore

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Supported store providers.
const (
	ProviderWeaviate = "weaviate"
	ProviderQdrant   = "qdrant"
)

// ErrUnknownProvider indicates an unrecognized store provider name.
var ErrUnknownProvider = errors.New("unknown vector store provider")

// Config selects and configures the active store implementation.
type Config struct {
	// Provider is "weaviate" (hybrid, default) or "qdrant" (pure vector).
	Provider string

	// Dimensions is the embedding dimension enforced on collection creation
	// where the engine supports it.
	Dimensions int

	Weaviate WeaviateConfig
	Qdrant   QdrantConfig
}

// New creates the store selected by cfg.Provider.
func New(cfg Config, logger *zap.Logger) (Store, error) {
	switch cfg.Provider {
	case ProviderWeaviate, "":
		return NewWeaviateStore(cfg.Weaviate, logger)
	case ProviderQdrant:
		return NewQdrantStore(cfg.Qdrant, cfg.Dimensions, logger)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}
}
