// Package config provides configuration loading for ragd.
//
// Configuration is loaded from a YAML file, then overridden by environment
// variables, with hardcoded defaults for anything left unset.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/knadh/koanf/v2"
)

// Config holds the complete ragd configuration.
type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Logging     LoggingConfig     `koanf:"logging"`
	Embedding   EmbeddingConfig   `koanf:"embedding"`
	Chat        ChatConfig        `koanf:"chat"`
	VectorStore VectorStoreConfig `koanf:"vectorstore"`
	Chunking    ChunkingConfig    `koanf:"chunking"`
	Retrieval   RetrievalConfig   `koanf:"retrieval"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            int      `koanf:"http_port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// LoggingConfig holds logger configuration.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `koanf:"level"`

	// Format is "json" or "console".
	Format string `koanf:"format"`
}

// EmbeddingConfig holds the embedding service configuration.
type EmbeddingConfig struct {
	BaseURL string `koanf:"base_url"`
	Model   string `koanf:"model"`
	APIKey  Secret `koanf:"api_key"`

	// Dimensions is the vector width the model produces.
	Dimensions int `koanf:"dimensions"`
}

// ChatConfig holds the answer generation model configuration.
type ChatConfig struct {
	BaseURL string `koanf:"base_url"`
	Model   string `koanf:"model"`
	APIKey  Secret `koanf:"api_key"`
}

// VectorStoreConfig selects and configures the index store backend.
type VectorStoreConfig struct {
	// Provider is "weaviate" or "qdrant".
	Provider string `koanf:"provider"`

	Weaviate WeaviateConfig `koanf:"weaviate"`
	Qdrant   QdrantConfig   `koanf:"qdrant"`
}

// WeaviateConfig holds Weaviate connection configuration.
type WeaviateConfig struct {
	Host           string   `koanf:"host"`
	Scheme         string   `koanf:"scheme"`
	RequestTimeout Duration `koanf:"request_timeout"`
}

// QdrantConfig holds Qdrant connection configuration.
type QdrantConfig struct {
	Host           string   `koanf:"host"`
	Port           int      `koanf:"port"`
	UseTLS         bool     `koanf:"use_tls"`
	APIKey         Secret   `koanf:"api_key"`
	RequestTimeout Duration `koanf:"request_timeout"`
}

// ChunkingConfig holds document splitting configuration.
type ChunkingConfig struct {
	ChunkSize    int `koanf:"chunk_size"`
	ChunkOverlap int `koanf:"chunk_overlap"`
}

// RetrievalConfig holds query pipeline configuration.
type RetrievalConfig struct {
	// DefaultAlpha balances hybrid search: 0 pure keyword, 1 pure vector.
	DefaultAlpha float32 `koanf:"default_alpha"`

	DefaultTopK int `koanf:"default_top_k"`

	RerankEnabled bool `koanf:"rerank_enabled"`

	// RerankProvider is "bedrock" or "lexical".
	RerankProvider string `koanf:"rerank_provider"`

	// RerankTopK is the first-stage fetch depth when reranking.
	RerankTopK int `koanf:"rerank_top_k"`

	// RerankTopN is the final result count after reranking.
	RerankTopN int `koanf:"rerank_top_n"`

	// RerankDegrade keeps requests alive on reranker outages by falling
	// back to first-stage order.
	RerankDegrade bool `koanf:"rerank_degrade"`

	// AWSRegion is the Bedrock region for the bedrock rerank provider.
	AWSRegion string `koanf:"aws_region"`

	// RerankModelID is the Bedrock rerank model id.
	RerankModelID string `koanf:"rerank_model_id"`
}

// applyDefaults sets default values for missing configuration fields.
//
// Most fields treat the zero value as unset. Fields where zero is a valid
// setting (retrieval.default_alpha, chunking.chunk_overlap) are defaulted
// only when the key is absent from the loaded sources, so an explicit 0
// survives.
func applyDefaults(cfg *Config, k *koanf.Koanf) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = Duration(10 * time.Second)
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Embedding.BaseURL == "" {
		cfg.Embedding.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "text-embedding-3-small"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 1536
	}

	if cfg.Chat.Model == "" {
		cfg.Chat.Model = "gpt-4o-mini"
	}

	if cfg.VectorStore.Provider == "" {
		cfg.VectorStore.Provider = "weaviate"
	}
	if cfg.VectorStore.Weaviate.Host == "" {
		cfg.VectorStore.Weaviate.Host = "localhost:8080"
	}
	if cfg.VectorStore.Weaviate.Scheme == "" {
		cfg.VectorStore.Weaviate.Scheme = "http"
	}
	if cfg.VectorStore.Qdrant.Host == "" {
		cfg.VectorStore.Qdrant.Host = "localhost"
	}
	if cfg.VectorStore.Qdrant.Port == 0 {
		cfg.VectorStore.Qdrant.Port = 6334
	}

	if cfg.Chunking.ChunkSize == 0 {
		cfg.Chunking.ChunkSize = 1000
	}
	if cfg.Chunking.ChunkOverlap == 0 && !k.Exists("chunking.chunk_overlap") {
		cfg.Chunking.ChunkOverlap = 200
	}

	if cfg.Retrieval.DefaultAlpha == 0 && !k.Exists("retrieval.default_alpha") {
		cfg.Retrieval.DefaultAlpha = 0.5
	}
	if cfg.Retrieval.DefaultTopK == 0 {
		cfg.Retrieval.DefaultTopK = 5
	}
	if cfg.Retrieval.RerankProvider == "" {
		cfg.Retrieval.RerankProvider = "bedrock"
	}
	if cfg.Retrieval.RerankTopK == 0 {
		cfg.Retrieval.RerankTopK = 25
	}
	if cfg.Retrieval.RerankTopN == 0 {
		cfg.Retrieval.RerankTopN = cfg.Retrieval.DefaultTopK
	}
	if cfg.Retrieval.AWSRegion == "" {
		cfg.Retrieval.AWSRegion = "us-east-1"
	}
	if cfg.Retrieval.RerankModelID == "" {
		cfg.Retrieval.RerankModelID = "cohere.rerank-v3-5:0"
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout.Duration() <= 0 {
		return errors.New("shutdown timeout must be positive")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("invalid log format: %q", c.Logging.Format)
	}

	if c.Embedding.Dimensions <= 0 {
		return fmt.Errorf("embedding dimensions must be positive, got %d", c.Embedding.Dimensions)
	}

	switch c.VectorStore.Provider {
	case "weaviate", "qdrant":
	default:
		return fmt.Errorf("invalid vectorstore provider: %q", c.VectorStore.Provider)
	}

	if c.Chunking.ChunkSize <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", c.Chunking.ChunkSize)
	}
	if c.Chunking.ChunkOverlap < 0 || c.Chunking.ChunkOverlap >= c.Chunking.ChunkSize {
		return fmt.Errorf("chunk overlap %d must be in [0, %d)", c.Chunking.ChunkOverlap, c.Chunking.ChunkSize)
	}

	if c.Retrieval.DefaultAlpha < 0 || c.Retrieval.DefaultAlpha > 1 {
		return fmt.Errorf("default alpha %v must be in [0, 1]", c.Retrieval.DefaultAlpha)
	}
	if c.Retrieval.DefaultTopK <= 0 {
		return fmt.Errorf("default top_k must be positive, got %d", c.Retrieval.DefaultTopK)
	}
	if c.Retrieval.RerankEnabled {
		switch c.Retrieval.RerankProvider {
		case "bedrock", "lexical":
		default:
			return fmt.Errorf("invalid rerank provider: %q", c.Retrieval.RerankProvider)
		}
		if c.Retrieval.RerankTopN > c.Retrieval.RerankTopK {
			return fmt.Errorf("rerank top_n %d cannot exceed rerank top_k %d", c.Retrieval.RerankTopN, c.Retrieval.RerankTopK)
		}
	}

	return nil
}
