// Ragd is a knowledge base service for retrieval-augmented generation.
//
// It chunks and embeds uploaded documents into per-project vector
// collections, serves hybrid search over them, and optionally reranks
// candidates and generates grounded answers.
//
// Configuration is loaded from ~/.config/ragd/config.yaml and environment
// variables. See internal/config for details.
//
// Usage:
//
//	# Start server with defaults
//	ragd
//
//	# Configure via environment
//	SERVER_HTTP_PORT=8000 VECTORSTORE_PROVIDER=weaviate ragd
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragd/internal/answer"
	"github.com/fyrsmithlabs/ragd/internal/chunker"
	"github.com/fyrsmithlabs/ragd/internal/config"
	"github.com/fyrsmithlabs/ragd/internal/embeddings"
	ragdhttp "github.com/fyrsmithlabs/ragd/internal/http"
	"github.com/fyrsmithlabs/ragd/internal/indexer"
	"github.com/fyrsmithlabs/ragd/internal/logging"
	"github.com/fyrsmithlabs/ragd/internal/reranker"
	"github.com/fyrsmithlabs/ragd/internal/retriever"
	"github.com/fyrsmithlabs/ragd/internal/vectorstore"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default ~/.config/ragd/config.yaml)")
	flag.Parse()
	args := flag.Args()

	if len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  ragd           Start the ragd server\n")
			fmt.Fprintf(os.Stderr, "  ragd version   Show version information\n")
			os.Exit(1)
		}
	}

	// Setup signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Printf("Received signal %v, shutting down gracefully...", sig)
		cancel()
	}()

	if err := run(ctx, *configPath); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Server error: %v", err)
	}

	log.Println("Server shutdown complete")
}

// printVersion prints version information
func printVersion() {
	fmt.Printf("ragd by Fyrsmith Labs\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run starts the ragd server and blocks until context cancellation.
//
// Initialization order:
//  1. Load and validate configuration
//  2. Initialize logger
//  3. Connect the vector store backend
//  4. Create embedding, reranking, and answer services
//  5. Wire indexing and retrieval pipelines
//  6. Start HTTP server, shut down gracefully on cancellation
func run(ctx context.Context, configPath string) error {
	// Local development convenience; a missing .env is fine.
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync() // Best-effort sync on shutdown
	}()

	logger.Info("Starting ragd",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port),
		zap.String("vectorstore", cfg.VectorStore.Provider),
		zap.Duration("shutdown_timeout", cfg.Server.ShutdownTimeout.Duration()))

	store, err := vectorstore.New(vectorstore.Config{
		Provider:   cfg.VectorStore.Provider,
		Dimensions: cfg.Embedding.Dimensions,
		Weaviate: vectorstore.WeaviateConfig{
			Host:           cfg.VectorStore.Weaviate.Host,
			Scheme:         cfg.VectorStore.Weaviate.Scheme,
			RequestTimeout: cfg.VectorStore.Weaviate.RequestTimeout.Duration(),
		},
		Qdrant: vectorstore.QdrantConfig{
			Host:           cfg.VectorStore.Qdrant.Host,
			Port:           cfg.VectorStore.Qdrant.Port,
			UseTLS:         cfg.VectorStore.Qdrant.UseTLS,
			APIKey:         cfg.VectorStore.Qdrant.APIKey.Value(),
			RequestTimeout: cfg.VectorStore.Qdrant.RequestTimeout.Duration(),
		},
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to create vector store: %w", err)
	}
	defer store.Close()

	embedder, err := embeddings.NewService(embeddings.Config{
		BaseURL: cfg.Embedding.BaseURL,
		Model:   cfg.Embedding.Model,
		APIKey:  cfg.Embedding.APIKey.Value(),
	})
	if err != nil {
		return fmt.Errorf("failed to create embedding service: %w", err)
	}

	splitter, err := chunker.New(cfg.Chunking.ChunkSize, cfg.Chunking.ChunkOverlap)
	if err != nil {
		return fmt.Errorf("failed to create chunker: %w", err)
	}

	var rr retriever.Reranker
	if cfg.Retrieval.RerankEnabled {
		r, err := reranker.New(ctx, reranker.Config{
			Provider: cfg.Retrieval.RerankProvider,
			Region:   cfg.Retrieval.AWSRegion,
			ModelID:  cfg.Retrieval.RerankModelID,
		}, logger)
		if err != nil {
			return fmt.Errorf("failed to create reranker: %w", err)
		}
		defer r.Close()
		rr = r
	}

	answerer, err := answer.NewGenerator(answer.Config{
		BaseURL: cfg.Chat.BaseURL,
		Model:   cfg.Chat.Model,
		APIKey:  cfg.Chat.APIKey.Value(),
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to create answer generator: %w", err)
	}

	indexSvc, err := indexer.NewService(splitter, embedder, store, logger)
	if err != nil {
		return fmt.Errorf("failed to create indexer: %w", err)
	}

	retrieveSvc, err := retriever.NewService(embedder, store, rr, answerer, retriever.Config{
		DefaultAlpha:  cfg.Retrieval.DefaultAlpha,
		DefaultTopK:   cfg.Retrieval.DefaultTopK,
		RerankEnabled: cfg.Retrieval.RerankEnabled,
		RerankTopK:    cfg.Retrieval.RerankTopK,
		RerankTopN:    cfg.Retrieval.RerankTopN,
		RerankDegrade: cfg.Retrieval.RerankDegrade,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to create retriever: %w", err)
	}

	srv, err := ragdhttp.NewServer(indexSvc, retrieveSvc, store, logger, &ragdhttp.Config{
		Host: "0.0.0.0",
		Port: cfg.Server.Port,
	})
	if err != nil {
		return fmt.Errorf("failed to create http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
