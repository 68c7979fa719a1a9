package vectorstore

import (
	"context"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/ragd/internal/kb"
	"github.com/fyrsmithlabs/ragd/internal/tenant"
	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// QdrantConfig configures the Qdrant-backed store.
type QdrantConfig struct {
	// Host is the Qdrant server hostname or IP address.
	Host string

	// Port is the Qdrant gRPC port (6334 by default, not the 6333 REST port).
	Port int

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool

	// APIKey is the optional API key. Leave empty for local development.
	APIKey string

	// MaxMessageSize is the maximum gRPC message size in bytes. Large
	// document batches need more than the 4MB gRPC default.
	MaxMessageSize int

	// RequestTimeout bounds individual engine calls.
	RequestTimeout time.Duration
}

// ApplyDefaults sets default values for unset fields.
func (c *QdrantConfig) ApplyDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 6334
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = 50 * 1024 * 1024
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = 30 * time.Second
	}
}

// pointEngine is the slice of the Qdrant client API the store uses. Split
// out so the store's lifecycle logic is testable without a running engine.
type pointEngine interface {
	CollectionExists(ctx context.Context, collection string) (bool, error)
	CreateCollection(ctx context.Context, req *qdrant.CreateCollection) error
	Upsert(ctx context.Context, req *qdrant.UpsertPoints) (*qdrant.UpdateResult, error)
	Query(ctx context.Context, req *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error)
	Delete(ctx context.Context, req *qdrant.DeletePoints) (*qdrant.UpdateResult, error)
	HealthCheck(ctx context.Context) (*qdrant.HealthCheckReply, error)
	Close() error
}

// QdrantStore implements Store on Qdrant with pure vector similarity.
//
// Qdrant has no alpha-blended text+vector hybrid query, so the keyword leg
// is not available: the query text and alpha are ignored and ranking is
// cosine similarity only. Selected via the "qdrant" provider for
// deployments that run Qdrant instead of Weaviate.
type QdrantStore struct {
	engine    pointEngine
	dimension uint64
	timeout   time.Duration
	logger    *zap.Logger
}

// NewQdrantStore connects to Qdrant and returns a vector-only store.
func NewQdrantStore(cfg QdrantConfig, dimension int, logger *zap.Logger) (*QdrantStore, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if dimension <= 0 {
		return nil, fmt.Errorf("invalid embedding dimension: %d", dimension)
	}
	cfg.ApplyDefaults()

	grpcOptions := []grpc.DialOption{
		grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(cfg.MaxMessageSize),
			grpc.MaxCallSendMsgSize(cfg.MaxMessageSize),
		),
	}
	if !cfg.UseTLS {
		grpcOptions = append(grpcOptions, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:        cfg.Host,
		Port:        cfg.Port,
		UseTLS:      cfg.UseTLS,
		APIKey:      cfg.APIKey,
		GrpcOptions: grpcOptions,
	})
	if err != nil {
		return nil, fmt.Errorf("creating qdrant client: %w", err)
	}

	logger.Info("qdrant client created",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
	)

	return &QdrantStore{
		engine:    client,
		dimension: uint64(dimension),
		timeout:   cfg.RequestTimeout,
		logger:    logger,
	}, nil
}

// EnsureCollection creates the tenant's collection if absent. Idempotent.
func (s *QdrantStore) EnsureCollection(ctx context.Context, tenantID int64) error {
	collection, err := tenant.CollectionName(tenantID)
	if err != nil {
		return fmt.Errorf("%w: %v", kb.ErrIndex, err)
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	exists, err := s.engine.CollectionExists(ctx, collection)
	if err != nil {
		return fmt.Errorf("%w: checking collection %s: %v", kb.ErrIndex, collection, err)
	}
	if exists {
		return nil
	}

	s.logger.Info("creating collection", zap.String("collection", collection))
	err = s.engine.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     s.dimension,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("%w: creating collection %s: %v", kb.ErrIndex, collection, err)
	}
	return nil
}

// InsertChunks upserts chunks with deterministic point IDs, so re-indexing
// the same chunk overwrites rather than duplicates.
func (s *QdrantStore) InsertChunks(ctx context.Context, tenantID int64, chunks []kb.Chunk) (int, error) {
	if err := s.EnsureCollection(ctx, tenantID); err != nil {
		return 0, err
	}
	collection, err := tenant.CollectionName(tenantID)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", kb.ErrIndex, err)
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	points := make([]*qdrant.PointStruct, len(chunks))
	for i, c := range chunks {
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(chunkPointID(collection, c.DocumentID, c.ChunkIndex)),
			Vectors: qdrant.NewVectors(c.Vector...),
			Payload: chunkPayload(c),
		}
	}

	s.logger.Info("inserting chunks",
		zap.String("collection", collection),
		zap.Int("count", len(points)),
	)
	if _, err := s.engine.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Points:         points,
	}); err != nil {
		return 0, fmt.Errorf("%w: inserting %d chunks into %s: %v", kb.ErrIndex, len(points), collection, err)
	}
	return len(chunks), nil
}

// HybridSearch ranks by vector similarity only; the query text and alpha
// have no effect on this engine.
func (s *QdrantStore) HybridSearch(ctx context.Context, tenantID int64, query string, vector []float32, alpha float32, limit int) ([]kb.SearchResult, error) {
	collection, err := tenant.CollectionName(tenantID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", kb.ErrIndex, err)
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	exists, err := s.engine.CollectionExists(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("%w: checking collection %s: %v", kb.ErrIndex, collection, err)
	}
	if !exists {
		s.logger.Warn("collection does not exist, returning empty results",
			zap.String("collection", collection),
		)
		return nil, nil
	}

	s.logger.Debug("vector search (keyword leg unavailable on qdrant)",
		zap.String("collection", collection),
		zap.Float32("alpha_ignored", alpha),
		zap.Int("limit", limit),
	)
	scored, err := s.engine.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: searching %s: %v", kb.ErrIndex, collection, err)
	}

	results := make([]kb.SearchResult, 0, len(scored))
	for _, point := range scored {
		results = append(results, resultFromPayload(point.Payload, point.Score))
	}
	return results, nil
}

// DeleteByDocument removes all chunks of a document via a payload filter.
func (s *QdrantStore) DeleteByDocument(ctx context.Context, tenantID, documentID int64) error {
	collection, err := tenant.CollectionName(tenantID)
	if err != nil {
		return fmt.Errorf("%w: %v", kb.ErrIndex, err)
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	exists, err := s.engine.CollectionExists(ctx, collection)
	if err != nil {
		return fmt.Errorf("%w: checking collection %s: %v", kb.ErrIndex, collection, err)
	}
	if !exists {
		s.logger.Warn("collection does not exist, nothing to delete",
			zap.String("collection", collection),
		)
		return nil
	}

	s.logger.Info("deleting document chunks",
		zap.String("collection", collection),
		zap.Int64("document_id", documentID),
	)
	if _, err := s.engine.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collection,
		Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatchInt("doc_id", documentID)},
		}),
	}); err != nil {
		return fmt.Errorf("%w: deleting document %d from %s: %v", kb.ErrIndex, documentID, collection, err)
	}
	return nil
}

// Health checks the Qdrant connection.
func (s *QdrantStore) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.engine.HealthCheck(ctx); err != nil {
		return fmt.Errorf("%w: health check: %v", kb.ErrIndex, err)
	}
	return nil
}

// Close closes the gRPC connection.
func (s *QdrantStore) Close() error {
	return s.engine.Close()
}

// chunkPointID derives a stable UUID for a chunk from its coordinates.
func chunkPointID(collection string, documentID int64, chunkIndex int) string {
	key := fmt.Sprintf("%s/%d/%d", collection, documentID, chunkIndex)
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(key)).String()
}

// chunkPayload maps a chunk onto the collection's payload schema.
func chunkPayload(c kb.Chunk) map[string]*qdrant.Value {
	return qdrant.NewValueMap(map[string]any{
		"doc_id":   c.DocumentID,
		"chunk_id": int64(c.ChunkIndex),
		"title":    c.Title,
		"text":     c.Text,
	})
}

// resultFromPayload rebuilds a search result from a scored point's payload.
func resultFromPayload(payload map[string]*qdrant.Value, score float32) kb.SearchResult {
	r := kb.SearchResult{Score: score}
	if v, ok := payload["doc_id"]; ok {
		r.DocumentID = v.GetIntegerValue()
	}
	if v, ok := payload["chunk_id"]; ok {
		r.ChunkIndex = int(v.GetIntegerValue())
	}
	if v, ok := payload["title"]; ok {
		r.Title = v.GetStringValue()
	}
	if v, ok := payload["text"]; ok {
		r.Text = v.GetStringValue()
	}
	return r
}

var _ Store = (*QdrantStore)(nil)
