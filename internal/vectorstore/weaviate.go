package vectorstore

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/fyrsmithlabs/ragd/internal/kb"
	"github.com/fyrsmithlabs/ragd/internal/tenant"
	"github.com/weaviate/weaviate-go-client/v4/weaviate"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"
	"go.uber.org/zap"
)

// WeaviateConfig configures the Weaviate-backed store.
type WeaviateConfig struct {
	// Host is the Weaviate host and port, e.g. "localhost:8080".
	Host string

	// Scheme is "http" or "https".
	Scheme string

	// RequestTimeout bounds individual engine calls.
	RequestTimeout time.Duration
}

// ApplyDefaults sets default values for unset fields.
func (c *WeaviateConfig) ApplyDefaults() {
	if c.Host == "" {
		c.Host = "localhost:8080"
	}
	if c.Scheme == "" {
		c.Scheme = "http"
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = 30 * time.Second
	}
}

// hybridEngine is the slice of the Weaviate API the store uses. Split out so
// the store's lifecycle logic is testable without a running engine.
type hybridEngine interface {
	ClassExists(ctx context.Context, class string) (bool, error)
	CreateClass(ctx context.Context, class string) error
	InsertObjects(ctx context.Context, class string, chunks []kb.Chunk) error
	Hybrid(ctx context.Context, class, query string, vector []float32, alpha float32, limit int) ([]kb.SearchResult, error)
	DeleteByDocument(ctx context.Context, class string, documentID int64) error
	Ready(ctx context.Context) error
}

// WeaviateStore implements Store on Weaviate's native hybrid search.
// Keyword relevance comes from Weaviate's automatic BM25 indexing of text
// properties; fusion uses relative-score fusion.
type WeaviateStore struct {
	engine hybridEngine
	logger *zap.Logger
}

// NewWeaviateStore connects to Weaviate and returns a hybrid store.
func NewWeaviateStore(cfg WeaviateConfig, logger *zap.Logger) (*WeaviateStore, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	cfg.ApplyDefaults()

	client, err := weaviate.NewClient(weaviate.Config{
		Host:   cfg.Host,
		Scheme: cfg.Scheme,
	})
	if err != nil {
		return nil, fmt.Errorf("creating weaviate client: %w", err)
	}

	logger.Info("weaviate client created",
		zap.String("host", cfg.Host),
		zap.String("scheme", cfg.Scheme),
	)

	return &WeaviateStore{
		engine: &weaviateEngine{client: client, timeout: cfg.RequestTimeout},
		logger: logger,
	}, nil
}

// EnsureCollection creates the tenant's collection if absent. Idempotent.
func (s *WeaviateStore) EnsureCollection(ctx context.Context, tenantID int64) error {
	class, err := tenant.CollectionName(tenantID)
	if err != nil {
		return fmt.Errorf("%w: %v", kb.ErrIndex, err)
	}

	exists, err := s.engine.ClassExists(ctx, class)
	if err != nil {
		return s.indexErr(err, "checking collection %s", class)
	}
	if exists {
		s.logger.Debug("collection already exists", zap.String("collection", class))
		return nil
	}

	s.logger.Info("creating collection", zap.String("collection", class))
	if err := s.engine.CreateClass(ctx, class); err != nil {
		return s.indexErr(err, "creating collection %s", class)
	}
	return nil
}

// InsertChunks batch-inserts chunks, lazily creating the collection.
func (s *WeaviateStore) InsertChunks(ctx context.Context, tenantID int64, chunks []kb.Chunk) (int, error) {
	if err := s.EnsureCollection(ctx, tenantID); err != nil {
		return 0, err
	}
	class, err := tenant.CollectionName(tenantID)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", kb.ErrIndex, err)
	}

	s.logger.Info("inserting chunks",
		zap.String("collection", class),
		zap.Int("count", len(chunks)),
	)
	if err := s.engine.InsertObjects(ctx, class, chunks); err != nil {
		return 0, s.indexErr(err, "inserting %d chunks into %s", len(chunks), class)
	}
	return len(chunks), nil
}

// HybridSearch blends vector and keyword relevance by alpha. A missing
// collection yields an empty result.
func (s *WeaviateStore) HybridSearch(ctx context.Context, tenantID int64, query string, vector []float32, alpha float32, limit int) ([]kb.SearchResult, error) {
	class, err := tenant.CollectionName(tenantID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", kb.ErrIndex, err)
	}

	exists, err := s.engine.ClassExists(ctx, class)
	if err != nil {
		return nil, s.indexErr(err, "checking collection %s", class)
	}
	if !exists {
		s.logger.Warn("collection does not exist, returning empty results",
			zap.String("collection", class),
		)
		return nil, nil
	}

	s.logger.Debug("hybrid search",
		zap.String("collection", class),
		zap.Float32("alpha", alpha),
		zap.Int("limit", limit),
	)
	results, err := s.engine.Hybrid(ctx, class, query, vector, alpha, limit)
	if err != nil {
		return nil, s.indexErr(err, "hybrid search on %s", class)
	}
	return results, nil
}

// DeleteByDocument removes all chunks of a document. A missing collection is
// a no-op.
func (s *WeaviateStore) DeleteByDocument(ctx context.Context, tenantID, documentID int64) error {
	class, err := tenant.CollectionName(tenantID)
	if err != nil {
		return fmt.Errorf("%w: %v", kb.ErrIndex, err)
	}

	exists, err := s.engine.ClassExists(ctx, class)
	if err != nil {
		return s.indexErr(err, "checking collection %s", class)
	}
	if !exists {
		s.logger.Warn("collection does not exist, nothing to delete",
			zap.String("collection", class),
		)
		return nil
	}

	s.logger.Info("deleting document chunks",
		zap.String("collection", class),
		zap.Int64("document_id", documentID),
	)
	if err := s.engine.DeleteByDocument(ctx, class, documentID); err != nil {
		return s.indexErr(err, "deleting document %d from %s", documentID, class)
	}
	return nil
}

// Health reports whether the engine is ready.
func (s *WeaviateStore) Health(ctx context.Context) error {
	if err := s.engine.Ready(ctx); err != nil {
		return fmt.Errorf("%w: %v", kb.ErrIndex, err)
	}
	return nil
}

// Close is a no-op; the Weaviate client is HTTP-based.
func (s *WeaviateStore) Close() error { return nil }

// indexErr wraps an engine failure as kb.ErrIndex, re-raising unchanged
// anything that already carries a recognized kind.
func (s *WeaviateStore) indexErr(err error, format string, args ...interface{}) error {
	if kb.IsServiceError(err) {
		return err
	}
	return fmt.Errorf("%w: %s: %v", kb.ErrIndex, fmt.Sprintf(format, args...), err)
}

// weaviateEngine implements hybridEngine with the real client.
type weaviateEngine struct {
	client  *weaviate.Client
	timeout time.Duration
}

func (e *weaviateEngine) ClassExists(ctx context.Context, class string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	return e.client.Schema().ClassExistenceChecker().WithClassName(class).Do(ctx)
}

// CreateClass creates the chunk schema: integer document id, integer chunk
// index, text title, text body. Text properties are BM25-indexed by Weaviate
// automatically; vectors are supplied explicitly (vectorizer "none").
func (e *weaviateEngine) CreateClass(ctx context.Context, class string) error {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	return e.client.Schema().ClassCreator().WithClass(&models.Class{
		Class:      class,
		Vectorizer: "none",
		Properties: []*models.Property{
			{Name: "doc_id", DataType: []string{"int"}},
			{Name: "chunk_id", DataType: []string{"int"}},
			{Name: "title", DataType: []string{"text"}},
			{Name: "text", DataType: []string{"text"}},
		},
	}).Do(ctx)
}

func (e *weaviateEngine) InsertObjects(ctx context.Context, class string, chunks []kb.Chunk) error {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	objects := make([]*models.Object, len(chunks))
	for i, c := range chunks {
		objects[i] = &models.Object{
			Class: class,
			Properties: map[string]interface{}{
				"doc_id":   c.DocumentID,
				"chunk_id": c.ChunkIndex,
				"title":    c.Title,
				"text":     c.Text,
			},
			Vector: models.C11yVector(c.Vector),
		}
	}

	resp, err := e.client.Batch().ObjectsBatcher().WithObjects(objects...).Do(ctx)
	if err != nil {
		return err
	}
	for _, item := range resp {
		if item.Result != nil && item.Result.Errors != nil && len(item.Result.Errors.Error) > 0 {
			return fmt.Errorf("batch insert: %s", item.Result.Errors.Error[0].Message)
		}
	}
	return nil
}

func (e *weaviateEngine) Hybrid(ctx context.Context, class, query string, vector []float32, alpha float32, limit int) ([]kb.SearchResult, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	hybrid := (&graphql.HybridArgumentBuilder{}).
		WithQuery(query).
		WithVector(vector).
		WithAlpha(alpha).
		WithFusionType(graphql.RelativeScore)

	fields := []graphql.Field{
		{Name: "doc_id"},
		{Name: "chunk_id"},
		{Name: "title"},
		{Name: "text"},
		{Name: "_additional", Fields: []graphql.Field{{Name: "score"}}},
	}

	resp, err := e.client.GraphQL().Get().
		WithClassName(class).
		WithFields(fields...).
		WithHybrid(hybrid).
		WithLimit(limit).
		Do(ctx)
	if err != nil {
		return nil, err
	}
	if len(resp.Errors) > 0 {
		return nil, fmt.Errorf("graphql: %s", resp.Errors[0].Message)
	}

	return parseHybridResponse(resp.Data, class)
}

func (e *weaviateEngine) DeleteByDocument(ctx context.Context, class string, documentID int64) error {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	where := filters.Where().
		WithPath([]string{"doc_id"}).
		WithOperator(filters.Equal).
		WithValueInt(documentID)

	_, err := e.client.Batch().ObjectsBatchDeleter().
		WithClassName(class).
		WithWhere(where).
		WithOutput("minimal").
		Do(ctx)
	return err
}

func (e *weaviateEngine) Ready(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	ready, err := e.client.Misc().ReadyChecker().Do(ctx)
	if err != nil {
		return err
	}
	if !ready {
		return fmt.Errorf("weaviate not ready")
	}
	return nil
}

// parseHybridResponse unpacks a GraphQL Get response into search results.
// Weaviate returns numbers as float64 and the additional score as a string.
func parseHybridResponse(data map[string]models.JSONObject, class string) ([]kb.SearchResult, error) {
	get, ok := data["Get"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("graphql response missing Get block")
	}
	rows, ok := get[class].([]interface{})
	if !ok {
		// A valid response with no matches.
		return nil, nil
	}

	results := make([]kb.SearchResult, 0, len(rows))
	for _, row := range rows {
		obj, ok := row.(map[string]interface{})
		if !ok {
			continue
		}
		r := kb.SearchResult{}
		if v, ok := obj["doc_id"].(float64); ok {
			r.DocumentID = int64(v)
		}
		if v, ok := obj["chunk_id"].(float64); ok {
			r.ChunkIndex = int(v)
		}
		if v, ok := obj["title"].(string); ok {
			r.Title = v
		}
		if v, ok := obj["text"].(string); ok {
			r.Text = v
		}
		if add, ok := obj["_additional"].(map[string]interface{}); ok {
			if sc, ok := add["score"].(string); ok {
				if f, err := strconv.ParseFloat(sc, 32); err == nil {
					r.Score = float32(f)
				}
			}
		}
		results = append(results, r)
	}
	return results, nil
}

var _ Store = (*WeaviateStore)(nil)
