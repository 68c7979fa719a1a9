// Package http provides the HTTP API for ragd.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/fyrsmithlabs/ragd/internal/kb"
	"github.com/fyrsmithlabs/ragd/internal/retriever"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

// Indexer runs the indexing pipeline for the API handlers.
type Indexer interface {
	ProcessDocument(ctx context.Context, tenantID, documentID int64, title, content string) (int, error)
	DeleteDocument(ctx context.Context, tenantID, documentID int64) error
}

// Retriever runs the retrieval pipeline for the API handlers.
type Retriever interface {
	Retrieve(ctx context.Context, req retriever.Request) (retriever.Result, error)
}

// HealthChecker reports index store reachability.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Server provides HTTP endpoints for ragd.
type Server struct {
	echo      *echo.Echo
	indexer   Indexer
	retriever Retriever
	health    HealthChecker
	logger    *zap.Logger
	config    *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
}

// NewServer creates a new HTTP server.
func NewServer(indexer Indexer, ret Retriever, health HealthChecker, logger *zap.Logger, cfg *Config) (*Server, error) {
	if indexer == nil {
		return nil, fmt.Errorf("indexer cannot be nil")
	}
	if ret == nil {
		return nil, fmt.Errorf("retriever cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "0.0.0.0",
			Port: 8000,
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})

	s := &Server{
		echo:      e,
		indexer:   indexer,
		retriever: ret,
		health:    health,
		logger:    logger,
		config:    cfg,
	}

	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)

	v1 := s.echo.Group("/api/v1")
	v1.POST("/index", s.handleIndex)
	v1.POST("/retrieve", s.handleRetrieve)
	v1.DELETE("/documents", s.handleDeleteDocument)
}

// IndexRequest is the request body for POST /api/v1/index.
type IndexRequest struct {
	ProjectID int64  `json:"project_id"`
	DocID     int64  `json:"doc_id"`
	Title     string `json:"title"`
	Content   string `json:"content"`
}

// IndexResponse is the response body for POST /api/v1/index.
type IndexResponse struct {
	ProjectID   int64  `json:"project_id"`
	DocID       int64  `json:"doc_id"`
	ChunksCount int    `json:"chunks_count"`
	Status      string `json:"status"`
	Message     string `json:"message"`
}

// RetrieveRequest is the request body for POST /api/v1/retrieve.
type RetrieveRequest struct {
	ProjectID      int64    `json:"project_id"`
	Query          string   `json:"query"`
	Alpha          *float32 `json:"alpha,omitempty"`
	TopK           int      `json:"top_k"`
	GenerateAnswer bool     `json:"generate_answer"`
}

// RetrieveResponse is the response body for POST /api/v1/retrieve.
type RetrieveResponse struct {
	ProjectID int64             `json:"project_id"`
	Query     string            `json:"query"`
	Results   []kb.SearchResult `json:"results"`
	Answer    *string           `json:"answer"`
}

// DeleteRequest is the request body for DELETE /api/v1/documents.
type DeleteRequest struct {
	ProjectID int64 `json:"project_id"`
	DocID     int64 `json:"doc_id"`
}

// DeleteResponse is the response body for DELETE /api/v1/documents.
type DeleteResponse struct {
	ProjectID int64  `json:"project_id"`
	DocID     int64  `json:"doc_id"`
	Status    string `json:"status"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// handleHealth reports process liveness and, when wired, index store
// reachability.
func (s *Server) handleHealth(c echo.Context) error {
	if s.health != nil {
		if err := s.health.Health(c.Request().Context()); err != nil {
			s.logger.Warn("health check failed", zap.Error(err))
			return c.JSON(http.StatusServiceUnavailable, HealthResponse{Status: "DEGRADED", Service: "ragd"})
		}
	}
	return c.JSON(http.StatusOK, HealthResponse{Status: "OK", Service: "ragd"})
}

// handleIndex indexes one document. All pipeline failures are folded into
// the response status; this endpoint answers 200 for processed requests
// whether indexing succeeded or not.
func (s *Server) handleIndex(c echo.Context) error {
	var req IndexRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid index request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.ProjectID <= 0 || req.DocID <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "project_id and doc_id must be positive")
	}

	count, err := s.indexer.ProcessDocument(c.Request().Context(), req.ProjectID, req.DocID, req.Title, req.Content)
	if err != nil {
		s.logger.Error("indexing failed",
			zap.Int64("project_id", req.ProjectID),
			zap.Int64("doc_id", req.DocID),
			zap.Error(err),
		)
		return c.JSON(http.StatusOK, IndexResponse{
			ProjectID: req.ProjectID,
			DocID:     req.DocID,
			Status:    "FAILED",
			Message:   err.Error(),
		})
	}

	return c.JSON(http.StatusOK, IndexResponse{
		ProjectID:   req.ProjectID,
		DocID:       req.DocID,
		ChunksCount: count,
		Status:      "SUCCESS",
		Message:     fmt.Sprintf("Indexed %d chunks for document %d", count, req.DocID),
	})
}

// handleRetrieve searches a project's knowledge base. Service failures map
// to 502 so operators can tell upstream outages from bugs.
func (s *Server) handleRetrieve(c echo.Context) error {
	var req RetrieveRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid retrieve request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.ProjectID <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "project_id must be positive")
	}
	if req.Query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query is required")
	}

	res, err := s.retriever.Retrieve(c.Request().Context(), retriever.Request{
		TenantID:       req.ProjectID,
		Query:          req.Query,
		Alpha:          req.Alpha,
		TopK:           req.TopK,
		GenerateAnswer: req.GenerateAnswer,
	})
	if err != nil {
		s.logger.Error("retrieval failed",
			zap.Int64("project_id", req.ProjectID),
			zap.Error(err),
		)
		if kb.IsServiceError(err) {
			return echo.NewHTTPError(http.StatusBadGateway, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	results := res.Results
	if results == nil {
		results = []kb.SearchResult{}
	}
	return c.JSON(http.StatusOK, RetrieveResponse{
		ProjectID: req.ProjectID,
		Query:     req.Query,
		Results:   results,
		Answer:    res.Answer,
	})
}

// handleDeleteDocument removes a document's chunks from the project index.
func (s *Server) handleDeleteDocument(c echo.Context) error {
	var req DeleteRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.ProjectID <= 0 || req.DocID <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "project_id and doc_id must be positive")
	}

	if err := s.indexer.DeleteDocument(c.Request().Context(), req.ProjectID, req.DocID); err != nil {
		s.logger.Error("delete failed",
			zap.Int64("project_id", req.ProjectID),
			zap.Int64("doc_id", req.DocID),
			zap.Error(err),
		)
		if kb.IsServiceError(err) {
			return echo.NewHTTPError(http.StatusBadGateway, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	return c.JSON(http.StatusOK, DeleteResponse{
		ProjectID: req.ProjectID,
		DocID:     req.DocID,
		Status:    "SUCCESS",
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
