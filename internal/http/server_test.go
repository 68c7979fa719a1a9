package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fyrsmithlabs/ragd/internal/kb"
	"github.com/fyrsmithlabs/ragd/internal/retriever"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeIndexer struct {
	count      int
	processErr error
	deleteErr  error
	deleted    [][2]int64
}

func (f *fakeIndexer) ProcessDocument(_ context.Context, tenantID, documentID int64, title, content string) (int, error) {
	if f.processErr != nil {
		return 0, f.processErr
	}
	return f.count, nil
}

func (f *fakeIndexer) DeleteDocument(_ context.Context, tenantID, documentID int64) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, [2]int64{tenantID, documentID})
	return nil
}

type fakeRetriever struct {
	lastReq retriever.Request
	result  retriever.Result
	err     error
}

func (f *fakeRetriever) Retrieve(_ context.Context, req retriever.Request) (retriever.Result, error) {
	f.lastReq = req
	if f.err != nil {
		return retriever.Result{}, f.err
	}
	return f.result, nil
}

type fakeHealth struct{ err error }

func (f *fakeHealth) Health(context.Context) error { return f.err }

func newTestServer(t *testing.T, indexer Indexer, ret Retriever, health HealthChecker) *Server {
	t.Helper()
	s, err := NewServer(indexer, ret, health, zap.NewNop(), nil)
	require.NoError(t, err)
	return s
}

func doJSON(s *Server, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

func TestHandleIndex(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		s := newTestServer(t, &fakeIndexer{count: 7}, &fakeRetriever{}, nil)

		rec := doJSON(s, http.MethodPost, "/api/v1/index",
			`{"project_id":1,"doc_id":42,"title":"Guide","content":"text"}`)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp IndexResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "SUCCESS", resp.Status)
		assert.Equal(t, 7, resp.ChunksCount)
		assert.Equal(t, int64(42), resp.DocID)
		assert.Contains(t, resp.Message, "7 chunks")
	})

	t.Run("pipeline failure still answers 200", func(t *testing.T) {
		indexer := &fakeIndexer{processErr: fmt.Errorf("%w: provider down", kb.ErrEmbedding)}
		s := newTestServer(t, indexer, &fakeRetriever{}, nil)

		rec := doJSON(s, http.MethodPost, "/api/v1/index",
			`{"project_id":1,"doc_id":42,"title":"Guide","content":"text"}`)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp IndexResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "FAILED", resp.Status)
		assert.Zero(t, resp.ChunksCount)
		assert.Contains(t, resp.Message, "provider down")
	})

	t.Run("rejects non-positive ids", func(t *testing.T) {
		s := newTestServer(t, &fakeIndexer{}, &fakeRetriever{}, nil)
		rec := doJSON(s, http.MethodPost, "/api/v1/index", `{"project_id":0,"doc_id":42}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejects malformed body", func(t *testing.T) {
		s := newTestServer(t, &fakeIndexer{}, &fakeRetriever{}, nil)
		rec := doJSON(s, http.MethodPost, "/api/v1/index", `{not json`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandleRetrieve(t *testing.T) {
	answer := "grounded answer"
	results := []kb.SearchResult{
		{DocumentID: 9, ChunkIndex: 0, Title: "Guide", Text: "chunk", Score: 0.8},
	}

	t.Run("success with answer", func(t *testing.T) {
		ret := &fakeRetriever{result: retriever.Result{Results: results, Answer: &answer}}
		s := newTestServer(t, &fakeIndexer{}, ret, nil)

		rec := doJSON(s, http.MethodPost, "/api/v1/retrieve",
			`{"project_id":1,"query":"how","alpha":0.7,"top_k":3,"generate_answer":true}`)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp RetrieveResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, int64(1), resp.ProjectID)
		assert.Equal(t, "how", resp.Query)
		require.Len(t, resp.Results, 1)
		assert.Equal(t, int64(9), resp.Results[0].DocumentID)
		require.NotNil(t, resp.Answer)
		assert.Equal(t, answer, *resp.Answer)

		// Request fields pass through to the pipeline.
		assert.Equal(t, int64(1), ret.lastReq.TenantID)
		require.NotNil(t, ret.lastReq.Alpha)
		assert.InDelta(t, 0.7, *ret.lastReq.Alpha, 1e-6)
		assert.Equal(t, 3, ret.lastReq.TopK)
		assert.True(t, ret.lastReq.GenerateAnswer)
	})

	t.Run("empty results serialize as an array", func(t *testing.T) {
		s := newTestServer(t, &fakeIndexer{}, &fakeRetriever{}, nil)

		rec := doJSON(s, http.MethodPost, "/api/v1/retrieve", `{"project_id":1,"query":"how"}`)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"results":[]`)
		assert.Contains(t, rec.Body.String(), `"answer":null`)
	})

	t.Run("service failure maps to 502", func(t *testing.T) {
		ret := &fakeRetriever{err: fmt.Errorf("%w: weaviate unreachable", kb.ErrIndex)}
		s := newTestServer(t, &fakeIndexer{}, ret, nil)

		rec := doJSON(s, http.MethodPost, "/api/v1/retrieve", `{"project_id":1,"query":"how"}`)
		assert.Equal(t, http.StatusBadGateway, rec.Code)
	})

	t.Run("unknown failure maps to 500", func(t *testing.T) {
		ret := &fakeRetriever{err: errors.New("nil pointer somewhere")}
		s := newTestServer(t, &fakeIndexer{}, ret, nil)

		rec := doJSON(s, http.MethodPost, "/api/v1/retrieve", `{"project_id":1,"query":"how"}`)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "nil pointer")
	})

	t.Run("missing query", func(t *testing.T) {
		s := newTestServer(t, &fakeIndexer{}, &fakeRetriever{}, nil)
		rec := doJSON(s, http.MethodPost, "/api/v1/retrieve", `{"project_id":1}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandleDeleteDocument(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		indexer := &fakeIndexer{}
		s := newTestServer(t, indexer, &fakeRetriever{}, nil)

		rec := doJSON(s, http.MethodDelete, "/api/v1/documents", `{"project_id":1,"doc_id":42}`)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, [][2]int64{{1, 42}}, indexer.deleted)
	})

	t.Run("index failure maps to 502", func(t *testing.T) {
		indexer := &fakeIndexer{deleteErr: fmt.Errorf("%w: timeout", kb.ErrIndex)}
		s := newTestServer(t, indexer, &fakeRetriever{}, nil)

		rec := doJSON(s, http.MethodDelete, "/api/v1/documents", `{"project_id":1,"doc_id":42}`)
		assert.Equal(t, http.StatusBadGateway, rec.Code)
	})
}

func TestHandleHealth(t *testing.T) {
	t.Run("ok without checker", func(t *testing.T) {
		s := newTestServer(t, &fakeIndexer{}, &fakeRetriever{}, nil)
		rec := doJSON(s, http.MethodGet, "/health", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"OK"`)
	})

	t.Run("degraded when store unreachable", func(t *testing.T) {
		s := newTestServer(t, &fakeIndexer{}, &fakeRetriever{}, &fakeHealth{err: errors.New("down")})
		rec := doJSON(s, http.MethodGet, "/health", "")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Contains(t, rec.Body.String(), `"DEGRADED"`)
	})
}

func TestNewServer_Validation(t *testing.T) {
	_, err := NewServer(nil, &fakeRetriever{}, nil, zap.NewNop(), nil)
	assert.Error(t, err)

	_, err = NewServer(&fakeIndexer{}, nil, nil, zap.NewNop(), nil)
	assert.Error(t, err)

	_, err = NewServer(&fakeIndexer{}, &fakeRetriever{}, nil, nil, nil)
	assert.Error(t, err)
}
