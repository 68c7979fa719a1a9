package reranker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/fyrsmithlabs/ragd/internal/kb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeInvoker struct {
	calls    []*bedrockruntime.InvokeModelInput
	response string
	err      error
}

func (f *fakeInvoker) InvokeModel(_ context.Context, params *bedrockruntime.InvokeModelInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
	f.calls = append(f.calls, params)
	if f.err != nil {
		return nil, f.err
	}
	return &bedrockruntime.InvokeModelOutput{Body: []byte(f.response)}, nil
}

func candidatesFixture() []kb.SearchResult {
	return []kb.SearchResult{
		{DocumentID: 1, ChunkIndex: 0, Title: "alpha", Text: "first chunk", Score: 0.9},
		{DocumentID: 1, ChunkIndex: 1, Title: "alpha", Text: "second chunk", Score: 0.8},
		{DocumentID: 2, ChunkIndex: 0, Title: "beta", Text: "third chunk", Score: 0.7},
	}
}

func TestBedrockReranker_Rerank(t *testing.T) {
	t.Run("empty candidates skip the call", func(t *testing.T) {
		invoker := &fakeInvoker{}
		r := newBedrockRerankerWith(invoker, "cohere.rerank-v3-5:0", zap.NewNop())

		results, err := r.Rerank(context.Background(), "query", nil, 3)
		require.NoError(t, err)
		assert.Empty(t, results)
		assert.Empty(t, invoker.calls)
	})

	t.Run("request carries query, texts, and top_n", func(t *testing.T) {
		invoker := &fakeInvoker{response: `{"results":[]}`}
		r := newBedrockRerankerWith(invoker, "cohere.rerank-v3-5:0", zap.NewNop())

		_, err := r.Rerank(context.Background(), "what is the first chunk", candidatesFixture(), 2)
		require.NoError(t, err)
		require.Len(t, invoker.calls, 1)

		call := invoker.calls[0]
		assert.Equal(t, "cohere.rerank-v3-5:0", *call.ModelId)
		assert.Equal(t, "application/json", *call.ContentType)

		var req cohereRerankRequest
		require.NoError(t, json.Unmarshal(call.Body, &req))
		assert.Equal(t, "what is the first chunk", req.Query)
		assert.Equal(t, []string{"first chunk", "second chunk", "third chunk"}, req.Documents)
		assert.Equal(t, 2, req.TopN)
		assert.Equal(t, 2, req.APIVersion)
	})

	t.Run("results follow provider order with rewritten scores", func(t *testing.T) {
		invoker := &fakeInvoker{response: `{"results":[
			{"index":2,"relevance_score":0.95},
			{"index":0,"relevance_score":0.40}
		]}`}
		r := newBedrockRerankerWith(invoker, "cohere.rerank-v3-5:0", zap.NewNop())

		candidates := candidatesFixture()
		results, err := r.Rerank(context.Background(), "query", candidates, 2)
		require.NoError(t, err)
		require.Len(t, results, 2)

		assert.Equal(t, int64(2), results[0].DocumentID)
		assert.Equal(t, "third chunk", results[0].Text)
		assert.InDelta(t, 0.95, results[0].Score, 1e-6)

		assert.Equal(t, int64(1), results[1].DocumentID)
		assert.Equal(t, "first chunk", results[1].Text)
		assert.InDelta(t, 0.40, results[1].Score, 1e-6)

		// Input is untouched.
		assert.InDelta(t, 0.7, candidates[2].Score, 1e-6)
		assert.InDelta(t, 0.9, candidates[0].Score, 1e-6)
	})

	t.Run("transport failure reports the rerank kind", func(t *testing.T) {
		invoker := &fakeInvoker{err: errors.New("throttled")}
		r := newBedrockRerankerWith(invoker, "cohere.rerank-v3-5:0", zap.NewNop())

		_, err := r.Rerank(context.Background(), "query", candidatesFixture(), 2)
		require.Error(t, err)
		assert.ErrorIs(t, err, kb.ErrRerank)
		assert.True(t, kb.IsServiceError(err))
	})

	t.Run("malformed response reports the rerank kind", func(t *testing.T) {
		invoker := &fakeInvoker{response: `not json`}
		r := newBedrockRerankerWith(invoker, "cohere.rerank-v3-5:0", zap.NewNop())

		_, err := r.Rerank(context.Background(), "query", candidatesFixture(), 2)
		assert.ErrorIs(t, err, kb.ErrRerank)
	})

	t.Run("missing results field is an error", func(t *testing.T) {
		invoker := &fakeInvoker{response: `{}`}
		r := newBedrockRerankerWith(invoker, "cohere.rerank-v3-5:0", zap.NewNop())

		_, err := r.Rerank(context.Background(), "query", candidatesFixture(), 2)
		assert.ErrorIs(t, err, kb.ErrRerank)
	})

	t.Run("out of range index is an error", func(t *testing.T) {
		invoker := &fakeInvoker{response: `{"results":[{"index":9,"relevance_score":0.5}]}`}
		r := newBedrockRerankerWith(invoker, "cohere.rerank-v3-5:0", zap.NewNop())

		_, err := r.Rerank(context.Background(), "query", candidatesFixture(), 2)
		assert.ErrorIs(t, err, kb.ErrRerank)
	})
}

func TestNew_UnknownProvider(t *testing.T) {
	_, err := New(context.Background(), Config{Provider: "cohere-api"}, zap.NewNop())
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestNew_Lexical(t *testing.T) {
	r, err := New(context.Background(), Config{Provider: ProviderLexical}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &LexicalReranker{}, r)
}
