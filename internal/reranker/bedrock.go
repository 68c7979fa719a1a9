package reranker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/fyrsmithlabs/ragd/internal/kb"
	"go.uber.org/zap"
)

// invokeAPI is the slice of the Bedrock runtime API the reranker uses.
type invokeAPI interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// BedrockReranker calls the Cohere Rerank cross-encoder on Amazon Bedrock.
// AWS credentials come from the default chain (environment, shared config,
// instance role).
type BedrockReranker struct {
	client  invokeAPI
	modelID string
	logger  *zap.Logger
}

// cohereRerankRequest is the Cohere Rerank payload on Bedrock.
type cohereRerankRequest struct {
	Query      string   `json:"query"`
	Documents  []string `json:"documents"`
	TopN       int      `json:"top_n"`
	APIVersion int      `json:"api_version"`
}

// cohereRerankEntry is one ranking entry. The provider returns entries in
// relevance order; they are not necessarily sorted by index and may not
// cover every candidate.
type cohereRerankEntry struct {
	Index          int     `json:"index"`
	RelevanceScore float32 `json:"relevance_score"`
}

type cohereRerankResponse struct {
	Results []cohereRerankEntry `json:"results"`
}

// NewBedrockReranker creates the Bedrock-backed reranker. A client
// initialization failure is reported as kb.ErrRerank.
func NewBedrockReranker(ctx context.Context, cfg Config, logger *zap.Logger) (*BedrockReranker, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if cfg.ModelID == "" {
		return nil, fmt.Errorf("%w: bedrock model id required", ErrInvalidConfig)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("%w: initializing bedrock client: %v", kb.ErrRerank, err)
	}

	return &BedrockReranker{
		client:  bedrockruntime.NewFromConfig(awsCfg),
		modelID: cfg.ModelID,
		logger:  logger,
	}, nil
}

// newBedrockRerankerWith wires an existing client. Used by tests.
func newBedrockRerankerWith(client invokeAPI, modelID string, logger *zap.Logger) *BedrockReranker {
	return &BedrockReranker{client: client, modelID: modelID, logger: logger}
}

// Rerank submits (query, candidate texts) to the cross-encoder and maps its
// ranking back onto copies of the candidates.
func (r *BedrockReranker) Rerank(ctx context.Context, query string, candidates []kb.SearchResult, topN int) ([]kb.SearchResult, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	documents := make([]string, len(candidates))
	for i, c := range candidates {
		documents[i] = c.Text
	}

	body, err := json.Marshal(cohereRerankRequest{
		Query:      query,
		Documents:  documents,
		TopN:       topN,
		APIVersion: 2,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: encoding request: %v", kb.ErrRerank, err)
	}

	r.logger.Debug("calling bedrock rerank",
		zap.String("model", r.modelID),
		zap.Int("documents", len(documents)),
		zap.Int("top_n", topN),
	)

	out, err := r.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(r.modelID),
		Body:        body,
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: invoking %s: %v", kb.ErrRerank, r.modelID, err)
	}

	var resp cohereRerankResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return nil, fmt.Errorf("%w: parsing response: %v", kb.ErrRerank, err)
	}
	if resp.Results == nil {
		return nil, fmt.Errorf("%w: response missing results field", kb.ErrRerank)
	}

	reranked := make([]kb.SearchResult, 0, len(resp.Results))
	for _, entry := range resp.Results {
		if entry.Index < 0 || entry.Index >= len(candidates) {
			return nil, fmt.Errorf("%w: result index %d out of range for %d candidates", kb.ErrRerank, entry.Index, len(candidates))
		}
		result := candidates[entry.Index]
		result.Score = entry.RelevanceScore
		reranked = append(reranked, result)
	}

	r.logger.Debug("rerank complete",
		zap.Int("candidates", len(candidates)),
		zap.Int("returned", len(reranked)),
	)
	return reranked, nil
}

// Close is a no-op; the Bedrock client holds no connection state.
func (r *BedrockReranker) Close() error { return nil }

var _ Reranker = (*BedrockReranker)(nil)
