// Package answer turns retrieved chunks into a grounded natural language
// answer via an OpenAI-compatible chat completion API.
package answer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/ragd/internal/kb"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ErrInvalidConfig indicates invalid generator configuration.
var ErrInvalidConfig = errors.New("invalid configuration")

// Default generation settings.
const (
	defaultModel       = "gpt-4o-mini"
	defaultTemperature = 0.1
	defaultMaxTokens   = 1024

	// 50 requests per minute with small bursts.
	defaultRateLimit = 50.0 / 60.0
	defaultBurst     = 5
)

// systemPrompt constrains the model to the retrieved context.
const systemPrompt = "Answer based ONLY on the provided context. Cite source titles."

// Config configures the answer generator.
type Config struct {
	// BaseURL is the OpenAI-compatible endpoint. Empty uses the OpenAI default.
	BaseURL string

	// Model is the chat model name.
	Model string

	// APIKey authenticates against the endpoint. May be empty for local
	// gateways that do not check credentials.
	APIKey string
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("%w: model is required", ErrInvalidConfig)
	}
	return nil
}

// chatModel is the slice of the langchaingo LLM API the generator uses.
type chatModel interface {
	GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error)
}

// Generator produces answers from a query plus its retrieved chunks.
type Generator struct {
	llm     chatModel
	model   string
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewGenerator creates an answer generator.
func NewGenerator(cfg Config, logger *zap.Logger) (*Generator, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts := []openai.Option{openai.WithModel(cfg.Model)}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	if cfg.APIKey != "" {
		opts = append(opts, openai.WithToken(cfg.APIKey))
	} else {
		opts = append(opts, openai.WithToken("placeholder"))
	}

	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating chat client: %w", err)
	}

	return newGeneratorWith(llm, cfg.Model, logger), nil
}

// newGeneratorWith wires an existing model. Used by tests.
func newGeneratorWith(llm chatModel, model string, logger *zap.Logger) *Generator {
	return &Generator{
		llm:     llm,
		model:   model,
		limiter: rate.NewLimiter(rate.Limit(defaultRateLimit), defaultBurst),
		logger:  logger,
	}
}

// Generate answers the query from the given chunks. It returns an error on
// empty context or a failed completion; the caller decides whether that is
// fatal for the request.
func (g *Generator) Generate(ctx context.Context, query string, results []kb.SearchResult) (string, error) {
	if len(results) == 0 {
		return "", fmt.Errorf("no context to answer from")
	}

	if err := g.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}

	prompt := fmt.Sprintf("Context:\n%s\n\nQuestion: %s", buildContext(results), query)

	g.logger.Debug("generating answer",
		zap.String("model", g.model),
		zap.Int("context_chunks", len(results)),
	)

	resp, err := g.llm.GenerateContent(ctx,
		[]llms.MessageContent{
			llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
			llms.TextParts(llms.ChatMessageTypeHuman, prompt),
		},
		llms.WithTemperature(defaultTemperature),
		llms.WithMaxTokens(defaultMaxTokens),
	)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}

	return strings.TrimSpace(resp.Choices[0].Content), nil
}

// buildContext renders chunks as source-attributed blocks so the model can
// cite titles.
func buildContext(results []kb.SearchResult) string {
	blocks := make([]string, len(results))
	for i, r := range results {
		blocks[i] = fmt.Sprintf("[Source: %s]\n%s", r.Title, r.Text)
	}
	return strings.Join(blocks, "\n\n")
}
