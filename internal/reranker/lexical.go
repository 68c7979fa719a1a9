package reranker

import (
	"context"
	"sort"
	"strings"

	"github.com/fyrsmithlabs/ragd/internal/kb"
	"go.uber.org/zap"
)

// LexicalReranker re-scores candidates by term overlap between the query and
// the chunk text, blended evenly with the first-stage score. It needs no
// external service, which makes it a usable fallback where Bedrock is not
// reachable, at a precision cost against a real cross-encoder.
type LexicalReranker struct {
	logger *zap.Logger
}

// NewLexicalReranker creates a lexical reranker.
func NewLexicalReranker(logger *zap.Logger) *LexicalReranker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LexicalReranker{logger: logger}
}

// Rerank blends the original score (50%) with query-term overlap (50%),
// sorts descending, and truncates to topN. Ties keep first-stage order.
func (r *LexicalReranker) Rerank(_ context.Context, query string, candidates []kb.SearchResult, topN int) ([]kb.SearchResult, error) {
	if len(candidates) == 0 {
		return nil, nil
	}
	if topN <= 0 || topN > len(candidates) {
		topN = len(candidates)
	}

	queryTokens := tokenize(query)

	scored := make([]kb.SearchResult, len(candidates))
	copy(scored, candidates)
	for i := range scored {
		overlap := termOverlap(queryTokens, tokenize(scored[i].Text))
		scored[i].Score = 0.5*scored[i].Score + 0.5*overlap
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	return scored[:topN], nil
}

// Close is a no-op.
func (r *LexicalReranker) Close() error { return nil }

// tokenize lowercases text and splits it into terms of three or more
// alphanumeric characters, dropping common English stopwords.
func tokenize(text string) []string {
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !isAlphanumeric(r)
	})

	filtered := tokens[:0]
	for _, token := range tokens {
		if len(token) > 2 && !stopwords[token] {
			filtered = append(filtered, token)
		}
	}
	return filtered
}

func isAlphanumeric(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9') || r == '_'
}

var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "but": true,
	"not": true, "you": true, "all": true, "can": true, "had": true,
	"was": true, "has": true, "have": true, "been": true, "does": true,
	"did": true, "will": true, "would": true, "could": true, "should": true,
	"this": true, "that": true, "these": true, "those": true, "with": true,
	"from": true, "what": true, "which": true, "when": true, "where": true,
	"who": true, "why": true, "how": true,
}

// termOverlap returns the fraction of distinct query terms found in the
// document tokens, in [0, 1].
func termOverlap(queryTokens, docTokens []string) float32 {
	if len(queryTokens) == 0 {
		return 0
	}

	docSet := make(map[string]bool, len(docTokens))
	for _, token := range docTokens {
		docSet[token] = true
	}

	matched := 0
	counted := make(map[string]bool, len(queryTokens))
	distinct := 0
	for _, token := range queryTokens {
		if counted[token] {
			continue
		}
		counted[token] = true
		distinct++
		if docSet[token] {
			matched++
		}
	}
	return float32(matched) / float32(distinct)
}

var _ Reranker = (*LexicalReranker)(nil)
