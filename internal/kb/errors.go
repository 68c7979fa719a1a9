package kb

import (
	"errors"
	"fmt"
)

// Error kinds for the three external-service wrappers. Failures inside a
// wrapper are normalized onto its kind with fmt.Errorf("%w: ...") so that
// callers branch with errors.Is rather than on upstream-specific types.
var (
	// ErrEmbedding indicates the embedding provider failed (bad credential,
	// rate limit, transport failure, malformed response).
	ErrEmbedding = errors.New("embedding service failed")

	// ErrIndex indicates the vector/keyword index engine failed (collection
	// creation, insert, search, or delete).
	ErrIndex = errors.New("index store failed")

	// ErrRerank indicates the cross-encoder rerank provider failed, or its
	// client could not be initialized.
	ErrRerank = errors.New("rerank service failed")
)

// ProcessingError wraps an unexpected failure during document indexing with
// enough context to diagnose without reading logs. Failures that are already
// a recognized kind are never wrapped into a ProcessingError.
type ProcessingError struct {
	TenantID   int64
	DocumentID int64
	Err        error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("processing document %d for tenant %d: %v", e.DocumentID, e.TenantID, e.Err)
}

func (e *ProcessingError) Unwrap() error {
	return e.Err
}

// IsServiceError reports whether err belongs to the recognized error
// taxonomy. It is the catch-all check boundaries use to distinguish known
// upstream failures from internal bugs.
func IsServiceError(err error) bool {
	if errors.Is(err, ErrEmbedding) || errors.Is(err, ErrIndex) || errors.Is(err, ErrRerank) {
		return true
	}
	var pe *ProcessingError
	return errors.As(err, &pe)
}
