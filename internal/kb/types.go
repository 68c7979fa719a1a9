package kb

// Chunk is a bounded segment of a document's text, the unit of embedding and
// retrieval. Within one document the ChunkIndex values form a contiguous
// range starting at 0, ordered by position in the source text.
type Chunk struct {
	// DocumentID is the owning document's identifier.
	DocumentID int64

	// ChunkIndex is the 0-based position of this chunk within the document.
	ChunkIndex int

	// Title is the owning document's title, denormalized for citations.
	Title string

	// Text is the chunk content.
	Text string

	// Vector is the embedding of Text. Its length must match the store's
	// configured embedding dimension.
	Vector []float32
}

// SearchResult is a transient projection of a chunk plus a relevance score.
// The score scale depends on the stage that produced it (hybrid fusion score
// or rerank relevance); callers must not assume a fixed range across stages.
type SearchResult struct {
	DocumentID int64   `json:"doc_id"`
	ChunkIndex int     `json:"chunk_id"`
	Title      string  `json:"title"`
	Text       string  `json:"text"`
	Score      float32 `json:"score"`
}
