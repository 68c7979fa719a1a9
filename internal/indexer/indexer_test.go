package indexer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/fyrsmithlabs/ragd/internal/chunker"
	"github.com/fyrsmithlabs/ragd/internal/kb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeEmbedder struct {
	calls [][]string
	err   error
}

func (f *fakeEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	f.calls = append(f.calls, texts)
	if f.err != nil {
		return nil, f.err
	}
	vectors := make([][]float32, len(texts))
	for i := range vectors {
		vectors[i] = []float32{float32(i), 0.5}
	}
	return vectors, nil
}

type shortEmbedder struct{}

func (shortEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	return make([][]float32, len(texts)-1), nil
}

type fakeStore struct {
	inserted  []kb.Chunk
	insertErr error
	deleted   [][2]int64
	deleteErr error
}

func (f *fakeStore) InsertChunks(_ context.Context, tenantID int64, chunks []kb.Chunk) (int, error) {
	if f.insertErr != nil {
		return 0, f.insertErr
	}
	f.inserted = append(f.inserted, chunks...)
	return len(chunks), nil
}

func (f *fakeStore) DeleteByDocument(_ context.Context, tenantID, documentID int64) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, [2]int64{tenantID, documentID})
	return nil
}

// sevenParagraphs yields a document the splitter breaks into exactly seven
// chunks at size 24 with overlap 4: each paragraph is 20 characters and no
// overlap tail fits alongside a following paragraph.
func sevenParagraphs() string {
	letters := []string{"a", "b", "c", "d", "e", "f", "g"}
	paragraphs := make([]string, len(letters))
	for i, l := range letters {
		paragraphs[i] = strings.Repeat(l, 20)
	}
	return strings.Join(paragraphs, "\n\n")
}

func newTestService(t *testing.T, embedder Embedder, store Store) *Service {
	t.Helper()
	splitter, err := chunker.New(24, 4)
	require.NoError(t, err)
	svc, err := NewService(splitter, embedder, store, zap.NewNop())
	require.NoError(t, err)
	return svc
}

func TestService_ProcessDocument(t *testing.T) {
	t.Run("splits, embeds, and stores", func(t *testing.T) {
		embedder := &fakeEmbedder{}
		store := &fakeStore{}
		svc := newTestService(t, embedder, store)

		count, err := svc.ProcessDocument(context.Background(), 7, 42, "Guide", sevenParagraphs())
		require.NoError(t, err)
		assert.Equal(t, 7, count)

		// One embedding batch for the whole document.
		require.Len(t, embedder.calls, 1)
		assert.Len(t, embedder.calls[0], 7)

		require.Len(t, store.inserted, 7)
		for i, chunk := range store.inserted {
			assert.Equal(t, int64(42), chunk.DocumentID)
			assert.Equal(t, i, chunk.ChunkIndex)
			assert.Equal(t, "Guide", chunk.Title)
			assert.NotEmpty(t, chunk.Text)
			assert.Equal(t, []float32{float32(i), 0.5}, chunk.Vector)
		}
	})

	t.Run("empty content indexes nothing", func(t *testing.T) {
		embedder := &fakeEmbedder{}
		store := &fakeStore{}
		svc := newTestService(t, embedder, store)

		count, err := svc.ProcessDocument(context.Background(), 7, 42, "Guide", "")
		require.NoError(t, err)
		assert.Zero(t, count)
		assert.Empty(t, embedder.calls)
		assert.Empty(t, store.inserted)
	})

	t.Run("embedding failure keeps its kind and skips the store", func(t *testing.T) {
		embedder := &fakeEmbedder{err: fmt.Errorf("%w: model overloaded", kb.ErrEmbedding)}
		store := &fakeStore{}
		svc := newTestService(t, embedder, store)

		_, err := svc.ProcessDocument(context.Background(), 7, 42, "Guide", sevenParagraphs())
		require.Error(t, err)
		assert.ErrorIs(t, err, kb.ErrEmbedding)
		var procErr *kb.ProcessingError
		assert.False(t, errors.As(err, &procErr))
		assert.Empty(t, store.inserted)
	})

	t.Run("store failure keeps its kind", func(t *testing.T) {
		embedder := &fakeEmbedder{}
		store := &fakeStore{insertErr: fmt.Errorf("%w: batch rejected", kb.ErrIndex)}
		svc := newTestService(t, embedder, store)

		_, err := svc.ProcessDocument(context.Background(), 7, 42, "Guide", sevenParagraphs())
		assert.ErrorIs(t, err, kb.ErrIndex)
	})

	t.Run("vector count mismatch is a processing error", func(t *testing.T) {
		store := &fakeStore{}
		svc := newTestService(t, shortEmbedder{}, store)

		_, err := svc.ProcessDocument(context.Background(), 7, 42, "Guide", sevenParagraphs())
		require.Error(t, err)

		var procErr *kb.ProcessingError
		require.ErrorAs(t, err, &procErr)
		assert.Equal(t, int64(7), procErr.TenantID)
		assert.Equal(t, int64(42), procErr.DocumentID)
		assert.Empty(t, store.inserted)
	})

	t.Run("unknown store failure becomes a processing error", func(t *testing.T) {
		embedder := &fakeEmbedder{}
		store := &fakeStore{insertErr: errors.New("connection reset")}
		svc := newTestService(t, embedder, store)

		_, err := svc.ProcessDocument(context.Background(), 7, 42, "Guide", sevenParagraphs())
		var procErr *kb.ProcessingError
		require.ErrorAs(t, err, &procErr)
		assert.Equal(t, int64(42), procErr.DocumentID)
	})
}

func TestService_DeleteDocument(t *testing.T) {
	t.Run("delegates to the store", func(t *testing.T) {
		store := &fakeStore{}
		svc := newTestService(t, &fakeEmbedder{}, store)

		require.NoError(t, svc.DeleteDocument(context.Background(), 7, 42))
		assert.Equal(t, [][2]int64{{7, 42}}, store.deleted)
	})

	t.Run("store errors propagate unchanged", func(t *testing.T) {
		storeErr := errors.New("timeout")
		store := &fakeStore{deleteErr: storeErr}
		svc := newTestService(t, &fakeEmbedder{}, store)

		err := svc.DeleteDocument(context.Background(), 7, 42)
		assert.Same(t, storeErr, err)
		var procErr *kb.ProcessingError
		assert.False(t, errors.As(err, &procErr))
	})
}
