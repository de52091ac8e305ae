package search

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragstor/internal/blocks"
	"ragstor/internal/index"
)

type fakeEmbedder struct {
	vectors map[string][]float32
	err     error
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.vectors[text], nil
}

type fakeMeta struct {
	chunks map[string]map[int]blocks.Chunk // userID -> chunkID -> chunk
	err    error
}

func (f *fakeMeta) GetByIDs(ctx context.Context, userID string, ids []int) (map[int]blocks.Chunk, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[int]blocks.Chunk)
	for _, id := range ids {
		if c, ok := f.chunks[userID][id]; ok {
			out[id] = c
		}
	}
	return out, nil
}

func (f *fakeMeta) CountForUser(ctx context.Context, userID string) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	return len(f.chunks[userID]), nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// fixture builds an index for alice with three chunks and the matching
// metadata rows.
func fixture(t *testing.T) (*index.Store, *fakeMeta, *fakeEmbedder) {
	t.Helper()
	store := index.NewStore(t.TempDir())

	idx := index.NewIndex()
	idx.Add(0, index.Normalize([]float32{1, 0, 0}))
	idx.Add(1, index.Normalize([]float32{0, 1, 0}))
	idx.Add(2, index.Normalize([]float32{0.9, 0.1, 0}))
	require.NoError(t, store.Save("alice", idx))

	meta := &fakeMeta{chunks: map[string]map[int]blocks.Chunk{
		"alice": {
			0: {ChunkID: 0, Filename: "pets.txt", Type: "text", Page: 0, Text: "all about cats", UserID: "alice"},
			1: {ChunkID: 1, Filename: "pets.txt", Type: "text", Page: 1, Text: "all about dogs", UserID: "alice"},
			2: {ChunkID: 2, Filename: "pets.txt", Type: "title", Page: 2, Text: "kitten care", UserID: "alice"},
		},
	}}
	embedder := &fakeEmbedder{vectors: map[string][]float32{
		"cats": {1, 0, 0},
		"dogs": {0, 1, 0},
	}}
	return store, meta, embedder
}

func TestSearchReturnsNearestWithMetadata(t *testing.T) {
	store, meta, embedder := fixture(t)
	s := NewSearcher(store, meta, embedder, testLogger())

	results, err := s.Search(context.Background(), "alice", "cats", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, 0, results[0].ID)
	assert.Equal(t, "all about cats", results[0].Text)
	assert.Equal(t, "pets.txt", results[0].Metadata.Filename)
	assert.Equal(t, "alice", results[0].Metadata.UserID)

	assert.Equal(t, 2, results[1].ID)
	assert.Equal(t, "title", results[1].Metadata.Type)
	assert.LessOrEqual(t, results[0].Score, results[1].Score)
}

func TestSearchUnknownUser(t *testing.T) {
	store, meta, embedder := fixture(t)
	s := NewSearcher(store, meta, embedder, testLogger())

	_, err := s.Search(context.Background(), "mallory", "cats", 3)
	assert.ErrorIs(t, err, index.ErrIndexNotFound)
}

func TestSearchEmptyIndex(t *testing.T) {
	store := index.NewStore(t.TempDir())
	require.NoError(t, store.Save("newbie", index.NewIndex()))

	s := NewSearcher(store, &fakeMeta{}, &fakeEmbedder{}, testLogger())
	results, err := s.Search(context.Background(), "newbie", "anything", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchMetadataCountMismatch(t *testing.T) {
	store, meta, embedder := fixture(t)
	delete(meta.chunks["alice"], 2)

	s := NewSearcher(store, meta, embedder, testLogger())
	_, err := s.Search(context.Background(), "alice", "cats", 2)
	assert.ErrorIs(t, err, index.ErrIndexInconsistent)
}

func TestSearchEmbedError(t *testing.T) {
	store, meta, _ := fixture(t)
	s := NewSearcher(store, meta, &fakeEmbedder{err: errors.New("quota")}, testLogger())

	_, err := s.Search(context.Background(), "alice", "cats", 2)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, index.ErrIndexInconsistent)
}

func TestSearchDoesNotLeakAcrossUsers(t *testing.T) {
	store, meta, embedder := fixture(t)

	// Bob has his own single-chunk index over a different corpus.
	bobIdx := index.NewIndex()
	bobIdx.Add(0, index.Normalize([]float32{0, 0, 1}))
	require.NoError(t, store.Save("bob", bobIdx))
	meta.chunks["bob"] = map[int]blocks.Chunk{
		0: {ChunkID: 0, Filename: "secret.txt", Type: "text", Page: 0, Text: "bob's secret", UserID: "bob"},
	}

	results, err := NewSearcher(store, meta, embedder, testLogger()).
		Search(context.Background(), "bob", "cats", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "bob's secret", results[0].Text)
	assert.Equal(t, "bob", results[0].Metadata.UserID)
}
