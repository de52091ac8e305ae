package index

import (
	"encoding/json"
	"math"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	got := Normalize([]float32{3, 4})
	assert.InDelta(t, 0.6, got[0], 1e-6)
	assert.InDelta(t, 0.8, got[1], 1e-6)

	var sum float64
	for _, v := range got {
		sum += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-6)
}

func TestNormalizeZeroVector(t *testing.T) {
	got := Normalize([]float32{0, 0, 0})
	for _, v := range got {
		assert.False(t, math.IsNaN(float64(v)))
		assert.False(t, math.IsInf(float64(v), 0))
		assert.Zero(t, v)
	}
}

func buildTestIndex() *Index {
	idx := NewIndex()
	// Chunk ids deliberately not equal to labels.
	idx.Add(10, Normalize([]float32{1, 0, 0}))
	idx.Add(20, Normalize([]float32{0, 1, 0}))
	idx.Add(30, Normalize([]float32{0.9, 0.1, 0}))
	return idx
}

func TestIndexSearchClosestFirst(t *testing.T) {
	idx := buildTestIndex()
	query := Normalize([]float32{1, 0, 0})

	matches := idx.Search(query, 2)
	require.Len(t, matches, 2)
	assert.Equal(t, 10, matches[0].ChunkID)
	assert.Equal(t, 30, matches[1].ChunkID)
	assert.LessOrEqual(t, matches[0].Distance, matches[1].Distance)
}

func TestIndexSearchEmpty(t *testing.T) {
	idx := NewIndex()
	assert.Empty(t, idx.Search(Normalize([]float32{1, 0, 0}), 5))
	assert.Zero(t, idx.Len())
}

func TestIndexSearchZeroTopK(t *testing.T) {
	idx := buildTestIndex()
	assert.Empty(t, idx.Search(Normalize([]float32{1, 0, 0}), 0))
}

func TestStoreSaveLoadRoundTrip(t *testing.T) {
	store := NewStore(t.TempDir())
	require.NoError(t, store.Save("alice", buildTestIndex()))

	loaded, err := store.Load("alice")
	require.NoError(t, err)
	assert.Equal(t, 3, loaded.Len())

	matches := loaded.Search(Normalize([]float32{0, 1, 0}), 1)
	require.Len(t, matches, 1)
	assert.Equal(t, 20, matches[0].ChunkID)
}

func TestStoreSaveLoadEmptyIndex(t *testing.T) {
	store := NewStore(t.TempDir())
	require.NoError(t, store.Save("alice", NewIndex()))

	loaded, err := store.Load("alice")
	require.NoError(t, err)
	assert.Zero(t, loaded.Len())
	assert.Empty(t, loaded.Search(Normalize([]float32{1, 0, 0}), 3))
}

func TestStoreLoadMissing(t *testing.T) {
	store := NewStore(t.TempDir())
	_, err := store.Load("nobody")
	assert.ErrorIs(t, err, ErrIndexNotFound)
}

func TestStoreLoadInconsistent(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)
	require.NoError(t, store.Save("alice", buildTestIndex()))

	// Drop one mapping entry behind the store's back.
	raw, err := os.ReadFile(store.mappingPath("alice"))
	require.NoError(t, err)
	mapping := make(map[int]int)
	require.NoError(t, json.Unmarshal(raw, &mapping))
	delete(mapping, 0)
	raw, err = json.Marshal(mapping)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(store.mappingPath("alice"), raw, 0o644))

	_, err = store.Load("alice")
	assert.ErrorIs(t, err, ErrIndexInconsistent)
}

func TestStoreSaveOverwrites(t *testing.T) {
	store := NewStore(t.TempDir())
	require.NoError(t, store.Save("alice", buildTestIndex()))

	small := NewIndex()
	small.Add(99, Normalize([]float32{0, 0, 1}))
	require.NoError(t, store.Save("alice", small))

	loaded, err := store.Load("alice")
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.Len())
	matches := loaded.Search(Normalize([]float32{0, 0, 1}), 1)
	require.Len(t, matches, 1)
	assert.Equal(t, 99, matches[0].ChunkID)
}
