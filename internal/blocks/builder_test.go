package blocks_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragstor/internal/blocks"
)

func TestRemoveNearDuplicates(t *testing.T) {
	in := []blocks.Block{
		{Text: "Hello world"},
		{Text: "hello   WORLD"}, // same after normalization
		{Text: "Something else"},
		{Text: "Hello world"}, // still inside the window
	}
	out := blocks.RemoveNearDuplicates(in, 10)
	require.Len(t, out, 2)
	assert.Equal(t, "Hello world", out[0].Text)
	assert.Equal(t, "Something else", out[1].Text)
}

func TestRemoveNearDuplicates_WindowExpires(t *testing.T) {
	in := []blocks.Block{
		{Text: "repeated line"},
		{Text: "filler one"},
		{Text: "filler two"},
		{Text: "repeated line"}, // window of 2: the first occurrence has slid out
	}
	out := blocks.RemoveNearDuplicates(in, 2)
	assert.Len(t, out, 4)
}

func TestMergeSmallBlocks_MergesFragmentsOnSamePage(t *testing.T) {
	big := strings.Repeat("word ", 25)
	in := []blocks.Block{
		{Text: "Tiny fragment", Page: 0},
		{Text: big, Page: 0},
	}
	out := blocks.MergeSmallBlocks(in, 20)
	require.Len(t, out, 1)
	assert.True(t, strings.HasPrefix(out[0].Text, "Tiny fragment "))
}

func TestMergeSmallBlocks_PageBoundaryFlushes(t *testing.T) {
	big := strings.Repeat("word ", 25)
	in := []blocks.Block{
		{Text: "Tiny fragment", Page: 0},
		{Text: big, Page: 1},
	}
	out := blocks.MergeSmallBlocks(in, 20)
	require.Len(t, out, 2)
	assert.Equal(t, "Tiny fragment", out[0].Text)
	assert.Equal(t, 0, out[0].Page)
	assert.Equal(t, 1, out[1].Page)
}

func TestMergeSmallBlocks_TrailingBufferEmitted(t *testing.T) {
	in := []blocks.Block{
		{Text: "lonely tail", Page: 3},
	}
	out := blocks.MergeSmallBlocks(in, 20)
	require.Len(t, out, 1)
	assert.Equal(t, "lonely tail", out[0].Text)
}

func TestMergeSmallBlocks_FullSizeBlocksPassThrough(t *testing.T) {
	big := strings.Repeat("word ", 25)
	in := []blocks.Block{
		{Text: big, Page: 0},
		{Text: big, Page: 0},
	}
	out := blocks.MergeSmallBlocks(in, 20)
	assert.Len(t, out, 2)
}

func TestBuildChunks_SequentialIDsAndInheritance(t *testing.T) {
	sp := blocks.NewSplitter(500, 50)
	in := []blocks.Block{
		{Text: "Intro text here.", Type: "title", Page: 0, Filename: "a.txt", UserID: "u1"},
		{Text: strings.Repeat("body sentence here. ", 60), Type: "text", Page: 1, Filename: "a.txt", UserID: "u1"},
	}

	chunks := blocks.BuildChunks(in, sp)
	require.Greater(t, len(chunks), 2)

	for i, c := range chunks {
		assert.Equal(t, i, c.ChunkID)
		assert.Equal(t, "a.txt", c.Filename)
		assert.Equal(t, "u1", c.UserID)
	}
	assert.Equal(t, "title", chunks[0].Type)
	assert.Equal(t, 0, chunks[0].Page)
	assert.Equal(t, 1, chunks[1].Page)
}

func TestBuildChunks_DefaultsEmptyType(t *testing.T) {
	sp := blocks.NewSplitter(500, 50)
	chunks := blocks.BuildChunks([]blocks.Block{{Text: "hello", Filename: "f", UserID: "u"}}, sp)
	require.Len(t, chunks, 1)
	assert.Equal(t, "text", chunks[0].Type)
}
