package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"ragstor/internal/blocks"
	"ragstor/internal/ingest"
)

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// MetadataRepo is the chunk metadata store the index is kept in sync with.
type MetadataRepo interface {
	ReplaceForUser(ctx context.Context, userID string, chunks []blocks.Chunk) error
}

// Indexer builds a user's vector index from the chunks artifact. Every run
// is a wholesale rebuild: embed all chunks, replace the metadata rows, write
// the index pair.
type Indexer struct {
	store     *Store
	meta      MetadataRepo
	embedder  Embedder
	chunksDir string
	logger    *slog.Logger
}

func NewIndexer(store *Store, meta MetadataRepo, embedder Embedder, chunksDir string, logger *slog.Logger) *Indexer {
	return &Indexer{store: store, meta: meta, embedder: embedder, chunksDir: chunksDir, logger: logger}
}

// Run rebuilds the index for one user. A missing chunks artifact indexes as
// empty, so a user with no documents still gets a searchable (empty) index.
func (ix *Indexer) Run(ctx context.Context, userID string) error {
	chunks, err := ingest.ReadChunks(ix.chunksDir, userID)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return err
		}
		chunks = nil
	}

	idx := NewIndex()
	for _, c := range chunks {
		vec, err := ix.embedder.Embed(ctx, c.Text)
		if err != nil {
			return fmt.Errorf("embed chunk %d: %w", c.ChunkID, err)
		}
		idx.Add(c.ChunkID, Normalize(vec))
	}

	if err := ix.meta.ReplaceForUser(ctx, userID, chunks); err != nil {
		return fmt.Errorf("replace chunk metadata: %w", err)
	}
	if err := ix.store.Save(userID, idx); err != nil {
		return err
	}

	ix.logger.InfoContext(ctx, "index rebuilt",
		slog.String("user_id", userID),
		slog.Int("vectors", idx.Len()))
	return nil
}
