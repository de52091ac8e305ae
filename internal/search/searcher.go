package search

import (
	"context"
	"fmt"
	"log/slog"

	"ragstor/internal/blocks"
	"ragstor/internal/index"
)

// MetadataRepo resolves chunk ids to their stored metadata.
type MetadataRepo interface {
	GetByIDs(ctx context.Context, userID string, ids []int) (map[int]blocks.Chunk, error)
	CountForUser(ctx context.Context, userID string) (int, error)
}

// Metadata identifies where a result came from.
type Metadata struct {
	UserID   string `json:"user_id"`
	Filename string `json:"filename"`
	ChunkID  int    `json:"chunk_id"`
	Page     int    `json:"page"`
	Type     string `json:"type"`
}

// Result is one search hit. Score is cosine distance, smaller is closer;
// results come back ascending.
type Result struct {
	ID       int      `json:"id"`
	Text     string   `json:"text"`
	Score    float32  `json:"score"`
	Metadata Metadata `json:"metadata"`
}

// Searcher answers semantic queries against one user's index.
type Searcher struct {
	store    *index.Store
	meta     MetadataRepo
	embedder index.Embedder
	logger   *slog.Logger
}

func NewSearcher(store *index.Store, meta MetadataRepo, embedder index.Embedder, logger *slog.Logger) *Searcher {
	return &Searcher{store: store, meta: meta, embedder: embedder, logger: logger}
}

// Search embeds the query and returns the topK nearest chunks with their
// metadata joined in. The index and the metadata store must agree on the
// user's chunk set; any disagreement fails the whole query rather than
// returning partially resolvable results.
func (s *Searcher) Search(ctx context.Context, userID, query string, topK int) ([]Result, error) {
	idx, err := s.store.Load(userID)
	if err != nil {
		return nil, err
	}
	if idx.Len() == 0 {
		return []Result{}, nil
	}

	count, err := s.meta.CountForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("count chunk metadata: %w", err)
	}
	if count != idx.Len() {
		return nil, fmt.Errorf("%w: index has %d vectors, metadata has %d rows",
			index.ErrIndexInconsistent, idx.Len(), count)
	}

	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	matches := idx.Search(index.Normalize(vec), topK)
	ids := make([]int, len(matches))
	for i, m := range matches {
		ids[i] = m.ChunkID
	}

	metas, err := s.meta.GetByIDs(ctx, userID, ids)
	if err != nil {
		return nil, fmt.Errorf("fetch chunk metadata: %w", err)
	}

	results := make([]Result, 0, len(matches))
	for _, m := range matches {
		c, ok := metas[m.ChunkID]
		if !ok {
			return nil, fmt.Errorf("%w: chunk %d missing from metadata store",
				index.ErrIndexInconsistent, m.ChunkID)
		}
		results = append(results, Result{
			ID:    c.ChunkID,
			Text:  c.Text,
			Score: m.Distance,
			Metadata: Metadata{
				UserID:   userID,
				Filename: c.Filename,
				ChunkID:  c.ChunkID,
				Page:     c.Page,
				Type:     c.Type,
			},
		})
	}

	s.logger.DebugContext(ctx, "search complete",
		slog.String("user_id", userID),
		slog.Int("top_k", topK),
		slog.Int("results", len(results)))
	return results, nil
}
