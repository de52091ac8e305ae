package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"ragstor/internal/blocks"
	"ragstor/internal/extract"
	"ragstor/internal/layout"
)

const (
	ModeLayout = "layout"
	ModeText   = "text"

	dedupeWindow  = 10
	mergeMinWords = 20
)

// ErrUnknownMode is returned for extraction modes that are neither layout
// nor text.
var ErrUnknownMode = errors.New("unknown ingestion mode")

// Loader reads a whole document as plain text, the cheap alternative to the
// layout pipeline for born-digital files.
type Loader interface {
	Load(path string) (string, error)
}

type Options struct {
	DataDir   string
	ChunksDir string
	// Mode selects the extraction path: ModeLayout runs the detection model
	// and OCR, ModeText reads documents as flat text.
	Mode         string
	DocWorkers   int
	JobTimeout   time.Duration
	Extract      extract.Options
	Sanitize     blocks.SanitizeOptions
	ChunkSize    int
	ChunkOverlap int
}

// Ingestor runs the full document pipeline for one user: discovery,
// extraction, corpus sanitization, chunking and the chunks artifact on disk.
type Ingestor struct {
	model    layout.Model
	ocr      extract.OCR
	loader   Loader
	opts     Options
	splitter *blocks.Splitter
	logger   *slog.Logger
}

func New(model layout.Model, ocr extract.OCR, loader Loader, logger *slog.Logger, opts Options) *Ingestor {
	if opts.Mode == "" {
		opts.Mode = ModeLayout
	}
	if opts.DocWorkers <= 0 {
		opts.DocWorkers = 9
	}
	return &Ingestor{
		model:    model,
		ocr:      ocr,
		loader:   loader,
		opts:     opts,
		splitter: blocks.NewSplitter(opts.ChunkSize, opts.ChunkOverlap),
		logger:   logger,
	}
}

// ChunksPath is the per-user chunks artifact location.
func ChunksPath(dir, userID string) string {
	return filepath.Join(dir, fmt.Sprintf("chunks_%s.json", userID))
}

// ReadChunks loads a previously written chunks artifact.
func ReadChunks(dir, userID string) ([]blocks.Chunk, error) {
	raw, err := os.ReadFile(ChunksPath(dir, userID))
	if err != nil {
		return nil, err
	}
	var chunks []blocks.Chunk
	if err := json.Unmarshal(raw, &chunks); err != nil {
		return nil, fmt.Errorf("decode chunks artifact: %w", err)
	}
	return chunks, nil
}

// Run processes every supported document under <DataDir>/<userID> and writes
// chunks_<userID>.json. A document that fails to extract is logged and
// skipped; the run aborts only when the layout server cannot start. The
// returned chunks match the artifact content.
func (ing *Ingestor) Run(ctx context.Context, userID string) ([]blocks.Chunk, error) {
	return ing.RunMode(ctx, userID, ing.opts.Mode)
}

// RunMode is Run with an explicit extraction mode. An empty mode falls back
// to the configured default; anything else must name a known mode.
func (ing *Ingestor) RunMode(ctx context.Context, userID, mode string) ([]blocks.Chunk, error) {
	if mode == "" {
		mode = ing.opts.Mode
	}
	if mode != ModeLayout && mode != ModeText {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}

	paths, err := ing.discover(userID)
	if err != nil {
		return nil, err
	}

	var corpus []blocks.Block
	if mode == ModeText {
		corpus = ing.extractTextMode(ctx, userID, paths)
	} else {
		corpus, err = ing.extractLayoutMode(ctx, userID, paths)
		if err != nil {
			return nil, err
		}
	}

	corpus = blocks.RemoveHeadersFooters(corpus, ing.opts.Sanitize)
	corpus = blocks.RemoveNearDuplicates(corpus, dedupeWindow)
	corpus = blocks.MergeSmallBlocks(corpus, mergeMinWords)
	chunks := blocks.BuildChunks(corpus, ing.splitter)

	if err := ing.writeArtifact(userID, chunks); err != nil {
		return nil, err
	}
	ing.logger.InfoContext(ctx, "ingestion run complete",
		slog.String("user_id", userID),
		slog.Int("documents", len(paths)),
		slog.Int("chunks", len(chunks)))
	return chunks, nil
}

// discover walks the user's document root recursively and collects every
// supported file, sorted by path so runs are deterministic. A missing
// directory is an empty corpus, not an error: a user who never uploaded
// anything still gets an artifact.
func (ing *Ingestor) discover(userID string) ([]string, error) {
	dir := filepath.Join(ing.opts.DataDir, userID)

	var paths []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(d.Name())) {
		case ".pdf", ".docx", ".txt":
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("walk data dir: %w", err)
	}
	sort.Strings(paths)
	return paths, nil
}

// extractLayoutMode owns the layout server for the duration of the run. One
// serving goroutine, DocWorkers concurrent documents submitting to it.
func (ing *Ingestor) extractLayoutMode(ctx context.Context, userID string, paths []string) ([]blocks.Block, error) {
	server := layout.NewServer(ing.model, ing.opts.JobTimeout)
	if err := server.Start(ctx); err != nil {
		return nil, err
	}
	defer server.Close()

	extractor := extract.New(server, ing.ocr, ing.opts.Extract)

	perDoc := make([][]blocks.Block, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ing.opts.DocWorkers)
	for i, path := range paths {
		g.Go(func() error {
			bs, err := extractor.Extract(gctx, path)
			if err != nil {
				ing.logger.WarnContext(gctx, "document skipped",
					slog.String("user_id", userID),
					slog.String("filename", filepath.Base(path)),
					slog.Any("error", err))
				return nil
			}
			name := filepath.Base(path)
			for j := range bs {
				bs[j].Filename = name
				bs[j].UserID = userID
			}
			perDoc[i] = bs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var corpus []blocks.Block
	for _, bs := range perDoc {
		corpus = append(corpus, bs...)
	}
	return corpus, nil
}

// extractTextMode loads each document as one flat text block. No layout
// server involved, so failures are purely per-file.
func (ing *Ingestor) extractTextMode(ctx context.Context, userID string, paths []string) []blocks.Block {
	var corpus []blocks.Block
	for _, path := range paths {
		text, err := ing.loader.Load(path)
		if err != nil {
			ing.logger.WarnContext(ctx, "document skipped",
				slog.String("user_id", userID),
				slog.String("filename", filepath.Base(path)),
				slog.Any("error", err))
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		corpus = append(corpus, blocks.Block{
			Type:     "text",
			Text:     text,
			Page:     0,
			Y:        0,
			Filename: filepath.Base(path),
			UserID:   userID,
		})
	}
	return corpus
}

// writeArtifact persists the chunk list atomically: readers never observe a
// half-written file.
func (ing *Ingestor) writeArtifact(userID string, chunks []blocks.Chunk) error {
	if chunks == nil {
		chunks = []blocks.Chunk{}
	}
	data, err := json.MarshalIndent(chunks, "", "  ")
	if err != nil {
		return fmt.Errorf("encode chunks artifact: %w", err)
	}

	if err := os.MkdirAll(ing.opts.ChunksDir, 0o755); err != nil {
		return fmt.Errorf("create chunks dir: %w", err)
	}
	final := ChunksPath(ing.opts.ChunksDir, userID)
	tmp, err := os.CreateTemp(ing.opts.ChunksDir, "chunks_*.tmp")
	if err != nil {
		return fmt.Errorf("create temp artifact: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write temp artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp artifact: %w", err)
	}
	if err := os.Rename(tmp.Name(), final); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace chunks artifact: %w", err)
	}
	return nil
}
