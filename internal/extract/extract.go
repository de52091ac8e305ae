package extract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"ragstor/internal/blocks"
	"ragstor/internal/layout"
)

// ErrUnsupportedFormat is returned for file extensions the extractor cannot
// parse. The document is skipped; the ingestion run continues.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// Detector is the shared layout server handle used for raster pages.
type Detector interface {
	Submit(ctx context.Context, pageImage []byte, lang string) ([]layout.Detection, error)
}

// OCR extracts text from one cropped region image.
type OCR interface {
	Text(ctx context.Context, image []byte, lang string) (string, error)
}

type Options struct {
	// ScoreThresh discards low-confidence layout detections.
	ScoreThresh float64
	// DPI used when rastering PDF pages.
	DPI int
	// Lang is the OCR language code (eng, fra, ...).
	Lang string
	// PageWorkers bounds OCR parallelism within one document. Kept small:
	// every page job contends for the same model server.
	PageWorkers int
}

func DefaultOptions() Options {
	return Options{ScoreThresh: 0.5, DPI: 150, Lang: "eng", PageWorkers: 2}
}

// Extractor turns one document into an ordered sequence of blocks.
type Extractor struct {
	detector Detector
	ocr      OCR
	opts     Options
}

func New(detector Detector, ocr OCR, opts Options) *Extractor {
	if opts.PageWorkers <= 0 {
		opts.PageWorkers = 2
	}
	if opts.DPI <= 0 {
		opts.DPI = 150
	}
	return &Extractor{detector: detector, ocr: ocr, opts: opts}
}

// Extract dispatches on the file extension. Blocks come back in reading
// order: (page, y) ascending.
func (e *Extractor) Extract(ctx context.Context, path string) ([]blocks.Block, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return e.extractPDF(ctx, path)
	case ".docx":
		return extractDocx(path)
	case ".txt":
		return extractTxt(path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// extractImagePages runs one layout+OCR job per page image on a bounded pool
// and restores reading order afterwards. Pages may complete out of order; a
// timed-out page is logged by the caller side and simply contributes nothing.
func (e *Extractor) extractImagePages(ctx context.Context, pages [][]byte) ([]blocks.Block, error) {
	perPage := make([][]blocks.Block, len(pages))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.PageWorkers)
	for i, img := range pages {
		g.Go(func() error {
			bs, err := e.pageJob(gctx, i, img)
			if err != nil {
				if errors.Is(err, layout.ErrJobTimeout) {
					// Lose this page only.
					return nil
				}
				return err
			}
			perPage[i] = bs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []blocks.Block
	for _, bs := range perPage {
		out = append(out, bs...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Page != out[j].Page {
			return out[i].Page < out[j].Page
		}
		return out[i].Y < out[j].Y
	})
	return out, nil
}

// pageJob submits one page to the layout server, crops each detection and
// OCRs it. Boxes with empty OCR output are discarded.
func (e *Extractor) pageJob(ctx context.Context, pageNo int, pageImage []byte) ([]blocks.Block, error) {
	dets, err := e.detector.Submit(ctx, pageImage, e.opts.Lang)
	if err != nil {
		return nil, err
	}

	var out []blocks.Block
	for _, d := range dets {
		if d.Score < e.opts.ScoreThresh {
			continue
		}
		crop, err := cropPNG(pageImage, d.X1, d.Y1, d.X2, d.Y2)
		if err != nil {
			continue
		}
		text, err := e.ocr.Text(ctx, crop, e.opts.Lang)
		if err != nil {
			return nil, fmt.Errorf("ocr page %d: %w", pageNo, err)
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		out = append(out, blocks.Block{
			Type: strings.ToLower(d.Label),
			Text: text,
			Page: pageNo,
			Y:    float64(d.Y1),
		})
	}
	return out, nil
}

// extractTxt splits a plain text file on blank lines. Page is fixed at 0 and
// y is the paragraph index, a synthetic ordering key.
func extractTxt(path string) ([]blocks.Block, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var out []blocks.Block
	i := 0
	for _, para := range strings.Split(strings.ReplaceAll(string(raw), "\r\n", "\n"), "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		out = append(out, blocks.Block{Type: "text", Text: para, Page: 0, Y: float64(i)})
		i++
	}
	return out, nil
}
