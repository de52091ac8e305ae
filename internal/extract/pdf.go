package extract

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"

	"github.com/gen2brain/go-fitz"

	"ragstor/internal/blocks"
)

func (e *Extractor) extractPDF(ctx context.Context, path string) ([]blocks.Block, error) {
	pages, err := renderPDFPages(path, e.opts.DPI)
	if err != nil {
		return nil, err
	}
	return e.extractImagePages(ctx, pages)
}

// renderPDFPages rasters every page to PNG at the given DPI.
func renderPDFPages(path string, dpi int) ([][]byte, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer doc.Close()

	pages := make([][]byte, 0, doc.NumPage())
	for n := 0; n < doc.NumPage(); n++ {
		img, err := doc.ImageDPI(n, float64(dpi))
		if err != nil {
			return nil, fmt.Errorf("render page %d: %w", n, err)
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("encode page %d: %w", n, err)
		}
		pages = append(pages, buf.Bytes())
	}
	return pages, nil
}

// cropPNG cuts a detection box out of a PNG page image and re-encodes it for
// the OCR pass. The box is clamped to the image bounds.
func cropPNG(pageImage []byte, x1, y1, x2, y2 int) ([]byte, error) {
	img, err := png.Decode(bytes.NewReader(pageImage))
	if err != nil {
		return nil, err
	}

	rect := image.Rect(x1, y1, x2, y2).Intersect(img.Bounds())
	if rect.Empty() {
		return nil, fmt.Errorf("detection box outside page bounds")
	}

	sub, ok := img.(interface {
		SubImage(image.Rectangle) image.Image
	})
	if !ok {
		return nil, fmt.Errorf("page image does not support cropping")
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, sub.SubImage(rect)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
