package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"code.sajari.com/docconv"
)

// Loader is the plain-text ingestion path: the whole document as one string,
// no layout analysis. Used by text-mode ingestion runs where OCR would be
// wasted on born-digital files.
type Loader struct{}

func (Loader) Load(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf", ".docx":
		res, err := docconv.ConvertPath(path)
		if err != nil {
			return "", fmt.Errorf("convert %s: %w", filepath.Base(path), err)
		}
		return res.Body, nil
	case ".txt":
		raw, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		return string(raw), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
}
