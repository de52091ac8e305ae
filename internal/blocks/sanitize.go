package blocks

import (
	"regexp"
	"strings"
)

var wsRe = regexp.MustCompile(`\s+`)

// NormalizeText collapses whitespace, trims and lowercases. Grouping key for
// the header/footer heuristics and the near-duplicate window.
func NormalizeText(s string) string {
	return strings.ToLower(strings.TrimSpace(wsRe.ReplaceAllString(s, " ")))
}

type SanitizeOptions struct {
	// MinRepeat is the number of distinct pages a text must appear on before
	// it counts as a recurring header/footer.
	MinRepeat int
	// YTolerance bounds the vertical spread across occurrences: real headers
	// and footers sit at essentially the same position on every page.
	YTolerance float64
	// Headers and footers are short. Texts over these ceilings are never
	// candidates.
	MaxHeaderWords int
	MaxHeaderChars int
}

func DefaultSanitizeOptions() SanitizeOptions {
	return SanitizeOptions{
		MinRepeat:      3,
		YTolerance:     20,
		MaxHeaderWords: 12,
		MaxHeaderChars: 80,
	}
}

type textStats struct {
	pages map[int]struct{}
	minY  float64
	maxY  float64
}

// RemoveHeadersFooters drops recurring page headers/footers from blocks.
// Two mechanisms: blocks the extractor already typed as page-header or
// page-footer are dropped outright, and short texts repeating on MinRepeat+
// pages within YTolerance are dropped wherever they occur. The relative
// order of survivors is preserved, and the pass is idempotent.
func RemoveHeadersFooters(in []Block, opts SanitizeOptions) []Block {
	stats := make(map[string]*textStats)
	for _, b := range in {
		txt := NormalizeText(b.Text)
		if txt == "" {
			continue
		}
		if len(txt) > opts.MaxHeaderChars || len(strings.Fields(txt)) > opts.MaxHeaderWords {
			continue
		}
		st, ok := stats[txt]
		if !ok {
			st = &textStats{pages: make(map[int]struct{}), minY: b.Y, maxY: b.Y}
			stats[txt] = st
		}
		st.pages[b.Page] = struct{}{}
		if b.Y < st.minY {
			st.minY = b.Y
		}
		if b.Y > st.maxY {
			st.maxY = b.Y
		}
	}

	drop := make(map[string]struct{})
	for txt, st := range stats {
		if len(st.pages) < opts.MinRepeat {
			continue
		}
		if st.maxY-st.minY <= opts.YTolerance {
			drop[txt] = struct{}{}
		}
	}

	cleaned := make([]Block, 0, len(in))
	for _, b := range in {
		btype := strings.ToLower(b.Type)
		if btype == "page-header" || btype == "page-footer" {
			continue
		}
		if _, ok := drop[NormalizeText(b.Text)]; ok {
			continue
		}
		cleaned = append(cleaned, b)
	}
	return cleaned
}
