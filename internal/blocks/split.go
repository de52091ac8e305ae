package blocks

import "strings"

// separator hierarchy: paragraph, line, sentence, word, hard cut.
var separators = []string{"\n\n", "\n", ". ", " "}

// Splitter cuts long text into segments of at most Size characters along
// natural boundaries, with Overlap characters carried between consecutive
// segments of the same source text to preserve context across the cut.
type Splitter struct {
	Size    int
	Overlap int
}

func NewSplitter(size, overlap int) *Splitter {
	if size <= 0 {
		size = 500
	}
	if overlap < 0 || overlap >= size {
		overlap = size / 10
	}
	return &Splitter{Size: size, Overlap: overlap}
}

// Split returns the non-empty segments of text, each at most Size characters.
func (s *Splitter) Split(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len(text) <= s.Size {
		return []string{text}
	}
	units := s.units(text, separators)
	return s.merge(units)
}

// units recursively breaks text into pieces no longer than Size, trying each
// separator in turn and hard-cutting as the last resort.
func (s *Splitter) units(text string, seps []string) []string {
	if len(text) <= s.Size {
		return []string{text}
	}
	if len(seps) == 0 {
		return s.hardCut(text)
	}

	sep := seps[0]
	parts := strings.SplitAfter(text, sep)
	if len(parts) == 1 {
		return s.units(text, seps[1:])
	}

	var units []string
	for _, p := range parts {
		if p == "" {
			continue
		}
		if len(p) <= s.Size {
			units = append(units, p)
			continue
		}
		units = append(units, s.units(p, seps[1:])...)
	}
	return units
}

func (s *Splitter) hardCut(text string) []string {
	step := s.Size - s.Overlap
	var cuts []string
	for start := 0; start < len(text); start += step {
		end := start + s.Size
		if end >= len(text) {
			cuts = append(cuts, text[start:])
			break
		}
		cuts = append(cuts, text[start:end])
	}
	return cuts
}

// merge greedily packs units into segments up to Size. On a segment boundary
// the trailing units (up to Overlap characters) are retained to seed the next
// segment.
func (s *Splitter) merge(units []string) []string {
	var segments []string
	var cur []string
	curLen := 0

	flush := func() {
		seg := strings.TrimSpace(strings.Join(cur, ""))
		if seg != "" {
			segments = append(segments, seg)
		}
	}

	for _, u := range units {
		if curLen+len(u) > s.Size && curLen > 0 {
			flush()
			// Keep an overlap tail, but never so much that the next unit
			// would push the new segment over Size.
			for len(cur) > 0 && (curLen > s.Overlap || curLen+len(u) > s.Size) {
				curLen -= len(cur[0])
				cur = cur[1:]
			}
		}
		cur = append(cur, u)
		curLen += len(u)
	}
	flush()
	return segments
}
