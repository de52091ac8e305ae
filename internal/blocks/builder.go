package blocks

import "strings"

// RemoveNearDuplicates drops a block when its normalized text exactly matches
// any of the last window kept texts. Catches local OCR repetition without the
// cost of a global comparison.
func RemoveNearDuplicates(in []Block, window int) []Block {
	if window <= 0 {
		window = 10
	}
	seen := make([]string, 0, len(in))
	cleaned := make([]Block, 0, len(in))

	for _, b := range in {
		txt := NormalizeText(b.Text)
		dup := false
		start := len(seen) - window
		if start < 0 {
			start = 0
		}
		for _, prev := range seen[start:] {
			if prev == txt {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		cleaned = append(cleaned, b)
		seen = append(seen, txt)
	}
	return cleaned
}

// MergeSmallBlocks folds blocks under minWords into their same-page
// neighbors so fragments too small to carry retrieval-useful meaning never
// become standalone chunks. A page change flushes the pending buffer.
func MergeSmallBlocks(in []Block, minWords int) []Block {
	if minWords <= 0 {
		minWords = 20
	}

	merged := make([]Block, 0, len(in))
	var buffer *Block

	for _, b := range in {
		txt := strings.TrimSpace(b.Text)
		small := len(strings.Fields(txt)) < minWords

		switch {
		case small && buffer == nil:
			cp := b
			cp.Text = txt
			buffer = &cp
		case small:
			if buffer.Page == b.Page {
				buffer.Text += " " + txt
			} else {
				merged = append(merged, *buffer)
				cp := b
				cp.Text = txt
				buffer = &cp
			}
		case buffer != nil:
			if buffer.Page == b.Page {
				buffer.Text += " " + txt
				merged = append(merged, *buffer)
			} else {
				merged = append(merged, *buffer, b)
			}
			buffer = nil
		default:
			merged = append(merged, b)
		}
	}
	if buffer != nil {
		merged = append(merged, *buffer)
	}
	return merged
}

// BuildChunks splits each block's text into bounded segments and emits them
// as chunks with sequential ids starting at 0, one counter per ingestion run.
// Segments inherit filename, type, page and user from their source block.
func BuildChunks(in []Block, splitter *Splitter) []Chunk {
	var chunks []Chunk
	cid := 0
	for _, b := range in {
		btype := b.Type
		if btype == "" {
			btype = "text"
		}
		for _, part := range splitter.Split(b.Text) {
			chunks = append(chunks, Chunk{
				ChunkID:  cid,
				Filename: b.Filename,
				Text:     part,
				Type:     btype,
				Page:     b.Page,
				UserID:   b.UserID,
			})
			cid++
		}
	}
	return chunks
}
