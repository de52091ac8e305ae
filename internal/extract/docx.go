package extract

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"strings"

	"ragstor/internal/blocks"
)

// OOXML subset: just enough of word/document.xml to walk paragraphs and read
// their style. Namespace prefixes are ignored by matching local names only.
type docxDocument struct {
	XMLName xml.Name `xml:"document"`
	Body    struct {
		Paragraphs []docxParagraph `xml:"p"`
	} `xml:"body"`
}

type docxParagraph struct {
	Props struct {
		Style struct {
			Val string `xml:"val,attr"`
		} `xml:"pStyle"`
	} `xml:"pPr"`
	Runs []struct {
		Texts []string `xml:"t"`
	} `xml:"r"`
}

func (p docxParagraph) text() string {
	var sb strings.Builder
	for _, r := range p.Runs {
		for _, t := range r.Texts {
			sb.WriteString(t)
		}
	}
	return strings.TrimSpace(sb.String())
}

func (p docxParagraph) isHeading() bool {
	return strings.Contains(strings.ToLower(p.Props.Style.Val), "heading")
}

// extractDocx walks paragraphs in document order. Headings become title
// blocks; page is fixed at 0 and y is the paragraph index.
func extractDocx(path string) ([]blocks.Block, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open docx: %w", err)
	}
	defer zr.Close()

	var doc docxDocument
	found := false
	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open docx body: %w", err)
		}
		err = xml.NewDecoder(rc).Decode(&doc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("parse docx body: %w", err)
		}
		found = true
		break
	}
	if !found {
		return nil, fmt.Errorf("docx has no word/document.xml")
	}

	var out []blocks.Block
	i := 0
	for _, p := range doc.Body.Paragraphs {
		txt := p.text()
		if txt == "" {
			continue
		}
		btype := "text"
		if p.isHeading() {
			btype = "title"
		}
		out = append(out, blocks.Block{Type: btype, Text: txt, Page: 0, Y: float64(i)})
		i++
	}
	return out, nil
}
