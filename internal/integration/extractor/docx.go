package extractor

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/futig/doctalk-backend/internal/entity"
)

const (
	docxBodyPart = "word/document.xml"

	// upper bound for one decompressed XML part
	maxDOCXPartSize = 64 << 20

	wordNamespace       = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
	wordStrictNamespace = "http://purl.oclc.org/ooxml/wordprocessingml/main"
	markupCompatibility = "http://schemas.openxmlformats.org/markup-compatibility/2006"
)

// docxText reads the headers, the body and the footers of a DOCX package.
// Paragraphs keep document order and every table row becomes one pipe row,
// so the chunker keeps rows whole.
func docxText(content []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("%w: read docx: %w", entity.ErrExtraction, err)
	}

	var (
		body    *zip.File
		headers []*zip.File
		footers []*zip.File
	)
	for _, f := range zr.File {
		switch {
		case f.Name == docxBodyPart:
			body = f
		case isWordPart(f.Name, "header"):
			headers = append(headers, f)
		case isWordPart(f.Name, "footer"):
			footers = append(footers, f)
		}
	}
	if body == nil {
		return "", fmt.Errorf("%w: read docx: %s is missing", entity.ErrExtraction, docxBodyPart)
	}
	sortParts(headers)
	sortParts(footers)

	parts := make([]*zip.File, 0, len(headers)+len(footers)+1)
	parts = append(parts, headers...)
	parts = append(parts, body)
	parts = append(parts, footers...)

	var b strings.Builder
	for _, f := range parts {
		if err := writePartText(&b, f); err != nil {
			return "", err
		}
	}
	return b.String(), nil
}

// isWordPart matches word/header1.xml style names, not footnotes.xml or
// anything under word/_rels
func isWordPart(name, kind string) bool {
	rest, ok := strings.CutPrefix(name, "word/"+kind)
	return ok && strings.HasSuffix(rest, ".xml") && !strings.Contains(rest, "/")
}

func sortParts(files []*zip.File) {
	sort.Slice(files, func(i, j int) bool {
		if len(files[i].Name) != len(files[j].Name) {
			return len(files[i].Name) < len(files[j].Name)
		}
		return files[i].Name < files[j].Name
	})
}

func isWordElement(name xml.Name) bool {
	return name.Space == wordNamespace || name.Space == wordStrictNamespace
}

func writePartText(b *strings.Builder, f *zip.File) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("%w: open %s: %w", entity.ErrExtraction, f.Name, err)
	}
	defer rc.Close()

	var (
		dec        = xml.NewDecoder(io.LimitReader(rc, maxDOCXPartSize))
		para       strings.Builder
		cells      []string
		tableDepth int
		inRun      bool
		inText     bool
	)

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("%w: parse %s: %w", entity.ErrExtraction, f.Name, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			// text boxes repeat their content in the fallback branch
			if t.Name.Space == markupCompatibility && t.Name.Local == "Fallback" {
				if err := dec.Skip(); err != nil {
					return fmt.Errorf("%w: parse %s: %w", entity.ErrExtraction, f.Name, err)
				}
				continue
			}
			if !isWordElement(t.Name) {
				continue
			}
			switch t.Name.Local {
			case "r":
				inRun = true
			case "t":
				inText = true
			case "tab":
				// tab stops in paragraph properties share the name
				if inRun {
					para.WriteByte('\t')
				}
			case "br", "cr":
				if inRun {
					para.WriteByte('\n')
				}
			case "tbl":
				tableDepth++
			case "tr":
				if tableDepth == 1 {
					cells = cells[:0]
				}
			}

		case xml.EndElement:
			if !isWordElement(t.Name) {
				continue
			}
			switch t.Name.Local {
			case "r":
				inRun = false
			case "t":
				inText = false
			case "p":
				if tableDepth > 0 {
					para.WriteByte(' ')
					continue
				}
				b.WriteString(para.String())
				b.WriteByte('\n')
				para.Reset()
			case "tc":
				if tableDepth == 1 {
					cell := strings.Join(strings.Fields(para.String()), " ")
					cells = append(cells, strings.ReplaceAll(cell, "|", "/"))
					para.Reset()
				}
			case "tr":
				if tableDepth == 1 && len(cells) > 0 {
					b.WriteString("| ")
					b.WriteString(strings.Join(cells, " | "))
					b.WriteString(" |\n")
				}
			case "tbl":
				tableDepth--
			}

		case xml.CharData:
			if inText {
				para.Write(t)
			}
		}
	}

	if rest := para.String(); strings.TrimSpace(rest) != "" {
		b.WriteString(rest)
		b.WriteByte('\n')
	}
	return nil
}
