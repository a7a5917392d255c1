// Package guardrail flags documents that carry confidentiality markers.
package guardrail

import (
	"strings"
	"unicode"

	"github.com/futig/doctalk-backend/internal/entity"
)

type Classifier struct {
	markers []marker
}

type marker struct {
	original   string
	normalized string
}

// New builds a classifier for case-insensitive literal markers. Whitespace
// runs inside markers and text are treated as a single space.
func New(markers []string) *Classifier {
	c := &Classifier{}
	for _, m := range markers {
		n := normalize(m)
		if n == "" {
			continue
		}
		c.markers = append(c.markers, marker{original: strings.TrimSpace(m), normalized: n})
	}
	return c
}

// Markers returns the configured markers in their original spelling
func (c *Classifier) Markers() []string {
	out := make([]string, 0, len(c.markers))
	for _, m := range c.markers {
		out = append(out, m.original)
	}
	return out
}

// ClassifyText returns the sensitivity of text and the first marker found
func (c *Classifier) ClassifyText(text string) (entity.Sensitivity, string) {
	if len(c.markers) == 0 || text == "" {
		return entity.SensitivityPublic, ""
	}

	normalized := normalize(text)
	for _, m := range c.markers {
		if strings.Contains(normalized, m.normalized) {
			return entity.SensitivityConfidential, m.original
		}
	}

	return entity.SensitivityPublic, ""
}

// ClassifyDocument sets the document sensitivity from its whole text. A
// document already declared confidential stays confidential.
func (c *Classifier) ClassifyDocument(doc *entity.Document) {
	sensitivity, found := c.ClassifyText(doc.Text)
	if sensitivity == entity.SensitivityConfidential {
		doc.Sensitivity = entity.SensitivityConfidential
		doc.SensitivityMarker = found
		return
	}
	if doc.Sensitivity != entity.SensitivityConfidential {
		doc.Sensitivity = entity.SensitivityPublic
	}
}

// Classify returns the chunk flag, which is always the document flag
func (c *Classifier) Classify(chunk *entity.Chunk, doc *entity.Document) bool {
	chunk.Sensitive = doc.IsConfidential()
	return chunk.Sensitive
}

// Annotate re-asserts the document flag on every passage
func (c *Classifier) Annotate(result entity.RetrievalResult) entity.RetrievalResult {
	for i := range result.Passages {
		p := &result.Passages[i]
		p.Chunk.Sensitive = p.Document.IsConfidential()
	}
	return result
}

func normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	space := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			space = true
			continue
		}
		if space && b.Len() > 0 {
			b.WriteByte(' ')
		}
		space = false
		b.WriteRune(unicode.ToLower(r))
	}

	return b.String()
}
