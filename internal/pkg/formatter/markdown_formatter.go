package formatter

import (
	"bytes"
	"fmt"
)

const (
	markdownContentType   = "text/markdown; charset=utf-8"
	markdownFileExtension = ".md"
)

type MarkdownFormatter struct{}

func NewMarkdownFormatter() *MarkdownFormatter {
	return &MarkdownFormatter{}
}

func (mf *MarkdownFormatter) Format(t *Transcript) ([]byte, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "# %s\n\n_%s_\n", baseTitle, subtitle(t))

	if len(t.Entries) == 0 {
		buf.WriteString("\nNo questions were asked.\n")
	}

	for i, e := range t.Entries {
		fmt.Fprintf(&buf, "\n## %d. %s\n\n", i+1, e.Question)
		fmt.Fprintf(&buf, "**%s:** %s\n", answerLabel(e.Answer), e.Answer.Text)

		if len(e.Answer.Sources) > 0 {
			buf.WriteString("\nSources:\n")
			for _, c := range e.Answer.Sources {
				fmt.Fprintf(&buf, "- %s\n", sourceLine(c))
			}
		}
	}

	return buf.Bytes(), nil
}

func (mf *MarkdownFormatter) ContentType() string {
	return markdownContentType
}

func (mf *MarkdownFormatter) FileExtension() string {
	return markdownFileExtension
}
