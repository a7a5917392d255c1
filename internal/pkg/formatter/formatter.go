// Package formatter renders session transcripts for download.
package formatter

import (
	"fmt"
	"strings"
	"time"

	"github.com/futig/doctalk-backend/internal/entity"
)

const baseTitle = "Session transcript"

// Transcript is the exported view of a session conversation
type Transcript struct {
	SessionID  string                   `json:"session_id"`
	ExportedAt time.Time                `json:"exported_at"`
	Entries    []entity.TranscriptEntry `json:"entries"`
}

type Formatter interface {
	Format(t *Transcript) ([]byte, error)
	ContentType() string
	FileExtension() string
}

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Create(format entity.ResultFormat) (Formatter, error) {
	switch format {
	case entity.FormatMarkdown, "":
		return NewMarkdownFormatter(), nil
	case entity.FormatJSON:
		return NewJSONFormatter(), nil
	case entity.FormatDOCX:
		if !DOCXEnabled() {
			return nil, fmt.Errorf("%w: docx export needs a unioffice license", entity.ErrFormatNotEnabled)
		}
		return NewDOCXFormatter(), nil
	case entity.FormatPDF:
		return NewPDFFormatter(), nil
	default:
		return nil, fmt.Errorf("%w: unsupported format: %s", entity.ErrInvalidFormat, format)
	}
}

// Formats lists the formats Create currently accepts
func (f *Factory) Formats() []entity.ResultFormat {
	formats := []entity.ResultFormat{entity.FormatMarkdown, entity.FormatJSON}
	if DOCXEnabled() {
		formats = append(formats, entity.FormatDOCX)
	}
	return append(formats, entity.FormatPDF)
}

// Filename is the suggested download name for a transcript
func Filename(sessionID string, f Formatter) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, sessionID)
	if name == "" {
		name = "session"
	}
	return "transcript_" + name + f.FileExtension()
}

func subtitle(t *Transcript) string {
	return fmt.Sprintf("Session %s, exported %s", t.SessionID, t.ExportedAt.UTC().Format(time.RFC3339))
}

func answerLabel(a entity.Answer) string {
	if a.Refused {
		return fmt.Sprintf("Answer (refused, %s)", a.RefusalReason)
	}
	return "Answer"
}

func sourceLine(c entity.Citation) string {
	if c.Text == "" {
		return c.Source
	}
	return fmt.Sprintf("%s: %s", c.Source, c.Text)
}
