// Package extractor turns uploaded files into plain text.
package extractor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/futig/doctalk-backend/internal/entity"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"
)

const (
	extTXT      = ".txt"
	extMD       = ".md"
	extMarkdown = ".markdown"
	extDOCX     = ".docx"
	extDOC      = ".doc"
	extPDF      = ".pdf"
)

// SupportedExtensions lists the file extensions Extract understands
var SupportedExtensions = []string{extTXT, extMD, extMarkdown, extDOCX, extPDF}

type Extractor struct {
	logger *zap.Logger
}

func New(logger *zap.Logger) *Extractor {
	return &Extractor{logger: logger}
}

// Extract returns the text of a file. The format is chosen by extension,
// falling back to the content type for files without one.
func (e *Extractor) Extract(ctx context.Context, content []byte, filename, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		ext = extensionFromContentType(contentType)
	}

	var (
		text string
		err  error
	)
	switch ext {
	case extTXT, extMD, extMarkdown:
		text, err = plainText(content, filename)
	case extDOCX:
		text, err = docxText(content)
	case extPDF:
		text, err = pdfText(content)
	case extDOC:
		return "", fmt.Errorf("%w: legacy .doc file %q, save it as .docx", entity.ErrUnsupportedFormat, filename)
	default:
		return "", fmt.Errorf("%w: %q", entity.ErrUnsupportedFormat, filename)
	}
	if err != nil {
		return "", err
	}

	text = normalizeNewlines(text)

	ctxzap.Debug(ctx, "text extracted",
		zap.String("filename", filename),
		zap.String("format", ext),
		zap.Int("bytes", len(text)),
	)

	return text, nil
}

func extensionFromContentType(contentType string) string {
	ct := strings.ToLower(contentType)
	switch {
	case strings.HasPrefix(ct, "text/markdown"):
		return extMD
	case strings.HasPrefix(ct, "text/plain"):
		return extTXT
	case strings.HasPrefix(ct, "application/pdf"):
		return extPDF
	case strings.HasPrefix(ct, "application/vnd.openxmlformats-officedocument.wordprocessingml.document"):
		return extDOCX
	case strings.HasPrefix(ct, "application/msword"):
		return extDOC
	default:
		return ""
	}
}

func plainText(content []byte, filename string) (string, error) {
	content = bytes.TrimPrefix(content, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(content) {
		return "", fmt.Errorf("%w: %q", entity.ErrUnparseableText, filename)
	}
	return string(content), nil
}

func pdfText(content []byte) (text string, err error) {
	// the parser panics on some malformed inputs
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("%w: malformed pdf: %v", entity.ErrExtraction, r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("%w: read pdf: %w", entity.ErrExtraction, err)
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("%w: pdf text: %w", entity.ErrExtraction, err)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", fmt.Errorf("%w: pdf text: %w", entity.ErrExtraction, err)
	}
	return buf.String(), nil
}

func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}
