package formatter

import (
	"bytes"
	"fmt"
	"os"

	"github.com/jung-kurt/gofpdf"
)

const (
	pdfContentType   = "application/pdf"
	pdfFileExtension = ".pdf"

	// pdfFontName is the internal name used by gofpdf
	// for the UTF-8 capable font.
	pdfFontName = "DejaVuSans"

	// Fonts are copied next to the binary in the runtime image
	pdfFontRuntimePath = "ttf/DejaVuSans.ttf"

	pdfFontSourcePath = "internal/pkg/formatter/ttf/DejaVuSans.ttf"
)

type PDFFormatter struct{}

func NewPDFFormatter() *PDFFormatter {
	return &PDFFormatter{}
}

// resolveFontPath looks for DejaVuSans in the runtime layout, then in the
// source tree
func resolveFontPath() string {
	for _, p := range []string{pdfFontRuntimePath, pdfFontSourcePath} {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func (pf *PDFFormatter) Format(t *Transcript) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	// core fonts only cover Latin-1
	fontName := "Arial"
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	if fontPath := resolveFontPath(); fontPath != "" {
		pdf.AddUTF8Font(pdfFontName, "", fontPath)
		pdf.AddUTF8Font(pdfFontName, "B", fontPath)
		fontName = pdfFontName
		tr = func(s string) string { return s }
	}

	pdf.SetFont(fontName, "B", 20)
	pdf.Cell(0, 10, tr(baseTitle))
	pdf.Ln(12)

	pdf.SetFont(fontName, "", 10)
	pdf.Cell(0, 6, tr(subtitle(t)))
	pdf.Ln(10)

	for i, e := range t.Entries {
		pdf.SetFont(fontName, "B", 13)
		_, lineHeight := pdf.GetFontSize()
		pdf.MultiCell(0, lineHeight*1.5, tr(fmt.Sprintf("%d. %s", i+1, e.Question)), "", "", false)

		pdf.SetFont(fontName, "", 11)
		_, lineHeight = pdf.GetFontSize()
		pdf.MultiCell(0, lineHeight*1.5, tr(answerLabel(e.Answer)+": "+e.Answer.Text), "", "", false)

		for _, c := range e.Answer.Sources {
			pdf.MultiCell(0, lineHeight*1.4, tr("- "+sourceLine(c)), "", "", false)
		}
		pdf.Ln(4)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (pf *PDFFormatter) ContentType() string {
	return pdfContentType
}

func (pf *PDFFormatter) FileExtension() string {
	return pdfFileExtension
}
