package formatter

import (
	"bytes"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/futig/doctalk-backend/internal/entity"
	"github.com/unidoc/unioffice/common/license"
	"github.com/unidoc/unioffice/document"
)

const (
	docxContentType   = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	docxFileExtension = ".docx"
)

// unioffice refuses to save documents until a license key is set
var docxEnabled atomic.Bool

// EnableDOCX registers a metered unioffice key for the whole process
func EnableDOCX(apiKey string) error {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return fmt.Errorf("%w: empty license key", entity.ErrFormatNotEnabled)
	}
	if err := license.SetMeteredKey(apiKey); err != nil {
		return fmt.Errorf("%w: unioffice license: %w", entity.ErrFormatNotEnabled, err)
	}
	docxEnabled.Store(true)
	return nil
}

// DOCXEnabled reports whether DOCX export can be offered
func DOCXEnabled() bool {
	return docxEnabled.Load()
}

type DOCXFormatter struct{}

func NewDOCXFormatter() *DOCXFormatter {
	return &DOCXFormatter{}
}

func (df *DOCXFormatter) Format(t *Transcript) ([]byte, error) {
	doc := document.New()
	defer doc.Close()

	titlePar := doc.AddParagraph()
	titlePar.SetStyle("Heading1")
	titlePar.AddRun().AddText(baseTitle)

	doc.AddParagraph().AddRun().AddText(subtitle(t))

	for i, e := range t.Entries {
		question := doc.AddParagraph()
		question.SetStyle("Heading2")
		question.AddRun().AddText(fmt.Sprintf("%d. %s", i+1, e.Question))

		answer := doc.AddParagraph()
		label := answer.AddRun()
		label.Properties().SetBold(true)
		label.AddText(answerLabel(e.Answer) + ": ")
		answer.AddRun().AddText(e.Answer.Text)

		for _, c := range e.Answer.Sources {
			doc.AddParagraph().AddRun().AddText("• " + sourceLine(c))
		}
	}

	var buf bytes.Buffer
	if err := doc.Save(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (df *DOCXFormatter) ContentType() string {
	return docxContentType
}

func (df *DOCXFormatter) FileExtension() string {
	return docxFileExtension
}
