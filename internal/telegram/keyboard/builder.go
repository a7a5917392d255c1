package keyboard

import (
	"github.com/futig/doctalk-backend/internal/entity"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Builder creates inline keyboards
type Builder struct{}

// NewBuilder creates a keyboard builder
func NewBuilder() *Builder {
	return &Builder{}
}

var formatLabels = map[entity.ResultFormat]string{
	entity.FormatMarkdown: "📝 Markdown",
	entity.FormatJSON:     "🧾 JSON",
	entity.FormatDOCX:     "📄 DOCX",
	entity.FormatPDF:      "📕 PDF",
}

// ExportKeyboard offers the given transcript formats, two per row
func (b *Builder) ExportKeyboard(formats []entity.ResultFormat) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for i := 0; i < len(formats); i += 2 {
		row := make([]tgbotapi.InlineKeyboardButton, 0, 2)
		for _, f := range formats[i:min(i+2, len(formats))] {
			label, ok := formatLabels[f]
			if !ok {
				label = string(f)
			}
			row = append(row, tgbotapi.NewInlineKeyboardButtonData(label, EncodeCallback(ActionExport, string(f))))
		}
		rows = append(rows, row)
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// ConfirmEndKeyboard asks before dropping the session
func (b *Builder) ConfirmEndKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Yes, end it", EncodeCallback(ActionConfirm, ConfirmEnd)),
			tgbotapi.NewInlineKeyboardButtonData("❌ No, continue", EncodeCallback(ActionConfirm, ConfirmContinue)),
		),
	)
}
