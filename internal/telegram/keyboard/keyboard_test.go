package keyboard

import (
	"testing"

	"github.com/futig/doctalk-backend/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportKeyboard(t *testing.T) {
	kb := NewBuilder().ExportKeyboard([]entity.ResultFormat{entity.FormatMarkdown, entity.FormatJSON, entity.FormatPDF})

	require.Len(t, kb.InlineKeyboard, 2)
	require.Len(t, kb.InlineKeyboard[0], 2)
	require.Len(t, kb.InlineKeyboard[1], 1)

	pdf := kb.InlineKeyboard[1][0]
	assert.Equal(t, "📕 PDF", pdf.Text)
	require.NotNil(t, pdf.CallbackData)
	assert.Equal(t, "export:pdf", *pdf.CallbackData)

	for _, row := range kb.InlineKeyboard {
		for _, button := range row {
			assert.NotEqual(t, "📄 DOCX", button.Text)
		}
	}
}

func TestParseCallback(t *testing.T) {
	data, err := ParseCallback(EncodeCallback(ActionExport, "docx"))
	require.NoError(t, err)
	assert.Equal(t, ActionExport, data.Action)
	assert.Equal(t, "docx", data.Value)

	_, err = ParseCallback("nocolon")
	assert.Error(t, err)
}
