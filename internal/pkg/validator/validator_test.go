package validator

import (
	"mime/multipart"
	"strings"
	"testing"

	"github.com/futig/doctalk-backend/internal/config"
	"github.com/futig/doctalk-backend/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testValidator() *Validator {
	return NewFileValidator(config.FileUploadConfig{
		MaxFileSize:  100,
		MaxTotalSize: 150,
		MaxFileCount: 3,
	})
}

func header(name string, size int64) *multipart.FileHeader {
	return &multipart.FileHeader{Filename: name, Size: size}
}

func TestValidator_ValidateUpload(t *testing.T) {
	v := testValidator()

	tests := []struct {
		name    string
		files   []*multipart.FileHeader
		wantErr error
	}{
		{"ok", []*multipart.FileHeader{header("a.md", 10), header("b.PDF", 50)}, nil},
		{"no files", nil, entity.ErrMissingField},
		{"too many", []*multipart.FileHeader{header("a.md", 1), header("b.md", 1), header("c.md", 1), header("d.md", 1)}, entity.ErrTooManyFiles},
		{"legacy doc", []*multipart.FileHeader{header("old.doc", 10)}, entity.ErrInvalidExtension},
		{"unknown extension", []*multipart.FileHeader{header("run.exe", 10)}, entity.ErrInvalidExtension},
		{"empty file", []*multipart.FileHeader{header("a.txt", 0)}, entity.ErrInvalidFile},
		{"file too large", []*multipart.FileHeader{header("a.txt", 101)}, entity.ErrFileTooLarge},
		{"total too large", []*multipart.FileHeader{header("a.txt", 80), header("b.txt", 80)}, entity.ErrTotalSizeTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateUpload(tt.files)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestValidator_LegacyDocHint(t *testing.T) {
	err := testValidator().ValidateFile("spec.doc", 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), ".docx")
}

func TestValidator_ValidateChat(t *testing.T) {
	v := testValidator()

	req := &entity.ChatRequest{Message: "  What is the deadline?  "}
	require.NoError(t, v.ValidateChat(req))
	assert.Equal(t, "What is the deadline?", req.Message)

	assert.ErrorIs(t, v.ValidateChat(&entity.ChatRequest{Message: " \n"}), entity.ErrMissingField)
	assert.ErrorIs(t, v.ValidateChat(&entity.ChatRequest{Message: strings.Repeat("a", 4001)}), entity.ErrInvalidParameter)
}

func TestValidateDocumentType(t *testing.T) {
	got, err := ValidateDocumentType(" Update ")
	require.NoError(t, err)
	assert.Equal(t, entity.DocumentTypeUpdate, got)

	got, err = ValidateDocumentType("")
	require.NoError(t, err)
	assert.Equal(t, entity.DocumentType(""), got)

	_, err = ValidateDocumentType("novel")
	assert.ErrorIs(t, err, entity.ErrInvalidParameter)
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "my_report_v2.docx", SanitizeFilename("my report (v2).docx"))
	assert.Equal(t, "passwd", SanitizeFilename("../../etc/passwd"))
	assert.Equal(t, "notes.md", SanitizeFilename(`C:\Users\me\notes.md`))
}
