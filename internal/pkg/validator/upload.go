package validator

import (
	"fmt"
	"mime/multipart"
	"path/filepath"
	"strings"

	"github.com/futig/doctalk-backend/internal/config"
	"github.com/futig/doctalk-backend/internal/entity"
)

var AllowedExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
	".docx":     true,
	".pdf":      true,
}

// Validator validates file uploads and chat input
type Validator struct {
	cfg config.FileUploadConfig
}

func NewFileValidator(cfg config.FileUploadConfig) *Validator {
	return &Validator{cfg: cfg}
}

// ValidateUpload validates multiple file uploads
func (v *Validator) ValidateUpload(files []*multipart.FileHeader) error {
	if len(files) == 0 {
		return fmt.Errorf("%w: files", entity.ErrMissingField)
	}

	if len(files) > v.cfg.MaxFileCount {
		return fmt.Errorf("%w: maximum %d files allowed, got %d", entity.ErrTooManyFiles, v.cfg.MaxFileCount, len(files))
	}

	var totalSize int64
	for _, fh := range files {
		if err := v.ValidateFile(fh.Filename, fh.Size); err != nil {
			return err
		}
		totalSize += fh.Size
	}

	if totalSize > v.cfg.MaxTotalSize {
		return fmt.Errorf("%w: total size is %d bytes (max %d)", entity.ErrTotalSizeTooLarge, totalSize, v.cfg.MaxTotalSize)
	}

	return nil
}

// ValidateFile checks one file name and size
func (v *Validator) ValidateFile(filename string, size int64) error {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == ".doc" {
		return fmt.Errorf("%w: %s (legacy Word files are not supported, save as .docx)", entity.ErrInvalidExtension, ext)
	}
	if !AllowedExtensions[ext] {
		return fmt.Errorf("%w: %q (allowed: txt, md, docx, pdf)", entity.ErrInvalidExtension, ext)
	}

	if size <= 0 {
		return fmt.Errorf("%w: file '%s' is empty", entity.ErrInvalidFile, filename)
	}
	if size > v.cfg.MaxFileSize {
		return fmt.Errorf("%w: file '%s' is %d bytes (max %d)", entity.ErrFileTooLarge, filename, size, v.cfg.MaxFileSize)
	}

	return nil
}

// SanitizeFilename sanitizes a filename for safe storage
func SanitizeFilename(filename string) string {
	filename = filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	replacer := strings.NewReplacer(
		" ", "_",
		"(", "",
		")", "",
		"[", "",
		"]", "",
		"{", "",
		"}", "",
	)
	return replacer.Replace(filename)
}
