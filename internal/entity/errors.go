package entity

import (
	"errors"
	"fmt"
)

// Domain errors
var (
	// Ingestion errors
	ErrIngestion         = errors.New("ingestion failed")
	ErrEmptyDocument     = fmt.Errorf("%w: document contains no text", ErrIngestion)
	ErrUnparseableText   = fmt.Errorf("%w: document text is not valid UTF-8", ErrIngestion)
	ErrDimensionMismatch = fmt.Errorf("%w: embedding dimension mismatch", ErrIngestion)

	// Extraction errors
	ErrExtraction        = errors.New("text extraction failed")
	ErrUnsupportedFormat = fmt.Errorf("%w: unsupported document format", ErrExtraction)

	// Provider errors
	ErrEmbeddingProvider = errors.New("embedding provider unavailable")
	ErrGeneration        = errors.New("answer generation failed")

	// Session errors
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionEnded    = errors.New("session has ended")

	// File errors
	ErrInvalidFile       = errors.New("invalid file")
	ErrFileTooLarge      = errors.New("file too large")
	ErrTooManyFiles      = errors.New("too many files")
	ErrInvalidExtension  = errors.New("invalid file extension")
	ErrTotalSizeTooLarge = errors.New("total file size too large")

	// Validation errors
	ErrMissingField     = errors.New("required field is missing")
	ErrInvalidFormat    = errors.New("invalid format")
	ErrFormatNotEnabled = errors.New("format is not enabled")
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrEmptyQuery       = fmt.Errorf("%w: query is empty", ErrInvalidParameter)
)
