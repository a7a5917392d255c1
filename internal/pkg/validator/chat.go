package validator

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/futig/doctalk-backend/internal/entity"
)

const maxQuestionLength = 4000

// ValidateChat validates a chat request
func (v *Validator) ValidateChat(req *entity.ChatRequest) error {
	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		return fmt.Errorf("%w: message", entity.ErrMissingField)
	}
	if utf8.RuneCountInString(req.Message) > maxQuestionLength {
		return fmt.Errorf("%w: message is longer than %d characters", entity.ErrInvalidParameter, maxQuestionLength)
	}
	return nil
}

// ValidateDocumentType parses an optional document type
func ValidateDocumentType(s string) (entity.DocumentType, error) {
	t, ok := entity.ParseDocumentType(s)
	if !ok {
		return "", fmt.Errorf("%w: document_type %q (allowed: requirements, update, memo, general)", entity.ErrInvalidParameter, s)
	}
	return t, nil
}
