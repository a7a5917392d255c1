package keyboard

import (
	"fmt"
	"strings"
)

// Callback actions
const (
	ActionExport  = "export"
	ActionConfirm = "confirm"
)

// Confirm values
const (
	ConfirmEnd      = "end"
	ConfirmContinue = "continue"
)

// CallbackData represents parsed callback data
type CallbackData struct {
	Action string
	Value  string
}

// ParseCallback parses callback data string
func ParseCallback(data string) (*CallbackData, error) {
	parts := strings.SplitN(data, ":", 2)
	if len(parts) != 2 || parts[0] == "" {
		return nil, fmt.Errorf("invalid callback format: %s", data)
	}

	return &CallbackData{
		Action: parts[0],
		Value:  parts[1],
	}, nil
}

// EncodeCallback creates callback data string
func EncodeCallback(action, value string) string {
	return fmt.Sprintf("%s:%s", action, value)
}
