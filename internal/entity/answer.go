package entity

// RefusalReason explains why no answer was generated
type RefusalReason string

const (
	RefusalConfidentialContent RefusalReason = "CONFIDENTIAL_CONTENT"
	RefusalInsufficientContext RefusalReason = "INSUFFICIENT_CONTEXT"
)

// Citation points the user to the document a passage came from
type Citation struct {
	DocumentID string `json:"document_id"`
	Source     string `json:"source"`
	Text       string `json:"text"`
}

// Usage holds token counts of a generation call
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// Answer is the outcome of a query, either grounded text or a refusal
type Answer struct {
	Text          string        `json:"answer"`
	Citations     []string      `json:"-"`
	Sources       []Citation    `json:"citations"`
	Refused       bool          `json:"refused"`
	RefusalReason RefusalReason `json:"refusal_reason,omitempty"`
	Usage         Usage         `json:"usage"`
}

func NewRefusal(reason RefusalReason, text string) *Answer {
	return &Answer{
		Text:          text,
		Citations:     []string{},
		Sources:       []Citation{},
		Refused:       true,
		RefusalReason: reason,
	}
}
