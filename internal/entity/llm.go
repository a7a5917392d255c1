package entity

// CompletionRequest is a grounded generation call. Passages holds the chunk
// texts placed into UserPrompt, in prompt order.
type CompletionRequest struct {
	SystemPrompt string
	UserPrompt   string
	Passages     []string
}
