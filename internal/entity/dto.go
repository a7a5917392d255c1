package entity

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type HealthResponse struct {
	Status   string `json:"status"`
	Service  string `json:"service"`
	Sessions int    `json:"sessions"`
}

type UploadResponse struct {
	Message         string        `json:"message"`
	SessionID       string        `json:"session_id"`
	FilesProcessed  int           `json:"files_processed"`
	ChunksProcessed int           `json:"chunks_processed"`
	Documents       []DocumentRef `json:"documents"`
}

// UploadErrorResponse is returned when a batch fails after some files were
// already added to the session
type UploadErrorResponse struct {
	ErrorResponse
	SessionID       string        `json:"session_id"`
	FilesProcessed  int           `json:"files_processed"`
	ChunksProcessed int           `json:"chunks_processed"`
	Documents       []DocumentRef `json:"documents"`
}

type ChatResponse struct {
	SessionID     string        `json:"session_id"`
	Answer        string        `json:"answer"`
	Citations     []Citation    `json:"citations"`
	Refused       bool          `json:"refused"`
	RefusalReason RefusalReason `json:"refusal_reason,omitempty"`
	Usage         Usage         `json:"usage"`
}
