package entity

import "time"

// ResultFormat is an export format of the session transcript
type ResultFormat string

const (
	FormatMarkdown ResultFormat = "markdown"
	FormatJSON     ResultFormat = "json"
	FormatDOCX     ResultFormat = "docx"
	FormatPDF      ResultFormat = "pdf"
)

func (f ResultFormat) IsValid() bool {
	switch f {
	case FormatMarkdown, FormatJSON, FormatDOCX, FormatPDF:
		return true
	default:
		return false
	}
}

// SessionInfo is a read-only view of a session
type SessionInfo struct {
	ID           string        `json:"id"`
	CreatedAt    time.Time     `json:"created_at"`
	LastAccessAt time.Time     `json:"last_access_at"`
	Documents    []DocumentRef `json:"documents"`
	ChunkCount   int           `json:"chunk_count"`
	Questions    int           `json:"questions"`
}

// TranscriptEntry is a single question and its answer
type TranscriptEntry struct {
	Question  string    `json:"question"`
	Answer    Answer    `json:"answer"`
	AskedAt   time.Time `json:"asked_at"`
	LatencyMs int64     `json:"latency_ms"`
}

type ChatRequest struct {
	Message string `json:"message"`
}
