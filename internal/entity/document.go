package entity

import (
	"strings"
	"time"
)

// DocumentType describes the role of a document in the session corpus
type DocumentType string

const (
	DocumentTypeRequirements DocumentType = "requirements"
	DocumentTypeUpdate       DocumentType = "update"
	DocumentTypeMemo         DocumentType = "memo"
	DocumentTypeGeneral      DocumentType = "general"
)

func (t DocumentType) IsValid() bool {
	switch t {
	case DocumentTypeRequirements, DocumentTypeUpdate, DocumentTypeMemo, DocumentTypeGeneral:
		return true
	}
	return false
}

// ParseDocumentType normalizes user input, empty input yields an empty type
func ParseDocumentType(s string) (DocumentType, bool) {
	t := DocumentType(strings.ToLower(strings.TrimSpace(s)))
	if t == "" {
		return "", true
	}
	return t, t.IsValid()
}

// Sensitivity is the confidentiality flag of a document
type Sensitivity string

const (
	SensitivityPublic       Sensitivity = "public"
	SensitivityConfidential Sensitivity = "confidential"
)

// Document is an uploaded file after text extraction. Immutable once ingested.
type Document struct {
	ID                string
	SessionID         string
	Filename          string
	ContentType       string
	Text              string
	Size              int64
	UploadedAt        time.Time
	Seq               int
	Type              DocumentType
	Sensitivity       Sensitivity
	SensitivityMarker string
	ChunkCount        int
}

func (d *Document) IsConfidential() bool {
	return d.Sensitivity == SensitivityConfidential
}

// Ref returns the metadata of the document without its text
func (d *Document) Ref() DocumentRef {
	return DocumentRef{
		ID:          d.ID,
		Filename:    d.Filename,
		Type:        d.Type,
		UploadedAt:  d.UploadedAt,
		Seq:         d.Seq,
		Sensitivity: d.Sensitivity,
	}
}

// DocumentRef is the document metadata kept next to indexed chunks
type DocumentRef struct {
	ID          string       `json:"id"`
	Filename    string       `json:"filename"`
	Type        DocumentType `json:"document_type"`
	UploadedAt  time.Time    `json:"uploaded_at"`
	Seq         int          `json:"seq"`
	Sensitivity Sensitivity  `json:"sensitivity"`
}

func (r DocumentRef) IsConfidential() bool {
	return r.Sensitivity == SensitivityConfidential
}

// Chunk is a contiguous span of a document's text
type Chunk struct {
	ID         string
	DocumentID string
	Ordinal    int
	Start      int
	End        int
	Text       string
	Vector     []float32
	Sensitive  bool
}

// IngestRequest carries a raw upload into the ingestion pipeline
type IngestRequest struct {
	Filename     string
	ContentType  string
	Content      []byte
	DocumentType DocumentType
	Confidential bool
}

// IngestSummary is the result of a multi-file upload
type IngestSummary struct {
	Documents       []DocumentRef `json:"documents"`
	FilesProcessed  int           `json:"files_processed"`
	ChunksProcessed int           `json:"chunks_processed"`
}
